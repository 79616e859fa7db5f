package browser

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Page-side functions shared by both backends. Each is a JS function
// expression; playwright passes arguments natively, the cdp backend inlines
// them with invokeScript.
const (
	textCenterScript = `(text) => {
  const walker = document.createTreeWalker(document.body, NodeFilter.SHOW_TEXT);
  for (let n = walker.nextNode(); n; n = walker.nextNode()) {
    const content = n.textContent;
    if (content.trim() !== text) continue;
    const start = content.indexOf(text);
    const range = document.createRange();
    range.setStart(n, start);
    range.setEnd(n, start + text.length);
    const r = range.getBoundingClientRect();
    if (r.width === 0 && r.height === 0) continue;
    return {x: r.left + r.width / 2, y: r.top + r.height / 2};
  }
  return null;
}`

	focusedIndexScript = `(sel) => Array.prototype.indexOf.call(document.querySelectorAll(sel), document.activeElement)`

	// nthScript resolves the nth match and applies fn(el, ...rest) to it.
	// A missing element yields {found: false}.
	nthScript = `(sel, i, op, name) => {
  const el = document.querySelectorAll(sel)[i];
  if (!el) return {found: false};
  switch (op) {
    case "property": return {found: true, value: !!el[name]};
    case "attribute": return {found: true, value: el.hasAttribute(name)};
    case "text": return {found: true, text: el.textContent || ""};
    case "focus": el.focus(); return {found: true, value: document.activeElement === el};
  }
  return {found: true};
}`
)

// point is a viewport coordinate returned by textCenterScript.
type point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// nthResult is the shape returned by nthScript.
type nthResult struct {
	Found bool   `json:"found"`
	Value bool   `json:"value"`
	Text  string `json:"text"`
}

// invokeScript renders fn(args...) as a standalone expression.
func invokeScript(fn string, args ...any) (string, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			return "", fmt.Errorf("encode script argument %d: %w", i, err)
		}
		parts[i] = string(b)
	}
	return fmt.Sprintf("(%s)(%s)", fn, strings.Join(parts, ", ")), nil
}
