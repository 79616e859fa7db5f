package pages

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/pagecheck/pagecheck/internal/browser"
)

// Reference page layout.
const (
	CheckboxPath     = "/checkboxes"
	CheckboxHeading  = "Checkboxes"
	HeadingSelector  = "h3"
	FormSelector     = "form#checkboxes"
	CheckboxSelector = "form#checkboxes input[type=checkbox]"

	checkedName = "checked"
)

// CheckboxPage drives the two-checkbox form. Every read of a checkbox's
// state consults both the checked property and the checked attribute.
type CheckboxPage struct {
	*Base
	path string
}

// NewCheckboxPage wraps page; path defaults to CheckboxPath.
func NewCheckboxPage(base *Base, path string) *CheckboxPage {
	if path == "" {
		path = CheckboxPath
	}
	return &CheckboxPage{Base: base, path: path}
}

// Navigate loads the page and waits for its heading.
func (p *CheckboxPage) Navigate(ctx context.Context) error {
	return p.NavigateTo(ctx, p.path, HeadingSelector)
}

// Checkbox returns the checkbox at index in document order. The index is
// not validated; a missing element fails the first operation on it.
func (p *CheckboxPage) Checkbox(index int) browser.Element {
	return p.page.Element(CheckboxSelector, index)
}

// Count returns the number of checkboxes in the form.
func (p *CheckboxPage) Count(ctx context.Context) (int, error) {
	return p.page.Count(ctx, CheckboxSelector)
}

// Heading returns the page's h3 text.
func (p *CheckboxPage) Heading(ctx context.Context) (string, error) {
	return p.Title(ctx, HeadingSelector)
}

// IsChecked reads the property and the attribute of checkbox index and
// returns their shared value, or a StateSyncError when they differ.
func (p *CheckboxPage) IsChecked(ctx context.Context, index int) (bool, error) {
	cb := p.Checkbox(index)
	prop, err := cb.Property(ctx, checkedName)
	if err != nil {
		return false, elementErr(CheckboxSelector, index, err)
	}
	attr, err := cb.HasAttribute(ctx, checkedName)
	if err != nil {
		return false, elementErr(CheckboxSelector, index, err)
	}
	if prop != attr {
		return false, &StateSyncError{Index: index, Property: prop, Attribute: attr}
	}
	return prop, nil
}

// Check leaves checkbox index checked and returns the verified state.
// It clicks only when the box is unchecked.
func (p *CheckboxPage) Check(ctx context.Context, index int) (bool, error) {
	return p.ensure(ctx, index, true)
}

// Uncheck leaves checkbox index unchecked and returns the verified state.
func (p *CheckboxPage) Uncheck(ctx context.Context, index int) (bool, error) {
	return p.ensure(ctx, index, false)
}

func (p *CheckboxPage) ensure(ctx context.Context, index int, want bool) (bool, error) {
	got, err := p.IsChecked(ctx, index)
	if err != nil {
		return false, err
	}
	if got == want {
		return got, nil
	}
	return p.Toggle(ctx, index)
}

// Toggle clicks checkbox index and returns the verified state.
func (p *CheckboxPage) Toggle(ctx context.Context, index int) (bool, error) {
	if err := p.Checkbox(index).Click(ctx); err != nil {
		return false, elementErr(CheckboxSelector, index, err)
	}
	return p.IsChecked(ctx, index)
}

// Press focuses checkbox index, sends key and returns the verified state.
func (p *CheckboxPage) Press(ctx context.Context, index int, key string) (bool, error) {
	if err := p.Checkbox(index).Press(ctx, key); err != nil {
		return false, elementErr(CheckboxSelector, index, err)
	}
	return p.IsChecked(ctx, index)
}

// Focus gives checkbox index keyboard focus.
func (p *CheckboxPage) Focus(ctx context.Context, index int) error {
	if err := p.Checkbox(index).Focus(ctx); err != nil {
		return elementErr(CheckboxSelector, index, err)
	}
	return nil
}

// FocusedIndex returns which checkbox has focus, or -1.
func (p *CheckboxPage) FocusedIndex(ctx context.Context) (int, error) {
	return p.page.FocusedIndex(ctx, CheckboxSelector)
}

// LabelText is the text rendered after checkbox index.
func LabelText(index int) string {
	return fmt.Sprintf("checkbox %d", index+1)
}

// ClickLabelText clicks the text next to checkbox index and returns the
// checkbox's verified state afterwards. The text is not a label, so the
// state is expected to be unchanged.
func (p *CheckboxPage) ClickLabelText(ctx context.Context, index int) (bool, error) {
	if err := p.page.ClickText(ctx, LabelText(index)); err != nil {
		return false, elementErr("text="+LabelText(index), index, err)
	}
	return p.IsChecked(ctx, index)
}

// NavigationObservation is what PressEnter saw while it watched the page.
type NavigationObservation struct {
	URLBefore   string
	URLAfter    string
	Navigations int
	Window      time.Duration
}

// Navigated reports whether anything suggests the form was submitted.
func (o NavigationObservation) Navigated() bool {
	return o.Navigations > 0 || o.URLBefore != o.URLAfter
}

// PressEnter focuses checkbox index, presses Enter and watches the page for
// the observation window.
func (p *CheckboxPage) PressEnter(ctx context.Context, index int) (NavigationObservation, error) {
	obs := NavigationObservation{Window: p.timeouts.Observation}
	before, err := p.URL(ctx)
	if err != nil {
		return obs, err
	}
	obs.URLBefore = before
	navs := p.page.Navigations()

	if err := p.Checkbox(index).Press(ctx, "Enter"); err != nil {
		return obs, elementErr(CheckboxSelector, index, err)
	}

	timer := time.NewTimer(obs.Window)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return obs, ctx.Err()
	case <-timer.C:
	}

	obs.Navigations = p.page.Navigations() - navs
	if obs.URLAfter, err = p.URL(ctx); err != nil {
		return obs, err
	}
	return obs, nil
}

// StateSeq yields the verified state of each checkbox in document order.
// Every iteration re-reads the page; nothing is cached. Iteration stops
// after the first error.
func (p *CheckboxPage) StateSeq(ctx context.Context) iter.Seq2[bool, error] {
	return func(yield func(bool, error) bool) {
		n, err := p.Count(ctx)
		if err != nil {
			yield(false, err)
			return
		}
		for i := 0; i < n; i++ {
			v, err := p.IsChecked(ctx, i)
			if !yield(v, err) || err != nil {
				return
			}
		}
	}
}

// AllStates collects StateSeq into a slice.
func (p *CheckboxPage) AllStates(ctx context.Context) ([]bool, error) {
	var states []bool
	for v, err := range p.StateSeq(ctx) {
		if err != nil {
			return nil, err
		}
		states = append(states, v)
	}
	return states, nil
}
