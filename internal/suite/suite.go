// Package suite is the scenario catalogue: every interaction path the
// checkbox page is verified against, plus the data tables turned into
// scenarios. The runner and the go test acceptance suite both consume it.
package suite

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/pagecheck/pagecheck/internal/browser"
	"github.com/pagecheck/pagecheck/internal/pages"
	"github.com/pagecheck/pagecheck/internal/scenario"
)

// Env is what a scenario body gets: a freshly loaded page on one engine.
type Env struct {
	Page   *pages.CheckboxPage
	Engine browser.Engine
	Log    logrus.FieldLogger
}

// Func is a scenario body.
type Func func(ctx context.Context, env *Env) error

// Scenario is one independent test case.
type Scenario struct {
	Name string
	// File groups scenarios like test files do; --file filters on it.
	File string
	// Source is the table path for data-driven scenarios.
	Source string
	Tags   []string
	Run    Func
}

// ID is the stable display name, "file › name".
func (s Scenario) ID() string {
	return s.File + " › " + s.Name
}

// HasTag reports whether the scenario carries tag.
func (s Scenario) HasTag(tag string) bool {
	return slices.Contains(s.Tags, strings.TrimPrefix(tag, "@"))
}

// AssertionError is an expected-versus-actual mismatch outside the page
// object's own error kinds.
type AssertionError struct {
	Message  string
	Expected interface{}
	Actual   interface{}
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s: expected %v, got %v", e.Message, e.Expected, e.Actual)
}

func expectEqual(msg string, expected, actual interface{}) error {
	if assert.ObjectsAreEqual(expected, actual) {
		return nil
	}
	return &AssertionError{Message: msg, Expected: expected, Actual: actual}
}

func expectTrue(msg string, actual bool) error {
	return expectEqual(msg, true, actual)
}

// Filter selects scenarios by file, name pattern and tag. Empty criteria
// match everything; tags match when any one is present.
type Filter struct {
	Files []string
	Grep  *regexp.Regexp
	Tags  []string
}

// NewFilter compiles grep and normalises tags ("@smoke" and "smoke" are
// the same tag).
func NewFilter(files []string, grep string, tags []string) (Filter, error) {
	f := Filter{Files: files}
	if grep != "" {
		re, err := regexp.Compile(grep)
		if err != nil {
			return f, fmt.Errorf("invalid grep pattern: %w", err)
		}
		f.Grep = re
	}
	for _, t := range tags {
		if t = strings.TrimPrefix(strings.TrimSpace(t), "@"); t != "" {
			f.Tags = append(f.Tags, t)
		}
	}
	return f, nil
}

// Match reports whether s passes every criterion.
func (f Filter) Match(s Scenario) bool {
	if len(f.Files) > 0 && !slices.ContainsFunc(f.Files, func(file string) bool { return matchFile(s, file) }) {
		return false
	}
	if f.Grep != nil && !f.Grep.MatchString(s.ID()) {
		return false
	}
	if len(f.Tags) > 0 && !slices.ContainsFunc(f.Tags, s.HasTag) {
		return false
	}
	return true
}

func matchFile(s Scenario, file string) bool {
	if file == s.File || (s.Source != "" && filepath.Clean(file) == filepath.Clean(s.Source)) {
		return true
	}
	base, _, _ := strings.Cut(filepath.Base(file), ".")
	return base == s.File
}

// Select returns the scenarios matching f, in order.
func Select(all []Scenario, f Filter) []Scenario {
	var out []Scenario
	for _, s := range all {
		if f.Match(s) {
			out = append(out, s)
		}
	}
	return out
}

// FromTables turns every table case into a scenario.
func FromTables(tables []*scenario.Table) []Scenario {
	var out []Scenario
	for _, t := range tables {
		for _, c := range t.Cases {
			c := c
			tags := append(append([]string(nil), t.Tags...), c.Tags...)
			out = append(out, Scenario{
				Name:   c.Name,
				File:   t.Name,
				Source: t.Path,
				Tags:   tags,
				Run: func(ctx context.Context, env *Env) error {
					n, err := env.Page.Count(ctx)
					if err != nil {
						return err
					}
					if err := expectEqual("checkbox count for the expected state vector", len(c.Expect), n); err != nil {
						return err
					}
					states, err := scenario.Apply(ctx, env.Page, c.Actions)
					if err != nil {
						return err
					}
					return expectEqual("state vector after "+describe(c.Actions), c.Expect, states)
				},
			})
		}
	}
	return out
}

func describe(actions []scenario.Action) string {
	if len(actions) == 0 {
		return "no actions"
	}
	parts := make([]string, len(actions))
	for i, a := range actions {
		parts[i] = a.String()
	}
	return strings.Join(parts, ", ")
}
