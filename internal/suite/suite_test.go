package suite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagecheck/pagecheck/internal/browser"
	"github.com/pagecheck/pagecheck/internal/browser/fakebrowser"
	"github.com/pagecheck/pagecheck/internal/pages"
	"github.com/pagecheck/pagecheck/internal/scenario"
)

func newEnv(t *testing.T, opts fakebrowser.Options) *Env {
	t.Helper()
	ctx := context.Background()
	page, err := fakebrowser.New(opts).NewPage(ctx, browser.PageOptions{})
	require.NoError(t, err)
	base := pages.NewBase(page, "http://fixture.test", pages.Timeouts{Observation: 10 * time.Millisecond})
	cp := pages.NewCheckboxPage(base, "")
	require.NoError(t, cp.Navigate(ctx))
	logger, _ := test.NewNullLogger()
	return &Env{Page: cp, Engine: browser.Chromium, Log: logger.WithField("test", t.Name())}
}

func TestCataloguePassesAgainstReferencePage(t *testing.T) {
	all := Catalogue()
	require.NotEmpty(t, all)
	for _, s := range all {
		t.Run(s.ID(), func(t *testing.T) {
			assert.NoError(t, s.Run(context.Background(), newEnv(t, fakebrowser.Options{})))
		})
	}
}

func TestCatalogueIDsAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, s := range Catalogue() {
		assert.False(t, seen[s.ID()], "duplicate scenario %q", s.ID())
		seen[s.ID()] = true
		assert.NotNil(t, s.Run, s.ID())
		assert.NotEmpty(t, s.File, s.ID())
	}
}

func TestCatalogueCoversEveryFile(t *testing.T) {
	files := map[string]int{}
	for _, s := range Catalogue() {
		files[s.File]++
	}
	assert.Equal(t, 12, files["checkboxes"])
	assert.Equal(t, 3, files["keyboard"])
	assert.Equal(t, 4, files["interference"])
}

// Each regression must be caught by at least one scenario.
func TestCatalogueDetectsRegressions(t *testing.T) {
	tests := []struct {
		name    string
		opts    fakebrowser.Options
		failing string
		check   func(t *testing.T, err error)
	}{
		{
			name:    "broken attribute sync",
			opts:    fakebrowser.Options{BrokenSync: true},
			failing: "checkboxes › check sets property and attribute",
			check: func(t *testing.T, err error) {
				assert.True(t, pages.IsStateSync(err))
			},
		},
		{
			name:    "wrong initial state",
			opts:    fakebrowser.Options{Initial: []bool{true, true}},
			failing: "checkboxes › initial state is unchecked then checked",
			check: func(t *testing.T, err error) {
				var aerr *AssertionError
				require.ErrorAs(t, err, &aerr)
				assert.Equal(t, []bool{false, true}, aerr.Expected)
				assert.Equal(t, []bool{true, true}, aerr.Actual)
			},
		},
		{
			name:    "text wrapped in a label",
			opts:    fakebrowser.Options{ClickTextToggles: true},
			failing: `interference › clicking text "checkbox 1" does not toggle checkbox 0`,
			check: func(t *testing.T, err error) {
				var aerr *AssertionError
				require.ErrorAs(t, err, &aerr)
				assert.Equal(t, false, aerr.Expected)
			},
		},
		{
			name:    "enter submits the form",
			opts:    fakebrowser.Options{NavigateOnEnter: true},
			failing: "interference › enter on checkbox 1 does not submit",
			check: func(t *testing.T, err error) {
				var aerr *AssertionError
				require.ErrorAs(t, err, &aerr)
				assert.Contains(t, aerr.Message, "url after enter")
			},
		},
		{
			name:    "extra checkbox",
			opts:    fakebrowser.Options{Initial: []bool{false, true, false}},
			failing: "checkboxes › page loads with heading and two checkboxes",
			check: func(t *testing.T, err error) {
				var aerr *AssertionError
				require.ErrorAs(t, err, &aerr)
				assert.Equal(t, 3, aerr.Actual)
			},
		},
		{
			name:    "wrong heading",
			opts:    fakebrowser.Options{Heading: "Check boxes"},
			failing: "checkboxes › page loads with heading and two checkboxes",
			check: func(t *testing.T, err error) {
				assert.ErrorContains(t, err, `expected Checkboxes, got Check boxes`)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var found bool
			for _, s := range Catalogue() {
				if s.ID() != tt.failing {
					continue
				}
				found = true
				err := s.Run(context.Background(), newEnv(t, tt.opts))
				require.Error(t, err)
				tt.check(t, err)
			}
			assert.True(t, found, "scenario %q exists", tt.failing)
		})
	}
}

func TestFilter(t *testing.T) {
	all := []Scenario{
		{Name: "a", File: "checkboxes", Tags: []string{"smoke"}},
		{Name: "b", File: "checkboxes", Tags: []string{"sync"}},
		{Name: "c", File: "keyboard", Tags: []string{"keyboard", "sync"}},
		{Name: "d", File: "combined", Source: "testdata/scenarios/combined.yaml"},
	}
	names := func(ss []Scenario) []string {
		var out []string
		for _, s := range ss {
			out = append(out, s.Name)
		}
		return out
	}

	tests := []struct {
		name  string
		files []string
		grep  string
		tags  []string
		want  []string
	}{
		{"empty matches all", nil, "", nil, []string{"a", "b", "c", "d"}},
		{"file by name", []string{"keyboard"}, "", nil, []string{"c"}},
		{"file by path", []string{"tests/keyboard.spec.ts"}, "", nil, []string{"c"}},
		{"file by table source", []string{"testdata/scenarios/combined.yaml"}, "", nil, []string{"d"}},
		{"grep on id", nil, "checkboxes › [ab]", nil, []string{"a", "b"}},
		{"tag with at sign", nil, "", []string{"@smoke"}, []string{"a"}},
		{"tags are any-of", nil, "", []string{"smoke", "keyboard"}, []string{"a", "c"}},
		{"criteria combine", []string{"checkboxes"}, "", []string{"sync"}, []string{"b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewFilter(tt.files, tt.grep, tt.tags)
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(Select(all, f)))
		})
	}

	_, err := NewFilter(nil, "(", nil)
	assert.ErrorContains(t, err, "invalid grep pattern")
}

func TestFromTables(t *testing.T) {
	tbl, err := scenario.LoadFile(filepath.Join("..", "scenario", "testdata", "valid.yaml"))
	require.NoError(t, err)

	ss := FromTables([]*scenario.Table{tbl})
	require.Len(t, ss, 2)
	assert.Equal(t, "sample", ss[0].File)
	assert.Equal(t, tbl.Path, ss[0].Source)
	assert.True(t, ss[1].HasTag("sample"))
	assert.True(t, ss[1].HasTag("@keyboard"))

	for _, s := range ss {
		assert.NoError(t, s.Run(context.Background(), newEnv(t, fakebrowser.Options{})), s.ID())
	}

	wrong := &scenario.Table{Name: "wrong", Cases: []scenario.Case{{
		Name:    "expects nothing changed",
		Actions: []scenario.Action{{Kind: scenario.Toggle, Index: 0}},
		Expect:  []bool{false, true},
	}}}
	err = FromTables([]*scenario.Table{wrong})[0].Run(context.Background(), newEnv(t, fakebrowser.Options{}))
	var aerr *AssertionError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "state vector after toggle(0)", aerr.Message)

	short := &scenario.Table{Name: "short", Cases: []scenario.Case{{
		Name:    "expects one checkbox",
		Actions: []scenario.Action{{Kind: scenario.Check, Index: 0}},
		Expect:  []bool{true},
	}}}
	env := newEnv(t, fakebrowser.Options{})
	err = FromTables([]*scenario.Table{short})[0].Run(context.Background(), env)
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "checkbox count for the expected state vector", aerr.Message)
	assert.Equal(t, 1, aerr.Expected)
	assert.Equal(t, 2, aerr.Actual)
	checked, err := env.Page.IsChecked(context.Background(), 0)
	require.NoError(t, err)
	assert.False(t, checked, "actions do not run when the vector length is wrong")
}

func TestScenarioID(t *testing.T) {
	s := Scenario{Name: "x", File: "checkboxes"}
	assert.Equal(t, "checkboxes › x", s.ID())
	assert.False(t, s.HasTag("smoke"))
}
