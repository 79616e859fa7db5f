package suite

import (
	"context"
	"fmt"

	"github.com/pagecheck/pagecheck/internal/pages"
)

// Reference page facts the scenarios assert.
var (
	InitialStates = []bool{false, true}
	CheckboxCount = 2
)

// rapidClicks is odd so the end state differs from the start.
const rapidClicks = 5

// Catalogue returns the built-in scenarios.
func Catalogue() []Scenario {
	var all []Scenario
	all = append(all, stateScenarios()...)
	all = append(all, keyboardScenarios()...)
	all = append(all, interferenceScenarios()...)
	return all
}

func stateScenarios() []Scenario {
	const file = "checkboxes"
	s := []Scenario{
		{
			Name: "page loads with heading and two checkboxes",
			File: file, Tags: []string{"smoke"},
			Run: func(ctx context.Context, env *Env) error {
				heading, err := env.Page.Heading(ctx)
				if err != nil {
					return err
				}
				if err := expectEqual("heading", pages.CheckboxHeading, heading); err != nil {
					return err
				}
				n, err := env.Page.Count(ctx)
				if err != nil {
					return err
				}
				return expectEqual("checkbox count", CheckboxCount, n)
			},
		},
		{
			Name: "initial state is unchecked then checked",
			File: file, Tags: []string{"smoke", "sync"},
			Run: func(ctx context.Context, env *Env) error {
				states, err := env.Page.AllStates(ctx)
				if err != nil {
					return err
				}
				return expectEqual("initial states", InitialStates, states)
			},
		},
		{
			Name: "check sets property and attribute",
			File: file, Tags: []string{"transition", "sync"},
			Run: func(ctx context.Context, env *Env) error {
				got, err := env.Page.Check(ctx, 0)
				if err != nil {
					return err
				}
				if err := expectTrue("checkbox 0 checked", got); err != nil {
					return err
				}
				attr, err := env.Page.Checkbox(0).HasAttribute(ctx, "checked")
				if err != nil {
					return err
				}
				return expectTrue("checkbox 0 checked attribute present", attr)
			},
		},
		{
			Name: "uncheck clears property and attribute",
			File: file, Tags: []string{"transition", "sync"},
			Run: func(ctx context.Context, env *Env) error {
				got, err := env.Page.Uncheck(ctx, 1)
				if err != nil {
					return err
				}
				if err := expectEqual("checkbox 1 checked", false, got); err != nil {
					return err
				}
				attr, err := env.Page.Checkbox(1).HasAttribute(ctx, "checked")
				if err != nil {
					return err
				}
				return expectEqual("checkbox 1 checked attribute present", false, attr)
			},
		},
		{
			Name: "check then uncheck returns to unchecked",
			File: file, Tags: []string{"transition"},
			Run: roundTrip(0, true),
		},
		{
			Name: "uncheck then check returns to checked",
			File: file, Tags: []string{"transition"},
			Run: roundTrip(1, false),
		},
		{
			Name: "rapid clicking settles in sync",
			File: file, Tags: []string{"edge", "sync"},
			Run: func(ctx context.Context, env *Env) error {
				for i := 0; i < rapidClicks; i++ {
					if err := env.Page.Checkbox(0).Click(ctx); err != nil {
						return err
					}
				}
				got, err := env.Page.IsChecked(ctx, 0)
				if err != nil {
					return err
				}
				return expectEqual(fmt.Sprintf("checkbox 0 after %d clicks", rapidClicks), !InitialStates[0], got)
			},
		},
		{
			Name: "count is stable across interactions",
			File: file, Tags: []string{"edge"},
			Run: func(ctx context.Context, env *Env) error {
				for _, step := range []func() (bool, error){
					func() (bool, error) { return env.Page.Check(ctx, 0) },
					func() (bool, error) { return env.Page.Uncheck(ctx, 1) },
					func() (bool, error) { return env.Page.Toggle(ctx, 0) },
				} {
					if _, err := step(); err != nil {
						return err
					}
					n, err := env.Page.Count(ctx)
					if err != nil {
						return err
					}
					if err := expectEqual("checkbox count", CheckboxCount, n); err != nil {
						return err
					}
				}
				return nil
			},
		},
	}
	for i := range InitialStates {
		s = append(s,
			Scenario{
				Name: fmt.Sprintf("check is idempotent on checkbox %d", i),
				File: file, Tags: []string{"idempotence"},
				Run: repeated(i, true),
			},
			Scenario{
				Name: fmt.Sprintf("uncheck is idempotent on checkbox %d", i),
				File: file, Tags: []string{"idempotence"},
				Run: repeated(i, false),
			},
		)
	}
	return s
}

// repeated applies check (or uncheck) three times and expects the same end
// state after each.
func repeated(index int, check bool) Func {
	return func(ctx context.Context, env *Env) error {
		op := env.Page.Uncheck
		if check {
			op = env.Page.Check
		}
		for n := 1; n <= 3; n++ {
			got, err := op(ctx, index)
			if err != nil {
				return err
			}
			if err := expectEqual(fmt.Sprintf("checkbox %d after %d calls", index, n), check, got); err != nil {
				return err
			}
		}
		return nil
	}
}

// roundTrip flips checkbox index away from its initial state and back.
func roundTrip(index int, checkFirst bool) Func {
	return func(ctx context.Context, env *Env) error {
		first, second := env.Page.Check, env.Page.Uncheck
		if !checkFirst {
			first, second = second, first
		}
		if _, err := first(ctx, index); err != nil {
			return err
		}
		got, err := second(ctx, index)
		if err != nil {
			return err
		}
		return expectEqual(fmt.Sprintf("checkbox %d after round trip", index), !checkFirst, got)
	}
}

func keyboardScenarios() []Scenario {
	const file = "keyboard"
	s := []Scenario{
		{
			Name: "tab and shift tab follow document order",
			File: file, Tags: []string{"keyboard", "focus"},
			Run: func(ctx context.Context, env *Env) error {
				if err := env.Page.Focus(ctx, 0); err != nil {
					return err
				}
				for _, step := range []struct {
					key  string
					want int
				}{{"Tab", 1}, {"Shift+Tab", 0}} {
					if err := env.Page.Page().Press(ctx, step.key); err != nil {
						return err
					}
					got, err := env.Page.FocusedIndex(ctx)
					if err != nil {
						return err
					}
					if err := expectEqual("focused checkbox after "+step.key, step.want, got); err != nil {
						return err
					}
				}
				states, err := env.Page.AllStates(ctx)
				if err != nil {
					return err
				}
				return expectEqual("states after moving focus", InitialStates, states)
			},
		},
	}
	for i, initial := range InitialStates {
		i, initial := i, initial
		s = append(s, Scenario{
			Name: fmt.Sprintf("space toggles checkbox %d back and forth", i),
			File: file, Tags: []string{"keyboard", "sync"},
			Run: func(ctx context.Context, env *Env) error {
				want := !initial
				for n := 1; n <= 4; n++ {
					got, err := env.Page.Press(ctx, i, "Space")
					if err != nil {
						return err
					}
					if err := expectEqual(fmt.Sprintf("checkbox %d after %d presses", i, n), want, got); err != nil {
						return err
					}
					want = !want
				}
				return nil
			},
		})
	}
	return s
}

func interferenceScenarios() []Scenario {
	const file = "interference"
	var s []Scenario
	for i, initial := range InitialStates {
		i, initial := i, initial
		s = append(s,
			Scenario{
				Name: fmt.Sprintf("clicking text %q does not toggle checkbox %d", pages.LabelText(i), i),
				File: file, Tags: []string{"negative"},
				Run: func(ctx context.Context, env *Env) error {
					got, err := env.Page.ClickLabelText(ctx, i)
					if err != nil {
						return err
					}
					return expectEqual(fmt.Sprintf("checkbox %d after clicking its text", i), initial, got)
				},
			},
			Scenario{
				Name: fmt.Sprintf("enter on checkbox %d does not submit", i),
				File: file, Tags: []string{"negative", "keyboard"},
				Run: func(ctx context.Context, env *Env) error {
					obs, err := env.Page.PressEnter(ctx, i)
					if err != nil {
						return err
					}
					if err := expectEqual("url after enter", obs.URLBefore, obs.URLAfter); err != nil {
						return err
					}
					if err := expectEqual(fmt.Sprintf("navigations within %s", obs.Window), 0, obs.Navigations); err != nil {
						return err
					}
					got, err := env.Page.IsChecked(ctx, i)
					if err != nil {
						return err
					}
					return expectEqual(fmt.Sprintf("checkbox %d after enter", i), initial, got)
				},
			},
		)
	}
	return s
}
