// Package scenario describes checkbox interactions as data: typed actions,
// YAML data tables of action lists with their expected outcome, and the
// pipeline that applies them to a page.
package scenario

import (
	"context"
	"fmt"

	"github.com/pagecheck/pagecheck/internal/pages"
)

// Kind discriminates Action.
type Kind string

const (
	Check   Kind = "check"
	Uncheck Kind = "uncheck"
	// Toggle is a plain pointer click.
	Toggle Kind = "toggle"
	// Press focuses the checkbox and sends Key.
	Press Kind = "press"
)

// Action is one step applied to a single checkbox.
type Action struct {
	Kind  Kind   `yaml:"kind" json:"kind"`
	Index int    `yaml:"index" json:"index"`
	Key   string `yaml:"key,omitempty" json:"key,omitempty"`
}

func (a Action) String() string {
	if a.Kind == Press {
		return fmt.Sprintf("press(%d, %s)", a.Index, a.Key)
	}
	return fmt.Sprintf("%s(%d)", a.Kind, a.Index)
}

// Validate checks the action is well formed. Index bounds are left to the
// page, which reports ElementNotFoundError.
func (a Action) Validate() error {
	switch a.Kind {
	case Check, Uncheck, Toggle:
		if a.Key != "" {
			return fmt.Errorf("%s: key is only valid for press", a)
		}
	case Press:
		if a.Key == "" {
			return fmt.Errorf("press(%d): key is required", a.Index)
		}
	default:
		return fmt.Errorf("unknown action kind %q", a.Kind)
	}
	if a.Index < 0 {
		return fmt.Errorf("%s: index must not be negative", a)
	}
	return nil
}

// Run applies the action and returns the verified state of its checkbox.
func (a Action) Run(ctx context.Context, p *pages.CheckboxPage) (bool, error) {
	switch a.Kind {
	case Check:
		return p.Check(ctx, a.Index)
	case Uncheck:
		return p.Uncheck(ctx, a.Index)
	case Toggle:
		return p.Toggle(ctx, a.Index)
	case Press:
		return p.Press(ctx, a.Index, a.Key)
	}
	return false, fmt.Errorf("unknown action kind %q", a.Kind)
}

// Apply runs actions in order, stopping at the first failure, and returns
// the full verified state vector afterwards.
func Apply(ctx context.Context, p *pages.CheckboxPage, actions []Action) ([]bool, error) {
	for i, a := range actions {
		if err := a.Validate(); err != nil {
			return nil, fmt.Errorf("action %d: %w", i, err)
		}
		if _, err := a.Run(ctx, p); err != nil {
			return nil, fmt.Errorf("action %d %s: %w", i, a, err)
		}
	}
	return p.AllStates(ctx)
}
