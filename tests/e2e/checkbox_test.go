package e2e

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagecheck/pagecheck/internal/pages"
	"github.com/pagecheck/pagecheck/internal/scenario"
	"github.com/pagecheck/pagecheck/internal/suite"
)

// runScenarios runs each scenario on a freshly loaded page per engine.
func runScenarios(t *testing.T, scenarios []suite.Scenario) {
	for _, engine := range cfg.Engines {
		t.Run(string(engine), func(t *testing.T) {
			for _, s := range scenarios {
				t.Run(s.File+"/"+s.Name, func(t *testing.T) {
					cp := bh.CheckboxPage(t, engine, "")
					env := &suite.Env{Page: cp, Engine: engine, Log: bh.Log.WithFields(logrus.Fields{"scenario": s.ID(), "engine": engine})}
					assert.NoError(t, s.Run(context.Background(), env))
				})
			}
		})
	}
}

func TestCheckboxScenarios(t *testing.T) {
	runScenarios(t, suite.Catalogue())
}

func TestDataTables(t *testing.T) {
	tables, err := scenario.LoadDir(filepath.Join("..", "..", "testdata", "scenarios"))
	require.NoError(t, err)
	runScenarios(t, suite.FromTables(tables))
}

func TestStateSyncErrorOnBrokenPage(t *testing.T) {
	if !local {
		t.Skip("needs the local fixture's ?sync=off variant")
	}
	for _, engine := range cfg.Engines {
		t.Run(string(engine), func(t *testing.T) {
			cp := bh.CheckboxPage(t, engine, pages.CheckboxPath+"?sync=off")
			ctx := context.Background()

			states, err := cp.AllStates(ctx)
			require.NoError(t, err, "initial markup is in sync")
			assert.Equal(t, []bool{false, true}, states)

			_, err = cp.Check(ctx, 0)
			var se *pages.StateSyncError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, 0, se.Index)
			assert.True(t, se.Property)
			assert.False(t, se.Attribute)
		})
	}
}

func TestOutOfRangeCheckbox(t *testing.T) {
	for _, engine := range cfg.Engines {
		t.Run(string(engine), func(t *testing.T) {
			cp := bh.CheckboxPage(t, engine, "")
			_, err := cp.IsChecked(context.Background(), 2)
			var nf *pages.ElementNotFoundError
			require.ErrorAs(t, err, &nf)
			assert.Equal(t, 2, nf.Index)
		})
	}
}
