package report

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
)

type jsonReport struct {
	Summary Summary  `json:"summary"`
	Results []Result `json:"results"`
}

// WriteJSON writes the summary and every result to path.
func WriteJSON(fs afero.Fs, path string, c *Collector) error {
	data, err := json.MarshalIndent(jsonReport{Summary: c.Summary(), Results: c.Results()}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode JSON report: %w", err)
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	if err := afero.WriteFile(fs, path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write JSON report: %w", err)
	}
	return nil
}
