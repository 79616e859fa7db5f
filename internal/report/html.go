package report

import (
	"bytes"
	_ "embed"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/flosch/pongo2/v6"
	"github.com/spf13/afero"
)

//go:embed report.html
var reportTemplate []byte

var reportTpl = pongo2.Must(pongo2.FromBytes(reportTemplate))

type htmlLink struct {
	Name string
	Href string
}

type htmlRow struct {
	Status    string
	Engine    string
	File      string
	Scenario  string
	Tags      string
	Attempts  int
	Duration  string
	Error     string
	ErrorKind string
	Artifacts []htmlLink
}

// WriteHTML renders index.html into dir. Artifact links are relative to dir.
func WriteHTML(fs afero.Fs, dir string, c *Collector) error {
	summary := c.Summary()
	var rows []htmlRow
	for _, r := range c.Results() {
		rows = append(rows, htmlRow{
			Status:    string(r.Status),
			Engine:    r.Engine,
			File:      r.File,
			Scenario:  r.Scenario,
			Tags:      tagList(r.Tags),
			Attempts:  r.Attempts,
			Duration:  r.Duration.Round(time.Millisecond).String(),
			Error:     r.Error,
			ErrorKind: string(r.ErrorKind),
			Artifacts: links(dir, r.Artifacts),
		})
	}

	var buf bytes.Buffer
	err := reportTpl.ExecuteWriter(pongo2.Context{
		"summary":  summary,
		"started":  summary.Started.Format(time.RFC3339),
		"duration": summary.Duration.Round(time.Millisecond).String(),
		"rows":     rows,
	}, &buf)
	if err != nil {
		return fmt.Errorf("failed to render HTML report: %w", err)
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	if err := afero.WriteFile(fs, filepath.Join(dir, "index.html"), buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write HTML report: %w", err)
	}
	return nil
}

func tagList(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	return "@" + strings.Join(tags, " @")
}

func links(dir string, a Artifacts) []htmlLink {
	var out []htmlLink
	for _, l := range []htmlLink{{"screenshot", a.Screenshot}, {"video", a.Video}, {"trace", a.Trace}} {
		if l.Href == "" {
			continue
		}
		if rel, err := filepath.Rel(dir, l.Href); err == nil && filepath.IsAbs(dir) == filepath.IsAbs(l.Href) {
			l.Href = filepath.ToSlash(rel)
		}
		out = append(out, l)
	}
	return out
}
