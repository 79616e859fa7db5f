// Package version reports build information. Version, GitCommit and
// BuildDate are set at build time via -ldflags; dependency versions come
// from the module build info.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Browser driver modules whose versions are reported.
const (
	playwrightModule = "github.com/playwright-community/playwright-go"
	chromedpModule   = "github.com/chromedp/chromedp"
)

// Info contains structured version information.
type Info struct {
	Version    string `json:"version"`
	GitCommit  string `json:"git_commit"`
	BuildDate  string `json:"build_date"`
	GoVersion  string `json:"go_version"`
	Playwright string `json:"playwright_go,omitempty"`
	Chromedp   string `json:"chromedp,omitempty"`
}

// GetInfo returns the current version info.
func GetInfo() Info {
	info := Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		fromBuildInfo(&info, bi)
	}
	return info
}

func fromBuildInfo(info *Info, bi *debug.BuildInfo) {
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		if s.Key == "vcs.revision" && info.GitCommit == "unknown" && len(s.Value) >= 7 {
			info.GitCommit = s.Value[:7]
		}
	}
	for _, dep := range bi.Deps {
		switch dep.Path {
		case playwrightModule:
			info.Playwright = dep.Version
		case chromedpModule:
			info.Chromedp = dep.Version
		}
	}
}

// String returns "v0.3.0 (abc1234)".
func String() string {
	i := GetInfo()
	return fmt.Sprintf("%s (%s)", i.Version, i.GitCommit)
}

// Full adds the build date, Go version and driver versions.
func Full() string {
	i := GetInfo()
	s := fmt.Sprintf("%s (%s) built %s with %s", i.Version, i.GitCommit, i.BuildDate, i.GoVersion)
	if i.Playwright != "" {
		s += ", playwright-go " + i.Playwright
	}
	if i.Chromedp != "" {
		s += ", chromedp " + i.Chromedp
	}
	return s
}
