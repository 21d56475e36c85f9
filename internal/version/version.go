package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"time"
)

// Set at build time:
//
//	go build -ldflags="-X github.com/lineus/lineus/internal/version.Version=v0.3.0 \
//	                   -X github.com/lineus/lineus/internal/version.Commit=abc1234"
//
// Unset values are filled from the VCS stamp in the build info on first
// use, then fall back to "dev" and "unknown".
var (
	Version = ""
	Commit  = ""
)

// Info describes the running binary
type Info struct {
	Version   string
	Commit    string
	BuildTime string
	GoVersion string
	Platform  string
}

var (
	resolved     Info
	resolvedOnce sync.Once
)

// Get returns the build information
func Get() Info {
	resolvedOnce.Do(func() {
		resolved = resolve(Version, Commit, readSettings())
	})
	return resolved
}

func readSettings() map[string]string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return nil
	}
	settings := make(map[string]string, len(info.Settings))
	for _, s := range info.Settings {
		settings[s.Key] = s.Value
	}
	return settings
}

// resolve fills missing version and commit from VCS build settings
func resolve(version, commit string, settings map[string]string) Info {
	info := Info{
		Version:   version,
		Commit:    commit,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}

	revision := settings["vcs.revision"]
	if info.Commit == "" && revision != "" {
		if len(revision) > 7 {
			revision = revision[:7]
		}
		info.Commit = revision
		if settings["vcs.modified"] == "true" {
			info.Commit += "-dirty"
		}
	}

	if t, err := time.Parse(time.RFC3339, settings["vcs.time"]); err == nil {
		info.BuildTime = t.UTC().Format(time.RFC3339)
		if info.Version == "" {
			info.Version = "dev-" + t.Format("20060102")
		}
	}

	if info.Version == "" {
		info.Version = "dev"
	}
	if info.Commit == "" {
		info.Commit = "unknown"
	}
	return info
}

// Full returns the full version string including commit
func Full() string {
	info := Get()
	return fmt.Sprintf("%s (commit: %s)", info.Version, info.Commit)
}

// String renders every field on one line
func (i Info) String() string {
	s := fmt.Sprintf("lineus %s (commit: %s, %s, %s)", i.Version, i.Commit, i.GoVersion, i.Platform)
	if i.BuildTime != "" {
		s += " built " + i.BuildTime
	}
	return s
}
