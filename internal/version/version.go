// Package version exposes build information injected with ldflags, e.g.
//
//	go build -ldflags "-X github.com/sean-rowe/weather-switch/internal/version.Version=1.2.0"
package version

import (
	"runtime"
	"time"
)

// Build-time variables. The defaults apply to development builds.
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
	GitBranch = "unknown"
)

// Info is served at /version.
type Info struct {
	Version   string     `json:"version"`
	BuildTime string     `json:"build_time"`
	GitCommit string     `json:"git_commit"`
	GitBranch string     `json:"git_branch"`
	GoVersion string     `json:"go_version"`
	Platform  string     `json:"platform"`
	BuildDate *time.Time `json:"build_date,omitempty"`
}

// Get returns the build information of the running binary. BuildDate is set
// only when BuildTime is an RFC3339 timestamp.
func Get() Info {
	info := Info{
		Version:   Version,
		BuildTime: BuildTime,
		GitCommit: GitCommit,
		GitBranch: GitBranch,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}

	if t, err := time.Parse(time.RFC3339, BuildTime); err == nil {
		info.BuildDate = &t
	}

	return info
}
