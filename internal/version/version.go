package version

import (
	"fmt"
	"log/slog"
)

// AppName is the service name reported by the CLI and the health endpoint.
const AppName = "packdim"

// Build-time variables set by ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Build describes the running binary.
type Build struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
}

// Get returns the build information of the running binary.
func Get() Build {
	return Build{Version: Version, GitCommit: GitCommit, BuildDate: BuildDate}
}

// LogValue implements slog.LogValuer.
func (b Build) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("version", b.Version),
		slog.String("commit", b.GitCommit),
		slog.String("date", b.BuildDate),
	)
}

// String returns a one-line version banner.
func String() string {
	b := Get()
	return fmt.Sprintf("%s %s (commit %s, built %s)", AppName, b.Version, b.GitCommit, b.BuildDate)
}
