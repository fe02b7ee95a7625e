package bulkmailer

import (
	"fmt"
	"runtime"
)

// Version information, injected during build time via ldflags.
// The values below are fallbacks for development builds.
var (
	// Version is the semantic version of the tool.
	Version = "dev"

	// GitCommit is the git commit hash when the binary was built.
	GitCommit = "unknown"

	// BuildDate is the date when the binary was built.
	BuildDate = "unknown"
)

// GetVersion returns the current version string.
func GetVersion() string {
	return Version
}

// VersionString returns a human-readable version line.
func VersionString() string {
	return fmt.Sprintf("bulkmailer %s (commit %s, built %s, %s/%s)",
		Version, GitCommit, BuildDate, runtime.GOOS, runtime.GOARCH)
}
