package version

import "fmt"

// these values are set at build time via ldflags
var (
	Version   = "dev"
	GitCommit = "none"
	BuildDate = "unknown"

	FullVersion = composeVersion()
)

func composeVersion() string {
	return fmt.Sprintf("%s (commit: %s, built at: %s)", Version, GitCommit, BuildDate)
}
