// Package version carries build metadata stamped in with -ldflags.
package version

import "fmt"

var (
	// Version is the sonarmap release.
	Version = "dev"
	// GitSHA is the commit the binary was built from.
	GitSHA = "unknown"
)

// String formats the build metadata for logs and -version.
func String() string {
	return fmt.Sprintf("sonarmap %s (%s)", Version, GitSHA)
}
