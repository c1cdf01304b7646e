// Package version carries the build identity stamped in with -ldflags, e.g.
//
//	go build -ldflags "-X github.com/banshee-data/ocelot/internal/version.Version=v0.3.0" ./cmd/ocelot
package version

import "fmt"

var (
	// Version is the release tag
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String formats the build identity for -version output and startup logs.
func String() string {
	return fmt.Sprintf("ocelot %s (%s, built %s)", Version, GitSHA, BuildTime)
}
