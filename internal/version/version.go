// Package version provides centralized version management for the
// Intersectx chat client. It supports semantic versioning and build-time
// injection via -ldflags.
package version

import (
	"fmt"
	"runtime"

	"github.com/Masterminds/semver/v3"
)

// Build information that can be set at compile time via -ldflags.
var (
	// Version is the semantic version of the client.
	Version = "0.3.0"

	// GitCommit is the git commit hash when the binary was built.
	GitCommit = "unknown"

	// BuildDate is the date when the binary was built.
	BuildDate = "unknown"
)

// Info represents the full version information.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"gitCommit"`
	BuildDate string `json:"buildDate"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

// Get returns the complete version information for the running binary.
func Get() Info {
	return Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// GetBaseVersion returns the base version (major.minor.patch) without
// prerelease or build metadata.
func GetBaseVersion() string {
	sv, err := semver.NewVersion(Version)
	if err != nil {
		return Version
	}
	return fmt.Sprintf("%d.%d.%d", sv.Major(), sv.Minor(), sv.Patch())
}

// IsValid reports whether the current version string parses as semver.
func IsValid() bool {
	_, err := semver.NewVersion(Version)
	return err == nil
}

// Compare compares the current version against another version string.
// It returns -1, 0 or 1, and an error when either version is invalid.
func Compare(other string) (int, error) {
	current, err := semver.NewVersion(Version)
	if err != nil {
		return 0, fmt.Errorf("invalid current version %q: %w", Version, err)
	}
	target, err := semver.NewVersion(other)
	if err != nil {
		return 0, fmt.Errorf("invalid version %q: %w", other, err)
	}
	return current.Compare(target), nil
}

// String returns a human-readable version line.
func (i Info) String() string {
	return fmt.Sprintf("intersectx v%s (%s, built %s, %s)", i.Version, i.GitCommit, i.BuildDate, i.Platform)
}
