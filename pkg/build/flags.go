// SPDX-License-Identifier: MIT
//
// Package build exposes build metadata embedded at link time:
//
//	go build -ldflags "-X lightsync/pkg/build.buildName=lightsync \
//	  -X lightsync/pkg/build.buildVersion=0.3.0 \
//	  -X lightsync/pkg/build.buildCommit=$(git rev-parse --short HEAD) \
//	  -X lightsync/pkg/build.buildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
//
// A binary built without any flags reports development defaults.
package build

import "fmt"

// Description is the one-line summary shown in CLI help.
const Description = "Stream live audio band energies to networked light devices"

type ldFlags struct {
	Name        string
	Time        string
	Commit      string
	Version     string
	Description string
}

// String renders the flags for --version output.
func (f *ldFlags) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", f.Name, f.Version, f.Commit, f.Time)
}

// Package-level variables for build information. These are populated by -ldflags
// during compilation.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = defaultFlags()
)

func defaultFlags() *ldFlags {
	return &ldFlags{
		Name:        "lightsync",
		Time:        "unknown",
		Commit:      "unknown",
		Version:     "dev",
		Description: Description,
	}
}

// Initialize copies the ldflags variables into the build info. With no
// flags set it keeps the development defaults; a partial set is an error
// since it means the build script is broken.
func Initialize() error {
	if buildName == "" && buildTime == "" && buildCommit == "" && buildVersion == "" {
		buildFlags = defaultFlags()
		return nil
	}

	if buildName == "" {
		return fmt.Errorf("BuildName is required")
	}
	if buildTime == "" {
		return fmt.Errorf("BuildTime is required")
	}
	if buildCommit == "" {
		return fmt.Errorf("BuildCommit is required")
	}
	if buildVersion == "" {
		return fmt.Errorf("BuildVersion is required")
	}

	buildFlags.Name = buildName
	buildFlags.Time = buildTime
	buildFlags.Commit = buildCommit
	buildFlags.Version = buildVersion

	return nil
}

// GetBuildFlags returns the current build information.
func GetBuildFlags() *ldFlags {
	return buildFlags
}
