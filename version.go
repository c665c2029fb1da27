package mediainfo

import "runtime"

// Version is the semantic version of the mediainfo module.
const Version = "0.1.0"

// BuildInfo describes the running build.
type BuildInfo struct {
	Version   string
	GitCommit string // set via -ldflags
	BuildTime string // set via -ldflags
	GoVersion string
}

// GetBuildInfo returns the module version and the build metadata injected at
// link time:
//
//	go build -ldflags="-X github.com/simonhull/mediainfo.gitCommit=$(git rev-parse --short HEAD) \
//	  -X github.com/simonhull/mediainfo.buildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
//
// Unset values read "unknown"; GoVersion falls back to the running toolchain.
func GetBuildInfo() BuildInfo {
	goVer := goVersion
	if goVer == "unknown" {
		goVer = runtime.Version()
	}
	return BuildInfo{
		Version:   Version,
		GitCommit: gitCommit,
		BuildTime: buildTime,
		GoVersion: goVer,
	}
}

var (
	gitCommit = "unknown"
	buildTime = "unknown"
	goVersion = "unknown"
)
