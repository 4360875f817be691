// Package version holds build metadata for the annoscan binary.
package version

import (
	"runtime/debug"
)

// Build metadata, overridden via -ldflags "-X".
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

const shortCommitLen = 12

// InitBinaryVersion fills unset metadata from the embedded build info of
// module-aware builds (go install, go build with VCS stamping).
func InitBinaryVersion() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	applyBuildInfo(info)
}

func applyBuildInfo(info *debug.BuildInfo) {
	if Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}

	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if Commit == "unknown" && s.Value != "" {
				Commit = s.Value[:min(len(s.Value), shortCommitLen)]
			}
		case "vcs.time":
			if Date == "unknown" && s.Value != "" {
				Date = s.Value
			}
		}
	}
}

// String formats the metadata as printed by "annoscan version".
func String() string {
	return Version + " (commit: " + Commit + ", built: " + Date + ")"
}
