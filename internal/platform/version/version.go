package version

import (
	"runtime"
	"runtime/debug"
)

// Build information, injected via ldflags at build time
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

type Info struct {
	Service   string `json:"service"`
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

// Get returns the current build information. When ldflags were not set the
// VCS stamp embedded by the Go toolchain is used instead.
func Get() Info {
	info := Info{
		Service:   "livetranslate",
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	}

	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			switch {
			case s.Key == "vcs.revision" && info.Commit == "unknown":
				info.Commit = s.Value
			case s.Key == "vcs.time" && info.BuildTime == "unknown":
				info.BuildTime = s.Value
			}
		}
	}
	return info
}
