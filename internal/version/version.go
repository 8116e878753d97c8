// Package version holds build metadata injected with
// -ldflags "-X bdsgp/internal/version.Version=v1.2.3 ...".
package version

import "runtime/debug"

var (
	Version = ""
	Commit  = ""
	// Date is the UTC build time, RFC3339.
	Date = ""
	// Dirty is "dirty" when the tree had uncommitted changes.
	Dirty = ""
)

// Info is the /version response body.
type Info struct {
	Version string `json:"version"`
	Commit  string `json:"commit,omitempty"`
	Date    string `json:"date,omitempty"`
	Go      string `json:"go,omitempty"`
}

// String is Version for releases, "dev-<sha>" (with a trailing * when dirty)
// for snapshot builds, and "dev" otherwise.
func String() string {
	if Version != "" {
		return Version
	}
	if Commit == "" {
		return "dev"
	}
	if Dirty == "dirty" {
		return "dev-" + Commit + "*"
	}
	return "dev-" + Commit
}

// UserAgent identifies outbound requests to the directory and MOTD APIs.
func UserAgent() string {
	return "bdsgp-directory/" + String()
}

// Current collects the injected metadata plus the toolchain from the binary.
func Current() Info {
	info := Info{Version: String(), Commit: Commit, Date: Date}
	if bi, ok := debug.ReadBuildInfo(); ok {
		info.Go = bi.GoVersion
	}
	return info
}
