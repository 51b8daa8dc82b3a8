package mudflap

import (
	"strings"

	"golang.org/x/mod/semver"

	internal "github.com/kolkov/mudflap/internal/mudflap/api"
)

// Version information for the mudflap runtime.
const (
	// Version is the current version of the runtime.
	Version = "0.1.0"

	// VersionMajor is the major version number.
	VersionMajor = 0

	// VersionMinor is the minor version number.
	VersionMinor = 1

	// VersionPatch is the patch version number.
	VersionPatch = 0
)

// Info provides runtime information about the mudflap runtime.
type Info struct {
	// Version is the runtime version string.
	Version string

	// Options is the active option string.
	Options string

	// Enabled indicates whether checking is active.
	Enabled bool
}

// GetInfo returns information about the runtime.
//
// Example:
//
//	info := mudflap.GetInfo()
//	fmt.Printf("mudflap %s (%s)\n", info.Version, info.Options)
func GetInfo() Info {
	return Info{
		Version: Version,
		Options: internal.Runtime().Options().String(),
		Enabled: internal.Enabled(),
	}
}

// Compatible reports whether this runtime satisfies the minimum version
// required, given as "1.2.3", "v1.2" or similar. The major versions must
// match. Malformed requirements are never satisfied.
func Compatible(required string) bool {
	req := canonical(required)
	if !semver.IsValid(req) {
		return false
	}
	have := canonical(Version)
	return semver.Major(req) == semver.Major(have) && semver.Compare(have, req) >= 0
}

func canonical(v string) string {
	v = strings.TrimSpace(v)
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}
