package wire

import (
	"fmt"

	"golang.org/x/mod/semver"
)

// CurrentVersion is the wire format version this build emits in
// top-level envelopes. Readers here never branch on it, but emitting
// it lets other implementations do so.
const CurrentVersion = "1.0"

// ValidateVersion checks the optional top-level envelope "version"
// field. When present it must at least be a well-formed semantic
// version; decoding never branches on it today, but a malformed
// version string is still worth rejecting early rather than silently
// ignoring.
func ValidateVersion(version string) error {
	if version == "" {
		return nil
	}
	v := version
	if v[0] != 'v' {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return fmt.Errorf("version %q is not a valid semantic version", version)
	}
	return nil
}

// CompareVersions reports -1, 0, or 1 comparing two version strings,
// for callers that want to reject documents from a newer major version
// than this build understands. Both inputs must already have passed
// ValidateVersion.
func CompareVersions(a, b string) int {
	return semver.Compare(normalize(a), normalize(b))
}

func normalize(v string) string {
	if v == "" {
		return v
	}
	if v[0] != 'v' {
		return "v" + v
	}
	return v
}
