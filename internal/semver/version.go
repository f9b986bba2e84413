// Package semver implements the npm flavour of semantic versioning on top
// of Masterminds/semver: loose exact-version parsing, range desugaring with
// node-semver pre-release rules, and the padded form used by storage.
package semver

import (
	"fmt"
	"strings"

	msv "github.com/Masterminds/semver/v3"
)

const paddingWidth = 16

// MaxSentinel stands in for an unbounded maximum.
const MaxSentinel = "9999999999999999.9999999999999999.9999999999999999"

// MinVersion is the lowest version any range can admit.
const MinVersion = "0.0.0"

// Parse reads a complete version, tolerating the "=" and "v" prefixes
// npm clients emit. Partial versions such as "1.2" are rejected.
func Parse(value string) (*msv.Version, error) {
	s := strings.TrimSpace(value)
	s = strings.TrimSpace(strings.TrimLeft(s, "="))
	s = strings.TrimPrefix(strings.TrimPrefix(s, "v"), "V")
	return msv.StrictNewVersion(s)
}

// Valid returns the normalized version string, or "" when value is not
// a complete version.
func Valid(value string) string {
	v, err := Parse(value)
	if err != nil {
		return ""
	}
	return Format(v)
}

// Format renders major.minor.patch[-prerelease]; build metadata is dropped.
func Format(v *msv.Version) string {
	if v.Prerelease() == "" {
		return fmt.Sprintf("%d.%d.%d", v.Major(), v.Minor(), v.Patch())
	}
	return fmt.Sprintf("%d.%d.%d-%s", v.Major(), v.Minor(), v.Patch(), v.Prerelease())
}

func IsPreRelease(v *msv.Version) bool {
	return v.Prerelease() != ""
}

// PaddingVersion left-pads major, minor and patch so that lexical order of
// the result matches numeric order of release versions. Pre-release
// identifiers are not represented.
func PaddingVersion(v *msv.Version) string {
	return padSegment(v.Major()) + padSegment(v.Minor()) + padSegment(v.Patch())
}

// PaddingOf is PaddingVersion for a version string. Unparsable input pads
// to all zeros.
func PaddingOf(value string) string {
	v, err := Parse(value)
	if err != nil {
		return strings.Repeat("0", paddingWidth*3)
	}
	return PaddingVersion(v)
}

// MaxSegment is the largest major, minor or patch number the padded form
// holds exactly. Larger segments saturate, so storage rejects them.
const MaxSegment uint64 = 9999999999999999

// Paddable reports whether every release segment of v is at most MaxSegment.
func Paddable(v *msv.Version) bool {
	return v.Major() <= MaxSegment && v.Minor() <= MaxSegment && v.Patch() <= MaxSegment
}

func padSegment(n uint64) string {
	s := fmt.Sprintf("%0*d", paddingWidth, n)
	if len(s) > paddingWidth {
		return strings.Repeat("9", paddingWidth)
	}
	return s
}

func sameTuple(a *msv.Version, b *msv.Version) bool {
	return a.Major() == b.Major() && a.Minor() == b.Minor() && a.Patch() == b.Patch()
}
