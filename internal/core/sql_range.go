package core

import (
	msv "github.com/Masterminds/semver/v3"

	"registry-core/internal/semver"
	"registry-core/internal/types"
)

// bound is one side of an interval on the padded version axis.
type bound struct {
	version   *msv.Version
	padding   string
	inclusive bool
}

var (
	openLower = newBound(msv.New(0, 0, 0, "", ""), true)
	openUpper = newBound(msv.MustParse(semver.MaxSentinel), true)
)

func newBound(v *msv.Version, inclusive bool) bound {
	release := msv.New(v.Major(), v.Minor(), v.Patch(), "", "")
	return bound{version: release, padding: semver.PaddingVersion(release), inclusive: inclusive}
}

// NewSqlRange projects a parsed range onto the padded version column.
// Within a comparator set the tightest bounds are kept; across || sets the
// loosest, so the result always contains every satisfying version.
func NewSqlRange(r semver.Range) types.SqlRange {
	out := types.SqlRange{IncludesPreRelease: includesPreRelease(r)}
	var lower, upper *bound
	for _, set := range r.Sets {
		setLower, setUpper := openLower, openUpper
		conditions := []types.SqlComparator{}
		for _, c := range set {
			if c.Any() {
				continue
			}
			comparator := toSqlComparator(c, out.IncludesPreRelease)
			conditions = append(conditions, comparator)
			b := newBound(c.Version, comparator.Op != types.ComparatorOpGt && comparator.Op != types.ComparatorOpLt)
			switch comparator.Op {
			case types.ComparatorOpGte, types.ComparatorOpGt:
				setLower = tighterLower(setLower, b)
			case types.ComparatorOpLte, types.ComparatorOpLt:
				setUpper = tighterUpper(setUpper, b)
			case types.ComparatorOpEq:
				setLower = tighterLower(setLower, b)
				setUpper = tighterUpper(setUpper, b)
			}
		}
		out.Conditions = append(out.Conditions, conditions)
		if lower == nil || looserLower(*lower, setLower) {
			lower = &setLower
		}
		if upper == nil || looserUpper(*upper, setUpper) {
			upper = &setUpper
		}
	}
	if lower == nil {
		lower = &openLower
	}
	if upper == nil {
		upper = &openUpper
	}
	out.MinVersion = semver.Format(lower.version)
	out.MinInclusive = lower.inclusive
	out.MaxVersion = semver.Format(upper.version)
	out.MaxInclusive = upper.inclusive
	return out
}

func includesPreRelease(r semver.Range) bool {
	for _, set := range r.Sets {
		for _, c := range set {
			if c.UserPreRelease() {
				return true
			}
		}
	}
	return false
}

// toSqlComparator maps a comparator onto padded versions. Padding drops the
// pre-release, so a pre-release pads to the same value as its release:
// strict comparisons against a user pre-release are widened to inclusive
// ones, and so is every "<" once pre-release rows are candidates. The exact
// range is re-checked in memory afterwards.
func toSqlComparator(c semver.Comparator, withPreRelease bool) types.SqlComparator {
	op := c.Op
	pre := c.UserPreRelease()
	switch {
	case op == types.ComparatorOpLt && (pre || withPreRelease):
		op = types.ComparatorOpLte
	case op == types.ComparatorOpGt && pre:
		op = types.ComparatorOpGte
	}
	return types.SqlComparator{
		Op:             op,
		PaddingVersion: semver.PaddingVersion(c.Version),
		PreRelease:     pre,
	}
}

func tighterLower(current bound, candidate bound) bound {
	if candidate.padding > current.padding {
		return candidate
	}
	if candidate.padding == current.padding && !candidate.inclusive {
		return candidate
	}
	return current
}

func tighterUpper(current bound, candidate bound) bound {
	if candidate.padding < current.padding {
		return candidate
	}
	if candidate.padding == current.padding && !candidate.inclusive {
		return candidate
	}
	return current
}

func looserLower(current bound, candidate bound) bool {
	if candidate.padding != current.padding {
		return candidate.padding < current.padding
	}
	return candidate.inclusive && !current.inclusive
}

func looserUpper(current bound, candidate bound) bool {
	if candidate.padding != current.padding {
		return candidate.padding > current.padding
	}
	return candidate.inclusive && !current.inclusive
}
