package semver

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	msv "github.com/Masterminds/semver/v3"

	"registry-core/internal/types"
)

// Comparator is a primitive comparison against a single version. A nil
// Version matches everything.
type Comparator struct {
	Op      types.ComparatorOp
	Version *msv.Version
	// synthetic marks the "-0" pre-release appended to exclusive upper
	// bounds during desugaring; it is not a pre-release the user asked for.
	synthetic bool
}

func (c Comparator) Any() bool {
	return c.Version == nil
}

// UserPreRelease reports whether the comparator carries a pre-release
// written in the range expression itself.
func (c Comparator) UserPreRelease() bool {
	return c.Version != nil && c.Version.Prerelease() != "" && !c.synthetic
}

func (c Comparator) String() string {
	if c.Any() {
		return "*"
	}
	return string(c.Op) + Format(c.Version)
}

func (c Comparator) test(v *msv.Version) bool {
	if c.Any() {
		return true
	}
	cmp := v.Compare(c.Version)
	switch c.Op {
	case types.ComparatorOpEq:
		return cmp == 0
	case types.ComparatorOpGte:
		return cmp >= 0
	case types.ComparatorOpGt:
		return cmp > 0
	case types.ComparatorOpLte:
		return cmp <= 0
	case types.ComparatorOpLt:
		return cmp < 0
	default:
		return false
	}
}

// Range is a parsed npm range: a union (||) of comparator sets, each set
// an intersection of comparators.
type Range struct {
	raw  string
	Sets [][]Comparator
}

func (r Range) String() string {
	return r.raw
}

// ParseRange parses and desugars an npm range expression (caret, tilde,
// x-ranges, hyphen ranges and primitive operators).
func ParseRange(raw string) (Range, error) {
	out := Range{raw: raw}
	for _, set := range strings.Split(raw, "||") {
		comparators, err := parseComparatorSet(set)
		if err != nil {
			return Range{}, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("invalid range: %s", raw)).
				WithCause(err)
		}
		out.Sets = append(out.Sets, comparators)
	}
	return out, nil
}

// Test reports whether version satisfies the range. Pre-release versions
// only satisfy a set that names a pre-release on the same
// major.minor.patch tuple.
func (r Range) Test(version string) bool {
	v, err := Parse(version)
	if err != nil {
		return false
	}
	return r.TestVersion(v)
}

func (r Range) TestVersion(v *msv.Version) bool {
	for _, set := range r.Sets {
		if testSet(set, v) {
			return true
		}
	}
	return false
}

// MaxSatisfying returns the highest entry of versions inside the range, or
// "" when none is. Unparsable entries are skipped.
func MaxSatisfying(versions []string, r Range) string {
	var best *msv.Version
	bestRaw := ""
	for _, raw := range versions {
		v, err := Parse(raw)
		if err != nil || !r.TestVersion(v) {
			continue
		}
		if best == nil || v.Compare(best) > 0 {
			best = v
			bestRaw = raw
		}
	}
	return bestRaw
}

func testSet(set []Comparator, v *msv.Version) bool {
	for _, c := range set {
		if !c.test(v) {
			return false
		}
	}
	if !IsPreRelease(v) {
		return true
	}
	for _, c := range set {
		if c.Any() || !IsPreRelease(c.Version) {
			continue
		}
		if sameTuple(c.Version, v) {
			return true
		}
	}
	return false
}

func parseComparatorSet(set string) ([]Comparator, error) {
	set = strings.TrimSpace(set)
	if from, to, ok := strings.Cut(set, " - "); ok {
		return hyphenRange(strings.TrimSpace(from), strings.TrimSpace(to))
	}
	tokens := joinOperators(strings.Fields(set))
	if len(tokens) == 0 {
		return []Comparator{{}}, nil
	}
	var out []Comparator
	for _, token := range tokens {
		comparators, err := desugar(token)
		if err != nil {
			return nil, err
		}
		out = append(out, comparators...)
	}
	return out, nil
}

// joinOperators glues a bare operator token to the version that follows
// it, so ">= 1.2.3" reads like ">=1.2.3".
func joinOperators(fields []string) []string {
	var out []string
	for i := 0; i < len(fields); i++ {
		token := fields[i]
		if strings.Trim(token, "<>=~^") == "" && i+1 < len(fields) {
			token += fields[i+1]
			i++
		}
		out = append(out, token)
	}
	return out
}

var operatorPrefixes = []string{"~>", ">=", "<=", ">", "<", "=", "~", "^"}

func desugar(token string) ([]Comparator, error) {
	op := ""
	for _, prefix := range operatorPrefixes {
		if strings.HasPrefix(token, prefix) {
			op = prefix
			break
		}
	}
	p, err := parsePartial(token[len(op):])
	if err != nil {
		return nil, err
	}
	switch op {
	case "", "=":
		return plainRange(p), nil
	case "~", "~>":
		return tildeRange(p), nil
	case "^":
		return caretRange(p), nil
	case ">":
		return greaterThan(p), nil
	case ">=":
		if p.wild == wildMajor {
			return []Comparator{{}}, nil
		}
		return []Comparator{p.lower()}, nil
	case "<":
		return []Comparator{p.exclusiveLower()}, nil
	case "<=":
		if p.wild == wildMajor {
			return []Comparator{{}}, nil
		}
		return []Comparator{p.upper()}, nil
	default:
		return nil, fmt.Errorf("unknown operator %q", op)
	}
}

const (
	wildNone = iota
	wildPatch
	wildMinor
	wildMajor
)

// partial is a possibly incomplete version such as "1", "1.2.x" or "*".
type partial struct {
	major, minor, patch uint64
	pre                 string
	wild                int
}

func parsePartial(value string) (partial, error) {
	s := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(value), "v"), "V")
	if idx := strings.IndexByte(s, '+'); idx >= 0 {
		s = s[:idx]
	}
	p := partial{}
	if idx := strings.IndexByte(s, '-'); idx >= 0 {
		p.pre = s[idx+1:]
		s = s[:idx]
		if p.pre == "" {
			return partial{}, fmt.Errorf("empty pre-release in %q", value)
		}
	}
	if s == "" {
		if p.pre != "" {
			return partial{}, fmt.Errorf("pre-release without version in %q", value)
		}
		p.wild = wildMajor
		return p, nil
	}
	parts := strings.Split(s, ".")
	if len(parts) > 3 {
		return partial{}, fmt.Errorf("too many version segments in %q", value)
	}
	segments := []*uint64{&p.major, &p.minor, &p.patch}
	for i := range segments {
		if i >= len(parts) || isWildcard(parts[i]) {
			p.wild = wildMajor - i
			break
		}
		n, err := strconv.ParseUint(parts[i], 10, 64)
		if err != nil {
			return partial{}, fmt.Errorf("invalid version segment %q in %q", parts[i], value)
		}
		*segments[i] = n
	}
	if p.wild != wildNone && p.pre != "" {
		return partial{}, fmt.Errorf("pre-release on partial version %q", value)
	}
	return p, nil
}

func isWildcard(segment string) bool {
	return segment == "x" || segment == "X" || segment == "*"
}

func gte(major, minor, patch uint64, pre string) Comparator {
	return Comparator{Op: types.ComparatorOpGte, Version: msv.New(major, minor, patch, pre, "")}
}

// ltZero is the exclusive upper bound "<M.m.p-0" that keeps every
// pre-release of M.m.p out of the range.
func ltZero(major, minor, patch uint64) Comparator {
	return Comparator{Op: types.ComparatorOpLt, Version: msv.New(major, minor, patch, "0", ""), synthetic: true}
}

func (p partial) exact(op types.ComparatorOp) Comparator {
	return Comparator{Op: op, Version: msv.New(p.major, p.minor, p.patch, p.pre, "")}
}

// lower is the smallest version the partial names (">=").
func (p partial) lower() Comparator {
	if p.wild == wildNone {
		return p.exact(types.ComparatorOpGte)
	}
	return gte(p.major, p.minor, 0, "")
}

// upper is the inclusive reading of "<=" for the partial.
func (p partial) upper() Comparator {
	switch p.wild {
	case wildMinor:
		return ltZero(p.major+1, 0, 0)
	case wildPatch:
		return ltZero(p.major, p.minor+1, 0)
	default:
		return p.exact(types.ComparatorOpLte)
	}
}

// exclusiveLower is "<" for the partial.
func (p partial) exclusiveLower() Comparator {
	switch p.wild {
	case wildMajor:
		return ltZero(0, 0, 0)
	case wildMinor:
		return ltZero(p.major, 0, 0)
	case wildPatch:
		return ltZero(p.major, p.minor, 0)
	default:
		return p.exact(types.ComparatorOpLt)
	}
}

func plainRange(p partial) []Comparator {
	switch p.wild {
	case wildMajor:
		return []Comparator{{}}
	case wildMinor:
		return []Comparator{gte(p.major, 0, 0, ""), ltZero(p.major+1, 0, 0)}
	case wildPatch:
		return []Comparator{gte(p.major, p.minor, 0, ""), ltZero(p.major, p.minor+1, 0)}
	default:
		return []Comparator{p.exact(types.ComparatorOpEq)}
	}
}

func tildeRange(p partial) []Comparator {
	switch p.wild {
	case wildMajor:
		return []Comparator{{}}
	case wildMinor:
		return []Comparator{gte(p.major, 0, 0, ""), ltZero(p.major+1, 0, 0)}
	default:
		return []Comparator{p.lower(), ltZero(p.major, p.minor+1, 0)}
	}
}

func caretRange(p partial) []Comparator {
	switch {
	case p.wild == wildMajor:
		return []Comparator{{}}
	case p.wild == wildMinor:
		return []Comparator{gte(p.major, 0, 0, ""), ltZero(p.major+1, 0, 0)}
	case p.major > 0:
		return []Comparator{p.lower(), ltZero(p.major+1, 0, 0)}
	case p.wild == wildPatch || p.minor > 0:
		return []Comparator{p.lower(), ltZero(0, p.minor+1, 0)}
	default:
		return []Comparator{p.lower(), ltZero(0, 0, p.patch+1)}
	}
}

func greaterThan(p partial) []Comparator {
	switch p.wild {
	case wildMajor:
		return []Comparator{ltZero(0, 0, 0)}
	case wildMinor:
		return []Comparator{gte(p.major+1, 0, 0, "")}
	case wildPatch:
		return []Comparator{gte(p.major, p.minor+1, 0, "")}
	default:
		return []Comparator{p.exact(types.ComparatorOpGt)}
	}
}

func hyphenRange(from string, to string) ([]Comparator, error) {
	lo, err := parsePartial(from)
	if err != nil {
		return nil, err
	}
	hi, err := parsePartial(to)
	if err != nil {
		return nil, err
	}
	var out []Comparator
	if lo.wild != wildMajor {
		out = append(out, lo.lower())
	}
	if hi.wild != wildMajor {
		out = append(out, hi.upper())
	}
	if len(out) == 0 {
		out = append(out, Comparator{})
	}
	return out, nil
}
