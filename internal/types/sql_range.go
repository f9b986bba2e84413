package types

// SqlComparator is one comparator of a range projected onto the padded
// version column used by storage.
type SqlComparator struct {
	Op             ComparatorOp
	PaddingVersion string
	PreRelease     bool
}

// SqlRange is a storage-friendly projection of a semver range. Every
// version satisfying the source range lies within [MinVersion, MaxVersion]
// under the stated inclusivity. Conditions holds the OR-of-AND comparator
// sets for backends able to evaluate them.
type SqlRange struct {
	MinVersion         string
	MinInclusive       bool
	MaxVersion         string
	MaxInclusive       bool
	IncludesPreRelease bool
	Conditions         [][]SqlComparator
}
