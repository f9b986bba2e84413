// Package entities holds domain objects with behavior that are shared by
// the core services and the storage adapters.
package entities

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"registry-core/internal/types"
)

// BugVersionTable maps package full name to defective version to advice.
type BugVersionTable map[string]map[string]types.BugVersionAdvice

// BugVersion is the immutable registry-wide advice table loaded from the
// reserved bug-versions package.
type BugVersion struct {
	data BugVersionTable
}

func NewBugVersion(data BugVersionTable) *BugVersion {
	copied := make(BugVersionTable, len(data))
	for fullname, versions := range data {
		inner := make(map[string]types.BugVersionAdvice, len(versions))
		for version, advice := range versions {
			inner[version] = advice
		}
		copied[fullname] = inner
	}
	return &BugVersion{data: copied}
}

// ParseBugVersion builds a BugVersion from the raw config["bug-versions"]
// JSON. An empty or null payload yields an empty table.
func ParseBugVersion(raw json.RawMessage) (*BugVersion, error) {
	data := BugVersionTable{}
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("invalid bug-versions config").
				WithCause(err)
		}
	}
	return NewBugVersion(data), nil
}

// ListAllPackagesHasBugs returns every package named in the table, sorted.
func (b *BugVersion) ListAllPackagesHasBugs() []string {
	names := make([]string, 0, len(b.data))
	for fullname := range b.data {
		names = append(names, fullname)
	}
	sort.Strings(names)
	return names
}

func (b *BugVersion) FixVersion(fullname string, version string) (types.BugVersionAdvice, bool) {
	versions, ok := b.data[fullname]
	if !ok {
		return types.BugVersionAdvice{}, false
	}
	advice, ok := versions[version]
	return advice, ok
}

// FixManifest derives the manifest served in place of bugManifest from the
// manifest of the fixed version. The requested name is kept, the version
// is the fixed one and deprecated carries the warning.
func (b *BugVersion) FixManifest(bugManifest types.Manifest, fixedManifest types.Manifest) (types.Manifest, bool) {
	advice, ok := b.FixVersion(bugManifest.Name, bugManifest.Version)
	if !ok {
		return types.Manifest{}, false
	}
	fixed := fixedManifest.Clone()
	if bugManifest.Name != "" {
		fixed.Name = bugManifest.Name
	}
	fixed.Version = advice.FixedVersion
	fixed.Deprecated = DeprecatedMessage(advice, bugManifest.Version)
	return fixed, true
}

func DeprecatedMessage(advice types.BugVersionAdvice, originalVersion string) string {
	return fmt.Sprintf("[WARNING] Use %s instead of %s, reason: %s", advice.FixedVersion, originalVersion, advice.Reason)
}
