package types

type SpecKind string

const (
	SpecKindTag       SpecKind = "tag"
	SpecKindVersion   SpecKind = "version"
	SpecKindRange     SpecKind = "range"
	SpecKindAlias     SpecKind = "alias"
	SpecKindGit       SpecKind = "git"
	SpecKindFile      SpecKind = "file"
	SpecKindDirectory SpecKind = "directory"
	SpecKindRemote    SpecKind = "remote"
)

type ComparatorOp string

const (
	ComparatorOpEq  ComparatorOp = "="
	ComparatorOpGte ComparatorOp = ">="
	ComparatorOpLte ComparatorOp = "<="
	ComparatorOpGt  ComparatorOp = ">"
	ComparatorOpLt  ComparatorOp = "<"
)

// DistName is the kind of cached artifact a proxy cache entry points at.
type DistName string

const (
	DistNameManifests           DistName = "package.json"
	DistNameAbbreviatedManifest DistName = "abbreviated.json"
	DistNameFullManifests       DistName = "full-manifests.json"
	DistNameAbbreviated         DistName = "abbreviated-manifests.json"
)

const (
	// BugVersionsPackage is the reserved package whose latest manifest
	// carries the registry-wide bug version advice under config["bug-versions"].
	BugVersionsPackage = "bug-versions"
	LatestTag          = "latest"
)
