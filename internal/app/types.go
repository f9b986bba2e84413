package app

import (
	"registry-core/internal/adapters"
	"registry-core/internal/core"
	"registry-core/internal/types"
)

// BackendConfig selects and configures the storage a request runs against.
type BackendConfig struct {
	Backend      string
	SnapshotPath string
	DistDir      string
	MySQL        adapters.MySQLConfig
}

type ResolveVersionRequest struct {
	Backend        BackendConfig
	Spec           string
	WithBugVersion bool
}

type ResolveVersionResult struct {
	Spec    types.VersionSpec
	Version string
}

type ReadManifestRequest struct {
	Backend        BackendConfig
	Spec           string
	FullManifest   bool
	WithBugVersion bool
}

type ReadManifestResult struct {
	Spec     types.VersionSpec
	Manifest types.Manifest
}

type ListManifestsRequest struct {
	Backend        BackendConfig
	Package        string
	FullManifest   bool
	WithBugVersion bool
}

type ListManifestsResult struct {
	Manifests map[string]types.Manifest
	Gaps      []core.BugVersionGap
}

type BlockInfoRequest struct {
	Backend BackendConfig
	Package string
}

type BlockInfoResult struct {
	Blocked bool
	Reason  string
}

type PackagePublishedRequest struct {
	Backend BackendConfig
	Package string
}

type PackagePublishedResult struct {
	Handled bool
	Cleaned []string
	Failed  []string
}

type ImportRequest struct {
	SnapshotPath string
	MySQL        adapters.MySQLConfig
}

type ImportResult struct {
	Packages    int
	Versions    int
	ProxyCaches int
}
