package types

// RegistrySnapshot is the YAML form of a registry used by the file backend
// and as the import source for the SQL backend.
type RegistrySnapshot struct {
	Packages    []SnapshotPackage `yaml:"packages"`
	ProxyCaches []ProxyCacheEntry `yaml:"proxy_caches,omitempty"`
}

type SnapshotPackage struct {
	// PackageID defaults to the package full name.
	PackageID string            `yaml:"id,omitempty"`
	Name      string            `yaml:"name"`
	Tags      map[string]string `yaml:"tags,omitempty"`
	Block     string            `yaml:"block,omitempty"`
	Versions  []SnapshotVersion `yaml:"versions"`
}

// SnapshotVersion holds the manifests of one version as plain YAML maps.
// A missing abbreviated manifest is derived from the full one.
type SnapshotVersion struct {
	Manifest    map[string]any `yaml:"manifest"`
	Abbreviated map[string]any `yaml:"abbreviated,omitempty"`
}
