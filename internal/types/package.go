package types

type Package struct {
	PackageID string
	Scope     string
	Name      string
}

func (p Package) FullName() string {
	if p.Scope == "" {
		return p.Name
	}
	return p.Scope + "/" + p.Name
}

type PackageTag struct {
	PackageID string
	Tag       string
	Version   string
}

type PackageVersion struct {
	PackageID string
	Version   string
}

type PackageVersionBlock struct {
	PackageID string
	Reason    string
}

// ProxyCacheEntry is a cached upstream artifact; FilePath is unique.
type ProxyCacheEntry struct {
	FullName string   `yaml:"fullname"`
	FileType DistName `yaml:"file_type"`
	FilePath string   `yaml:"file_path"`
	Version  string   `yaml:"version,omitempty"`
}
