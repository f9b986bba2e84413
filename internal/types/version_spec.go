package types

// VersionSpec is a parsed package request selector such as
// "lodash@^4.17.0" or "alias@npm:lodash@4".
type VersionSpec struct {
	Kind      SpecKind
	Name      string
	Raw       string
	FetchSpec string
	SubSpec   *VersionSpec
}
