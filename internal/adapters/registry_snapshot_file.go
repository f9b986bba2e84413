package adapters

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"gopkg.in/yaml.v3"

	"registry-core/internal/ports"
	"registry-core/internal/semver"
	"registry-core/internal/shared"
	"registry-core/internal/types"
)

// abbreviatedFields are the manifest fields npm clients receive in the
// abbreviated (install) document.
var abbreviatedFields = []string{
	"name", "version", "deprecated", "dependencies", "optionalDependencies",
	"devDependencies", "bundleDependencies", "peerDependencies", "peerDependenciesMeta",
	"acceptDependencies", "bin", "directories", "dist", "engines", "cpu", "os",
	"_hasShrinkwrap", "hasInstallScript", "funding",
}

type snapshotVersion struct {
	version     string
	padding     string
	preRelease  bool
	manifest    types.Manifest
	abbreviated types.Manifest
}

type snapshotPackage struct {
	pkg      types.Package
	tags     map[string]string
	block    string
	versions map[string]snapshotVersion
}

// RegistrySnapshotFile serves a registry held in a YAML snapshot file. The
// file is read once. Proxy cache changes are written back to its
// proxy_caches section.
type RegistrySnapshotFile struct {
	Path string

	mu          sync.Mutex
	loaded      bool
	snapshot    types.RegistrySnapshot
	byName      map[string]*snapshotPackage
	byID        map[string]*snapshotPackage
	proxyCaches map[string]types.ProxyCacheEntry
}

func NewRegistrySnapshotFile(path string) *RegistrySnapshotFile {
	return &RegistrySnapshotFile{Path: path}
}

// Snapshot returns the decoded file contents.
func (a *RegistrySnapshotFile) Snapshot() (types.RegistrySnapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.load(); err != nil {
		return types.RegistrySnapshot{}, err
	}
	return a.snapshot, nil
}

func (a *RegistrySnapshotFile) ListPackageVersionManifests(ctx context.Context, packageID string, full bool) (map[string]types.Manifest, error) {
	pkg, err := a.lookupID(ctx, packageID)
	if err != nil || pkg == nil {
		return nil, err
	}
	manifests := make(map[string]types.Manifest, len(pkg.versions))
	for version, v := range pkg.versions {
		if full {
			manifests[version] = v.manifest.Clone()
		} else {
			manifests[version] = v.abbreviated.Clone()
		}
	}
	return manifests, nil
}

func (a *RegistrySnapshotFile) FindPackage(ctx context.Context, scope string, name string) (*types.Package, error) {
	pkg, err := a.lookup(ctx, shared.FullName(scope, name))
	if err != nil || pkg == nil {
		return nil, err
	}
	out := pkg.pkg
	return &out, nil
}

func (a *RegistrySnapshotFile) FindPackageID(ctx context.Context, scope string, name string) (string, error) {
	pkg, err := a.lookup(ctx, shared.FullName(scope, name))
	if err != nil || pkg == nil {
		return "", err
	}
	return pkg.pkg.PackageID, nil
}

func (a *RegistrySnapshotFile) FindPackageTag(ctx context.Context, packageID string, tag string) (*types.PackageTag, error) {
	pkg, err := a.lookupID(ctx, packageID)
	if err != nil || pkg == nil {
		return nil, err
	}
	version, ok := pkg.tags[tag]
	if !ok {
		return nil, nil
	}
	return &types.PackageTag{PackageID: packageID, Tag: tag, Version: version}, nil
}

func (a *RegistrySnapshotFile) FindPackageVersion(ctx context.Context, packageID string, version string) (*types.PackageVersion, error) {
	pkg, err := a.lookupID(ctx, packageID)
	if err != nil || pkg == nil {
		return nil, err
	}
	if _, ok := pkg.versions[version]; !ok {
		return nil, nil
	}
	return &types.PackageVersion{PackageID: packageID, Version: version}, nil
}

func (a *RegistrySnapshotFile) FindVersionByTag(ctx context.Context, scope string, name string, tag string) (string, error) {
	pkg, err := a.lookup(ctx, shared.FullName(scope, name))
	if err != nil || pkg == nil {
		return "", err
	}
	return pkg.tags[tag], nil
}

func (a *RegistrySnapshotFile) FindMaxSatisfyVersion(ctx context.Context, scope string, name string, r types.SqlRange) (string, error) {
	candidates, err := a.versionsInRange(ctx, shared.FullName(scope, name), r, false)
	if err != nil || len(candidates) == 0 {
		return "", err
	}
	return candidates[0], nil
}

func (a *RegistrySnapshotFile) FindSatisfyVersionsWithPrerelease(ctx context.Context, scope string, name string, r types.SqlRange) ([]string, error) {
	return a.versionsInRange(ctx, shared.FullName(scope, name), r, true)
}

func (a *RegistrySnapshotFile) FindPackageBlock(ctx context.Context, packageID string) (*types.PackageVersionBlock, error) {
	pkg, err := a.lookupID(ctx, packageID)
	if err != nil || pkg == nil || pkg.block == "" {
		return nil, err
	}
	return &types.PackageVersionBlock{PackageID: packageID, Reason: pkg.block}, nil
}

func (a *RegistrySnapshotFile) FindPackageVersionManifest(ctx context.Context, packageID string, version string) (*types.Manifest, error) {
	v, err := a.lookupVersion(ctx, packageID, version)
	if err != nil || v == nil {
		return nil, err
	}
	manifest := v.manifest.Clone()
	return &manifest, nil
}

func (a *RegistrySnapshotFile) FindPackageAbbreviatedManifest(ctx context.Context, packageID string, version string) (*types.Manifest, error) {
	v, err := a.lookupVersion(ctx, packageID, version)
	if err != nil || v == nil {
		return nil, err
	}
	manifest := v.abbreviated.Clone()
	return &manifest, nil
}

func (a *RegistrySnapshotFile) FindProxyCaches(ctx context.Context, fullname string) ([]types.ProxyCacheEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.load(); err != nil {
		return nil, err
	}
	var entries []types.ProxyCacheEntry
	for _, entry := range a.proxyCaches {
		if entry.FullName == fullname {
			entries = append(entries, entry)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].FilePath < entries[j].FilePath })
	return entries, nil
}

func (a *RegistrySnapshotFile) SaveProxyCache(ctx context.Context, entry types.ProxyCacheEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.load(); err != nil {
		return err
	}
	a.proxyCaches[entry.FilePath] = entry
	return a.saveProxyCaches()
}

func (a *RegistrySnapshotFile) RemoveProxyCache(ctx context.Context, fullname string, filePath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.load(); err != nil {
		return err
	}
	entry, ok := a.proxyCaches[filePath]
	if !ok || entry.FullName != fullname {
		return nil
	}
	delete(a.proxyCaches, filePath)
	return a.saveProxyCaches()
}

// saveProxyCaches replaces the proxy_caches section of the snapshot file
// and leaves the rest of the document as it was read.
func (a *RegistrySnapshotFile) saveProxyCaches() error {
	entries := make([]types.ProxyCacheEntry, 0, len(a.proxyCaches))
	for _, entry := range a.proxyCaches {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].FilePath < entries[j].FilePath })

	data, err := os.ReadFile(a.Path)
	if err != nil {
		return snapshotWriteFailed(err)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return snapshotWriteFailed(err)
	}
	if len(doc.Content) == 0 {
		doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}}
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("invalid registry snapshot format")
	}
	var value yaml.Node
	if err := value.Encode(entries); err != nil {
		return snapshotWriteFailed(err)
	}
	replaced := false
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value == "proxy_caches" {
			root.Content[i+1] = &value
			replaced = true
		}
	}
	if !replaced {
		root.Content = append(root.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: "proxy_caches"}, &value)
	}
	out, err := yaml.Marshal(&doc)
	if err != nil {
		return snapshotWriteFailed(err)
	}
	if err := writeFileAtomic(a.Path, out); err != nil {
		return snapshotWriteFailed(err)
	}
	a.snapshot.ProxyCaches = entries
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".registry-snapshot-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if info, err := os.Stat(path); err == nil {
		if err := tmp.Chmod(info.Mode().Perm()); err != nil {
			_ = tmp.Close()
			return err
		}
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func snapshotWriteFailed(err error) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg("failed to write registry snapshot").
		WithCause(err)
}

func (a *RegistrySnapshotFile) lookup(ctx context.Context, fullname string) (*snapshotPackage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.load(); err != nil {
		return nil, err
	}
	return a.byName[fullname], nil
}

func (a *RegistrySnapshotFile) lookupID(ctx context.Context, packageID string) (*snapshotPackage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.load(); err != nil {
		return nil, err
	}
	return a.byID[packageID], nil
}

func (a *RegistrySnapshotFile) lookupVersion(ctx context.Context, packageID string, version string) (*snapshotVersion, error) {
	pkg, err := a.lookupID(ctx, packageID)
	if err != nil || pkg == nil {
		return nil, err
	}
	v, ok := pkg.versions[version]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

// versionsInRange returns matching versions ordered from highest padded
// version down, the same order the SQL backend uses.
func (a *RegistrySnapshotFile) versionsInRange(ctx context.Context, fullname string, r types.SqlRange, withPreRelease bool) ([]string, error) {
	pkg, err := a.lookup(ctx, fullname)
	if err != nil || pkg == nil {
		return nil, err
	}
	var matched []snapshotVersion
	for _, v := range pkg.versions {
		if v.preRelease && !withPreRelease {
			continue
		}
		if matchSqlRange(r, v.padding) {
			matched = append(matched, v)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].padding != matched[j].padding {
			return matched[i].padding > matched[j].padding
		}
		return matched[i].version > matched[j].version
	})
	versions := make([]string, 0, len(matched))
	for _, v := range matched {
		versions = append(versions, v.version)
	}
	return versions, nil
}

// matchSqlRange evaluates r against a padded version exactly like the
// WHERE fragment built by buildRangeCondition.
func matchSqlRange(r types.SqlRange, padding string) bool {
	if !comparePadding(padding, opFor(r.MinInclusive, types.ComparatorOpGte, types.ComparatorOpGt), semver.PaddingOf(r.MinVersion)) {
		return false
	}
	if !comparePadding(padding, opFor(r.MaxInclusive, types.ComparatorOpLte, types.ComparatorOpLt), semver.PaddingOf(r.MaxVersion)) {
		return false
	}
	if len(r.Conditions) == 0 {
		return true
	}
	for _, set := range r.Conditions {
		ok := true
		for _, c := range set {
			if !comparePadding(padding, c.Op, c.PaddingVersion) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

func opFor(inclusive bool, inclusiveOp types.ComparatorOp, exclusiveOp types.ComparatorOp) types.ComparatorOp {
	if inclusive {
		return inclusiveOp
	}
	return exclusiveOp
}

func comparePadding(value string, op types.ComparatorOp, target string) bool {
	cmp := strings.Compare(value, target)
	switch op {
	case types.ComparatorOpGte:
		return cmp >= 0
	case types.ComparatorOpGt:
		return cmp > 0
	case types.ComparatorOpLte:
		return cmp <= 0
	case types.ComparatorOpLt:
		return cmp < 0
	default:
		return cmp == 0
	}
}

func (a *RegistrySnapshotFile) load() error {
	if a.loaded {
		return nil
	}
	data, err := os.ReadFile(a.Path)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("registry snapshot file not found").
			WithCause(err)
	}
	var snapshot types.RegistrySnapshot
	if err := yaml.Unmarshal(data, &snapshot); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("invalid registry snapshot format").
			WithCause(err)
	}
	byName := map[string]*snapshotPackage{}
	byID := map[string]*snapshotPackage{}
	for _, entry := range snapshot.Packages {
		pkg, err := buildSnapshotPackage(entry)
		if err != nil {
			return err
		}
		fullname := pkg.pkg.FullName()
		if _, exists := byName[fullname]; exists {
			return errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("duplicate package in registry snapshot: " + fullname)
		}
		byName[fullname] = pkg
		byID[pkg.pkg.PackageID] = pkg
	}
	proxyCaches := make(map[string]types.ProxyCacheEntry, len(snapshot.ProxyCaches))
	for _, entry := range snapshot.ProxyCaches {
		proxyCaches[entry.FilePath] = entry
	}
	a.snapshot = snapshot
	a.byName = byName
	a.byID = byID
	a.proxyCaches = proxyCaches
	a.loaded = true
	return nil
}

func buildSnapshotPackage(entry types.SnapshotPackage) (*snapshotPackage, error) {
	scope, name := shared.ScopeAndName(entry.Name)
	if name == "" {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("registry snapshot package without name")
	}
	pkg := &snapshotPackage{
		pkg:      types.Package{PackageID: entry.PackageID, Scope: scope, Name: name},
		tags:     entry.Tags,
		block:    entry.Block,
		versions: map[string]snapshotVersion{},
	}
	if pkg.pkg.PackageID == "" {
		pkg.pkg.PackageID = pkg.pkg.FullName()
	}
	if pkg.tags == nil {
		pkg.tags = map[string]string{}
	}
	for _, version := range entry.Versions {
		manifest, abbreviated, err := SnapshotManifests(pkg.pkg.FullName(), version)
		if err != nil {
			return nil, err
		}
		v, err := semver.Parse(manifest.Version)
		if err != nil {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("invalid version in registry snapshot: " + pkg.pkg.FullName() + "@" + manifest.Version).
				WithCause(err)
		}
		if !semver.Paddable(v) {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("version segment too large in registry snapshot: " + pkg.pkg.FullName() + "@" + manifest.Version)
		}
		pkg.versions[manifest.Version] = snapshotVersion{
			version:     manifest.Version,
			padding:     semver.PaddingVersion(v),
			preRelease:  semver.IsPreRelease(v),
			manifest:    manifest,
			abbreviated: abbreviated,
		}
	}
	return pkg, nil
}

// SnapshotManifests converts the YAML manifests of one snapshot version.
// The manifest name defaults to fullname.
func SnapshotManifests(fullname string, version types.SnapshotVersion) (types.Manifest, types.Manifest, error) {
	manifest, err := manifestFromMap(version.Manifest)
	if err != nil {
		return types.Manifest{}, types.Manifest{}, err
	}
	if manifest.Name == "" {
		manifest.Name = fullname
	}
	if manifest.Version == "" {
		return types.Manifest{}, types.Manifest{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("registry snapshot manifest without version: " + fullname)
	}
	var abbreviated types.Manifest
	if version.Abbreviated != nil {
		abbreviated, err = manifestFromMap(version.Abbreviated)
		if err != nil {
			return types.Manifest{}, types.Manifest{}, err
		}
		if abbreviated.Name == "" {
			abbreviated.Name = manifest.Name
		}
		if abbreviated.Version == "" {
			abbreviated.Version = manifest.Version
		}
	} else {
		abbreviated = Abbreviate(manifest)
	}
	return manifest, abbreviated, nil
}

// Abbreviate keeps only the install-time fields of manifest.
func Abbreviate(manifest types.Manifest) types.Manifest {
	out := types.Manifest{
		Name:       manifest.Name,
		Version:    manifest.Version,
		Deprecated: manifest.Deprecated,
		Fields:     map[string]json.RawMessage{},
	}
	for _, key := range abbreviatedFields {
		if value, ok := manifest.Fields[key]; ok {
			out.Fields[key] = append(json.RawMessage(nil), value...)
		}
	}
	return out
}

func manifestFromMap(values map[string]any) (types.Manifest, error) {
	data, err := json.Marshal(values)
	if err != nil {
		return types.Manifest{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("registry snapshot manifest is not json compatible").
			WithCause(err)
	}
	var manifest types.Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return types.Manifest{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("invalid registry snapshot manifest").
			WithCause(err)
	}
	return manifest, nil
}

var (
	_ ports.PackageRepository             = (*RegistrySnapshotFile)(nil)
	_ ports.PackageVersionRepository      = (*RegistrySnapshotFile)(nil)
	_ ports.PackageVersionBlockRepository = (*RegistrySnapshotFile)(nil)
	_ ports.DistRepository                = (*RegistrySnapshotFile)(nil)
	_ ports.ManifestListPort              = (*RegistrySnapshotFile)(nil)
	_ ports.ProxyCacheRepository          = (*RegistrySnapshotFile)(nil)
)
