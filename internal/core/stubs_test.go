package core

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"registry-core/internal/entities"
	"registry-core/internal/semver"
	"registry-core/internal/shared"
	"registry-core/internal/types"
)

// stubRegistry is an in-memory registry keyed by package full name.
type stubRegistry struct {
	mu          sync.Mutex
	packages    map[string]types.Package
	tags        map[string]map[string]string
	versions    map[string][]string
	blocks      map[string]string
	manifests   map[string]map[string]types.Manifest
	abbreviated map[string]map[string]types.Manifest
	err         error

	maxSatisfyCalls int
	prereleaseCalls int
	manifestCalls   int
}

func newStubRegistry() *stubRegistry {
	return &stubRegistry{
		packages:    map[string]types.Package{},
		tags:        map[string]map[string]string{},
		versions:    map[string][]string{},
		blocks:      map[string]string{},
		manifests:   map[string]map[string]types.Manifest{},
		abbreviated: map[string]map[string]types.Manifest{},
	}
}

// addVersion registers fullname@version with a minimal manifest. The
// package id is "id-" + fullname.
func (s *stubRegistry) addVersion(fullname string, version string, fields map[string]string) {
	scope, name := shared.ScopeAndName(fullname)
	id := "id-" + fullname
	s.packages[fullname] = types.Package{PackageID: id, Scope: scope, Name: name}
	s.versions[fullname] = append(s.versions[fullname], version)
	manifest := types.Manifest{Name: fullname, Version: version, Fields: map[string]json.RawMessage{}}
	for key, value := range fields {
		manifest.Fields[key] = json.RawMessage(value)
	}
	if s.manifests[id] == nil {
		s.manifests[id] = map[string]types.Manifest{}
		s.abbreviated[id] = map[string]types.Manifest{}
	}
	s.manifests[id][version] = manifest
	s.abbreviated[id][version] = types.Manifest{Name: fullname, Version: version}
}

func (s *stubRegistry) addTag(fullname string, tag string, version string) {
	if s.tags[fullname] == nil {
		s.tags[fullname] = map[string]string{}
	}
	s.tags[fullname][tag] = version
}

func (s *stubRegistry) byID(packageID string) (types.Package, bool) {
	for _, pkg := range s.packages {
		if pkg.PackageID == packageID {
			return pkg, true
		}
	}
	return types.Package{}, false
}

func (s *stubRegistry) FindPackage(_ context.Context, scope string, name string) (*types.Package, error) {
	if s.err != nil {
		return nil, s.err
	}
	pkg, ok := s.packages[shared.FullName(scope, name)]
	if !ok {
		return nil, nil
	}
	return &pkg, nil
}

func (s *stubRegistry) FindPackageTag(_ context.Context, packageID string, tag string) (*types.PackageTag, error) {
	pkg, ok := s.byID(packageID)
	if !ok {
		return nil, nil
	}
	version, ok := s.tags[pkg.FullName()][tag]
	if !ok {
		return nil, nil
	}
	return &types.PackageTag{PackageID: packageID, Tag: tag, Version: version}, nil
}

func (s *stubRegistry) FindPackageID(_ context.Context, scope string, name string) (string, error) {
	return s.packages[shared.FullName(scope, name)].PackageID, nil
}

func (s *stubRegistry) FindPackageVersion(_ context.Context, packageID string, version string) (*types.PackageVersion, error) {
	pkg, ok := s.byID(packageID)
	if !ok {
		return nil, nil
	}
	for _, v := range s.versions[pkg.FullName()] {
		if v == version {
			return &types.PackageVersion{PackageID: packageID, Version: version}, nil
		}
	}
	return nil, nil
}

func (s *stubRegistry) FindVersionByTag(_ context.Context, scope string, name string, tag string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.tags[shared.FullName(scope, name)][tag], nil
}

func (s *stubRegistry) FindMaxSatisfyVersion(_ context.Context, scope string, name string, r types.SqlRange) (string, error) {
	s.mu.Lock()
	s.maxSatisfyCalls++
	s.mu.Unlock()
	matched := s.matching(shared.FullName(scope, name), r, false)
	if len(matched) == 0 {
		return "", nil
	}
	return matched[0], nil
}

func (s *stubRegistry) FindSatisfyVersionsWithPrerelease(_ context.Context, scope string, name string, r types.SqlRange) ([]string, error) {
	s.mu.Lock()
	s.prereleaseCalls++
	s.mu.Unlock()
	return s.matching(shared.FullName(scope, name), r, true), nil
}

func (s *stubRegistry) matching(fullname string, r types.SqlRange, withPreRelease bool) []string {
	var out []string
	for _, version := range s.versions[fullname] {
		v, err := semver.Parse(version)
		if err != nil {
			continue
		}
		if semver.IsPreRelease(v) && !withPreRelease {
			continue
		}
		if paddedMatch(r, semver.PaddingVersion(v)) {
			out = append(out, version)
		}
	}
	sort.Slice(out, func(i, j int) bool { return semver.PaddingOf(out[i]) > semver.PaddingOf(out[j]) })
	return out
}

func (s *stubRegistry) FindPackageBlock(_ context.Context, packageID string) (*types.PackageVersionBlock, error) {
	reason, ok := s.blocks[packageID]
	if !ok {
		return nil, nil
	}
	return &types.PackageVersionBlock{PackageID: packageID, Reason: reason}, nil
}

func (s *stubRegistry) FindPackageVersionManifest(_ context.Context, packageID string, version string) (*types.Manifest, error) {
	s.mu.Lock()
	s.manifestCalls++
	s.mu.Unlock()
	manifest, ok := s.manifests[packageID][version]
	if !ok {
		return nil, nil
	}
	clone := manifest.Clone()
	return &clone, nil
}

func (s *stubRegistry) FindPackageAbbreviatedManifest(_ context.Context, packageID string, version string) (*types.Manifest, error) {
	manifest, ok := s.abbreviated[packageID][version]
	if !ok {
		return nil, nil
	}
	clone := manifest.Clone()
	return &clone, nil
}

type stubBugVersionSource struct {
	bugVersion *entities.BugVersion
	err        error
}

func (s stubBugVersionSource) GetBugVersion(context.Context) (*entities.BugVersion, error) {
	return s.bugVersion, s.err
}

// stubBugVersionStore mirrors the process-wide store and counts loads.
type stubBugVersionStore struct {
	mu      sync.Mutex
	tables  map[string]*entities.BugVersion
	sets    int
	lookups int
}

func newStubBugVersionStore() *stubBugVersionStore {
	return &stubBugVersionStore{tables: map[string]*entities.BugVersion{}}
}

func (s *stubBugVersionStore) GetBugVersion(version string) *entities.BugVersion {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	return s.tables[version]
}

func (s *stubBugVersionStore) SetBugVersion(bugVersion *entities.BugVersion, version string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets++
	s.tables[version] = bugVersion
}

// stubCache records removals and fails for the names in failFor.
type stubCache struct {
	mu      sync.Mutex
	removed map[string]int
	failFor map[string]bool
}

func newStubCache(failFor ...string) *stubCache {
	cache := &stubCache{removed: map[string]int{}, failFor: map[string]bool{}}
	for _, name := range failFor {
		cache.failFor[name] = true
	}
	return cache
}

func (c *stubCache) RemoveCache(_ context.Context, fullname string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removed[fullname]++
	if c.failFor[fullname] {
		return errStubCache
	}
	return nil
}

type stubError string

func (e stubError) Error() string { return string(e) }

const errStubCache = stubError("cache backend unavailable")
