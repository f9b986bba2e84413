package core

import (
	"context"
	"encoding/json"
	"sort"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"registry-core/internal/entities"
	"registry-core/internal/ports"
	"registry-core/internal/shared"
	"registry-core/internal/types"
)

const (
	bugVersionsConfigKey       = "bug-versions"
	defaultCleanCacheWorkers   = 50
	bugVersionServiceLogPrefix = "[BugVersionService]"
)

type BugVersionService struct {
	Packages     ports.PackageRepository
	Dists        ports.DistRepository
	Cache        ports.CacheService
	Store        ports.BugVersionStorePort
	CleanWorkers int
}

// CleanReport summarizes one cache invalidation pass.
type CleanReport struct {
	Packages []string
	Failed   []string
}

// BugVersionGap records a batch entry that could not be fixed because the
// fixed version's manifest was not part of the batch.
type BugVersionGap struct {
	FullName     string
	Version      string
	FixedVersion string
}

func NewBugVersionService(packages ports.PackageRepository, dists ports.DistRepository, cache ports.CacheService, store ports.BugVersionStorePort) *BugVersionService {
	return &BugVersionService{
		Packages:     packages,
		Dists:        dists,
		Cache:        cache,
		Store:        store,
		CleanWorkers: defaultCleanCacheWorkers,
	}
}

// GetBugVersion returns the table published as the latest version of the
// reserved bug-versions package, or nil when that package or tag does not
// exist. Tables are cached per version, so a new latest version triggers
// a fresh load.
func (s *BugVersionService) GetBugVersion(ctx context.Context) (*entities.BugVersion, error) {
	pkg, err := s.Packages.FindPackage(ctx, "", types.BugVersionsPackage)
	if err != nil || pkg == nil {
		return nil, err
	}
	tag, err := s.Packages.FindPackageTag(ctx, pkg.PackageID, types.LatestTag)
	if err != nil || tag == nil {
		return nil, err
	}
	if bugVersion := s.Store.GetBugVersion(tag.Version); bugVersion != nil {
		return bugVersion, nil
	}
	manifest, err := s.Dists.FindPackageVersionManifest(ctx, pkg.PackageID, tag.Version)
	if err != nil || manifest == nil {
		return nil, err
	}
	var config map[string]json.RawMessage
	if _, err := manifest.Field("config", &config); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("version", tag.Version).Msg(bugVersionServiceLogPrefix + " invalid config, using empty table")
		config = nil
	}
	bugVersion, err := entities.ParseBugVersion(config[bugVersionsConfigKey])
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("version", tag.Version).Msg(bugVersionServiceLogPrefix + " invalid bug-versions table, using empty table")
		bugVersion = entities.NewBugVersion(nil)
	}
	s.Store.SetBugVersion(bugVersion, tag.Version)
	log.Ctx(ctx).Debug().
		Str("version", tag.Version).
		Int("packages", len(bugVersion.ListAllPackagesHasBugs())).
		Msg(bugVersionServiceLogPrefix + " loaded bug versions")
	return bugVersion, nil
}

// CleanBugVersionPackageCaches removes the caches of every package named in
// bugVersion. Removals run concurrently and a failed removal does not stop
// the others; failures are logged and reported, never returned.
func (s *BugVersionService) CleanBugVersionPackageCaches(ctx context.Context, bugVersion *entities.BugVersion) CleanReport {
	fullnames := bugVersion.ListAllPackagesHasBugs()
	failed := make([]atomic.Bool, len(fullnames))
	workers := s.CleanWorkers
	if workers <= 0 {
		workers = defaultCleanCacheWorkers
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for i, fullname := range fullnames {
		g.Go(func() error {
			if err := s.Cache.RemoveCache(ctx, fullname); err != nil {
				failed[i].Store(true)
				log.Ctx(ctx).Warn().Err(err).Str("package", fullname).Msg(bugVersionServiceLogPrefix + " remove cache failed")
			}
			return nil
		})
	}
	_ = g.Wait()
	report := CleanReport{Packages: fullnames}
	for i, fullname := range fullnames {
		if failed[i].Load() {
			report.Failed = append(report.Failed, fullname)
		}
	}
	return report
}

// FixPackageBugVersions rewrites, in place, every manifest of the batch that
// has advice, using the fixed version's manifest from the same batch.
// Entries whose fixed version is missing from the batch are left as they
// are and returned as gaps.
func (s *BugVersionService) FixPackageBugVersions(ctx context.Context, bugVersion *entities.BugVersion, fullname string, manifests map[string]types.Manifest) []BugVersionGap {
	if manifests == nil {
		return nil
	}
	original := make(map[string]types.Manifest, len(manifests))
	keys := make([]string, 0, len(manifests))
	for key, manifest := range manifests {
		original[key] = manifest
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var gaps []BugVersionGap
	for _, key := range keys {
		manifest := original[key]
		advice, ok := bugVersion.FixVersion(fullname, manifest.Version)
		if !ok {
			continue
		}
		fixedManifest, ok := original[advice.FixedVersion]
		if !ok {
			log.Ctx(ctx).Warn().
				Str("package", fullname).
				Str("version", advice.FixedVersion).
				Msg(bugVersionServiceLogPrefix + " not found pkg manifest for fixed version")
			gaps = append(gaps, BugVersionGap{FullName: fullname, Version: manifest.Version, FixedVersion: advice.FixedVersion})
			continue
		}
		fixed, ok := bugVersion.FixManifest(withName(manifest, fullname), fixedManifest)
		if ok {
			manifests[key] = fixed
		}
	}
	return gaps
}

// FixPackageBugVersion is the single manifest variant; the fixed version's
// manifest is read from storage. The input is returned unchanged when the
// package, the fixed version or its manifest cannot be found.
func (s *BugVersionService) FixPackageBugVersion(ctx context.Context, bugVersion *entities.BugVersion, fullname string, manifest types.Manifest) (types.Manifest, error) {
	advice, ok := bugVersion.FixVersion(fullname, manifest.Version)
	if !ok {
		return manifest, nil
	}
	scope, name := shared.ScopeAndName(fullname)
	pkg, err := s.Packages.FindPackage(ctx, scope, name)
	if err != nil || pkg == nil {
		return manifest, err
	}
	packageVersion, err := s.Packages.FindPackageVersion(ctx, pkg.PackageID, advice.FixedVersion)
	if err != nil || packageVersion == nil {
		return manifest, err
	}
	fixedManifest, err := s.Dists.FindPackageVersionManifest(ctx, packageVersion.PackageID, advice.FixedVersion)
	if err != nil || fixedManifest == nil {
		return manifest, err
	}
	fixed, ok := bugVersion.FixManifest(withName(manifest, fullname), *fixedManifest)
	if !ok {
		return manifest, nil
	}
	return fixed, nil
}

// withName fills in the manifest name so advice lookups key on the
// package the manifest was requested for.
func withName(manifest types.Manifest, fullname string) types.Manifest {
	if manifest.Name == "" {
		manifest.Name = fullname
	}
	return manifest
}
