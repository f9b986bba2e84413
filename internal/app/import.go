package app

import (
	"context"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"registry-core/internal/adapters"
	"registry-core/internal/shared"
	"registry-core/internal/types"
)

// Import copies a YAML registry snapshot into the MySQL backend. Existing
// rows are updated in place.
func (s Service) Import(ctx context.Context, req ImportRequest) (ImportResult, error) {
	snapshotPath := strings.TrimSpace(req.SnapshotPath)
	if snapshotPath == "" {
		return ImportResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("registry snapshot path is required")
	}
	source := adapters.NewRegistrySnapshotFile(snapshotPath)
	snapshot, err := source.Snapshot()
	if err != nil {
		return ImportResult{}, err
	}
	target, release, err := s.open(ctx, BackendConfig{Backend: BackendMySQL, MySQL: req.MySQL})
	if err != nil {
		return ImportResult{}, err
	}
	defer release()
	if target.Writer == nil {
		return ImportResult{}, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("registry backend is read-only")
	}

	result := ImportResult{}
	for _, entry := range snapshot.Packages {
		versions, err := importPackage(ctx, source, target, entry)
		if err != nil {
			return ImportResult{}, err
		}
		result.Packages++
		result.Versions += versions
	}
	for _, entry := range snapshot.ProxyCaches {
		if err := target.ProxyCaches.SaveProxyCache(ctx, entry); err != nil {
			return ImportResult{}, err
		}
		result.ProxyCaches++
	}
	log.Ctx(ctx).Info().
		Int("packages", result.Packages).
		Int("versions", result.Versions).
		Int("proxy_caches", result.ProxyCaches).
		Msg("imported registry snapshot")
	return result, nil
}

func importPackage(ctx context.Context, source *adapters.RegistrySnapshotFile, target Registry, entry types.SnapshotPackage) (int, error) {
	scope, name := shared.ScopeAndName(entry.Name)
	pkg, err := source.FindPackage(ctx, scope, name)
	if err != nil {
		return 0, err
	}
	if pkg == nil {
		return 0, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("snapshot package disappeared: " + entry.Name)
	}
	if err := target.Writer.SavePackage(ctx, *pkg); err != nil {
		return 0, err
	}
	manifests, err := source.ListPackageVersionManifests(ctx, pkg.PackageID, true)
	if err != nil {
		return 0, err
	}
	abbreviated, err := source.ListPackageVersionManifests(ctx, pkg.PackageID, false)
	if err != nil {
		return 0, err
	}
	versions := make([]string, 0, len(manifests))
	for version := range manifests {
		versions = append(versions, version)
	}
	sort.Strings(versions)
	for _, version := range versions {
		if err := target.Writer.SavePackageVersion(ctx, pkg.PackageID, manifests[version], abbreviated[version]); err != nil {
			return 0, err
		}
	}
	tags := make([]string, 0, len(entry.Tags))
	for tag := range entry.Tags {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	for _, tag := range tags {
		if err := target.Writer.SavePackageTag(ctx, types.PackageTag{PackageID: pkg.PackageID, Tag: tag, Version: entry.Tags[tag]}); err != nil {
			return 0, err
		}
	}
	block, err := source.FindPackageBlock(ctx, pkg.PackageID)
	if err != nil {
		return 0, err
	}
	if block != nil {
		if err := target.Writer.SavePackageBlock(ctx, *block); err != nil {
			return 0, err
		}
	}
	return len(versions), nil
}
