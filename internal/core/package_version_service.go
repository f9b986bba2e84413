package core

import (
	"context"
	"fmt"

	assert "github.com/ZanzyTHEbar/assert-lib"
	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"registry-core/internal/entities"
	"registry-core/internal/ports"
	"registry-core/internal/semver"
	"registry-core/internal/shared"
	"registry-core/internal/types"
)

// BugVersionSource yields the active bug version table, or nil when the
// registry has none.
type BugVersionSource interface {
	GetBugVersion(ctx context.Context) (*entities.BugVersion, error)
}

type PackageVersionService struct {
	PackageVersions ports.PackageVersionRepository
	Packages        ports.PackageRepository
	Blocks          ports.PackageVersionBlockRepository
	BugVersions     BugVersionSource
	Dists           ports.DistRepository
}

func NewPackageVersionService(
	packageVersions ports.PackageVersionRepository,
	packages ports.PackageRepository,
	blocks ports.PackageVersionBlockRepository,
	bugVersions BugVersionSource,
	dists ports.DistRepository,
) PackageVersionService {
	return PackageVersionService{
		PackageVersions: packageVersions,
		Packages:        packages,
		Blocks:          blocks,
		BugVersions:     bugVersions,
		Dists:           dists,
	}
}

// ReadManifest resolves spec and returns the manifest of the resolved
// version, or nil when nothing matches. When a bug version advice applies
// the fixed version's manifest is returned with a deprecation warning.
func (s PackageVersionService) ReadManifest(ctx context.Context, packageID string, spec types.VersionSpec, fullManifest bool, withBugVersion bool) (*types.Manifest, error) {
	assert.NotEmpty(ctx, packageID, "package id must be set")
	realSpec, err := findRealSpec(spec)
	if err != nil {
		return nil, err
	}
	version, err := s.GetVersion(ctx, realSpec, false)
	if err != nil || version == "" {
		return nil, err
	}
	var advice *types.BugVersionAdvice
	originalVersion := version
	if withBugVersion {
		found, err := s.adviceFor(ctx, realSpec.Name, version)
		if err != nil {
			return nil, err
		}
		if found != nil {
			advice = found
			version = found.FixedVersion
		}
	}
	var manifest *types.Manifest
	if fullManifest {
		manifest, err = s.Dists.FindPackageVersionManifest(ctx, packageID, version)
	} else {
		manifest, err = s.Dists.FindPackageAbbreviatedManifest(ctx, packageID, version)
	}
	if err != nil || manifest == nil {
		return nil, err
	}
	if advice != nil {
		manifest.Version = advice.FixedVersion
		manifest.Deprecated = entities.DeprecatedMessage(*advice, originalVersion)
		log.Ctx(ctx).Debug().
			Str("package", realSpec.Name).
			Str("version", originalVersion).
			Str("fixed", advice.FixedVersion).
			Msg("bug version manifest served")
	}
	return manifest, nil
}

// GetVersion resolves spec to a stored version. An empty result means no
// match; an error means storage failed or the spec kind is unsupported.
func (s PackageVersionService) GetVersion(ctx context.Context, spec types.VersionSpec, withBugVersion bool) (string, error) {
	version, err := s.resolveVersion(ctx, spec)
	if err != nil || version == "" {
		return "", err
	}
	if withBugVersion {
		name := spec.Name
		if spec.Kind == types.SpecKindAlias {
			name = spec.SubSpec.Name
		}
		advice, err := s.adviceFor(ctx, name, version)
		if err != nil {
			return "", err
		}
		if advice != nil {
			version = advice.FixedVersion
		}
	}
	return version, nil
}

func (s PackageVersionService) resolveVersion(ctx context.Context, spec types.VersionSpec) (string, error) {
	scope, name := shared.ScopeAndName(spec.Name)
	switch spec.Kind {
	case types.SpecKindTag:
		return s.PackageVersions.FindVersionByTag(ctx, scope, name, spec.FetchSpec)
	case types.SpecKindVersion:
		// "=1.0.0" and "v1.0.0" normalize to "1.0.0"
		return semver.Valid(spec.FetchSpec), nil
	case types.SpecKindRange:
		return s.resolveRange(ctx, scope, name, spec.FetchSpec)
	case types.SpecKindAlias:
		realSpec, err := findRealSpec(spec)
		if err != nil {
			return "", err
		}
		return s.resolveVersion(ctx, realSpec)
	default:
		return "", unsupportedSpec(spec)
	}
}

func (s PackageVersionService) resolveRange(ctx context.Context, scope string, name string, fetchSpec string) (string, error) {
	// "a@1.1" parses as a range but may have been published as a dist-tag
	tagged, err := s.PackageVersions.FindVersionByTag(ctx, scope, name, fetchSpec)
	if err != nil {
		return "", err
	}
	if tagged != "" {
		return tagged, nil
	}
	r, err := semver.ParseRange(fetchSpec)
	if err != nil {
		return "", nil
	}
	sqlRange := NewSqlRange(r)
	if !sqlRange.IncludesPreRelease {
		return s.PackageVersions.FindMaxSatisfyVersion(ctx, scope, name, sqlRange)
	}
	candidates, err := s.PackageVersions.FindSatisfyVersionsWithPrerelease(ctx, scope, name, sqlRange)
	if err != nil {
		return "", err
	}
	return semver.MaxSatisfying(candidates, r), nil
}

func (s PackageVersionService) adviceFor(ctx context.Context, fullname string, version string) (*types.BugVersionAdvice, error) {
	if s.BugVersions == nil {
		return nil, nil
	}
	bugVersion, err := s.BugVersions.GetBugVersion(ctx)
	if err != nil || bugVersion == nil {
		return nil, err
	}
	advice, ok := bugVersion.FixVersion(fullname, version)
	if !ok {
		return nil, nil
	}
	return &advice, nil
}

// FindBlockInfo returns the block record of a package, or nil when the
// package is unknown or not blocked.
func (s PackageVersionService) FindBlockInfo(ctx context.Context, fullname string) (*types.PackageVersionBlock, error) {
	scope, name := shared.ScopeAndName(fullname)
	packageID, err := s.Packages.FindPackageID(ctx, scope, name)
	if err != nil || packageID == "" {
		return nil, err
	}
	return s.Blocks.FindPackageBlock(ctx, packageID)
}

// findRealSpec unwraps an alias exactly one level.
func findRealSpec(spec types.VersionSpec) (types.VersionSpec, error) {
	switch spec.Kind {
	case types.SpecKindAlias:
		if spec.SubSpec == nil || spec.SubSpec.Kind == types.SpecKindAlias {
			return types.VersionSpec{}, unsupportedSpec(spec)
		}
		return findRealSpec(*spec.SubSpec)
	case types.SpecKindVersion, types.SpecKindTag, types.SpecKindRange:
		return spec, nil
	default:
		return types.VersionSpec{}, unsupportedSpec(spec)
	}
}

func unsupportedSpec(spec types.VersionSpec) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(fmt.Sprintf("registry does not support spec: %s", spec.Raw))
}
