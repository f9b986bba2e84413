package ports

import (
	"context"

	"registry-core/internal/types"
)

// Absent records are reported as nil (or "") with a nil error; errors are
// reserved for storage failures.

type PackageRepository interface {
	FindPackage(ctx context.Context, scope string, name string) (*types.Package, error)
	FindPackageTag(ctx context.Context, packageID string, tag string) (*types.PackageTag, error)
	FindPackageID(ctx context.Context, scope string, name string) (string, error)
	FindPackageVersion(ctx context.Context, packageID string, version string) (*types.PackageVersion, error)
}

type PackageVersionRepository interface {
	FindVersionByTag(ctx context.Context, scope string, name string, tag string) (string, error)
	FindMaxSatisfyVersion(ctx context.Context, scope string, name string, r types.SqlRange) (string, error)
	FindSatisfyVersionsWithPrerelease(ctx context.Context, scope string, name string, r types.SqlRange) ([]string, error)
}

type PackageVersionBlockRepository interface {
	FindPackageBlock(ctx context.Context, packageID string) (*types.PackageVersionBlock, error)
}

type DistRepository interface {
	FindPackageVersionManifest(ctx context.Context, packageID string, version string) (*types.Manifest, error)
	FindPackageAbbreviatedManifest(ctx context.Context, packageID string, version string) (*types.Manifest, error)
}

// ManifestListPort lists the manifests of every version of a package,
// keyed by version.
type ManifestListPort interface {
	ListPackageVersionManifests(ctx context.Context, packageID string, full bool) (map[string]types.Manifest, error)
}

// RegistryWriterPort seeds package data into a backend.
type RegistryWriterPort interface {
	SavePackage(ctx context.Context, pkg types.Package) error
	SavePackageTag(ctx context.Context, tag types.PackageTag) error
	SavePackageVersion(ctx context.Context, packageID string, manifest types.Manifest, abbreviated types.Manifest) error
	SavePackageBlock(ctx context.Context, block types.PackageVersionBlock) error
}
