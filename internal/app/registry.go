package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"registry-core/internal/core"
	"registry-core/internal/shared"
	"registry-core/internal/types"
)

func (s Service) ResolveVersion(ctx context.Context, req ResolveVersionRequest) (ResolveVersionResult, error) {
	spec, err := parseRequestSpec(req.Spec)
	if err != nil {
		return ResolveVersionResult{}, err
	}
	registry, release, err := s.open(ctx, req.Backend)
	if err != nil {
		return ResolveVersionResult{}, err
	}
	defer release()

	version, err := s.packageVersionService(registry).GetVersion(ctx, spec, req.WithBugVersion)
	if err != nil {
		return ResolveVersionResult{}, err
	}
	if version == "" {
		return ResolveVersionResult{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("no matching version for %s", spec.Raw))
	}
	log.Ctx(ctx).Debug().Str("spec", spec.Raw).Str("version", version).Msg("resolved version")
	return ResolveVersionResult{Spec: spec, Version: version}, nil
}

func (s Service) ReadManifest(ctx context.Context, req ReadManifestRequest) (ReadManifestResult, error) {
	spec, err := parseRequestSpec(req.Spec)
	if err != nil {
		return ReadManifestResult{}, err
	}
	registry, release, err := s.open(ctx, req.Backend)
	if err != nil {
		return ReadManifestResult{}, err
	}
	defer release()

	fullname := spec.Name
	if spec.Kind == types.SpecKindAlias && spec.SubSpec != nil {
		fullname = spec.SubSpec.Name
	}
	packageID, err := findPackageID(ctx, registry, fullname)
	if err != nil {
		return ReadManifestResult{}, err
	}
	// full manifests are fixed after the read, so a missing fixed version
	// serves the requested one unchanged instead of nothing
	fixAfterRead := req.FullManifest && req.WithBugVersion
	manifest, err := s.packageVersionService(registry).ReadManifest(ctx, packageID, spec, req.FullManifest, req.WithBugVersion && !fixAfterRead)
	if err != nil {
		return ReadManifestResult{}, err
	}
	if manifest == nil {
		return ReadManifestResult{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("no manifest for %s", spec.Raw))
	}
	if fixAfterRead {
		fixed, err := s.fixFullManifest(ctx, registry, fullname, *manifest)
		if err != nil {
			return ReadManifestResult{}, err
		}
		manifest = &fixed
	}
	return ReadManifestResult{Spec: spec, Manifest: *manifest}, nil
}

func (s Service) fixFullManifest(ctx context.Context, registry Registry, fullname string, manifest types.Manifest) (types.Manifest, error) {
	bugVersions := s.bugVersionService(registry)
	bugVersion, err := bugVersions.GetBugVersion(ctx)
	if err != nil || bugVersion == nil {
		return manifest, err
	}
	return bugVersions.FixPackageBugVersion(ctx, bugVersion, fullname, manifest)
}

// ListManifests returns every version manifest of a package. With bug
// versions enabled, defective versions are replaced by their fixed
// counterpart from the same listing.
func (s Service) ListManifests(ctx context.Context, req ListManifestsRequest) (ListManifestsResult, error) {
	fullname := strings.TrimSpace(req.Package)
	if fullname == "" {
		return ListManifestsResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("package name is required")
	}
	registry, release, err := s.open(ctx, req.Backend)
	if err != nil {
		return ListManifestsResult{}, err
	}
	defer release()

	packageID, err := findPackageID(ctx, registry, fullname)
	if err != nil {
		return ListManifestsResult{}, err
	}
	manifests, err := registry.Manifests.ListPackageVersionManifests(ctx, packageID, req.FullManifest)
	if err != nil {
		return ListManifestsResult{}, err
	}
	result := ListManifestsResult{Manifests: manifests}
	if !req.WithBugVersion {
		return result, nil
	}
	bugVersions := s.bugVersionService(registry)
	bugVersion, err := bugVersions.GetBugVersion(ctx)
	if err != nil {
		return ListManifestsResult{}, err
	}
	if bugVersion != nil {
		result.Gaps = bugVersions.FixPackageBugVersions(ctx, bugVersion, fullname, manifests)
	}
	return result, nil
}

func (s Service) BlockInfo(ctx context.Context, req BlockInfoRequest) (BlockInfoResult, error) {
	fullname := strings.TrimSpace(req.Package)
	if fullname == "" {
		return BlockInfoResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("package name is required")
	}
	registry, release, err := s.open(ctx, req.Backend)
	if err != nil {
		return BlockInfoResult{}, err
	}
	defer release()

	block, err := s.packageVersionService(registry).FindBlockInfo(ctx, fullname)
	if err != nil {
		return BlockInfoResult{}, err
	}
	if block == nil {
		return BlockInfoResult{}, nil
	}
	return BlockInfoResult{Blocked: true, Reason: block.Reason}, nil
}

func parseRequestSpec(raw string) (types.VersionSpec, error) {
	if strings.TrimSpace(raw) == "" {
		return types.VersionSpec{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("package spec is required")
	}
	return core.ParseSpec(raw)
}

func findPackageID(ctx context.Context, registry Registry, fullname string) (string, error) {
	scope, name := shared.ScopeAndName(fullname)
	packageID, err := registry.Packages.FindPackageID(ctx, scope, name)
	if err != nil {
		return "", err
	}
	if packageID == "" {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("package not found: %s", fullname))
	}
	return packageID, nil
}
