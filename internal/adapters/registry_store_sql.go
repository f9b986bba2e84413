package adapters

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"registry-core/internal/ports"
	"registry-core/internal/semver"
	"registry-core/internal/shared"
	"registry-core/internal/types"
)

// RegistrySQLStore serves package, tag, version, block and proxy cache
// records from MySQL. Missing rows are reported as absent, not as errors.
type RegistrySQLStore struct {
	DB *sql.DB
}

func NewRegistrySQLStore(db *sql.DB) RegistrySQLStore {
	return RegistrySQLStore{DB: db}
}

const (
	selectPackage         = "SELECT `package_id`, `scope`, `name` FROM `packages` WHERE `scope` = ? AND `name` = ?"
	selectTag             = "SELECT `version` FROM `package_tags` WHERE `package_id` = ? AND `tag` = ?"
	selectVersion         = "SELECT `version` FROM `package_versions` WHERE `package_id` = ? AND `version` = ?"
	selectTagByName       = "SELECT t.`version` FROM `package_tags` t JOIN `packages` p ON p.`package_id` = t.`package_id` WHERE p.`scope` = ? AND p.`name` = ? AND t.`tag` = ?"
	selectVersionsInRange = "SELECT v.`version` FROM `package_versions` v JOIN `packages` p ON p.`package_id` = v.`package_id` WHERE p.`scope` = ? AND p.`name` = ?"
	selectBlock           = "SELECT `package_id`, `reason` FROM `package_version_blocks` WHERE `package_id` = ?"
	selectProxyCache      = "SELECT `fullname`, `file_type`, `file_path`, `version` FROM `proxy_caches` WHERE `fullname` = ? ORDER BY `file_path`"
)

func (s RegistrySQLStore) FindPackage(ctx context.Context, scope string, name string) (*types.Package, error) {
	var pkg types.Package
	err := s.DB.QueryRowContext(ctx, selectPackage, scope, name).Scan(&pkg.PackageID, &pkg.Scope, &pkg.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, queryFailed("failed to query package", selectPackage, err)
	}
	return &pkg, nil
}

func (s RegistrySQLStore) FindPackageID(ctx context.Context, scope string, name string) (string, error) {
	pkg, err := s.FindPackage(ctx, scope, name)
	if err != nil || pkg == nil {
		return "", err
	}
	return pkg.PackageID, nil
}

func (s RegistrySQLStore) FindPackageTag(ctx context.Context, packageID string, tag string) (*types.PackageTag, error) {
	version, err := s.queryString(ctx, "failed to query package tag", selectTag, packageID, tag)
	if err != nil || version == "" {
		return nil, err
	}
	return &types.PackageTag{PackageID: packageID, Tag: tag, Version: version}, nil
}

func (s RegistrySQLStore) FindPackageVersion(ctx context.Context, packageID string, version string) (*types.PackageVersion, error) {
	found, err := s.queryString(ctx, "failed to query package version", selectVersion, packageID, version)
	if err != nil || found == "" {
		return nil, err
	}
	return &types.PackageVersion{PackageID: packageID, Version: found}, nil
}

func (s RegistrySQLStore) FindVersionByTag(ctx context.Context, scope string, name string, tag string) (string, error) {
	return s.queryString(ctx, "failed to query dist-tag", selectTagByName, scope, name, tag)
}

// FindMaxSatisfyVersion returns the highest release version inside r.
// Pre-release rows are never candidates here.
func (s RegistrySQLStore) FindMaxSatisfyVersion(ctx context.Context, scope string, name string, r types.SqlRange) (string, error) {
	condition, args := buildRangeCondition(r)
	query := selectVersionsInRange + " AND v.`is_pre_release` = FALSE AND " + condition +
		" ORDER BY v.`padding_version` DESC LIMIT 1"
	return s.queryString(ctx, "failed to query max satisfying version", query, append([]any{scope, name}, args...)...)
}

// FindSatisfyVersionsWithPrerelease returns every version, pre-releases
// included, whose padded form lies inside r. The caller filters the
// candidates with the exact range.
func (s RegistrySQLStore) FindSatisfyVersionsWithPrerelease(ctx context.Context, scope string, name string, r types.SqlRange) ([]string, error) {
	condition, args := buildRangeCondition(r)
	query := selectVersionsInRange + " AND " + condition + " ORDER BY v.`padding_version` DESC"
	rows, err := s.DB.QueryContext(ctx, query, append([]any{scope, name}, args...)...)
	if err != nil {
		return nil, queryFailed("failed to query satisfying versions", query, err)
	}
	defer rows.Close()
	var versions []string
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, queryFailed("failed to scan satisfying versions", query, err)
		}
		versions = append(versions, version)
	}
	if err := rows.Err(); err != nil {
		return nil, queryFailed("failed to read satisfying versions", query, err)
	}
	return versions, nil
}

func (s RegistrySQLStore) FindPackageBlock(ctx context.Context, packageID string) (*types.PackageVersionBlock, error) {
	var block types.PackageVersionBlock
	err := s.DB.QueryRowContext(ctx, selectBlock, packageID).Scan(&block.PackageID, &block.Reason)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, queryFailed("failed to query package block", selectBlock, err)
	}
	return &block, nil
}

func (s RegistrySQLStore) FindPackageVersionManifest(ctx context.Context, packageID string, version string) (*types.Manifest, error) {
	return s.findManifest(ctx, "manifest", packageID, version)
}

func (s RegistrySQLStore) FindPackageAbbreviatedManifest(ctx context.Context, packageID string, version string) (*types.Manifest, error) {
	return s.findManifest(ctx, "abbreviated", packageID, version)
}

func (s RegistrySQLStore) findManifest(ctx context.Context, column string, packageID string, version string) (*types.Manifest, error) {
	query := "SELECT `" + column + "` FROM `package_versions` WHERE `package_id` = ? AND `version` = ?"
	raw, err := s.queryString(ctx, "failed to query manifest", query, packageID, version)
	if err != nil || raw == "" {
		return nil, err
	}
	var manifest types.Manifest
	if err := json.Unmarshal([]byte(raw), &manifest); err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("stored manifest is not valid json").
			WithCause(err)
	}
	return &manifest, nil
}

func (s RegistrySQLStore) ListPackageVersionManifests(ctx context.Context, packageID string, full bool) (map[string]types.Manifest, error) {
	column := "abbreviated"
	if full {
		column = "manifest"
	}
	query := "SELECT `version`, `" + column + "` FROM `package_versions` WHERE `package_id` = ?"
	rows, err := s.DB.QueryContext(ctx, query, packageID)
	if err != nil {
		return nil, queryFailed("failed to query manifests", query, err)
	}
	defer rows.Close()
	manifests := map[string]types.Manifest{}
	for rows.Next() {
		var version, raw string
		if err := rows.Scan(&version, &raw); err != nil {
			return nil, queryFailed("failed to scan manifests", query, err)
		}
		var manifest types.Manifest
		if err := json.Unmarshal([]byte(raw), &manifest); err != nil {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("stored manifest is not valid json: " + version).
				WithCause(err)
		}
		manifests[version] = manifest
	}
	if err := rows.Err(); err != nil {
		return nil, queryFailed("failed to read manifests", query, err)
	}
	return manifests, nil
}

func (s RegistrySQLStore) SavePackage(ctx context.Context, pkg types.Package) error {
	const stmt = "INSERT INTO `packages` (`package_id`, `scope`, `name`) VALUES (?, ?, ?) " +
		"ON DUPLICATE KEY UPDATE `scope` = VALUES(`scope`), `name` = VALUES(`name`)"
	return s.exec(ctx, "failed to save package", stmt, pkg.PackageID, pkg.Scope, pkg.Name)
}

func (s RegistrySQLStore) SavePackageTag(ctx context.Context, tag types.PackageTag) error {
	const stmt = "INSERT INTO `package_tags` (`package_id`, `tag`, `version`) VALUES (?, ?, ?) " +
		"ON DUPLICATE KEY UPDATE `version` = VALUES(`version`)"
	return s.exec(ctx, "failed to save package tag", stmt, tag.PackageID, tag.Tag, tag.Version)
}

func (s RegistrySQLStore) SavePackageVersion(ctx context.Context, packageID string, manifest types.Manifest, abbreviated types.Manifest) error {
	const stmt = "INSERT INTO `package_versions` (`package_id`, `version`, `padding_version`, `is_pre_release`, `manifest`, `abbreviated`) " +
		"VALUES (?, ?, ?, ?, ?, ?) ON DUPLICATE KEY UPDATE `manifest` = VALUES(`manifest`), `abbreviated` = VALUES(`abbreviated`)"
	v, err := semver.Parse(manifest.Version)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("invalid package version: " + manifest.Version).
			WithCause(err)
	}
	if !semver.Paddable(v) {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("package version segment too large: " + manifest.Version)
	}
	full, err := json.Marshal(manifest)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("failed to encode manifest").
			WithCause(err)
	}
	short, err := json.Marshal(abbreviated)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("failed to encode abbreviated manifest").
			WithCause(err)
	}
	return s.exec(ctx, "failed to save package version", stmt,
		packageID, manifest.Version, semver.PaddingVersion(v), semver.IsPreRelease(v), string(full), string(short))
}

func (s RegistrySQLStore) SavePackageBlock(ctx context.Context, block types.PackageVersionBlock) error {
	const stmt = "INSERT INTO `package_version_blocks` (`package_id`, `reason`) VALUES (?, ?) " +
		"ON DUPLICATE KEY UPDATE `reason` = VALUES(`reason`)"
	return s.exec(ctx, "failed to save package block", stmt, block.PackageID, block.Reason)
}

func (s RegistrySQLStore) FindProxyCaches(ctx context.Context, fullname string) ([]types.ProxyCacheEntry, error) {
	rows, err := s.DB.QueryContext(ctx, selectProxyCache, fullname)
	if err != nil {
		return nil, queryFailed("failed to query proxy caches", selectProxyCache, err)
	}
	defer rows.Close()
	var entries []types.ProxyCacheEntry
	for rows.Next() {
		var entry types.ProxyCacheEntry
		if err := rows.Scan(&entry.FullName, &entry.FileType, &entry.FilePath, &entry.Version); err != nil {
			return nil, queryFailed("failed to scan proxy caches", selectProxyCache, err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, queryFailed("failed to read proxy caches", selectProxyCache, err)
	}
	return entries, nil
}

func (s RegistrySQLStore) SaveProxyCache(ctx context.Context, entry types.ProxyCacheEntry) error {
	const stmt = "INSERT INTO `proxy_caches` (`fullname`, `file_type`, `file_path`, `version`) VALUES (?, ?, ?, ?) " +
		"ON DUPLICATE KEY UPDATE `fullname` = VALUES(`fullname`), `file_type` = VALUES(`file_type`), `version` = VALUES(`version`)"
	return s.exec(ctx, "failed to save proxy cache", stmt, entry.FullName, string(entry.FileType), entry.FilePath, entry.Version)
}

func (s RegistrySQLStore) RemoveProxyCache(ctx context.Context, fullname string, filePath string) error {
	const stmt = "DELETE FROM `proxy_caches` WHERE `fullname` = ? AND `file_path` = ?"
	return s.exec(ctx, "failed to remove proxy cache", stmt, fullname, filePath)
}

func (s RegistrySQLStore) queryString(ctx context.Context, msg string, query string, args ...any) (string, error) {
	var value string
	err := s.DB.QueryRowContext(ctx, query, args...).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", queryFailed(msg, query, err)
	}
	return value, nil
}

func (s RegistrySQLStore) exec(ctx context.Context, msg string, stmt string, args ...any) error {
	if _, err := s.DB.ExecContext(ctx, stmt, args...); err != nil {
		return queryFailed(msg, stmt, err)
	}
	return nil
}

func queryFailed(msg string, query string, err error) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg(msg).
		WithCause(shared.SQLError(query, err))
}

// buildRangeCondition renders r as a WHERE fragment over
// v.padding_version: the bound first, then the exact comparator sets.
func buildRangeCondition(r types.SqlRange) (string, []any) {
	minOp, maxOp := ">", "<"
	if r.MinInclusive {
		minOp = ">="
	}
	if r.MaxInclusive {
		maxOp = "<="
	}
	var b strings.Builder
	args := []any{semver.PaddingOf(r.MinVersion), semver.PaddingOf(r.MaxVersion)}
	b.WriteString("(v.`padding_version` " + minOp + " ? AND v.`padding_version` " + maxOp + " ?")
	if len(r.Conditions) > 0 {
		sets := make([]string, 0, len(r.Conditions))
		for _, set := range r.Conditions {
			if len(set) == 0 {
				sets = append(sets, "TRUE")
				continue
			}
			parts := make([]string, 0, len(set))
			for _, c := range set {
				parts = append(parts, "v.`padding_version` "+sqlOperator(c.Op)+" ?")
				args = append(args, c.PaddingVersion)
			}
			sets = append(sets, "("+strings.Join(parts, " AND ")+")")
		}
		b.WriteString(" AND (" + strings.Join(sets, " OR ") + ")")
	}
	b.WriteString(")")
	return b.String(), args
}

func sqlOperator(op types.ComparatorOp) string {
	switch op {
	case types.ComparatorOpGte, types.ComparatorOpLte, types.ComparatorOpGt, types.ComparatorOpLt:
		return string(op)
	default:
		return "="
	}
}

var (
	_ ports.PackageRepository             = RegistrySQLStore{}
	_ ports.PackageVersionRepository      = RegistrySQLStore{}
	_ ports.PackageVersionBlockRepository = RegistrySQLStore{}
	_ ports.DistRepository                = RegistrySQLStore{}
	_ ports.ManifestListPort              = RegistrySQLStore{}
	_ ports.RegistryWriterPort            = RegistrySQLStore{}
	_ ports.ProxyCacheRepository          = RegistrySQLStore{}
)
