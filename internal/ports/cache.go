package ports

import (
	"context"

	"registry-core/internal/entities"
	"registry-core/internal/types"
)

type CacheService interface {
	RemoveCache(ctx context.Context, fullname string) error
}

// BugVersionStorePort caches BugVersion tables keyed by the version of the
// bug-versions package they were loaded from.
type BugVersionStorePort interface {
	GetBugVersion(version string) *entities.BugVersion
	SetBugVersion(bugVersion *entities.BugVersion, version string)
}

type ProxyCacheRepository interface {
	FindProxyCaches(ctx context.Context, fullname string) ([]types.ProxyCacheEntry, error)
	SaveProxyCache(ctx context.Context, entry types.ProxyCacheEntry) error
	RemoveProxyCache(ctx context.Context, fullname string, filePath string) error
}

// DistFilePort removes stored dist files by their relative path.
type DistFilePort interface {
	RemoveFile(ctx context.Context, path string) error
}
