package app

import (
	"context"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"registry-core/internal/adapters"
	"registry-core/internal/core"
	"registry-core/internal/ports"
)

const (
	BackendFile  = "file"
	BackendMySQL = "mysql"

	mysqlWaitDelay = 2 * time.Second
)

// Registry is the set of ports a request runs against.
type Registry struct {
	Packages        ports.PackageRepository
	PackageVersions ports.PackageVersionRepository
	Blocks          ports.PackageVersionBlockRepository
	Dists           ports.DistRepository
	Manifests       ports.ManifestListPort
	ProxyCaches     ports.ProxyCacheRepository
	Files           ports.DistFilePort
	Writer          ports.RegistryWriterPort
	Close           func() error
}

type Service struct {
	// BugVersions outlives single requests so loaded tables are reused.
	BugVersions  ports.BugVersionStorePort
	OpenRegistry func(ctx context.Context, cfg BackendConfig) (Registry, error)
}

func NewService() Service {
	return Service{
		BugVersions:  adapters.NewBugVersionStore(),
		OpenRegistry: openRegistry,
	}
}

func (s Service) open(ctx context.Context, cfg BackendConfig) (Registry, func(), error) {
	registry, err := s.OpenRegistry(ctx, cfg)
	if err != nil {
		return Registry{}, nil, err
	}
	release := func() {
		if registry.Close != nil {
			_ = registry.Close()
		}
	}
	return registry, release, nil
}

func (s Service) bugVersionService(registry Registry) *core.BugVersionService {
	cache := adapters.NewProxyCacheService(registry.ProxyCaches, registry.Files)
	return core.NewBugVersionService(registry.Packages, registry.Dists, cache, s.BugVersions)
}

func (s Service) packageVersionService(registry Registry) core.PackageVersionService {
	return core.NewPackageVersionService(
		registry.PackageVersions,
		registry.Packages,
		registry.Blocks,
		s.bugVersionService(registry),
		registry.Dists,
	)
}

func openRegistry(ctx context.Context, cfg BackendConfig) (Registry, error) {
	files := adapters.NewDistDir(cfg.DistDir)
	switch normalizeBackend(cfg.Backend) {
	case BackendFile:
		if strings.TrimSpace(cfg.SnapshotPath) == "" {
			return Registry{}, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("registry snapshot path is required for the file backend")
		}
		snapshot := adapters.NewRegistrySnapshotFile(cfg.SnapshotPath)
		return Registry{
			Packages:        snapshot,
			PackageVersions: snapshot,
			Blocks:          snapshot,
			Dists:           snapshot,
			Manifests:       snapshot,
			ProxyCaches:     snapshot,
			Files:           files,
		}, nil
	case BackendMySQL:
		db, err := adapters.NewMySQLDB(cfg.MySQL)
		if err != nil {
			return Registry{}, err
		}
		if err := adapters.InitSchema(ctx, db, mysqlWaitDelay); err != nil {
			_ = db.Close()
			return Registry{}, err
		}
		store := adapters.NewRegistrySQLStore(db)
		return Registry{
			Packages:        store,
			PackageVersions: store,
			Blocks:          store,
			Dists:           store,
			Manifests:       store,
			ProxyCaches:     store,
			Files:           files,
			Writer:          store,
			Close:           db.Close,
		}, nil
	default:
		return Registry{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("unsupported registry backend: " + cfg.Backend)
	}
}

func normalizeBackend(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return BackendFile
	}
	return value
}
