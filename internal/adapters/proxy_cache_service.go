package adapters

import (
	"context"
	"errors"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"registry-core/internal/ports"
)

// ProxyCacheService drops every cached upstream artifact of a package: the
// stored file first, then its record.
type ProxyCacheService struct {
	Caches ports.ProxyCacheRepository
	Files  ports.DistFilePort
}

func NewProxyCacheService(caches ports.ProxyCacheRepository, files ports.DistFilePort) ProxyCacheService {
	return ProxyCacheService{Caches: caches, Files: files}
}

// RemoveCache keeps going after a failed entry and reports all failures
// together.
func (s ProxyCacheService) RemoveCache(ctx context.Context, fullname string) error {
	entries, err := s.Caches.FindProxyCaches(ctx, fullname)
	if err != nil {
		return err
	}
	var errs []error
	for _, entry := range entries {
		if err := s.Files.RemoveFile(ctx, entry.FilePath); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := s.Caches.RemoveProxyCache(ctx, entry.FullName, entry.FilePath); err != nil {
			errs = append(errs, err)
			continue
		}
		log.Ctx(ctx).Debug().
			Str("package", fullname).
			Str("file_type", string(entry.FileType)).
			Str("path", entry.FilePath).
			Msg("removed proxy cache")
	}
	if len(errs) > 0 {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to remove proxy caches of " + fullname).
			WithCause(errors.Join(errs...))
	}
	return nil
}

var _ ports.CacheService = ProxyCacheService{}
