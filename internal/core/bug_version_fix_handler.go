package core

import (
	"context"

	"github.com/rs/zerolog/log"

	"registry-core/internal/entities"
	"registry-core/internal/types"
)

// BugVersionCleaner is the part of BugVersionService the fix handler needs.
type BugVersionCleaner interface {
	GetBugVersion(ctx context.Context) (*entities.BugVersion, error)
	CleanBugVersionPackageCaches(ctx context.Context, bugVersion *entities.BugVersion) CleanReport
}

// BugVersionFixHandler reacts to a newly published version of the
// bug-versions package by invalidating the caches of every affected package.
type BugVersionFixHandler struct {
	Service BugVersionCleaner
}

func NewBugVersionFixHandler(service BugVersionCleaner) BugVersionFixHandler {
	return BugVersionFixHandler{Service: service}
}

// Handle is a no-op for any package other than bug-versions. The returned
// report is nil when nothing was cleaned.
func (h BugVersionFixHandler) Handle(ctx context.Context, fullname string) (*CleanReport, error) {
	if fullname != types.BugVersionsPackage {
		return nil, nil
	}
	bugVersion, err := h.Service.GetBugVersion(ctx)
	if err != nil {
		return nil, err
	}
	if bugVersion == nil {
		log.Ctx(ctx).Debug().Msg(bugVersionServiceLogPrefix + " bug-versions published without latest tag")
		return nil, nil
	}
	report := h.Service.CleanBugVersionPackageCaches(ctx, bugVersion)
	log.Ctx(ctx).Info().
		Int("packages", len(report.Packages)).
		Int("failed", len(report.Failed)).
		Msg(bugVersionServiceLogPrefix + " cleaned bug version package caches")
	return &report, nil
}
