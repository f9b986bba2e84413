package app

import (
	"context"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"registry-core/internal/core"
)

// PackagePublished notifies the engine that a package version was
// published. Only the bug-versions package triggers work: the caches of
// every package it names are invalidated.
func (s Service) PackagePublished(ctx context.Context, req PackagePublishedRequest) (PackagePublishedResult, error) {
	fullname := strings.TrimSpace(req.Package)
	if fullname == "" {
		return PackagePublishedResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("package name is required")
	}
	registry, release, err := s.open(ctx, req.Backend)
	if err != nil {
		return PackagePublishedResult{}, err
	}
	defer release()

	handler := core.NewBugVersionFixHandler(s.bugVersionService(registry))
	report, err := handler.Handle(ctx, fullname)
	if err != nil {
		return PackagePublishedResult{}, err
	}
	if report == nil {
		return PackagePublishedResult{}, nil
	}
	return PackagePublishedResult{
		Handled: true,
		Cleaned: report.Packages,
		Failed:  report.Failed,
	}, nil
}
