package core

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"registry-core/internal/semver"
	"registry-core/internal/types"
)

const aliasPrefix = "npm:"

// ParseSpec parses a package request such as "lodash@^4.17.0",
// "@scope/pkg@beta" or "alias@npm:lodash@4". A bare name requests the
// latest tag.
func ParseSpec(raw string) (types.VersionSpec, error) {
	name, selector := splitNameAndSelector(strings.TrimSpace(raw))
	if name == "" {
		return types.VersionSpec{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("invalid package spec: %s", raw))
	}
	return ParseSelector(name, selector, raw)
}

// ParseSelector classifies selector for the package name.
func ParseSelector(name string, selector string, raw string) (types.VersionSpec, error) {
	selector = strings.TrimSpace(selector)
	spec := types.VersionSpec{Name: name, Raw: raw, FetchSpec: selector}
	switch {
	case selector == "":
		spec.Kind = types.SpecKindTag
		spec.FetchSpec = types.LatestTag
	case strings.HasPrefix(selector, aliasPrefix):
		sub, err := ParseSpec(strings.TrimPrefix(selector, aliasPrefix))
		if err != nil {
			return types.VersionSpec{}, err
		}
		if sub.Kind == types.SpecKindAlias {
			return types.VersionSpec{}, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("nested aliases are not supported: %s", raw))
		}
		spec.Kind = types.SpecKindAlias
		spec.SubSpec = &sub
	case hasAnyPrefix(selector, "git+", "git://", "github:", "gitlab:", "bitbucket:"):
		spec.Kind = types.SpecKindGit
	case hasAnyPrefix(selector, "http://", "https://"):
		spec.Kind = types.SpecKindRemote
	case strings.HasPrefix(selector, "file:") || strings.HasSuffix(selector, ".tgz") || strings.HasSuffix(selector, ".tar.gz"):
		spec.Kind = types.SpecKindFile
	case hasAnyPrefix(selector, "./", "../", "/", "~/"):
		spec.Kind = types.SpecKindDirectory
	case semver.Valid(selector) != "":
		spec.Kind = types.SpecKindVersion
	default:
		if _, err := semver.ParseRange(selector); err == nil {
			spec.Kind = types.SpecKindRange
			break
		}
		if url.PathEscape(selector) != selector {
			return types.VersionSpec{}, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("invalid tag name: %s", selector))
		}
		spec.Kind = types.SpecKindTag
	}
	return spec, nil
}

func splitNameAndSelector(raw string) (string, string) {
	offset := 0
	if strings.HasPrefix(raw, "@") {
		slash := strings.Index(raw, "/")
		if slash < 0 {
			return "", ""
		}
		offset = slash
	}
	idx := strings.Index(raw[offset:], "@")
	if idx < 0 {
		return raw, ""
	}
	return raw[:offset+idx], raw[offset+idx+1:]
}

func hasAnyPrefix(value string, prefixes ...string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(value, prefix) {
			return true
		}
	}
	return false
}
