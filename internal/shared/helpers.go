// Package shared provides common utility functions used across multiple
// packages in the registry-core codebase.
package shared

import (
	"fmt"
	"strings"
)

// ScopeAndName splits a package full name such as "@scope/name" into its
// scope ("@scope") and bare name. Unscoped names return an empty scope.
func ScopeAndName(fullname string) (string, string) {
	fullname = strings.TrimSpace(fullname)
	if !strings.HasPrefix(fullname, "@") {
		return "", fullname
	}
	scope, name, ok := strings.Cut(fullname, "/")
	if !ok {
		return "", fullname
	}
	return scope, name
}

// FullName joins a scope and bare name back into a package full name.
func FullName(scope string, name string) string {
	if scope == "" {
		return name
	}
	return scope + "/" + name
}

// SQLError wraps a storage error with the statement that produced it for
// cleaner error messages.
func SQLError(statement string, err error) error {
	return fmt.Errorf("%s: %w", strings.TrimSpace(statement), err)
}
