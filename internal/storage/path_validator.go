package storage

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"unicode"

	"go-fileops/pkg/apierror"
)

// MaxPathLength mirrors PATH_MAX on Linux.
const MaxPathLength = 4096

// PathValidator checks host paths handed to the engine. When a root is set
// every path must also resolve inside it.
type PathValidator struct {
	rootAbs string
}

func NewPathValidator(root string) (*PathValidator, error) {
	if strings.TrimSpace(root) == "" {
		return &PathValidator{}, nil
	}

	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}

	return &PathValidator{rootAbs: rootAbs}, nil
}

func (v *PathValidator) RootAbs() string {
	return v.rootAbs
}

// Validate returns the cleaned absolute form of path. A trailing separator
// is dropped; callers that care check for it before validating.
func (v *PathValidator) Validate(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", apierror.New(apierror.CodeInvalidPath, "path cannot be empty", path, http.StatusBadRequest)
	}

	if strings.Contains(trimmed, "\x00") || hasControlCharacters(trimmed) {
		return "", apierror.New(apierror.CodeInvalidPath, "path contains invalid characters", path, http.StatusBadRequest)
	}

	if len(trimmed) > MaxPathLength {
		return "", apierror.New(apierror.CodePathTooLong, "path exceeds maximum length", "", http.StatusBadRequest)
	}

	if !filepath.IsAbs(trimmed) {
		return "", apierror.New(apierror.CodeInvalidPath, "path must be absolute", path, http.StatusBadRequest)
	}

	for _, segment := range strings.Split(filepath.ToSlash(trimmed), "/") {
		if segment == ".." {
			return "", apierror.New(apierror.CodePathTraversal, "path traversal attempt detected", path, http.StatusForbidden)
		}
	}

	cleaned := filepath.Clean(trimmed)
	if v.rootAbs != "" && !IsWithin(v.rootAbs, cleaned) {
		return "", apierror.New(apierror.CodePathTraversal, "path is outside workspace root", path, http.StatusForbidden)
	}

	return cleaned, nil
}

func hasControlCharacters(value string) bool {
	for _, char := range value {
		if unicode.IsControl(char) {
			return true
		}
	}

	return false
}

// IsWithin reports whether candidate is parent or lies below it. Both paths
// must be clean and absolute.
func IsWithin(parent string, candidate string) bool {
	if candidate == parent {
		return true
	}

	parentWithSeparator := parent
	if !strings.HasSuffix(parentWithSeparator, string(filepath.Separator)) {
		parentWithSeparator += string(filepath.Separator)
	}
	return strings.HasPrefix(candidate, parentWithSeparator)
}

// HasTrailingSeparator reports whether path names a directory by its shape.
func HasTrailingSeparator(path string) bool {
	trimmed := strings.TrimSpace(path)
	return len(trimmed) > 1 && (strings.HasSuffix(trimmed, "/") || strings.HasSuffix(trimmed, string(filepath.Separator)))
}
