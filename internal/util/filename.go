package util

import (
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"go-fileops/pkg/apierror"
)

// maxFilenameBytes is NAME_MAX on common Linux filesystems.
const maxFilenameBytes = 255

// ValidateFilename checks a single path component supplied by a caller and
// returns it unchanged. Names are never rewritten: anything the host cannot
// store as one entry is rejected instead.
func ValidateFilename(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", apierror.InvalidFilename("filename cannot be empty", "")
	}

	if name == "." || name == ".." {
		return "", apierror.InvalidFilename("filename cannot be current or parent directory", name)
	}

	if len(name) > maxFilenameBytes {
		return "", apierror.InvalidFilename("filename is too long", name)
	}

	for _, char := range name {
		switch {
		case char == 0:
			return "", apierror.InvalidFilename("filename contains null bytes", name)
		case char < utf8.RuneSelf && os.IsPathSeparator(uint8(char)):
			return "", apierror.InvalidFilename("filename cannot contain a path separator", name)
		case unicode.IsControl(char):
			return "", apierror.InvalidFilename("filename contains control characters", name)
		}
	}

	return name, nil
}
