package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// Coordinate components end up as path segments in the local store and in
// remote URLs, so they are checked before either is built.
var (
	groupIDRegex    = regexp.MustCompile(`^[A-Za-z0-9_-]+(\.[A-Za-z0-9_-]+)*$`)
	artifactIDRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)
	versionRegex    = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._+-]*$`)
	classifierRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)
)

const maxComponentLength = 256

func checkComponent(kind, s string, re *regexp.Regexp) error {
	if s == "" {
		return New(ErrCodeInvalidInput, "%s cannot be empty", kind)
	}
	if len(s) > maxComponentLength {
		return New(ErrCodeInvalidInput, "%s too long (max %d characters)", kind, maxComponentLength)
	}
	for _, r := range s {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "%s contains invalid control characters", kind)
		}
	}
	if strings.Contains(s, "..") {
		return New(ErrCodeInvalidInput, "%s contains invalid characters: %q", kind, "..")
	}
	if !re.MatchString(s) {
		return New(ErrCodeInvalidInput, "invalid %s: %q", kind, s)
	}
	return nil
}

// ValidateGroupID validates a Maven group id such as "org.slf4j".
func ValidateGroupID(s string) error { return checkComponent("group id", s, groupIDRegex) }

// ValidateArtifactID validates a Maven artifact id.
func ValidateArtifactID(s string) error { return checkComponent("artifact id", s, artifactIDRegex) }

// ValidateVersion validates a concrete version string. Ranges are not
// accepted here; see package version for requirement syntax.
func ValidateVersion(s string) error { return checkComponent("version", s, versionRegex) }

// ValidateClassifier validates an artifact classifier. Empty is allowed.
func ValidateClassifier(s string) error {
	if s == "" {
		return nil
	}
	return checkComponent("classifier", s, classifierRegex)
}

// ValidatePath validates a relative file path for safety.
// It prevents path traversal and ensures reasonable path length.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - No absolute paths (must be relative)
//   - No path traversal sequences (..)
//   - No backslashes (Windows-style paths)
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidInput, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidInput, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "path contains invalid characters")
		}
	}

	if strings.HasPrefix(path, "/") {
		return New(ErrCodeInvalidInput, "path must be relative (cannot start with /)")
	}

	if strings.Contains(path, "..") {
		return New(ErrCodeInvalidInput, "path cannot contain path traversal sequences (..)")
	}

	if strings.Contains(path, "\\") {
		return New(ErrCodeInvalidInput, "path cannot contain backslashes")
	}

	return nil
}

// ValidateURL validates a repository URL.
// It ensures the URL has a safe scheme (http or https).
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}

	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return New(ErrCodeInvalidInput, "URL must use http or https scheme")
	}

	return nil
}
