package sanitize

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
)

// Validation errors for security checks.
var (
	// ErrPathTraversal indicates a path contains directory traversal sequences.
	ErrPathTraversal = errors.New("path contains directory traversal")

	// ErrAbsolutePath indicates an absolute path was provided where relative was expected.
	ErrAbsolutePath = errors.New("absolute path not allowed")

	// ErrEmptyPath indicates an empty path was provided.
	ErrEmptyPath = errors.New("path cannot be empty")

	// ErrInvalidSlug indicates a tenant slug is malformed.
	ErrInvalidSlug = errors.New("invalid slug")
)

// MediaPrefix is stripped from download paths copied from media URLs.
const MediaPrefix = "media/"

// slugPattern matches slugs produced by ProjectSlug.
var slugPattern = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9_-]{0,62}[a-z0-9])?$`)

// RelativePath validates a storage path received from a client and returns
// its cleaned, slash-separated form relative to the media root.
//
// The input must still be percent-encoded, as in a request URL. It is
// URL-decoded exactly once, backslashes become slashes and a leading
// "media/" is removed. Absolute paths, drive letters and any ".." element are
// rejected, before and after cleaning.
func RelativePath(p string) (string, error) {
	if p == "" {
		return "", ErrEmptyPath
	}

	decoded, err := url.PathUnescape(p)
	if err != nil {
		return "", fmt.Errorf("%w: malformed escape", ErrPathTraversal)
	}
	decoded = strings.ReplaceAll(decoded, `\`, "/")

	if strings.HasPrefix(decoded, "/") || hasDriveLetter(decoded) {
		return "", ErrAbsolutePath
	}
	decoded = strings.TrimPrefix(decoded, MediaPrefix)

	// Check for obvious traversal patterns before any processing
	if containsDotDot(decoded) {
		return "", fmt.Errorf("%w: contains '..'", ErrPathTraversal)
	}

	clean := path.Clean(decoded)
	if clean == "." || clean == "" {
		return "", ErrEmptyPath
	}

	// Re-check after cleaning (handles edge cases like "foo/./../..")
	if containsDotDot(clean) || strings.HasPrefix(clean, "/") {
		return "", fmt.Errorf("%w: resolves to traversal", ErrPathTraversal)
	}

	return clean, nil
}

// ValidateSlug checks that a tenant slug is in canonical form.
func ValidateSlug(slug string) error {
	if !slugPattern.MatchString(slug) {
		return fmt.Errorf("%w: %q must be lowercase alphanumeric with '-' or '_' (1-64 chars)", ErrInvalidSlug, slug)
	}
	return nil
}

// containsDotDot reports whether any element of p is "..".
func containsDotDot(p string) bool {
	for _, elem := range strings.Split(p, "/") {
		if elem == ".." {
			return true
		}
	}
	return false
}

func hasDriveLetter(p string) bool {
	return len(p) >= 2 && p[1] == ':' && ((p[0] >= 'a' && p[0] <= 'z') || (p[0] >= 'A' && p[0] <= 'Z'))
}
