package ref

import (
	"fmt"
	"strings"
)

// MaxSegmentLength bounds a single path segment.
const MaxSegmentLength = 255

// forbiddenPrefixes are URI schemes that must never appear at the start
// of a reference path (scheme smuggling through the path component).
var forbiddenPrefixes = []string{
	"file:", "http:", "https:", "ftp:", "data:", "javascript:",
}

// windowsReserved are device filenames rejected in any path segment.
var windowsReserved = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// ValidatePath checks a reference path for traversal and injection
// patterns. It rejects empty paths, parent-directory references, absolute
// paths in any platform form, home-directory expansion, null bytes, and
// embedded URI schemes.
func ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("%w: path is empty", ErrInvalidReference)
	}

	if strings.ContainsRune(path, 0) {
		return fmt.Errorf("%w: path contains null bytes", ErrInvalidReference)
	}

	if strings.Contains(path, "..") {
		return fmt.Errorf("%w: path contains parent directory traversal: %s", ErrInvalidReference, path)
	}

	if strings.HasPrefix(path, "/") {
		return fmt.Errorf("%w: absolute paths not allowed: %s", ErrInvalidReference, path)
	}

	if strings.HasPrefix(path, "~") {
		return fmt.Errorf("%w: home directory expansion not allowed: %s", ErrInvalidReference, path)
	}

	if strings.HasPrefix(path, `\\`) {
		return fmt.Errorf("%w: UNC paths not allowed: %s", ErrInvalidReference, path)
	}

	if len(path) >= 2 && path[1] == ':' {
		return fmt.Errorf("%w: drive-letter paths not allowed: %s", ErrInvalidReference, path)
	}

	lower := strings.ToLower(path)
	for _, prefix := range forbiddenPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return fmt.Errorf("%w: path embeds a URI scheme: %s", ErrInvalidReference, path)
		}
	}

	for _, segment := range strings.Split(strings.ReplaceAll(path, `\`, "/"), "/") {
		if segment == "" {
			continue
		}
		if len(segment) > MaxSegmentLength {
			return fmt.Errorf("%w: path segment too long: %d chars (max %d)", ErrInvalidReference, len(segment), MaxSegmentLength)
		}
		base, _, _ := strings.Cut(segment, ".")
		if windowsReserved[strings.ToUpper(base)] {
			return fmt.Errorf("%w: path contains reserved name: %s", ErrInvalidReference, segment)
		}
	}

	return nil
}

// IsSafePath reports whether ValidatePath accepts the path.
func IsSafePath(path string) bool {
	return ValidatePath(path) == nil
}

// SanitizePath normalizes a path to a safe relative form: separators become
// forward slashes, duplicate slashes collapse, and "." / ".." segments are
// resolved without ever escaping the root.
func SanitizePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}

	path = strings.ReplaceAll(path, `\`, "/")
	for strings.Contains(path, "//") {
		path = strings.ReplaceAll(path, "//", "/")
	}
	path = strings.Trim(path, "/")

	var parts []string
	for _, part := range strings.Split(path, "/") {
		switch part {
		case "", ".":
		case "..":
			if len(parts) > 0 {
				parts = parts[:len(parts)-1]
			}
		default:
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, "/")
}
