package util

import (
	"regexp"
	"strings"
)

var uuidRegex = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

func IsValidUUID(s string) bool {
	if s == "" {
		return false
	}
	return uuidRegex.MatchString(s)
}

// IsImageContentType reports whether a MIME type names an image, the
// only kind of file the ID photo upload accepts.
func IsImageContentType(contentType string) bool {
	return strings.HasPrefix(contentType, "image/")
}
