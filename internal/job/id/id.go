// Package id provides collision-free job identifiers derived from uploaded
// filenames.
package id

import (
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Clean sanitizes an uploaded filename: path components are stripped and
// characters outside a conservative allowlist become underscores.
func Clean(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	cleaned := strings.Trim(b.String(), "._")
	if cleaned == "" {
		return "upload"
	}
	return cleaned
}

// New builds a unique job ID from an uploaded filename by inserting an
// 8-character UUID fragment between the cleaned stem and the extension.
// Example: "safari trip.mp4" -> "safari_trip_a1b2c3d4.mp4".
func New(filename string) string {
	cleaned := Clean(filename)
	ext := filepath.Ext(cleaned)
	stem := strings.TrimSuffix(cleaned, ext)
	suffix := uuid.NewString()[:8]
	if stem == "" {
		return suffix + ext
	}
	return stem + "_" + suffix + ext
}
