// Package media provides helpers for describing binary media payloads
// before they are handed to a remote provider.
package media

import (
	"path/filepath"
	"strings"
)

// DefaultContentType is used when no extension matches and no fallback is given.
const DefaultContentType = "application/octet-stream"

// contentTypesByExt maps known file extensions to their MIME types.
// Only the formats the video provider accepts are listed.
var contentTypesByExt = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".m4a":  "audio/mp4",
}

// ContentTypeFor infers a MIME type from a file name's extension.
// The match is case-insensitive. When the extension is unknown or missing,
// the fallback is returned; an empty fallback yields DefaultContentType.
func ContentTypeFor(name, fallback string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ct, ok := contentTypesByExt[ext]; ok {
		return ct
	}
	if fallback != "" {
		return fallback
	}
	return DefaultContentType
}
