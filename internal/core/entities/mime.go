package entities

import "strings"

// DefaultContentType is used when an extension has no known mapping
// (§6.4).
const DefaultContentType = "application/octet-stream"

// extensionMimeTable is the default MIME table used by Bundle.FromFiles
// auto-detection (§6.4).
var extensionMimeTable = map[string]string{
	"html": "text/html",
	"htm":  "text/html",
	"css":  "text/css",
	"js":   "application/javascript",
	"mjs":  "application/javascript",
	"json": "application/json",
	"txt":  "text/plain",
	"xml":  "application/xml",
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"svg":  "image/svg+xml",
	"webp": "image/webp",
	"ico":  "image/x-icon",
	"woff": "font/woff",
	"woff2": "font/woff2",
	"ttf":  "font/ttf",
	"otf":  "font/otf",
	"pdf":  "application/pdf",
	"mp3":  "audio/mpeg",
	"mp4":  "video/mp4",
	"webm": "video/webm",
	"ogg":  "audio/ogg",
	"zip":  "application/zip",
	"tar":  "application/x-tar",
	"gz":   "application/gzip",
	"wasm": "application/wasm",
}

// MimeForPath returns the default content type for a virtual path's
// extension, falling back to DefaultContentType for unknown or absent
// extensions.
func MimeForPath(path string) string {
	base := path
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		base = path[idx+1:]
	}
	dot := strings.LastIndex(base, ".")
	if dot < 0 || dot == len(base)-1 {
		return DefaultContentType
	}
	ext := strings.ToLower(base[dot+1:])
	if ct, ok := extensionMimeTable[ext]; ok {
		return ct
	}
	return DefaultContentType
}
