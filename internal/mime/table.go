// Package mime carries the closed, static extension-to-MIME-type table the
// resource cache uses when serving static files. Unknown extensions default
// to application/octet-stream.
package mime

import (
	"path"
	"strings"
)

const DefaultType = "application/octet-stream"

var table = map[string]string{
	".html": "text/html",
	".htm":  "text/html",
	".css":  "text/css",
	".js":   "application/javascript",
	".json": "application/json",
	".xml":  "application/xml",
	".txt":  "text/plain",
	".csv":  "text/csv",

	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
	".ico":  "image/x-icon",
	".svg":  "image/svg+xml",

	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",
	".aac":  "audio/aac",

	".mp4":  "video/mp4",
	".webm": "video/webm",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".wmv":  "video/x-ms-wmv",
	".flv":  "video/x-flv",
	".mkv":  "video/x-matroska",

	".zip": "application/zip",
	".tar": "application/x-tar",
	".gz":  "application/gzip",
	".rar": "application/vnd.rar",
	".7z":  "application/x-7z-compressed",

	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".ppt":  "application/vnd.ms-powerpoint",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",

	".eot":   "application/vnd.ms-fontobject",
	".ttf":   "font/ttf",
	".otf":   "font/otf",
	".woff":  "font/woff",
	".woff2": "font/woff2",

	".exe": "application/octet-stream",
	".bin": "application/octet-stream",
	".dll": "application/octet-stream",
	".iso": "application/octet-stream",
	".img": "application/octet-stream",

	".wasm": "application/wasm",
}

// ForPath returns the MIME type for the file extension of p, lowercased,
// defaulting to DefaultType for unknown or absent extensions.
func ForPath(p string) string {
	ext := strings.ToLower(path.Ext(p))
	if t, ok := table[ext]; ok {
		return t
	}
	return DefaultType
}
