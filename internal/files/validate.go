package files

import (
	"path/filepath"
	"strings"
)

// DefaultMaxUploadSize caps workflow file uploads at 50 MB.
const DefaultMaxUploadSize int64 = 50 * 1024 * 1024

// Browsers and upstream tools frequently report generic MIME types for files
// they cannot sniff. Those uploads fall back to extension validation instead
// of being trusted or rejected on MIME alone.
var genericContentTypes = map[string]struct{}{
	"":                         {},
	"application/octet-stream": {},
	"binary/octet-stream":      {},
}

var allowedContentTypes = map[string]struct{}{
	"text/plain":      {},
	"text/markdown":   {},
	"text/csv":        {},
	"text/html":       {},
	"text/css":        {},
	"text/xml":        {},
	"text/tab-separated-values": {},
	"application/json":          {},
	"application/xml":           {},
	"application/pdf":           {},
	"application/msword":        {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   {},
	"application/vnd.ms-powerpoint":                                             {},
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": {},
	"application/vnd.ms-excel": {},
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": {},
	"application/vnd.oasis.opendocument.text":                           {},
	"application/vnd.oasis.opendocument.spreadsheet":                    {},
	"application/rtf": {},
	"application/x-tex": {},
	"image/jpeg":        {},
	"image/png":         {},
	"image/svg+xml":     {},
}

var allowedExtensions = map[string]struct{}{
	".md":       {},
	".markdown": {},
	".mdx":      {},
	".txt":      {},
	".csv":      {},
	".tsv":      {},
	".html":     {},
	".htm":      {},
	".css":      {},
	".xml":      {},
	".json":     {},
	".pdf":      {},
	".doc":      {},
	".docx":     {},
	".ppt":      {},
	".pptx":     {},
	".xls":      {},
	".xlsx":     {},
	".odt":      {},
	".ods":      {},
	".rtf":      {},
	".tex":      {},
	".jpg":      {},
	".jpeg":     {},
	".png":      {},
	".svg":      {},
}

// Validate checks an upload against the file policy: size ceiling first, then
// filename extension, then content type. Generic content types defer to the
// extension. The extension gate always applies, so an executable is rejected
// no matter what MIME type the client claims.
func Validate(filename, contentType string, size, maxSize int64) error {
	if size > maxSize {
		return ErrFileTooLarge
	}
	if size == 0 {
		return ErrEmptyFile
	}
	if strings.TrimSpace(filename) == "" {
		return ErrMissingFilename
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := allowedExtensions[ext]; !ok {
		return ErrTypeNotAllowed
	}

	normalized := normalizeContentType(contentType)
	if _, generic := genericContentTypes[normalized]; generic {
		return nil
	}
	if _, ok := allowedContentTypes[normalized]; !ok {
		return ErrTypeNotAllowed
	}

	return nil
}

// normalizeContentType strips parameters such as charset and lowercases the
// media type.
func normalizeContentType(contentType string) string {
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}
