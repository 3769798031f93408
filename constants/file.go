package constants

import "strings"

// Format is the coarse document family used for dispatch and aggregation priority.
type Format string

const (
	FormatEmail   Format = "EMAIL"
	FormatPDF     Format = "PDF"
	FormatImage   Format = "IMAGE"
	FormatUnknown Format = "UNKNOWN"
)

const (
	MimeEmail = "message/rfc822"
	MimePDF   = "application/pdf"
	MimeJPEG  = "image/jpeg"
	MimePNG   = "image/png"
	MimeHEIC  = "image/heic"
	MimeHEIF  = "image/heif"
	MimeOctet = "application/octet-stream"
)

// AllowedExtensions holds the file extensions picked up by directory ingestion.
var AllowedExtensions = map[string]struct{}{
	"eml":  {},
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"heic": {},
	"heif": {},
	"tif":  {},
	"tiff": {},
	"webp": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsAllowedExt reports whether the extension is accepted for ingestion.
func IsAllowedExt(ext string) bool {
	_, ok := AllowedExtensions[NormalizeExt(ext)]
	return ok
}

// IsHEICExt reports whether the extension belongs to the HEIC/HEIF family.
func IsHEICExt(ext string) bool {
	switch NormalizeExt(ext) {
	case "heic", "heif":
		return true
	}
	return false
}

// MapExtToFormat maps a file extension to a Format.
func MapExtToFormat(ext string) Format {
	switch NormalizeExt(ext) {
	case "eml":
		return FormatEmail
	case "pdf":
		return FormatPDF
	case "jpg", "jpeg", "png", "heic", "heif", "tif", "tiff", "webp", "gif", "bmp":
		return FormatImage
	}
	return FormatUnknown
}

// MapMimeToFormat maps a detected mime type to a Format.
func MapMimeToFormat(mime string) Format {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	switch {
	case mime == MimeEmail:
		return FormatEmail
	case mime == MimePDF:
		return FormatPDF
	case strings.HasPrefix(mime, "image/"):
		return FormatImage
	}
	return FormatUnknown
}

// IsHEICMime reports whether the mime type is HEIC/HEIF.
func IsHEICMime(mime string) bool {
	mime = strings.ToLower(mime)
	return strings.HasPrefix(mime, MimeHEIC) || strings.HasPrefix(mime, MimeHEIF)
}
