package constants

import "strings"

const (
	ContentTypeJPEG = "image/jpeg"
	ContentTypePNG  = "image/png"
	ContentTypePDF  = "application/pdf"
)

// MaxPhotosPerReceipt bounds a receipt group; the booth UI never captures more.
const MaxPhotosPerReceipt = 3

// AllowedExtensions holds the image extensions accepted for captured stills.
var AllowedExtensions = map[string]struct{}{
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"gif":  {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsAllowedExt reports whether ext (with or without dot) is a supported still image.
func IsAllowedExt(ext string) bool {
	_, ok := AllowedExtensions[NormalizeExt(ext)]
	return ok
}

// ContentTypeForExt maps an image extension to its MIME type.
func ContentTypeForExt(ext string) string {
	switch NormalizeExt(ext) {
	case "png":
		return ContentTypePNG
	case "gif":
		return "image/gif"
	default:
		return ContentTypeJPEG
	}
}
