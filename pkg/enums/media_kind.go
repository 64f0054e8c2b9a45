package enums

import "strings"

// MediaKind groups uploads by what the storefront can render.
type MediaKind string

const (
	MediaKindImage MediaKind = "image"
	MediaKindPDF   MediaKind = "pdf"
)

// String returns the literal string for the kind.
func (m MediaKind) String() string {
	return string(m)
}

// MediaKindForMIME maps a sniffed MIME type to a kind; ok is false for
// anything the media library does not accept.
func MediaKindForMIME(mime string) (MediaKind, bool) {
	mime = strings.ToLower(strings.TrimSpace(mime))
	switch {
	case mime == "application/pdf":
		return MediaKindPDF, true
	case mime == "image/jpeg", mime == "image/png", mime == "image/webp", mime == "image/gif", mime == "image/avif":
		return MediaKindImage, true
	default:
		return "", false
	}
}
