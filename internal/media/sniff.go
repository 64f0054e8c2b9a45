package media

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"unicode"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/gulautos/storefront-backend/pkg/enums"
)

// sniffLen matches the mimetype library's default read limit.
const sniffLen = 3072

var errUnsupportedType = errors.New("unsupported file type")

// sniff detects the content type from the leading bytes and returns a reader
// that still yields the whole body.
func sniff(r io.Reader) (string, enums.MediaKind, io.Reader, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", "", nil, fmt.Errorf("read file header: %w", err)
	}
	head = head[:n]

	mime, _, _ := strings.Cut(mimetype.Detect(head).String(), ";")
	mime = strings.TrimSpace(mime)
	kind, ok := enums.MediaKindForMIME(mime)
	if !ok {
		return mime, "", nil, errUnsupportedType
	}
	return mime, kind, io.MultiReader(bytes.NewReader(head), r), nil
}

func buildObjectKey(kind enums.MediaKind, id uuid.UUID, fileName string) string {
	cleanName := sanitizeFileName(fileName)
	if cleanName == "" {
		cleanName = id.String()
	}
	return fmt.Sprintf("media/%s/%s/%s", kind, id.String(), cleanName)
}

func sanitizeFileName(name string) string {
	if name == "" {
		return ""
	}
	clean := path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if clean == "." || clean == "/" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(clean))
	for _, r := range clean {
		switch {
		case unicode.IsControl(r):
			continue
		case unicode.IsSpace(r):
			b.WriteRune('-')
		default:
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "-_.")
}
