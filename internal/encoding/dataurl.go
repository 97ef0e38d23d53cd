// Package encoding turns files, URLs and data URLs into embedded images.
package encoding

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/vietddude/tryon/internal/core/domain"
)

const base64Marker = ";base64,"

// ErrNotImage is returned for payloads that are not images.
var ErrNotImage = errors.New("payload is not an image")

// ParseDataURL splits "data:<mime>;base64,<payload>" into an embedded image.
func ParseDataURL(s string) (domain.EmbeddedImage, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "data:") {
		return domain.EmbeddedImage{}, fmt.Errorf("not a data URL")
	}

	idx := strings.Index(s, base64Marker)
	if idx < 0 {
		return domain.EmbeddedImage{}, fmt.Errorf("data URL is not base64 encoded")
	}

	mime := strings.ToLower(s[len("data:"):idx])
	if !strings.HasPrefix(mime, "image/") {
		return domain.EmbeddedImage{}, fmt.Errorf("%w: %q", ErrNotImage, mime)
	}

	payload := s[idx+len(base64Marker):]
	if payload == "" {
		return domain.EmbeddedImage{}, fmt.Errorf("data URL has an empty payload")
	}
	if _, err := base64.StdEncoding.DecodeString(payload); err != nil {
		return domain.EmbeddedImage{}, fmt.Errorf("decode data URL payload: %w", err)
	}

	return domain.EmbeddedImage{MimeType: mime, Data: payload}, nil
}

// StripPrefix returns the raw base64 payload of an image data URL. Anything
// else is returned unchanged.
func StripPrefix(s string) string {
	if !strings.HasPrefix(s, "data:image/") {
		return s
	}
	if idx := strings.Index(s, base64Marker); idx >= 0 {
		return s[idx+len(base64Marker):]
	}
	return s
}

// FormatDataURL re-adds the prefix for display.
func FormatDataURL(img domain.EmbeddedImage) string {
	return img.DataURL()
}

// FromBytes embeds raw bytes. declared is used when it names an image type;
// otherwise the type is sniffed from the content.
func FromBytes(data []byte, declared string) (domain.EmbeddedImage, error) {
	if len(data) == 0 {
		return domain.EmbeddedImage{}, fmt.Errorf("image is empty")
	}

	mime := normalizeMime(declared)
	if !strings.HasPrefix(mime, "image/") {
		mime = normalizeMime(http.DetectContentType(data))
	}
	if !strings.HasPrefix(mime, "image/") {
		return domain.EmbeddedImage{}, fmt.Errorf("%w: detected %q", ErrNotImage, mime)
	}

	return domain.EmbeddedImage{
		MimeType: mime,
		Data:     base64.StdEncoding.EncodeToString(data),
	}, nil
}

// normalizeMime drops parameters such as "; charset=utf-8".
func normalizeMime(s string) string {
	if i := strings.Index(s, ";"); i >= 0 {
		s = s[:i]
	}
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "image/jpg" {
		return "image/jpeg"
	}
	return s
}
