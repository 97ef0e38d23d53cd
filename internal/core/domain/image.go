package domain

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultMimeType is assumed for payloads that arrive without a declared type.
const DefaultMimeType = "image/png"

// EmbeddedImage is an image carried inline: a mime type plus the base64 payload
// without any "data:" prefix.
type EmbeddedImage struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

// IsZero reports whether the image carries no payload.
func (e EmbeddedImage) IsZero() bool {
	return e.Data == ""
}

// DataURL renders the image as a displayable data URL.
func (e EmbeddedImage) DataURL() string {
	mime := e.MimeType
	if mime == "" {
		mime = DefaultMimeType
	}
	return "data:" + mime + ";base64," + e.Data
}

// Bytes decodes the payload.
func (e EmbeddedImage) Bytes() ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(e.Data)
	if err != nil {
		return nil, fmt.Errorf("decode image payload: %w", err)
	}
	return b, nil
}

// Validate checks that the image is in embedded form: a payload with no
// descriptive prefix left on it.
func (e EmbeddedImage) Validate() error {
	if e.Data == "" {
		return errors.New("image payload is empty")
	}
	if strings.HasPrefix(e.Data, "data:") {
		return errors.New("image payload still carries a data URL prefix")
	}
	if e.MimeType != "" && !strings.HasPrefix(e.MimeType, "image/") {
		return fmt.Errorf("unsupported mime type %q", e.MimeType)
	}
	return nil
}

// AssetKind separates people from garments in the catalog.
type AssetKind string

const (
	AssetPerson AssetKind = "person"
	AssetCloth  AssetKind = "cloth"
)

// ParseAssetKind accepts the wire names used by the API.
func ParseAssetKind(s string) (AssetKind, error) {
	switch AssetKind(strings.ToLower(strings.TrimSpace(s))) {
	case AssetPerson:
		return AssetPerson, nil
	case AssetCloth, "clothes", "garment":
		return AssetCloth, nil
	}
	return "", fmt.Errorf("unknown asset kind %q", s)
}

// ImageAsset is an image the user selected, uploaded or generated.
type ImageAsset struct {
	ID        string         `json:"id"`
	Kind      AssetKind      `json:"kind"`
	URL       string         `json:"url,omitempty"`
	Embedded  *EmbeddedImage `json:"embedded,omitempty"`
	Generated bool           `json:"generated"`
	CreatedAt time.Time      `json:"created_at"`
}

// Validate enforces that an asset is displayable by URL or by a decodable
// embedded payload.
func (a ImageAsset) Validate() error {
	if a.ID == "" {
		return errors.New("asset id is required")
	}
	if a.Embedded != nil {
		if err := a.Embedded.Validate(); err != nil {
			return fmt.Errorf("asset %s: %w", a.ID, err)
		}
		if _, err := a.Embedded.Bytes(); err != nil {
			return fmt.Errorf("asset %s: %w", a.ID, err)
		}
		return nil
	}
	if a.URL == "" {
		return fmt.Errorf("asset %s has neither url nor embedded payload", a.ID)
	}
	return nil
}

// DisplayURL returns what a UI should render for the asset.
func (a ImageAsset) DisplayURL() string {
	if a.URL != "" {
		return a.URL
	}
	if a.Embedded != nil {
		return a.Embedded.DataURL()
	}
	return ""
}
