package storage

import (
	"context"
	"errors"

	"github.com/vietddude/tryon/internal/core/domain"
)

var (
	// ErrAssetNotFound is returned when an asset id is unknown
	ErrAssetNotFound = errors.New("asset not found")

	// ErrDuplicateAsset is returned when an asset id is already taken
	ErrDuplicateAsset = errors.New("asset already exists")
)

// HistoryRepository records successful try-ons for the session
type HistoryRepository interface {
	// Append adds an entry; entries are never mutated or removed afterwards
	Append(ctx context.Context, entry domain.HistoryEntry) error

	// List returns entries most recent first
	List(ctx context.Context) ([]domain.HistoryEntry, error)

	// Len returns the number of entries
	Len(ctx context.Context) int
}

// AssetRepository holds preset, uploaded and generated images
type AssetRepository interface {
	// Save stores a new asset
	Save(ctx context.Context, asset domain.ImageAsset) error

	// Get retrieves an asset by id
	Get(ctx context.Context, id string) (domain.ImageAsset, error)

	// List returns assets of a kind, custom ones before presets, newest custom first
	List(ctx context.Context, kind domain.AssetKind) ([]domain.ImageAsset, error)
}
