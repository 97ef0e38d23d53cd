package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vietddude/tryon/internal/core/config"
	"github.com/vietddude/tryon/internal/core/domain"
	"github.com/vietddude/tryon/internal/infra/storage"
)

// MemoryStorage is the session state. It lives as long as the process.
type MemoryStorage struct {
	history []domain.HistoryEntry
	assets  map[string]domain.ImageAsset
	custom  []string // custom asset ids, oldest first
	presets []string // preset asset ids, config order
	mu      sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		assets: make(map[string]domain.ImageAsset),
	}
}

// SeedPresets loads the configured preset catalog.
func (s *MemoryStorage) SeedPresets(cat config.CatalogConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	add := func(kind domain.AssetKind, presets []config.PresetConfig) error {
		for _, p := range presets {
			if _, exists := s.assets[p.ID]; exists {
				return fmt.Errorf("%w: %s", storage.ErrDuplicateAsset, p.ID)
			}
			s.assets[p.ID] = domain.ImageAsset{ID: p.ID, Kind: kind, URL: p.URL}
			s.presets = append(s.presets, p.ID)
		}
		return nil
	}

	if err := add(domain.AssetPerson, cat.Persons); err != nil {
		return err
	}
	return add(domain.AssetCloth, cat.Clothes)
}

// -----------------------------------------------------------------------------
// History Repository
// -----------------------------------------------------------------------------

type HistoryRepo struct {
	store *MemoryStorage
}

func NewHistoryRepo(store *MemoryStorage) *HistoryRepo {
	return &HistoryRepo{store: store}
}

func (r *HistoryRepo) Append(ctx context.Context, entry domain.HistoryEntry) error {
	if entry.ID == "" {
		return fmt.Errorf("history entry id is required")
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.history = append(r.store.history, entry)
	return nil
}

func (r *HistoryRepo) List(ctx context.Context) ([]domain.HistoryEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]domain.HistoryEntry, 0, len(r.store.history))
	for i := len(r.store.history) - 1; i >= 0; i-- {
		out = append(out, r.store.history[i])
	}
	return out, nil
}

func (r *HistoryRepo) Len(ctx context.Context) int {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return len(r.store.history)
}

// -----------------------------------------------------------------------------
// Asset Repository
// -----------------------------------------------------------------------------

type AssetRepo struct {
	store *MemoryStorage
}

func NewAssetRepo(store *MemoryStorage) *AssetRepo {
	return &AssetRepo{store: store}
}

func (r *AssetRepo) Save(ctx context.Context, asset domain.ImageAsset) error {
	if err := asset.Validate(); err != nil {
		return err
	}
	if asset.CreatedAt.IsZero() {
		asset.CreatedAt = time.Now()
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, exists := r.store.assets[asset.ID]; exists {
		return fmt.Errorf("%w: %s", storage.ErrDuplicateAsset, asset.ID)
	}
	r.store.assets[asset.ID] = asset
	r.store.custom = append(r.store.custom, asset.ID)
	return nil
}

func (r *AssetRepo) Get(ctx context.Context, id string) (domain.ImageAsset, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	asset, ok := r.store.assets[id]
	if !ok {
		return domain.ImageAsset{}, fmt.Errorf("%w: %s", storage.ErrAssetNotFound, id)
	}
	return asset, nil
}

func (r *AssetRepo) List(ctx context.Context, kind domain.AssetKind) ([]domain.ImageAsset, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []domain.ImageAsset
	for i := len(r.store.custom) - 1; i >= 0; i-- {
		if a := r.store.assets[r.store.custom[i]]; kind == "" || a.Kind == kind {
			out = append(out, a)
		}
	}
	for _, id := range r.store.presets {
		if a := r.store.assets[id]; kind == "" || a.Kind == kind {
			out = append(out, a)
		}
	}
	return out, nil
}
