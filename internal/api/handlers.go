package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/tryon/internal/core/domain"
	"github.com/vietddude/tryon/internal/encoding"
	"github.com/vietddude/tryon/internal/infra/storage"
)

// Two embedded images plus JSON framing.
const maxBodyBytes = 32 << 20

const inlineRef = "inline"

type uploadRequest struct {
	Kind    string `json:"kind"`
	DataURL string `json:"data_url"`
	URL     string `json:"url"`
}

type garmentRequest struct {
	Prompt string `json:"prompt"`
}

type tryOnRequest struct {
	PersonID string `json:"person_id"`
	ClothID  string `json:"cloth_id"`
	// Person and Cloth are inline data URLs or remote URLs.
	Person string `json:"person"`
	Cloth  string `json:"cloth"`
}

type tryOnResponse struct {
	Result string              `json:"result"`
	Entry  domain.HistoryEntry `json:"entry"`
}

// assetView adds the displayable URL to an asset.
type assetView struct {
	domain.ImageAsset
	DisplayURL string `json:"display_url"`
}

func viewOf(a domain.ImageAsset) assetView {
	return assetView{ImageAsset: a, DisplayURL: a.DisplayURL()}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		RespondBadRequest(w, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func (s *Server) handleListAssets(w http.ResponseWriter, r *http.Request) {
	var kind domain.AssetKind
	if q := r.URL.Query().Get("kind"); q != "" {
		k, err := domain.ParseAssetKind(q)
		if err != nil {
			RespondBadRequest(w, err.Error())
			return
		}
		kind = k
	}

	assets, err := s.deps.Assets.List(r.Context(), kind)
	if err != nil {
		RespondError(w, err)
		return
	}

	views := make([]assetView, 0, len(assets))
	for _, a := range assets {
		views = append(views, viewOf(a))
	}
	RespondJSON(w, http.StatusOK, views)
}

func (s *Server) handleUploadAsset(w http.ResponseWriter, r *http.Request) {
	var req uploadRequest
	if !decodeBody(w, r, &req) {
		return
	}

	kind, err := domain.ParseAssetKind(req.Kind)
	if err != nil {
		RespondBadRequest(w, err.Error())
		return
	}

	asset := domain.ImageAsset{
		ID:        "upload-" + uuid.NewString(),
		Kind:      kind,
		CreatedAt: time.Now(),
	}

	switch {
	case req.DataURL != "":
		img, err := encoding.ParseDataURL(req.DataURL)
		if err != nil {
			RespondBadRequest(w, err.Error())
			return
		}
		asset.Embedded = &img
	case req.URL != "":
		// Remote images are embedded now so later try-ons do not depend on the host.
		img, err := s.deps.Loader.Load(r.Context(), req.URL)
		if err != nil {
			RespondBadRequest(w, fmt.Sprintf("could not load image: %v", err))
			return
		}
		asset.URL = req.URL
		asset.Embedded = &img
	default:
		RespondBadRequest(w, "data_url or url is required")
		return
	}

	if err := s.deps.Assets.Save(r.Context(), asset); err != nil {
		RespondBadRequest(w, err.Error())
		return
	}

	s.log.Info("Asset uploaded", "id", asset.ID, "kind", asset.Kind)
	RespondJSON(w, http.StatusCreated, viewOf(asset))
}

func (s *Server) handleGenerateGarment(w http.ResponseWriter, r *http.Request) {
	var req garmentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	img, err := s.deps.Generator.GenerateGarment(r.Context(), req.Prompt)
	if err != nil {
		RespondError(w, err)
		return
	}

	asset := domain.ImageAsset{
		ID:        "gen-cloth-" + uuid.NewString(),
		Kind:      domain.AssetCloth,
		Embedded:  &img,
		Generated: true,
		CreatedAt: time.Now(),
	}
	if err := s.deps.Assets.Save(r.Context(), asset); err != nil {
		RespondError(w, err)
		return
	}

	s.log.Info("Garment generated", "id", asset.ID)
	RespondJSON(w, http.StatusCreated, viewOf(asset))
}

func (s *Server) handleTryOn(w http.ResponseWriter, r *http.Request) {
	var req tryOnRequest
	if !decodeBody(w, r, &req) {
		return
	}

	person, personRef, err := s.resolveImage(r, req.PersonID, req.Person, domain.AssetPerson)
	if err != nil {
		s.respondResolveError(w, "person", err)
		return
	}
	cloth, clothRef, err := s.resolveImage(r, req.ClothID, req.Cloth, domain.AssetCloth)
	if err != nil {
		s.respondResolveError(w, "cloth", err)
		return
	}

	result, err := s.deps.Generator.GenerateTryOn(r.Context(), person, cloth)
	if err != nil {
		RespondError(w, err)
		return
	}

	entry := domain.HistoryEntry{
		ID:        uuid.NewString(),
		PersonRef: personRef,
		ClothRef:  clothRef,
		ResultRef: result.DataURL(),
		Timestamp: time.Now(),
	}
	if err := s.deps.History.Append(r.Context(), entry); err != nil {
		RespondError(w, err)
		return
	}

	s.log.Info("Try-on completed", "entry", entry.ID, "person", personRef, "cloth", clothRef)
	RespondJSON(w, http.StatusOK, tryOnResponse{Result: entry.ResultRef, Entry: entry})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.deps.History.List(r.Context())
	if err != nil {
		RespondError(w, err)
		return
	}
	if entries == nil {
		entries = []domain.HistoryEntry{}
	}
	RespondJSON(w, http.StatusOK, entries)
}

// resolveImage returns the embedded image for either a catalog id or an
// inline reference, plus the reference recorded in history.
func (s *Server) resolveImage(r *http.Request, id, inline string, kind domain.AssetKind) (domain.EmbeddedImage, string, error) {
	if id != "" {
		asset, err := s.deps.Assets.Get(r.Context(), id)
		if err != nil {
			return domain.EmbeddedImage{}, "", err
		}
		if asset.Kind != kind {
			return domain.EmbeddedImage{}, "", fmt.Errorf("asset %s is a %s, not a %s", id, asset.Kind, kind)
		}
		if asset.Embedded != nil {
			return *asset.Embedded, asset.ID, nil
		}
		img, err := s.deps.Loader.Load(r.Context(), asset.URL)
		return img, asset.ID, err
	}

	inline = strings.TrimSpace(inline)
	if inline == "" {
		// Let the builder report the missing image.
		return domain.EmbeddedImage{}, "", nil
	}
	img, err := s.deps.Loader.Load(r.Context(), inline)
	if err != nil {
		return domain.EmbeddedImage{}, "", err
	}
	ref := inline
	if strings.HasPrefix(inline, "data:") {
		ref = inlineRef
	}
	return img, ref, nil
}

func (s *Server) respondResolveError(w http.ResponseWriter, which string, err error) {
	if errors.Is(err, storage.ErrAssetNotFound) {
		RespondJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error(), Kind: domain.FailureInvalidInput})
		return
	}
	RespondBadRequest(w, fmt.Sprintf("could not load %s image: %v", which, err))
}
