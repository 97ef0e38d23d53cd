package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vietddude/tryon/internal/core/config"
	"github.com/vietddude/tryon/internal/core/domain"
	"github.com/vietddude/tryon/internal/generation"
)

// maxResponseBytes bounds a generateContent answer. Images come back base64
// encoded inside the JSON.
const maxResponseBytes = 128 << 20

// REST implements generation.Transport with JSON over HTTP.
type REST struct {
	opts       Options
	endpoint   string
	httpClient *http.Client
	maxBytes   int64
}

// NewREST creates a REST transport.
func NewREST(opts Options) *REST {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = config.DefaultBaseURL
	}

	return &REST{
		opts:     opts,
		endpoint: fmt.Sprintf("%s/v1beta/models/%s:generateContent", base, opts.model()),
		maxBytes: maxResponseBytes,
		httpClient: &http.Client{
			Timeout: opts.AttemptTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents         []content `json:"contents"`
	GenerationConfig struct {
		ResponseModalities []string `json:"responseModalities"`
	} `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content      *content `json:"content"`
		FinishReason string   `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// Generate makes one generateContent call.
func (t *REST) Generate(ctx context.Context, req domain.GenerationRequest) (img domain.EmbeddedImage, err error) {
	ctx, cancel, span := startAttempt(ctx, "gemini_rest_generate", t.opts, req)
	defer cancel()
	defer func() { endAttempt(span, img, err) }()

	body := generateRequest{
		Contents: []content{{Role: "user", Parts: toRESTParts(req.Parts)}},
	}
	body.GenerationConfig.ResponseModalities = []string{"TEXT", "IMAGE"}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return domain.EmbeddedImage{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return domain.EmbeddedImage{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", t.opts.APIKey)

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return domain.EmbeddedImage{}, fmt.Errorf("generate call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, t.maxBytes+1))
	if err != nil {
		return domain.EmbeddedImage{}, fmt.Errorf("read response: %w", err)
	}
	if int64(len(respBody)) > t.maxBytes {
		return domain.EmbeddedImage{}, fmt.Errorf("response exceeds %d bytes", t.maxBytes)
	}

	if resp.StatusCode != http.StatusOK {
		return domain.EmbeddedImage{}, &generation.StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	var parsed generateResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return domain.EmbeddedImage{}, fmt.Errorf("parse response: %w", err)
	}

	return firstRESTImage(parsed)
}

// Close releases idle connections.
func (t *REST) Close() error {
	t.httpClient.CloseIdleConnections()
	return nil
}

func toRESTParts(parts []domain.RequestPart) []part {
	out := make([]part, 0, len(parts))
	for _, p := range parts {
		if p.Image != nil {
			mime := p.Image.MimeType
			if mime == "" {
				mime = domain.DefaultMimeType
			}
			out = append(out, part{InlineData: &inlineData{MimeType: mime, Data: p.Image.Data}})
			continue
		}
		out = append(out, part{Text: p.Text})
	}
	return out
}

func firstRESTImage(resp generateResponse) (domain.EmbeddedImage, error) {
	if len(resp.Candidates) == 0 {
		reason := ""
		if resp.PromptFeedback != nil {
			reason = resp.PromptFeedback.BlockReason
		}
		return domain.EmbeddedImage{}, noImage(reason)
	}

	cand := resp.Candidates[0]
	if cand.Content != nil {
		for _, p := range cand.Content.Parts {
			if p.InlineData != nil && p.InlineData.Data != "" {
				mime := p.InlineData.MimeType
				if mime == "" {
					mime = domain.DefaultMimeType
				}
				return domain.EmbeddedImage{MimeType: mime, Data: p.InlineData.Data}, nil
			}
		}
	}
	return domain.EmbeddedImage{}, noImage(cand.FinishReason)
}
