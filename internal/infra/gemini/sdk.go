package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/vietddude/tryon/internal/core/domain"
)

// SDK implements generation.Transport with the genai client library. A client
// is created and closed per attempt.
type SDK struct {
	opts Options
}

// NewSDK creates an SDK transport.
func NewSDK(opts Options) *SDK {
	return &SDK{opts: opts}
}

// Generate makes one GenerateContent call.
func (t *SDK) Generate(ctx context.Context, req domain.GenerationRequest) (img domain.EmbeddedImage, err error) {
	ctx, cancel, span := startAttempt(ctx, "gemini_sdk_generate", t.opts, req)
	defer cancel()
	defer func() { endAttempt(span, img, err) }()

	parts, err := toSDKParts(req.Parts)
	if err != nil {
		return domain.EmbeddedImage{}, err
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(t.opts.APIKey))
	if err != nil {
		return domain.EmbeddedImage{}, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(t.opts.model())
	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		var blocked *genai.BlockedError
		if errors.As(err, &blocked) {
			return domain.EmbeddedImage{}, noImage(blocked.Error())
		}
		return domain.EmbeddedImage{}, fmt.Errorf("failed to generate content: %w", err)
	}

	return firstSDKImage(resp)
}

func toSDKParts(parts []domain.RequestPart) ([]genai.Part, error) {
	out := make([]genai.Part, 0, len(parts))
	for _, p := range parts {
		if p.Image == nil {
			out = append(out, genai.Text(p.Text))
			continue
		}
		data, err := p.Image.Bytes()
		if err != nil {
			return nil, domain.NewFailure(domain.FailureInvalidInput, "An image could not be decoded.", err)
		}
		mime := p.Image.MimeType
		if mime == "" {
			mime = domain.DefaultMimeType
		}
		out = append(out, genai.Blob{MIMEType: mime, Data: data})
	}
	return out, nil
}

func firstSDKImage(resp *genai.GenerateContentResponse) (domain.EmbeddedImage, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return domain.EmbeddedImage{}, noImage("")
	}

	cand := resp.Candidates[0]
	if cand.Content != nil {
		for _, part := range cand.Content.Parts {
			if blob, ok := part.(genai.Blob); ok && len(blob.Data) > 0 {
				mime := blob.MIMEType
				if mime == "" {
					mime = domain.DefaultMimeType
				}
				return domain.EmbeddedImage{
					MimeType: mime,
					Data:     base64.StdEncoding.EncodeToString(blob.Data),
				}, nil
			}
		}
	}
	return domain.EmbeddedImage{}, noImage(cand.FinishReason.String())
}
