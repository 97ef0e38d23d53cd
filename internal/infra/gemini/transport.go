// Package gemini talks to the remote image model. Each Transport call is one
// upstream request; retries live in the generation package.
package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vietddude/tryon/internal/core/config"
	"github.com/vietddude/tryon/internal/core/domain"
	"github.com/vietddude/tryon/internal/generation"
)

var tracer = otel.Tracer("gemini-client")

// Options configures either transport.
type Options struct {
	APIKey  string
	BaseURL string
	Model   string
	// AttemptTimeout bounds a single request; 0 disables the bound.
	AttemptTimeout time.Duration
}

// New builds the transport named in cfg.
func New(cfg config.GeminiConfig, apiKey string) (generation.Transport, error) {
	opts := Options{
		APIKey:         apiKey,
		BaseURL:        cfg.BaseURL,
		Model:          cfg.Model,
		AttemptTimeout: cfg.AttemptTimeout,
	}

	switch cfg.Transport {
	case "", config.TransportREST:
		return NewREST(opts), nil
	case config.TransportSDK:
		return NewSDK(opts), nil
	}
	return nil, fmt.Errorf("unknown gemini transport %q", cfg.Transport)
}

func (o Options) model() string {
	if o.Model == "" {
		return config.DefaultModel
	}
	return o.Model
}

func startAttempt(ctx context.Context, name string, o Options, req domain.GenerationRequest) (context.Context, context.CancelFunc, trace.Span) {
	ctx, span := tracer.Start(ctx, name)
	span.SetAttributes(
		attribute.String("gemini.model", o.model()),
		attribute.String("gemini.request_kind", string(req.Kind)),
		attribute.Int("gemini.image_parts", req.ImageCount()),
	)

	if o.AttemptTimeout <= 0 {
		ctx, cancel := context.WithCancel(ctx)
		return ctx, cancel, span
	}
	ctx, cancel := context.WithTimeout(ctx, o.AttemptTimeout)
	return ctx, cancel, span
}

func endAttempt(span trace.Span, img domain.EmbeddedImage, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
	} else {
		span.SetAttributes(
			attribute.String("gemini.result_mime_type", img.MimeType),
			attribute.Int("gemini.result_size", len(img.Data)),
		)
	}
	span.End()
}

// noImage reports a well-formed response without an inline image. reason is
// whatever the response said about why, possibly empty.
func noImage(reason string) error {
	msg := "response contained no inline image"
	if reason = strings.TrimSpace(reason); reason != "" {
		msg += " (" + reason + ")"
	}
	return domain.NewFailure(domain.FailureNoImageProduced, msg, nil)
}
