package generation

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/vietddude/tryon/internal/core/domain"
)

const (
	OpGarment = "garment"
	OpTryOn   = "try_on"
)

// Transport performs exactly one remote call. It returns the first image the
// model produced, a *domain.Failure of kind NoImageProduced when the response
// had none, or the raw error of the call.
type Transport interface {
	Generate(ctx context.Context, req domain.GenerationRequest) (domain.EmbeddedImage, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, req domain.GenerationRequest) (domain.EmbeddedImage, error)

func (f TransportFunc) Generate(ctx context.Context, req domain.GenerationRequest) (domain.EmbeddedImage, error) {
	return f(ctx, req)
}

// Config configures a Generator.
type Config struct {
	// Credential is the resolved API key. Empty means none was found.
	Credential string
	Retry      RetryPolicy
	// OnRetry, when set, is told about every backoff wait.
	OnRetry func(RetryEvent)
}

// Generator is the public entry point of the generation core. It holds no
// per-call state and is safe for concurrent use.
type Generator struct {
	transport  Transport
	retrier    *Retrier
	credential string
	log        *slog.Logger
}

// NewGenerator wires a transport with the retry policy from cfg.
func NewGenerator(transport Transport, cfg Config) *Generator {
	onRetry := cfg.OnRetry
	retrier := NewRetrier(cfg.Retry, WithOnRetry(func(ev RetryEvent) {
		RetriesTotal.WithLabelValues(ev.Operation, string(ev.Kind)).Inc()
		if onRetry != nil {
			onRetry(ev)
		}
	}))

	return &Generator{
		transport:  transport,
		retrier:    retrier,
		credential: strings.TrimSpace(cfg.Credential),
		log:        slog.Default().With("component", "generator"),
	}
}

// GenerateGarment produces a garment image from a text description.
func (g *Generator) GenerateGarment(ctx context.Context, prompt string) (domain.EmbeddedImage, error) {
	return g.run(ctx, OpGarment, func() (domain.GenerationRequest, error) {
		return BuildGarmentRequest(prompt)
	})
}

// GenerateTryOn composes a person and a garment into one image.
func (g *Generator) GenerateTryOn(ctx context.Context, person, cloth domain.EmbeddedImage) (domain.EmbeddedImage, error) {
	return g.run(ctx, OpTryOn, func() (domain.GenerationRequest, error) {
		return BuildTryOnRequest(person, cloth)
	})
}

func (g *Generator) run(ctx context.Context, op string, build func() (domain.GenerationRequest, error)) (domain.EmbeddedImage, error) {
	start := time.Now()
	defer func() {
		Duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}()

	if g.credential == "" {
		return g.fail(op, domain.NewFailure(domain.FailureInvalidCredentials, "", nil))
	}

	req, err := build()
	if err != nil {
		return g.fail(op, Finalize(err, 0))
	}

	var result domain.EmbeddedImage
	attempts, err := g.retrier.Do(ctx, op, func(ctx context.Context) error {
		AttemptsTotal.WithLabelValues(op).Inc()
		img, err := g.transport.Generate(ctx, req)
		if err != nil {
			return err
		}
		result = img
		return nil
	})
	if err != nil {
		// The caller gave up: whatever the last attempt said, this call was cancelled.
		if ctxErr := ctx.Err(); ctxErr != nil {
			f := domain.NewFailure(domain.FailureCancelled, userMessage(domain.FailureCancelled, attempts), errors.Join(ctxErr, err))
			f.Attempts = attempts
			return g.fail(op, f)
		}
		return g.fail(op, Finalize(err, attempts))
	}

	if result.MimeType == "" {
		result.MimeType = domain.DefaultMimeType
	}

	RequestsTotal.WithLabelValues(op, "success").Inc()
	g.log.Info("Generation succeeded", "operation", op, "attempts", attempts, "duration", time.Since(start))
	return result, nil
}

func (g *Generator) fail(op string, f *domain.Failure) (domain.EmbeddedImage, error) {
	if f.Message == "" {
		f.Message = userMessage(f.Kind, f.Attempts)
	}
	RequestsTotal.WithLabelValues(op, string(f.Kind)).Inc()
	g.log.Error("Generation failed",
		"operation", op,
		"kind", f.Kind,
		"attempts", f.Attempts,
		"error", f.Err,
	)
	return domain.EmbeddedImage{}, f
}
