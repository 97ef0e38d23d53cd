package generation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vietddude/tryon/internal/core/domain"
)

// MockTransport returns scripted results in order, repeating the last one.
type MockTransport struct {
	mu        sync.Mutex
	results   []error
	image     domain.EmbeddedImage
	callCount int
	requests  []domain.GenerationRequest
}

func (m *MockTransport) Generate(ctx context.Context, req domain.GenerationRequest) (domain.EmbeddedImage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.callCount
	m.callCount++
	m.requests = append(m.requests, req)

	if len(m.results) == 0 {
		return m.image, nil
	}
	if i >= len(m.results) {
		i = len(m.results) - 1
	}
	if err := m.results[i]; err != nil {
		return domain.EmbeddedImage{}, err
	}
	return m.image, nil
}

func (m *MockTransport) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

var (
	testPerson = domain.EmbeddedImage{MimeType: "image/jpeg", Data: "cGVyc29u"}
	testCloth  = domain.EmbeddedImage{MimeType: "image/png", Data: "Y2xvdGg="}
	testResult = domain.EmbeddedImage{MimeType: "image/png", Data: "cmVzdWx0"}
)

func newTestGenerator(tr Transport, delays *[]time.Duration) *Generator {
	return NewGenerator(tr, Config{
		Credential: "test-key",
		Retry:      RetryPolicy{MaxRetries: 3, InitialDelay: time.Millisecond},
		OnRetry: func(ev RetryEvent) {
			if delays != nil {
				*delays = append(*delays, ev.Delay)
			}
		},
	})
}

func asFailure(t *testing.T, err error) *domain.Failure {
	t.Helper()
	var f *domain.Failure
	if !errors.As(err, &f) {
		t.Fatalf("expected *domain.Failure, got %T: %v", err, err)
	}
	return f
}

func TestGenerator_TransientFailuresExhaustBudget(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		expect domain.FailureKind
	}{
		{"rate limited", errors.New("http 429: RESOURCE_EXHAUSTED"), domain.FailureRateLimited},
		{"overloaded", errors.New("http 503: The model is overloaded"), domain.FailureOverloaded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var delays []time.Duration
			mock := &MockTransport{results: []error{tt.err}}
			g := newTestGenerator(mock, &delays)

			_, err := g.GenerateTryOn(context.Background(), testPerson, testCloth)
			f := asFailure(t, err)

			if f.Kind != tt.expect {
				t.Errorf("expected %s, got %s", tt.expect, f.Kind)
			}
			if mock.calls() != 4 || f.Attempts != 4 {
				t.Errorf("expected 4 transport calls, got calls=%d attempts=%d", mock.calls(), f.Attempts)
			}
			want := []time.Duration{time.Millisecond, 2 * time.Millisecond, 4 * time.Millisecond}
			if len(delays) != 3 {
				t.Fatalf("expected 3 waits, got %v", delays)
			}
			for i := range want {
				if delays[i] != want[i] {
					t.Errorf("wait %d = %s, want %s", i, delays[i], want[i])
				}
			}
			if !strings.Contains(f.Message, "Retried automatically 3 times") {
				t.Errorf("expected retry notice in message, got %q", f.Message)
			}
		})
	}
}

func TestGenerator_SuccessOnSecondAttempt(t *testing.T) {
	mock := &MockTransport{results: []error{errors.New("503 unavailable"), nil}, image: testResult}
	g := newTestGenerator(mock, nil)

	img, err := g.GenerateGarment(context.Background(), "a red scarf")
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if img != testResult {
		t.Errorf("unexpected image %+v", img)
	}
	if mock.calls() != 2 {
		t.Errorf("expected 2 calls, got %d", mock.calls())
	}
}

func TestGenerator_NoImageIsNotRetried(t *testing.T) {
	mock := &MockTransport{results: []error{domain.NewFailure(domain.FailureNoImageProduced, "no inline image", nil)}}
	g := newTestGenerator(mock, nil)

	_, err := g.GenerateGarment(context.Background(), "a red scarf")
	f := asFailure(t, err)
	if f.Kind != domain.FailureNoImageProduced {
		t.Errorf("expected NoImageProduced, got %s", f.Kind)
	}
	if mock.calls() != 1 {
		t.Errorf("expected a single call, got %d", mock.calls())
	}
}

func TestGenerator_UnknownIsNotRetried(t *testing.T) {
	mock := &MockTransport{results: []error{errors.New("dial tcp: connection refused")}}
	g := newTestGenerator(mock, nil)

	_, err := g.GenerateGarment(context.Background(), "a red scarf")
	if f := asFailure(t, err); f.Kind != domain.FailureUnknown {
		t.Errorf("expected Unknown, got %s", f.Kind)
	}
	if mock.calls() != 1 {
		t.Errorf("expected a single call, got %d", mock.calls())
	}
}

func TestGenerator_MissingCredential(t *testing.T) {
	mock := &MockTransport{image: testResult}
	g := NewGenerator(mock, Config{Credential: "  ", Retry: RetryPolicy{MaxRetries: 3, InitialDelay: time.Millisecond}})

	_, err := g.GenerateTryOn(context.Background(), testPerson, testCloth)
	f := asFailure(t, err)
	if f.Kind != domain.FailureInvalidCredentials {
		t.Errorf("expected InvalidCredentials, got %s", f.Kind)
	}
	if f.Attempts != 0 || mock.calls() != 0 {
		t.Errorf("expected no transport calls, got %d", mock.calls())
	}
	if f.Message == "" {
		t.Error("expected a user-facing message")
	}
}

func TestGenerator_InvalidInput(t *testing.T) {
	mock := &MockTransport{image: testResult}
	g := newTestGenerator(mock, nil)

	_, err := g.GenerateGarment(context.Background(), "   ")
	if f := asFailure(t, err); f.Kind != domain.FailureInvalidInput {
		t.Errorf("expected InvalidInput, got %s", f.Kind)
	}

	_, err = g.GenerateTryOn(context.Background(), testPerson, domain.EmbeddedImage{})
	if f := asFailure(t, err); f.Kind != domain.FailureInvalidInput {
		t.Errorf("expected InvalidInput, got %s", f.Kind)
	}

	if mock.calls() != 0 {
		t.Errorf("expected no transport calls, got %d", mock.calls())
	}
}

func TestGenerator_CancelledWhileWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	mock := &MockTransport{results: []error{errors.New("429 quota")}}
	g := NewGenerator(mock, Config{
		Credential: "k",
		Retry:      RetryPolicy{MaxRetries: 3, InitialDelay: time.Hour},
		OnRetry:    func(RetryEvent) { cancel() },
	})

	_, err := g.GenerateGarment(ctx, "a red scarf")
	f := asFailure(t, err)
	if f.Kind != domain.FailureCancelled {
		t.Errorf("expected Cancelled, got %s", f.Kind)
	}
	if mock.calls() != 1 {
		t.Errorf("expected 1 call, got %d", mock.calls())
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected cause to include context.Canceled")
	}
}

func TestGenerator_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	mock := &MockTransport{image: testResult}
	g := newTestGenerator(mock, nil)

	_, err := g.GenerateTryOn(ctx, testPerson, testCloth)
	if f := asFailure(t, err); f.Kind != domain.FailureCancelled {
		t.Errorf("expected Cancelled, got %s", f.Kind)
	}
	if mock.calls() != 0 {
		t.Errorf("expected no calls, got %d", mock.calls())
	}
}

func TestGenerator_Idempotent(t *testing.T) {
	mock := &MockTransport{results: []error{errors.New("http 429: quota")}}
	g := newTestGenerator(mock, nil)

	_, err1 := g.GenerateGarment(context.Background(), "a red scarf")
	_, err2 := g.GenerateGarment(context.Background(), "a red scarf")

	f1, f2 := asFailure(t, err1), asFailure(t, err2)
	if f1.Kind != f2.Kind || f1.Attempts != f2.Attempts || f1.Message != f2.Message {
		t.Errorf("outcomes differ: %+v vs %+v", f1, f2)
	}
	if mock.requests[0].Instruction() != mock.requests[4].Instruction() {
		t.Error("expected identical requests for identical prompts")
	}
}

func TestGenerator_DefaultsResultMime(t *testing.T) {
	mock := &MockTransport{image: domain.EmbeddedImage{Data: "cmVzdWx0"}}
	g := newTestGenerator(mock, nil)

	img, err := g.GenerateGarment(context.Background(), "a hat")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if img.MimeType != domain.DefaultMimeType {
		t.Errorf("expected default mime, got %q", img.MimeType)
	}
}

func TestGenerator_ConcurrentCallsAreIndependent(t *testing.T) {
	mock := &MockTransport{image: testResult}
	g := newTestGenerator(mock, nil)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := g.GenerateTryOn(context.Background(), testPerson, testCloth)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if mock.calls() != 8 {
		t.Errorf("expected 8 calls, got %d", mock.calls())
	}
}
