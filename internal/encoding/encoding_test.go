package encoding

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vietddude/tryon/internal/core/config"
	"github.com/vietddude/tryon/internal/core/domain"
)

// pngHeader is enough for content sniffing to report image/png.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestParseDataURL(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString(pngHeader)

	tests := []struct {
		name    string
		in      string
		mime    string
		wantErr bool
	}{
		{"png", "data:image/png;base64," + payload, "image/png", false},
		{"jpeg", "data:image/jpeg;base64," + payload, "image/jpeg", false},
		{"webp uppercase", "data:IMAGE/WEBP;base64," + payload, "image/webp", false},
		{"not data url", payload, "", true},
		{"not base64", "data:image/png," + payload, "", true},
		{"not an image", "data:text/plain;base64," + payload, "", true},
		{"empty payload", "data:image/png;base64,", "", true},
		{"corrupt payload", "data:image/png;base64,@@@", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := ParseDataURL(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %+v", img)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if img.MimeType != tt.mime || img.Data != payload {
				t.Errorf("unexpected image %+v", img)
			}
		})
	}
}

func TestStripPrefixRoundTrip(t *testing.T) {
	img := domain.EmbeddedImage{MimeType: "image/webp", Data: "aGVsbG8="}
	url := FormatDataURL(img)

	if url != "data:image/webp;base64,aGVsbG8=" {
		t.Errorf("unexpected data URL %q", url)
	}
	if got := StripPrefix(url); got != img.Data {
		t.Errorf("StripPrefix(%q) = %q", url, got)
	}
	if got := StripPrefix("aGVsbG8="); got != "aGVsbG8=" {
		t.Errorf("bare payload must pass through, got %q", got)
	}
}

func TestFromBytes(t *testing.T) {
	img, err := FromBytes(pngHeader, "")
	if err != nil || img.MimeType != "image/png" {
		t.Fatalf("expected sniffed png, got %+v, %v", img, err)
	}

	img, err = FromBytes(pngHeader, "image/jpg")
	if err != nil || img.MimeType != "image/jpeg" {
		t.Errorf("expected declared jpeg, got %+v, %v", img, err)
	}

	if _, err := FromBytes([]byte("<html></html>"), "text/html"); !errors.Is(err, ErrNotImage) {
		t.Errorf("expected ErrNotImage, got %v", err)
	}
	if _, err := FromBytes(nil, "image/png"); err == nil {
		t.Error("expected error for empty image")
	}
}

func newTestBridge(maxBytes int64, opts ...BridgeOption) *Bridge {
	return NewBridge(config.BridgeConfig{FetchTimeout: 5 * time.Second, MaxImageBytes: maxBytes, UserAgent: "tryon-test"}, opts...)
}

func TestBridge_LoadRemoteImage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != "tryon-test" {
			t.Errorf("expected user agent, got %q", ua)
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(pngHeader)
	}))
	defer server.Close()

	img, err := newTestBridge(0).Load(context.Background(), server.URL+"/shirt.png")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if img.MimeType != "image/png" || img.Data != base64.StdEncoding.EncodeToString(pngHeader) {
		t.Errorf("unexpected image %+v", img)
	}
}

func TestBridge_LoadProductPage(t *testing.T) {
	tests := []struct {
		name string
		page string
	}{
		{"og image", `<html><head><meta property="og:image" content="/img/main.png"></head><body><img src="/img/other.png"></body></html>`},
		{"first img", `<html><body><img src="data:image/gif;base64,R0lG"><img src="img/main.png"></body></html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			imageHits := 0
			mux := http.NewServeMux()
			mux.HandleFunc("/product", func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				fmt.Fprint(w, tt.page)
			})
			mux.HandleFunc("/img/main.png", func(w http.ResponseWriter, r *http.Request) {
				imageHits++
				w.Header().Set("Content-Type", "image/png")
				_, _ = w.Write(pngHeader)
			})
			server := httptest.NewServer(mux)
			defer server.Close()

			img, err := newTestBridge(0).Load(context.Background(), server.URL+"/product")
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if img.MimeType != "image/png" || imageHits != 1 {
				t.Errorf("expected main image fetched once, got %+v hits=%d", img, imageHits)
			}
		})
	}
}

func TestBridge_RemoteErrors(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/big", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(append(pngHeader, make([]byte, 64)...))
	})
	mux.HandleFunc("/text", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, "hello")
	})
	mux.HandleFunc("/bare-page", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html><body>nothing here</body></html>")
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	b := newTestBridge(32)
	for _, path := range []string{"/missing", "/big", "/text", "/bare-page"} {
		if _, err := b.Load(context.Background(), server.URL+path); err == nil {
			t.Errorf("Load(%s): expected error", path)
		}
	}
}

func TestBridge_LoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "person.jpg")
	if err := os.WriteFile(path, pngHeader, 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	img, err := newTestBridge(0, AllowLocalFiles()).Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if img.MimeType != "image/jpeg" {
		t.Errorf("expected mime from extension, got %q", img.MimeType)
	}

	if _, err := newTestBridge(4, AllowLocalFiles()).Load(context.Background(), path); err == nil || !strings.Contains(err.Error(), "limit") {
		t.Errorf("expected size limit error, got %v", err)
	}
	if _, err := newTestBridge(0, AllowLocalFiles()).Load(context.Background(), filepath.Join(dir, "nope.png")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestBridge_FilesRejectedByDefault(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "secret.png")
	if err := os.WriteFile(existing, pngHeader, 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	b := newTestBridge(0)
	var messages []string
	for _, ref := range []string{existing, filepath.Join(dir, "missing.png"), "file:///etc/passwd", "ftp://example.com/a.png"} {
		_, err := b.Load(context.Background(), ref)
		if !errors.Is(err, ErrUnsupportedRef) {
			t.Errorf("Load(%q): expected ErrUnsupportedRef, got %v", ref, err)
			continue
		}
		messages = append(messages, err.Error())
	}
	// Existing and missing paths must be indistinguishable.
	if len(messages) >= 2 && messages[0] != messages[1] {
		t.Errorf("error leaks path existence: %q vs %q", messages[0], messages[1])
	}
}

func TestBridge_BlockPrivateNetworks(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(pngHeader)
	}))
	defer server.Close()

	_, err := newTestBridge(0, BlockPrivateNetworks()).Load(context.Background(), server.URL+"/a.png")
	if !errors.Is(err, ErrPrivateAddress) {
		t.Fatalf("expected ErrPrivateAddress, got %v", err)
	}
	if calls != 0 {
		t.Errorf("expected no request to reach the server, got %d", calls)
	}

	if _, err := newTestBridge(0).Load(context.Background(), server.URL+"/a.png"); err != nil {
		t.Errorf("unrestricted bridge should load, got %v", err)
	}
}

func TestBridge_LoadDataURL(t *testing.T) {
	img, err := newTestBridge(0).Load(context.Background(), "  data:image/png;base64,aGVsbG8=  ")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if img.Data != "aGVsbG8=" {
		t.Errorf("unexpected payload %q", img.Data)
	}
	if _, err := newTestBridge(0).Load(context.Background(), ""); err == nil {
		t.Error("expected error for empty reference")
	}
}
