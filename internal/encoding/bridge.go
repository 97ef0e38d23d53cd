package encoding

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/vietddude/tryon/internal/core/config"
	"github.com/vietddude/tryon/internal/core/domain"
)

var (
	// ErrUnsupportedRef is returned for references the bridge is not allowed to open.
	ErrUnsupportedRef = errors.New("unsupported image reference")
	// ErrPrivateAddress is returned when a fetch resolves to a non-public address.
	ErrPrivateAddress = errors.New("address is not publicly routable")
)

// Bridge loads images referenced by data URL, remote URL and, when allowed,
// local path.
type Bridge struct {
	httpClient   *http.Client
	maxBytes     int64
	userAgent    string
	allowFiles   bool
	blockPrivate bool
	log          *slog.Logger
}

// BridgeOption customises a Bridge.
type BridgeOption func(*Bridge)

// AllowLocalFiles lets Load read paths from the local filesystem.
func AllowLocalFiles() BridgeOption {
	return func(b *Bridge) {
		b.allowFiles = true
	}
}

// BlockPrivateNetworks refuses to connect to loopback, private, link-local
// and unspecified addresses, including after redirects.
func BlockPrivateNetworks() BridgeOption {
	return func(b *Bridge) {
		b.blockPrivate = true
	}
}

// NewBridge creates a Bridge from configuration. Only data URLs and remote
// URLs are accepted unless AllowLocalFiles is given.
func NewBridge(cfg config.BridgeConfig, opts ...BridgeOption) *Bridge {
	maxBytes := cfg.MaxImageBytes
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	b := &Bridge{
		maxBytes:  maxBytes,
		userAgent: cfg.UserAgent,
		log:       slog.Default().With("component", "bridge"),
	}
	for _, opt := range opts {
		opt(b)
	}

	b.httpClient = &http.Client{Timeout: timeout}
	if b.blockPrivate {
		dialer := &net.Dialer{Timeout: timeout, Control: publicOnly}
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.Proxy = nil
		transport.DialContext = dialer.DialContext
		b.httpClient.Transport = transport
	}
	return b
}

// publicOnly runs after name resolution, so it sees the address actually dialed.
func publicOnly(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip := net.ParseIP(host)
	if ip == nil || ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsMulticast() {
		return fmt.Errorf("%w: %s", ErrPrivateAddress, host)
	}
	return nil
}

// Load resolves ref into an embedded image.
func (b *Bridge) Load(ctx context.Context, ref string) (domain.EmbeddedImage, error) {
	ref = strings.TrimSpace(ref)
	switch {
	case ref == "":
		return domain.EmbeddedImage{}, fmt.Errorf("image reference is empty")
	case strings.HasPrefix(ref, "data:"):
		return ParseDataURL(ref)
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return b.fetch(ctx, ref, true)
	case b.allowFiles:
		return b.readFile(ref)
	default:
		return domain.EmbeddedImage{}, fmt.Errorf("%w: expected a data URL or an http(s) URL", ErrUnsupportedRef)
	}
}

func (b *Bridge) readFile(path string) (domain.EmbeddedImage, error) {
	info, err := os.Stat(path)
	if err != nil {
		return domain.EmbeddedImage{}, fmt.Errorf("failed to read image: %w", err)
	}
	if info.Size() > b.maxBytes {
		return domain.EmbeddedImage{}, fmt.Errorf("image %s is %d bytes, limit is %d", path, info.Size(), b.maxBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return domain.EmbeddedImage{}, fmt.Errorf("failed to read image: %w", err)
	}
	return FromBytes(data, mime.TypeByExtension(strings.ToLower(filepath.Ext(path))))
}

// fetch downloads an image. A product page is accepted once when followPage is
// set: its og:image (or first <img>) is fetched instead.
func (b *Bridge) fetch(ctx context.Context, rawURL string, followPage bool) (domain.EmbeddedImage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return domain.EmbeddedImage{}, fmt.Errorf("create request: %w", err)
	}
	if b.userAgent != "" {
		req.Header.Set("User-Agent", b.userAgent)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return domain.EmbeddedImage{}, fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.EmbeddedImage{}, fmt.Errorf("failed to fetch image, status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, b.maxBytes+1))
	if err != nil {
		return domain.EmbeddedImage{}, fmt.Errorf("read image: %w", err)
	}
	if int64(len(body)) > b.maxBytes {
		return domain.EmbeddedImage{}, fmt.Errorf("image at %s exceeds %d bytes", rawURL, b.maxBytes)
	}

	contentType := normalizeMime(resp.Header.Get("Content-Type"))
	if contentType == "" {
		contentType = normalizeMime(http.DetectContentType(body))
	}

	if contentType == "text/html" {
		if !followPage {
			return domain.EmbeddedImage{}, fmt.Errorf("%w: %s returned a web page", ErrNotImage, rawURL)
		}
		imgURL, err := pageImage(rawURL, body)
		if err != nil {
			return domain.EmbeddedImage{}, err
		}
		b.log.Debug("Resolved product page image", "page", rawURL, "image", imgURL)
		return b.fetch(ctx, imgURL, false)
	}

	return FromBytes(body, contentType)
}

// pageImage picks the representative image of an HTML page.
func pageImage(pageURL string, body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse page: %w", err)
	}

	src := strings.TrimSpace(doc.Find("meta[property='og:image']").AttrOr("content", ""))
	if src == "" {
		doc.Find("img").EachWithBreak(func(i int, s *goquery.Selection) bool {
			src = strings.TrimSpace(s.AttrOr("src", ""))
			return src == "" || strings.HasPrefix(src, "data:")
		})
	}
	if src == "" || strings.HasPrefix(src, "data:") {
		return "", fmt.Errorf("%w: no image found on %s", ErrNotImage, pageURL)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parse page url: %w", err)
	}
	ref, err := url.Parse(src)
	if err != nil {
		return "", fmt.Errorf("parse image url %q: %w", src, err)
	}
	return base.ResolveReference(ref).String(), nil
}
