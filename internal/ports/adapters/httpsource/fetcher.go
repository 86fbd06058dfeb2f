package httpsource

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Fetcher struct {
	client       *http.Client
	allowedHosts []string
	maxBytes     int64
	log          zerolog.Logger
}

type Option func(*Fetcher)

func WithLogger(l zerolog.Logger) Option { return func(f *Fetcher) { f.log = l } }

func WithAllowedHosts(hosts []string) Option {
	return func(f *Fetcher) { f.allowedHosts = hosts }
}

// WithMaxBytes caps the download size. Zero means unlimited.
func WithMaxBytes(n int64) Option { return func(f *Fetcher) { f.maxBytes = n } }

// WithClient replaces the HTTP client, proxies included.
func WithClient(c *http.Client) Option { return func(f *Fetcher) { f.client = c } }

func New(proxies *ProxyRotator, opts ...Option) *Fetcher {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if proxies.Len() > 0 {
		tr.Proxy = proxies.ProxyFunc
	}
	f := &Fetcher{
		client: &http.Client{Transport: tr, Timeout: 30 * time.Minute},
		log:    zerolog.Nop(),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Fetch downloads rawURL into dstDir and returns the local path.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, dstDir string) (string, error) {
	u, err := ValidateSourceURL(rawURL, f.allowedHosts)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}
	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("fetch %s: %w", u.Redacted(), ctxErr)
		}
		return "", fmt.Errorf("fetch %s: %w", u.Redacted(), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("fetch %s: http %d: %s", u.Redacted(), resp.StatusCode, strings.TrimSpace(string(b)))
	}

	dst := filepath.Join(dstDir, "source-"+uuid.NewString()+extension(u.Path, resp.Header.Get("Content-Type")))
	n, err := f.save(resp.Body, dst)
	if err != nil {
		_ = os.Remove(dst)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("fetch %s: %w", u.Redacted(), ctxErr)
		}
		return "", fmt.Errorf("fetch %s: %w", u.Redacted(), err)
	}
	f.log.Info().
		Str("url", u.Redacted()).
		Int64("bytes", n).
		Dur("elapsed", time.Since(start)).
		Msg("source downloaded")
	return dst, nil
}

func (f *Fetcher) save(body io.Reader, dst string) (int64, error) {
	out, err := os.Create(dst)
	if err != nil {
		return 0, err
	}
	r := body
	if f.maxBytes > 0 {
		r = io.LimitReader(body, f.maxBytes+1)
	}
	n, err := io.Copy(out, r)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, err
	}
	if f.maxBytes > 0 && n > f.maxBytes {
		return n, fmt.Errorf("source exceeds %d bytes", f.maxBytes)
	}
	return n, nil
}

func extension(urlPath, contentType string) string {
	if ext := strings.ToLower(path.Ext(urlPath)); ext != "" && len(ext) <= 5 {
		return ext
	}
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		switch mt {
		case "video/mp4":
			return ".mp4"
		case "video/webm":
			return ".webm"
		case "video/quicktime":
			return ".mov"
		case "video/x-matroska":
			return ".mkv"
		}
	}
	return ".mp4"
}
