package httpsource

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

func TestProxyRotator_RoundRobin(t *testing.T) {
	t.Parallel()

	r, err := NewProxyRotator([]string{"http://a:8080", " ", "socks5://b:1080", "http://c:3128"})
	if err != nil {
		t.Fatalf("new rotator: %v", err)
	}
	var got []string
	for i := 0; i < 4; i++ {
		got = append(got, r.Next().Host)
	}
	if strings.Join(got, ",") != "a:8080,b:1080,c:3128,a:8080" {
		t.Fatalf("unexpected rotation %v", got)
	}
}

func TestProxyRotator_EmptyAndNil(t *testing.T) {
	t.Parallel()

	var nilRotator *ProxyRotator
	if nilRotator.Next() != nil || nilRotator.Len() != 0 {
		t.Fatalf("nil rotator must connect directly")
	}
	r, _ := NewProxyRotator(nil)
	if u, err := r.ProxyFunc(nil); u != nil || err != nil {
		t.Fatalf("empty rotator returned %v, %v", u, err)
	}
}

func TestProxyRotator_Invalid(t *testing.T) {
	t.Parallel()

	for _, p := range []string{"ftp://x", "http://", "://bad"} {
		if _, err := NewProxyRotator([]string{p}); err == nil {
			t.Fatalf("expected error for %q", p)
		}
	}
}

func TestProxyRotator_Concurrent(t *testing.T) {
	t.Parallel()

	r, _ := NewProxyRotator([]string{"http://a:1", "http://b:1"})
	var wg sync.WaitGroup
	var a, b atomic.Int64
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.Next().Hostname() == "a" {
				a.Add(1)
			} else {
				b.Add(1)
			}
		}()
	}
	wg.Wait()
	if a.Load() != 50 || b.Load() != 50 {
		t.Fatalf("uneven rotation a=%d b=%d", a.Load(), b.Load())
	}
}

func TestValidateSourceURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		raw     string
		allowed []string
		wantErr string
	}{
		{name: "ok", raw: "https://cdn.example.com/v.mp4"},
		{name: "relative", raw: "/v.mp4", wantErr: "absolute URL"},
		{name: "userinfo", raw: "https://u:p@cdn.example.com/v.mp4", wantErr: "userinfo"},
		{name: "scheme", raw: "ftp://cdn.example.com/v.mp4", wantErr: "http or https"},
		{name: "allowed host", raw: "https://CDN.example.com:8443/v.mp4", allowed: []string{" https://cdn.example.com/ "}},
		{name: "host not allowed", raw: "https://evil.example/v.mp4", allowed: []string{"cdn.example.com"}, wantErr: "not allowed"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := ValidateSourceURL(tc.raw, tc.allowed)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("err=%v want %q", err, tc.wantErr)
			}
		})
	}
}

func TestFetch_Direct(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/webm")
		_, _ = w.Write([]byte("video-bytes"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	p, err := New(nil).Fetch(context.Background(), srv.URL+"/download", dir)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if filepath.Dir(p) != dir || filepath.Ext(p) != ".webm" {
		t.Fatalf("unexpected path %s", p)
	}
	b, _ := os.ReadFile(p)
	if string(b) != "video-bytes" {
		t.Fatalf("unexpected body %q", b)
	}
}

func TestFetch_ThroughProxies(t *testing.T) {
	t.Parallel()

	var hits [2]atomic.Int64
	newProxy := func(i int) *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits[i].Add(1)
			if r.URL.Host != "media.example" {
				http.Error(w, "unexpected host "+r.URL.Host, http.StatusBadGateway)
				return
			}
			_, _ = w.Write([]byte("via proxy"))
		}))
	}
	p0, p1 := newProxy(0), newProxy(1)
	defer p0.Close()
	defer p1.Close()

	rot, err := NewProxyRotator([]string{p0.URL, p1.URL})
	if err != nil {
		t.Fatalf("rotator: %v", err)
	}
	f := New(rot)
	for i := 0; i < 4; i++ {
		if _, err := f.Fetch(context.Background(), "http://media.example/clip.mp4", t.TempDir()); err != nil {
			t.Fatalf("fetch %d: %v", i, err)
		}
	}
	if hits[0].Load() != 2 || hits[1].Load() != 2 {
		t.Fatalf("proxies not rotated: %d/%d", hits[0].Load(), hits[1].Load())
	}
}

func TestFetch_Failures(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer srv.Close()

	dir := t.TempDir()
	if _, err := New(nil).Fetch(context.Background(), srv.URL+"/missing", dir); err == nil || !strings.Contains(err.Error(), "http 404") {
		t.Fatalf("err=%v", err)
	}
	if _, err := New(nil, WithMaxBytes(10)).Fetch(context.Background(), srv.URL+"/big.mp4", dir); err == nil {
		t.Fatalf("expected size limit error")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New(nil).Fetch(ctx, srv.URL+"/v.mp4", dir); err == nil || ctx.Err() == nil {
		t.Fatalf("expected cancellation error, got %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("partial downloads left behind: %d", len(entries))
	}
}
