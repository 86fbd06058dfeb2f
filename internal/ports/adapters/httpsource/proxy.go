package httpsource

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// ProxyRotator hands out proxies round-robin. The zero value and a nil
// rotator both mean "connect directly".
type ProxyRotator struct {
	mu      sync.Mutex
	proxies []*url.URL
	next    int
}

func NewProxyRotator(raw []string) (*ProxyRotator, error) {
	r := &ProxyRotator{}
	for _, p := range raw {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		u, err := url.Parse(p)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy %q: %w", p, err)
		}
		switch strings.ToLower(u.Scheme) {
		case "http", "https", "socks5":
		default:
			return nil, fmt.Errorf("invalid proxy %q: scheme must be http, https or socks5", p)
		}
		if u.Host == "" {
			return nil, fmt.Errorf("invalid proxy %q: host is required", p)
		}
		r.proxies = append(r.proxies, u)
	}
	return r, nil
}

func (r *ProxyRotator) Len() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.proxies)
}

// Next returns the next proxy, or nil when none are configured.
func (r *ProxyRotator) Next() *url.URL {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.proxies) == 0 {
		return nil
	}
	u := r.proxies[r.next%len(r.proxies)]
	r.next = (r.next + 1) % len(r.proxies)
	return u
}

// ProxyFunc plugs the rotator into http.Transport.Proxy.
func (r *ProxyRotator) ProxyFunc(*http.Request) (*url.URL, error) {
	return r.Next(), nil
}
