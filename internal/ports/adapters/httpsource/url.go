package httpsource

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidateSourceURL accepts absolute http(s) URLs without userinfo. When
// allowedHosts is non-empty the host must be listed.
func ValidateSourceURL(raw string, allowedHosts []string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid source URL: %w", err)
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("invalid source URL %q: absolute URL with host is required", raw)
	}
	if u.User != nil {
		return nil, fmt.Errorf("invalid source URL %q: userinfo is not allowed", raw)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return nil, fmt.Errorf("invalid source URL %q: http or https is required", raw)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return nil, fmt.Errorf("invalid source URL %q: host is required", raw)
	}
	allowed := normalizeAllowedHosts(allowedHosts)
	if len(allowed) == 0 {
		return u, nil
	}
	if _, ok := allowed[host]; !ok {
		return nil, fmt.Errorf("invalid source URL %q: host %q is not allowed", raw, host)
	}
	return u, nil
}

func normalizeAllowedHosts(allowedHosts []string) map[string]struct{} {
	out := make(map[string]struct{}, len(allowedHosts))
	for _, h := range allowedHosts {
		v := strings.ToLower(strings.TrimSpace(h))
		v = strings.TrimPrefix(v, "http://")
		v = strings.TrimPrefix(v, "https://")
		v = strings.Trim(v, "/")
		if v == "" {
			continue
		}
		if i := strings.Index(v, ":"); i >= 0 {
			v = v[:i]
		}
		out[v] = struct{}{}
	}
	return out
}
