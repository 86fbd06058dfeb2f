package subtitles

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidColor = errors.New("invalid color")

// HexToNative converts RRGGBB or RRGGBBAA into the renderer's &H[AA]BBGGRR form.
func HexToNative(hex string) (string, error) {
	h := strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(hex), "#"))
	if !isHex(h) || (len(h) != 6 && len(h) != 8) {
		return "", fmt.Errorf("%w: %q", ErrInvalidColor, hex)
	}
	rr, gg, bb := h[0:2], h[2:4], h[4:6]
	if len(h) == 8 {
		return "&H" + h[6:8] + bb + gg + rr, nil
	}
	return "&H" + bb + gg + rr, nil
}

// NativeToHex reverses HexToNative.
func NativeToHex(native string) (string, error) {
	n := strings.ToUpper(strings.TrimSpace(native))
	if !strings.HasPrefix(n, "&H") {
		return "", fmt.Errorf("%w: %q", ErrInvalidColor, native)
	}
	n = strings.TrimSuffix(n[2:], "&")
	if !isHex(n) || (len(n) != 6 && len(n) != 8) {
		return "", fmt.Errorf("%w: %q", ErrInvalidColor, native)
	}
	if len(n) == 8 {
		aa, bb, gg, rr := n[0:2], n[2:4], n[4:6], n[6:8]
		return rr + gg + bb + aa, nil
	}
	bb, gg, rr := n[0:2], n[2:4], n[4:6]
	return rr + gg + bb, nil
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'A' && r <= 'F', r >= 'a' && r <= 'f':
		default:
			return false
		}
	}
	return true
}
