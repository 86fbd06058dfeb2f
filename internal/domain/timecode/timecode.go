// Package timecode converts between subtitle-style timestamps and seconds.
package timecode

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var ErrMalformedTimecode = errors.New("malformed timecode")

// Parse converts "HH:MM:SS,mmm" into seconds.
func Parse(ts string) (float64, error) {
	s := strings.TrimSpace(ts)
	clock, msPart, ok := strings.Cut(s, ",")
	if !ok {
		return 0, fmt.Errorf("%w: %q: missing milliseconds separator", ErrMalformedTimecode, ts)
	}
	fields := strings.Split(clock, ":")
	if len(fields) != 3 {
		return 0, fmt.Errorf("%w: %q: want HH:MM:SS,mmm", ErrMalformedTimecode, ts)
	}

	var hms [3]int
	for i, f := range fields {
		n, err := parseField(f)
		if err != nil {
			return 0, fmt.Errorf("%w: %q: %v", ErrMalformedTimecode, ts, err)
		}
		hms[i] = n
	}
	if hms[1] > 59 || hms[2] > 59 {
		return 0, fmt.Errorf("%w: %q: minutes and seconds must be below 60", ErrMalformedTimecode, ts)
	}
	ms, err := parseField(msPart)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrMalformedTimecode, ts, err)
	}
	if ms > 999 {
		return 0, fmt.Errorf("%w: %q: milliseconds out of range", ErrMalformedTimecode, ts)
	}

	whole := hms[0]*3600 + hms[1]*60 + hms[2]
	return float64(whole) + float64(ms)/1000, nil
}

func parseField(f string) (int, error) {
	if f == "" {
		return 0, errors.New("empty field")
	}
	for _, r := range f {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("non-numeric field %q", f)
		}
	}
	return strconv.Atoi(f)
}

// Format renders seconds as "HH:MM:SS,mmm".
func Format(sec float64) string {
	h, m, s, ms := split(sec)
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// FormatFFmpeg renders seconds as "HH:MM:SS.mmm", the form ffmpeg accepts for -ss.
func FormatFFmpeg(sec float64) string {
	h, m, s, ms := split(sec)
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}

func split(sec float64) (h, m, s, ms int) {
	if sec < 0 {
		sec = 0
	}
	total := int(math.Round(sec * 1000))
	ms = total % 1000
	total /= 1000
	s = total % 60
	total /= 60
	m = total % 60
	h = total / 60
	return h, m, s, ms
}
