package geometry

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/forPelevin/clipcraft/internal/types"
)

// DefaultAspect is portrait 9:16, the shape of short-form vertical video.
const DefaultAspect = 9.0 / 16.0

var (
	ErrInvalidDimensions = errors.New("invalid dimensions")
	ErrInvalidAspect     = errors.New("invalid aspect ratio")
)

// ComputeCrop returns the largest centered box of the given width/height
// ratio that fits inside src. A non-positive aspect means DefaultAspect.
func ComputeCrop(src types.FrameDimensions, aspect float64) (types.CropBox, error) {
	if src.Width <= 0 || src.Height <= 0 {
		return types.CropBox{}, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, src.Width, src.Height)
	}
	if aspect <= 0 || math.IsNaN(aspect) || math.IsInf(aspect, 0) {
		aspect = DefaultAspect
	}
	w := float64(src.Width)
	h := float64(src.Height)

	cropW := math.Min(w, h*aspect)
	cropH := math.Min(h, w/aspect)
	return types.CropBox{
		Width:  cropW,
		Height: cropH,
		X:      (w - cropW) / 2,
		Y:      (h - cropH) / 2,
	}, nil
}

// ValidateCrop checks that box lies inside src.
func ValidateCrop(box types.CropBox, src types.FrameDimensions) error {
	if box.Width <= 0 || box.Height <= 0 || box.X < 0 || box.Y < 0 {
		return fmt.Errorf("%w: crop %vx%v+%v+%v", ErrInvalidDimensions, box.Width, box.Height, box.X, box.Y)
	}
	if src.Width <= 0 || src.Height <= 0 {
		return nil
	}
	if box.X+box.Width > float64(src.Width) || box.Y+box.Height > float64(src.Height) {
		return fmt.Errorf("%w: crop exceeds source %dx%d", ErrInvalidDimensions, src.Width, src.Height)
	}
	return nil
}

// Even snaps the box to even integer sizes for yuv420p encoders, keeping it
// centered on the same point and inside the original bounds.
func Even(box types.CropBox) types.CropBox {
	w := evenFloor(box.Width)
	h := evenFloor(box.Height)
	x := math.Floor(box.X + (box.Width-w)/2)
	y := math.Floor(box.Y + (box.Height-h)/2)
	return types.CropBox{Width: w, Height: h, X: math.Max(x, 0), Y: math.Max(y, 0)}
}

func evenFloor(v float64) float64 {
	n := math.Floor(v)
	if int64(n)%2 != 0 {
		n--
	}
	if n < 2 {
		// Too small to snap down; keep the whole-pixel size rather than grow past the source.
		return math.Max(math.Floor(v), 1)
	}
	return n
}

// ParseAspect accepts "9/16", "9:16" or a decimal like "0.5625".
// An empty string yields DefaultAspect.
func ParseAspect(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultAspect, nil
	}
	sep := strings.IndexAny(s, "/:")
	if sep < 0 {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v <= 0 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidAspect, s)
		}
		return v, nil
	}
	num, err1 := strconv.ParseFloat(s[:sep], 64)
	den, err2 := strconv.ParseFloat(s[sep+1:], 64)
	if err1 != nil || err2 != nil || num <= 0 || den <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAspect, s)
	}
	return num / den, nil
}
