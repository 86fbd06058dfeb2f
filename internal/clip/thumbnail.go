package clip

import (
	"bytes"
	"context"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/forPelevin/clipcraft/internal/ports"
	"github.com/forPelevin/clipcraft/internal/workspace"
	"github.com/rs/zerolog"
)

const defaultThumbnailQuality = 80

// Thumbnailer captures a still from a clip, scales it down and uploads it.
type Thumbnailer struct {
	Transcoder ports.Transcoder
	Store      ports.BlobStore
	Workspace  *workspace.Workspace
	Log        zerolog.Logger

	// MaxWidth and MaxHeight bound the uploaded image; zero keeps the frame size.
	MaxWidth  int
	MaxHeight int
	Quality   int
}

// Extract returns the blob handle of the thumbnail taken at second at.
func (t *Thumbnailer) Extract(ctx context.Context, path string, at float64) (string, error) {
	if at < 0 {
		at = 0
	}
	frame := t.Workspace.Path("thumbnail", "jpg")
	defer t.Workspace.Remove(frame)

	if err := t.Transcoder.Screenshot(ctx, path, at, frame); err != nil {
		return "", &ThumbnailError{At: at, Cause: err}
	}
	data, err := t.encode(frame)
	if err != nil {
		return "", &ThumbnailError{At: at, Cause: err}
	}

	name := filepath.Base(frame)
	handle, err := t.Store.Upload(ctx, data, name, "image/jpeg")
	if err != nil {
		return "", &UploadError{Name: name, Cause: err}
	}
	t.Log.Info().Str("handle", handle).Int("bytes", len(data)).Msg("thumbnail uploaded")
	return handle, nil
}

func (t *Thumbnailer) encode(frame string) ([]byte, error) {
	img, err := imaging.Open(frame)
	if err != nil {
		return nil, err
	}
	if t.MaxWidth > 0 && t.MaxHeight > 0 {
		img = imaging.Fit(img, t.MaxWidth, t.MaxHeight, imaging.Lanczos)
	}
	q := t.Quality
	if q <= 0 || q > 100 {
		q = defaultThumbnailQuality
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(q)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
