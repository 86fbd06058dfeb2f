package clip

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/forPelevin/clipcraft/internal/domain/subtitles"
	"github.com/forPelevin/clipcraft/internal/ports"
	"github.com/forPelevin/clipcraft/internal/types"
	"github.com/forPelevin/clipcraft/internal/workspace"
	"github.com/rs/zerolog"
)

// CaptionBurner renders SRT captions onto a copy of a clip.
type CaptionBurner struct {
	Transcoder ports.Transcoder
	Prober     ports.Prober
	Workspace  *workspace.Workspace
	Log        zerolog.Logger
	Encoding   types.Encoding

	// NativeConvert builds the subtitle document in process instead of
	// asking the transcoder to convert the SRT.
	NativeConvert bool
}

// Burn returns the path of a new captioned clip. The input is never modified.
func (b *CaptionBurner) Burn(ctx context.Context, video, srt string, opts types.CaptionStyleOptions) (string, error) {
	cues, err := subtitles.ParseSRT(srt)
	if err != nil {
		return "", &CaptionError{Stage: StageConvert, Cause: err}
	}

	var converted string
	if !b.NativeConvert {
		converted, err = b.convert(ctx, srt)
		if err != nil {
			return "", &CaptionError{Stage: StageConvert, Cause: err}
		}
	}

	style, err := subtitles.Compile(opts)
	if err != nil {
		return "", &CaptionError{Stage: StageStyle, Cause: err}
	}

	info, err := b.Prober.Probe(ctx, video)
	if err != nil {
		return "", &CaptionError{Stage: StageProbe, Cause: err}
	}
	if p := opts.Position; p != nil && (p.X < 0 || p.Y < 0 || p.X > info.Width || p.Y > info.Height) {
		b.Log.Warn().
			Int("x", p.X).Int("y", p.Y).
			Int("width", info.Width).Int("height", info.Height).
			Msg("caption position outside frame")
	}

	var doc string
	if b.NativeConvert {
		doc = subtitles.BuildASS(cues, style, info.FrameDimensions)
	} else {
		doc, err = subtitles.Splice(converted, style, info.FrameDimensions)
		if err != nil {
			return "", &CaptionError{Stage: StageStyle, Cause: err}
		}
	}

	assPath := b.Workspace.Path("captions", "ass")
	defer b.Workspace.Remove(assPath)
	if err := os.WriteFile(assPath, []byte(doc), 0o600); err != nil {
		return "", &CaptionError{Stage: StageStyle, Cause: err}
	}

	out := b.Workspace.Path("captioned", "mp4")
	start := time.Now()
	if err := b.Transcoder.BurnSubtitles(ctx, video, assPath, out, b.Encoding); err != nil {
		b.Workspace.Remove(out)
		return "", &CaptionError{Stage: StageEncode, Cause: err}
	}
	b.Log.Info().Int("cues", len(cues)).Dur("took", time.Since(start)).Msg("captions burned")
	return out, nil
}

func (b *CaptionBurner) convert(ctx context.Context, srt string) (string, error) {
	srtPath := b.Workspace.Path("captions", "srt")
	defer b.Workspace.Remove(srtPath)
	if err := os.WriteFile(srtPath, []byte(srt), 0o600); err != nil {
		return "", err
	}

	assPath := b.Workspace.Path("converted", "ass")
	defer b.Workspace.Remove(assPath)
	if err := b.Transcoder.ConvertSubtitles(ctx, srtPath, assPath); err != nil {
		return "", err
	}
	doc, err := os.ReadFile(assPath)
	if err != nil {
		return "", fmt.Errorf("read converted subtitles: %w", err)
	}
	return string(doc), nil
}
