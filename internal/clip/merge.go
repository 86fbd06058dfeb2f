package clip

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/forPelevin/clipcraft/internal/ports"
	"github.com/forPelevin/clipcraft/internal/types"
	"github.com/forPelevin/clipcraft/internal/workspace"
	"github.com/rs/zerolog"
)

// Merger concatenates extracted parts, in the order given, into one clip.
type Merger struct {
	Transcoder ports.Transcoder
	Prober     ports.Prober
	Workspace  *workspace.Workspace
	Log        zerolog.Logger
}

// Merge returns the path of the merged clip. A single part is returned as is.
// Parts are left in place for the caller to remove.
func (m *Merger) Merge(ctx context.Context, parts []string, enc types.Encoding) (string, error) {
	switch len(parts) {
	case 0:
		return "", &MergeError{Cause: errors.New("no parts")}
	case 1:
		return parts[0], nil
	}

	audio, err := m.compatible(ctx, parts)
	if err != nil {
		return "", &MergeError{Parts: len(parts), Cause: err}
	}

	out := m.Workspace.Path("merged", "mp4")
	start := time.Now()
	err = m.Transcoder.Concat(ctx, ports.ConcatRequest{
		Inputs:   parts,
		Output:   out,
		Audio:    audio,
		Encoding: enc,
	})
	if err != nil {
		m.Workspace.Remove(out)
		return "", &MergeError{Parts: len(parts), Cause: err}
	}
	m.Log.Info().Int("parts", len(parts)).Bool("audio", audio).Dur("took", time.Since(start)).Msg("segments merged")
	return out, nil
}

// compatible checks that all parts share frame dimensions and agree on audio
// presence, reporting whether the merged stream carries audio.
func (m *Merger) compatible(ctx context.Context, parts []string) (bool, error) {
	var first types.MediaInfo
	withAudio := 0
	for i, p := range parts {
		info, err := m.Prober.Probe(ctx, p)
		if err != nil {
			return false, err
		}
		if i == 0 {
			first = info
		} else if info.FrameDimensions != first.FrameDimensions {
			return false, fmt.Errorf("%w: part %d is %dx%d, part 0 is %dx%d",
				ErrDimensionMismatch, i, info.Width, info.Height, first.Width, first.Height)
		}
		if info.HasAudio {
			withAudio++
		}
	}
	switch withAudio {
	case 0:
		return false, nil
	case len(parts):
		return true, nil
	default:
		return false, fmt.Errorf("%w: %d of %d parts have audio", ErrUnsupportedMedia, withAudio, len(parts))
	}
}
