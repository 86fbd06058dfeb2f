package clip

import (
	"context"
	"time"

	"github.com/forPelevin/clipcraft/internal/domain/geometry"
	"github.com/forPelevin/clipcraft/internal/ports"
	"github.com/forPelevin/clipcraft/internal/types"
	"github.com/forPelevin/clipcraft/internal/workspace"
	"github.com/rs/zerolog"
)

type ExtractRequest struct {
	Source string
	Span   types.TimeSpan
	// Crop is used verbatim when set.
	Crop *types.CropBox
	// Known skips probing when the caller already has the source dimensions.
	Known    *types.FrameDimensions
	Aspect   float64
	Encoding types.Encoding
}

// Extractor trims, crops and re-encodes one span of a source into the workspace.
type Extractor struct {
	Transcoder ports.Transcoder
	Prober     ports.Prober
	Workspace  *workspace.Workspace
	Log        zerolog.Logger
}

func (e *Extractor) Extract(ctx context.Context, req ExtractRequest) (string, error) {
	if err := req.Span.Validate(); err != nil {
		return "", err
	}

	crop, err := e.crop(ctx, req)
	if err != nil {
		return "", &ExtractionError{Span: req.Span, Cause: err}
	}

	out := e.Workspace.Path("segment", "mp4")
	start := time.Now()
	err = e.Transcoder.Trim(ctx, ports.TrimRequest{
		Input:    req.Source,
		Output:   out,
		Span:     req.Span,
		Crop:     crop,
		Encoding: req.Encoding,
	})
	if err != nil {
		e.Workspace.Remove(out)
		return "", &ExtractionError{Span: req.Span, Cause: err}
	}
	e.Log.Info().
		Float64("start", req.Span.Start).
		Float64("end", req.Span.End).
		Dur("took", time.Since(start)).
		Msg("segment extracted")
	return out, nil
}

func (e *Extractor) crop(ctx context.Context, req ExtractRequest) (types.CropBox, error) {
	var dims types.FrameDimensions
	if req.Known != nil {
		dims = *req.Known
	} else {
		info, err := e.Prober.Probe(ctx, req.Source)
		if err != nil {
			return types.CropBox{}, err
		}
		dims = info.FrameDimensions
	}
	if req.Crop != nil {
		if err := geometry.ValidateCrop(*req.Crop, dims); err != nil {
			return types.CropBox{}, err
		}
		return *req.Crop, nil
	}
	return geometry.ComputeCrop(dims, req.Aspect)
}
