package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/forPelevin/clipcraft/internal/clip"
	"github.com/forPelevin/clipcraft/internal/logging"
	"github.com/forPelevin/clipcraft/internal/ports"
	"github.com/forPelevin/clipcraft/internal/types"
	"github.com/forPelevin/clipcraft/internal/workspace"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type Deps struct {
	Video ports.Transcoder
	Store ports.BlobStore
	// Optional collaborators.
	ASR     ports.Transcriber
	Fetcher ports.SourceFetcher
	Log     zerolog.Logger
}

type Usecase struct{ d Deps }

func New(d Deps) Usecase { return Usecase{d: d} }

type Stage string

const (
	StageRequested    Stage = "requested"
	StageProbing      Stage = "probing"
	StageExtracting   Stage = "extracting"
	StageMerging      Stage = "merging"
	StageUploading    Stage = "uploading"
	StageThumbnailing Stage = "thumbnailing"
	StageReady        Stage = "ready"
	StageCaptioning   Stage = "captioning"
	StageCaptioned    Stage = "captioned"
)

// Observer is told about stage transitions. clip is the output index, or -1
// for run-wide stages. It may be called from several goroutines at once.
type Observer func(clip int, stage Stage)

type ThumbnailOptions struct {
	At        float64
	MaxWidth  int
	MaxHeight int
	Quality   int
}

type Input struct {
	// Source is a local path or an http(s) URL.
	Source string
	// Groups lists the clips to produce. A single-part group is a plain segment.
	Groups []types.SegmentGroup
	Aspect float64
	Crop   *types.CropBox
	Known  *types.FrameDimensions

	Encoding    types.Encoding
	Concurrency int
	WorkDir     string
	Thumbnail   ThumbnailOptions
	Observer    Observer
}

type Result struct {
	Clips []types.ExtractedClip
}

// Segments turns flat spans into single-part groups.
func Segments(spans []types.TimeSpan) []types.SegmentGroup {
	out := make([]types.SegmentGroup, len(spans))
	for i, s := range spans {
		out[i] = types.SegmentGroup{Parts: []types.TimeSpan{s}}
	}
	return out
}

type part struct {
	clip, idx int
	span      types.TimeSpan
}

func (u Usecase) Extract(ctx context.Context, in Input) (Result, error) {
	if len(in.Groups) == 0 {
		return Result{}, errors.New("no segments requested")
	}
	// Parts are merged in the order given; callers sort them chronologically.
	groups := in.Groups
	for i, g := range groups {
		if err := g.Validate(); err != nil {
			return Result{}, fmt.Errorf("clip %d: %w", i+1, err)
		}
	}
	notify := in.Observer
	if notify == nil {
		notify = func(int, Stage) {}
	}
	notify(-1, StageRequested)

	ws, err := workspace.New(in.WorkDir, u.d.Log)
	if err != nil {
		return Result{}, err
	}
	defer ws.Close()

	source, err := u.resolveSource(ctx, in.Source, ws)
	if err != nil {
		return Result{}, err
	}

	probe := clip.NewProbeCache(u.d.Video)
	known := in.Known
	if known == nil {
		notify(-1, StageProbing)
		info, err := probe.Probe(ctx, source)
		if err != nil {
			return Result{}, err
		}
		known = &info.FrameDimensions
	}

	extractor := &clip.Extractor{Transcoder: u.d.Video, Prober: probe, Workspace: ws, Log: logging.WithComponent(u.d.Log, "extract")}
	merger := &clip.Merger{Transcoder: u.d.Video, Prober: probe, Workspace: ws, Log: logging.WithComponent(u.d.Log, "merge")}
	thumbs := &clip.Thumbnailer{
		Transcoder: u.d.Video,
		Store:      u.d.Store,
		Workspace:  ws,
		Log:        logging.WithComponent(u.d.Log, "thumbnail"),
		MaxWidth:   in.Thumbnail.MaxWidth,
		MaxHeight:  in.Thumbnail.MaxHeight,
		Quality:    in.Thumbnail.Quality,
	}

	var jobs []part
	extracted := make([][]string, len(groups))
	for ci, g := range groups {
		extracted[ci] = make([]string, len(g.Parts))
		for pi, s := range g.Parts {
			jobs = append(jobs, part{clip: ci, idx: pi, span: s})
		}
	}

	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(limit(in.Concurrency))
	for _, j := range jobs {
		j := j
		eg.Go(func() error {
			if j.idx == 0 {
				notify(j.clip, StageExtracting)
			}
			out, err := extractor.Extract(egctx, clip.ExtractRequest{
				Source:   source,
				Span:     j.span,
				Crop:     in.Crop,
				Known:    known,
				Aspect:   in.Aspect,
				Encoding: in.Encoding,
			})
			if err != nil {
				return err
			}
			extracted[j.clip][j.idx] = out
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return Result{}, err
	}

	clips := make([]types.ExtractedClip, len(groups))
	eg, egctx = errgroup.WithContext(ctx)
	eg.SetLimit(limit(in.Concurrency))
	for ci := range groups {
		ci := ci
		eg.Go(func() error {
			c, err := u.finish(egctx, ci, extracted[ci], in, ws, probe, merger, thumbs, notify)
			if err != nil {
				return err
			}
			clips[ci] = c
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return Result{}, err
	}
	notify(-1, StageReady)
	return Result{Clips: clips}, nil
}

// finish merges one clip's parts, uploads it and attaches a thumbnail.
func (u Usecase) finish(
	ctx context.Context,
	ci int,
	parts []string,
	in Input,
	ws *workspace.Workspace,
	probe ports.Prober,
	merger *clip.Merger,
	thumbs *clip.Thumbnailer,
	notify Observer,
) (types.ExtractedClip, error) {
	if len(parts) > 1 {
		notify(ci, StageMerging)
	}
	merged, err := merger.Merge(ctx, parts, in.Encoding)
	if err != nil {
		return types.ExtractedClip{}, fmt.Errorf("clip %d: %w", ci+1, err)
	}
	if len(parts) > 1 {
		for _, p := range parts {
			ws.Remove(p)
		}
	}
	defer ws.Remove(merged)

	info, err := probe.Probe(ctx, merged)
	if err != nil {
		return types.ExtractedClip{}, fmt.Errorf("clip %d: %w", ci+1, err)
	}

	notify(ci, StageUploading)
	name := fmt.Sprintf("clip-%03d.mp4", ci+1)
	handle, err := upload(ctx, u.d.Store, merged, name, "video/mp4")
	if err != nil {
		return types.ExtractedClip{}, fmt.Errorf("clip %d: %w", ci+1, err)
	}

	notify(ci, StageThumbnailing)
	at := in.Thumbnail.At
	if info.Duration > 0 && at >= info.Duration {
		at = 0
	}
	thumb, err := thumbs.Extract(ctx, merged, at)
	if err != nil {
		return types.ExtractedClip{}, fmt.Errorf("clip %d: %w", ci+1, err)
	}
	notify(ci, StageReady)
	return types.ExtractedClip{
		Handle:          handle,
		Width:           info.Width,
		Height:          info.Height,
		ThumbnailHandle: thumb,
	}, nil
}

type CaptionInput struct {
	Video string
	// SRT is the caption text; when empty the audio track is transcribed.
	SRT           string
	Style         types.CaptionStyleOptions
	Encoding      types.Encoding
	WorkDir       string
	NativeConvert bool
	Observer      Observer
}

type CaptionResult struct {
	Clip types.ExtractedClip
	SRT  string
}

func (u Usecase) Caption(ctx context.Context, in CaptionInput) (CaptionResult, error) {
	notify := in.Observer
	if notify == nil {
		notify = func(int, Stage) {}
	}
	ws, err := workspace.New(in.WorkDir, u.d.Log)
	if err != nil {
		return CaptionResult{}, err
	}
	defer ws.Close()

	video, err := u.resolveSource(ctx, in.Video, ws)
	if err != nil {
		return CaptionResult{}, err
	}
	notify(0, StageCaptioning)

	srt := in.SRT
	if strings.TrimSpace(srt) == "" {
		srt, err = u.transcribe(ctx, video, ws)
		if err != nil {
			return CaptionResult{}, err
		}
	}

	probe := clip.NewProbeCache(u.d.Video)
	burner := &clip.CaptionBurner{
		Transcoder:    u.d.Video,
		Prober:        probe,
		Workspace:     ws,
		Log:           logging.WithComponent(u.d.Log, "caption"),
		Encoding:      in.Encoding,
		NativeConvert: in.NativeConvert,
	}
	out, err := burner.Burn(ctx, video, srt, in.Style)
	if err != nil {
		return CaptionResult{}, err
	}
	defer ws.Remove(out)

	info, err := probe.Probe(ctx, out)
	if err != nil {
		return CaptionResult{}, err
	}
	handle, err := upload(ctx, u.d.Store, out, "captioned.mp4", "video/mp4")
	if err != nil {
		return CaptionResult{}, err
	}
	notify(0, StageCaptioned)
	return CaptionResult{
		Clip: types.ExtractedClip{Handle: handle, Width: info.Width, Height: info.Height},
		SRT:  srt,
	}, nil
}

func (u Usecase) Thumbnail(ctx context.Context, video string, opts ThumbnailOptions, workDir string) (string, error) {
	ws, err := workspace.New(workDir, u.d.Log)
	if err != nil {
		return "", err
	}
	defer ws.Close()

	video, err = u.resolveSource(ctx, video, ws)
	if err != nil {
		return "", err
	}
	th := &clip.Thumbnailer{
		Transcoder: u.d.Video,
		Store:      u.d.Store,
		Workspace:  ws,
		Log:        logging.WithComponent(u.d.Log, "thumbnail"),
		MaxWidth:   opts.MaxWidth,
		MaxHeight:  opts.MaxHeight,
		Quality:    opts.Quality,
	}
	return th.Extract(ctx, video, opts.At)
}

func (u Usecase) transcribe(ctx context.Context, video string, ws *workspace.Workspace) (string, error) {
	if u.d.ASR == nil {
		return "", &clip.CaptionError{Stage: clip.StageConvert, Cause: errors.New("no captions given and no transcriber configured")}
	}
	wav := ws.Path("audio", "wav")
	defer ws.Remove(wav)
	if err := u.d.Video.ExtractAudioMono16k(ctx, video, wav); err != nil {
		return "", &clip.CaptionError{Stage: clip.StageConvert, Cause: err}
	}
	srt, err := u.d.ASR.TranscribeSRT(ctx, wav, ws.Dir())
	if err != nil {
		return "", &clip.CaptionError{Stage: clip.StageConvert, Cause: err}
	}
	return srt, nil
}

func (u Usecase) resolveSource(ctx context.Context, src string, ws *workspace.Workspace) (string, error) {
	if !isURL(src) {
		return src, nil
	}
	if u.d.Fetcher == nil {
		return "", fmt.Errorf("fetch %s: no source fetcher configured", src)
	}
	p, err := u.d.Fetcher.Fetch(ctx, src, ws.Dir())
	if err != nil {
		return "", fmt.Errorf("fetch source: %w", err)
	}
	return p, nil
}

func upload(ctx context.Context, store ports.BlobStore, path, name, mime string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &clip.UploadError{Name: name, Cause: err}
	}
	h, err := store.Upload(ctx, data, name, mime)
	if err != nil {
		return "", &clip.UploadError{Name: name, Cause: err}
	}
	return h, nil
}

func isURL(s string) bool {
	l := strings.ToLower(s)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}

func limit(k int) int {
	if k < 1 {
		return 1
	}
	return k
}
