package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/forPelevin/clipcraft/internal/metrics"
	"github.com/forPelevin/clipcraft/internal/ports"
	"github.com/forPelevin/clipcraft/internal/ports/adapters/blobfs"
	"github.com/forPelevin/clipcraft/internal/ports/adapters/ffmpeg"
	"github.com/forPelevin/clipcraft/internal/ports/adapters/httpsource"
	"github.com/forPelevin/clipcraft/internal/ports/adapters/whispercpp"
	"github.com/forPelevin/clipcraft/internal/types"
	"github.com/forPelevin/clipcraft/internal/usecase"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

type Config struct {
	// Input is a local media file or an http(s) URL.
	Input       string
	OutDir      string
	TempDir     string
	Concurrency int
	Encoding    types.Encoding
	Log         zerolog.Logger

	FFmpegPath  string
	FFprobePath string

	// Whisper is only used when captions have to be transcribed.
	WhisperBin   string
	WhisperModel string

	Proxies        []string
	AllowedHosts   []string
	MaxSourceBytes int64

	Thumbnail usecase.ThumbnailOptions
}

func (c Config) Validate() error {
	if c.Input == "" {
		return errors.New("input is empty")
	}
	if isURL(c.Input) {
		if _, err := httpsource.ValidateSourceURL(c.Input, c.AllowedHosts); err != nil {
			return err
		}
	} else if _, err := os.Stat(c.Input); err != nil {
		return fmt.Errorf("stat input: %w", err)
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be > 0")
	}
	if c.FFmpegPath == "" || c.FFprobePath == "" {
		return fmt.Errorf("ffmpeg and ffprobe paths are required")
	}
	if c.Thumbnail.Quality < 0 || c.Thumbnail.Quality > 100 {
		return fmt.Errorf("thumbnail quality must be within 0..100")
	}
	if _, err := httpsource.NewProxyRotator(c.Proxies); err != nil {
		return err
	}
	return nil
}

type ExtractRequest struct {
	Groups []types.SegmentGroup
	Aspect float64
	// AspectLabel is recorded in the manifest, e.g. "9:16".
	AspectLabel string
	Crop        *types.CropBox
	Known       *types.FrameDimensions
	Titles      []string
}

type CaptionRequest struct {
	SRT           string
	Style         types.CaptionStyleOptions
	NativeConvert bool
}

// Outcome describes what a run left on disk.
type Outcome struct {
	RunDir   string
	Manifest types.Manifest
	Files    []string
}

type env struct {
	uc       usecase.Usecase
	store    *blobfs.Store
	registry *prometheus.Registry
	runDir   string
	log      zerolog.Logger
}

func setup(cfg Config, withASR bool) (*env, error) {
	log := cfg.Log
	outDir := cfg.OutDir
	if outDir == "" {
		outDir = "out"
	}
	runDir := buildRunOutDir(outDir, cfg.Input, time.Now().UTC())
	store, err := blobfs.New(runDir)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	video := ffmpeg.New(cfg.FFmpegPath, cfg.FFprobePath,
		ffmpeg.WithLogger(log),
		ffmpeg.WithMetrics(metrics.NewTranscoder(reg)),
	)

	deps := usecase.Deps{Video: video, Store: store, Log: log}
	if withASR && cfg.WhisperModel != "" {
		deps.ASR = whispercpp.New(cfg.WhisperBin, cfg.WhisperModel)
	}
	if isURL(cfg.Input) {
		proxies, err := httpsource.NewProxyRotator(cfg.Proxies)
		if err != nil {
			return nil, err
		}
		deps.Fetcher = httpsource.New(proxies,
			httpsource.WithLogger(log),
			httpsource.WithAllowedHosts(cfg.AllowedHosts),
			httpsource.WithMaxBytes(cfg.MaxSourceBytes),
		)
	}
	log.Info().Str("dir", runDir).Msg("output run dir")
	return &env{uc: usecase.New(deps), store: store, registry: reg, runDir: runDir, log: log}, nil
}

func (e *env) finish(o *Outcome) {
	p := filepath.Join(e.runDir, "metrics.prom")
	if err := metrics.WriteTextfile(p, e.registry); err != nil {
		e.log.Warn().Err(err).Msg("write metrics")
		return
	}
	o.Files = append(o.Files, p)
}

// Extract cuts every requested group out of cfg.Input into the run dir and
// writes manifest.json next to the clips.
func Extract(ctx context.Context, cfg Config, req ExtractRequest) (out Outcome, err error) {
	e, err := setup(cfg, false)
	if err != nil {
		return out, err
	}
	out.RunDir = e.runDir
	defer e.finish(&out)

	res, err := e.uc.Extract(ctx, usecase.Input{
		Source:      cfg.Input,
		Groups:      req.Groups,
		Aspect:      req.Aspect,
		Crop:        req.Crop,
		Known:       req.Known,
		Encoding:    cfg.Encoding,
		Concurrency: cfg.Concurrency,
		WorkDir:     cfg.TempDir,
		Thumbnail:   cfg.Thumbnail,
		Observer:    observer(e.log),
	})
	if err != nil {
		return out, err
	}

	out.Manifest = buildManifest(filepath.Base(e.runDir), cfg.Input, req, res.Clips)
	p, err := writeManifest(e.runDir, out.Manifest)
	if err != nil {
		return out, err
	}
	out.Files = append(out.Files, p)
	for _, c := range res.Clips {
		out.Files = append(out.Files, filepath.Join(e.runDir, c.Handle), filepath.Join(e.runDir, c.ThumbnailHandle))
	}
	e.log.Info().Int("clips", len(res.Clips)).Str("manifest", p).Msg("manifest written")
	return out, nil
}

// Caption burns captions into cfg.Input. The SRT actually used is saved as
// captions.srt beside the video.
func Caption(ctx context.Context, cfg Config, req CaptionRequest) (out Outcome, err error) {
	e, err := setup(cfg, true)
	if err != nil {
		return out, err
	}
	out.RunDir = e.runDir
	defer e.finish(&out)

	res, err := e.uc.Caption(ctx, usecase.CaptionInput{
		Video:         cfg.Input,
		SRT:           req.SRT,
		Style:         req.Style,
		Encoding:      cfg.Encoding,
		WorkDir:       cfg.TempDir,
		NativeConvert: req.NativeConvert,
		Observer:      observer(e.log),
	})
	if err != nil {
		return out, err
	}
	srtPath := filepath.Join(e.runDir, "captions.srt")
	if err := os.WriteFile(srtPath, []byte(res.SRT), 0o644); err != nil {
		return out, err
	}
	out.Files = append(out.Files, filepath.Join(e.runDir, res.Clip.Handle), srtPath)
	return out, nil
}

func Thumbnail(ctx context.Context, cfg Config) (out Outcome, err error) {
	e, err := setup(cfg, false)
	if err != nil {
		return out, err
	}
	out.RunDir = e.runDir
	defer e.finish(&out)

	h, err := e.uc.Thumbnail(ctx, cfg.Input, cfg.Thumbnail, cfg.TempDir)
	if err != nil {
		return out, err
	}
	p, err := e.store.Path(h)
	if err != nil {
		return out, err
	}
	out.Files = append(out.Files, p)
	return out, nil
}

func observer(log zerolog.Logger) usecase.Observer {
	return func(clip int, stage usecase.Stage) {
		ev := log.Info().Str("stage", string(stage))
		if clip >= 0 {
			ev = ev.Int("clip", clip+1)
		}
		ev.Msg("stage")
	}
}

func buildManifest(runID, input string, req ExtractRequest, clips []types.ExtractedClip) types.Manifest {
	m := types.Manifest{RunID: runID, Input: input, Aspect: req.AspectLabel}
	for i, c := range clips {
		mc := types.ManifestClip{
			ID:        fmt.Sprintf("clip-%03d", i+1),
			File:      c.Handle,
			Thumbnail: c.ThumbnailHandle,
			Width:     c.Width,
			Height:    c.Height,
		}
		if i < len(req.Groups) {
			g := req.Groups[i]
			mc.Parts = g.Parts
			mc.DurationSec = g.Duration()
		}
		if i < len(req.Titles) {
			mc.Title = req.Titles[i]
		}
		m.Clips = append(m.Clips, mc)
	}
	return m
}

func writeManifest(dir string, m types.Manifest) (string, error) {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal manifest: %w", err)
	}
	p := filepath.Join(dir, "manifest.json")
	if err := os.WriteFile(p, b, 0o644); err != nil {
		return "", err
	}
	return p, nil
}

func buildRunOutDir(outRoot, input string, now time.Time) string {
	base := input
	if isURL(input) {
		base = strings.SplitN(strings.SplitN(input, "?", 2)[0], "#", 2)[0]
	}
	name := strings.TrimSuffix(filepath.Base(base), filepath.Ext(base))
	name = normalizePathSegment(name)
	if name == "" {
		name = "input"
	}
	ts := now.UTC().Format("20060102-150405Z")
	runSeed := fmt.Sprintf("%s|%d", input, now.UTC().UnixNano())
	suffix := hash(runSeed)[:6]
	return filepath.Join(outRoot, fmt.Sprintf("%s-%s-%s", name, ts, suffix))
}

func normalizePathSegment(s string) string {
	var b strings.Builder
	prevDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:12]
}

func isURL(s string) bool {
	l := strings.ToLower(s)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}

// ensure adapters implement ports
var _ ports.Transcoder = (*ffmpeg.Adapter)(nil)
var _ ports.Transcriber = (*whispercpp.Adapter)(nil)
var _ ports.BlobStore = (*blobfs.Store)(nil)
var _ ports.SourceFetcher = (*httpsource.Fetcher)(nil)
