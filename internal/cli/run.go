package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/forPelevin/clipcraft/internal/config"
	"github.com/forPelevin/clipcraft/internal/logging"
	"github.com/forPelevin/clipcraft/internal/pipeline"
	"github.com/forPelevin/clipcraft/internal/types"
	"github.com/forPelevin/clipcraft/internal/usecase"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func runExtract(cmd *cobra.Command, source string) error {
	cfg, log, err := prepare(cmd)
	if err != nil {
		return err
	}
	planPath, _ := cmd.Flags().GetString("plan")
	aspect, _ := cmd.Flags().GetString("aspect")
	merge, _ := cmd.Flags().GetBool("merge")
	thumbAt, _ := cmd.Flags().GetString("thumb-at")

	pf, err := loadPlan(planPath)
	if err != nil {
		return err
	}
	p, err := pf.resolve(aspect, merge)
	if err != nil {
		return fmt.Errorf("plan: %w", err)
	}
	at, err := parseOffset(thumbAt)
	if err != nil {
		return err
	}

	pc, err := pipelineConfig(cfg, log, source)
	if err != nil {
		return err
	}
	pc.Thumbnail.At = at
	if err := pc.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, cancel := runContext()
	defer cancel()
	out, err := pipeline.Extract(ctx, pc, pipeline.ExtractRequest{
		Groups:      p.Groups,
		Aspect:      p.Aspect,
		AspectLabel: p.AspectLabel,
		Crop:        p.Crop,
		Titles:      p.Titles,
	})
	if err != nil {
		return err
	}
	return report(cmd, out)
}

func runCaption(cmd *cobra.Command, video string) error {
	cfg, log, err := prepare(cmd)
	if err != nil {
		return err
	}
	srtPath, _ := cmd.Flags().GetString("srt")
	stylePath, _ := cmd.Flags().GetString("style")
	preset, _ := cmd.Flags().GetString("preset")
	native, _ := cmd.Flags().GetBool("native")

	var style types.CaptionStyleOptions
	switch {
	case stylePath != "":
		if style, err = loadStyle(stylePath); err != nil {
			return err
		}
	case preset != "":
		if style, err = cfg.Preset(preset); err != nil {
			return err
		}
	}
	var srt string
	if srtPath != "" {
		b, err := os.ReadFile(srtPath)
		if err != nil {
			return err
		}
		srt = string(b)
	}

	pc, err := pipelineConfig(cfg, log, video)
	if err != nil {
		return err
	}
	if err := pc.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, cancel := runContext()
	defer cancel()
	out, err := pipeline.Caption(ctx, pc, pipeline.CaptionRequest{SRT: srt, Style: style, NativeConvert: native})
	if err != nil {
		return err
	}
	return report(cmd, out)
}

func runThumbnail(cmd *cobra.Command, video string) error {
	cfg, log, err := prepare(cmd)
	if err != nil {
		return err
	}
	atFlag, _ := cmd.Flags().GetString("at")
	at, err := parseOffset(atFlag)
	if err != nil {
		return err
	}
	pc, err := pipelineConfig(cfg, log, video)
	if err != nil {
		return err
	}
	pc.Thumbnail.At = at
	if err := pc.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, cancel := runContext()
	defer cancel()
	out, err := pipeline.Thumbnail(ctx, pc)
	if err != nil {
		return err
	}
	return report(cmd, out)
}

func runConfigInit(cmd *cobra.Command, path string) error {
	force, _ := cmd.Flags().GetBool("force")
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := config.Default().Save(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "config written: %s\n", path)
	return nil
}

// prepare loads the config file, applies persistent flag overrides and builds
// the logger.
func prepare(cmd *cobra.Command) (*config.Config, zerolog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("config: %w", err)
	}
	if v, _ := cmd.Flags().GetString("out"); v != "" {
		cfg.OutDir = v
	}
	if v, _ := cmd.Flags().GetString("temp"); v != "" {
		cfg.TempDir = v
	}
	if v, _ := cmd.Flags().GetInt("concurrency"); v > 0 {
		cfg.Concurrency = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.Log.Level = v
	}
	if v, _ := cmd.Flags().GetString("log-format"); v != "" {
		cfg.Log.Format = v
	}
	log := logging.New(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
	return cfg, log, nil
}

func pipelineConfig(cfg *config.Config, log zerolog.Logger, input string) (pipeline.Config, error) {
	if !isURL(input) {
		abs, err := filepath.Abs(input)
		if err != nil {
			return pipeline.Config{}, err
		}
		input = abs
	}
	return pipeline.Config{
		Input:          input,
		OutDir:         cfg.OutDir,
		TempDir:        cfg.TempDir,
		Concurrency:    cfg.Concurrency,
		Encoding:       cfg.Encoding(),
		Log:            log,
		FFmpegPath:     cfg.FFmpeg.BinaryPath,
		FFprobePath:    cfg.FFmpeg.ProbePath,
		WhisperBin:     cfg.Whisper.BinaryPath,
		WhisperModel:   cfg.Whisper.ModelPath,
		Proxies:        cfg.Source.Proxies,
		AllowedHosts:   cfg.Source.AllowedHosts,
		MaxSourceBytes: cfg.Source.MaxBytes,
		Thumbnail: usecase.ThumbnailOptions{
			MaxWidth:  cfg.Thumbnail.MaxWidth,
			MaxHeight: cfg.Thumbnail.MaxHeight,
			Quality:   cfg.Thumbnail.Quality,
		},
	}, nil
}

func runContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	ctx, cancel := context.WithTimeout(ctx, 3*time.Hour)
	return ctx, func() {
		cancel()
		stop()
	}
}

func report(cmd *cobra.Command, out pipeline.Outcome) error {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "run dir: %s\n", out.RunDir)
	for _, f := range out.Files {
		fmt.Fprintln(w, f)
	}
	return nil
}

func isURL(s string) bool {
	l := strings.ToLower(s)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}
