package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/forPelevin/clipcraft/internal/domain/geometry"
	"github.com/forPelevin/clipcraft/internal/domain/timecode"
	"github.com/forPelevin/clipcraft/internal/metrics"
	"github.com/forPelevin/clipcraft/internal/ports"
	"github.com/forPelevin/clipcraft/internal/types"
	"github.com/rs/zerolog"
)

const maxStderrBytes = 4096

var ErrNoVideoStream = errors.New("no video stream")

type Adapter struct {
	ffmpeg  string
	ffprobe string
	log     zerolog.Logger
	metrics *metrics.Transcoder
}

type Option func(*Adapter)

func WithLogger(l zerolog.Logger) Option {
	return func(a *Adapter) { a.log = l.With().Str("component", "ffmpeg").Logger() }
}

func WithMetrics(m *metrics.Transcoder) Option {
	return func(a *Adapter) { a.metrics = m }
}

func New(ffmpegPath, ffprobePath string, opts ...Option) *Adapter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	a := &Adapter{ffmpeg: ffmpegPath, ffprobe: ffprobePath, log: zerolog.Nop()}
	for _, o := range opts {
		o(a)
	}
	return a
}

func (a *Adapter) ExtractAudioMono16k(ctx context.Context, input, outWav string) error {
	_, err := a.run(ctx, "extract audio", a.ffmpeg,
		"-y",
		"-i", input,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-f", "wav",
		outWav,
	)
	return err
}

func (a *Adapter) Trim(ctx context.Context, req ports.TrimRequest) error {
	_, err := a.run(ctx, "trim", a.ffmpeg, trimArgs(req)...)
	return err
}

func (a *Adapter) Concat(ctx context.Context, req ports.ConcatRequest) error {
	if len(req.Inputs) == 0 {
		return errors.New("ffmpeg concat: no inputs")
	}
	_, err := a.run(ctx, "concat", a.ffmpeg, concatArgs(req)...)
	return err
}

func (a *Adapter) Screenshot(ctx context.Context, input string, at float64, output string) error {
	_, err := a.run(ctx, "screenshot", a.ffmpeg,
		"-y",
		"-ss", timecode.FormatFFmpeg(at),
		"-i", input,
		"-frames:v", "1",
		"-q:v", "2",
		output,
	)
	return err
}

func (a *Adapter) ConvertSubtitles(ctx context.Context, srtPath, assPath string) error {
	_, err := a.run(ctx, "convert subtitles", a.ffmpeg,
		"-y",
		"-i", srtPath,
		"-f", "ass",
		assPath,
	)
	return err
}

func (a *Adapter) BurnSubtitles(ctx context.Context, input, assPath, output string, enc types.Encoding) error {
	_, err := a.run(ctx, "burn subtitles", a.ffmpeg, burnArgs(input, assPath, output, enc)...)
	return err
}

func (a *Adapter) Probe(ctx context.Context, path string) (types.MediaInfo, error) {
	out, err := a.run(ctx, "probe", a.ffprobe,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	if err != nil {
		return types.MediaInfo{}, err
	}
	return parseProbe(out)
}

type probeResult struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
}

func parseProbe(b []byte) (types.MediaInfo, error) {
	var pr probeResult
	if err := json.Unmarshal(b, &pr); err != nil {
		return types.MediaInfo{}, fmt.Errorf("parse ffprobe output: %w", err)
	}
	var info types.MediaInfo
	found := false
	for _, s := range pr.Streams {
		switch s.CodecType {
		case "video":
			if !found {
				info.Width, info.Height = s.Width, s.Height
				found = true
			}
		case "audio":
			info.HasAudio = true
		}
	}
	if !found {
		return types.MediaInfo{}, ErrNoVideoStream
	}
	if d, err := strconv.ParseFloat(strings.TrimSpace(pr.Format.Duration), 64); err == nil {
		info.Duration = d
	}
	return info, nil
}

func (a *Adapter) run(ctx context.Context, op, bin string, args ...string) ([]byte, error) {
	a.log.Debug().Str("op", op).Str("bin", bin).Strs("args", args).Msg("exec")
	start := time.Now()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &limitedWriter{w: &stderr, limit: maxStderrBytes}
	cmd.WaitDelay = 5 * time.Second
	err := cmd.Run()
	a.metrics.Observe(op, start, err)

	if err != nil {
		name := toolName(bin)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s %s: %w", name, op, ctxErr)
		}
		return nil, fmt.Errorf("%s %s: %w\n%s", name, op, err, strings.TrimSpace(stderr.String()))
	}
	a.log.Debug().Str("op", op).Dur("took", time.Since(start)).Msg("exec done")
	return stdout.Bytes(), nil
}

func trimArgs(req ports.TrimRequest) []string {
	box := geometry.Even(req.Crop)
	args := []string{
		"-y",
		"-ss", timecode.FormatFFmpeg(req.Span.Start),
		"-i", req.Input,
		"-t", fmtSeconds(req.Span.Duration()),
		"-map", "0:v:0",
		"-map", "0:a?",
		"-vf", cropFilter(box),
	}
	args = append(args, videoArgs(req.Encoding)...)
	args = append(args, audioArgs(req.Encoding)...)
	return append(args, "-movflags", "+faststart", req.Output)
}

func concatArgs(req ports.ConcatRequest) []string {
	args := []string{"-y"}
	for _, in := range req.Inputs {
		args = append(args, "-i", in)
	}
	args = append(args, "-filter_complex", concatFilter(len(req.Inputs), req.Audio), "-map", "[outv]")
	if req.Audio {
		args = append(args, "-map", "[outa]")
	}
	args = append(args, videoArgs(req.Encoding)...)
	if req.Audio {
		args = append(args, audioArgs(req.Encoding)...)
	}
	return append(args, "-movflags", "+faststart", req.Output)
}

func burnArgs(input, assPath, output string, enc types.Encoding) []string {
	args := []string{
		"-y",
		"-i", input,
		"-vf", "ass=" + escapeFilterPath(assPath),
	}
	args = append(args, videoArgs(enc)...)
	return append(args, "-c:a", "copy", output)
}

func concatFilter(n int, audio bool) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "[%d:v]", i)
		if audio {
			fmt.Fprintf(&b, "[%d:a]", i)
		}
	}
	if audio {
		fmt.Fprintf(&b, "concat=n=%d:v=1:a=1[outv][outa]", n)
	} else {
		fmt.Fprintf(&b, "concat=n=%d:v=1:a=0[outv]", n)
	}
	return b.String()
}

func cropFilter(box types.CropBox) string {
	return fmt.Sprintf("crop=%d:%d:%d:%d", int(box.Width), int(box.Height), int(box.X), int(box.Y))
}

func videoArgs(enc types.Encoding) []string {
	enc = withDefaults(enc)
	return []string{
		"-c:v", enc.VideoCodec,
		"-preset", enc.Preset,
		"-crf", strconv.Itoa(enc.CRF),
		"-pix_fmt", "yuv420p",
	}
}

func audioArgs(enc types.Encoding) []string {
	enc = withDefaults(enc)
	return []string{
		"-c:a", enc.AudioCodec,
		"-b:a", enc.AudioBitrate,
	}
}

func withDefaults(enc types.Encoding) types.Encoding {
	def := types.DefaultEncoding()
	if enc.VideoCodec == "" {
		enc.VideoCodec = def.VideoCodec
	}
	if enc.AudioCodec == "" {
		enc.AudioCodec = def.AudioCodec
	}
	if enc.Preset == "" {
		enc.Preset = def.Preset
	}
	if enc.CRF <= 0 {
		enc.CRF = def.CRF
	}
	if enc.AudioBitrate == "" {
		enc.AudioBitrate = def.AudioBitrate
	}
	return enc
}

func toolName(bin string) string {
	if i := strings.LastIndexAny(bin, `/\`); i >= 0 {
		bin = bin[i+1:]
	}
	return strings.TrimSuffix(bin, ".exe")
}

func fmtSeconds(sec float64) string {
	if sec < 0 {
		sec = 0
	}
	return strconv.FormatFloat(sec, 'f', 3, 64)
}

// escapeFilterPath escapes a path for use as a filter option value inside a
// -vf graph. ffmpeg unescapes it twice: once when splitting the graph and once
// when splitting the filter's options.
func escapeFilterPath(p string) string {
	return escapeAny(escapeAny(p, `\:'`), `\'[],;`)
}

func escapeAny(s, special string) string {
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(special, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// limitedWriter keeps only the last limit bytes written.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		b := lw.w.Bytes()
		tail := append([]byte(nil), b[len(b)-lw.limit:]...)
		lw.w.Reset()
		lw.w.Write(tail)
	}
	return n, nil
}
