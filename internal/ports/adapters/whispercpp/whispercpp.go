package whispercpp

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/forPelevin/clipcraft/internal/domain/subtitles"
)

type Adapter struct {
	bin   string
	model string
}

func New(binPath, modelPath string) *Adapter {
	return &Adapter{bin: binPath, model: modelPath}
}

// TranscribeSRT runs whisper.cpp over a 16 kHz mono wav and returns SubRip text.
func (a *Adapter) TranscribeSRT(ctx context.Context, wavPath, workDir string) (string, error) {
	outPrefix := filepath.Join(workDir, "whisper")
	cmd := exec.CommandContext(ctx, a.bin, args(a.model, wavPath, outPrefix)...)
	b, err := cmd.CombinedOutput()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("whisper.cpp: %w", ctxErr)
		}
		return "", fmt.Errorf("whisper.cpp failed: %w\n%s", err, string(b))
	}

	srtPath := outPrefix + ".srt"
	defer os.Remove(srtPath)
	sb, err := os.ReadFile(srtPath)
	if err != nil {
		return "", err
	}
	return normalize(string(sb))
}

func args(model, wavPath, outPrefix string) []string {
	return []string{
		"-m", model,
		"-f", wavPath,
		"-osrt",
		"-of", outPrefix,
	}
}

// normalize trims cue text and drops cues whisper left empty.
func normalize(srt string) (string, error) {
	cues, err := subtitles.ParseSRT(srt)
	if err != nil {
		return "", err
	}
	kept := cues[:0]
	for _, c := range cues {
		c.Text = strings.TrimSpace(c.Text)
		if c.Text == "" {
			continue
		}
		kept = append(kept, c)
	}
	if len(kept) == 0 {
		return "", fmt.Errorf("%w: transcript is empty", subtitles.ErrInvalidSRT)
	}
	return subtitles.FormatSRT(kept), nil
}
