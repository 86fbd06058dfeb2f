package clip

import (
	"context"
	"errors"
	"image/color"
	"os"
	"sync"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/forPelevin/clipcraft/internal/ports"
	"github.com/forPelevin/clipcraft/internal/types"
	"github.com/forPelevin/clipcraft/internal/workspace"
	"github.com/rs/zerolog"
)

const fakeConvertedASS = `[Script Info]
ScriptType: v4.00+
PlayResX: 384
PlayResY: 288

[V4+ Styles]
Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding
Style: Default,Arial,16,&Hffffff,&Hffffff,&H0,&H0,0,0,0,0,100,100,0,0,1,1,0,2,10,10,10,0

[Events]
Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text
Dialogue: 0,0:00:00.00,0:00:01.00,Default,,0,0,0,,hello
`

type fakeTranscoder struct {
	mu sync.Mutex

	info     map[string]types.MediaInfo
	probes   map[string]int
	probeErr error

	trimErr    error
	trimBlock  bool
	concatErr  error
	shotErr    error
	convertErr error
	burnErr    error

	trims     []ports.TrimRequest
	concats   []ports.ConcatRequest
	converts  int
	burnedASS []string
}

func newFakeTranscoder() *fakeTranscoder {
	return &fakeTranscoder{info: map[string]types.MediaInfo{}, probes: map[string]int{}}
}

func (f *fakeTranscoder) Probe(ctx context.Context, path string) (types.MediaInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probes[path]++
	if f.probeErr != nil {
		return types.MediaInfo{}, f.probeErr
	}
	if info, ok := f.info[path]; ok {
		return info, nil
	}
	return types.MediaInfo{FrameDimensions: types.FrameDimensions{Width: 1920, Height: 1080}, HasAudio: true, Duration: 60}, nil
}

func (f *fakeTranscoder) Trim(ctx context.Context, req ports.TrimRequest) error {
	f.mu.Lock()
	f.trims = append(f.trims, req)
	f.mu.Unlock()
	if err := os.WriteFile(req.Output, []byte("partial"), 0o644); err != nil {
		return err
	}
	if f.trimBlock {
		<-ctx.Done()
		return ctx.Err()
	}
	return f.trimErr
}

func (f *fakeTranscoder) Concat(ctx context.Context, req ports.ConcatRequest) error {
	f.mu.Lock()
	f.concats = append(f.concats, req)
	f.mu.Unlock()
	if err := os.WriteFile(req.Output, []byte("merged"), 0o644); err != nil {
		return err
	}
	return f.concatErr
}

func (f *fakeTranscoder) Screenshot(ctx context.Context, input string, at float64, output string) error {
	if f.shotErr != nil {
		return f.shotErr
	}
	img := imaging.New(640, 360, color.NRGBA{R: 200, G: 40, B: 40, A: 255})
	return imaging.Save(img, output)
}

func (f *fakeTranscoder) ConvertSubtitles(ctx context.Context, srtPath, assPath string) error {
	f.mu.Lock()
	f.converts++
	f.mu.Unlock()
	if _, err := os.Stat(srtPath); err != nil {
		return err
	}
	if f.convertErr != nil {
		return f.convertErr
	}
	return os.WriteFile(assPath, []byte(fakeConvertedASS), 0o644)
}

func (f *fakeTranscoder) BurnSubtitles(ctx context.Context, input, assPath, output string, enc types.Encoding) error {
	doc, err := os.ReadFile(assPath)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.burnedASS = append(f.burnedASS, string(doc))
	f.mu.Unlock()
	if err := os.WriteFile(output, []byte("captioned"), 0o644); err != nil {
		return err
	}
	return f.burnErr
}

func (f *fakeTranscoder) ExtractAudioMono16k(ctx context.Context, input, outWav string) error {
	return errors.New("not used")
}

type fakeStore struct {
	mu      sync.Mutex
	err     error
	uploads map[string][]byte
	mimes   map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{uploads: map[string][]byte{}, mimes: map[string]string{}}
}

func (s *fakeStore) Upload(ctx context.Context, data []byte, name, mimeType string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	h := "blob/" + name
	s.uploads[h] = append([]byte(nil), data...)
	s.mimes[h] = mimeType
	return h, nil
}

func newWorkspace(t *testing.T) *workspace.Workspace {
	t.Helper()
	ws, err := workspace.New(t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatalf("workspace: %v", err)
	}
	t.Cleanup(ws.Close)
	return ws
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
