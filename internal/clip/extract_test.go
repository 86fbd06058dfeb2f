package clip

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/forPelevin/clipcraft/internal/domain/geometry"
	"github.com/forPelevin/clipcraft/internal/types"
	"github.com/rs/zerolog"
)

func newExtractor(t *testing.T, tc *fakeTranscoder) *Extractor {
	t.Helper()
	return &Extractor{
		Transcoder: tc,
		Prober:     NewProbeCache(tc),
		Workspace:  newWorkspace(t),
		Log:        zerolog.Nop(),
	}
}

func TestExtract_InvalidSpan(t *testing.T) {
	t.Parallel()

	tc := newFakeTranscoder()
	e := newExtractor(t, tc)
	for _, span := range []types.TimeSpan{{Start: 5, End: 5}, {Start: 5, End: 4}, {Start: -1, End: 2}} {
		_, err := e.Extract(context.Background(), ExtractRequest{Source: "in.mp4", Span: span})
		if !errors.Is(err, ErrInvalidSpan) {
			t.Fatalf("%+v: err=%v", span, err)
		}
	}
	if len(tc.trims) != 0 || len(tc.probes) != 0 {
		t.Fatalf("invalid span reached the transcoder: trims=%d probes=%d", len(tc.trims), len(tc.probes))
	}
}

func TestExtract_ProbesOnceAndComputesCrop(t *testing.T) {
	t.Parallel()

	tc := newFakeTranscoder()
	e := newExtractor(t, tc)
	for _, span := range []types.TimeSpan{{Start: 0, End: 2}, {Start: 3, End: 4.5}} {
		out, err := e.Extract(context.Background(), ExtractRequest{Source: "in.mp4", Span: span, Aspect: geometry.DefaultAspect})
		if err != nil {
			t.Fatalf("extract: %v", err)
		}
		if filepath.Dir(out) != e.Workspace.Dir() {
			t.Fatalf("output %s outside workspace", out)
		}
	}
	if tc.probes["in.mp4"] != 1 {
		t.Fatalf("expected one probe, got %d", tc.probes["in.mp4"])
	}
	want := types.CropBox{Width: 607.5, Height: 1080, X: 656.25, Y: 0}
	if tc.trims[1].Crop != want || tc.trims[1].Span.Start != 3 {
		t.Fatalf("unexpected trim request %+v", tc.trims[1])
	}
}

func TestExtract_ExplicitCropAndKnownDims(t *testing.T) {
	t.Parallel()

	tc := newFakeTranscoder()
	e := newExtractor(t, tc)
	box := types.CropBox{Width: 100, Height: 200, X: 10, Y: 20}
	if _, err := e.Extract(context.Background(), ExtractRequest{Source: "in.mp4", Span: types.TimeSpan{End: 1}, Crop: &box}); err != nil {
		t.Fatalf("explicit crop: %v", err)
	}
	known := types.FrameDimensions{Width: 1080, Height: 1920}
	if _, err := e.Extract(context.Background(), ExtractRequest{Source: "in.mp4", Span: types.TimeSpan{End: 1}, Known: &known, Aspect: 1}); err != nil {
		t.Fatalf("known dims: %v", err)
	}
	if tc.probes["in.mp4"] != 1 {
		t.Fatalf("expected one probe for the explicit crop, got %v", tc.probes)
	}
	if tc.trims[0].Crop != box {
		t.Fatalf("explicit crop not verbatim: %+v", tc.trims[0].Crop)
	}
	if got := tc.trims[1].Crop; got != (types.CropBox{Width: 1080, Height: 1080, X: 0, Y: 420}) {
		t.Fatalf("unexpected computed crop %+v", got)
	}

	bad := types.CropBox{Width: 2000, Height: 100}
	_, err := e.Extract(context.Background(), ExtractRequest{Source: "in.mp4", Span: types.TimeSpan{End: 1}, Crop: &bad, Known: &known})
	if !errors.Is(err, ErrExtraction) || !errors.Is(err, ErrInvalidDimensions) {
		t.Fatalf("err=%v", err)
	}
}

func TestExtract_ExplicitCropCheckedAgainstSourceFrame(t *testing.T) {
	t.Parallel()

	tc := newFakeTranscoder()
	e := newExtractor(t, tc)
	// Fits a portrait frame but not the 1920x1080 source.
	tall := types.CropBox{Width: 600, Height: 1500}
	_, err := e.Extract(context.Background(), ExtractRequest{Source: "in.mp4", Span: types.TimeSpan{End: 1}, Crop: &tall})
	if !errors.Is(err, ErrInvalidDimensions) {
		t.Fatalf("err=%v", err)
	}
	if len(tc.trims) != 0 {
		t.Fatalf("oversized crop reached the encoder")
	}
	if tc.probes["in.mp4"] != 1 {
		t.Fatalf("expected one probe, got %d", tc.probes["in.mp4"])
	}
}

func TestExtract_FailureRemovesPartialOutput(t *testing.T) {
	t.Parallel()

	tc := newFakeTranscoder()
	tc.trimErr = errors.New("encoder exploded")
	e := newExtractor(t, tc)

	_, err := e.Extract(context.Background(), ExtractRequest{Source: "in.mp4", Span: types.TimeSpan{Start: 1, End: 2}})
	var xe *ExtractionError
	if !errors.As(err, &xe) || !errors.Is(err, ErrExtraction) {
		t.Fatalf("err=%v", err)
	}
	if xe.Span != (types.TimeSpan{Start: 1, End: 2}) {
		t.Fatalf("span not reported: %+v", xe.Span)
	}
	if names := listDir(t, e.Workspace.Dir()); len(names) != 0 {
		t.Fatalf("partial output left behind: %v", names)
	}
}

func TestExtract_ProbeFailure(t *testing.T) {
	t.Parallel()

	tc := newFakeTranscoder()
	tc.probeErr = errors.New("moov atom not found")
	e := newExtractor(t, tc)

	_, err := e.Extract(context.Background(), ExtractRequest{Source: "in.mp4", Span: types.TimeSpan{End: 1}})
	if !errors.Is(err, ErrProbe) || !errors.Is(err, ErrExtraction) {
		t.Fatalf("err=%v", err)
	}
	var pe *ProbeError
	var xe *ExtractionError
	if !errors.As(err, &pe) || !errors.As(err, &xe) {
		t.Fatalf("expected both stage errors in the chain: %v", err)
	}
	if len(tc.trims) != 0 {
		t.Fatalf("trim must not run after probe failure")
	}
}

func TestExtract_CancelLeavesNoFiles(t *testing.T) {
	t.Parallel()

	tc := newFakeTranscoder()
	tc.trimBlock = true
	e := newExtractor(t, tc)
	known := types.FrameDimensions{Width: 1920, Height: 1080}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := e.Extract(ctx, ExtractRequest{Source: "in.mp4", Span: types.TimeSpan{End: 10}, Known: &known})
		done <- err
	}()

	deadline := time.Now().Add(5 * time.Second)
	for len(listDir(t, e.Workspace.Dir())) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("extraction never started")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	err := <-done
	if !errors.Is(err, context.Canceled) || !errors.Is(err, ErrExtraction) {
		t.Fatalf("err=%v", err)
	}
	if names := listDir(t, e.Workspace.Dir()); len(names) != 0 {
		t.Fatalf("files left after cancel: %v", names)
	}
}

func TestProbeCache_SharesConcurrentProbes(t *testing.T) {
	t.Parallel()

	tc := newFakeTranscoder()
	c := NewProbeCache(tc)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Probe(context.Background(), "same.mp4"); err != nil {
				t.Errorf("probe: %v", err)
			}
		}()
	}
	wg.Wait()
	if tc.probes["same.mp4"] != 1 {
		t.Fatalf("expected one probe, got %d", tc.probes["same.mp4"])
	}
}

type proberFunc func(ctx context.Context, path string) (types.MediaInfo, error)

func (f proberFunc) Probe(ctx context.Context, path string) (types.MediaInfo, error) {
	return f(ctx, path)
}

func TestProbeCache_WaiterOutlivesCancelledLeader(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	var mu sync.Mutex
	calls := 0
	c := NewProbeCache(proberFunc(func(ctx context.Context, path string) (types.MediaInfo, error) {
		mu.Lock()
		calls++
		first := calls == 1
		mu.Unlock()
		if first {
			close(started)
			<-ctx.Done()
			return types.MediaInfo{}, ctx.Err()
		}
		return types.MediaInfo{FrameDimensions: types.FrameDimensions{Width: 640, Height: 360}}, nil
	}))

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := c.Probe(leaderCtx, "in.mp4")
		leaderErr <- err
	}()
	<-started

	type result struct {
		info types.MediaInfo
		err  error
	}
	waiter := make(chan result, 1)
	go func() {
		info, err := c.Probe(context.Background(), "in.mp4")
		waiter <- result{info, err}
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	if err := <-leaderErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("leader err=%v", err)
	}
	got := <-waiter
	if got.err != nil {
		t.Fatalf("waiter inherited the leader's cancellation: %v", got.err)
	}
	if got.info.Width != 640 {
		t.Fatalf("unexpected info %+v", got.info)
	}
}
