package ports

import (
	"context"

	"github.com/forPelevin/clipcraft/internal/types"
)

type Prober interface {
	Probe(ctx context.Context, path string) (types.MediaInfo, error)
}

// TrimRequest describes one trim+crop+re-encode of a source span.
type TrimRequest struct {
	Input    string
	Output   string
	Span     types.TimeSpan
	Crop     types.CropBox
	Encoding types.Encoding
}

// ConcatRequest joins Inputs in order into Output.
type ConcatRequest struct {
	Inputs   []string
	Output   string
	Audio    bool
	Encoding types.Encoding
}

type Transcoder interface {
	Prober
	Trim(ctx context.Context, req TrimRequest) error
	Concat(ctx context.Context, req ConcatRequest) error
	Screenshot(ctx context.Context, input string, at float64, output string) error
	ConvertSubtitles(ctx context.Context, srtPath, assPath string) error
	BurnSubtitles(ctx context.Context, input, assPath, output string, enc types.Encoding) error
	ExtractAudioMono16k(ctx context.Context, input, outWav string) error
}

// BlobStore persists finished artifacts and returns an opaque handle.
type BlobStore interface {
	Upload(ctx context.Context, data []byte, name, mimeType string) (string, error)
}

type Transcriber interface {
	TranscribeSRT(ctx context.Context, wavPath, workDir string) (string, error)
}

type SourceFetcher interface {
	Fetch(ctx context.Context, rawURL, dstDir string) (string, error)
}
