package clip

import (
	"errors"
	"fmt"

	"github.com/forPelevin/clipcraft/internal/domain/geometry"
	"github.com/forPelevin/clipcraft/internal/domain/timecode"
	"github.com/forPelevin/clipcraft/internal/types"
)

// Error kinds. Every failure returned by this package matches at least one of
// these through errors.Is, alongside its underlying cause. A stage error that
// wraps another stage's failure matches both, e.g. an extraction that could
// not probe its source is ErrExtraction and ErrProbe.
var (
	ErrMalformedTimecode = timecode.ErrMalformedTimecode
	ErrInvalidDimensions = geometry.ErrInvalidDimensions
	ErrInvalidSpan       = types.ErrInvalidSpan

	ErrProbe      = errors.New("probe failure")
	ErrExtraction = errors.New("extraction failure")
	ErrMerge      = errors.New("merge failure")
	ErrThumbnail  = errors.New("thumbnail failure")
	ErrUpload     = errors.New("upload failure")
	ErrCaption    = errors.New("caption failure")

	ErrDimensionMismatch = errors.New("segment dimensions differ")
	ErrUnsupportedMedia  = errors.New("unsupported media")
)

type ProbeError struct {
	Path  string
	Cause error
}

func (e *ProbeError) Error() string { return fmt.Sprintf("probe %s: %v", e.Path, e.Cause) }

func (e *ProbeError) Unwrap() []error { return []error{ErrProbe, e.Cause} }

type ExtractionError struct {
	Span  types.TimeSpan
	Cause error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %.3f-%.3f: %v", e.Span.Start, e.Span.End, e.Cause)
}

func (e *ExtractionError) Unwrap() []error { return []error{ErrExtraction, e.Cause} }

type MergeError struct {
	Parts int
	Cause error
}

func (e *MergeError) Error() string { return fmt.Sprintf("merge %d parts: %v", e.Parts, e.Cause) }

func (e *MergeError) Unwrap() []error { return []error{ErrMerge, e.Cause} }

type ThumbnailError struct {
	At    float64
	Cause error
}

func (e *ThumbnailError) Error() string { return fmt.Sprintf("thumbnail at %.3f: %v", e.At, e.Cause) }

func (e *ThumbnailError) Unwrap() []error { return []error{ErrThumbnail, e.Cause} }

type UploadError struct {
	Name  string
	Cause error
}

func (e *UploadError) Error() string { return fmt.Sprintf("upload %s: %v", e.Name, e.Cause) }

func (e *UploadError) Unwrap() []error { return []error{ErrUpload, e.Cause} }

type CaptionStage string

const (
	StageConvert CaptionStage = "convert"
	StageStyle   CaptionStage = "style"
	StageProbe   CaptionStage = "probe"
	StageEncode  CaptionStage = "encode"
)

type CaptionError struct {
	Stage CaptionStage
	Cause error
}

func (e *CaptionError) Error() string { return fmt.Sprintf("caption %s: %v", e.Stage, e.Cause) }

func (e *CaptionError) Unwrap() []error { return []error{ErrCaption, e.Cause} }
