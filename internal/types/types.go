package types

import (
	"errors"
	"fmt"
	"sort"
)

var ErrInvalidSpan = errors.New("invalid span")

// TimeSpan is a half-open interval of source time in seconds.
type TimeSpan struct {
	Start float64 `json:"start" yaml:"start"`
	End   float64 `json:"end" yaml:"end"`
}

func (s TimeSpan) Duration() float64 { return s.End - s.Start }

func (s TimeSpan) Validate() error {
	if s.Start < 0 {
		return fmt.Errorf("%w: start %.3f is negative", ErrInvalidSpan, s.Start)
	}
	if s.End <= s.Start {
		return fmt.Errorf("%w: end %.3f must be after start %.3f", ErrInvalidSpan, s.End, s.Start)
	}
	return nil
}

// SegmentGroup is an ordered set of spans that become one merged clip.
type SegmentGroup struct {
	Parts []TimeSpan `json:"parts" yaml:"parts"`
}

func (g SegmentGroup) Validate() error {
	if len(g.Parts) == 0 {
		return fmt.Errorf("%w: group has no parts", ErrInvalidSpan)
	}
	for i, p := range g.Parts {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("part %d: %w", i, err)
		}
		if i == 0 {
			continue
		}
		prev := g.Parts[i-1]
		if p.Start < prev.Start {
			return fmt.Errorf("%w: part %d starts before part %d", ErrInvalidSpan, i, i-1)
		}
		if p.Start < prev.End {
			return fmt.Errorf("%w: part %d overlaps part %d", ErrInvalidSpan, i, i-1)
		}
	}
	return nil
}

// Sorted returns a copy of the group with parts in chronological order.
func (g SegmentGroup) Sorted() SegmentGroup {
	parts := append([]TimeSpan(nil), g.Parts...)
	sort.SliceStable(parts, func(i, j int) bool { return parts[i].Start < parts[j].Start })
	return SegmentGroup{Parts: parts}
}

func (g SegmentGroup) Duration() float64 {
	var d float64
	for _, p := range g.Parts {
		d += p.Duration()
	}
	return d
}

type FrameDimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// CropBox is a rectangle in source pixel space.
type CropBox struct {
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
}

type MediaInfo struct {
	FrameDimensions
	Duration float64
	HasAudio bool
}

type HorizontalAlign string

const (
	AlignLeft   HorizontalAlign = "left"
	AlignCenter HorizontalAlign = "center"
	AlignRight  HorizontalAlign = "right"
)

type VerticalPosition string

const (
	PositionBottom VerticalPosition = "bottom"
	PositionTop    VerticalPosition = "top"
)

type Point struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

// CaptionStyleOptions is the user-facing caption appearance. Colours are hex
// RGB with an optional trailing alpha byte.
type CaptionStyleOptions struct {
	Font            string           `json:"font" yaml:"font"`
	FontSize        int              `json:"font_size" yaml:"font_size"`
	PrimaryColor    string           `json:"font_color" yaml:"font_color"`
	OutlineColor    string           `json:"outline_color" yaml:"outline_color"`
	BackgroundColor string           `json:"background_color" yaml:"background_color"`
	Bold            bool             `json:"bold" yaml:"bold"`
	Italic          bool             `json:"italic" yaml:"italic"`
	Underline       bool             `json:"underline" yaml:"underline"`
	Align           HorizontalAlign  `json:"text_align" yaml:"text_align"`
	Vertical        VerticalPosition `json:"vertical" yaml:"vertical"`
	Position        *Point           `json:"position,omitempty" yaml:"position,omitempty"`
	Outline         int              `json:"outline" yaml:"outline"`
}

type CompiledCaptionStyle struct {
	FormatLine       string
	StyleLine        string
	PositionOverride string
}

// Encoding carries the codec parameters handed to the transcoder.
type Encoding struct {
	VideoCodec   string `json:"video_codec" yaml:"video_codec"`
	AudioCodec   string `json:"audio_codec" yaml:"audio_codec"`
	Preset       string `json:"preset" yaml:"preset"`
	CRF          int    `json:"crf" yaml:"crf"`
	AudioBitrate string `json:"audio_bitrate" yaml:"audio_bitrate"`
}

func DefaultEncoding() Encoding {
	return Encoding{
		VideoCodec:   "libx264",
		AudioCodec:   "aac",
		Preset:       "veryfast",
		CRF:          18,
		AudioBitrate: "192k",
	}
}

type ExtractedClip struct {
	Handle          string `json:"handle"`
	Width           int    `json:"width"`
	Height          int    `json:"height"`
	ThumbnailHandle string `json:"thumbnail"`
}

type Manifest struct {
	RunID  string         `json:"run_id"`
	Input  string         `json:"input"`
	Aspect string         `json:"aspect"`
	Clips  []ManifestClip `json:"clips"`
}

type ManifestClip struct {
	ID          string     `json:"id"`
	Parts       []TimeSpan `json:"parts"`
	DurationSec float64    `json:"duration_sec"`
	File        string     `json:"file"`
	Thumbnail   string     `json:"thumbnail"`
	Width       int        `json:"width"`
	Height      int        `json:"height"`
	Title       string     `json:"title,omitempty"`
}
