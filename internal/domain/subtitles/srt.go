package subtitles

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/forPelevin/clipcraft/internal/domain/timecode"
	"github.com/forPelevin/clipcraft/internal/types"
)

var ErrInvalidSRT = errors.New("invalid srt")

// Cue is one numbered SRT block.
type Cue struct {
	Index int
	Span  types.TimeSpan
	Text  string
}

// ParseSRT reads SubRip text. Blocks are separated by blank lines; the index
// line is optional.
func ParseSRT(text string) ([]Cue, error) {
	text = strings.TrimPrefix(text, "\ufeff")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	blocks := strings.Split(strings.TrimSpace(text), "\n\n")

	var cues []Cue
	for bi, block := range blocks {
		lines := strings.Split(strings.Trim(block, "\n"), "\n")
		if len(lines) == 0 || strings.TrimSpace(lines[0]) == "" {
			continue
		}
		idx := len(cues) + 1
		if n, err := strconv.Atoi(strings.TrimSpace(lines[0])); err == nil {
			idx = n
			lines = lines[1:]
		}
		if len(lines) == 0 {
			return nil, fmt.Errorf("%w: block %d: missing timing line", ErrInvalidSRT, bi+1)
		}
		startTS, endTS, ok := strings.Cut(lines[0], "-->")
		if !ok {
			return nil, fmt.Errorf("%w: block %d: missing --> in %q", ErrInvalidSRT, bi+1, lines[0])
		}
		start, err := timecode.Parse(startTS)
		if err != nil {
			return nil, fmt.Errorf("%w: block %d: %v", ErrInvalidSRT, bi+1, err)
		}
		// Some writers append position hints after the end time.
		endFields := strings.Fields(endTS)
		if len(endFields) == 0 {
			return nil, fmt.Errorf("%w: block %d: missing end time", ErrInvalidSRT, bi+1)
		}
		end, err := timecode.Parse(endFields[0])
		if err != nil {
			return nil, fmt.Errorf("%w: block %d: %v", ErrInvalidSRT, bi+1, err)
		}
		if end < start {
			return nil, fmt.Errorf("%w: block %d: end before start", ErrInvalidSRT, bi+1)
		}
		cues = append(cues, Cue{
			Index: idx,
			Span:  types.TimeSpan{Start: start, End: end},
			Text:  strings.TrimSpace(strings.Join(lines[1:], "\n")),
		})
	}
	if len(cues) == 0 {
		return nil, fmt.Errorf("%w: no cues", ErrInvalidSRT)
	}
	return cues, nil
}

// FormatSRT writes cues back as SubRip text.
func FormatSRT(cues []Cue) string {
	var b strings.Builder
	for i, c := range cues {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n", i+1, timecode.Format(c.Span.Start), timecode.Format(c.Span.End), c.Text)
	}
	return b.String()
}
