package subtitles

import (
	"errors"
	"testing"
)

func TestParseSRT(t *testing.T) {
	t.Parallel()

	in := "1\r\n00:00:00,000 --> 00:00:01,500\r\nHello\r\nthere\r\n\r\n2\r\n00:00:01,500 --> 00:00:03,000 X1:10\r\nworld\r\n"
	cues, err := ParseSRT(in)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(cues) != 2 {
		t.Fatalf("expected 2 cues, got %d", len(cues))
	}
	if cues[0].Text != "Hello\nthere" || cues[0].Span.End != 1.5 {
		t.Fatalf("cue 0: %+v", cues[0])
	}
	if cues[1].Index != 2 || cues[1].Span.Start != 1.5 || cues[1].Span.End != 3 {
		t.Fatalf("cue 1: %+v", cues[1])
	}

	again, err := ParseSRT(FormatSRT(cues))
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if len(again) != 2 || again[1].Text != "world" {
		t.Fatalf("reparse: %+v", again)
	}
}

func TestParseSRT_Invalid(t *testing.T) {
	t.Parallel()

	for _, in := range []string{
		"",
		"1\nnot a timing line\ntext",
		"1\n00:00:01 --> 00:00:02,000\ntext",
		"1\n00:00:02,000 --> 00:00:01,000\ntext",
		"1\n00:00:01,000 -->\ntext",
	} {
		if _, err := ParseSRT(in); !errors.Is(err, ErrInvalidSRT) {
			t.Fatalf("ParseSRT(%q) err=%v", in, err)
		}
	}
}
