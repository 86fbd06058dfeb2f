package cli

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/forPelevin/clipcraft/internal/domain/geometry"
	"github.com/forPelevin/clipcraft/internal/domain/timecode"
	"github.com/forPelevin/clipcraft/internal/types"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadPlan_YAML(t *testing.T) {
	t.Parallel()

	p := writeFile(t, "plan.yaml", `
aspect: "1:1"
segments:
  - start_time: "00:00:01,000"
    end_time: "00:00:04,500"
    title: opener
groups:
  - title: best bits
    parts:
      - {start_time: "00:01:00,000", end_time: "00:01:05,000"}
      - {start_time: "00:00:10,000", end_time: "00:00:12,250"}
`)
	pf, err := loadPlan(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	got, err := pf.resolve("", false)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(got.Groups) != 2 || got.Aspect != 1 || got.AspectLabel != "1:1" {
		t.Fatalf("unexpected plan %+v", got)
	}
	if got.Groups[0].Parts[0] != (types.TimeSpan{Start: 1, End: 4.5}) {
		t.Fatalf("unexpected first span %+v", got.Groups[0].Parts[0])
	}
	if len(got.Groups[1].Parts) != 2 || got.Titles[1] != "best bits" {
		t.Fatalf("unexpected group %+v titles %v", got.Groups[1], got.Titles)
	}
	if got.Groups[1].Parts[0].Start != 10 || got.Groups[1].Parts[1].Start != 60 {
		t.Fatalf("group parts not in source order: %+v", got.Groups[1].Parts)
	}
}

func TestLoadPlan_JSONWithCrop(t *testing.T) {
	t.Parallel()

	p := writeFile(t, "plan.json", `{
  "crop": {"width": 400, "height": 400, "x": 10, "y": 20},
  "segments": [{"start_time": "00:00:00,000", "end_time": "00:00:02,000"}]
}`)
	pf, err := loadPlan(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	got, err := pf.resolve("", false)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.Crop == nil || got.Crop.Width != 400 || got.Crop.Y != 20 {
		t.Fatalf("unexpected crop %+v", got.Crop)
	}
	if got.Aspect != geometry.DefaultAspect || got.AspectLabel != "9:16" {
		t.Fatalf("expected default aspect, got %v %q", got.Aspect, got.AspectLabel)
	}
}

func TestResolve_MergeAndOverride(t *testing.T) {
	t.Parallel()

	pf := planFile{
		Aspect: "9:16",
		Segments: []planSpan{
			{Start: "00:00:05,000", End: "00:00:06,000"},
			{Start: "00:00:01,000", End: "00:00:02,000"},
		},
	}
	got, err := pf.resolve("4/5", true)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(got.Groups) != 1 || len(got.Groups[0].Parts) != 2 || got.Titles != nil {
		t.Fatalf("expected one merged group, got %+v", got)
	}
	if err := got.Groups[0].Validate(); err != nil {
		t.Fatalf("merged group not sorted: %v", err)
	}
	if got.Aspect != 0.8 || got.AspectLabel != "4/5" {
		t.Fatalf("override ignored: %v %q", got.Aspect, got.AspectLabel)
	}
}

func TestResolve_Errors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		pf      planFile
		wantErr error
		wantMsg string
	}{
		{name: "empty", pf: planFile{}, wantMsg: "no segments"},
		{
			name:    "bad timecode",
			pf:      planFile{Segments: []planSpan{{Start: "1:2:3", End: "00:00:02,000"}}},
			wantErr: timecode.ErrMalformedTimecode,
		},
		{
			name:    "reversed span",
			pf:      planFile{Segments: []planSpan{{Start: "00:00:03,000", End: "00:00:02,000"}}},
			wantErr: types.ErrInvalidSpan,
		},
		{name: "empty group", pf: planFile{Groups: []planGroup{{Title: "x"}}}, wantMsg: "no parts"},
		{
			name:    "bad aspect",
			pf:      planFile{Aspect: "wide", Segments: []planSpan{{Start: "00:00:00,000", End: "00:00:01,000"}}},
			wantErr: geometry.ErrInvalidAspect,
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := tc.pf.resolve("", false)
			if err == nil {
				t.Fatalf("expected error")
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Fatalf("err=%v want %v", err, tc.wantErr)
			}
			if tc.wantMsg != "" && !strings.Contains(err.Error(), tc.wantMsg) {
				t.Fatalf("err=%v want %q", err, tc.wantMsg)
			}
		})
	}
}

func TestParseOffset(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]float64{"": 0, "2.5": 2.5, "00:00:03,250": 3.25} {
		got, err := parseOffset(in)
		if err != nil || got != want {
			t.Fatalf("parseOffset(%q) = %v, %v", in, got, err)
		}
	}
	for _, in := range []string{"-1", "abc", "00:61:00,000"} {
		if _, err := parseOffset(in); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
}

func TestLoadStyle(t *testing.T) {
	t.Parallel()

	p := writeFile(t, "style.yaml", "font: Inter\nfont_size: 36\ntext_align: left\nvertical: top\nbackground_color: \"#000000\"\n")
	s, err := loadStyle(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Font != "Inter" || s.FontSize != 36 || s.Align != types.AlignLeft || s.Vertical != types.PositionTop {
		t.Fatalf("unexpected style %+v", s)
	}
}

func TestRootCommands(t *testing.T) {
	t.Parallel()

	root := newRoot()
	for _, name := range []string{"extract", "caption", "thumbnail"} {
		if c, _, err := root.Find([]string{name}); err != nil || c.Name() != name {
			t.Fatalf("missing subcommand %s: %v", name, err)
		}
	}
}
