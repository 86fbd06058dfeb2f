package subtitles

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/forPelevin/clipcraft/internal/types"
)

var ErrInvalidDocument = errors.New("invalid ass document")

var defaultEventFormat = []string{"Layer", "Start", "End", "Style", "Name", "MarginL", "MarginR", "MarginV", "Effect", "Text"}

type section struct {
	header string
	lines  []string
}

func (s section) is(names ...string) bool {
	for _, n := range names {
		if strings.EqualFold(s.header, n) {
			return true
		}
	}
	return false
}

// Splice rewrites a converted ASS document so every event uses the compiled
// style. The styles section is replaced, PlayRes is pinned to res when known
// and the position override is prepended to each event's text.
func Splice(doc string, style types.CompiledCaptionStyle, res types.FrameDimensions) (string, error) {
	sections := parseSections(doc)

	var out []section
	var haveInfo, haveStyles, haveEvents bool
	for _, s := range sections {
		switch {
		case s.is("[Script Info]"):
			haveInfo = true
			s.lines = withPlayRes(s.lines, res)
			out = append(out, s)
		case s.is("[V4+ Styles]", "[V4 Styles]"):
			if haveStyles {
				continue
			}
			haveStyles = true
			out = append(out, stylesSection(style))
		case s.is("[Events]"):
			if !haveStyles {
				haveStyles = true
				out = append(out, stylesSection(style))
			}
			lines, err := rewriteEvents(s.lines, style.PositionOverride)
			if err != nil {
				return "", err
			}
			haveEvents = true
			s.lines = lines
			out = append(out, s)
		default:
			out = append(out, s)
		}
	}
	if !haveEvents {
		return "", fmt.Errorf("%w: no [Events] section", ErrInvalidDocument)
	}
	if !haveInfo {
		info := section{header: "[Script Info]", lines: withPlayRes([]string{"ScriptType: v4.00+"}, res)}
		out = append([]section{info}, out...)
	}
	return renderSections(out), nil
}

// BuildASS renders cues directly into an ASS document with the compiled style.
func BuildASS(cues []Cue, style types.CompiledCaptionStyle, res types.FrameDimensions) string {
	var b strings.Builder
	b.WriteString("[Script Info]\n")
	b.WriteString("ScriptType: v4.00+\n")
	for _, l := range withPlayRes(nil, res) {
		b.WriteString(l + "\n")
	}
	b.WriteString("ScaledBorderAndShadow: yes\n")
	b.WriteString("\n[V4+ Styles]\n")
	b.WriteString(style.FormatLine + "\n")
	b.WriteString(style.StyleLine + "\n")
	b.WriteString("\n[Events]\n")
	b.WriteString("Format: " + strings.Join(defaultEventFormat, ", ") + "\n")
	for _, c := range cues {
		b.WriteString("Dialogue: 0,")
		b.WriteString(assTime(c.Span.Start))
		b.WriteString(",")
		b.WriteString(assTime(c.Span.End))
		b.WriteString("," + StyleName + ",,0,0,0,,")
		b.WriteString(overrideTag(style.PositionOverride))
		b.WriteString(sanitizeASS(c.Text))
		b.WriteString("\n")
	}
	return b.String()
}

func parseSections(doc string) []section {
	doc = strings.TrimPrefix(doc, "\ufeff")
	doc = strings.ReplaceAll(doc, "\r\n", "\n")

	var out []section
	cur := -1
	for _, ln := range strings.Split(doc, "\n") {
		t := strings.TrimSpace(ln)
		if strings.HasPrefix(t, "[") && strings.HasSuffix(t, "]") {
			out = append(out, section{header: t})
			cur = len(out) - 1
			continue
		}
		if t == "" || cur < 0 {
			continue
		}
		out[cur].lines = append(out[cur].lines, t)
	}
	return out
}

func renderSections(ss []section) string {
	var b strings.Builder
	for i, s := range ss {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(s.header + "\n")
		for _, l := range s.lines {
			b.WriteString(l + "\n")
		}
	}
	return b.String()
}

func stylesSection(style types.CompiledCaptionStyle) section {
	return section{header: "[V4+ Styles]", lines: []string{style.FormatLine, style.StyleLine}}
}

func withPlayRes(lines []string, res types.FrameDimensions) []string {
	if res.Width <= 0 || res.Height <= 0 {
		return lines
	}
	out := make([]string, 0, len(lines)+2)
	for _, l := range lines {
		key, _, _ := strings.Cut(l, ":")
		switch strings.TrimSpace(key) {
		case "PlayResX", "PlayResY":
			continue
		}
		out = append(out, l)
	}
	return append(out,
		fmt.Sprintf("PlayResX: %d", res.Width),
		fmt.Sprintf("PlayResY: %d", res.Height),
	)
}

func rewriteEvents(lines []string, override string) ([]string, error) {
	format := defaultEventFormat
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		key, rest, ok := strings.Cut(l, ":")
		if !ok {
			out = append(out, l)
			continue
		}
		switch strings.TrimSpace(key) {
		case "Format":
			format = splitFields(rest)
			out = append(out, "Format: "+strings.Join(format, ", "))
		case "Dialogue":
			ev, err := rewriteDialogue(rest, format, override)
			if err != nil {
				return nil, err
			}
			out = append(out, "Dialogue: "+ev)
		default:
			out = append(out, l)
		}
	}
	return out, nil
}

func rewriteDialogue(rest string, format []string, override string) (string, error) {
	styleIdx, textIdx := -1, -1
	for i, f := range format {
		switch f {
		case "Style":
			styleIdx = i
		case "Text":
			textIdx = i
		}
	}
	if textIdx != len(format)-1 {
		return "", fmt.Errorf("%w: Text must be the last event field", ErrInvalidDocument)
	}
	vals := strings.SplitN(strings.TrimLeft(rest, " "), ",", len(format))
	if len(vals) != len(format) {
		return "", fmt.Errorf("%w: dialogue has %d fields, want %d", ErrInvalidDocument, len(vals), len(format))
	}
	if styleIdx >= 0 {
		vals[styleIdx] = StyleName
	}
	vals[textIdx] = overrideTag(override) + vals[textIdx]
	return strings.Join(vals, ","), nil
}

func splitFields(s string) []string {
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func overrideTag(o string) string {
	if o == "" {
		return ""
	}
	return "{" + o + "}"
}

func assTime(sec float64) string {
	if sec < 0 {
		sec = 0
	}
	cs := int(math.Round(sec * 100))
	h := cs / 360000
	cs -= h * 360000
	m := cs / 6000
	cs -= m * 6000
	s := cs / 100
	cs -= s * 100
	return fmt.Sprintf("%d:%02d:%02d.%02d", h, m, s, cs)
}

func sanitizeASS(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "{", "(")
	s = strings.ReplaceAll(s, "}", ")")
	s = strings.TrimSpace(s)
	return strings.ReplaceAll(s, "\n", "\\N")
}
