package subtitles

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/forPelevin/clipcraft/internal/types"
)

var ErrInvalidStyle = errors.New("invalid caption style")

// StyleName is the single style every caption event is rendered with.
const StyleName = "Default"

const (
	borderOutline = 1
	borderBox     = 4
)

var styleFields = []string{
	"Name", "Fontname", "Fontsize",
	"PrimaryColour", "SecondaryColour", "OutlineColour", "BackColour",
	"Bold", "Italic", "Underline", "StrikeOut",
	"ScaleX", "ScaleY", "Spacing", "Angle",
	"BorderStyle", "Outline", "Shadow", "Alignment",
	"MarginL", "MarginR", "MarginV", "Encoding",
}

// DefaultStyle is applied underneath caller options.
func DefaultStyle() types.CaptionStyleOptions {
	return types.CaptionStyleOptions{
		Font:         "Arial",
		FontSize:     20,
		PrimaryColor: "FFFFFF",
		OutlineColor: "000000",
		Align:        types.AlignCenter,
		Vertical:     types.PositionBottom,
	}
}

// Compile renders opts as a V4+ Styles format/style line pair plus an
// optional \pos override for event text.
func Compile(opts types.CaptionStyleOptions) (types.CompiledCaptionStyle, error) {
	def := DefaultStyle()
	if opts.Font == "" {
		opts.Font = def.Font
	}
	if opts.FontSize == 0 {
		opts.FontSize = def.FontSize
	}
	if opts.FontSize < 0 {
		return types.CompiledCaptionStyle{}, fmt.Errorf("%w: font size %d", ErrInvalidStyle, opts.FontSize)
	}
	if opts.Outline < 0 {
		return types.CompiledCaptionStyle{}, fmt.Errorf("%w: outline %d", ErrInvalidStyle, opts.Outline)
	}
	if strings.ContainsAny(opts.Font, ",\n\r") {
		return types.CompiledCaptionStyle{}, fmt.Errorf("%w: font name %q", ErrInvalidStyle, opts.Font)
	}
	if opts.PrimaryColor == "" {
		opts.PrimaryColor = def.PrimaryColor
	}
	if opts.OutlineColor == "" {
		opts.OutlineColor = def.OutlineColor
	}

	primary, err := HexToNative(opts.PrimaryColor)
	if err != nil {
		return types.CompiledCaptionStyle{}, fmt.Errorf("%w: primary: %v", ErrInvalidStyle, err)
	}
	outline, err := HexToNative(opts.OutlineColor)
	if err != nil {
		return types.CompiledCaptionStyle{}, fmt.Errorf("%w: outline: %v", ErrInvalidStyle, err)
	}
	back := "&H00000000"
	border := borderOutline
	if opts.BackgroundColor != "" {
		back, err = HexToNative(opts.BackgroundColor)
		if err != nil {
			return types.CompiledCaptionStyle{}, fmt.Errorf("%w: background: %v", ErrInvalidStyle, err)
		}
		border = borderBox
	}
	align, err := alignment(opts.Align, opts.Vertical)
	if err != nil {
		return types.CompiledCaptionStyle{}, err
	}

	values := map[string]string{
		"Name":            StyleName,
		"Fontname":        opts.Font,
		"Fontsize":        strconv.Itoa(opts.FontSize),
		"PrimaryColour":   primary,
		"SecondaryColour": "&H00FFFF",
		"OutlineColour":   outline,
		"BackColour":      back,
		"Bold":            flag(opts.Bold),
		"Italic":          flag(opts.Italic),
		"Underline":       flag(opts.Underline),
		"StrikeOut":       flag(false),
		"ScaleX":          "100",
		"ScaleY":          "100",
		"Spacing":         "0",
		"Angle":           "0",
		"BorderStyle":     strconv.Itoa(border),
		"Outline":         strconv.Itoa(opts.Outline),
		"Shadow":          "0",
		"Alignment":       strconv.Itoa(align),
		"MarginL":         "10",
		"MarginR":         "10",
		"MarginV":         "10",
		"Encoding":        "1",
	}

	fields := make([]string, 0, len(styleFields))
	vals := make([]string, 0, len(styleFields))
	for _, f := range styleFields {
		// Zero outline leaves width and colour to the renderer.
		if opts.Outline == 0 && (f == "OutlineColour" || f == "Outline") {
			continue
		}
		fields = append(fields, f)
		vals = append(vals, values[f])
	}

	out := types.CompiledCaptionStyle{
		FormatLine: "Format: " + strings.Join(fields, ", "),
		StyleLine:  "Style: " + strings.Join(vals, ","),
	}
	if opts.Position != nil {
		out.PositionOverride = fmt.Sprintf("\\pos(%d,%d)", opts.Position.X, opts.Position.Y)
	}
	return out, nil
}

// alignment maps to numpad codes: bottom row 1-3, top row 7-9.
func alignment(h types.HorizontalAlign, v types.VerticalPosition) (int, error) {
	col := 2
	switch h {
	case types.AlignLeft:
		col = 1
	case types.AlignCenter, "":
	case types.AlignRight:
		col = 3
	default:
		return 0, fmt.Errorf("%w: text align %q", ErrInvalidStyle, h)
	}
	switch v {
	case types.PositionBottom, "":
		return col, nil
	case types.PositionTop:
		return col + 6, nil
	default:
		return 0, fmt.Errorf("%w: vertical position %q", ErrInvalidStyle, v)
	}
}

func flag(b bool) string {
	if b {
		return "-1"
	}
	return "0"
}
