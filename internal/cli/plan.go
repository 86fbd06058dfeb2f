package cli

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/forPelevin/clipcraft/internal/domain/geometry"
	"github.com/forPelevin/clipcraft/internal/domain/timecode"
	"github.com/forPelevin/clipcraft/internal/types"
	"gopkg.in/yaml.v3"
)

// planFile is the on-disk request. JSON is accepted too since it is valid YAML.
type planFile struct {
	Aspect   string         `yaml:"aspect"`
	Crop     *types.CropBox `yaml:"crop"`
	Segments []planSpan     `yaml:"segments"`
	Groups   []planGroup    `yaml:"groups"`
}

type planSpan struct {
	Start string `yaml:"start_time"`
	End   string `yaml:"end_time"`
	Title string `yaml:"title"`
}

type planGroup struct {
	Title string     `yaml:"title"`
	Parts []planSpan `yaml:"parts"`
}

type plan struct {
	Groups      []types.SegmentGroup
	Titles      []string
	Aspect      float64
	AspectLabel string
	Crop        *types.CropBox
}

func loadPlan(path string) (planFile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return planFile{}, err
	}
	var pf planFile
	if err := yaml.Unmarshal(b, &pf); err != nil {
		return planFile{}, fmt.Errorf("parse plan %s: %w", path, err)
	}
	return pf, nil
}

// resolve turns the raw plan into groups. aspectOverride wins over the plan's
// aspect; merge folds every segment and group into a single clip.
func (pf planFile) resolve(aspectOverride string, merge bool) (plan, error) {
	var p plan
	if len(pf.Segments) == 0 && len(pf.Groups) == 0 {
		return p, errors.New("plan lists no segments")
	}
	for i, s := range pf.Segments {
		span, err := s.span()
		if err != nil {
			return p, fmt.Errorf("segment %d: %w", i+1, err)
		}
		p.Groups = append(p.Groups, types.SegmentGroup{Parts: []types.TimeSpan{span}})
		p.Titles = append(p.Titles, s.Title)
	}
	for i, g := range pf.Groups {
		if len(g.Parts) == 0 {
			return p, fmt.Errorf("group %d: no parts", i+1)
		}
		var sg types.SegmentGroup
		for j, s := range g.Parts {
			span, err := s.span()
			if err != nil {
				return p, fmt.Errorf("group %d part %d: %w", i+1, j+1, err)
			}
			sg.Parts = append(sg.Parts, span)
		}
		p.Groups = append(p.Groups, sg)
		p.Titles = append(p.Titles, g.Title)
	}
	if merge && len(p.Groups) > 1 {
		var all types.SegmentGroup
		for _, g := range p.Groups {
			all.Parts = append(all.Parts, g.Parts...)
		}
		p.Groups = []types.SegmentGroup{all}
		p.Titles = nil
	}
	// Plans may list parts in any order; clips always play in source order.
	for i, g := range p.Groups {
		p.Groups[i] = g.Sorted()
	}

	label := strings.TrimSpace(aspectOverride)
	if label == "" {
		label = strings.TrimSpace(pf.Aspect)
	}
	if label != "" {
		a, err := geometry.ParseAspect(label)
		if err != nil {
			return p, err
		}
		p.Aspect = a
		p.AspectLabel = label
	} else {
		p.Aspect = geometry.DefaultAspect
		p.AspectLabel = "9:16"
	}
	p.Crop = pf.Crop
	return p, nil
}

func (s planSpan) span() (types.TimeSpan, error) {
	start, err := timecode.Parse(s.Start)
	if err != nil {
		return types.TimeSpan{}, fmt.Errorf("start_time: %w", err)
	}
	end, err := timecode.Parse(s.End)
	if err != nil {
		return types.TimeSpan{}, fmt.Errorf("end_time: %w", err)
	}
	span := types.TimeSpan{Start: start, End: end}
	return span, span.Validate()
}

// parseOffset accepts either a timecode or plain seconds.
func parseOffset(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if strings.Contains(s, ":") {
		return timecode.Parse(s)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid offset %q", s)
	}
	return v, nil
}

func loadStyle(path string) (types.CaptionStyleOptions, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return types.CaptionStyleOptions{}, err
	}
	var s types.CaptionStyleOptions
	if err := yaml.Unmarshal(b, &s); err != nil {
		return types.CaptionStyleOptions{}, fmt.Errorf("parse style %s: %w", path, err)
	}
	return s, nil
}
