// Package visualization renders quick-look plots of a sampling run: vertex
// projections of an instance coloured by anatomical region, and histograms
// of the drawn coefficients.
package visualization

import (
	"fmt"
	"image/color"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"bivssm/internal/models"
)

// tagColors assigns one colour per anatomical label
var tagColors = map[models.Tag]color.RGBA{
	models.LVEndocardium: {R: 214, G: 39, B: 40, A: 255},
	models.LVEpicardium:  {R: 255, G: 127, B: 14, A: 255},
	models.RVEndocardium: {R: 31, G: 119, B: 180, A: 255},
	models.RVEpicardium:  {R: 23, G: 190, B: 207, A: 255},
	models.LVSeptum:      {R: 44, G: 160, B: 44, A: 255},
}

// Viewer draws orthographic projections of one instance.
type Viewer struct {
	inst *models.Instance
}

// NewViewer creates a viewer for inst.
func NewViewer(inst *models.Instance) *Viewer {
	return &Viewer{inst: inst}
}

// planeAxes returns the coordinate indices kept when looking down axis
func planeAxes(axis string) (int, int, string, string, error) {
	switch axis {
	case "x", "X":
		return 1, 2, "y", "z", nil
	case "y", "Y":
		return 0, 2, "x", "z", nil
	case "z", "Z":
		return 0, 1, "x", "y", nil
	}
	return 0, 0, "", "", fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
}

// Projection plots the instance vertices projected along axis, one scatter
// series per anatomical region. Cell tags are spread to their vertices.
func (v *Viewer) Projection(axis string) (*plot.Plot, error) {
	a, b, la, lb, err := planeAxes(axis)
	if err != nil {
		return nil, err
	}

	series := make(map[models.Tag]plotter.XYs)
	for i, tag := range v.vertexTags() {
		p := v.inst.Vertex(i)
		series[tag] = append(series[tag], plotter.XY{X: p[a], Y: p[b]})
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("synthetic %d, view along %s", v.inst.Index, axis)
	p.X.Label.Text = la
	p.Y.Label.Text = lb

	for _, tag := range append(models.Tags, models.TagUnknown) {
		pts, ok := series[tag]
		if !ok {
			continue
		}
		s, err := plotter.NewScatter(pts)
		if err != nil {
			return nil, err
		}
		s.GlyphStyle.Shape = draw.CircleGlyph{}
		s.GlyphStyle.Radius = vg.Points(1)
		if c, ok := tagColors[tag]; ok {
			s.GlyphStyle.Color = c
		} else {
			s.GlyphStyle.Color = color.Gray{Y: 128}
		}
		p.Add(s)
		p.Legend.Add(tag.String(), s)
	}
	return p, nil
}

// SaveProjection writes the projection along axis to path. The image
// format follows the file extension.
func (v *Viewer) SaveProjection(axis, path string) error {
	p, err := v.Projection(axis)
	if err != nil {
		return err
	}
	if err := p.Save(6*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save projection: %w", err)
	}
	return nil
}

// SaveProjections writes x, y and z projections into dir as
// <prefix>_<axis>.png and returns the written paths.
func (v *Viewer) SaveProjections(dir, prefix string) ([]string, error) {
	var paths []string
	for _, axis := range []string{"x", "y", "z"} {
		path := filepath.Join(dir, fmt.Sprintf("%s_%s.png", prefix, axis))
		if err := v.SaveProjection(axis, path); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func (v *Viewer) vertexTags() []models.Tag {
	topo := v.inst.Topology
	if topo.TagLocation == models.PointTags {
		return topo.Tags
	}
	tags := make([]models.Tag, v.inst.NumVertices())
	for c, cell := range topo.Reference.Cells {
		for _, i := range cell {
			if tags[i] == models.TagUnknown {
				tags[i] = topo.Tags[c]
			}
		}
	}
	return tags
}
