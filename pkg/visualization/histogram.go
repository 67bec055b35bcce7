package visualization

import (
	"fmt"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// histogramBins is the number of bins per coefficient histogram
const histogramBins = 30

// CoefficientHistogram plots the distribution of coefficient mode across
// all draws.
func CoefficientHistogram(draws [][]float64, mode int) (*plot.Plot, error) {
	values := make(plotter.Values, 0, len(draws))
	for _, c := range draws {
		if mode < len(c) {
			values = append(values, c[mode])
		}
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("no coefficients for mode %d", mode)
	}

	h, err := plotter.NewHist(values, histogramBins)
	if err != nil {
		return nil, err
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Mode %d coefficients (n=%d)", mode+1, len(values))
	p.X.Label.Text = "standard deviations"
	p.Y.Label.Text = "count"
	p.Add(h)
	return p, nil
}

// SaveCoefficientHistograms writes one PNG per leading mode, up to modes,
// into dir and returns the written paths.
func SaveCoefficientHistograms(draws [][]float64, modes int, dir string) ([]string, error) {
	if len(draws) == 0 {
		return nil, nil
	}
	if modes > len(draws[0]) {
		modes = len(draws[0])
	}

	var paths []string
	for m := 0; m < modes; m++ {
		p, err := CoefficientHistogram(draws, m)
		if err != nil {
			return paths, err
		}
		path := filepath.Join(dir, fmt.Sprintf("coefficients_mode%02d.png", m+1))
		if err := p.Save(5*vg.Inch, 3.5*vg.Inch, path); err != nil {
			return paths, fmt.Errorf("failed to save histogram: %w", err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
