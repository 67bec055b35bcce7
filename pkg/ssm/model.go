// Package ssm holds the statistical shape model of the biventricular surface:
// the mean shape, its ranked modes of variation and their variances, together
// with the reference mesh topology and anatomical tags every sample shares.
package ssm

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"bivssm/internal/models"
)

var (
	// ErrNotFound is returned when the model directory or one of its artifacts is missing.
	ErrNotFound = errors.New("shape model artifact not found")

	// ErrMalformedModel is returned when the artifacts are unreadable or inconsistent.
	ErrMalformedModel = errors.New("malformed shape model")
)

// ShapeModel is an immutable shape model. It is safe for concurrent use.
type ShapeModel struct {
	mean      *mat.VecDense
	modes     *mat.Dense
	variances []float64
	stddevs   []float64
	topology  *models.Topology
}

// New validates the parts of a shape model and assembles it.
// mean holds 3V coordinates, modes is K×3V with one mode per row ranked by
// descending variance, and variances holds the K matching variances. The
// arguments are retained; callers must not modify them afterwards.
func New(mean *mat.VecDense, modes *mat.Dense, variances *mat.VecDense, topo *models.Topology) (*ShapeModel, error) {
	if mean == nil || modes == nil || variances == nil || topo == nil || topo.Reference == nil {
		return nil, fmt.Errorf("%w: missing component", ErrMalformedModel)
	}

	d := mean.Len()
	if d == 0 || d%3 != 0 {
		return nil, fmt.Errorf("%w: mean has %d coordinates, not a positive multiple of 3", ErrMalformedModel, d)
	}
	k, cols := modes.Dims()
	if cols != d {
		return nil, fmt.Errorf("%w: modes have %d entries, mean has %d", ErrMalformedModel, cols, d)
	}
	if variances.Len() != k {
		return nil, fmt.Errorf("%w: %d variances for %d modes", ErrMalformedModel, variances.Len(), k)
	}

	m := &ShapeModel{
		mean:      mean,
		modes:     modes,
		variances: make([]float64, k),
		stddevs:   make([]float64, k),
		topology:  topo,
	}
	for i := range m.variances {
		v := variances.AtVec(i)
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: variance %d is %v", ErrMalformedModel, i, v)
		}
		m.variances[i] = v
		m.stddevs[i] = math.Sqrt(v)
	}

	if n := topo.Reference.NumPoints(); n != m.NumVertices() {
		return nil, fmt.Errorf("%w: reference mesh has %d points, mean shape has %d vertices", ErrMalformedModel, n, m.NumVertices())
	}
	want := m.NumVertices()
	if topo.TagLocation == models.CellTags {
		want = topo.NumCells()
	}
	if len(topo.Tags) != want {
		return nil, fmt.Errorf("%w: %d %s tags, want %d", ErrMalformedModel, len(topo.Tags), topo.TagLocation, want)
	}
	return m, nil
}

// NumVertices returns V, the number of mesh vertices.
func (m *ShapeModel) NumVertices() int {
	return m.mean.Len() / 3
}

// NumModes returns K, the number of available modes.
func (m *ShapeModel) NumModes() int {
	k, _ := m.modes.Dims()
	return k
}

// RawMean returns the mean shape as x0 y0 z0 x1 ... The slice aliases the
// model storage and must not be modified.
func (m *ShapeModel) RawMean() []float64 {
	return m.mean.RawVector().Data[:m.mean.Len()]
}

// RawMode returns mode i as a 3V slice aliasing the model storage. It must
// not be modified.
func (m *ShapeModel) RawMode(i int) []float64 {
	return m.modes.RawRowView(i)
}

// Variance returns the variance of mode i.
func (m *ShapeModel) Variance(i int) float64 {
	return m.variances[i]
}

// StdDev returns the standard deviation of mode i.
func (m *ShapeModel) StdDev(i int) float64 {
	return m.stddevs[i]
}

// Variances returns a copy of all mode variances.
func (m *ShapeModel) Variances() []float64 {
	return append([]float64(nil), m.variances...)
}

// Topology returns the shared reference topology.
func (m *ShapeModel) Topology() *models.Topology {
	return m.topology
}

// RetainedVariance returns the fraction of total variance explained by the
// leading k modes. A model with zero total variance reports 1.
func (m *ShapeModel) RetainedVariance(k int) float64 {
	total := floats.Sum(m.variances)
	if total == 0 {
		return 1
	}
	if k > len(m.variances) {
		k = len(m.variances)
	}
	return floats.Sum(m.variances[:k]) / total
}

// ModesFor returns the smallest k whose leading modes explain at least
// fraction of the total variance.
func (m *ShapeModel) ModesFor(fraction float64) int {
	for k := 1; k <= len(m.variances); k++ {
		if m.RetainedVariance(k) >= fraction {
			return k
		}
	}
	return len(m.variances)
}
