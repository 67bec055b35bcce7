// Package reconstruction turns coefficient vectors into mesh geometry by
// linear superposition of shape model modes on the mean shape.
package reconstruction

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"bivssm/internal/models"
	"bivssm/pkg/sampling"
	"bivssm/pkg/ssm"
)

// Reconstructor rebuilds vertex positions from coefficients. It only reads
// the shape model, so one Reconstructor can serve any number of goroutines.
type Reconstructor struct {
	model *ssm.ShapeModel
}

// NewReconstructor creates a reconstructor for model.
func NewReconstructor(model *ssm.ShapeModel) *Reconstructor {
	return &Reconstructor{model: model}
}

// Model returns the shape model being reconstructed from.
func (r *Reconstructor) Model() *ssm.ShapeModel {
	return r.model
}

// Reconstruct computes
//
//	vertices = mean + Σ_i coeffs[i] · sqrt(variance_i) · mode_i
//
// for the leading len(coeffs) modes. Modes are accumulated in rank order, so
// appending zero coefficients reproduces the shorter result exactly.
//
// Parameters:
//   - coeffs: positions along the leading modes in units of standard deviation
//
// Returns:
//   - the 3V vertex coordinates, or an error if more coefficients than modes are given
func (r *Reconstructor) Reconstruct(coeffs []float64) ([]float64, error) {
	if len(coeffs) > r.model.NumModes() {
		return nil, fmt.Errorf("%w: %d coefficients for a model with %d modes",
			sampling.ErrInvalidParameter, len(coeffs), r.model.NumModes())
	}

	vertices := make([]float64, len(r.model.RawMean()))
	copy(vertices, r.model.RawMean())
	for i, c := range coeffs {
		floats.AddScaled(vertices, c*r.model.StdDev(i), r.model.RawMode(i))
	}
	return vertices, nil
}

// Instance reconstructs coeffs into a tagged instance that shares the
// model's topology.
func (r *Reconstructor) Instance(index int, coeffs []float64) (*models.Instance, error) {
	vertices, err := r.Reconstruct(coeffs)
	if err != nil {
		return nil, err
	}
	return &models.Instance{
		Index:        index,
		Coefficients: coeffs,
		Vertices:     vertices,
		Topology:     r.model.Topology(),
	}, nil
}

// DisplacementRMS returns the root mean square distance between the
// instance vertices and the mean shape.
func DisplacementRMS(model *ssm.ShapeModel, inst *models.Instance) float64 {
	n := model.NumVertices()
	if n == 0 {
		return 0
	}
	return floats.Distance(inst.Vertices, model.RawMean(), 2) / math.Sqrt(float64(n))
}
