// Package ssmtest builds small shape models for tests.
package ssmtest

import (
	"path/filepath"

	"gonum.org/v1/gonum/mat"

	"bivssm/pkg/ssm"
	"bivssm/pkg/vtk"
)

// TetraArtifact returns a four vertex model with two orthonormal modes and
// variances 4 and 1. Mode 0 moves every vertex along x, mode 1 along y.
func TetraArtifact() *ssm.Artifact {
	mean := []float64{
		0, 0, 0,
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	}
	modes := []float64{
		0.5, 0, 0, 0.5, 0, 0, 0.5, 0, 0, 0.5, 0, 0,
		0, 0.5, 0, 0, 0.5, 0, 0, 0.5, 0, 0, 0.5, 0,
	}
	return &ssm.Artifact{
		Components:        mat.NewDense(2, 12, modes),
		Mean:              mat.NewVecDense(12, mean),
		ExplainedVariance: mat.NewVecDense(2, []float64{4, 1}),
	}
}

// TetraMesh returns the reference surface of TetraArtifact: four triangles
// with per-vertex tags.
func TetraMesh() *vtk.Mesh {
	return &vtk.Mesh{
		Version:   "4.2",
		Title:     "mean shape",
		Dataset:   vtk.UnstructuredGrid,
		PointType: "double",
		Points:    []float64{0, 0, 0, 1, 0, 0, 0, 1, 0, 0, 0, 1},
		Cells:     [][]int{{0, 1, 2}, {0, 1, 3}, {0, 2, 3}, {1, 2, 3}},
		CellTypes: []int{vtk.CellTriangle, vtk.CellTriangle, vtk.CellTriangle, vtk.CellTriangle},
		PointData: []vtk.Array{{
			Kind:        vtk.Scalars,
			Name:        ssm.DefaultTagArray,
			DataType:    "int",
			Components:  1,
			LookupTable: "default",
			Values:      []float64{1, 2, 3, 5},
		}},
	}
}

// Tetra returns the assembled tetrahedron model.
func Tetra() *ssm.ShapeModel {
	a := TetraArtifact()
	topo, err := ssm.NewTopology(TetraMesh(), "")
	if err != nil {
		panic(err)
	}
	m, err := ssm.New(a.Mean, a.Components, a.ExplainedVariance, topo)
	if err != nil {
		panic(err)
	}
	return m
}

// WriteDir stores a and mesh in dir under the default file names.
func WriteDir(dir string, a *ssm.Artifact, mesh *vtk.Mesh) error {
	if err := ssm.WriteArtifactFile(filepath.Join(dir, ssm.ModelFile), a); err != nil {
		return err
	}
	return vtk.WriteFile(filepath.Join(dir, ssm.MeshFile), mesh)
}
