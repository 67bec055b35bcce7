package ssm_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"bivssm/internal/models"
	"bivssm/pkg/ssm"
	"bivssm/pkg/ssm/ssmtest"
	"bivssm/pkg/vtk"
)

func TestArtifactRoundTrip(t *testing.T) {
	a := ssmtest.TetraArtifact()

	var buf bytes.Buffer
	_, err := a.WriteTo(&buf)
	require.NoError(t, err)

	back, err := ssm.ReadArtifact(&buf)
	require.NoError(t, err)
	assert.True(t, mat.Equal(a.Components, back.Components))
	assert.True(t, mat.Equal(a.Mean, back.Mean))
	assert.True(t, mat.Equal(a.ExplainedVariance, back.ExplainedVariance))
}

func TestReadArtifactRejectsGarbage(t *testing.T) {
	_, err := ssm.ReadArtifact(bytes.NewReader([]byte("not a model at all")))
	assert.ErrorIs(t, err, ssm.ErrMalformedModel)

	var buf bytes.Buffer
	_, err = ssmtest.TetraArtifact().WriteTo(&buf)
	require.NoError(t, err)
	truncated := buf.Bytes()[:buf.Len()-10]
	_, err = ssm.ReadArtifact(bytes.NewReader(truncated))
	assert.ErrorIs(t, err, ssm.ErrMalformedModel)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, ssmtest.WriteDir(dir, ssmtest.TetraArtifact(), ssmtest.TetraMesh()))

	m, err := ssm.Load(dir, ssm.Options{})
	require.NoError(t, err)

	assert.Equal(t, 4, m.NumVertices())
	assert.Equal(t, 2, m.NumModes())
	assert.Equal(t, []float64{4, 1}, m.Variances())
	assert.Equal(t, 2.0, m.StdDev(0))
	assert.Equal(t, ssmtest.TetraArtifact().Mean.RawVector().Data, m.RawMean())
	assert.Len(t, m.RawMode(1), 12)

	topo := m.Topology()
	assert.Equal(t, models.PointTags, topo.TagLocation)
	assert.Equal(t, []models.Tag{models.LVEndocardium, models.LVEpicardium, models.RVEndocardium, models.LVSeptum}, topo.Tags)
	assert.Equal(t, 4, topo.NumCells())
}

func TestLoadNotFound(t *testing.T) {
	t.Run("missing directory", func(t *testing.T) {
		_, err := ssm.Load(filepath.Join(t.TempDir(), "nope"), ssm.Options{})
		assert.ErrorIs(t, err, ssm.ErrNotFound)
	})

	t.Run("missing mesh", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, ssm.WriteArtifactFile(filepath.Join(dir, ssm.ModelFile), ssmtest.TetraArtifact()))
		_, err := ssm.Load(dir, ssm.Options{})
		assert.ErrorIs(t, err, ssm.ErrNotFound)
	})

	t.Run("missing artifact", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, vtk.WriteFile(filepath.Join(dir, ssm.MeshFile), ssmtest.TetraMesh()))
		_, err := ssm.Load(dir, ssm.Options{})
		assert.ErrorIs(t, err, ssm.ErrNotFound)
	})
}

func TestLoadMalformed(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(a *ssm.Artifact, m *vtk.Mesh)
	}{
		{"variance count", func(a *ssm.Artifact, m *vtk.Mesh) {
			a.ExplainedVariance = mat.NewVecDense(3, []float64{4, 1, 1})
		}},
		{"mode length", func(a *ssm.Artifact, m *vtk.Mesh) {
			a.Components = mat.NewDense(2, 9, nil)
		}},
		{"mean not xyz", func(a *ssm.Artifact, m *vtk.Mesh) {
			a.Mean = mat.NewVecDense(11, nil)
			a.Components = mat.NewDense(2, 11, nil)
		}},
		{"negative variance", func(a *ssm.Artifact, m *vtk.Mesh) {
			a.ExplainedVariance = mat.NewVecDense(2, []float64{4, -1})
		}},
		{"mesh point count", func(a *ssm.Artifact, m *vtk.Mesh) {
			m.Points = m.Points[:9]
			m.Cells = [][]int{{0, 1, 2}}
			m.CellTypes = []int{vtk.CellTriangle}
			m.PointData[0].Values = m.PointData[0].Values[:3]
		}},
		{"no tags", func(a *ssm.Artifact, m *vtk.Mesh) {
			m.PointData = nil
		}},
		{"unknown tag", func(a *ssm.Artifact, m *vtk.Mesh) {
			m.PointData[0].Values[2] = 9
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, mesh := ssmtest.TetraArtifact(), ssmtest.TetraMesh()
			tt.mutate(a, mesh)

			dir := t.TempDir()
			require.NoError(t, ssmtest.WriteDir(dir, a, mesh))
			_, err := ssm.Load(dir, ssm.Options{})
			assert.ErrorIs(t, err, ssm.ErrMalformedModel)
		})
	}
}

func TestLoadBrokenMesh(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, ssm.WriteArtifactFile(filepath.Join(dir, ssm.ModelFile), ssmtest.TetraArtifact()))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ssm.MeshFile), []byte("garbage\n"), 0644))

	_, err := ssm.Load(dir, ssm.Options{})
	assert.ErrorIs(t, err, ssm.ErrMalformedModel)
}

func TestCellTags(t *testing.T) {
	mesh := ssmtest.TetraMesh()
	mesh.PointData = nil
	mesh.CellData = []vtk.Array{{Kind: vtk.Scalars, Name: "region", DataType: "int", Components: 1, Values: []float64{1, 2, 3, 4}}}

	topo, err := ssm.NewTopology(mesh, "region")
	require.NoError(t, err)
	assert.Equal(t, models.CellTags, topo.TagLocation)
	assert.Equal(t, models.RVEpicardium, topo.CellTag(3))
}

func TestRetainedVariance(t *testing.T) {
	m := ssmtest.Tetra()
	assert.InDelta(t, 0.8, m.RetainedVariance(1), 1e-12)
	assert.Equal(t, 1.0, m.RetainedVariance(2))
	assert.Equal(t, 1, m.ModesFor(0.8))
	assert.Equal(t, 2, m.ModesFor(0.9))
}
