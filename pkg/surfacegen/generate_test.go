package surfacegen

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"bivssm/pkg/catalog"
	"bivssm/pkg/reconstruction"
	"bivssm/pkg/sampling"
	"bivssm/pkg/ssm"
	"bivssm/pkg/ssm/ssmtest"
	"bivssm/pkg/stl"
	"bivssm/pkg/vtk"
)

func modelDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, ssmtest.WriteDir(dir, ssmtest.TetraArtifact(), ssmtest.TetraMesh()))
	return dir
}

func testParams(t *testing.T, in string) Params {
	t.Helper()
	return Params{
		InputDir:  in,
		OutputDir: t.TempDir(),
		Count:     12,
		Bound:     sampling.Bound{Max: 3, Policy: sampling.PolicyClip},
		Seed:      7,
		Workers:   2,
		Logger:    zaptest.NewLogger(t),
	}
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestInstanceName(t *testing.T) {
	tests := []struct {
		i, n   int
		format Format
		want   string
	}{
		{0, 1, FormatVTK, "synthetic0.vtk"},
		{9, 10, FormatVTK, "synthetic09.vtk"},
		{42, 100, FormatSTL, "synthetic042.stl"},
		{999, 1000, FormatVTK, "synthetic0999.vtk"},
		{3, 9, FormatVTK, "synthetic3.vtk"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, InstanceName(tt.i, tt.n, tt.format))
	}
}

func TestGenerateWritesEveryInstance(t *testing.T) {
	p := testParams(t, modelDir(t))

	res, err := Generate(p)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Components)
	assert.InDelta(t, 1.0, res.RetainedVariance, 1e-12)
	require.Len(t, res.Files, 12)
	require.Len(t, res.Coefficients, 12)

	for i, f := range res.Files {
		assert.Equal(t, filepath.Join(p.OutputDir, "synthetic"+pad(i)+".vtk"), f)
		m, err := vtk.ReadFile(f)
		require.NoError(t, err)
		assert.Equal(t, 4, m.NumPoints())
		// tags and connectivity are carried over from the reference mesh
		require.NotNil(t, m.PointArray(ssm.DefaultTagArray))
		assert.Equal(t, []float64{1, 2, 3, 5}, m.PointArray(ssm.DefaultTagArray).Values)
		assert.Equal(t, ssmtest.TetraMesh().Cells, m.Cells)
	}
	for _, c := range res.Coefficients {
		for _, v := range c {
			assert.LessOrEqual(t, v, 3.0)
			assert.GreaterOrEqual(t, v, -3.0)
		}
	}
	assert.Contains(t, listDir(t, p.OutputDir), "synthetic00.vtk")
}

func pad(i int) string {
	s := strconv.Itoa(i)
	if len(s) < 2 {
		s = "0" + s
	}
	return s
}

func TestGenerateIsDeterministicAcrossWorkerCounts(t *testing.T) {
	in := modelDir(t)

	var outputs []string
	for _, workers := range []int{1, 3, 8} {
		p := testParams(t, in)
		p.Workers = workers
		_, err := Generate(p)
		require.NoError(t, err)
		outputs = append(outputs, p.OutputDir)
	}

	for i := 0; i < 12; i++ {
		name := InstanceName(i, 12, FormatVTK)
		want, err := os.ReadFile(filepath.Join(outputs[0], name))
		require.NoError(t, err)
		for _, dir := range outputs[1:] {
			got, err := os.ReadFile(filepath.Join(dir, name))
			require.NoError(t, err)
			assert.True(t, bytes.Equal(want, got), "instance %d differs in %s", i, dir)
		}
	}
}

func TestGenerateSeedChangesOutput(t *testing.T) {
	in := modelDir(t)
	a := testParams(t, in)
	b := testParams(t, in)
	b.Seed = a.Seed + 1

	ra, err := Generate(a)
	require.NoError(t, err)
	rb, err := Generate(b)
	require.NoError(t, err)
	assert.NotEqual(t, ra.Coefficients, rb.Coefficients)
}

func TestGenerateZeroCount(t *testing.T) {
	p := testParams(t, modelDir(t))
	p.Count = 0
	p.Manifest = true
	p.Catalog = true
	p.Plots = true

	res, err := Generate(p)
	require.NoError(t, err)
	assert.Empty(t, res.Files)
	assert.Empty(t, listDir(t, p.OutputDir))
}

func TestGenerateTooManyComponents(t *testing.T) {
	p := testParams(t, modelDir(t))
	p.Components = 3

	_, err := Generate(p)
	assert.ErrorIs(t, err, sampling.ErrInvalidParameter)
	assert.Empty(t, listDir(t, p.OutputDir))
}

func TestGenerateInvalidParameters(t *testing.T) {
	in := modelDir(t)
	tests := []struct {
		name   string
		modify func(*Params)
	}{
		{"negative count", func(p *Params) { p.Count = -1 }},
		{"negative components", func(p *Params) { p.Components = -2 }},
		{"zero clip bound", func(p *Params) { p.Bound.Max = 0 }},
		{"negative resample bound", func(p *Params) { p.Bound = sampling.Bound{Max: -1, Policy: sampling.PolicyResample} }},
		{"unknown format", func(p *Params) { p.Format = "obj" }},
		{"negative workers", func(p *Params) { p.Workers = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testParams(t, in)
			tt.modify(&p)
			_, err := Generate(p)
			assert.ErrorIs(t, err, sampling.ErrInvalidParameter)
		})
	}
}

func TestGenerateMissingInput(t *testing.T) {
	p := testParams(t, filepath.Join(t.TempDir(), "absent"))
	_, err := Generate(p)
	assert.ErrorIs(t, err, ssm.ErrNotFound)

	empty := testParams(t, t.TempDir())
	_, err = Generate(empty)
	assert.ErrorIs(t, err, ssm.ErrNotFound)
}

func TestGenerateOutputDirectory(t *testing.T) {
	in := modelDir(t)

	t.Run("missing", func(t *testing.T) {
		p := testParams(t, in)
		p.OutputDir = filepath.Join(p.OutputDir, "absent")
		_, err := Generate(p)
		assert.ErrorIs(t, err, ErrOutput)
		assert.NoDirExists(t, p.OutputDir)
	})

	t.Run("created on request", func(t *testing.T) {
		p := testParams(t, in)
		p.OutputDir = filepath.Join(p.OutputDir, "nested", "out")
		p.CreateOutputDir = true
		res, err := Generate(p)
		require.NoError(t, err)
		assert.FileExists(t, res.Files[0])
	})

	t.Run("regular file", func(t *testing.T) {
		p := testParams(t, in)
		file := filepath.Join(p.OutputDir, "taken")
		require.NoError(t, os.WriteFile(file, nil, 0644))
		p.OutputDir = file
		_, err := Generate(p)
		assert.ErrorIs(t, err, ErrOutput)
	})

	t.Run("read only", func(t *testing.T) {
		if os.Geteuid() == 0 {
			t.Skip("permissions are not enforced for root")
		}
		p := testParams(t, in)
		require.NoError(t, os.Chmod(p.OutputDir, 0555))
		t.Cleanup(func() { os.Chmod(p.OutputDir, 0755) })
		_, err := Generate(p)
		assert.ErrorIs(t, err, ErrOutput)
		assert.Empty(t, listDir(t, p.OutputDir))
	})
}

func TestGenerateSTL(t *testing.T) {
	p := testParams(t, modelDir(t))
	p.Count = 3
	p.Format = FormatSTL

	res, err := Generate(p)
	require.NoError(t, err)
	require.Len(t, res.Files, 3)

	f, err := os.Open(res.Files[1])
	require.NoError(t, err)
	defer f.Close()
	triangles, err := stl.ReadSTL(f)
	require.NoError(t, err)
	require.Len(t, triangles, 4)
	// cell 0 has three distinct vertex tags so the first vertex decides
	assert.Equal(t, uint16(1), triangles[0].Attribute)
}

func TestGenerateSTLRejectsQuads(t *testing.T) {
	in := t.TempDir()
	mesh := ssmtest.TetraMesh()
	mesh.Cells = [][]int{{0, 1, 2, 3}}
	mesh.CellTypes = []int{vtk.CellQuad}
	require.NoError(t, ssmtest.WriteDir(in, ssmtest.TetraArtifact(), mesh))

	p := testParams(t, in)
	p.Format = FormatSTL
	_, err := Generate(p)
	assert.ErrorIs(t, err, ErrOutput)
	assert.ErrorIs(t, err, stl.ErrNotTriangle)
	assert.Empty(t, listDir(t, p.OutputDir))
}

func TestManifestReproducesInstances(t *testing.T) {
	in := modelDir(t)
	p := testParams(t, in)
	p.Count = 5
	p.Components = 1
	p.Manifest = true

	res, err := Generate(p)
	require.NoError(t, err)

	m, err := ReadManifest(p.OutputDir)
	require.NoError(t, err)
	assert.Equal(t, res.RunID, m.RunID)
	assert.Equal(t, uint64(7), m.Seed)
	assert.Equal(t, 1, m.Components)
	assert.Equal(t, p.Bound, m.Bound())
	assert.Equal(t, 4, m.Model.Vertices)
	assert.Equal(t, 2, m.Model.Modes)
	assert.InDelta(t, 0.8, m.Model.RetainedVariance, 1e-12)
	require.Len(t, m.Instances, 5)

	model, err := ssm.Load(in, ssm.Options{})
	require.NoError(t, err)
	recon := reconstruction.NewReconstructor(model)
	for _, e := range m.Instances {
		inst, err := recon.Instance(e.Index, e.Coefficients)
		require.NoError(t, err)

		var buf bytes.Buffer
		require.NoError(t, vtk.Write(&buf, inst.Mesh()))
		written, err := os.ReadFile(filepath.Join(p.OutputDir, e.File))
		require.NoError(t, err)
		assert.Equal(t, buf.String(), string(written), "instance %d", e.Index)
		assert.InDelta(t, reconstruction.DisplacementRMS(model, inst), e.DisplacementRMS, 1e-12)
	}
}

func TestCatalogRecordsRun(t *testing.T) {
	p := testParams(t, modelDir(t))
	p.Count = 4
	p.Catalog = true

	res, err := Generate(p)
	require.NoError(t, err)
	assert.Contains(t, res.Extras, filepath.Join(p.OutputDir, catalog.FileName))

	db, err := catalog.Open(filepath.Join(p.OutputDir, catalog.FileName))
	require.NoError(t, err)
	defer db.Close()

	entries, err := db.Instances(res.RunID)
	require.NoError(t, err)
	require.Len(t, entries, 4)
	for i, e := range entries {
		assert.Equal(t, i, e.Index)
		assert.Equal(t, filepath.Base(res.Files[i]), e.File)
		assert.Equal(t, res.Coefficients[i], e.Coefficients)
	}
}

func TestGeneratePlots(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping image rendering in short mode")
	}
	p := testParams(t, modelDir(t))
	p.Count = 20
	p.Plots = true

	res, err := Generate(p)
	require.NoError(t, err)
	// two modes of histograms plus three projections
	assert.Len(t, res.Extras, 5)
	for _, f := range res.Extras {
		assert.FileExists(t, f)
	}
}

func TestPerInstanceFailuresAreCollected(t *testing.T) {
	p := testParams(t, modelDir(t))
	p.Count = 4
	g, err := NewGenerator(p)
	require.NoError(t, err)

	// a directory in place of an instance file makes that write fail
	blocked := filepath.Join(p.OutputDir, InstanceName(2, 4, FormatVTK))
	require.NoError(t, os.Mkdir(blocked, 0755))

	res, err := g.Run()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOutput))
	assert.Empty(t, res.Files[2])
	for _, i := range []int{0, 1, 3} {
		assert.FileExists(t, res.Files[i])
	}
}
