// Package surfacegen drives a batch of synthetic mesh generation: it loads a
// shape model, draws reproducible coefficient vectors and writes one tagged
// surface mesh per draw.
package surfacegen

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bivssm/internal/logger"
	"bivssm/internal/models"
	"bivssm/pkg/catalog"
	"bivssm/pkg/reconstruction"
	"bivssm/pkg/sampling"
	"bivssm/pkg/ssm"
	"bivssm/pkg/stl"
	"bivssm/pkg/visualization"
	"bivssm/pkg/vtk"
)

// histogramModes is how many leading modes get a coefficient histogram
const histogramModes = 3

// Result summarises a run.
type Result struct {
	// RunID identifies the run in the manifest and catalog
	RunID string

	// Components is the number of modes sampled
	Components int

	// Files holds the written path of each instance by index, empty where
	// the write failed
	Files []string

	// Coefficients holds every drawn vector by index
	Coefficients [][]float64

	// RetainedVariance is the variance fraction explained by the sampled modes
	RetainedVariance float64

	// Extras lists manifest, catalog and plot files
	Extras []string

	// Elapsed is the wall time of the run
	Elapsed time.Duration
}

// Generator holds the loaded state of one run
type Generator struct {
	params  Params
	log     *zap.Logger
	model   *ssm.ShapeModel
	recon   *reconstruction.Reconstructor
	sampler *sampling.Sampler
	runID   string
}

// instanceResult is what a worker reports for one instance
type instanceResult struct {
	index int
	inst  *models.Instance
	path  string
	rms   float64
	err   error
}

// Generate runs a complete batch. Parameters and the model are checked, then
// the output directory, before any coefficient is drawn. Failed instance
// writes do not stop the batch; they are returned together wrapped in
// ErrOutput alongside the partial result.
func Generate(params Params) (*Result, error) {
	g, err := NewGenerator(params)
	if err != nil {
		return nil, err
	}
	return g.Run()
}

// NewGenerator validates params, loads the model and prepares the output
// directory.
func NewGenerator(params Params) (*Generator, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	log := params.Logger
	if log == nil {
		log = logger.Log
	}

	model, err := ssm.Load(params.InputDir, params.Model)
	if err != nil {
		return nil, err
	}
	log.Info("Loaded shape model",
		zap.String("dir", params.InputDir),
		zap.Int("vertices", model.NumVertices()),
		zap.Int("modes", model.NumModes()),
		zap.Stringer("tags", model.Topology().TagLocation))

	k := params.Components
	if k == 0 {
		k = model.NumModes()
	}
	sampler, err := sampling.NewSampler(k, model.NumModes(), params.Bound, params.Seed)
	if err != nil {
		return nil, err
	}

	if params.Format == FormatSTL {
		ref := model.Topology().Reference
		for c := range ref.Cells {
			if !ref.IsTriangle(c) {
				return nil, fmt.Errorf("%w: cell %d: %w", ErrOutput, c, stl.ErrNotTriangle)
			}
		}
	}

	if err := prepareOutputDir(params.OutputDir, params.CreateOutputDir); err != nil {
		return nil, err
	}

	return &Generator{
		params:  params,
		log:     log,
		model:   model,
		recon:   reconstruction.NewReconstructor(model),
		sampler: sampler,
		runID:   uuid.NewString(),
	}, nil
}

// Model returns the loaded shape model.
func (g *Generator) Model() *ssm.ShapeModel {
	return g.model
}

// Run draws every coefficient vector, then reconstructs and writes the
// instances on the worker pool.
func (g *Generator) Run() (*Result, error) {
	start := time.Now()
	n := g.params.Count
	k := g.sampler.K()

	res := &Result{
		RunID:            g.runID,
		Components:       k,
		Files:            make([]string, n),
		RetainedVariance: g.model.RetainedVariance(k),
	}
	if n == 0 {
		g.log.Info("Nothing to generate", zap.Int("count", 0))
		return res, nil
	}

	g.log.Info("Sampling shape model",
		zap.String("run", g.runID),
		zap.Int("count", n),
		zap.Int("components", k),
		zap.Stringer("bound", g.sampler.Bound()),
		zap.Uint64("seed", g.params.Seed),
		zap.Float64("retainedVariance", res.RetainedVariance))

	// all draws come from one sequential stream so the output does not
	// depend on the worker count
	res.Coefficients = g.sampler.DrawN(n)

	var errs []error
	cat, err := g.openCatalog(n, k)
	if err != nil {
		errs = append(errs, err)
	}
	if cat != nil {
		defer cat.Close()
		res.Extras = append(res.Extras, filepath.Join(g.params.OutputDir, catalog.FileName))
	}

	jobs := make(chan int)
	resultChan := make(chan instanceResult)
	for w := 0; w < min(g.params.Workers, n); w++ {
		go func() {
			for i := range jobs {
				resultChan <- g.build(i, n, res.Coefficients[i])
			}
		}()
	}
	go func() {
		for i := 0; i < n; i++ {
			jobs <- i
		}
		close(jobs)
	}()

	entries := make([]ManifestInstance, n)
	var preview *models.Instance
	for completed := 0; completed < n; completed++ {
		r := <-resultChan
		if r.err != nil {
			g.log.Warn("Instance failed", zap.Int("index", r.index), zap.Error(r.err))
			errs = append(errs, r.err)
			continue
		}
		res.Files[r.index] = r.path
		entries[r.index] = ManifestInstance{
			Index:           r.index,
			File:            filepath.Base(r.path),
			DisplacementRMS: r.rms,
			Coefficients:    r.inst.Coefficients,
		}
		if preview == nil || r.index < preview.Index {
			preview = r.inst
		}
		if cat != nil {
			err := cat.RecordInstance(catalog.Entry{
				RunID:           g.runID,
				Index:           r.index,
				File:            filepath.Base(r.path),
				Coefficients:    r.inst.Coefficients,
				DisplacementRMS: r.rms,
			})
			if err != nil {
				errs = append(errs, fmt.Errorf("failed to catalog instance %d: %w", r.index, err))
			}
		}
		g.log.Debug("Wrote instance",
			zap.Int("index", r.index),
			zap.String("file", r.path),
			zap.Float64("displacementRMS", r.rms),
			zap.Int("done", completed+1),
			zap.Int("total", n))
	}

	if g.params.Manifest {
		path, err := g.writeManifest(entries, res)
		if err != nil {
			errs = append(errs, err)
		} else {
			res.Extras = append(res.Extras, path)
		}
	}
	if g.params.Plots {
		paths, err := g.writePlots(res.Coefficients, preview)
		res.Extras = append(res.Extras, paths...)
		if err != nil {
			errs = append(errs, err)
		}
	}

	res.Elapsed = time.Since(start)
	written := 0
	for _, f := range res.Files {
		if f != "" {
			written++
		}
	}
	g.log.Info("Generation finished",
		zap.String("run", g.runID),
		zap.Int("written", written),
		zap.Int("failed", n-written),
		zap.Duration("elapsed", res.Elapsed))

	if len(errs) > 0 {
		return res, fmt.Errorf("%w: %d of %d instances written: %w", ErrOutput, written, n, errors.Join(errs...))
	}
	return res, nil
}

// build reconstructs and writes instance i
func (g *Generator) build(i, n int, coeffs []float64) instanceResult {
	inst, err := g.recon.Instance(i, coeffs)
	if err != nil {
		return instanceResult{index: i, err: err}
	}
	path := instancePath(g.params.OutputDir, i, n, g.params.Format)
	if err := writeInstance(path, inst, g.params.Format); err != nil {
		return instanceResult{index: i, err: fmt.Errorf("instance %d: %w", i, err)}
	}
	return instanceResult{
		index: i,
		inst:  inst,
		path:  path,
		rms:   reconstruction.DisplacementRMS(g.model, inst),
	}
}

func writeInstance(path string, inst *models.Instance, format Format) error {
	switch format {
	case FormatSTL:
		triangles, err := stl.FromInstance(inst)
		if err != nil {
			return err
		}
		return stl.SaveToSTL(path, triangles)
	default:
		return vtk.WriteFile(path, inst.Mesh())
	}
}

func (g *Generator) openCatalog(n, k int) (*catalog.DB, error) {
	if !g.params.Catalog {
		return nil, nil
	}
	cat, err := catalog.Open(filepath.Join(g.params.OutputDir, catalog.FileName))
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	err = cat.RecordRun(catalog.Run{
		ID:         g.runID,
		Seed:       g.params.Seed,
		Components: k,
		Bound:      g.sampler.Bound().String(),
		Count:      n,
		Created:    time.Now().UTC(),
	})
	if err != nil {
		cat.Close()
		return nil, fmt.Errorf("failed to record run: %w", err)
	}
	return cat, nil
}

func (g *Generator) writeManifest(entries []ManifestInstance, res *Result) (string, error) {
	written := make([]ManifestInstance, 0, len(entries))
	for i, e := range entries {
		if res.Files[i] != "" {
			written = append(written, e)
		}
	}
	b := g.sampler.Bound()
	m := &Manifest{
		RunID:      g.runID,
		Created:    time.Now().UTC(),
		Seed:       g.params.Seed,
		Components: res.Components,
		Boundary:   b.Max,
		Policy:     b.Policy,
		Format:     g.params.Format,
		Count:      g.params.Count,
		Model: ManifestModel{
			Dir:              g.params.InputDir,
			Vertices:         g.model.NumVertices(),
			Modes:            g.model.NumModes(),
			RetainedVariance: res.RetainedVariance,
		},
		Instances: written,
	}
	path := filepath.Join(g.params.OutputDir, ManifestFile)
	if err := WriteManifest(path, m); err != nil {
		return "", err
	}
	return path, nil
}

func (g *Generator) writePlots(draws [][]float64, preview *models.Instance) ([]string, error) {
	paths, err := visualization.SaveCoefficientHistograms(draws, histogramModes, g.params.OutputDir)
	if err != nil {
		return paths, fmt.Errorf("failed to plot coefficients: %w", err)
	}
	if preview == nil {
		return paths, nil
	}
	more, err := visualization.NewViewer(preview).SaveProjections(g.params.OutputDir, "preview")
	paths = append(paths, more...)
	if err != nil {
		return paths, fmt.Errorf("failed to plot preview: %w", err)
	}
	return paths, nil
}
