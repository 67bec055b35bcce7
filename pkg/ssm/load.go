package ssm

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"bivssm/pkg/vtk"
)

const (
	// ModelFile is the default name of the shape model artifact.
	ModelFile = "SSM.bin"

	// MeshFile is the default name of the reference mesh.
	MeshFile = "mean_shape.vtk"

	// DefaultTagArray is the default name of the anatomical tag array.
	DefaultTagArray = "tags"
)

// Options names the files inside a model directory. Empty fields take the
// package defaults.
type Options struct {
	ModelFile string
	MeshFile  string
	TagArray  string
}

func (o Options) withDefaults() Options {
	if o.ModelFile == "" {
		o.ModelFile = ModelFile
	}
	if o.MeshFile == "" {
		o.MeshFile = MeshFile
	}
	if o.TagArray == "" {
		o.TagArray = DefaultTagArray
	}
	return o
}

// Load reads the shape model artifact and the reference mesh found in dir.
// Both files are checked for existence before either is parsed.
func Load(dir string, opts Options) (*ShapeModel, error) {
	opts = opts.withDefaults()

	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: input directory %s", ErrNotFound, dir)
		}
		return nil, fmt.Errorf("failed to stat input directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: input path %s is not a directory", ErrNotFound, dir)
	}

	modelPath := filepath.Join(dir, opts.ModelFile)
	meshPath := filepath.Join(dir, opts.MeshFile)
	for _, p := range []string{modelPath, meshPath} {
		info, err := os.Stat(p)
		if errors.Is(err, fs.ErrNotExist) || (err == nil && info.IsDir()) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", p, err)
		}
	}

	art, err := ReadArtifactFile(modelPath)
	if err != nil {
		return nil, err
	}

	mesh, err := vtk.ReadFile(meshPath)
	if err != nil {
		if errors.Is(err, vtk.ErrFormat) || errors.Is(err, vtk.ErrUnsupported) {
			return nil, fmt.Errorf("%w: %w", ErrMalformedModel, err)
		}
		return nil, err
	}

	topo, err := NewTopology(mesh, opts.TagArray)
	if err != nil {
		return nil, err
	}
	return New(art.Mean, art.Components, art.ExplainedVariance, topo)
}
