package surfacegen

import (
	"errors"
	"fmt"
	"runtime"

	"go.uber.org/zap"

	"bivssm/pkg/sampling"
	"bivssm/pkg/ssm"
)

// ErrOutput reports an output directory that cannot be used or instances
// that could not be written.
var ErrOutput = errors.New("output error")

// Format selects the mesh file format of generated instances.
type Format string

const (
	// FormatVTK writes legacy ASCII VTK with the reference mesh's attributes
	FormatVTK Format = "vtk"
	// FormatSTL writes binary STL with the tag code in each facet attribute
	FormatSTL Format = "stl"
)

// ParseFormat converts a format name into a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatVTK, FormatSTL:
		return Format(s), nil
	}
	return "", fmt.Errorf("unknown output format %q (want vtk or stl)", s)
}

// Params holds configuration parameters for a generation run
type Params struct {
	// InputDir holds the shape model artifact and the reference mesh
	InputDir string

	// Model overrides the file and tag array names inside InputDir
	Model ssm.Options

	// OutputDir receives one mesh per instance
	OutputDir string

	// CreateOutputDir creates OutputDir when it does not exist
	CreateOutputDir bool

	// Count is the number of instances to generate
	Count int

	// Components is the number of leading modes to sample, 0 for all
	Components int

	// Bound limits each coefficient
	Bound sampling.Bound

	// Seed drives the normal draws
	Seed uint64

	// Workers is the number of instances reconstructed and written in
	// parallel, 0 for one per CPU
	Workers int

	// Format of the written meshes, empty for vtk
	Format Format

	// Manifest writes manifest.yaml describing the run
	Manifest bool

	// Catalog records the run in an SQLite database inside OutputDir
	Catalog bool

	// Plots writes coefficient histograms and projection previews
	Plots bool

	// Logger receives progress, nil for the package logger
	Logger *zap.Logger
}

func (p *Params) validate() error {
	if p.InputDir == "" {
		return fmt.Errorf("%w: input directory is required", ssm.ErrNotFound)
	}
	if p.OutputDir == "" {
		return fmt.Errorf("%w: output directory is required", ErrOutput)
	}
	if p.Count < 0 {
		return fmt.Errorf("%w: count %d must not be negative", sampling.ErrInvalidParameter, p.Count)
	}
	if p.Components < 0 {
		return fmt.Errorf("%w: components %d must not be negative", sampling.ErrInvalidParameter, p.Components)
	}
	if p.Workers < 0 {
		return fmt.Errorf("%w: workers %d must not be negative", sampling.ErrInvalidParameter, p.Workers)
	}
	if err := p.Bound.Validate(); err != nil {
		return err
	}
	if p.Format == "" {
		p.Format = FormatVTK
	}
	if _, err := ParseFormat(string(p.Format)); err != nil {
		return fmt.Errorf("%w: %w", sampling.ErrInvalidParameter, err)
	}
	if p.Workers == 0 {
		p.Workers = runtime.NumCPU()
	}
	return nil
}
