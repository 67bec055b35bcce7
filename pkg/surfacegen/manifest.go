package surfacegen

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"bivssm/pkg/sampling"
)

// ManifestFile is the run description written next to the instances.
const ManifestFile = "manifest.yaml"

// Manifest describes a generation run well enough to reproduce any of its
// instances from the same model.
type Manifest struct {
	RunID      string          `yaml:"runId"`
	Created    time.Time       `yaml:"created"`
	Seed       uint64          `yaml:"seed"`
	Components int             `yaml:"components"`
	Boundary   float64         `yaml:"boundary"`
	Policy     sampling.Policy `yaml:"policy"`
	Format     Format          `yaml:"format"`
	Count      int             `yaml:"count"`

	Model ManifestModel `yaml:"model"`

	Instances []ManifestInstance `yaml:"instances"`
}

// ManifestModel summarises the shape model a run sampled.
type ManifestModel struct {
	Dir              string  `yaml:"dir"`
	Vertices         int     `yaml:"vertices"`
	Modes            int     `yaml:"modes"`
	RetainedVariance float64 `yaml:"retainedVariance"`
}

// ManifestInstance is one written mesh.
type ManifestInstance struct {
	Index           int       `yaml:"index"`
	File            string    `yaml:"file"`
	DisplacementRMS float64   `yaml:"displacementRMS"`
	Coefficients    []float64 `yaml:"coefficients,flow"`
}

// Bound returns the coefficient bound the run used.
func (m *Manifest) Bound() sampling.Bound {
	return sampling.Bound{Max: m.Boundary, Policy: m.Policy}
}

// WriteManifest saves m as YAML at path.
func WriteManifest(path string, m *Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("error marshaling manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing manifest: %w", err)
	}
	return nil
}

// ReadManifest loads the manifest stored in an output directory.
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, fmt.Errorf("error reading manifest: %w", err)
	}
	m := &Manifest{}
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("error parsing manifest: %w", err)
	}
	return m, nil
}
