package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bivssm/pkg/config"
	"bivssm/pkg/sampling"
	"bivssm/pkg/ssm/ssmtest"
	"bivssm/pkg/surfacegen"
)

func TestParamsFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Input.Dir = "model"
	cfg.Output.Dir = "out"
	cfg.Output.Format = "stl"
	cfg.Sampling.Count = 8
	cfg.Sampling.Policy = sampling.PolicyResample
	cfg.Sampling.Boundary = 2

	p := paramsFromConfig(cfg)
	assert.Equal(t, "model", p.InputDir)
	assert.Equal(t, "out", p.OutputDir)
	assert.Equal(t, surfacegen.FormatSTL, p.Format)
	assert.Equal(t, 8, p.Count)
	assert.Equal(t, sampling.Bound{Max: 2, Policy: sampling.PolicyResample}, p.Bound)
	assert.Equal(t, "tags", p.Model.TagArray)
	assert.True(t, p.Manifest)
}

func TestDefaultConfigRuns(t *testing.T) {
	in := t.TempDir()
	require.NoError(t, ssmtest.WriteDir(in, ssmtest.TetraArtifact(), ssmtest.TetraMesh()))

	cfg := config.DefaultConfig()
	cfg.Input.Dir = in
	cfg.Output.Dir = t.TempDir()
	cfg.Sampling.Count = 3
	require.NoError(t, cfg.Validate())

	res, err := surfacegen.Generate(paramsFromConfig(cfg))
	require.NoError(t, err)
	assert.Len(t, res.Files, 3)
	assert.Len(t, res.Extras, 1)
}

func TestNegativeBoundaryDisablesBounding(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Sampling.Boundary = -1
	require.ErrorIs(t, cfg.Validate(), sampling.ErrInvalidParameter)

	negativeBoundaryUnbounded(cfg)
	assert.Equal(t, sampling.PolicyNone, cfg.Sampling.Policy)
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, "none", cfg.Bound().String())

	cfg = config.DefaultConfig()
	cfg.Sampling.Boundary = 2
	negativeBoundaryUnbounded(cfg)
	assert.Equal(t, sampling.PolicyClip, cfg.Sampling.Policy)
}
