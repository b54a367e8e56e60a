package packing

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/require"
)

func validConfig() GenerationConfig {
	return GenerationConfig{
		ParticlesCount:  10,
		BoxSize:         mgl64.Vec3{10, 10, 10},
		Algorithm:       AlgorithmLSSimple,
		ContractionRate: 0.5,
	}
}

func TestGenerationConfigValidateAccepts(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestGenerationConfigValidateRejectsNonPositiveParticleCount(t *testing.T) {
	cfg := validConfig()
	cfg.ParticlesCount = 0
	require.Error(t, cfg.Validate())

	cfg.ParticlesCount = -5
	require.Error(t, cfg.Validate())
}

func TestGenerationConfigValidateRejectsNonPositiveBoxExtent(t *testing.T) {
	cfg := validConfig()
	cfg.BoxSize = mgl64.Vec3{10, 0, 10}
	require.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.BoxSize = mgl64.Vec3{-1, 10, 10}
	require.Error(t, cfg.Validate())
}

func TestGenerationConfigValidateRejectsUnknownAlgorithm(t *testing.T) {
	cfg := validConfig()
	cfg.Algorithm = Algorithm(99)
	require.Error(t, cfg.Validate())

	cfg.Algorithm = Algorithm(-1)
	require.Error(t, cfg.Validate())
}

func TestGenerationConfigValidateRejectsOutOfRangeContractionRate(t *testing.T) {
	cfg := validConfig()
	cfg.ContractionRate = 0
	require.Error(t, cfg.Validate())

	cfg.ContractionRate = 1
	require.Error(t, cfg.Validate())

	cfg.ContractionRate = -0.1
	require.Error(t, cfg.Validate())
}

func TestGenerationConfigValidateRejectsNegativeMinNeighborsCount(t *testing.T) {
	cfg := validConfig()
	cfg.MinNeighborsCount = -1
	require.Error(t, cfg.Validate())
}

func TestGenerationConfigDomainUsesBoxSize(t *testing.T) {
	cfg := validConfig()
	require.Equal(t, cfg.BoxSize, cfg.Domain().Size)
}

func TestAlgorithmStringRoundTrip(t *testing.T) {
	names := map[Algorithm]string{
		AlgorithmLSSimple:          "ls-simple",
		AlgorithmLSGradual:         "ls-gradual",
		AlgorithmFB:                "fb",
		AlgorithmJTOriginal:        "jt-original",
		AlgorithmJTKhirevich:       "jt-khirevich",
		AlgorithmClosestJamming:    "closest-jamming",
		AlgorithmMonteCarlo:        "monte-carlo",
		AlgorithmConjugateGradient: "conjugate-gradient",
	}
	for algo, name := range names {
		require.Equal(t, name, algo.String())
	}
	require.Equal(t, "unknown", Algorithm(-1).String())
}
