package packing

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/require"
)

// stubEngine is a minimal StepEngine whose lifecycle the test controls
// directly, isolating Driver.Run's own control flow (iteration counting,
// error propagation, PackingInfo assembly) from any real algorithm's
// convergence behavior.
type stubEngine struct {
	displacesLeft int
	failOnLast    bool
	innerRatio    float64

	setParticlesCalls       int
	setGenerationConfigCalls int
}

func (s *stubEngine) SetParticles(*Packing)            { s.setParticlesCalls++ }
func (s *stubEngine) SetGenerationConfig(GenerationConfig) { s.setGenerationConfigCalls++ }
func (s *stubEngine) Reset()                           {}
func (s *stubEngine) InnerRatio() float64              { return s.innerRatio }
func (s *stubEngine) OuterRatio() float64               { return 1 }
func (s *stubEngine) IsOuterChanging() bool             { return false }
func (s *stubEngine) CanOvercomeTheoreticalDensity() bool { return true }

func (s *stubEngine) ShouldContinue() bool { return s.displacesLeft > 0 }

func (s *stubEngine) Displace() error {
	s.displacesLeft--
	if s.failOnLast && s.displacesLeft == 0 {
		return newError(ErrorKindConvergenceFailure, "stub engine exhausted")
	}
	return nil
}

var _ StepEngine = (*stubEngine)(nil)

func TestDriverRunStopsWhenShouldContinueGoesFalse(t *testing.T) {
	engine := &stubEngine{displacesLeft: 5, innerRatio: 0.9}
	cfg := GenerationConfig{
		ParticlesCount:  4,
		BoxSize:         mgl64.Vec3{10, 10, 10},
		TargetDensity:   0.5,
		Algorithm:       AlgorithmFB,
		ContractionRate: 0.5,
	}
	driver := NewDriver(engine, cfg, NewNopLogger())

	p := NewPacking(4)
	info, err := driver.Run(p)

	require.NoError(t, err)
	require.Equal(t, 5, info.Iterations)
	require.Equal(t, 1, engine.setParticlesCalls)
	require.Equal(t, 1, engine.setGenerationConfigCalls)
	require.InDelta(t, 0.5, info.TheoreticalPorosity, 1e-12)
}

func TestDriverRunPropagatesEngineError(t *testing.T) {
	engine := &stubEngine{displacesLeft: 3, failOnLast: true, innerRatio: 0.9}
	cfg := GenerationConfig{
		ParticlesCount:  4,
		BoxSize:         mgl64.Vec3{10, 10, 10},
		TargetDensity:   0.5,
		Algorithm:       AlgorithmFB,
		ContractionRate: 0.5,
	}
	driver := NewDriver(engine, cfg, NewNopLogger())

	p := NewPacking(4)
	info, err := driver.Run(p)

	require.Error(t, err)
	require.Equal(t, 2, info.Iterations, "the failing iteration must not be counted as completed")
}

func TestDriverAchievedPorosityReflectsInnerRatio(t *testing.T) {
	engine := &stubEngine{displacesLeft: 1, innerRatio: 1}
	cfg := GenerationConfig{
		ParticlesCount:  1,
		BoxSize:         mgl64.Vec3{10, 10, 10},
		TargetDensity:   0.1,
		Algorithm:       AlgorithmFB,
		ContractionRate: 0.5,
	}
	driver := NewDriver(engine, cfg, NewNopLogger())

	p := NewPacking(1)
	p.Set(0, Particle{Diameter: 2, Center: mgl64.Vec3{5, 5, 5}})

	info, err := driver.Run(p)
	require.NoError(t, err)

	expectedSolidVolume := (4.0 / 3.0) * 3.141592653589793 * 1 * 1 * 1
	expectedPorosity := 1 - expectedSolidVolume/1000
	require.InDelta(t, expectedPorosity, info.AchievedPorosity, 1e-9)
}
