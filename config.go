package packing

import "github.com/go-gl/mathgl/mgl64"

// Algorithm selects which step engine the driver wires on top of the
// neighbor stack.
type Algorithm int

const (
	AlgorithmLSSimple Algorithm = iota
	AlgorithmLSGradual
	AlgorithmFB
	AlgorithmJTOriginal
	AlgorithmJTKhirevich
	AlgorithmClosestJamming
	AlgorithmMonteCarlo
	AlgorithmConjugateGradient
)

func (a Algorithm) String() string {
	switch a {
	case AlgorithmLSSimple:
		return "ls-simple"
	case AlgorithmLSGradual:
		return "ls-gradual"
	case AlgorithmFB:
		return "fb"
	case AlgorithmJTOriginal:
		return "jt-original"
	case AlgorithmJTKhirevich:
		return "jt-khirevich"
	case AlgorithmClosestJamming:
		return "closest-jamming"
	case AlgorithmMonteCarlo:
		return "monte-carlo"
	case AlgorithmConjugateGradient:
		return "conjugate-gradient"
	default:
		return "unknown"
	}
}

// GenerationConfig is the immutable record the core reads. The core never
// parses it from a file; that is cmd/packgen's job.
type GenerationConfig struct {
	ParticlesCount int
	BoxSize        mgl64.Vec3
	TargetDensity  float64
	TargetPorosity float64
	Algorithm      Algorithm
	Seed           uint64

	ContractionRate               float64
	FinalContractionRate          float64
	ContractionRateDecreaseFactor float64

	StepsToWrite     int
	MinNeighborsCount int
}

// Validate returns an ErrorKindConfiguration error for any contradictory or
// out-of-range field; it performs no computation.
func (c GenerationConfig) Validate() error {
	if c.ParticlesCount <= 0 {
		return newError(ErrorKindConfiguration, "particles count must be positive, got %d", c.ParticlesCount)
	}
	for i := 0; i < Dim; i++ {
		if c.BoxSize[i] <= 0 {
			return newError(ErrorKindConfiguration, "box extent on axis %d must be positive, got %f", i, c.BoxSize[i])
		}
	}
	if c.Algorithm < AlgorithmLSSimple || c.Algorithm > AlgorithmConjugateGradient {
		return newError(ErrorKindConfiguration, "unknown algorithm selector %d", c.Algorithm)
	}
	if c.ContractionRate <= 0 || c.ContractionRate >= 1 {
		return newError(ErrorKindConfiguration, "contraction rate must be in (0,1), got %f", c.ContractionRate)
	}
	if c.MinNeighborsCount < 0 {
		return newError(ErrorKindConfiguration, "minNeighborsCount must be non-negative, got %d", c.MinNeighborsCount)
	}
	return nil
}

func (c GenerationConfig) Domain() Domain { return Domain{Size: c.BoxSize} }
