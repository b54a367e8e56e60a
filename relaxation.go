package packing

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// RelaxationVariant selects the mobility law applied to the net repulsion
// force before a particle is displaced (§4.6). The three named algorithms
// share everything else: neighbor stack, force summation, and contraction
// schedule.
type RelaxationVariant int

const (
	// VariantJTOriginal scales displacement by diameter, following
	// Jodrey & Tory's original step length.
	VariantJTOriginal RelaxationVariant = iota
	// VariantJTKhirevich scales displacement by diameter squared, the
	// correction Khirevich et al. apply to avoid small particles
	// over-shooting.
	VariantJTKhirevich
	// VariantFB is the force-biased algorithm: displacement is proportional
	// to the raw force with no diameter-dependent scaling, since
	// BezrukovPotential's force already carries a diamA*diamB factor.
	VariantFB
)

func (v RelaxationVariant) mobilityScale(diameter float64) float64 {
	switch v {
	case VariantJTOriginal:
		return diameter
	case VariantJTKhirevich:
		return diameter * diameter
	default:
		return 1
	}
}

func (v RelaxationVariant) potential() PairPotential {
	if v == VariantFB {
		return BezrukovPotential{}
	}
	return HarmonicPotential{Power: 2}
}

// RelaxationStep is the force-biased / Jodrey-Tory contraction step from
// §4.6: particles repel along the line of centers at a shrinking outer
// diameter ratio until the inner diameter ratio (actual contact distance)
// closes the gap to it, grounded on FbaStep.cpp / the JT step family's
// shared structure.
type RelaxationStep struct {
	domain Domain

	packing     *Packing
	cells       *CellListNeighborIndex
	verlet      *VerletOverlay
	closestPair *ClosestPairStructure
	energy      *EnergyForceEngine

	logger Logger

	Variant           RelaxationVariant
	MinNeighborsCount int

	innerDiameterRatio float64
	outerDiameterRatio float64

	initialOuterGap               float64
	contractionRate                float64
	finalContractionRate           float64
	contractionRateDecreaseFactor  float64
	consecutiveHalvings            int

	// MoveDisplacementRatio bounds how far, relative to the smallest
	// diameter present, a single step may move any one particle — keeps the
	// force-biased step stable even right after a bad contraction.
	MoveDisplacementRatio float64
}

func NewRelaxationStep(domain Domain, variant RelaxationVariant, logger Logger) *RelaxationStep {
	if logger == nil {
		logger = NewNopLogger()
	}
	return &RelaxationStep{
		domain:                domain,
		logger:                logger,
		Variant:               variant,
		MoveDisplacementRatio: 0.1,
		outerDiameterRatio:    1,
	}
}

func (s *RelaxationStep) SetGenerationConfig(cfg GenerationConfig) {
	s.contractionRate = cfg.ContractionRate
	s.finalContractionRate = cfg.FinalContractionRate
	s.contractionRateDecreaseFactor = cfg.ContractionRateDecreaseFactor
	s.MinNeighborsCount = cfg.MinNeighborsCount
}

func (s *RelaxationStep) SetParticles(packing *Packing) {
	s.packing = packing
	s.cells = NewCellListNeighborIndex()
	s.cells.SetContext(ModellingContext{Domain: s.domain})
	s.cells.SetParticles(packing)

	s.verlet = NewVerletOverlay(s.cells, 0, 1.3)
	s.verlet.SetContext(ModellingContext{Domain: s.domain})
	s.verlet.SetParticles(packing)

	s.closestPair = NewClosestPairStructure(s.verlet, s.domain)
	s.closestPair.SetParticles(packing)

	s.energy = NewEnergyForceEngine(s.verlet, s.domain)
	s.energy.SetParticles(packing)

	pair := s.closestPair.FindClosestPair()
	s.innerDiameterRatio = sqrtOrOne(pair.NormalizedDistanceSq)
	s.outerDiameterRatio = 1
	s.initialOuterGap = s.outerDiameterRatio - s.innerDiameterRatio
	s.consecutiveHalvings = 0
}

func sqrtOrOne(v float64) float64 {
	if v <= 0 {
		return 1
	}
	return math.Sqrt(v)
}

func (s *RelaxationStep) Reset() {
	if s.packing != nil {
		s.SetParticles(s.packing)
	}
}

// Displace computes one force-biased/JT iteration: move every particle
// along its net repulsion force at the current outer diameter ratio, then
// attempt to shrink the outer ratio by the contraction schedule — halving
// the attempted decrement (up to contractionRateDecreaseFactor times) when
// the resulting gap would already be closed by existing overlaps.
func (s *RelaxationStep) Displace() error {
	potential := s.Variant.potential()
	forces := make([]mgl64.Vec3, s.packing.Len())
	closest := s.energy.FillParticleForces(s.outerDiameterRatio, potential, forces)
	s.innerDiameterRatio = sqrtOrOne(closest.NormalizedDistanceSq)

	minDiameter := s.packing.MaxDiameter()
	for i := ParticleIndex(0); i < ParticleIndex(s.packing.Len()); i++ {
		d := s.packing.Get(i).Diameter
		if d < minDiameter {
			minDiameter = d
		}
	}
	maxStep := s.MoveDisplacementRatio * minDiameter

	for i := ParticleIndex(0); i < ParticleIndex(s.packing.Len()); i++ {
		particle := s.packing.Get(i)
		if particle.Immobile {
			continue
		}
		scale := s.Variant.mobilityScale(particle.Diameter)
		delta := forces[i].Mul(scale)
		if length := delta.Len(); length > maxStep && length > 0 {
			delta = delta.Mul(maxStep / length)
		}
		if delta.Len() == 0 {
			continue
		}
		s.closestPair.StartMove(i)
		next := s.domain.EnsureBoundaries(particle.Center.Add(delta))
		s.packing.SetCenter(i, next)
		s.closestPair.EndMove(i)
	}

	pair := s.closestPair.FindClosestPair()
	s.innerDiameterRatio = sqrtOrOne(pair.NormalizedDistanceSq)

	s.contractOuterRatio()
	return nil
}

// contractOuterRatio implements the decreasing schedule
// outer -= 0.5^j * initialGap * contractionRate, where j grows each time the
// attempted decrement would push the outer ratio below the current inner
// ratio (the particles have not yet relaxed enough to absorb it), and resets
// to 0 once a decrement is accepted.
func (s *RelaxationStep) contractOuterRatio() {
	if s.contractionRate <= 0 {
		return
	}
	for {
		decrement := math.Pow(2, float64(-s.consecutiveHalvings)) * s.initialOuterGap * s.contractionRate
		if s.contractionRateDecreaseFactor > 0 && decrement < s.finalContractionRate*s.initialOuterGap {
			return
		}
		candidate := s.outerDiameterRatio - decrement
		if candidate >= s.innerDiameterRatio {
			s.outerDiameterRatio = candidate
			s.consecutiveHalvings = 0
			return
		}
		s.consecutiveHalvings++
		if float64(s.consecutiveHalvings) > s.contractionRateDecreaseFactor {
			// Schedule exhausted at this contact configuration; hold outer
			// ratio steady and let the next Displace's relaxation pass
			// open room before trying again.
			return
		}
	}
}

func (s *RelaxationStep) ShouldContinue() bool {
	gap := s.outerDiameterRatio - s.innerDiameterRatio
	return gap > s.finalContractionRate*s.initialOuterGap
}

func (s *RelaxationStep) InnerRatio() float64 { return s.innerDiameterRatio }
func (s *RelaxationStep) OuterRatio() float64 { return s.outerDiameterRatio }
func (s *RelaxationStep) IsOuterChanging() bool { return true }

func (s *RelaxationStep) CanOvercomeTheoreticalDensity() bool {
	return s.Variant == VariantFB
}

var _ StepEngine = (*RelaxationStep)(nil)
