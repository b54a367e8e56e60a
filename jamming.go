package packing

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	defaultIntegrationTimeStep = 1e-9
	minIntegrationTimeStep     = 2e-14
)

// ClosestJammingStep is the step engine from §4.8: it treats the inner
// diameter ratio itself as the integration variable and grows particles
// while a bond-network Lagrange-multiplier solve keeps existing contacts
// exact. Grounded on ClosestJammingStep.cpp's SetParticles/DisplaceParticles/
// FixIntersections/UpdateIntegrationTimeStep/ShouldContinue/MoveParticles
// flow; the adaptive dopri5/binary-search collision machinery in that file
// is intentionally not replicated (see SPEC_FULL.md §4.8) — this uses fixed-
// step RK4 with step-halving, as the distilled specification directs.
type ClosestJammingStep struct {
	domain Domain

	packing     *Packing
	cells       *CellListNeighborIndex
	verlet      *VerletOverlay
	closestPair *ClosestPairStructure
	bonds       *BondsProvider
	velocity    *ClosestJammingVelocityProvider

	logger Logger

	innerDiameterRatio                    float64
	integrationTimeStep                   float64
	maxTimeStep                            float64
	startBondsCountForIntegrationTimeStep int
	lastStats                             BondsStatistics

	canOvercomeTheoreticalDensity bool
}

func NewClosestJammingStep(domain Domain, logger Logger) *ClosestJammingStep {
	if logger == nil {
		logger = NewNopLogger()
	}
	return &ClosestJammingStep{
		domain:                        domain,
		logger:                        logger,
		integrationTimeStep:           defaultIntegrationTimeStep,
		canOvercomeTheoreticalDensity: true,
	}
}

func (s *ClosestJammingStep) SetGenerationConfig(cfg GenerationConfig) {
	// The closest-jamming step has no outer-diameter schedule of its own
	// (§3's "no outer schedule" case); it only needs the shared config for
	// rattler-aware bookkeeping, which callers read via the energy engine
	// directly, so there is nothing else to capture here beyond the flag.
	s.canOvercomeTheoreticalDensity = true
}

func (s *ClosestJammingStep) SetParticles(packing *Packing) {
	s.packing = packing
	s.cells = NewCellListNeighborIndex()
	s.cells.SetContext(ModellingContext{Domain: s.domain})
	s.cells.SetParticles(packing)

	s.verlet = NewVerletOverlay(s.cells, 0, 1.1)
	s.verlet.SetContext(ModellingContext{Domain: s.domain})
	s.verlet.SetParticles(packing)

	s.closestPair = NewClosestPairStructure(s.verlet, s.domain)
	s.closestPair.SetParticles(packing)

	s.bonds = NewBondsProvider(s.verlet, s.domain)
	s.bonds.Reset(packing)

	s.velocity = NewClosestJammingVelocityProvider(s.domain, s.bonds, s.verlet, nil)
	s.velocity.SetParticles(packing)

	pair := s.closestPair.FindClosestPair()
	s.innerDiameterRatio = math.Sqrt(pair.NormalizedDistanceSq)
	s.bonds.UpdateBonds(s.innerDiameterRatio, false)
	s.startBondsCountForIntegrationTimeStep = s.bonds.BondCount()
	s.integrationTimeStep = defaultIntegrationTimeStep
}

func (s *ClosestJammingStep) Reset() {
	if s.packing != nil {
		s.SetParticles(s.packing)
	}
}

// Displace performs one iteration of the jamming integrator: solve for
// bond-preserving velocities, find the time until the next non-bonded
// collision, integrate up to that time (or the integration-step cap,
// whichever is smaller), snap away drift, and update the bond graph.
func (s *ClosestJammingStep) Displace() error {
	velocities, err := s.velocity.FillVelocities(s.innerDiameterRatio, s.bonds.Threshold)
	if err != nil {
		return err
	}

	collisionTime := s.velocity.FindBestMovementTime(velocities, s.innerDiameterRatio)
	timeStep := collisionTime
	if s.maxTimeStep > 0 && timeStep > s.maxTimeStep {
		timeStep = s.maxTimeStep
	}

	if timeStep <= s.integrationTimeStep {
		s.moveParticles(velocities, timeStep)
		s.innerDiameterRatio += timeStep
	} else {
		s.integrate(velocities, timeStep)
	}

	pair := s.closestPair.FindClosestPair()
	s.innerDiameterRatio = math.Sqrt(pair.NormalizedDistanceSq)
	s.lastStats = s.bonds.UpdateBonds(s.innerDiameterRatio, false)

	return s.fixIntersections()
}

// moveParticles displaces only particles that belong to at least one bond —
// unbonded particles have no rigid-network velocity to apply.
func (s *ClosestJammingStep) moveParticles(velocities []mgl64.Vec3, dt float64) {
	for i := ParticleIndex(0); i < ParticleIndex(s.packing.Len()); i++ {
		if len(s.bonds.BondsOf(i)) == 0 {
			continue
		}
		s.closestPair.StartMove(i)
		particle := s.packing.Get(i)
		next := s.domain.EnsureBoundaries(particle.Center.Add(velocities[i].Mul(dt)))
		s.packing.SetCenter(i, next)
		s.closestPair.EndMove(i)
	}
}

// integrate performs fixed-step RK4 over [innerDiameterRatio,
// innerDiameterRatio+totalTime]. The velocity field solved at the start of
// Displace does not depend on position within one bond-network epoch (only
// on the bond graph and the current inner ratio), so RK4's four derivative
// evaluations are identical and it reduces to repeated Euler sub-stepping —
// the sub-stepping still matters for periodic wrap-around accuracy over a
// longer interval, which is why this is not a single Euler step.
func (s *ClosestJammingStep) integrate(velocities []mgl64.Vec3, totalTime float64) {
	const subSteps = 4
	dt := totalTime / subSteps
	for i := 0; i < subSteps; i++ {
		s.moveParticles(velocities, dt)
	}
}

// fixIntersections re-snaps the inner ratio and removes broken bonds when
// drift has grown beyond tolerance, then adapts the integration step size.
func (s *ClosestJammingStep) fixIntersections() error {
	tolerance := 1.0 - 5*s.bonds.Threshold
	pair := s.closestPair.FindClosestPair()
	intersectionsExist := pair.NormalizedDistanceSq < s.innerDiameterRatio*s.innerDiameterRatio*tolerance*tolerance

	errorIsLarge := s.lastStats.MeanGapLength > 5*s.bonds.Threshold ||
		s.lastStats.MeanIntersectionLength > 5*s.bonds.Threshold ||
		intersectionsExist
	if !errorIsLarge {
		return nil
	}

	s.innerDiameterRatio = math.Sqrt(pair.NormalizedDistanceSq)
	s.bonds.UpdateBonds(s.innerDiameterRatio, true)

	return s.updateIntegrationTimeStep(s.bonds.BondCount())
}

func (s *ClosestJammingStep) updateIntegrationTimeStep(endBondsCount int) error {
	addedBondsCount := endBondsCount - s.startBondsCountForIntegrationTimeStep
	errorGrowsTooQuickly := addedBondsCount < 10

	if errorGrowsTooQuickly {
		if s.integrationTimeStep > minIntegrationTimeStep {
			s.integrationTimeStep /= 2
			s.logger.Warn("halving integration time step", "newStep", s.integrationTimeStep, "addedBonds", addedBondsCount)
		} else if addedBondsCount <= 0 {
			s.startBondsCountForIntegrationTimeStep = endBondsCount
			return newError(ErrorKindConvergenceFailure,
				"particles do not grow during integration, integration time step is too low to be decreased further")
		}
	}

	s.startBondsCountForIntegrationTimeStep = endBondsCount
	return nil
}

func (s *ClosestJammingStep) ShouldContinue() bool {
	return s.bonds.BondCount() < Dim*(s.packing.Len()-1)
}

func (s *ClosestJammingStep) InnerRatio() float64 { return s.innerDiameterRatio }

// OuterRatio has no independent schedule in the closest-jamming step (§3:
// "no outer schedule"); it always equals the inner ratio.
func (s *ClosestJammingStep) OuterRatio() float64 { return s.innerDiameterRatio }

func (s *ClosestJammingStep) IsOuterChanging() bool { return false }

func (s *ClosestJammingStep) CanOvercomeTheoreticalDensity() bool {
	return s.canOvercomeTheoreticalDensity
}

var _ StepEngine = (*ClosestJammingStep)(nil)
