package packing

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// ClosestJammingVelocityProvider assembles and solves the bond-network
// linear system from §4.8 steps 1-4, grounded exactly on
// ClosestJammingVelocityProvider.cpp's FillOptimizationMatrix/FillVelocities/
// FindBestMovementTime formulas.
type ClosestJammingVelocityProvider struct {
	domain  Domain
	packing *Packing
	bonds   *BondsProvider
	verlet  NeighborProvider
	solver  SparseSpdSolver

	halfSums []float64
}

func NewClosestJammingVelocityProvider(domain Domain, bonds *BondsProvider, verlet NeighborProvider, solver SparseSpdSolver) *ClosestJammingVelocityProvider {
	if solver == nil {
		solver = NewConjugateGradientSolver()
	}
	return &ClosestJammingVelocityProvider{domain: domain, bonds: bonds, verlet: verlet, solver: solver}
}

func (v *ClosestJammingVelocityProvider) SetParticles(packing *Packing) { v.packing = packing }

func (v *ClosestJammingVelocityProvider) fillOptimizationMatrix(innerDiameterRatio float64) (*SparseSymmetricMatrix, []float64) {
	m := v.bonds.BondCount()
	a := NewSparseSymmetricMatrix(m)
	b := make([]float64, m)
	v.halfSums = make([]float64, m)

	for idx := 0; idx < m; idx++ {
		bond := v.bonds.Bond(idx)
		pi := v.packing.Get(bond.First)
		pj := v.packing.Get(bond.Second)
		halfSum := (pi.Diameter + pj.Diameter) / 2
		v.halfSums[idx] = halfSum

		scaled := innerDiameterRatio * halfSum
		a.SetDiag(idx, 2*scaled*scaled)
		b[idx] = 2 * halfSum * halfSum * innerDiameterRatio
	}

	for k := ParticleIndex(0); k < ParticleIndex(v.packing.Len()); k++ {
		common := v.packing.Get(k)
		for _, pair := range v.bonds.BondPairsOf(k) {
			first := v.packing.Get(pair.FirstNeighborIndex)
			second := v.packing.Get(pair.SecondNeighborIndex)

			uFirst := v.domain.FillDistance(common.Center, first.Center).Normalize()
			uSecond := v.domain.FillDistance(common.Center, second.Center).Normalize()
			cosAngle := uFirst.Dot(uSecond)

			value := v.halfSums[pair.FirstBondIndex] * v.halfSums[pair.SecondBondIndex] * innerDiameterRatio * innerDiameterRatio * cosAngle
			a.AddOffDiag(pair.FirstBondIndex, pair.SecondBondIndex, value)
		}
	}

	return a, b
}

const stabilizationMaxFactor = 2.0

// stabilizationFactor returns the multiplier to apply to a bond's strength
// given how far its current normalized distance has drifted from
// innerDiameterRatio: a gap (currentRatio above target) weakens the bond, by
// up to stabilizationMaxFactor, so it does not overshoot; an intersection
// (currentRatio below target) strengthens it by the same amount so the
// overlap closes faster. Within beta of the target, the bond is left alone.
func stabilizationFactor(currentRatio, innerDiameterRatio, beta float64) float64 {
	diff := currentRatio - innerDiameterRatio
	magnitude := math.Abs(diff)
	if magnitude <= beta {
		return 1
	}
	t := (magnitude - beta) / (4 * beta)
	if t > 1 {
		t = 1
	}
	factor := 1 + t*(stabilizationMaxFactor-1)
	if diff > 0 {
		return 1 / factor
	}
	return factor
}

// FillVelocities solves A*lambda = b and converts the multipliers into
// per-particle rigid-motion velocities (§4.8 steps 2-4).
func (v *ClosestJammingVelocityProvider) FillVelocities(innerDiameterRatio, beta float64) ([]mgl64.Vec3, error) {
	a, b := v.fillOptimizationMatrix(innerDiameterRatio)
	lambda, err := v.solver.Solve(a, b)
	if err != nil {
		return nil, err
	}

	velocities := make([]mgl64.Vec3, v.packing.Len())
	for idx := 0; idx < v.bonds.BondCount(); idx++ {
		bond := v.bonds.Bond(idx)
		pi := v.packing.Get(bond.First)
		pj := v.packing.Get(bond.Second)
		halfSum := v.halfSums[idx]

		bondStrength := 0.5 * halfSum * innerDiameterRatio * lambda[idx]

		currentRatio := math.Sqrt(v.domain.NormalizedDistanceSquared(pi.Center, pi.Diameter, pj.Center, pj.Diameter))
		bondStrength *= stabilizationFactor(currentRatio, innerDiameterRatio, beta)

		// uij points from Second toward First, i.e. away from the neighbor
		// each endpoint is bonded to; as innerDiameterRatio grows, both
		// endpoints move apart along the bond to keep their surfaces exactly
		// touching at the new, larger contact distance.
		uij := v.domain.FillDistance(pi.Center, pj.Center).Normalize()
		velocities[bond.First] = velocities[bond.First].Add(uij.Mul(bondStrength))
		velocities[bond.Second] = velocities[bond.Second].Add(uij.Mul(-bondStrength))
	}
	return velocities, nil
}

// growingCollisionTime finds the smallest t >= 0 such that
// |relPos + t*relVel| == halfSum*(currentRatio+growthRate*t) while the gap
// is closing at t, i.e. the earliest time two particles growing at
// growthRate come into contact, using the same quadratic-with-smaller-root
// approach as the LS collision provider (§4.7). A root at which the gap is
// opening is not a contact: a pair touching at t = 0 and separating faster
// than it grows gets no event at 0.
// The closest-jamming step always calls this with growthRate 1 (its "time"
// variable is the diameter ratio itself); the LS step passes its own
// growth-rate parameter.
func growingCollisionTime(relPos, relVel mgl64.Vec3, halfSum, currentRatio, growthRate float64) float64 {
	growingRadius := halfSum * growthRate
	a := relVel.Dot(relVel) - growingRadius*growingRadius
	bCoef := 2 * (relPos.Dot(relVel) - growingRadius*halfSum*currentRatio)
	c := relPos.Dot(relPos) - halfSum*halfSum*currentRatio*currentRatio

	if a == 0 {
		if bCoef >= 0 {
			return math.Inf(1)
		}
		t := -c / bCoef
		if t >= 0 {
			return t
		}
		return math.Inf(1)
	}

	disc := bCoef*bCoef - 4*a*c
	if disc < 0 {
		return math.Inf(1)
	}
	root := math.Sqrt(disc)
	t1 := (-bCoef - root) / (2 * a)
	t2 := (-bCoef + root) / (2 * a)
	if t1 > t2 {
		t1, t2 = t2, t1
	}
	// The gap closes where the quadratic's derivative 2*a*t + bCoef is
	// negative; at the other root the surfaces separate.
	if t1 >= 0 && 2*a*t1+bCoef < 0 {
		return t1
	}
	if t2 >= 0 && 2*a*t2+bCoef < 0 {
		return t2
	}
	return math.Inf(1)
}

// FindBestMovementTime returns the minimum time until any non-bonded Verlet
// pair would collide, growing at the current inner ratio.
func (v *ClosestJammingVelocityProvider) FindBestMovementTime(velocities []mgl64.Vec3, innerDiameterRatio float64) float64 {
	best := math.Inf(1)
	for i := ParticleIndex(0); i < ParticleIndex(v.packing.Len()); i++ {
		pi := v.packing.Get(i)
		for _, j := range v.verlet.NeighborsOfIndex(i) {
			if j <= i || v.bonds.ParticlesShareBond(i, j) {
				continue
			}
			pj := v.packing.Get(j)
			halfSum := (pi.Diameter + pj.Diameter) / 2
			relPos := v.domain.FillDistance(pj.Center, pi.Center)
			relVel := velocities[j].Sub(velocities[i])

			t := growingCollisionTime(relPos, relVel, halfSum, innerDiameterRatio, 1.0)
			if t < best {
				best = t
			}
		}
	}
	return best
}
