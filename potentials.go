package packing

import "math"

// distanceResult is an optional real: Valid is false when the pair does not
// overlap (no energy/force contribution), mirroring the "optional real"
// operations in §4.5.
type distanceResult struct {
	Value float64
	Valid bool
}

func none() distanceResult           { return distanceResult{} }
func some(v float64) distanceResult  { return distanceResult{Value: v, Valid: true} }

// PairPotential is the two-operation contract from §4.5.
type PairPotential interface {
	// Energy returns the pair energy at center distance r, or !Valid if
	// r >= (diamA+diamB)/2 (no overlap).
	Energy(diamA, diamB, r float64) distanceResult
	// RepulsionForce returns the magnitude of the repulsive force along the
	// line of centers, positive for overlap, or !Valid if there is none.
	RepulsionForce(diamA, diamB, r float64) distanceResult
}

// HarmonicPotential implements energy = (1-ratio)^Power and the matching
// force law, grounded on HarmonicPotential.cpp.
type HarmonicPotential struct {
	Power float64
}

func (h HarmonicPotential) Energy(diamA, diamB, r float64) distanceResult {
	halfSum := (diamA + diamB) / 2
	ratio := r / halfSum
	if ratio >= 1 {
		return none()
	}
	base := 1 - ratio
	if h.Power == 2 {
		return some(base * base)
	}
	return some(math.Pow(base, h.Power))
}

func (h HarmonicPotential) RepulsionForce(diamA, diamB, r float64) distanceResult {
	halfSum := (diamA + diamB) / 2
	ratio := r / halfSum
	if ratio >= 1 {
		return none()
	}
	return some(h.Power * math.Pow(1-ratio, h.Power-1) / halfSum)
}

// BezrukovPotential is a force-only potential (no closed-form energy) used
// by the force-biased relaxation step, grounded on BezrukovPotential.cpp.
type BezrukovPotential struct{}

func (BezrukovPotential) Energy(diamA, diamB, r float64) distanceResult { return none() }

func (BezrukovPotential) RepulsionForce(diamA, diamB, r float64) distanceResult {
	halfSum := (diamA + diamB) / 2
	ratio := r / halfSum
	if ratio >= 1 {
		return none()
	}
	return some(diamA * diamB * (1 - r*r/(halfSum*halfSum)))
}

// ImpermeableAttractionPotential wraps a repulsion potential and multiplies
// its overlap response by a large normalizer, so that any overlap is far
// more costly than the harmonic attraction applied outside contact. The
// normalizer is 1e10, not a smaller value: per ImpermeableAttractionPotential.cpp,
// 1e6 is too small, since shrinking the inner diameter by 1e-6 becomes
// profitable for energy minimization even multiplied by 1e6.
type ImpermeableAttractionPotential struct {
	Repulsion PairPotential
}

const impermeableNormalizer = 1e10

func (p ImpermeableAttractionPotential) Energy(diamA, diamB, r float64) distanceResult {
	halfRadius := (diamA + diamB) / 4
	if res := p.Repulsion.Energy(diamA, diamB, r); res.Valid {
		return some(res.Value * impermeableNormalizer)
	}
	diff := r - halfRadius
	return some(diff * diff)
}

func (p ImpermeableAttractionPotential) RepulsionForce(diamA, diamB, r float64) distanceResult {
	halfRadius := (diamA + diamB) / 4
	if res := p.Repulsion.RepulsionForce(diamA, diamB, r); res.Valid {
		return some(res.Value * impermeableNormalizer)
	}
	return some(halfRadius - r)
}
