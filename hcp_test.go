package packing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

// Scenario 6 (spec §8 item 6): 48 unit-diameter spheres on the HCP lattice
// must be exactly touching (minimum normalized distance 1) and fill the box
// at the HCP packing density pi/(3*sqrt(2)).
//
// spec.md states the box extent as (6, 4*sqrt(3), 8*sqrt(6)/3) for
// unit-diameter spheres; HcpGenerator.cpp's FillExpectedSize (the original
// implementation this was distilled from) scales those same coefficients by
// the sphere *radius*, not the diameter, giving (3, 2*sqrt(3), 4*sqrt(6)/3)
// for diameter 1 — half the spec's figure on every axis. Only the
// radius-scaled box reproduces density pi/(3*sqrt(2)) and a touching
// distance of exactly 1 for this lattice; the literal spec figure would pack
// the same 48 spheres into 8x the volume, at 1/8 the density. This test
// follows HCPLatticeSize (i.e. the original generator's formula) as the
// consistency check's box, per the grounding rule that original_source
// resolves exact constants spec.md leaves ambiguous or, as here,
// internally inconsistent.
func TestScenario6HCPConsistency(t *testing.T) {
	const diameter = 1.0
	packing := NewHCPPacking(diameter)
	require.Equal(t, 48, packing.Len())

	domain := Domain{Size: HCPLatticeSize(diameter)}

	minDistanceSq := math.Inf(1)
	for i := 0; i < packing.Len(); i++ {
		pi := packing.Get(ParticleIndex(i))
		for j := i + 1; j < packing.Len(); j++ {
			pj := packing.Get(ParticleIndex(j))
			distSq := domain.NormalizedDistanceSquared(pi.Center, pi.Diameter, pj.Center, pj.Diameter)
			if distSq < minDistanceSq {
				minDistanceSq = distSq
			}
		}
	}

	require.InDelta(t, 1.0, math.Sqrt(minDistanceSq), 1e-9)

	solidVolume := 0.0
	for i := 0; i < packing.Len(); i++ {
		solidVolume += sphereVolume(packing.Get(ParticleIndex(i)).Diameter / 2)
	}
	density := solidVolume / domain.Volume()
	expectedDensity := math.Pi / (3 * math.Sqrt2)

	require.InDelta(t, expectedDensity, density, 1e-9)
}
