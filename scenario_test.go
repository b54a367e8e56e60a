package packing

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/require"
)

// almostEqualRelative mirrors the original test suite's AreAlmostEqual: two
// values that are both tiny (as these displacements are, at step size 1e-8)
// compare by relative error against their own magnitude rather than a fixed
// absolute band, which would be vacuous at this scale.
func almostEqualRelative(actual, expected, epsilon float64) bool {
	return math.Abs(actual-expected) <= epsilon*(math.Abs(actual)+math.Abs(expected))*0.5
}

func requireVec3AlmostEqual(t *testing.T, expected, actual mgl64.Vec3, epsilon float64, msg string) {
	t.Helper()
	for i := 0; i < 3; i++ {
		require.True(t, almostEqualRelative(actual[i], expected[i], epsilon),
			"%s: component %d: expected %v, got %v", msg, i, expected[i], actual[i])
	}
}

// Scenario 1 (spec §8 item 1): three equal disks forming a unit triangle,
// plus a fourth far-away distractor that must stay unbonded and unmoved. One
// closest-jamming micro-step must displace the triangle's vertices exactly
// along d0 = -t/3*(c01+c02), d1 = -t/3*(c12-c01), d2 = t/3*(c02+c12), where
// cXY is the raw (non-normalized) displacement from X to Y.
func TestScenario1ThreeDisksDisplacementsMatchClosedForm(t *testing.T) {
	domain := Domain{Size: mgl64.Vec3{10, 10, 10}}
	diameter := 0.5

	c0 := mgl64.Vec3{0, 0, 0}
	c1 := mgl64.Vec3{diameter, 0, 0}
	c2 := mgl64.Vec3{diameter / 2, diameter * math.Sin(math.Pi/3), 0}
	c3 := mgl64.Vec3{5, 5, 0}

	p := NewPacking(4)
	p.Set(0, Particle{Diameter: diameter, Center: c0})
	p.Set(1, Particle{Diameter: diameter, Center: c1})
	p.Set(2, Particle{Diameter: diameter, Center: c2})
	p.Set(3, Particle{Diameter: diameter, Center: c3})

	s := NewClosestJammingStep(domain, NewNopLogger())
	s.SetParticles(p)
	require.Equal(t, 3, s.bonds.BondCount(), "only the triangle's three contacts should bond; the distractor stays free")
	require.InDelta(t, 1.0, s.innerDiameterRatio, 1e-9)

	const timeStep = 1e-8
	s.maxTimeStep = timeStep

	require.NoError(t, s.Displace())

	c01 := domain.FillDistance(c1, c0)
	c02 := domain.FillDistance(c2, c0)
	c12 := domain.FillDistance(c2, c1)

	d0 := c01.Add(c02).Mul(-timeStep / 3)
	d1 := c12.Sub(c01).Mul(-timeStep / 3)
	d2 := c02.Add(c12).Mul(timeStep / 3)

	requireVec3AlmostEqual(t, d0, domain.FillDistance(p.Get(0).Center, c0), 1e-5, "particle 0")
	requireVec3AlmostEqual(t, d1, domain.FillDistance(p.Get(1).Center, c1), 1e-5, "particle 1")
	requireVec3AlmostEqual(t, d2, domain.FillDistance(p.Get(2).Center, c2), 1e-5, "particle 2")
	requireVec3AlmostEqual(t, mgl64.Vec3{}, domain.FillDistance(p.Get(3).Center, c3), 1e-12, "the distractor must not move")
}

// Scenario 2 (spec §8 item 2): four disks chained 0-1-2-3 with a 60° bend at
// 1, no bond closing the chain into a loop. Expected displacements:
// d0 = -2t/3*c01, d1 = 2t/3*(c01-c12), d2 = 2t/3*c12 - t/2*c23, d3 = t/2*c23.
func TestScenario2FourDisksDisplacementsMatchClosedForm(t *testing.T) {
	domain := Domain{Size: mgl64.Vec3{10, 10, 10}}
	diameter := 0.5

	c0 := mgl64.Vec3{0, 0, 0}
	c1 := c0.Add(mgl64.Vec3{diameter * math.Cos(math.Pi/3), diameter * math.Sin(math.Pi/3), 0})
	c2 := c1.Add(mgl64.Vec3{diameter, 0, 0})
	c3 := c2.Add(mgl64.Vec3{0, diameter, 0})

	p := NewPacking(4)
	p.Set(0, Particle{Diameter: diameter, Center: c0})
	p.Set(1, Particle{Diameter: diameter, Center: c1})
	p.Set(2, Particle{Diameter: diameter, Center: c2})
	p.Set(3, Particle{Diameter: diameter, Center: c3})

	s := NewClosestJammingStep(domain, NewNopLogger())
	s.SetParticles(p)
	require.Equal(t, 3, s.bonds.BondCount(), "only the chain's three links should bond, not the non-adjacent pairs")
	require.InDelta(t, 1.0, s.innerDiameterRatio, 1e-9)

	const timeStep = 1e-8
	s.maxTimeStep = timeStep

	require.NoError(t, s.Displace())

	c01 := domain.FillDistance(c1, c0)
	c12 := domain.FillDistance(c2, c1)
	c23 := domain.FillDistance(c3, c2)

	d0 := c01.Mul(-2 * timeStep / 3)
	d1 := c01.Sub(c12).Mul(2 * timeStep / 3)
	d2 := c12.Mul(2 * timeStep / 3).Sub(c23.Mul(timeStep / 2))
	d3 := c23.Mul(timeStep / 2)

	requireVec3AlmostEqual(t, d0, domain.FillDistance(p.Get(0).Center, c0), 1e-5, "particle 0")
	requireVec3AlmostEqual(t, d1, domain.FillDistance(p.Get(1).Center, c1), 1e-5, "particle 1")
	requireVec3AlmostEqual(t, d2, domain.FillDistance(p.Get(2).Center, c2), 1e-5, "particle 2")
	requireVec3AlmostEqual(t, d3, domain.FillDistance(p.Get(3).Center, c3), 1e-5, "particle 3")
}
