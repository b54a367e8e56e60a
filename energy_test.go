package packing

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/require"
)

func newEnergyEngineOnCells(domain Domain, p *Packing) (*EnergyForceEngine, *CellListNeighborIndex) {
	cells := NewCellListNeighborIndex()
	cells.SetContext(ModellingContext{Domain: domain})
	cells.SetParticles(p)
	e := NewEnergyForceEngine(cells, domain)
	e.SetParticles(p)
	return e, cells
}

// Scenario 5 (spec §8), monodisperse N=4, diameter 1, box 10^3: four
// touching centers forming a unit square have no rattlers (each has two
// contacting edge neighbors; the two diagonals do not contact). Contacts
// are probed at a contraction ratio just under 1 (0.999), the usual way a
// generator classifies exact-contact pairs as neighbors despite living at
// normalized distance 1 rather than strictly inside it.
func TestScenario5RattlerClassificationUnitSquare(t *testing.T) {
	domain := Domain{Size: mgl64.Vec3{10, 10, 10}}
	p := NewPacking(4)
	p.Set(0, Particle{Diameter: 1, Center: mgl64.Vec3{0, 0, 0}})
	p.Set(1, Particle{Diameter: 1, Center: mgl64.Vec3{1, 0, 0}})
	p.Set(2, Particle{Diameter: 1, Center: mgl64.Vec3{0, 1, 0}})
	p.Set(3, Particle{Diameter: 1, Center: mgl64.Vec3{1, 1, 0}})

	e, _ := newEnergyEngineOnCells(domain, p)
	_, nonRattlerCounts, _ := e.GetContractionEnergies([]float64{0.999}, []PairPotential{HarmonicPotential{Power: 2}}, 1)
	require.Equal(t, 4, nonRattlerCounts[0], "all four particles should have at least one contact, so none is a rattler")
}

// Moving particle 1 away from the square isolates it: it loses both its
// edge contacts and becomes the sole rattler.
func TestScenario5RattlerClassificationOneIsolated(t *testing.T) {
	domain := Domain{Size: mgl64.Vec3{10, 10, 10}}
	p := NewPacking(4)
	p.Set(0, Particle{Diameter: 1, Center: mgl64.Vec3{0, 0, 0}})
	p.Set(1, Particle{Diameter: 1, Center: mgl64.Vec3{7, 7, 0}})
	p.Set(2, Particle{Diameter: 1, Center: mgl64.Vec3{0, 1, 0}})
	p.Set(3, Particle{Diameter: 1, Center: mgl64.Vec3{1, 1, 0}})

	e, _ := newEnergyEngineOnCells(domain, p)
	minNeighbors := 1
	_, nonRattlerCounts, _ := e.GetContractionEnergies([]float64{0.999}, []PairPotential{HarmonicPotential{Power: 2}}, minNeighbors)
	require.Equal(t, 3, nonRattlerCounts[0], "particles 0, 2, 3 keep at least one contact; particle 1 is now isolated")
}

// Shrinking every diameter to 0.1 with the same centers opens a large gap
// relative to the new diameters, so no pair overlaps and every particle is
// a rattler.
func TestScenario5RattlerClassificationAllShrunk(t *testing.T) {
	domain := Domain{Size: mgl64.Vec3{10, 10, 10}}
	p := NewPacking(4)
	p.Set(0, Particle{Diameter: 0.1, Center: mgl64.Vec3{0, 0, 0}})
	p.Set(1, Particle{Diameter: 0.1, Center: mgl64.Vec3{1, 0, 0}})
	p.Set(2, Particle{Diameter: 0.1, Center: mgl64.Vec3{0, 1, 0}})
	p.Set(3, Particle{Diameter: 0.1, Center: mgl64.Vec3{1, 1, 0}})

	e, _ := newEnergyEngineOnCells(domain, p)
	_, nonRattlerCounts, _ := e.GetContractionEnergies([]float64{0.999}, []PairPotential{HarmonicPotential{Power: 2}}, 1)
	require.Equal(t, 0, nonRattlerCounts[0], "no pair is within its shrunken contact distance, so every particle is a rattler")
}

func TestHarmonicPotentialEnergyAndForceSigns(t *testing.T) {
	h := HarmonicPotential{Power: 2}

	res := h.Energy(1, 1, 1.5) // r >= halfSum: no overlap
	require.False(t, res.Valid)

	res = h.Energy(1, 1, 0.5) // r < halfSum: overlap
	require.True(t, res.Valid)
	require.InDelta(t, 0.25, res.Value, 1e-12) // (1 - 0.5/1)^2

	force := h.RepulsionForce(1, 1, 0.5)
	require.True(t, force.Valid)
	require.Greater(t, force.Value, 0.0)
}

func TestBezrukovPotentialHasNoEnergy(t *testing.T) {
	b := BezrukovPotential{}
	require.False(t, b.Energy(1, 1, 0.5).Valid)
	force := b.RepulsionForce(1, 1, 0.5)
	require.True(t, force.Valid)
	require.Greater(t, force.Value, 0.0)
}

func TestImpermeableAttractionPotentialOverlapDominatesAttraction(t *testing.T) {
	p := ImpermeableAttractionPotential{Repulsion: HarmonicPotential{Power: 2}}
	overlap := p.Energy(1, 1, 0.9) // inside contact: harmonic overlap * 1e10
	outside := p.Energy(1, 1, 1.1) // outside contact: small attraction term
	require.Greater(t, overlap.Value, outside.Value)
}
