package packing

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/require"
)

func randomPackingForVerlet() (Domain, *Packing) {
	domain := Domain{Size: mgl64.Vec3{20, 20, 20}}
	p := NewPacking(30)
	rng := NewTaskRNG(7)
	for i := 0; i < p.Len(); i++ {
		center := domain.EnsureBoundaries(mgl64.Vec3{
			rng.Float64() * 20,
			rng.Float64() * 20,
			rng.Float64() * 20,
		})
		p.Set(ParticleIndex(i), Particle{Diameter: 1, Center: center})
	}
	return domain, p
}

func newVerletOnCells(domain Domain, p *Packing) *VerletOverlay {
	cells := NewCellListNeighborIndex()
	cells.SetContext(ModellingContext{Domain: domain})
	cells.SetParticles(p)
	v := NewVerletOverlay(cells, 0, 1.1)
	v.SetContext(ModellingContext{Domain: domain})
	v.SetParticles(p)
	return v
}

// Verlet overlay symmetry invariant (spec §8): for all i, for all j in
// verlet(i), i must be in verlet(j).
func TestVerletOverlaySymmetry(t *testing.T) {
	domain, p := randomPackingForVerlet()
	v := newVerletOnCells(domain, p)

	for i := ParticleIndex(0); i < ParticleIndex(p.Len()); i++ {
		for _, j := range v.NeighborsOfIndex(i) {
			require.Contains(t, v.NeighborsOfIndex(j), i, "verlet symmetry violated for pair (%d,%d)", i, j)
		}
	}
}

// Symmetry must still hold after a sequence of small moves that keep every
// particle below the rebuild threshold, and also after moves large enough
// to trigger a rebuild.
func TestVerletOverlaySymmetryAfterMoves(t *testing.T) {
	domain, p := randomPackingForVerlet()
	v := newVerletOnCells(domain, p)

	rng := NewTaskRNG(99)
	for i := ParticleIndex(0); i < ParticleIndex(p.Len()); i++ {
		v.StartMove(i)
		particle := p.Get(i)
		delta := mgl64.Vec3{rng.Float64() - 0.5, rng.Float64() - 0.5, rng.Float64() - 0.5}
		p.SetCenter(i, domain.EnsureBoundaries(particle.Center.Add(delta)))
		v.EndMove(i)
	}

	for i := ParticleIndex(0); i < ParticleIndex(p.Len()); i++ {
		for _, j := range v.NeighborsOfIndex(i) {
			require.Contains(t, v.NeighborsOfIndex(j), i, "verlet symmetry violated after moves for pair (%d,%d)", i, j)
		}
	}
}

// A no-op StartMove/EndMove bracket must leave the cell-list neighbor
// index's reported candidates unchanged (spec §8 round-trip property).
func TestCellListNoOpMoveIsIdempotent(t *testing.T) {
	domain, p := randomPackingForVerlet()
	cells := NewCellListNeighborIndex()
	cells.SetContext(ModellingContext{Domain: domain})
	cells.SetParticles(p)

	before := make([][]ParticleIndex, p.Len())
	for i := range before {
		ids := cells.NeighborsOfIndex(ParticleIndex(i))
		before[i] = append([]ParticleIndex(nil), ids...)
	}

	for i := ParticleIndex(0); i < ParticleIndex(p.Len()); i++ {
		cells.StartMove(i)
		p.SetCenter(i, p.Get(i).Center)
		cells.EndMove(i)
	}

	for i := range before {
		after := cells.NeighborsOfIndex(ParticleIndex(i))
		require.ElementsMatch(t, before[i], after, "particle %d neighbor set changed after a no-op move", i)
	}
}
