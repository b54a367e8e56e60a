package packing

import (
	"sort"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/require"
)

func sortedIndices(ids []ParticleIndex) []ParticleIndex {
	out := append([]ParticleIndex(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Every particle within the same cell as i must appear in i's candidate
// list, and i must never appear in its own list (self-exclusion).
func TestCellListNeighborsOfIndexExcludesSelf(t *testing.T) {
	domain := Domain{Size: mgl64.Vec3{10, 10, 10}}
	p := NewPacking(3)
	p.Set(0, Particle{Diameter: 1, Center: mgl64.Vec3{5, 5, 5}})
	p.Set(1, Particle{Diameter: 1, Center: mgl64.Vec3{5.1, 5, 5}})
	p.Set(2, Particle{Diameter: 1, Center: mgl64.Vec3{5.2, 5, 5}})

	cells := NewCellListNeighborIndex()
	cells.SetContext(ModellingContext{Domain: domain})
	cells.SetParticles(p)

	for i := ParticleIndex(0); i < 3; i++ {
		ids := cells.NeighborsOfIndex(i)
		require.NotContains(t, ids, i)
	}
	require.ElementsMatch(t, []ParticleIndex{1, 2}, cells.NeighborsOfIndex(0))
}

// Moving a particle across a cell boundary and back via StartMove/EndMove
// must leave every cell's membership exactly as a from-scratch rebuild
// (SetParticles) on the final positions would.
func TestCellListRebuildMatchesIncrementalUpdates(t *testing.T) {
	domain := Domain{Size: mgl64.Vec3{10, 10, 10}}
	p := NewPacking(5)
	p.Set(0, Particle{Diameter: 1, Center: mgl64.Vec3{0.5, 0.5, 0.5}})
	p.Set(1, Particle{Diameter: 1, Center: mgl64.Vec3{1.5, 0.5, 0.5}})
	p.Set(2, Particle{Diameter: 1, Center: mgl64.Vec3{2.5, 0.5, 0.5}})
	p.Set(3, Particle{Diameter: 1, Center: mgl64.Vec3{0.5, 1.5, 0.5}})
	p.Set(4, Particle{Diameter: 1, Center: mgl64.Vec3{9.5, 9.5, 9.5}})

	incremental := NewCellListNeighborIndex()
	incremental.SetContext(ModellingContext{Domain: domain})
	incremental.SetParticles(p)

	// Move particle 4 across several cell boundaries via StartMove/EndMove.
	incremental.StartMove(4)
	p.SetCenter(4, mgl64.Vec3{2.5, 1.5, 0.5})
	incremental.EndMove(4)

	// Move particle 0 within its own cell (no boundary crossed).
	incremental.StartMove(0)
	p.SetCenter(0, mgl64.Vec3{0.6, 0.6, 0.5})
	incremental.EndMove(0)

	fromScratch := NewCellListNeighborIndex()
	fromScratch.SetContext(ModellingContext{Domain: domain})
	fromScratch.SetParticles(p)

	for i := ParticleIndex(0); i < 5; i++ {
		require.Equal(t, sortedIndices(fromScratch.NeighborsOfIndex(i)), sortedIndices(incremental.NeighborsOfIndex(i)),
			"particle %d's candidate set diverged between incremental updates and a from-scratch rebuild", i)
	}
}

// TimeToUpdateBoundary must return a positive time for a particle sitting on
// its cell's lower x face and moving in +x, into the cell.
func TestCellListTimeToUpdateBoundaryPositiveInsideCell(t *testing.T) {
	domain := Domain{Size: mgl64.Vec3{10, 10, 10}}
	p := NewPacking(1)
	p.Set(0, Particle{Diameter: 1, Center: mgl64.Vec3{5, 5, 5}})

	cells := NewCellListNeighborIndex()
	cells.SetContext(ModellingContext{Domain: domain})
	cells.SetParticles(p)

	tm := cells.TimeToUpdateBoundary(mgl64.Vec3{5, 5, 5}, mgl64.Vec3{1, 0, 0})
	require.Greater(t, tm, 0.0)
}
