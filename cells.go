package packing

import (
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
)

// cell stores the indices of every particle whose center lies in this cell
// or in any of its 3^Dim-1 periodic neighbors (the "unusual" storage model
// from §4.2: O(1) queries, O(3^Dim) updates on a cell-boundary crossing).
type cell struct {
	minCorner      mgl64.Vec3
	size           mgl64.Vec3
	neighborCells  []int
	particles      []ParticleIndex
	permutation    map[ParticleIndex]int
}

func newCell(minCorner, size mgl64.Vec3) *cell {
	return &cell{
		minCorner:   minCorner,
		size:        size,
		permutation: make(map[ParticleIndex]int),
	}
}

func (c *cell) add(i ParticleIndex) {
	c.particles = append(c.particles, i)
	c.permutation[i] = len(c.particles) - 1
}

func (c *cell) remove(i ParticleIndex) {
	idx, ok := c.permutation[i]
	if !ok {
		return
	}
	last := len(c.particles) - 1
	if idx < last {
		moved := c.particles[last]
		c.particles[idx] = moved
		c.permutation[moved] = idx
	}
	c.particles = c.particles[:last]
	delete(c.permutation, i)
}

// CellListNeighborIndex is the cell-list neighbor index described in §4.2,
// grounded on CellListNeighborProvider.cpp's exact construction and
// mutation protocol, restyled after mod_spatialgrid.go's map-keyed cell
// storage.
type CellListNeighborIndex struct {
	ctx ModellingContext

	cellsCounts [Dim]int
	cellSize    mgl64.Vec3

	cells []*cell

	packing *Packing

	movedPrevLattice [Dim]int
}

func NewCellListNeighborIndex() *CellListNeighborIndex {
	return &CellListNeighborIndex{}
}

func (n *CellListNeighborIndex) SetContext(ctx ModellingContext) { n.ctx = ctx }

func (n *CellListNeighborIndex) SetParticles(packing *Packing) {
	n.packing = packing
	n.initializeCellDimensions()
	n.initializeDomainCells()
	n.spreadParticlesByCells()
}

func (n *CellListNeighborIndex) initializeCellDimensions() {
	meanDiameter := n.packing.MaxDiameter()
	if meanDiameter <= 0 {
		meanDiameter = 1
	}
	for i := 0; i < Dim; i++ {
		count := int(math.Floor(n.ctx.Domain.Size[i] / meanDiameter))
		if count < 1 {
			count = 1
		}
		n.cellsCounts[i] = count
		n.cellSize[i] = n.ctx.Domain.Size[i] / float64(count)
	}
}

func (n *CellListNeighborIndex) totalCells() int {
	total := 1
	for i := 0; i < Dim; i++ {
		total *= n.cellsCounts[i]
	}
	return total
}

func (n *CellListNeighborIndex) linearIndex(lattice [Dim]int) int {
	idx := 0
	for i := 0; i < Dim; i++ {
		idx = idx*n.cellsCounts[i] + lattice[i]
	}
	return idx
}

func (n *CellListNeighborIndex) latticeFromLinear(linear int) [Dim]int {
	var lattice [Dim]int
	for i := Dim - 1; i >= 0; i-- {
		lattice[i] = linear % n.cellsCounts[i]
		linear /= n.cellsCounts[i]
	}
	return lattice
}

func (n *CellListNeighborIndex) initializeDomainCells() {
	total := n.totalCells()
	n.cells = make([]*cell, total)
	for i := 0; i < total; i++ {
		lattice := n.latticeFromLinear(i)
		var minCorner mgl64.Vec3
		for d := 0; d < Dim; d++ {
			minCorner[d] = float64(lattice[d]) * n.cellSize[d]
		}
		n.cells[i] = newCell(minCorner, n.cellSize)
		n.cells[i].neighborCells = n.neighborCellIndexes(lattice)
	}
}

// neighborCellIndexes enumerates the (up to) 3^Dim periodic neighbor cells
// of lattice, deduplicated and sorted (only non-unique when a cell-counts
// axis is below 3, mirroring the original's SortAndResizeToUnique call).
func (n *CellListNeighborIndex) neighborCellIndexes(lattice [Dim]int) []int {
	seen := make(map[int]struct{}, 27)
	var offset [Dim]int
	var visit func(axis int)
	visit = func(axis int) {
		if axis == Dim {
			var neighbor [Dim]int
			for d := 0; d < Dim; d++ {
				c := (lattice[d] + offset[d]) % n.cellsCounts[d]
				if c < 0 {
					c += n.cellsCounts[d]
				}
				neighbor[d] = c
			}
			seen[n.linearIndex(neighbor)] = struct{}{}
			return
		}
		for _, o := range [3]int{-1, 0, 1} {
			offset[axis] = o
			visit(axis + 1)
		}
	}
	visit(0)

	result := make([]int, 0, len(seen))
	for idx := range seen {
		result = append(result, idx)
	}
	sort.Ints(result)
	return result
}

func (n *CellListNeighborIndex) latticeOf(point mgl64.Vec3) [Dim]int {
	var lattice [Dim]int
	for i := 0; i < Dim; i++ {
		c := int(math.Floor(point[i] / n.cellSize[i]))
		if c < 0 {
			c = 0
		}
		if c >= n.cellsCounts[i] {
			c = n.cellsCounts[i] - 1
		}
		lattice[i] = c
	}
	return lattice
}

func (n *CellListNeighborIndex) cellOf(point mgl64.Vec3) (int, *cell) {
	idx := n.linearIndex(n.latticeOf(point))
	return idx, n.cells[idx]
}

func (n *CellListNeighborIndex) spreadParticlesByCells() {
	for i := ParticleIndex(0); i < ParticleIndex(n.packing.Len()); i++ {
		particle := n.packing.Get(i)
		_, own := n.cellOf(particle.Center)
		for _, neighborIdx := range own.neighborCells {
			n.cells[neighborIdx].add(i)
		}
	}
}

// NeighborsOfIndex returns candidate neighbors of particle i, excluding i
// itself, via the tail-swap self-exclusion trick from the original: move i
// to the end of its own cell's particle list and report one fewer entry.
func (n *CellListNeighborIndex) NeighborsOfIndex(i ParticleIndex) []ParticleIndex {
	particle := n.packing.Get(i)
	cellIdx, c := n.cellOf(particle.Center)
	_ = cellIdx

	localIdx, ok := c.permutation[i]
	if !ok {
		return nil
	}
	lastIdx := len(c.particles) - 1
	if localIdx < lastIdx {
		other := c.particles[lastIdx]
		c.particles[localIdx] = other
		c.particles[lastIdx] = i
		c.permutation[other] = localIdx
		c.permutation[i] = lastIdx
	}
	return c.particles[:lastIdx]
}

// NeighborsOfPoint returns candidate neighbors of an arbitrary point, with
// no self-exclusion (there is no particle at point to exclude).
func (n *CellListNeighborIndex) NeighborsOfPoint(point mgl64.Vec3) []ParticleIndex {
	_, c := n.cellOf(point)
	return c.particles
}

func (n *CellListNeighborIndex) StartMove(i ParticleIndex) {
	particle := n.packing.Get(i)
	n.movedPrevLattice = n.latticeOf(particle.Center)
}

func (n *CellListNeighborIndex) EndMove(i ParticleIndex) {
	particle := n.packing.Get(i)
	current := n.latticeOf(particle.Center)
	if current == n.movedPrevLattice {
		return
	}

	prevCellIdx := n.linearIndex(n.movedPrevLattice)
	for _, neighborIdx := range n.cells[prevCellIdx].neighborCells {
		n.cells[neighborIdx].remove(i)
	}

	currentCellIdx := n.linearIndex(current)
	for _, neighborIdx := range n.cells[currentCellIdx].neighborCells {
		n.cells[neighborIdx].add(i)
	}
}

func (n *CellListNeighborIndex) TimeToUpdateBoundary(point, velocity mgl64.Vec3) float64 {
	_, c := n.cellOf(point)
	return TimeToLeaveCell(point, velocity, CellBox{MinCorner: c.minCorner, Size: c.size})
}

var _ NeighborProvider = (*CellListNeighborIndex)(nil)
