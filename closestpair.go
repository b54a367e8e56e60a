package packing

import (
	"container/heap"
	"math"
)

// closestPairItem is one slot of the priority queue, restyled after
// ai_nav_utils.go's PathNode/PriorityQueue: an index field lets HandleUpdate
// reorder in O(log N) via heap.Fix instead of a linear scan.
type closestPairItem struct {
	particle ParticleIndex
	distSq   float64
	index    int
}

type closestPairHeap []*closestPairItem

func (h closestPairHeap) Len() int            { return len(h) }
func (h closestPairHeap) Less(i, j int) bool  { return h[i].distSq < h[j].distSq }
func (h closestPairHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *closestPairHeap) Push(x any) {
	item := x.(*closestPairItem)
	item.index = len(*h)
	*h = append(*h, item)
}
func (h *closestPairHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// ClosestPairStructure is the per-particle nearest-neighbor cache plus
// ordered priority queue from §4.4, grounded exactly on
// ClosestPairProvider.cpp's StartMove/EndMove bracket ordering: StartMove
// recomputes stale neighbor entries *before* delegating to the base
// neighbor provider's own StartMove; EndMove delegates to the base provider
// *first*, then recomputes. Replicating this asymmetry is load-bearing —
// see DESIGN.md.
type ClosestPairStructure struct {
	neighbors NeighborProvider
	domain    Domain
	packing   *Packing

	entries []ParticleWithNeighbor
	items   []*closestPairItem
	queue   closestPairHeap
}

// ParticleWithNeighbor is the closest-neighbor entry from §3.
type ParticleWithNeighbor struct {
	ClosestNeighborIndex         ParticleIndex
	ClosestNormalizedDistanceSq  float64
}

func NewClosestPairStructure(neighbors NeighborProvider, domain Domain) *ClosestPairStructure {
	return &ClosestPairStructure{neighbors: neighbors, domain: domain}
}

func (c *ClosestPairStructure) SetParticles(packing *Packing) {
	c.packing = packing
	n := packing.Len()
	c.entries = make([]ParticleWithNeighbor, n)
	c.items = make([]*closestPairItem, n)
	c.queue = make(closestPairHeap, 0, n)

	for i := ParticleIndex(0); i < ParticleIndex(n); i++ {
		c.entries[i] = c.fillClosestNeighbor(i, -1)
		item := &closestPairItem{particle: i, distSq: c.entries[i].ClosestNormalizedDistanceSq}
		c.items[i] = item
		heap.Push(&c.queue, item)
	}
}

// fillClosestNeighbor scans i's current neighbor candidates (excluding
// excludeIndex, if >= 0) and returns the closest one.
func (c *ClosestPairStructure) fillClosestNeighbor(i ParticleIndex, excludeIndex ParticleIndex) ParticleWithNeighbor {
	particle := c.packing.Get(i)
	best := ParticleWithNeighbor{ClosestNeighborIndex: -1, ClosestNormalizedDistanceSq: math.Inf(1)}

	for _, j := range c.neighbors.NeighborsOfIndex(i) {
		if j == excludeIndex {
			continue
		}
		other := c.packing.Get(j)
		distSq := c.domain.NormalizedDistanceSquared(particle.Center, particle.Diameter, other.Center, other.Diameter)
		if distSq < best.ClosestNormalizedDistanceSq {
			best = ParticleWithNeighbor{ClosestNeighborIndex: j, ClosestNormalizedDistanceSq: distSq}
		}
	}
	return best
}

func (c *ClosestPairStructure) handleUpdate(i ParticleIndex) {
	c.items[i].distSq = c.entries[i].ClosestNormalizedDistanceSq
	heap.Fix(&c.queue, c.items[i].index)
}

// StartMove removes i as the recorded closest neighbor of every particle
// that currently points at it, before the base provider's own StartMove
// runs (its candidate lists must still include i while we recompute).
func (c *ClosestPairStructure) StartMove(i ParticleIndex) {
	for _, j := range c.neighbors.NeighborsOfIndex(i) {
		if c.entries[j].ClosestNeighborIndex == i {
			c.entries[j] = c.fillClosestNeighbor(j, i)
			c.handleUpdate(j)
		}
	}
	c.neighbors.StartMove(i)
}

// EndMove delegates to the base provider first (so i's candidate lists
// reflect its new position), then recomputes i's own closest neighbor and
// offers i as a candidate closest neighbor to every particle it is now
// nearer to than their recorded entry.
func (c *ClosestPairStructure) EndMove(i ParticleIndex) {
	c.neighbors.EndMove(i)

	particle := c.packing.Get(i)
	c.entries[i] = c.fillClosestNeighbor(i, -1)

	for _, j := range c.neighbors.NeighborsOfIndex(i) {
		other := c.packing.Get(j)
		distSq := c.domain.NormalizedDistanceSquared(particle.Center, particle.Diameter, other.Center, other.Diameter)
		if distSq < c.entries[j].ClosestNormalizedDistanceSq {
			c.entries[j] = ParticleWithNeighbor{ClosestNeighborIndex: i, ClosestNormalizedDistanceSq: distSq}
			c.handleUpdate(j)
		}
	}
	c.handleUpdate(i)
}

// FindClosestPair returns the globally closest pair in O(1).
func (c *ClosestPairStructure) FindClosestPair() ParticlePair {
	if len(c.queue) == 0 {
		return NoPair
	}
	top := c.queue[0]
	entry := c.entries[top.particle]
	return ParticlePair{
		FirstIndex:           top.particle,
		SecondIndex:          entry.ClosestNeighborIndex,
		NormalizedDistanceSq: entry.ClosestNormalizedDistanceSq,
	}
}

// Entry exposes the recorded closest-neighbor entry for particle i.
func (c *ClosestPairStructure) Entry(i ParticleIndex) ParticleWithNeighbor { return c.entries[i] }
