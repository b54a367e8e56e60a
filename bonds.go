package packing

import "math"

// Bond is an unordered pair of particle indices held near contact by the
// closest-jamming constraint system (§3). First is always the smaller
// index, matching CreateBond's ordering in BondsProvider.cpp.
type Bond struct {
	First, Second ParticleIndex
}

// BondPair links two bonds that share a particle — the off-diagonal terms
// of the closest-jamming linear system come from these.
type BondPair struct {
	FirstBondIndex, SecondBondIndex     int
	CommonParticle                      ParticleIndex
	FirstNeighborIndex, SecondNeighborIndex ParticleIndex
}

// BondsStatistics summarizes one UpdateBonds pass.
type BondsStatistics struct {
	AddedBonds, RemovedBonds   int
	GapsCount, IntersectionsCount int
	MeanGapLength, MeanIntersectionLength float64
}

// BondsProvider maintains the bond graph from §4.8: a flat bond list, a
// per-particle list of bond indices, and a per-particle list of bond-pairs,
// grounded exactly on BondsProvider.cpp's add/remove/swap-removal protocol.
type BondsProvider struct {
	domain    Domain
	packing   *Packing
	neighbors NeighborProvider

	// Threshold is the tolerance band width beta (typically 1e-10).
	Threshold float64

	bonds         []Bond
	bondsPerParticle [][]int
	pairsPerParticle [][]BondPair
}

func NewBondsProvider(neighbors NeighborProvider, domain Domain) *BondsProvider {
	return &BondsProvider{neighbors: neighbors, domain: domain, Threshold: 1e-10}
}

func (b *BondsProvider) Reset(packing *Packing) {
	b.packing = packing
	n := packing.Len()
	b.bonds = nil
	b.bondsPerParticle = make([][]int, n)
	b.pairsPerParticle = make([][]BondPair, n)
}

func (b *BondsProvider) BondCount() int { return len(b.bonds) }

func (b *BondsProvider) Bond(index int) Bond { return b.bonds[index] }

func (b *BondsProvider) BondsOf(i ParticleIndex) []int { return b.bondsPerParticle[i] }

func (b *BondsProvider) BondPairsOf(i ParticleIndex) []BondPair { return b.pairsPerParticle[i] }

func createBond(i, j ParticleIndex) Bond {
	if i < j {
		return Bond{First: i, Second: j}
	}
	return Bond{First: j, Second: i}
}

// GetBondIndex returns the index of the bond between i and j, or -1. A
// direct scan is fast in practice: a particle rarely has more than a dozen
// bonds.
func (b *BondsProvider) GetBondIndex(i, j ParticleIndex) int {
	for _, idx := range b.bondsPerParticle[i] {
		bond := b.bonds[idx]
		if bond.First == j || bond.Second == j {
			return idx
		}
	}
	return -1
}

func (b *BondsProvider) ParticlesShareBond(i, j ParticleIndex) bool {
	return b.GetBondIndex(i, j) >= 0
}

func otherEndpoint(bond Bond, particle ParticleIndex) ParticleIndex {
	if bond.First == particle {
		return bond.Second
	}
	return bond.First
}

// AddBond inserts bond (i,j), building the bond-pairs that connect it to
// every bond already touching i or j at each endpoint.
func (b *BondsProvider) AddBond(i, j ParticleIndex) int {
	bond := createBond(i, j)
	bondIndex := len(b.bonds)
	b.bonds = append(b.bonds, bond)

	b.addBondPairsAt(bond.First, bond, bondIndex)
	b.addBondPairsAt(bond.Second, bond, bondIndex)

	b.bondsPerParticle[bond.First] = append(b.bondsPerParticle[bond.First], bondIndex)
	b.bondsPerParticle[bond.Second] = append(b.bondsPerParticle[bond.Second], bondIndex)

	return bondIndex
}

func (b *BondsProvider) addBondPairsAt(common ParticleIndex, newBond Bond, newBondIndex int) {
	newNeighbor := otherEndpoint(newBond, common)
	for _, existingIdx := range b.bondsPerParticle[common] {
		existingBond := b.bonds[existingIdx]
		pair := BondPair{
			CommonParticle:     common,
			FirstNeighborIndex: otherEndpoint(existingBond, common),
			SecondNeighborIndex: newNeighbor,
		}
		if existingIdx < newBondIndex {
			pair.FirstBondIndex, pair.SecondBondIndex = existingIdx, newBondIndex
		} else {
			pair.FirstBondIndex, pair.SecondBondIndex = newBondIndex, existingIdx
		}
		b.pairsPerParticle[common] = append(b.pairsPerParticle[common], pair)
	}
}

// RemoveBond deletes bond bondIndex, swap-removing it from the flat list
// and fixing up the moved bond's index everywhere it is referenced.
func (b *BondsProvider) RemoveBond(bondIndex int) {
	bond := b.bonds[bondIndex]
	b.removeBondAt(bond.First, bondIndex)
	b.removeBondAt(bond.Second, bondIndex)

	last := len(b.bonds) - 1
	if bondIndex < last {
		moved := b.bonds[last]
		b.bonds[bondIndex] = moved
		b.bonds = b.bonds[:last]
		b.changeBondIndex(moved, last, bondIndex)
	} else {
		b.bonds = b.bonds[:last]
	}
}

func (b *BondsProvider) removeBondAt(particle ParticleIndex, bondIndex int) {
	list := b.bondsPerParticle[particle]
	for idx, v := range list {
		if v == bondIndex {
			list[idx] = list[len(list)-1]
			b.bondsPerParticle[particle] = list[:len(list)-1]
			break
		}
	}

	pairs := b.pairsPerParticle[particle]
	kept := pairs[:0]
	for _, p := range pairs {
		if p.FirstBondIndex != bondIndex && p.SecondBondIndex != bondIndex {
			kept = append(kept, p)
		}
	}
	b.pairsPerParticle[particle] = kept
}

func (b *BondsProvider) changeBondIndex(movedBond Bond, oldIndex, newIndex int) {
	for _, particle := range [2]ParticleIndex{movedBond.First, movedBond.Second} {
		list := b.bondsPerParticle[particle]
		for idx, v := range list {
			if v == oldIndex {
				list[idx] = newIndex
				break
			}
		}
		pairs := b.pairsPerParticle[particle]
		for i := range pairs {
			if pairs[i].FirstBondIndex == oldIndex {
				pairs[i].FirstBondIndex = newIndex
			} else if pairs[i].SecondBondIndex == oldIndex {
				pairs[i].SecondBondIndex = newIndex
			}
			if pairs[i].FirstBondIndex > pairs[i].SecondBondIndex {
				pairs[i].FirstBondIndex, pairs[i].SecondBondIndex = pairs[i].SecondBondIndex, pairs[i].FirstBondIndex
			}
		}
	}
}

// UpdateBonds bonds every pair whose normalized distance is below
// innerDiameterRatio*(1+Threshold), counting those below innerDiameterRatio
// as intersections; pairs at or beyond that bound are counted as gaps and,
// if shouldRemoveBrokenBonds, lose their bond. It returns statistics about
// the pass. Unlike BondsProvider.cpp (which visits each
// pair from both endpoints and halves its counters at the end), this visits
// each unordered pair once, which needs no halving.
func (b *BondsProvider) UpdateBonds(innerDiameterRatio float64, shouldRemoveBrokenBonds bool) BondsStatistics {
	var stats BondsStatistics
	n := b.packing.Len()
	band := innerDiameterRatio * (1 + b.Threshold)

	for i := ParticleIndex(0); i < ParticleIndex(n); i++ {
		particle := b.packing.Get(i)
		for _, j := range b.neighbors.NeighborsOfIndex(i) {
			if j <= i {
				continue
			}
			other := b.packing.Get(j)
			distSq := b.domain.NormalizedDistanceSquared(particle.Center, particle.Diameter, other.Center, other.Diameter)
			normalizedDistance := math.Sqrt(distSq)

			if normalizedDistance < band {
				if !b.ParticlesShareBond(i, j) {
					b.AddBond(i, j)
					stats.AddedBonds++
				}
				if normalizedDistance < innerDiameterRatio {
					stats.IntersectionsCount++
					stats.MeanIntersectionLength += innerDiameterRatio - normalizedDistance
				}
			} else {
				if idx := b.GetBondIndex(i, j); idx >= 0 && shouldRemoveBrokenBonds {
					b.RemoveBond(idx)
					stats.RemovedBonds++
				}
				stats.GapsCount++
				stats.MeanGapLength += normalizedDistance - innerDiameterRatio
			}
		}
	}

	if stats.GapsCount > 0 {
		stats.MeanGapLength /= float64(stats.GapsCount)
	}
	if stats.IntersectionsCount > 0 {
		stats.MeanIntersectionLength /= float64(stats.IntersectionsCount)
	}
	return stats
}
