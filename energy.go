package packing

import (
	"sort"

	"github.com/go-gl/mathgl/mgl64"
)

// EnergyForceEngine sums pair potentials/forces over a neighbor stack,
// reports the closest pair encountered along the way, and supports rattler
// filtering, grounded on EnergyService.cpp.
type EnergyForceEngine struct {
	neighbors NeighborProvider
	domain    Domain
	packing   *Packing

	// MaxCloseNeighborsCount, when > 0, restricts force/energy summation to
	// the k nearest neighbors by surface-to-surface distance (not
	// normalized distance, so small and large particles are treated
	// alike). It is 0 (no restriction) unless the caller sets it; none of
	// the step engines in this package sets it.
	MaxCloseNeighborsCount int
}

func NewEnergyForceEngine(neighbors NeighborProvider, domain Domain) *EnergyForceEngine {
	return &EnergyForceEngine{neighbors: neighbors, domain: domain}
}

func (e *EnergyForceEngine) SetParticles(packing *Packing) { e.packing = packing }

type neighborDistance struct {
	index          ParticleIndex
	distance       float64
	surfaceDistance float64
}

func (e *EnergyForceEngine) neighborDistances(i ParticleIndex) []neighborDistance {
	particle := e.packing.Get(i)
	ids := e.neighbors.NeighborsOfIndex(i)
	out := make([]neighborDistance, 0, len(ids))
	for _, j := range ids {
		other := e.packing.Get(j)
		delta := e.domain.FillDistance(other.Center, particle.Center)
		dist := delta.Len()
		out = append(out, neighborDistance{
			index:           j,
			distance:        dist,
			surfaceDistance: dist - (particle.Diameter+other.Diameter)/2,
		})
	}
	return out
}

// filterClose keeps only the MaxCloseNeighborsCount nearest entries by
// surface distance, when that localization is enabled.
func (e *EnergyForceEngine) filterClose(all []neighborDistance) []neighborDistance {
	if e.MaxCloseNeighborsCount <= 0 || len(all) <= e.MaxCloseNeighborsCount {
		return all
	}
	sort.Slice(all, func(a, b int) bool { return all[a].surfaceDistance < all[b].surfaceDistance })
	return all[:e.MaxCloseNeighborsCount]
}

func (e *EnergyForceEngine) updateClosestPair(i ParticleIndex, neighbors []neighborDistance, closest *ParticlePair) {
	particle := e.packing.Get(i)
	for _, nd := range neighbors {
		other := e.packing.Get(nd.index)
		halfSum := (particle.Diameter + other.Diameter) / 2
		ratio := nd.distance / halfSum
		distSq := ratio * ratio
		if distSq < closest.NormalizedDistanceSq {
			*closest = ParticlePair{FirstIndex: i, SecondIndex: nd.index, NormalizedDistanceSq: distSq}
		}
	}
}

// GetContractionEnergies computes, for each (contraction ratio, potential)
// pair, the summed pair energy and the count of non-rattler particles (at
// least minNeighborsCount overlapping neighbors under that contraction).
func (e *EnergyForceEngine) GetContractionEnergies(ratios []float64, potentials []PairPotential, minNeighborsCount int) (energies []float64, nonRattlerCounts []int, closestPair ParticlePair) {
	k := len(ratios)
	energies = make([]float64, k)
	nonRattlerCounts = make([]int, k)
	closestPair = NoPair

	for i := ParticleIndex(0); i < ParticleIndex(e.packing.Len()); i++ {
		if e.packing.Get(i).Immobile {
			continue
		}
		all := e.neighborDistances(i)
		e.updateClosestPair(i, all, &closestPair)
		neighbors := e.filterClose(all)
		particle := e.packing.Get(i)

		for m := 0; m < k; m++ {
			count := 0
			for _, nd := range neighbors {
				other := e.packing.Get(nd.index)
				res := potentials[m].Energy(particle.Diameter, other.Diameter, nd.distance*ratios[m])
				if res.Valid {
					energies[m] += res.Value
					count++
				}
			}
			if count >= minNeighborsCount {
				nonRattlerCounts[m]++
			}
		}
	}
	return
}

// FillParticleForces computes per-particle net force at contraction ratio
// ratio under potential p, returning the closest pair encountered.
func (e *EnergyForceEngine) FillParticleForces(ratio float64, p PairPotential, forces []mgl64.Vec3) ParticlePair {
	closestPair := NoPair

	for i := ParticleIndex(0); i < ParticleIndex(e.packing.Len()); i++ {
		particle := e.packing.Get(i)
		if particle.Immobile {
			forces[i] = mgl64.Vec3{}
			continue
		}
		all := e.neighborDistances(i)
		e.updateClosestPair(i, all, &closestPair)
		neighbors := e.filterClose(all)

		var force mgl64.Vec3
		for _, nd := range neighbors {
			other := e.packing.Get(nd.index)
			res := p.RepulsionForce(particle.Diameter, other.Diameter, nd.distance*ratio)
			if !res.Valid {
				continue
			}
			// delta points from the particle toward the neighbor; scaling
			// by -forceLen/distance reverses it, pushing the particle away
			// from the neighbor for a positive (repulsive) force.
			delta := e.domain.FillDistance(other.Center, particle.Center)
			force = force.Add(delta.Mul(-res.Value / nd.distance))
		}
		forces[i] = force
	}
	return closestPair
}
