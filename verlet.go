package packing

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// VerletOverlay wraps a base NeighborProvider (the cell-list index, in
// practice) with a cached per-particle candidate set that is only refreshed
// once a particle has moved more than half the Verlet skin since its list
// was last built (§4.3). It never duplicates the base provider's own
// cell-membership bookkeeping — composition only.
type VerletOverlay struct {
	base NeighborProvider

	ctx     ModellingContext
	packing *Packing

	cutoff float64
	rhoMax float64

	lists   [][]ParticleIndex
	builtAt []mgl64.Vec3
}

// NewVerletOverlay wraps base. cutoff defaults to the mean diameter when 0
// is passed; rhoMax is the upper bound on outer/inner diameter ratio used to
// size the Verlet sphere (§4.3 suggests 1.1).
func NewVerletOverlay(base NeighborProvider, cutoff, rhoMax float64) *VerletOverlay {
	if rhoMax <= 0 {
		rhoMax = 1.1
	}
	return &VerletOverlay{base: base, cutoff: cutoff, rhoMax: rhoMax}
}

func (v *VerletOverlay) SetContext(ctx ModellingContext) {
	v.ctx = ctx
	v.base.SetContext(ctx)
}

func (v *VerletOverlay) SetParticles(packing *Packing) {
	v.packing = packing
	v.base.SetParticles(packing)

	if v.cutoff == 0 && packing.Len() > 0 {
		total := 0.0
		for i := 0; i < packing.Len(); i++ {
			total += packing.Get(ParticleIndex(i)).Diameter
		}
		v.cutoff = total / float64(packing.Len())
	}

	n := packing.Len()
	v.lists = make([][]ParticleIndex, n)
	v.builtAt = make([]mgl64.Vec3, n)
	for i := ParticleIndex(0); i < ParticleIndex(n); i++ {
		v.rebuild(i)
	}
	v.enforceSymmetry()
}

func (v *VerletOverlay) verletRadius(i ParticleIndex) float64 {
	d := v.packing.Get(i).Diameter
	return (d*v.rhoMax + v.cutoff) / 2
}

// rebuild recomputes i's candidate list from the base provider, keeping only
// neighbors whose Verlet spheres overlap i's.
func (v *VerletOverlay) rebuild(i ParticleIndex) {
	particle := v.packing.Get(i)
	candidates := v.base.NeighborsOfIndex(i)
	radiusI := v.verletRadius(i)

	kept := make([]ParticleIndex, 0, len(candidates))
	for _, j := range candidates {
		other := v.packing.Get(j)
		delta := v.ctx.Domain.FillDistance(particle.Center, other.Center)
		if delta.Len() <= radiusI+v.verletRadius(j) {
			kept = append(kept, j)
		}
	}
	v.lists[i] = kept
	v.builtAt[i] = particle.Center
}

// enforceSymmetry guarantees j in list(i) implies i in list(j), regardless
// of whether the base provider's candidate lists were themselves symmetric.
func (v *VerletOverlay) enforceSymmetry() {
	present := make([]map[ParticleIndex]struct{}, len(v.lists))
	for i := range v.lists {
		present[i] = make(map[ParticleIndex]struct{}, len(v.lists[i]))
		for _, j := range v.lists[i] {
			present[i][j] = struct{}{}
		}
	}
	for i := range v.lists {
		for _, j := range v.lists[i] {
			if _, ok := present[j][ParticleIndex(i)]; !ok {
				v.lists[j] = append(v.lists[j], ParticleIndex(i))
				present[j][ParticleIndex(i)] = struct{}{}
			}
		}
	}
}

func (v *VerletOverlay) removeFromNeighbors(i ParticleIndex) {
	for _, j := range v.lists[i] {
		list := v.lists[j]
		for idx, k := range list {
			if k == i {
				list[idx] = list[len(list)-1]
				v.lists[j] = list[:len(list)-1]
				break
			}
		}
	}
}

func (v *VerletOverlay) NeighborsOfIndex(i ParticleIndex) []ParticleIndex {
	return v.lists[i]
}

func (v *VerletOverlay) NeighborsOfPoint(point mgl64.Vec3) []ParticleIndex {
	return v.base.NeighborsOfPoint(point)
}

func (v *VerletOverlay) StartMove(i ParticleIndex) {
	v.base.StartMove(i)
}

func (v *VerletOverlay) EndMove(i ParticleIndex) {
	v.base.EndMove(i)

	particle := v.packing.Get(i)
	displacement := v.ctx.Domain.FillDistance(particle.Center, v.builtAt[i]).Len()
	if displacement <= v.cutoff/2 {
		return
	}

	v.removeFromNeighbors(i)
	v.rebuild(i)
	for _, j := range v.lists[i] {
		found := false
		for _, k := range v.lists[j] {
			if k == i {
				found = true
				break
			}
		}
		if !found {
			v.lists[j] = append(v.lists[j], i)
		}
	}
}

func (v *VerletOverlay) TimeToUpdateBoundary(point, velocity mgl64.Vec3) float64 {
	return v.base.TimeToUpdateBoundary(point, velocity)
}

// VerletExitTime returns the time until particle i, moving at velocity,
// crosses the boundary of the Verlet sphere its candidate list was last
// built from — the trigger for a neighbor-list transfer event (§4.7),
// distinct from the base provider's own cell-boundary crossing. A result
// below zero from SphereIntersectionTime (no future crossing, e.g. zero
// velocity) is reported as +Inf so callers can treat it like any other
// event with no known time.
func (v *VerletOverlay) VerletExitTime(i ParticleIndex, velocity mgl64.Vec3) float64 {
	particle := v.packing.Get(i)
	t := SphereIntersectionTime(particle.Center, velocity, v.builtAt[i], v.cutoff/2)
	if t < 0 {
		return math.Inf(1)
	}
	return t
}

var _ NeighborProvider = (*VerletOverlay)(nil)
