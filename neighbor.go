package packing

import "github.com/go-gl/mathgl/mgl64"

// ModellingContext carries the shared, read-only configuration every
// neighbor-stack component needs: the domain. The packing itself is passed
// separately through SetParticles.
type ModellingContext struct {
	Domain Domain
}

// NeighborProvider is the small capability set §9 assigns to both the
// cell-list index and the Verlet overlay. The overlay composes a base
// provider through this same interface instead of duplicating cell-list
// logic.
type NeighborProvider interface {
	SetContext(ctx ModellingContext)
	SetParticles(packing *Packing)

	// NeighborsOfIndex returns candidate neighbor indices for particle i,
	// excluding i itself.
	NeighborsOfIndex(i ParticleIndex) []ParticleIndex
	// NeighborsOfPoint returns candidate neighbor indices for an arbitrary
	// point not tied to a particle. No code in this package calls it.
	NeighborsOfPoint(point mgl64.Vec3) []ParticleIndex

	// StartMove/EndMove bracket a single particle's coordinate mutation.
	// No other mutation may interleave between them (§5).
	StartMove(i ParticleIndex)
	EndMove(i ParticleIndex)

	// TimeToUpdateBoundary returns the time until point, moving along
	// velocity, must trigger a neighbor-structure refresh.
	TimeToUpdateBoundary(point, velocity mgl64.Vec3) float64
}
