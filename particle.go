package packing

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// ParticleIndex is the stable, dense index of a particle within a Packing.
type ParticleIndex int

// Particle holds the attributes owned exclusively by the Packing arena.
// Every other component borrows a Particle by ParticleIndex; none of them
// ever hold a pointer to one.
type Particle struct {
	Diameter  float64
	Center    mgl64.Vec3
	Immobile  bool
}

// Packing is the dense, contiguous arena of particles for one generation
// task. Indices are unique and stable for the arena's lifetime.
type Packing struct {
	particles []Particle
}

// NewPacking allocates a Packing with n zero-valued particles.
func NewPacking(n int) *Packing {
	return &Packing{particles: make([]Particle, n)}
}

func (p *Packing) Len() int { return len(p.particles) }

func (p *Packing) Get(i ParticleIndex) Particle { return p.particles[i] }

func (p *Packing) Set(i ParticleIndex, particle Particle) { p.particles[i] = particle }

func (p *Packing) SetCenter(i ParticleIndex, center mgl64.Vec3) { p.particles[i].Center = center }

// MaxDiameter returns the maximum particle diameter, used by the cell-list
// index to size its cells.
func (p *Packing) MaxDiameter() float64 {
	max := 0.0
	for _, particle := range p.particles {
		if particle.Diameter > max {
			max = particle.Diameter
		}
	}
	return max
}

// ParticlePair is an ordered record of two particle indices and their
// squared normalized distance. FirstIndex == -1 encodes "no pair" (e.g. an
// empty packing's closest pair).
type ParticlePair struct {
	FirstIndex, SecondIndex ParticleIndex
	NormalizedDistanceSq    float64
}

// NoPair is the sentinel ParticlePair returned when no pair exists.
var NoPair = ParticlePair{FirstIndex: -1, SecondIndex: -1, NormalizedDistanceSq: math.Inf(1)}
