package packing

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// hcpParticleCount is the only lattice size this builder supports: four
// twelve-sphere layers (A/B/A/B stacking), grounded on HcpGenerator.cpp,
// which hard-codes the same count for the same reason — a periodic HCP
// lattice at an arbitrary particle count does not tile a rectangular box.
const hcpParticleCount = 48

// HCPLatticeSize returns the periodic box extent that exactly fits
// hcpParticleCount equal spheres of the given diameter on the HCP lattice,
// touching but never overlapping. Grounded on
// HcpGenerator.cpp:FillExpectedSize.
func HCPLatticeSize(diameter float64) mgl64.Vec3 {
	radius := diameter * 0.5
	return mgl64.Vec3{
		6 * radius,
		4 * math.Sqrt(3) * radius,
		8 * math.Sqrt(6) / 3 * radius,
	}
}

// NewHCPPacking arranges hcpParticleCount equal-diameter spheres on the
// hexagonal-close-packed lattice, grounded on HcpGenerator.cpp:
// ArrangePacking/AddLayerA/AddLayerB/AddRowAlongX. Each layer is four rows of
// three spheres along x; B layers are shifted by +radius along x and
// radius/sqrt(3) along y relative to A layers, and layers stack A-B-A-B at
// height radius*2*sqrt(6)/3 apart. The result is meant to be used with a
// Domain sized by HCPLatticeSize(diameter).
func NewHCPPacking(diameter float64) *Packing {
	b := &hcpBuilder{packing: NewPacking(hcpParticleCount), diameter: diameter, radius: diameter * 0.5}

	heightBetweenLayers := b.radius * 2 * math.Sqrt(6) / 3
	layerBShiftY := b.radius / math.Sqrt(3)

	b.addLayer(mgl64.Vec3{0, 0, 0}, b.radius)
	b.addLayer(mgl64.Vec3{b.radius, layerBShiftY, heightBetweenLayers}, -b.radius)
	b.addLayer(mgl64.Vec3{0, 0, 2 * heightBetweenLayers}, b.radius)
	b.addLayer(mgl64.Vec3{b.radius, layerBShiftY, 3 * heightBetweenLayers}, -b.radius)

	return b.packing
}

type hcpBuilder struct {
	packing  *Packing
	diameter float64
	radius   float64
	next     ParticleIndex
}

func (b *hcpBuilder) addRow(origin mgl64.Vec3) {
	for i := 0; i < 3; i++ {
		center := origin
		center[0] += float64(i) * 2 * b.radius
		b.packing.Set(b.next, Particle{Diameter: b.diameter, Center: center})
		b.next++
	}
}

// addLayer lays out one twelve-sphere HCP layer as four rows along x, each
// successive row shifted by rowShiftY along y and alternating by
// +/-rowShiftX along x.
func (b *hcpBuilder) addLayer(firstCenter mgl64.Vec3, rowShiftX float64) {
	rowShiftY := b.radius * math.Sqrt(3)
	origin := firstCenter

	b.addRow(origin)

	origin[0] += rowShiftX
	origin[1] += rowShiftY
	b.addRow(origin)

	origin[0] -= rowShiftX
	origin[1] += rowShiftY
	b.addRow(origin)

	origin[0] += rowShiftX
	origin[1] += rowShiftY
	b.addRow(origin)
}
