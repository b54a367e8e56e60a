package packing

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

// PackingStatistics accumulates the per-run physical quantities the
// Lubachevsky-Stillinger step reports (§6): reduced pressure from
// exchanged momentum over elapsed time, plus event bookkeeping. The driver
// does not read it; it is not part of the logs or of PackingInfo.
type PackingStatistics struct {
	ExchangedMomentum      float64
	ElapsedTime            float64
	EventCount             int
	KineticEnergy          float64
	CollisionErrorsHappened bool
}

// ReducedPressure returns p/(rho*k*T) from the exchanged momentum over a
// time window, per the standard virial-theorem estimator for event-driven
// hard-sphere dynamics: P = 1 + dp / (Dim * N * k * T * dt).
func (s PackingStatistics) ReducedPressure(particlesCount int, temperature float64) float64 {
	if s.ElapsedTime <= 0 || particlesCount == 0 || temperature <= 0 {
		return 1
	}
	return 1 + s.ExchangedMomentum/(float64(Dim)*float64(particlesCount)*temperature*s.ElapsedTime)
}

// PackingInfo is the summary record returned once a Driver.Run completes or
// fails (§6): porosity achieved versus theoretical, convergence tolerance,
// and how long it took.
type PackingInfo struct {
	TheoreticalPorosity float64
	AchievedPorosity    float64
	Tolerance           float64
	Iterations          int
	WallTime            time.Duration
}

// packingRecordBytes is the on-disk size of one particle: center (3
// float64) plus diameter (1 float64), little-endian, matching the binary
// packing-file layout in §6.
const packingRecordBytes = 4 * 8

// WritePacking serializes packing as packingRecordBytes-per-particle
// little-endian records: x, y, z, diameter.
func WritePacking(w io.Writer, packing *Packing) error {
	buf := bufio.NewWriter(w)
	var scratch [packingRecordBytes]byte
	for i := 0; i < packing.Len(); i++ {
		p := packing.Get(ParticleIndex(i))
		binary.LittleEndian.PutUint64(scratch[0:8], math.Float64bits(p.Center[0]))
		binary.LittleEndian.PutUint64(scratch[8:16], math.Float64bits(p.Center[1]))
		binary.LittleEndian.PutUint64(scratch[16:24], math.Float64bits(p.Center[2]))
		binary.LittleEndian.PutUint64(scratch[24:32], math.Float64bits(p.Diameter))
		if _, err := buf.Write(scratch[:]); err != nil {
			return wrapError(ErrorKindPrecondition, err, "writing packing record %d", i)
		}
	}
	return buf.Flush()
}

// ReadPacking deserializes a stream written by WritePacking.
func ReadPacking(r io.Reader) (*Packing, error) {
	br := bufio.NewReader(r)
	var particles []Particle
	var scratch [packingRecordBytes]byte
	for {
		_, err := io.ReadFull(br, scratch[:])
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, wrapError(ErrorKindPrecondition, err, "reading packing record %d", len(particles))
		}
		var center mgl64.Vec3
		center[0] = math.Float64frombits(binary.LittleEndian.Uint64(scratch[0:8]))
		center[1] = math.Float64frombits(binary.LittleEndian.Uint64(scratch[8:16]))
		center[2] = math.Float64frombits(binary.LittleEndian.Uint64(scratch[16:24]))
		diameter := math.Float64frombits(binary.LittleEndian.Uint64(scratch[24:32]))
		particles = append(particles, Particle{Center: center, Diameter: diameter})
	}

	packing := NewPacking(len(particles))
	for i, p := range particles {
		packing.Set(ParticleIndex(i), p)
	}
	return packing, nil
}
