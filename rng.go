package packing

import "math/rand/v2"

// TaskRNG is a per-generation-task random source, seeded deterministically
// from the task's config. No example repository in the retrieval pack
// imports a third-party RNG, so this wraps math/rand/v2's PCG generator
// directly rather than the package-level global source, which per-task
// parallelism (see §5) must never share.
type TaskRNG struct {
	r *rand.Rand
}

func NewTaskRNG(seed uint64) *TaskRNG {
	return &TaskRNG{r: rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15))}
}

func (t *TaskRNG) Float64() float64 { return t.r.Float64() }

func (t *TaskRNG) IntN(n int) int { return t.r.IntN(n) }

func (t *TaskRNG) UniformInBox(size [3]float64) [3]float64 {
	var v [3]float64
	for i := 0; i < Dim; i++ {
		v[i] = t.r.Float64() * size[i]
	}
	return v
}
