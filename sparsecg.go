package packing

import "math"

// SparseSymmetricMatrix is the bond-indexed linear system from §4.8: a
// diagonal plus a sparse set of off-diagonal entries contributed by
// bond-pairs (two bonds sharing a particle). Only one (row < col) triangle
// is stored; MatVec mirrors it.
type SparseSymmetricMatrix struct {
	n        int
	diag     []float64
	offRow   []int
	offCol   []int
	offValue []float64
}

func NewSparseSymmetricMatrix(n int) *SparseSymmetricMatrix {
	return &SparseSymmetricMatrix{n: n, diag: make([]float64, n)}
}

func (m *SparseSymmetricMatrix) SetDiag(i int, v float64) { m.diag[i] = v }

func (m *SparseSymmetricMatrix) AddOffDiag(row, col int, v float64) {
	if row == col {
		m.diag[row] += 2 * v
		return
	}
	if row > col {
		row, col = col, row
	}
	m.offRow = append(m.offRow, row)
	m.offCol = append(m.offCol, col)
	m.offValue = append(m.offValue, v)
}

func (m *SparseSymmetricMatrix) MatVec(x []float64) []float64 {
	y := make([]float64, m.n)
	for i, d := range m.diag {
		y[i] = d * x[i]
	}
	for k, r := range m.offRow {
		c := m.offCol[k]
		v := m.offValue[k]
		y[r] += v * x[c]
		y[c] += v * x[r]
	}
	return y
}

// SparseSpdSolver is the pluggable trait §9 asks for, so an ecosystem sparse
// solver could be substituted without touching velocity.go.
type SparseSpdSolver interface {
	Solve(a *SparseSymmetricMatrix, b []float64) ([]float64, error)
}

// ConjugateGradientSolver is a plain, dependency-free CG solve. No sparse or
// dense linear-algebra library appears in any go.mod across the retrieval
// pack (the teacher included), so this is the one component in the repository
// built directly on the standard library with no ecosystem substitute
// available — see DESIGN.md.
type ConjugateGradientSolver struct {
	MaxIterations int
	Tolerance     float64
}

func NewConjugateGradientSolver() *ConjugateGradientSolver {
	return &ConjugateGradientSolver{MaxIterations: 1000, Tolerance: 1e-12}
}

func (s *ConjugateGradientSolver) Solve(a *SparseSymmetricMatrix, b []float64) ([]float64, error) {
	n := a.n
	if n == 0 {
		return nil, nil
	}
	x := make([]float64, n)
	r := append([]float64(nil), b...)
	p := append([]float64(nil), r...)
	rsOld := dot(r, r)

	bNorm := math.Sqrt(dot(b, b))
	if bNorm == 0 {
		bNorm = 1
	}

	maxIter := s.MaxIterations
	if maxIter <= 0 {
		maxIter = n * 2
		if maxIter < 10 {
			maxIter = 10
		}
	}

	for iter := 0; iter < maxIter; iter++ {
		if math.Sqrt(rsOld)/bNorm < s.Tolerance {
			return x, nil
		}
		ap := a.MatVec(p)
		denom := dot(p, ap)
		if denom == 0 {
			break
		}
		alpha := rsOld / denom
		for i := range x {
			x[i] += alpha * p[i]
			r[i] -= alpha * ap[i]
		}
		rsNew := dot(r, r)
		if math.Sqrt(rsNew)/bNorm < s.Tolerance {
			return x, nil
		}
		beta := rsNew / rsOld
		for i := range p {
			p[i] = r[i] + beta*p[i]
		}
		rsOld = rsNew
	}

	return x, newError(ErrorKindConvergenceFailure, "conjugate gradient solve did not converge within %d iterations", maxIter)
}

func dot(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
