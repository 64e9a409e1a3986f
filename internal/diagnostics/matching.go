package diagnostics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// MatchComponents solves the label-alignment problem for exchangeable
// latent components: the columns of est and truth describe the same
// components in arbitrary order, and the returned permutation perm maps
// estimate columns to truth columns (estimate column i corresponds to
// truth column perm[i]). Matching is greedy on absolute Pearson
// correlation, which suffices because a recovered component correlates
// far more strongly with its own truth column than with any other.
// The result is always a valid bijection; matching a matrix against
// itself yields the identity permutation.
func MatchComponents(est, truth *mat.Dense) ([]int, error) {
	er, ec := est.Dims()
	tr, tc := truth.Dims()
	if er != tr || ec != tc {
		return nil, fmt.Errorf("%w: estimate %dx%d vs truth %dx%d", ErrShapeMismatch, er, ec, tr, tc)
	}

	k := ec
	corr := mat.NewDense(k, k, nil)
	for i := 0; i < k; i++ {
		a := colSlice(est, i)
		for j := 0; j < k; j++ {
			b := colSlice(truth, j)
			c := stat.Correlation(a, b, nil)
			if math.IsNaN(c) {
				c = 0
			}
			corr.Set(i, j, math.Abs(c))
		}
	}

	perm := make([]int, k)
	usedEst := make([]bool, k)
	usedTruth := make([]bool, k)
	for step := 0; step < k; step++ {
		bi, bj, best := -1, -1, -1.0
		for i := 0; i < k; i++ {
			if usedEst[i] {
				continue
			}
			for j := 0; j < k; j++ {
				if usedTruth[j] {
					continue
				}
				if c := corr.At(i, j); c > best {
					bi, bj, best = i, j, c
				}
			}
		}
		perm[bi] = bj
		usedEst[bi] = true
		usedTruth[bj] = true
	}
	return perm, nil
}

// MatchedCorrelation matches the columns of est to truth and returns the
// mean absolute correlation of the matched pairs together with the
// permutation used.
func MatchedCorrelation(est, truth *mat.Dense) (float64, []int, error) {
	perm, err := MatchComponents(est, truth)
	if err != nil {
		return 0, nil, err
	}
	_, k := est.Dims()
	sum := 0.0
	for i := 0; i < k; i++ {
		c := stat.Correlation(colSlice(est, i), colSlice(truth, perm[i]), nil)
		if !math.IsNaN(c) {
			sum += math.Abs(c)
		}
	}
	return sum / float64(k), perm, nil
}

// permuteColumns reorders m's columns so column i holds m's old column
// perm[i], aligning a truth matrix with a matched estimate.
func permuteColumns(m *mat.Dense, perm []int) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	for i, j := range perm {
		for row := 0; row < r; row++ {
			out.Set(row, i, m.At(row, j))
		}
	}
	return out
}

// permuteRows reorders m's rows so row i holds m's old row perm[i], for
// parameters whose rows are indexed by the matched components.
func permuteRows(m *mat.Dense, perm []int) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	for i, j := range perm {
		for col := 0; col < c; col++ {
			out.Set(i, col, m.At(j, col))
		}
	}
	return out
}

func colSlice(m *mat.Dense, j int) []float64 {
	r, _ := m.Dims()
	out := make([]float64, r)
	for i := 0; i < r; i++ {
		out[i] = m.At(i, j)
	}
	return out
}
