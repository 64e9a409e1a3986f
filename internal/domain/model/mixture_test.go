package model_test

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/sclaridg/bio-610B/internal/domain/dataset"
	"github.com/sclaridg/bio-610B/internal/domain/model"
	"github.com/sclaridg/bio-610B/internal/domain/param"
	. "github.com/smartystreets/goconvey/convey"
)

// countMatrix builds an exchangeable count dataset from row-major values.
func countMatrix(n, p int, values []float64) *dataset.Dataset {
	columns := make([]string, p)
	for j := range columns {
		columns[j] = "f"
	}
	ds := dataset.New(columns, false)
	for i := 0; i < n; i++ {
		ds.Obs = append(ds.Obs, dataset.Observation{
			Index:  float64(i),
			Values: values[i*p : (i+1)*p],
		})
	}
	return ds
}

// factorCounts generates exact expected counts mu = W*H, giving the
// factorization a noiseless target to recover.
func factorCounts(w, h *mat.Dense) *dataset.Dataset {
	var mu mat.Dense
	mu.Mul(w, h)
	n, p := mu.Dims()
	values := make([]float64, 0, n*p)
	for i := 0; i < n; i++ {
		for j := 0; j < p; j++ {
			values = append(values, math.Round(mu.At(i, j)))
		}
	}
	return countMatrix(n, p, values)
}

func TestMixture_Declarations(t *testing.T) {
	Convey("Given a mixture spec with 2 groups", t, func() {
		spec := model.NewMixture(2)

		Convey("A big enough dataset declares both factor blocks", func() {
			data := countMatrix(4, 3, make([]float64, 12))
			decls, err := spec.Declarations(data)
			So(err, ShouldBeNil)
			So(len(decls), ShouldEqual, 2)
			So(decls[0].Name, ShouldEqual, model.ParamProportions)
			So(decls[0].Constraint, ShouldEqual, model.UnitSimplex)
			So(decls[0].Rows, ShouldEqual, 4)
			So(decls[0].Cols, ShouldEqual, 2)
			So(decls[1].Name, ShouldEqual, model.ParamTemplates)
			So(decls[1].Constraint, ShouldEqual, model.Positive)
			So(decls[1].Rows, ShouldEqual, 2)
			So(decls[1].Cols, ShouldEqual, 3)
		})

		Convey("Too few units for the groups is rejected", func() {
			data := countMatrix(1, 3, make([]float64, 3))
			_, err := spec.Declarations(data)
			So(errors.Is(err, model.ErrDimensionMismatch), ShouldBeTrue)
		})
	})
}

func TestMixture_LogPosterior(t *testing.T) {
	Convey("Given a small count matrix", t, func() {
		spec := model.NewMixture(2)
		data := countMatrix(3, 2, []float64{4, 1, 1, 4, 3, 3})

		w := mat.NewDense(3, 2, []float64{0.8, 0.2, 0.2, 0.8, 0.5, 0.5})
		h := mat.NewDense(2, 2, []float64{5, 1, 1, 5})
		params := param.Set{
			model.ParamProportions: param.Matrix(w),
			model.ParamTemplates:   param.Matrix(h),
		}

		Convey("A valid factorization scores finitely", func() {
			lp := spec.LogPosterior(data, params)
			So(math.IsInf(lp, 0), ShouldBeFalse)
			So(math.IsNaN(lp), ShouldBeFalse)
		})

		Convey("Proportion rows off the simplex yield -Inf", func() {
			bad := params.Clone()
			bad[model.ParamProportions] = param.Matrix(mat.NewDense(3, 2, []float64{0.9, 0.9, 0.2, 0.8, 0.5, 0.5}))
			So(math.IsInf(spec.LogPosterior(data, bad), -1), ShouldBeTrue)
		})

		Convey("Shape disagreement yields -Inf", func() {
			bad := params.Clone()
			bad[model.ParamTemplates] = param.Matrix(mat.NewDense(2, 3, nil))
			So(math.IsInf(spec.LogPosterior(data, bad), -1), ShouldBeTrue)
		})
	})
}

func TestMixture_OptimizeSelf(t *testing.T) {
	Convey("Given counts generated from a known factorization", t, func() {
		// 6 units, 4 features, 2 well-separated groups.
		w := mat.NewDense(6, 2, []float64{
			1, 0,
			0.9, 0.1,
			0.8, 0.2,
			0.2, 0.8,
			0.1, 0.9,
			0, 1,
		})
		h := mat.NewDense(2, 4, []float64{
			40, 30, 2, 2,
			2, 2, 30, 40,
		})
		data := factorCounts(w, h)
		spec := model.NewMixture(2)
		rng := rand.New(rand.NewPCG(7, 7))

		Convey("The search converges and returns simplex proportions", func() {
			point, obj, iters, converged, err := spec.OptimizeSelf(context.Background(), data, 2000, 1e-10, rng)
			So(err, ShouldBeNil)
			So(converged, ShouldBeTrue)
			So(iters, ShouldBeGreaterThan, 0)
			So(math.IsNaN(obj), ShouldBeFalse)

			theta, err := point.Matrix(model.ParamProportions)
			So(err, ShouldBeNil)
			rows, _ := theta.Dims()
			for i := 0; i < rows; i++ {
				So(param.CheckSimplex(mat.Row(nil, i, theta), 1e-9), ShouldBeNil)
			}

			Convey("And the objective beats the random start", func() {
				start, err := spec.Initial(data, rand.New(rand.NewPCG(7, 7)))
				So(err, ShouldBeNil)
				So(obj, ShouldBeGreaterThanOrEqualTo, spec.LogPosterior(data, start))
			})
		})

		Convey("Cancellation stops the search", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_, _, _, _, err := spec.OptimizeSelf(ctx, data, 2000, 1e-10, rng)
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})
}
