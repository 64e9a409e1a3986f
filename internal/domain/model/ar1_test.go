package model_test

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/sclaridg/bio-610B/internal/domain/dataset"
	"github.com/sclaridg/bio-610B/internal/domain/model"
	"github.com/sclaridg/bio-610B/internal/domain/param"
	. "github.com/smartystreets/goconvey/convey"
)

func ar1Series(values []float64, missing map[int]bool) *dataset.Dataset {
	ds := dataset.New([]string{"y"}, true)
	for t, v := range values {
		obs := dataset.Observation{Index: float64(t), Values: []float64{v}}
		if missing[t] {
			obs.Observed = []bool{false}
		}
		if err := ds.Append(obs); err != nil {
			panic(err)
		}
	}
	return ds
}

func TestAR1_Declarations(t *testing.T) {
	Convey("Given an AR(1) spec", t, func() {
		spec := model.NewAR1("")

		Convey("A fully observed series declares the three parameters", func() {
			decls, err := spec.Declarations(ar1Series([]float64{1, 2, 3, 4}, nil))
			So(err, ShouldBeNil)
			So(len(decls), ShouldEqual, 3)
			So(decls[0].Name, ShouldEqual, model.ParamIntercept)
			So(decls[2].Constraint, ShouldEqual, model.Positive)
		})

		Convey("Missing cells add a latent vector declaration", func() {
			data := ar1Series([]float64{1, 2, 3, 4, 5}, map[int]bool{2: true, 3: true})
			decls, err := spec.Declarations(data)
			So(err, ShouldBeNil)
			So(len(decls), ShouldEqual, 4)
			So(decls[3].Name, ShouldEqual, model.ParamMissing)
			So(decls[3].Size(), ShouldEqual, 2)
		})

		Convey("An exchangeable dataset is rejected", func() {
			ds := dataset.New([]string{"y"}, false)
			So(ds.Append(dataset.Observation{Values: []float64{1}}), ShouldBeNil)
			So(ds.Append(dataset.Observation{Values: []float64{2}}), ShouldBeNil)
			So(ds.Append(dataset.Observation{Values: []float64{3}}), ShouldBeNil)
			_, err := spec.Declarations(ds)
			So(errors.Is(err, model.ErrDimensionMismatch), ShouldBeTrue)
		})

		Convey("Too short a series is rejected", func() {
			_, err := spec.Declarations(ar1Series([]float64{1, 2}, nil))
			So(errors.Is(err, model.ErrDimensionMismatch), ShouldBeTrue)
		})
	})
}

func TestAR1_Initial(t *testing.T) {
	Convey("Given an AR(1) spec over a series", t, func() {
		spec := model.NewAR1("")
		data := ar1Series([]float64{5, 5.8, 6.1, 6.4, 6.2, 6.5, 6.3, 6.6}, nil)

		Convey("Without an rng the start is deterministic and in support", func() {
			set, err := spec.Initial(data, nil)
			So(err, ShouldBeNil)
			sigma, err := set.Scalar(model.ParamNoiseSigma)
			So(err, ShouldBeNil)
			So(sigma, ShouldBeGreaterThan, 0)
			slope, err := set.Scalar(model.ParamSlope)
			So(err, ShouldBeNil)
			So(math.Abs(slope), ShouldBeLessThan, 1)
		})

		Convey("With an rng two starts differ", func() {
			a, err := spec.Initial(data, rand.New(rand.NewPCG(1, 1)))
			So(err, ShouldBeNil)
			b, err := spec.Initial(data, rand.New(rand.NewPCG(2, 2)))
			So(err, ShouldBeNil)
			sa, _ := a.Scalar(model.ParamSlope)
			sb, _ := b.Scalar(model.ParamSlope)
			So(sa, ShouldNotEqual, sb)
		})

		Convey("Missing cells get latent starting values", func() {
			masked := ar1Series([]float64{5, 5.8, 0, 6.4, 6.2}, map[int]bool{2: true})
			set, err := spec.Initial(masked, nil)
			So(err, ShouldBeNil)
			latent, err := set.Vector(model.ParamMissing)
			So(err, ShouldBeNil)
			So(len(latent), ShouldEqual, 1)
		})
	})
}

func TestAR1_LogPosterior(t *testing.T) {
	Convey("Given a series simulated near known parameters", t, func() {
		spec := model.NewAR1("")
		// A short walk consistent with intercept 5, slope 0.2, sigma 0.5.
		data := ar1Series([]float64{6.2, 6.3, 6.1, 6.4, 6.3, 6.2, 6.5, 6.2, 6.3, 6.4}, nil)

		at := func(c, phi, sigma float64) float64 {
			return spec.LogPosterior(data, param.Set{
				model.ParamIntercept:  param.Scalar(c),
				model.ParamSlope:      param.Scalar(phi),
				model.ParamNoiseSigma: param.Scalar(sigma),
			})
		}

		Convey("The log posterior is finite at reasonable values", func() {
			lp := at(5, 0.2, 0.5)
			So(math.IsInf(lp, 0), ShouldBeFalse)
			So(math.IsNaN(lp), ShouldBeFalse)
		})

		Convey("Implausible values score lower", func() {
			So(at(5, 0.2, 0.5), ShouldBeGreaterThan, at(-20, 0.9, 0.5))
		})

		Convey("A non-positive scale is rejected with -Inf", func() {
			So(math.IsInf(at(5, 0.2, 0), -1), ShouldBeTrue)
			So(math.IsInf(at(5, 0.2, -1), -1), ShouldBeTrue)
		})

		Convey("A missing parameter yields -Inf", func() {
			lp := spec.LogPosterior(data, param.Set{
				model.ParamIntercept: param.Scalar(5),
				model.ParamSlope:     param.Scalar(0.2),
			})
			So(math.IsInf(lp, -1), ShouldBeTrue)
		})
	})

	Convey("Given a masked series, latent values replace the gaps", t, func() {
		spec := model.NewAR1("")
		data := ar1Series([]float64{6.2, 6.3, 0, 6.4, 6.3}, map[int]bool{2: true})

		base := param.Set{
			model.ParamIntercept:  param.Scalar(5),
			model.ParamSlope:      param.Scalar(0.2),
			model.ParamNoiseSigma: param.Scalar(0.5),
		}

		Convey("Without the latent vector the posterior is -Inf", func() {
			So(math.IsInf(spec.LogPosterior(data, base), -1), ShouldBeTrue)
		})

		Convey("A plausible latent value scores above an implausible one", func() {
			good := base.Clone()
			good[model.ParamMissing] = param.Vector([]float64{6.3})
			bad := base.Clone()
			bad[model.ParamMissing] = param.Vector([]float64{60})
			So(spec.LogPosterior(data, good), ShouldBeGreaterThan, spec.LogPosterior(data, bad))
		})
	})
}
