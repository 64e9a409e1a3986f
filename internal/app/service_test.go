package service_test

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/sclaridg/bio-610B/internal/adapters/export"
	service "github.com/sclaridg/bio-610B/internal/app"
	"github.com/sclaridg/bio-610B/internal/diagnostics"
	"github.com/sclaridg/bio-610B/internal/fit"
	. "github.com/smartystreets/goconvey/convey"
)

func paramSummary(sum *diagnostics.Summary, name string) *diagnostics.ParamSummary {
	for i := range sum.Params {
		if sum.Params[i].Name == name {
			return &sum.Params[i]
		}
	}
	return nil
}

func TestRun_AR1Recovery(t *testing.T) {
	if testing.Short() {
		t.Skip("sampling experiment is slow")
	}
	Convey("Given an autoregressive experiment with known truth", t, func() {
		svc := service.New(
			service.WithModel(service.ModelAR1),
			service.WithMode(fit.ModeSample),
			service.WithTrials(4),
			service.WithObservations(300),
			service.WithSampling(4, 1500, 500),
			service.WithSeed(1),
			service.WithNominalInterval(0.5),
			service.WithTruth(map[string]float64{
				"intercept":   5,
				"slope":       0.2,
				"noise_sigma": 0.5,
			}),
		)

		rep, err := svc.Run(context.Background())
		So(err, ShouldBeNil)

		Convey("Every trial completes", func() {
			So(rep.Trials, ShouldEqual, 4)
			So(rep.Completed, ShouldEqual, 4)
			So(rep.Failed, ShouldEqual, 0)
			So(rep.Model, ShouldEqual, "ar1")
			So(rep.Mode, ShouldEqual, "sample")
		})

		Convey("The posterior median of the slope stays near truth", func() {
			for _, tr := range rep.Results {
				slope := paramSummary(tr.Summary, "slope")
				So(slope, ShouldNotBeNil)
				So(math.Abs(slope.Median-0.2), ShouldBeLessThan, 0.15)
				So(slope.Q25, ShouldBeLessThan, slope.Q75)
			}
		})

		Convey("The interquartile intervals cover truth at a plausible rate", func() {
			So(rep.Aggregate.Coverage, ShouldBeGreaterThan, 0)
			So(rep.Aggregate.Coverage, ShouldBeLessThanOrEqualTo, 1)
			So(rep.Aggregate.MeanAbsError, ShouldBeLessThan, 1)
		})
	})
}

func TestRun_MixtureRecovery(t *testing.T) {
	if testing.Short() {
		t.Skip("factorization experiment is slow")
	}
	Convey("Given a mixture experiment fitted by optimization", t, func() {
		svc := service.New(
			service.WithModel(service.ModelMixture),
			service.WithMode(fit.ModeOptimize),
			service.WithTrials(1),
			service.WithObservations(60),
			service.WithShape(40, 3),
			service.WithOptimization(3000, 1e-9),
			service.WithSeed(2),
			service.WithMixtureSimulation(0.3, 200),
		)

		rep, err := svc.Run(context.Background())
		So(err, ShouldBeNil)
		So(rep.Completed, ShouldEqual, 1)

		tr := rep.Results[0]
		Convey("Inferred proportions correlate with truth after matching", func() {
			So(tr.MatchedCorrelation, ShouldBeGreaterThan, 0.9)
			So(rep.Aggregate.MatchedCorrelation, ShouldBeGreaterThan, 0.9)
		})

		Convey("The label matching is a valid permutation", func() {
			perm := tr.Summary.ComponentPerm
			So(len(perm), ShouldEqual, 3)
			seen := map[int]bool{}
			for _, j := range perm {
				So(j, ShouldBeGreaterThanOrEqualTo, 0)
				So(j, ShouldBeLessThan, 3)
				So(seen[j], ShouldBeFalse)
				seen[j] = true
			}
		})
	})
}

func TestRun_MissingData(t *testing.T) {
	if testing.Short() {
		t.Skip("sampling experiment is slow")
	}
	Convey("Given an autoregressive experiment with masked observations", t, func() {
		svc := service.New(
			service.WithModel(service.ModelAR1),
			service.WithMode(fit.ModeSample),
			service.WithTrials(1),
			service.WithObservations(150),
			service.WithMissingRate(0.1),
			service.WithSampling(2, 1000, 500),
			service.WithSeed(4),
		)

		rep, err := svc.Run(context.Background())
		So(err, ShouldBeNil)
		So(rep.Completed, ShouldEqual, 1)
		sum := rep.Results[0].Summary

		Convey("Latent slots appear alongside the model parameters", func() {
			latent := 0
			for _, ps := range sum.Params {
				if strings.HasPrefix(ps.Name, "missing[") {
					latent++
				}
			}
			So(latent, ShouldBeGreaterThan, 0)
		})

		Convey("The slope estimate survives the masking", func() {
			slope := paramSummary(sum, "slope")
			So(slope, ShouldNotBeNil)
			So(math.Abs(slope.Median-0.2), ShouldBeLessThan, 0.3)
		})
	})
}

func TestRun_UnknownModel(t *testing.T) {
	Convey("Given an unknown model name", t, func() {
		svc := service.New(service.WithModel("spline"), service.WithTrials(2))
		rep, err := svc.Run(context.Background())

		Convey("Trials fail individually without killing the run", func() {
			So(err, ShouldBeNil)
			So(rep.Completed, ShouldEqual, 0)
			So(rep.Failed, ShouldEqual, 2)
			for _, tr := range rep.Results {
				So(tr.Warning, ShouldContainSubstring, "unknown model")
			}
		})
	})
}

func TestRun_Cancellation(t *testing.T) {
	Convey("Given a cancelled context", t, func() {
		svc := service.New(service.WithTrials(2), service.WithObservations(50))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := svc.Run(ctx)
		So(err, ShouldNotBeNil)
	})
}

func TestReportShape(t *testing.T) {
	Convey("Given a tiny completed experiment", t, func() {
		svc := service.New(
			service.WithTrials(1),
			service.WithObservations(40),
			service.WithSampling(2, 300, 200),
			service.WithSeed(8),
		)
		rep, err := svc.Run(context.Background())
		So(err, ShouldBeNil)

		Convey("The report is self-consistent", func() {
			So(rep.Seed, ShouldEqual, 8)
			So(len(rep.Results), ShouldEqual, rep.Trials)
			So(rep.Seconds, ShouldBeGreaterThan, 0)
			var tr export.TrialReport = rep.Results[0]
			So(tr.RunID, ShouldNotBeEmpty)
			So(tr.Seconds, ShouldBeGreaterThan, 0)
			So(tr.Summary, ShouldNotBeNil)
			So(len(tr.Summary.Params), ShouldEqual, 3)
		})
	})
}
