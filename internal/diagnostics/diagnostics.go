// Package diagnostics is the reporter stage of the workflow: it reduces a
// fit to per-parameter summaries, checks between-chain convergence, and,
// when ground truth is available, scores accuracy and interval coverage.
// The reporter only reads the fit, never mutates it.
package diagnostics

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/sclaridg/bio-610B/internal/domain/model"
	"github.com/sclaridg/bio-610B/internal/domain/param"
	"github.com/sclaridg/bio-610B/internal/fit"
	"github.com/sclaridg/bio-610B/pkg/metrics"
)

// ParamSummary holds the reported statistics for one scalar parameter
// slot. Rhat and ESS are only meaningful for sampling fits; Truth,
// AbsError and the coverage flags only when ground truth was supplied.
type ParamSummary struct {
	Name   string  `json:"name"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	SD     float64 `json:"sd"`

	// Lower and Upper bound the nominal credible interval; Q25 and Q75
	// bound the interquartile interval.
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Q25   float64 `json:"q25"`
	Q75   float64 `json:"q75"`

	Rhat      float64 `json:"rhat,omitempty"`
	ESS       float64 `json:"ess,omitempty"`
	Converged bool    `json:"converged"`

	HasTruth   bool    `json:"has_truth"`
	Truth      float64 `json:"truth,omitempty"`
	AbsError   float64 `json:"abs_error,omitempty"`
	Covered    bool    `json:"covered"`
	CoveredIQR bool    `json:"covered_iqr"`
}

// Summary is the reporter's read-only output for one fit.
type Summary struct {
	RunID           string         `json:"run_id"`
	Model           string         `json:"model"`
	Mode            fit.Mode       `json:"mode"`
	NominalInterval float64        `json:"nominal_interval"`
	Params          []ParamSummary `json:"params"`

	// NotConverged lists parameters whose scale reduction exceeded the
	// threshold. A non-empty list is a warning, not a failure.
	NotConverged []string `json:"not_converged,omitempty"`

	HasTruth     bool    `json:"has_truth"`
	MeanAbsError float64 `json:"mean_abs_error,omitempty"`
	Coverage     float64 `json:"coverage,omitempty"`

	// ComponentPerm records the label matching applied to the truth's
	// exchangeable components, when one was requested.
	ComponentPerm []int `json:"component_perm,omitempty"`

	Warning error `json:"-"`
}

// Summarize computes the diagnostic summary of a fit, optionally against
// the ground truth the data was simulated from. Truth may cover only a
// subset of the declared parameters (latent blocks typically have no
// ground truth entry); unmatched declarations are summarized without
// accuracy fields.
func Summarize(res *fit.Result, truth param.Set, opts ...Option) (*Summary, error) {
	cfg := newConfig(opts...)
	sum := &Summary{
		RunID:           res.RunID,
		Model:           res.Model,
		Mode:            res.Mode,
		NominalInterval: cfg.nominalInterval,
		Warning:         res.Warning,
	}

	var (
		estimate []float64
		series   [][][]float64 // per slot, per chain
	)
	switch res.Mode {
	case fit.ModeSample:
		chains := res.CompletedChains()
		if len(chains) == 0 {
			return nil, ErrNoCompletedChains
		}
		series = slotSeries(chains, len(res.Names))
		estimate = make([]float64, len(res.Names))
		for i, s := range series {
			estimate[i] = pooledMean(s)
		}
	case fit.ModeOptimize:
		vec, err := model.Flatten(res.Decls, res.Point)
		if err != nil {
			return nil, err
		}
		estimate = vec
	default:
		return nil, fmt.Errorf("%w: mode %q", ErrUnknownParameter, res.Mode)
	}

	truthVec, hasTruth, err := flattenTruth(res.Decls, truth, estimate, cfg, sum)
	if err != nil {
		return nil, err
	}

	alpha := (1 - cfg.nominalInterval) / 2
	var absErrSum float64
	var truthCount, coveredCount int

	for i, name := range res.Names {
		ps := ParamSummary{Name: name, Converged: true}

		if res.Mode == fit.ModeSample {
			pooled := pool(series[i])
			sort.Float64s(pooled)
			ps.Mean = stat.Mean(pooled, nil)
			ps.SD = math.Sqrt(stat.Variance(pooled, nil))
			ps.Median = stat.Quantile(0.5, stat.Empirical, pooled, nil)
			ps.Lower = stat.Quantile(alpha, stat.Empirical, pooled, nil)
			ps.Upper = stat.Quantile(1-alpha, stat.Empirical, pooled, nil)
			ps.Q25 = stat.Quantile(0.25, stat.Empirical, pooled, nil)
			ps.Q75 = stat.Quantile(0.75, stat.Empirical, pooled, nil)
			ps.Rhat = splitRhat(series[i])
			ps.ESS = effectiveSampleSize(series[i])
			if ps.Rhat > cfg.rhatThreshold {
				ps.Converged = false
				sum.NotConverged = append(sum.NotConverged, name)
			}
		} else {
			v := estimate[i]
			ps.Mean, ps.Median = v, v
			ps.Lower, ps.Upper, ps.Q25, ps.Q75 = v, v, v, v
		}

		if hasTruth[i] {
			ps.HasTruth = true
			ps.Truth = truthVec[i]
			ps.AbsError = math.Abs(ps.Median - ps.Truth)
			ps.Covered = ps.Truth >= ps.Lower && ps.Truth <= ps.Upper
			ps.CoveredIQR = ps.Truth >= ps.Q25 && ps.Truth <= ps.Q75
			absErrSum += ps.AbsError
			truthCount++
			if ps.Covered {
				coveredCount++
			}
		}
		sum.Params = append(sum.Params, ps)
	}

	if truthCount > 0 {
		sum.HasTruth = true
		sum.MeanAbsError = absErrSum / float64(truthCount)
		if res.Mode == fit.ModeSample {
			sum.Coverage = float64(coveredCount) / float64(truthCount)
		}
	}

	if n := len(sum.NotConverged); n > 0 {
		metrics.RecordNonConvergedParameters(n)
		if sum.Warning == nil {
			sum.Warning = fit.ErrNotConverged
		}
	}
	return sum, nil
}

// flattenTruth aligns the truth set with the flattened declarations,
// applying the exchangeable-component permutation when requested.
func flattenTruth(decls []model.Decl, truth param.Set, estimate []float64, cfg *config, sum *Summary) ([]float64, []bool, error) {
	total := 0
	for _, d := range decls {
		total += d.Size()
	}
	vec := make([]float64, total)
	has := make([]bool, total)
	if truth == nil {
		return vec, has, nil
	}

	// Resolve the component label matching before walking the slots, so
	// row-indexed parameters can reuse the permutation regardless of
	// declaration order.
	var perm []int
	if cfg.exchangeable != "" {
		at := 0
		for _, d := range decls {
			if d.Name == cfg.exchangeable && d.Rows > 1 && d.Cols > 1 {
				if _, ok := truth[d.Name]; !ok {
					break
				}
				estMat := mat.NewDense(d.Rows, d.Cols, append([]float64(nil), estimate[at:at+d.Size()]...))
				truthMat, err := truth.Matrix(d.Name)
				if err != nil {
					return nil, nil, err
				}
				perm, err = MatchComponents(estMat, truthMat)
				if err != nil {
					return nil, nil, err
				}
				sum.ComponentPerm = perm
				break
			}
			at += d.Size()
		}
	}

	at := 0
	for _, d := range decls {
		n := d.Size()
		v, ok := truth[d.Name]
		if !ok {
			at += n
			continue
		}
		if v.Len() != n {
			return nil, nil, fmt.Errorf("%w: truth %s has %d slots, declared %d",
				param.ErrInvalidParameter, d.Name, v.Len(), n)
		}

		if perm != nil {
			switch d.Name {
			case cfg.exchangeable:
				truthMat, err := truth.Matrix(d.Name)
				if err != nil {
					return nil, nil, err
				}
				v = param.Matrix(permuteColumns(truthMat, perm))
			case cfg.exchangeableRows:
				truthMat, err := truth.Matrix(d.Name)
				if err != nil {
					return nil, nil, err
				}
				v = param.Matrix(permuteRows(truthMat, perm))
			}
		}

		block, err := model.Flatten([]model.Decl{d}, param.Set{d.Name: v})
		if err != nil {
			return nil, nil, err
		}
		copy(vec[at:at+n], block)
		for i := at; i < at+n; i++ {
			has[i] = true
		}
		at += n
	}
	return vec, has, nil
}

// slotSeries reorganizes chain draws into per-slot, per-chain series.
func slotSeries(chains []fit.Chain, slots int) [][][]float64 {
	out := make([][][]float64, slots)
	for i := range out {
		out[i] = make([][]float64, len(chains))
		for c, ch := range chains {
			s := make([]float64, len(ch.Draws))
			for t, draw := range ch.Draws {
				s[t] = draw[i]
			}
			out[i][c] = s
		}
	}
	return out
}

func pool(series [][]float64) []float64 {
	var out []float64
	for _, s := range series {
		out = append(out, s...)
	}
	return out
}

func pooledMean(series [][]float64) float64 {
	return stat.Mean(pool(series), nil)
}

// splitRhat computes the split potential-scale-reduction statistic: each
// chain is halved, and the between-half to within-half variance ratio is
// reduced to the usual sqrt(varPlus/W). Values near 1 indicate agreement;
// a single slow-mixing or stuck chain inflates the statistic.
func splitRhat(series [][]float64) float64 {
	var halves [][]float64
	for _, s := range series {
		h := len(s) / 2
		if h < 2 {
			return math.NaN()
		}
		halves = append(halves, s[:h], s[len(s)-h:])
	}

	m := len(halves)
	n := len(halves[0])
	means := make([]float64, m)
	w := 0.0
	for i, h := range halves {
		means[i] = stat.Mean(h, nil)
		w += stat.Variance(h, nil)
	}
	w /= float64(m)
	b := float64(n) * stat.Variance(means, nil)
	if w == 0 {
		return 1
	}
	varPlus := float64(n-1)/float64(n)*w + b/float64(n)
	return math.Sqrt(varPlus / w)
}

// effectiveSampleSize estimates the number of independent draws the
// autocorrelated chains are worth, using chain-averaged autocovariances
// with Geyer's initial-positive-sequence truncation.
func effectiveSampleSize(series [][]float64) float64 {
	m := len(series)
	n := len(series[0])
	for _, s := range series {
		if len(s) < n {
			n = len(s)
		}
	}
	if n < 4 {
		return math.NaN()
	}

	means := make([]float64, m)
	w := 0.0
	for i, s := range series {
		means[i] = stat.Mean(s[:n], nil)
		w += stat.Variance(s[:n], nil)
	}
	w /= float64(m)
	b := 0.0
	if m > 1 {
		b = float64(n) * stat.Variance(means, nil)
	}
	varPlus := float64(n-1)/float64(n)*w + b/float64(n)
	if varPlus == 0 {
		return math.NaN()
	}

	rho := func(lag int) float64 {
		acov := 0.0
		for i, s := range series {
			acov += autocov(s[:n], means[i], lag)
		}
		acov /= float64(m)
		return 1 - (w-acov)/varPlus
	}

	// Sum paired autocorrelations while the pairs stay positive.
	sum := 0.0
	prev := math.Inf(1)
	for t := 1; t+1 < n; t += 2 {
		pair := rho(t) + rho(t+1)
		if pair <= 0 {
			break
		}
		if pair > prev {
			pair = prev
		}
		sum += pair
		prev = pair
	}

	ess := float64(m*n) / (1 + 2*sum)
	return math.Min(ess, float64(m*n))
}

func autocov(s []float64, mean float64, lag int) float64 {
	n := len(s)
	acc := 0.0
	for i := 0; i+lag < n; i++ {
		acc += (s[i] - mean) * (s[i+lag] - mean)
	}
	return acc / float64(n)
}
