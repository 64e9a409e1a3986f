// Package export serializes experiment results as JSON for the external
// reporting and plotting layer. The harness itself never interprets
// these files; they are its only output surface besides logs.
package export

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/sclaridg/bio-610B/internal/diagnostics"
)

// TrialReport records one simulate-fit-summarize trial.
type TrialReport struct {
	Trial   int     `json:"trial"`
	RunID   string  `json:"run_id"`
	Seconds float64 `json:"seconds"`
	Warning string  `json:"warning,omitempty"`

	// MatchedCorrelation reports how well inferred exchangeable components
	// correlate with truth after label matching, when applicable.
	MatchedCorrelation float64 `json:"matched_correlation,omitempty"`

	Summary *diagnostics.Summary `json:"summary"`
}

// Aggregate holds statistics pooled across all completed trials. The
// coverage rate across repeated simulations is the calibration metric:
// a well-calibrated 90% interval should cover truth about 90% of the time.
type Aggregate struct {
	Coverage           float64 `json:"coverage"`
	MeanAbsError       float64 `json:"mean_abs_error"`
	NotConvergedRate   float64 `json:"not_converged_rate"`
	MatchedCorrelation float64 `json:"matched_correlation,omitempty"`
}

// Report is the top-level JSON document for one experiment run.
type Report struct {
	GeneratedAt time.Time `json:"generated_at"`
	Model       string    `json:"model"`
	Mode        string    `json:"mode"`
	Seed        uint64    `json:"seed"`
	Trials      int       `json:"trials"`
	Completed   int       `json:"completed"`
	Failed      int       `json:"failed"`
	Seconds     float64   `json:"seconds"`

	Aggregate Aggregate     `json:"aggregate"`
	Results   []TrialReport `json:"results"`
}

// Write renders the report as indented JSON.
func Write(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteFile writes the report to a file on disk.
func WriteFile(path string, r *Report) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return Write(f, r)
}
