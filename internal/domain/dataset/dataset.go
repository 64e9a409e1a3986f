// Package dataset defines the observation container shared by the
// simulator and the fitter. A Dataset is an ordered sequence of
// observations; ordering is meaningful for time series and irrelevant
// for exchangeable (cross-sectional) samples.
package dataset

import (
	"fmt"
)

// Observation associates an index (a time point or a sample id) with one
// or more observed values. Observed marks which dimensions carry a real
// measurement; a nil mask means fully observed.
type Observation struct {
	Index    float64
	Values   []float64
	Observed []bool
}

// IsObserved reports whether dimension j of the observation was measured.
func (o Observation) IsObserved(j int) bool {
	if o.Observed == nil {
		return true
	}
	return o.Observed[j]
}

// Dataset is an ordered sequence of observations over named columns.
type Dataset struct {
	// Columns names the value dimensions, in order.
	Columns []string

	// TimeSeries marks the ordering as meaningful. When set, Validate
	// requires strictly increasing indices.
	TimeSeries bool

	Obs []Observation
}

// New builds an empty dataset over the given columns.
func New(columns []string, timeSeries bool) *Dataset {
	c := make([]string, len(columns))
	copy(c, columns)
	return &Dataset{Columns: c, TimeSeries: timeSeries}
}

// Len returns the number of observations.
func (d *Dataset) Len() int { return len(d.Obs) }

// Width returns the number of value dimensions.
func (d *Dataset) Width() int { return len(d.Columns) }

// Append adds an observation after checking its width against the columns.
func (d *Dataset) Append(o Observation) error {
	if len(o.Values) != len(d.Columns) {
		return fmt.Errorf("%w: observation has %d values, dataset has %d columns",
			ErrShapeMismatch, len(o.Values), len(d.Columns))
	}
	if o.Observed != nil && len(o.Observed) != len(d.Columns) {
		return fmt.Errorf("%w: observed mask has %d entries, dataset has %d columns",
			ErrShapeMismatch, len(o.Observed), len(d.Columns))
	}
	d.Obs = append(d.Obs, o)
	return nil
}

// Column extracts a single column by name, together with its observed mask.
func (d *Dataset) Column(name string) (values []float64, observed []bool, err error) {
	j := -1
	for i, c := range d.Columns {
		if c == name {
			j = i
			break
		}
	}
	if j < 0 {
		return nil, nil, fmt.Errorf("%w: column %q", ErrUnknownColumn, name)
	}
	values = make([]float64, len(d.Obs))
	observed = make([]bool, len(d.Obs))
	for i, o := range d.Obs {
		values[i] = o.Values[j]
		observed[i] = o.IsObserved(j)
	}
	return values, observed, nil
}

// MissingCount returns the number of unobserved cells.
func (d *Dataset) MissingCount() int {
	n := 0
	for _, o := range d.Obs {
		if o.Observed == nil {
			continue
		}
		for _, ob := range o.Observed {
			if !ob {
				n++
			}
		}
	}
	return n
}

// Validate checks structural invariants: consistent widths and, for time
// series, strictly increasing indices.
func (d *Dataset) Validate() error {
	if len(d.Columns) == 0 {
		return fmt.Errorf("%w: dataset has no columns", ErrShapeMismatch)
	}
	for i, o := range d.Obs {
		if len(o.Values) != len(d.Columns) {
			return fmt.Errorf("%w: observation %d has %d values, want %d",
				ErrShapeMismatch, i, len(o.Values), len(d.Columns))
		}
		if o.Observed != nil && len(o.Observed) != len(d.Columns) {
			return fmt.Errorf("%w: observation %d mask has %d entries, want %d",
				ErrShapeMismatch, i, len(o.Observed), len(d.Columns))
		}
		if d.TimeSeries && i > 0 && o.Index <= d.Obs[i-1].Index {
			return fmt.Errorf("%w: index %g at observation %d does not increase",
				ErrUnorderedIndex, o.Index, i)
		}
	}
	return nil
}
