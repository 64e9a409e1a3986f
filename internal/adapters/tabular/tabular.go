// Package tabular reads and writes datasets as delimited text with a
// header row of named columns. Unobserved cells are written as an NA
// token and read back as masked dimensions, so a round trip preserves
// the missingness pattern.
package tabular

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/sclaridg/bio-610B/internal/domain/dataset"
)

// Read parses delimited text into a dataset. The first record names the
// columns; every later record is one observation. With an index column
// configured, that column supplies the observation index and the result
// is validated as a time series; otherwise rows get sequential indices.
func Read(r io.Reader, opts ...Option) (*dataset.Dataset, error) {
	cfg := newConfig(opts...)
	cr := csv.NewReader(r)
	cr.Comma = cfg.comma
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoHeader, err)
	}

	idxCol := -1
	var columns []string
	for j, name := range header {
		if name == cfg.indexColumn && cfg.indexColumn != "" {
			idxCol = j
			continue
		}
		columns = append(columns, name)
	}
	if cfg.indexColumn != "" && idxCol < 0 {
		return nil, fmt.Errorf("%w: index column %q", ErrUnknownColumn, cfg.indexColumn)
	}

	data := dataset.New(columns, idxCol >= 0)
	row := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrBadRecord, row, err)
		}
		if len(rec) != len(header) {
			return nil, fmt.Errorf("%w: row %d has %d fields, header has %d",
				ErrBadRecord, row, len(rec), len(header))
		}

		obs := dataset.Observation{
			Index:  float64(row),
			Values: make([]float64, 0, len(columns)),
		}
		var mask []bool
		missing := false
		for j, field := range rec {
			if j == idxCol {
				idx, err := strconv.ParseFloat(field, 64)
				if err != nil {
					return nil, fmt.Errorf("%w: row %d index %q", ErrBadRecord, row, field)
				}
				obs.Index = idx
				continue
			}
			if field == "" || field == cfg.naToken {
				obs.Values = append(obs.Values, 0)
				mask = append(mask, false)
				missing = true
				continue
			}
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: row %d field %q", ErrBadRecord, row, field)
			}
			obs.Values = append(obs.Values, v)
			mask = append(mask, true)
		}
		if missing {
			obs.Observed = mask
		}
		if err := data.Append(obs); err != nil {
			return nil, err
		}
		row++
	}

	if err := data.Validate(); err != nil {
		return nil, err
	}
	return data, nil
}

// ReadFile reads a dataset from a file on disk.
func ReadFile(path string, opts ...Option) (*dataset.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f, opts...)
}

// Write renders a dataset as delimited text. Time-series datasets get an
// "index" column first; unobserved cells become the NA token.
func Write(w io.Writer, data *dataset.Dataset, opts ...Option) error {
	cfg := newConfig(opts...)
	cw := csv.NewWriter(w)
	cw.Comma = cfg.comma

	header := data.Columns
	if data.TimeSeries {
		header = append([]string{"index"}, data.Columns...)
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	rec := make([]string, 0, len(header))
	for _, o := range data.Obs {
		rec = rec[:0]
		if data.TimeSeries {
			rec = append(rec, strconv.FormatFloat(o.Index, 'g', -1, 64))
		}
		for j, v := range o.Values {
			if !o.IsObserved(j) {
				rec = append(rec, cfg.naToken)
				continue
			}
			rec = append(rec, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile writes a dataset to a file on disk.
func WriteFile(path string, data *dataset.Dataset, opts ...Option) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return Write(f, data, opts...)
}
