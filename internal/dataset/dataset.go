package dataset

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// #region types
// Pair holds model and surrogate outputs read from a file.
type Pair struct {
	ModelOutputs     []float64 `json:"model_outputs"`
	SurrogateOutputs []float64 `json:"surrogate_outputs"`
}

// Columns names the CSV header columns to read.
type Columns struct {
	Model     string
	Surrogate string
}

// DefaultColumns returns the conventional header names.
func DefaultColumns() Columns {
	return Columns{Model: "model", Surrogate: "surrogate"}
}

// #endregion types

// #region load
// Load reads a pair from a .csv or .json file.
func Load(path string, cols Columns) (Pair, error) {
	f, err := os.Open(path)
	if err != nil {
		return Pair{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		p, err := ReadCSV(f, cols)
		if err != nil {
			return Pair{}, fmt.Errorf("read %s: %w", path, err)
		}
		return p, nil
	case ".json":
		p, err := ReadJSON(f)
		if err != nil {
			return Pair{}, fmt.Errorf("read %s: %w", path, err)
		}
		return p, nil
	default:
		return Pair{}, fmt.Errorf("unsupported file type %q (want .csv or .json)", filepath.Ext(path))
	}
}

// #endregion load

// #region csv
// ReadCSV reads two named columns. Values are parsed as float64; NaN and Inf
// are accepted here and rejected later by the scorer.
func ReadCSV(r io.Reader, cols Columns) (Pair, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return Pair{}, fmt.Errorf("empty csv")
	}
	if err != nil {
		return Pair{}, fmt.Errorf("read header: %w", err)
	}

	mi, si := -1, -1
	for i, h := range header {
		switch strings.TrimSpace(h) {
		case cols.Model:
			mi = i
		case cols.Surrogate:
			si = i
		}
	}
	if mi < 0 {
		return Pair{}, fmt.Errorf("column %q not found in header", cols.Model)
	}
	if si < 0 {
		return Pair{}, fmt.Errorf("column %q not found in header", cols.Surrogate)
	}

	var p Pair
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// *csv.ParseError already carries its line
			return Pair{}, err
		}
		// physical line, so blank lines and quoted newlines are counted
		line, _ := cr.FieldPos(0)
		if mi >= len(rec) || si >= len(rec) {
			return Pair{}, fmt.Errorf("line %d: expected at least %d fields, got %d", line, max(mi, si)+1, len(rec))
		}
		m, err := parseCell(rec[mi])
		if err != nil {
			line, _ = cr.FieldPos(mi)
			return Pair{}, fmt.Errorf("line %d column %s: %w", line, cols.Model, err)
		}
		s, err := parseCell(rec[si])
		if err != nil {
			line, _ = cr.FieldPos(si)
			return Pair{}, fmt.Errorf("line %d column %s: %w", line, cols.Surrogate, err)
		}
		p.ModelOutputs = append(p.ModelOutputs, m)
		p.SurrogateOutputs = append(p.SurrogateOutputs, s)
	}
	return p, nil
}

func parseCell(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", s, err)
	}
	return v, nil
}

// #endregion csv

// #region json
// ReadJSON decodes {"model_outputs": [...], "surrogate_outputs": [...]}.
func ReadJSON(r io.Reader) (Pair, error) {
	var p Pair
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return Pair{}, fmt.Errorf("decode json: %w", err)
	}
	return p, nil
}

// #endregion json
