package orderstatsgrpc

import (
	"fmt"
	"math"
	"strconv"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Values is a list of floats that survives JSON encoding of NaN and ±Inf, which are encoded as the strings "NaN",
// "+Inf" and "-Inf".
type Values []float64

func (v Values) MarshalJSON() ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	buf := make([]byte, 0, 2+len(v)*8)
	buf = append(buf, '[')
	for i, x := range v {
		if i > 0 {
			buf = append(buf, ',')
		}
		switch {
		case math.IsNaN(x):
			buf = append(buf, `"NaN"`...)
		case math.IsInf(x, 1):
			buf = append(buf, `"+Inf"`...)
		case math.IsInf(x, -1):
			buf = append(buf, `"-Inf"`...)
		default:
			buf = strconv.AppendFloat(buf, x, 'g', -1, 64)
		}
	}
	return append(buf, ']'), nil
}

func (v *Values) UnmarshalJSON(data []byte) error {
	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*v = nil
		return nil
	}
	values := make(Values, len(raw))
	for i, r := range raw {
		switch x := r.(type) {
		case float64:
			values[i] = x
		case string:
			f, err := strconv.ParseFloat(x, 64)
			if err != nil {
				return err
			}
			values[i] = f
		default:
			return fmt.Errorf("value %d: unexpected %T", i, r)
		}
	}
	*v = values
	return nil
}

type CreateRequest struct {
	Name string `json:"name"`
	// Kind is one of sort, median, quantile, psquare or sketch.
	Kind        string    `json:"kind"`
	Window      int       `json:"window,omitempty"`
	Ranks       []int     `json:"ranks,omitempty"`
	Probs       []float64 `json:"probs,omitempty"`
	K           int       `json:"k,omitempty"`
	C           float64   `json:"c,omitempty"`
	Eager       bool      `json:"eager,omitempty"`
	Alternating bool      `json:"alternating,omitempty"`
	Seed        uint64    `json:"seed,omitempty"`
}

type CreateResponse struct {
	Columns []string `json:"columns"`
}

type UpdateRequest struct {
	Name   string `json:"name"`
	Values Values `json:"values"`
}

// Table holds estimator results, one row per absorbed value or per sketch summary item.
type Table struct {
	Columns []string `json:"columns"`
	Rows    []Values `json:"rows"`
}

type ValueRequest struct {
	Name string `json:"name"`
}

type QuantileRequest struct {
	Name  string    `json:"name"`
	Probs []float64 `json:"probs"`
}

type QuantileResponse struct {
	Values Values `json:"values"`
}

type DeleteRequest struct {
	Name string `json:"name"`
}

type DeleteResponse struct{}

func toRows(rows [][]float64) []Values {
	result := make([]Values, len(rows))
	for i, row := range rows {
		result[i] = row
	}
	return result
}
