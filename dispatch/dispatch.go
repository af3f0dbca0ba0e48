// Package dispatch adapts every estimator to a common row-major table of float64 results, so that outer layers can
// host any estimator kind without knowing its result type.
package dispatch

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/orderstats-go/orderstats"
	"github.com/orderstats-go/orderstats/kll"
	"github.com/orderstats-go/orderstats/psquare"
	"github.com/orderstats-go/orderstats/window"
)

// ErrUnknownKind is returned when parsing a kind that does not name an estimator.
var ErrUnknownKind = errors.New("unknown estimator kind")

// ErrUnsupported is returned when a Table does not support an operation.
var ErrUnsupported = errors.New("operation not supported by estimator kind")

// MaxSortWindow is the largest window accepted for Sort, since every Sort row holds the whole window.
const MaxSortWindow = 1 << 12

// Kind identifies an estimator.
type Kind int

const (
	// Sort is a moving sort over a window.
	Sort Kind = iota
	// Median is a moving median over a window.
	Median
	// Quantile is a moving set of order statistics over a window.
	Quantile
	// PSquare is a set of cumulative P² quantile trackers.
	PSquare
	// Sketch is a cumulative compactor sketch.
	Sketch
)

var kindNames = [...]string{"sort", "median", "quantile", "psquare", "sketch"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
	return kindNames[k]
}

// Kinds returns every estimator kind.
func Kinds() []Kind {
	return []Kind{Sort, Median, Quantile, PSquare, Sketch}
}

// ParseKind returns the Kind named by s, ignoring case. Returns ErrUnknownKind if s does not name a kind.
func ParseKind(s string) (Kind, error) {
	for i, name := range kindNames {
		if strings.EqualFold(s, name) {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("%q: %w", s, ErrUnknownKind)
}

// Params configures the estimator built by New. Only the fields used by a kind are read.
type Params struct {
	// Window is the window size for Sort, Median and Quantile.
	Window int
	// Ranks are the 1-based ranks for Quantile.
	Ranks []int
	// Probs are the probabilities for PSquare.
	Probs []float64
	// K is the size parameter for Sketch.
	K int
	// C is the capacity shrink rate for Sketch. Zero selects kll.DefaultC.
	C float64
	// Eager selects eager compaction for Sketch, which is otherwise lazy.
	Eager bool
	// Alternating selects alternating compaction parity for Sketch. Otherwise parity is chosen by a coin seeded from
	// Seed, or from a random seed when Seed is zero.
	Alternating bool
	Seed        uint64
	// Logger is used by Sketch for debug logging.
	Logger *slog.Logger
}

// Table hosts an estimator and reports its results as rows of float64 columns.
//
// This type is not concurrency safe.
type Table interface {
	// Kind returns the estimator kind.
	Kind() Kind

	// Columns returns the column names of each row.
	Columns() []string

	// Update absorbs xs in order. Window and PSquare tables return one row per value. Sketch tables return the rows of
	// the summary after the last value.
	Update(xs []float64) [][]float64

	// Value returns the rows for the current state without absorbing anything.
	Value() [][]float64

	// Quantile returns an estimate for each probability. Returns ErrUnsupported for kinds other than Sketch.
	Quantile(probs []float64) ([]float64, error)

	// Reset discards all absorbed values.
	Reset()
}

// New returns a Table hosting a new estimator of the kind, configured by params. Returns the estimator's construction
// error if params are invalid for the kind, or window.ErrInvalidWindow if a Sort window exceeds MaxSortWindow.
func New(kind Kind, params Params) (Table, error) {
	switch kind {
	case Sort:
		if params.Window > MaxSortWindow {
			return nil, fmt.Errorf("sort window %d exceeds %d: %w", params.Window, MaxSortWindow, window.ErrInvalidWindow)
		}
		s, err := window.NewMovingSort(params.Window)
		if err != nil {
			return nil, err
		}
		columns := make([]string, params.Window)
		for i := range columns {
			columns[i] = "s" + strconv.Itoa(i+1)
		}
		return &rowTable[[]float64]{
			kind:      kind,
			columns:   columns,
			estimator: s,
			toRow: func(values []float64) []float64 {
				return padNaN(values, params.Window)
			},
		}, nil

	case Median:
		m, err := window.NewMovingMedian(params.Window)
		if err != nil {
			return nil, err
		}
		return &rowTable[float64]{
			kind:      kind,
			columns:   []string{"median"},
			estimator: m,
			toRow: func(value float64) []float64 {
				return []float64{value}
			},
		}, nil

	case Quantile:
		q, err := window.NewMovingQuantile(params.Window, params.Ranks...)
		if err != nil {
			return nil, err
		}
		columns := make([]string, len(params.Ranks))
		for i, rank := range params.Ranks {
			columns[i] = "r" + strconv.Itoa(rank)
		}
		return &rowTable[[]float64]{
			kind:      kind,
			columns:   columns,
			estimator: q,
			toRow:     identity,
		}, nil

	case PSquare:
		c, err := psquare.NewCumulative(params.Probs...)
		if err != nil {
			return nil, err
		}
		columns := make([]string, len(params.Probs))
		for i, p := range params.Probs {
			columns[i] = "p" + strconv.FormatFloat(p, 'g', -1, 64)
		}
		return &rowTable[[]float64]{
			kind:      kind,
			columns:   columns,
			estimator: c,
			toRow:     identity,
		}, nil

	case Sketch:
		builder := kll.Builder(params.K).WithLazy(!params.Eager).WithLogger(params.Logger)
		if params.C != 0 {
			builder.WithC(params.C)
		}
		if params.Alternating {
			builder.WithAlternatingParity()
		} else if params.Seed != 0 {
			builder.WithRandomParity(params.Seed)
		}
		s, err := builder.Build()
		if err != nil {
			return nil, err
		}
		return &sketchTable{sketch: s}, nil
	}
	return nil, fmt.Errorf("%v: %w", kind, ErrUnknownKind)
}

type resettable[R any] interface {
	orderstats.BatchEstimator[R]
	Reset()
}

// rowTable hosts an estimator that produces one row per value.
type rowTable[R any] struct {
	kind      Kind
	columns   []string
	estimator resettable[R]
	toRow     func(R) []float64
}

func (t *rowTable[R]) Kind() Kind {
	return t.kind
}

func (t *rowTable[R]) Columns() []string {
	return append([]string(nil), t.columns...)
}

func (t *rowTable[R]) Update(xs []float64) [][]float64 {
	results := t.estimator.Update(xs)
	rows := make([][]float64, len(results))
	for i, result := range results {
		rows[i] = t.toRow(result)
	}
	return rows
}

func (t *rowTable[R]) Value() [][]float64 {
	return [][]float64{t.toRow(t.estimator.Value())}
}

func (t *rowTable[R]) Quantile([]float64) ([]float64, error) {
	return nil, fmt.Errorf("quantile query on %v: %w", t.kind, ErrUnsupported)
}

func (t *rowTable[R]) Reset() {
	t.estimator.Reset()
}

// sketchTable hosts a kll.Sketch, reporting its summary as value, weight and probability rows.
type sketchTable struct {
	sketch kll.Sketch
}

func (t *sketchTable) Kind() Kind {
	return Sketch
}

func (t *sketchTable) Columns() []string {
	return []string{"value", "weight", "probability"}
}

func (t *sketchTable) Update(xs []float64) [][]float64 {
	return summaryRows(t.sketch.Update(xs))
}

func (t *sketchTable) Value() [][]float64 {
	return summaryRows(t.sketch.Value())
}

func (t *sketchTable) Quantile(probs []float64) ([]float64, error) {
	return t.sketch.Quantile(probs...)
}

func (t *sketchTable) Reset() {
	t.sketch.Reset()
}

func summaryRows(summary kll.Summary) [][]float64 {
	rows := make([][]float64, len(summary))
	for i, item := range summary {
		rows[i] = []float64{item.Value, item.Weight, item.Probability}
	}
	return rows
}

func identity(values []float64) []float64 {
	return values
}

// padNaN returns values extended with NaN to width columns.
func padNaN(values []float64, width int) []float64 {
	for len(values) < width {
		values = append(values, math.NaN())
	}
	return values
}
