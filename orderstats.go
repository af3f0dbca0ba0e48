// Package orderstats provides order statistics and quantiles over numeric streams without retaining the full stream.
//
// Three independent estimator families are provided in subpackages:
//
//   - window: exact sorted contents, median and order statistics over the last W observations.
//   - psquare: P² estimators that track one quantile each with five markers and constant memory.
//   - kll: a compactor sketch that answers arbitrary quantile queries over unbounded streams with bounded memory.
//
// Every estimator absorbs values one at a time via UpdateOne, returns the statistic for its current state, and
// caches it for Value. Estimators are single-stream and single-consumer.
package orderstats

// Estimator absorbs a stream of values and produces a statistic of type R after each value.
//
// Implementations are not concurrency safe.
type Estimator[R any] interface {
	// UpdateOne absorbs x and returns the statistic for the state immediately after absorbing it.
	UpdateOne(x float64) R

	// Value returns the statistic computed by the last update without absorbing anything. Calling Value repeatedly
	// without an intervening update returns the same result.
	Value() R
}

// BatchEstimator is an Estimator that also absorbs batches, returning one result per input value.
type BatchEstimator[R any] interface {
	Estimator[R]

	// Update absorbs xs in order and returns one result per value, each reflecting the state immediately after that
	// value was absorbed.
	Update(xs []float64) []R
}

// Update absorbs xs into the estimator in order, returning the result of each UpdateOne call. Later results depend on
// the state left by earlier values, so this is always a sequential fold.
func Update[R any](e Estimator[R], xs []float64) []R {
	results := make([]R, len(xs))
	for i, x := range xs {
		results[i] = e.UpdateOne(x)
	}
	return results
}
