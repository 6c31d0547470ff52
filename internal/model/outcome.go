package model

// SkipReason explains why an entry was left out of a phase.
type SkipReason string

const (
	ReasonNoURL       SkipReason = "no_url"
	ReasonCatalogRead SkipReason = "catalog_read_failed"
	ReasonAddedAt     SkipReason = "added_at_failed"
	ReasonClone       SkipReason = "clone_failed"
	ReasonLogQuery    SkipReason = "log_query_failed"
)

// Outcome is the result of processing one entry: either a value, or a skip
// with an inspectable reason. A skip never aborts the surrounding loop.
type Outcome[T any] struct {
	Value  T
	Reason SkipReason
	Err    error
}

// Success wraps a value.
func Success[T any](v T) Outcome[T] {
	return Outcome[T]{Value: v}
}

// Skip records why no value was produced.
func Skip[T any](reason SkipReason, err error) Outcome[T] {
	return Outcome[T]{Reason: reason, Err: err}
}

// Skipped reports whether the outcome carries no value.
func (o Outcome[T]) Skipped() bool {
	return o.Reason != ""
}

// Error returns the underlying error text, or "" when there is none.
func (o Outcome[T]) Error() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}
