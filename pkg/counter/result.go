package counter

import (
	"errors"
	"fmt"
)

// SourceCount is the contribution of one source to a Result.
type SourceCount struct {
	ID     string `json:"id"`
	Count  int64  `json:"count"`
	Cached bool   `json:"cached"`
	// Stale is set when the fetch failed and the cached value was used instead.
	Stale bool `json:"stale"`
}

// SourceFailure records why a source did not produce a fresh value.
type SourceFailure struct {
	ID  string `json:"id"`
	Err error  `json:"-"`
}

// Result summarises one Count call.
type Result struct {
	Spec    string          `json:"spec"`
	URL     string          `json:"url"`
	Total   int64           `json:"total"`
	Sources []SourceCount   `json:"sources"`
	Failed  []SourceFailure `json:"failed,omitempty"`
}

func newResult(spec, url string, outcomes []sourceOutcome) Result {
	res := Result{Spec: spec, URL: url}
	for _, o := range outcomes {
		if o.err != nil {
			res.Failed = append(res.Failed, SourceFailure{ID: o.id, Err: o.err})
		}
		if !o.written {
			continue
		}
		res.Sources = append(res.Sources, SourceCount{
			ID:     o.id,
			Count:  o.count,
			Cached: o.cached,
			Stale:  o.stale,
		})
		res.Total += o.count
	}
	return res
}

// FailedIDs lists the sources whose fetch failed, in requested order.
func (r Result) FailedIDs() []string {
	if len(r.Failed) == 0 {
		return nil
	}
	ids := make([]string, 0, len(r.Failed))
	for _, f := range r.Failed {
		ids = append(ids, f.ID)
	}
	return ids
}

// Stale reports whether any contribution came from the cache after a failed fetch.
func (r Result) Stale() bool {
	for _, s := range r.Sources {
		if s.Stale {
			return true
		}
	}
	return false
}

// err is nil when at least one source produced a value. Otherwise the
// individual failures are joined under ErrNoCount.
func (r Result) err() error {
	if len(r.Sources) > 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Failed)+1)
	errs = append(errs, ErrNoCount)
	for _, f := range r.Failed {
		errs = append(errs, fmt.Errorf("%s: %w", f.ID, f.Err))
	}
	return errors.Join(errs...)
}
