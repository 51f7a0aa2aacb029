package counter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/samvad-hq/openshare-counts/internal/logger"
	"github.com/samvad-hq/openshare-counts/internal/storage"
	"github.com/samvad-hq/openshare-counts/pkg/providers"
)

var (
	// ErrMissingURL is returned when no target URL is supplied.
	ErrMissingURL = errors.New("no url provided for count")
	// ErrInvalidCountType is returned when a requested type is not registered.
	ErrInvalidCountType = errors.New("invalid count type")
	// ErrAlreadyCounted is returned when Count is called twice on one resolver.
	ErrAlreadyCounted = errors.New("resolver already counted")
	// ErrNoCount is returned when no source produced a value.
	ErrNoCount = errors.New("no count available")
)

// CachePolicy controls how a cached count interacts with the network fetch.
type CachePolicy int

const (
	// CacheThenFetch writes a cached value immediately, then always fetches and
	// overwrites the sink with the fresh value.
	CacheThenFetch CachePolicy = iota
	// CacheFirst skips the network entirely when a cached value exists.
	CacheFirst
)

// ParseCachePolicy maps a config value to a CachePolicy.
func ParseCachePolicy(s string) (CachePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "cache_then_fetch":
		return CacheThenFetch, nil
	case "cache_first":
		return CacheFirst, nil
	default:
		return 0, fmt.Errorf("unknown cache policy %q", s)
	}
}

func (p CachePolicy) String() string {
	if p == CacheFirst {
		return "cache_first"
	}
	return "cache_then_fetch"
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithFetchers sets the strategy fetchers.
func WithFetchers(reg providers.FetcherRegistry) Option {
	return func(r *Resolver) { r.fetchers = reg }
}

// WithStore sets the count cache.
func WithStore(store storage.Store) Option {
	return func(r *Resolver) { r.store = store }
}

// WithCachePolicy sets the cache policy.
func WithCachePolicy(p CachePolicy) Option {
	return func(r *Resolver) { r.policy = p }
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(r *Resolver) { r.log = log }
}

// Resolver turns a count type specification into a number for one URL. A
// Resolver serves exactly one Count call.
type Resolver struct {
	spec     string
	url      string
	multi    bool
	requests []providers.Request

	fetchers providers.FetcherRegistry
	store    storage.Store
	policy   CachePolicy
	log      logger.Logger

	used atomic.Bool
}

// New validates typeSpec against reg and resolves one request per identifier.
// A comma in typeSpec selects aggregate mode. Any unknown identifier fails
// the whole construction.
func New(reg *providers.Registry, typeSpec, targetURL string, opts ...Option) (*Resolver, error) {
	targetURL = strings.TrimSpace(targetURL)
	if targetURL == "" {
		return nil, ErrMissingURL
	}
	if reg == nil {
		return nil, fmt.Errorf("provider registry must not be nil")
	}

	multi := strings.Contains(typeSpec, ",")
	ids := []string{typeSpec}
	if multi {
		ids = strings.Split(typeSpec, ",")
	}

	requests := make([]providers.Request, 0, len(ids))
	for _, id := range ids {
		req, err := reg.BuildRequest(id, targetURL)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidCountType, strings.TrimSpace(id))
		}
		requests = append(requests, req)
	}

	r := &Resolver{
		spec:     typeSpec,
		url:      targetURL,
		multi:    multi,
		requests: requests,
		policy:   CacheThenFetch,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.fetchers == nil {
		r.fetchers = providers.DefaultFetcherRegistry(nil)
	}
	if r.store == nil {
		r.store, _ = storage.NewStore("none", "")
	}
	r.log = logger.Ensure(r.log)

	return r, nil
}

// Requests returns the resolved per-source requests in requested order.
func (r *Resolver) Requests() []providers.Request {
	out := make([]providers.Request, len(r.requests))
	copy(out, r.requests)
	return out
}

// Multi reports whether the resolver aggregates several sources.
func (r *Resolver) Multi() bool { return r.multi }

// Count resolves the count and writes it to sink. In single-source mode a
// cached value may be written before the fresh one; in aggregate mode the sink
// is written once with the sum of every source that produced a value.
func (r *Resolver) Count(ctx context.Context, sink Sink) (Result, error) {
	if !r.used.CompareAndSwap(false, true) {
		return Result{}, ErrAlreadyCounted
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if sink == nil {
		sink = discardSink{}
	}

	if !r.multi {
		return r.countOne(ctx, sink)
	}
	return r.countAll(ctx, sink)
}

func (r *Resolver) countOne(ctx context.Context, sink Sink) (Result, error) {
	outcome := r.resolveSource(ctx, r.requests[0], sink)
	res := newResult(r.spec, r.url, []sourceOutcome{outcome})
	if outcome.written {
		sink.WriteCount(outcome.count)
	}
	return res, res.err()
}

func (r *Resolver) countAll(ctx context.Context, sink Sink) (Result, error) {
	outcomes := make([]sourceOutcome, len(r.requests))

	var wg sync.WaitGroup
	for i, req := range r.requests {
		wg.Add(1)
		go func(i int, req providers.Request) {
			defer wg.Done()
			outcomes[i] = r.resolveSource(ctx, req, nil)
		}(i, req)
	}
	wg.Wait()

	res := newResult(r.spec, r.url, outcomes)
	if len(res.Sources) > 0 {
		sink.WriteCount(res.Total)
	}
	r.log.DebugObj("aggregate count resolved", "count_aggregate", map[string]any{
		"spec":   r.spec,
		"url":    r.url,
		"total":  res.Total,
		"failed": res.FailedIDs(),
	})
	return res, res.err()
}

// sourceOutcome is the per-source result. written reports whether count is a
// value the sink should receive.
type sourceOutcome struct {
	id      string
	count   int64
	cached  bool
	stale   bool
	written bool
	err     error
}

// resolveSource applies the cache policy to one request. paint, when non-nil,
// receives a cached value before the network fetch starts.
func (r *Resolver) resolveSource(ctx context.Context, req providers.Request, paint Sink) sourceOutcome {
	out := sourceOutcome{id: req.ID}

	cached, hit := r.cachedCount(req.ID)
	if hit {
		if r.policy == CacheFirst {
			out.count, out.cached, out.written = cached, true, true
			return out
		}
		if paint != nil {
			paint.WriteCount(cached)
		}
	}

	count, err := r.fetch(ctx, req)
	if err != nil {
		out.err = err
		r.logFailure(req, err)
		if hit {
			out.count, out.cached, out.stale, out.written = cached, true, true, true
		}
		return out
	}

	if err := r.store.SetCount(req.ID, count); err != nil {
		r.log.WarnObj("count cache write failed", "cache_error", map[string]any{
			"source": req.ID,
			"error":  err.Error(),
		})
	}
	out.count, out.written = count, true
	return out
}

func (r *Resolver) fetch(ctx context.Context, req providers.Request) (int64, error) {
	fetcher, err := r.fetchers.FetcherFor(req)
	if err != nil {
		return 0, fmt.Errorf("resolve fetcher for %s: %w", req.ID, err)
	}
	raw, err := fetcher.Fetch(ctx, req)
	if err != nil {
		return 0, err
	}
	return req.Extract(raw)
}

func (r *Resolver) cachedCount(id string) (int64, bool) {
	n, ok, err := r.store.GetCount(id)
	if err != nil {
		r.log.WarnObj("count cache read failed", "cache_error", map[string]any{
			"source": id,
			"error":  err.Error(),
		})
		return 0, false
	}
	return n, ok
}

func (r *Resolver) logFailure(req providers.Request, err error) {
	fields := map[string]any{
		"source": req.ID,
		"url":    r.url,
		"error":  err.Error(),
	}

	var extractErr *providers.ExtractError
	if errors.As(err, &extractErr) {
		r.log.WarnObj("count payload malformed", "count_extract_error", fields)
		return
	}
	r.log.DebugObj("count request failed", "count_transport_error", fields)
}
