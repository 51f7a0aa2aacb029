package providers

import (
	"fmt"
	"sync"
	"time"

	"github.com/samvad-hq/openshare-counts/pkg/httpclient"
)

// fetcherRegistry implements FetcherRegistry.
type fetcherRegistry struct {
	fetchersByID       map[string]Fetcher
	fetchersByStrategy map[Strategy]Fetcher
	mu                 sync.RWMutex
}

// NewFetcherRegistry builds a registry keyed by each fetcher's strategy.
func NewFetcherRegistry(fetchers ...Fetcher) FetcherRegistry {
	return NewIDFetcherRegistry(nil, fetchers...)
}

// NewIDFetcherRegistry builds a registry with provider-specific fetchers that
// take precedence over the strategy-based ones.
func NewIDFetcherRegistry(idFetchers map[string]Fetcher, fetchers ...Fetcher) FetcherRegistry {
	reg := &fetcherRegistry{
		fetchersByID:       make(map[string]Fetcher),
		fetchersByStrategy: make(map[Strategy]Fetcher),
	}

	for _, f := range fetchers {
		reg.registerStrategyFetcher(f)
	}
	for id, f := range idFetchers {
		reg.registerIDFetcher(id, f)
	}

	return reg
}

// registerIDFetcher registers a fetcher for one provider id.
func (r *fetcherRegistry) registerIDFetcher(id string, f Fetcher) {
	if f == nil {
		return
	}
	key := normalizeID(id)
	if key == "" {
		return
	}

	r.mu.Lock()
	r.fetchersByID[key] = f
	r.mu.Unlock()
}

// registerStrategyFetcher registers a fetcher by the strategy it implements.
func (r *fetcherRegistry) registerStrategyFetcher(f Fetcher) {
	if f == nil || !f.Strategy().Valid() {
		return
	}

	r.mu.Lock()
	r.fetchersByStrategy[f.Strategy()] = f
	r.mu.Unlock()
}

// FetcherFor selects the fetcher for the given request based on its id or strategy.
func (r *fetcherRegistry) FetcherFor(req Request) (Fetcher, error) {
	if r == nil {
		return nil, fmt.Errorf("fetcher registry is nil")
	}
	if req.ID == "" {
		return nil, fmt.Errorf("request provider id is empty")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if f, ok := r.fetchersByID[normalizeID(req.ID)]; ok {
		return f, nil
	}
	if f, ok := r.fetchersByStrategy[req.Provider.Strategy]; ok {
		return f, nil
	}

	return nil, fmt.Errorf("no fetcher registered for provider %q (strategy %q)", req.ID, req.Provider.Strategy)
}

// DefaultHTTPClient returns a tuned client for provider fetchers.
func DefaultHTTPClient() HTTPClient { return httpclient.NewRestyClient(15 * time.Second) }

// DefaultFetcherRegistry wires up the GET, POST and JSONP strategies. JSONP
// scripts are downloaded over client and dispatched into DefaultCallbacks.
func DefaultFetcherRegistry(client HTTPClient) FetcherRegistry {
	if client == nil {
		client = DefaultHTTPClient()
	}

	return NewFetcherRegistry(
		NewGetFetcher(client),
		NewPostFetcher(client),
		NewJSONPFetcher(NewHTTPScriptLoader(client, DefaultCallbacks), DefaultCallbacks),
	)
}
