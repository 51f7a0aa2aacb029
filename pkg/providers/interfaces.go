package providers

import (
	"context"

	"github.com/samvad-hq/openshare-counts/pkg/httpclient"
)

// Fetcher retrieves the raw count payload for a request using one strategy.
// Concrete implementations live in strategy-specific files (e.g., jsonp.go).
type Fetcher interface {
	Strategy() Strategy
	Fetch(ctx context.Context, req Request) ([]byte, error)
}

// FetcherRegistry resolves the fetcher implementation for a given request.
type FetcherRegistry interface {
	FetcherFor(req Request) (Fetcher, error)
}

// ScriptLoader loads a callback-style script. Implementations must invoke the
// callback named in the script through the CallbackTable they were built with.
type ScriptLoader interface {
	Load(ctx context.Context, scriptURL string) error
}

// Extractor turns a raw provider payload into a count.
type Extractor func(raw []byte) (int64, error)

// BodyBuilder builds the request payload for POST providers from the target URL.
type BodyBuilder func(targetURL string) any

// HTTPClient aliases the shared httpclient.Client interface for clarity within providers.
type HTTPClient = httpclient.Client
