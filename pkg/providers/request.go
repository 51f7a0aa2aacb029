package providers

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

const urlPlaceholder = "{url}"

// ErrUnknownProvider is returned when a source identifier is not registered.
var ErrUnknownProvider = errors.New("unknown count provider")

// Request is the resolved configuration for one source. It is built once and
// never mutated.
type Request struct {
	ID       string
	Provider Provider
	URL      string
	Body     any
}

// BuildRequest resolves the provider registered under id against targetURL.
func (r *Registry) BuildRequest(id, targetURL string) (Request, error) {
	p, ok := r.Lookup(id)
	if !ok {
		return Request{}, fmt.Errorf("%w: %q", ErrUnknownProvider, strings.TrimSpace(id))
	}
	return NewRequest(p, targetURL), nil
}

// NewRequest resolves p's URL template (and body for POST providers).
func NewRequest(p Provider, targetURL string) Request {
	req := Request{
		ID:       p.ID,
		Provider: p,
		URL:      ResolveURL(p.URLTemplate, targetURL),
	}
	if p.Body != nil {
		req.Body = p.Body(targetURL)
	}
	return req
}

// ResolveURL substitutes the query-escaped target URL into template.
func ResolveURL(template, targetURL string) string {
	return strings.ReplaceAll(template, urlPlaceholder, url.QueryEscape(targetURL))
}

// Extract runs the provider's extractor, always reporting failures as *ExtractError.
func (r Request) Extract(raw []byte) (int64, error) {
	if r.Provider.Extract == nil {
		return 0, &ExtractError{Source: r.ID, Err: errors.New("provider has no extractor")}
	}
	n, err := r.Provider.Extract(raw)
	if err != nil {
		var extractErr *ExtractError
		if errors.As(err, &extractErr) {
			if extractErr.Source == "" {
				extractErr.Source = r.ID
			}
			return 0, extractErr
		}
		return 0, &ExtractError{Source: r.ID, Err: err}
	}
	return n, nil
}
