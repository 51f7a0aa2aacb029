package providers

import (
	"context"
	"net/http"
)

// getFetcher issues a plain GET and hands back the body on 200.
type getFetcher struct {
	client HTTPClient
}

// NewGetFetcher builds the GET strategy fetcher.
func NewGetFetcher(client HTTPClient) Fetcher {
	if client == nil {
		client = DefaultHTTPClient()
	}
	return &getFetcher{client: client}
}

func (f *getFetcher) Strategy() Strategy { return StrategyGet }

func (f *getFetcher) Fetch(ctx context.Context, req Request) ([]byte, error) {
	resp, err := f.client.Get(ctx, req.URL, Headers(req.Provider))
	if err != nil {
		return nil, &TransportError{Source: req.ID, URL: req.URL, Err: err}
	}
	return checkStatus(req, resp.StatusCode(), resp.Body())
}

// postFetcher sends the request body as JSON.
type postFetcher struct {
	client HTTPClient
}

// NewPostFetcher builds the POST strategy fetcher.
func NewPostFetcher(client HTTPClient) Fetcher {
	if client == nil {
		client = DefaultHTTPClient()
	}
	return &postFetcher{client: client}
}

func (f *postFetcher) Strategy() Strategy { return StrategyPost }

func (f *postFetcher) Fetch(ctx context.Context, req Request) ([]byte, error) {
	resp, err := f.client.PostJSON(ctx, req.URL, Headers(req.Provider), req.Body)
	if err != nil {
		return nil, &TransportError{Source: req.ID, URL: req.URL, Err: err}
	}
	return checkStatus(req, resp.StatusCode(), resp.Body())
}

func checkStatus(req Request, status int, body []byte) ([]byte, error) {
	if status != http.StatusOK {
		return nil, &TransportError{
			Source:     req.ID,
			URL:        req.URL,
			StatusCode: status,
			Body:       responseSnippet(body),
		}
	}
	return body, nil
}
