package providers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/samvad-hq/openshare-counts/pkg/httpclient"
)

// fakeResponse lets us stub the httpclient.Client interface.
type fakeResponse struct {
	body       []byte
	statusCode int
}

func (f fakeResponse) Body() []byte    { return f.body }
func (f fakeResponse) StatusCode() int { return f.statusCode }

// fakeHTTPClient returns canned responses per URL to avoid network calls.
type fakeHTTPClient struct {
	responses map[string]fakeResponse
	err       error
}

func (f *fakeHTTPClient) Get(_ context.Context, url string, _ map[string]string) (httpclient.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	resp, ok := f.responses[url]
	if !ok {
		return fakeResponse{statusCode: http.StatusNotFound}, nil
	}
	return resp, nil
}

func (f *fakeHTTPClient) PostJSON(ctx context.Context, url string, headers map[string]string, _ any) (httpclient.Response, error) {
	return f.Get(ctx, url, headers)
}

func testProvider(id string, strategy Strategy, template string) Provider {
	p := Provider{
		ID:          id,
		Strategy:    strategy,
		URLTemplate: template,
		Extract:     FieldExtractor("count"),
	}
	if strategy == StrategyPost {
		p.Body = func(target string) any { return map[string]string{"url": target} }
	}
	return p
}

func TestGetFetcherReturnsBodyOn200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("id") != "https://example.com" {
			t.Errorf("unexpected id %q", r.URL.Query().Get("id"))
		}
		if got := r.Header.Get("User-Agent"); got != "CountBot" {
			t.Errorf("User-Agent = %q", got)
		}
		_, _ = w.Write([]byte(`{"count":5}`))
	}))
	defer srv.Close()

	p := testProvider("a", StrategyGet, srv.URL+"/?id={url}")
	p.Config = map[string]any{ConfigUserAgentKey: "CountBot"}
	req := NewRequest(p, "https://example.com")

	raw, err := NewGetFetcher(httpclient.NewRestyClient(2*time.Second)).Fetch(context.Background(), req)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if n, err := req.Extract(raw); err != nil || n != 5 {
		t.Fatalf("Extract = %d, %v", n, err)
	}
}

func TestGetFetcherReportsStatusAsTransportError(t *testing.T) {
	client := &fakeHTTPClient{responses: map[string]fakeResponse{
		"http://counts.test/a": {body: []byte("rate limited"), statusCode: http.StatusTooManyRequests},
	}}
	req := NewRequest(testProvider("a", StrategyGet, "http://counts.test/a"), "https://example.com")

	_, err := NewGetFetcher(client).Fetch(context.Background(), req)
	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected *TransportError, got %v", err)
	}
	if transportErr.StatusCode != http.StatusTooManyRequests || transportErr.Source != "a" {
		t.Fatalf("unexpected error %+v", transportErr)
	}
	if !strings.Contains(err.Error(), "status 429") {
		t.Fatalf("error message %q", err.Error())
	}
}

func TestGetFetcherWrapsNetworkFailures(t *testing.T) {
	client := &fakeHTTPClient{err: errors.New("connection refused")}
	req := NewRequest(testProvider("a", StrategyGet, "http://counts.test/a"), "https://example.com")

	_, err := NewGetFetcher(client).Fetch(context.Background(), req)
	var transportErr *TransportError
	if !errors.As(err, &transportErr) || transportErr.StatusCode != 0 {
		t.Fatalf("expected network *TransportError, got %v", err)
	}
}

func TestPostFetcherSendsJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if got := r.Header.Get("Content-Type"); got != httpclient.ContentTypeJSON {
			t.Errorf("Content-Type = %q", got)
		}
		raw, _ := io.ReadAll(r.Body)
		var body googleRPCRequest
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body.Params.ID != "https://example.com" || body.Method != "pos.plusones.get" {
			t.Errorf("unexpected body %s", raw)
		}
		_, _ = w.Write([]byte(`{"result":{"metadata":{"globalCounts":{"count":8}}}}`))
	}))
	defer srv.Close()

	reg := DefaultRegistry()
	if err := reg.ApplyOverrides(Provider{ID: Google, URLTemplate: srv.URL}); err != nil {
		t.Fatalf("ApplyOverrides: %v", err)
	}
	req, err := reg.BuildRequest(Google, "https://example.com")
	if err != nil {
		t.Fatalf("BuildRequest: %v", err)
	}

	raw, err := NewPostFetcher(httpclient.NewRestyClient(2*time.Second)).Fetch(context.Background(), req)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if n, err := req.Extract(raw); err != nil || n != 8 {
		t.Fatalf("Extract = %d, %v", n, err)
	}
}

func TestFetcherRegistryPrefersIDFetchers(t *testing.T) {
	get := NewGetFetcher(&fakeHTTPClient{})
	special := NewPostFetcher(&fakeHTTPClient{})
	reg := NewIDFetcherRegistry(map[string]Fetcher{"b": special}, get)

	f, err := reg.FetcherFor(NewRequest(testProvider("a", StrategyGet, "http://a"), "x"))
	if err != nil || f != get {
		t.Fatalf("expected strategy fetcher, got %v %v", f, err)
	}
	f, err = reg.FetcherFor(NewRequest(testProvider("b", StrategyGet, "http://b"), "x"))
	if err != nil || f != special {
		t.Fatalf("expected id fetcher, got %v %v", f, err)
	}
	if _, err := reg.FetcherFor(NewRequest(testProvider("c", StrategyPost, "http://c"), "x")); err == nil {
		t.Fatalf("expected error for unregistered strategy")
	}
}

func TestDefaultFetcherRegistryCoversAllStrategies(t *testing.T) {
	reg := DefaultFetcherRegistry(&fakeHTTPClient{})
	for _, p := range BuiltinProviders() {
		f, err := reg.FetcherFor(NewRequest(p, "https://example.com"))
		if err != nil {
			t.Fatalf("FetcherFor(%s): %v", p.ID, err)
		}
		if f.Strategy() != p.Strategy {
			t.Fatalf("%s: fetcher strategy %s", p.ID, f.Strategy())
		}
	}
}
