package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/samvad-hq/openshare-counts/pkg/httpclient"
)

func TestCallbackNamesAreUnique(t *testing.T) {
	table := NewCallbackTable()

	const workers, perWorker = 8, 250
	names := make(chan string, workers*perWorker)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				name, _ := table.Register()
				names <- name
			}
		}()
	}
	wg.Wait()
	close(names)

	seen := make(map[string]bool, workers*perWorker)
	for name := range names {
		if !strings.HasPrefix(name, callbackPrefix) {
			t.Fatalf("unexpected callback name %q", name)
		}
		if seen[name] {
			t.Fatalf("duplicate callback name %q", name)
		}
		seen[name] = true
	}
	if table.Len() != workers*perWorker {
		t.Fatalf("expected %d pending callbacks, got %d", workers*perWorker, table.Len())
	}
}

func TestCallbackTableIsOneShot(t *testing.T) {
	table := NewCallbackTable()
	name, ch := table.Register()

	if !table.Invoke(name, []byte(`{"count":1}`)) {
		t.Fatalf("first invoke should succeed")
	}
	if table.Invoke(name, []byte(`{"count":2}`)) {
		t.Fatalf("second invoke should be rejected")
	}
	if got := string(<-ch); got != `{"count":1}` {
		t.Fatalf("payload = %s", got)
	}
	if table.Len() != 0 {
		t.Fatalf("callback should be unregistered after invoke")
	}
}

func TestParseJSONPScript(t *testing.T) {
	name, payload, err := parseJSONPScript([]byte("/**/ jsonp_abc({\"count\": 3});\n"))
	if err != nil {
		t.Fatalf("parseJSONPScript: %v", err)
	}
	if name != "jsonp_abc" || string(payload) != `{"count": 3}` {
		t.Fatalf("got %q %q", name, payload)
	}

	if _, _, err := parseJSONPScript([]byte("alert(1) + 2")); err == nil {
		t.Fatalf("expected error for non-JSON payload")
	}
	if _, _, err := parseJSONPScript([]byte("<html>blocked</html>")); err == nil {
		t.Fatalf("expected error for non-script body")
	}
}

func TestJSONPFetcherOverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cb := r.URL.Query().Get("callback")
		if !strings.HasPrefix(cb, callbackPrefix) {
			t.Errorf("callback placeholder not substituted: %q", r.URL.RawQuery)
		}
		if r.URL.Query().Get("url") != "https://example.com" {
			t.Errorf("url = %q", r.URL.Query().Get("url"))
		}
		w.Header().Set("Content-Type", "application/javascript")
		fmt.Fprintf(w, `%s({"url":"https://example.com","count":21})`, cb)
	}))
	defer srv.Close()

	table := NewCallbackTable()
	client := httpclient.NewRestyClient(2 * time.Second)
	fetcher := NewJSONPFetcher(NewHTTPScriptLoader(client, table), table)

	reg := DefaultRegistry()
	if err := reg.ApplyOverrides(Provider{ID: Pinterest, URLTemplate: srv.URL + "/count.json?callback=?&url={url}"}); err != nil {
		t.Fatalf("ApplyOverrides: %v", err)
	}
	req, err := reg.BuildRequest(Pinterest, "https://example.com")
	if err != nil {
		t.Fatalf("BuildRequest: %v", err)
	}

	raw, err := fetcher.Fetch(context.Background(), req)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if n, err := req.Extract(raw); err != nil || n != 21 {
		t.Fatalf("Extract = %d, %v", n, err)
	}
	if table.Len() != 0 {
		t.Fatalf("callback leaked: %d pending", table.Len())
	}
}

func TestJSONPFetcherCleansUpOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	table := NewCallbackTable()
	fetcher := NewJSONPFetcher(NewHTTPScriptLoader(httpclient.NewRestyClient(2*time.Second), table), table)
	req := NewRequest(testProvider("p", StrategyJSONP, srv.URL+"/?callback=?"), "https://example.com")

	_, err := fetcher.Fetch(context.Background(), req)
	var transportErr *TransportError
	if !errors.As(err, &transportErr) || transportErr.StatusCode != http.StatusGone || transportErr.Source != "p" {
		t.Fatalf("expected 410 *TransportError, got %v", err)
	}
	if table.Len() != 0 {
		t.Fatalf("callback leaked after failure: %d pending", table.Len())
	}
}

func TestJSONPFetcherReportsMalformedPayloadAsExtractError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `%s({count: 3})`, r.URL.Query().Get("callback"))
	}))
	defer srv.Close()

	table := NewCallbackTable()
	fetcher := NewJSONPFetcher(NewHTTPScriptLoader(httpclient.NewRestyClient(2*time.Second), table), table)
	req := NewRequest(testProvider("p", StrategyJSONP, srv.URL+"/?callback=?"), "https://example.com")

	_, err := fetcher.Fetch(context.Background(), req)
	var extractErr *ExtractError
	if !errors.As(err, &extractErr) || extractErr.Source != "p" {
		t.Fatalf("expected *ExtractError, got %v", err)
	}
}

// silentLoader finishes without invoking the callback, like a script that
// fails to execute.
type silentLoader struct{}

func (silentLoader) Load(context.Context, string) error { return nil }

// hangingLoader never finishes until its context ends.
type hangingLoader struct{}

func (hangingLoader) Load(ctx context.Context, _ string) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestJSONPFetcherFailsWhenLoaderSkipsCallback(t *testing.T) {
	table := NewCallbackTable()
	fetcher := NewJSONPFetcher(silentLoader{}, table)
	req := NewRequest(testProvider("p", StrategyJSONP, "http://counts.test/?callback=?"), "https://example.com")

	done := make(chan error, 1)
	go func() {
		_, err := fetcher.Fetch(context.Background(), req)
		done <- err
	}()

	select {
	case err := <-done:
		var transportErr *TransportError
		if !errors.As(err, &transportErr) || transportErr.Source != "p" {
			t.Fatalf("expected *TransportError for p, got %v", err)
		}
		if !errors.Is(err, ErrCallbackNotRegistered) {
			t.Fatalf("expected ErrCallbackNotRegistered, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("fetch blocked after the loader returned")
	}
	if table.Len() != 0 {
		t.Fatalf("callback leaked: %d pending", table.Len())
	}
}

func TestJSONPFetcherHonoursContextCancellation(t *testing.T) {
	table := NewCallbackTable()
	fetcher := NewJSONPFetcher(hangingLoader{}, table)
	req := NewRequest(testProvider("p", StrategyJSONP, "http://counts.test/?callback=?"), "https://example.com")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := fetcher.Fetch(ctx, req)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if table.Len() != 0 {
		t.Fatalf("callback leaked after cancellation: %d pending", table.Len())
	}
}
