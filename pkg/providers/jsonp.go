package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"sync"

	"github.com/rs/xid"
)

const (
	callbackPlaceholder = "callback=?"
	callbackPrefix      = "jsonp_"
)

// ErrCallbackNotRegistered is returned when a script invokes an unknown or
// already consumed callback.
var ErrCallbackNotRegistered = errors.New("jsonp callback not registered")

// DefaultCallbacks is the process-wide callback namespace.
var DefaultCallbacks = NewCallbackTable()

// CallbackTable holds one-shot JSONP callbacks keyed by generated name.
type CallbackTable struct {
	mu      sync.Mutex
	pending map[string]chan []byte
}

// NewCallbackTable returns an empty table.
func NewCallbackTable() *CallbackTable {
	return &CallbackTable{pending: make(map[string]chan []byte)}
}

// Register reserves a unique callback name. The returned channel receives the
// payload at most once.
func (t *CallbackTable) Register() (string, <-chan []byte) {
	ch := make(chan []byte, 1)

	t.mu.Lock()
	defer t.mu.Unlock()

	name := callbackPrefix + xid.New().String()
	for t.pending[name] != nil {
		name = callbackPrefix + xid.New().String()
	}
	t.pending[name] = ch
	return name, ch
}

// Invoke delivers payload to the named callback and unregisters it.
func (t *CallbackTable) Invoke(name string, payload []byte) bool {
	t.mu.Lock()
	ch, ok := t.pending[name]
	delete(t.pending, name)
	t.mu.Unlock()

	if !ok {
		return false
	}
	ch <- payload
	return true
}

// Remove drops a pending callback. Removing an unknown name is a no-op.
func (t *CallbackTable) Remove(name string) {
	t.mu.Lock()
	delete(t.pending, name)
	t.mu.Unlock()
}

// Len reports the number of pending callbacks.
func (t *CallbackTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// jsonpFetcher retrieves callback-style responses through a ScriptLoader.
type jsonpFetcher struct {
	loader    ScriptLoader
	callbacks *CallbackTable
}

// NewJSONPFetcher builds the script-injection strategy fetcher. loader must
// dispatch into callbacks.
func NewJSONPFetcher(loader ScriptLoader, callbacks *CallbackTable) Fetcher {
	if callbacks == nil {
		callbacks = DefaultCallbacks
	}
	return &jsonpFetcher{loader: loader, callbacks: callbacks}
}

func (f *jsonpFetcher) Strategy() Strategy { return StrategyJSONP }

func (f *jsonpFetcher) Fetch(ctx context.Context, req Request) ([]byte, error) {
	if f.loader == nil {
		return nil, &TransportError{Source: req.ID, URL: req.URL, Err: errors.New("no script loader configured")}
	}

	name, payloadCh := f.callbacks.Register()
	defer f.callbacks.Remove(name)

	scriptURL := strings.Replace(req.URL, callbackPlaceholder, "callback="+name, 1)

	loadErr := make(chan error, 1)
	go func() {
		loadErr <- f.loader.Load(ctx, scriptURL)
	}()

	select {
	case payload := <-payloadCh:
		return payload, nil
	case err := <-loadErr:
		// The callback fires before Load returns, so a missing payload here
		// means the loader finished without invoking it.
		select {
		case payload := <-payloadCh:
			return payload, nil
		default:
		}
		if err != nil {
			return nil, wrapLoadError(req, scriptURL, err)
		}
		return nil, &TransportError{Source: req.ID, URL: scriptURL, Err: ErrCallbackNotRegistered}
	case <-ctx.Done():
		return nil, &TransportError{Source: req.ID, URL: scriptURL, Err: ctx.Err()}
	}
}

func wrapLoadError(req Request, scriptURL string, err error) error {
	var extractErr *ExtractError
	if errors.As(err, &extractErr) {
		extractErr.Source = req.ID
		return extractErr
	}
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		transportErr.Source = req.ID
		return transportErr
	}
	return &TransportError{Source: req.ID, URL: scriptURL, Err: err}
}

// jsonpCallPattern matches `name(payload)` with an optional `/**/` prefix and trailing semicolon.
var jsonpCallPattern = regexp.MustCompile(`(?s)^\s*(?:/\*\*/\s*)?([A-Za-z_$][\w$]*)\s*\((.*)\)\s*;?\s*$`)

// HTTPScriptLoader downloads a JSONP script and runs its callback invocation
// against a CallbackTable.
type HTTPScriptLoader struct {
	client    HTTPClient
	callbacks *CallbackTable
	headers   map[string]string
}

// NewHTTPScriptLoader builds a loader dispatching into callbacks.
func NewHTTPScriptLoader(client HTTPClient, callbacks *CallbackTable) *HTTPScriptLoader {
	if client == nil {
		client = DefaultHTTPClient()
	}
	if callbacks == nil {
		callbacks = DefaultCallbacks
	}
	return &HTTPScriptLoader{
		client:    client,
		callbacks: callbacks,
		headers:   map[string]string{"Accept": "application/javascript, */*;q=0.8"},
	}
}

// Load fetches scriptURL and invokes the callback it names.
func (l *HTTPScriptLoader) Load(ctx context.Context, scriptURL string) error {
	resp, err := l.client.Get(ctx, scriptURL, l.headers)
	if err != nil {
		return &TransportError{URL: scriptURL, Err: err}
	}
	body := resp.Body()
	if resp.StatusCode() != http.StatusOK {
		return &TransportError{URL: scriptURL, StatusCode: resp.StatusCode(), Body: responseSnippet(body)}
	}

	name, payload, err := parseJSONPScript(body)
	if err != nil {
		return &ExtractError{Err: err}
	}
	if !l.callbacks.Invoke(name, payload) {
		return fmt.Errorf("%w: %q", ErrCallbackNotRegistered, name)
	}
	return nil
}

func parseJSONPScript(script []byte) (string, []byte, error) {
	m := jsonpCallPattern.FindSubmatch(script)
	if m == nil {
		return "", nil, fmt.Errorf("script is not a callback invocation: %s", responseSnippet(script))
	}
	payload := bytes.TrimSpace(m[2])
	if !json.Valid(payload) {
		return "", nil, fmt.Errorf("callback payload is not valid JSON: %s", responseSnippet(payload))
	}
	return string(m[1]), payload, nil
}
