package providers

import "fmt"

// TransportError reports a failed request: a network failure or a non-200 status.
type TransportError struct {
	Source     string
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e == nil {
		return "transport error"
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s count request returned status %d body: %s", e.Source, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s count request failed: %v", e.Source, e.Err)
}

func (e *TransportError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ExtractError reports a payload that could not be turned into a count.
type ExtractError struct {
	Source string
	Err    error
}

func (e *ExtractError) Error() string {
	if e == nil {
		return "extract error"
	}
	return fmt.Sprintf("extract %s count: %v", e.Source, e.Err)
}

func (e *ExtractError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
