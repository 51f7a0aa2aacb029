package providers

import (
	"errors"
	"testing"
)

func TestBuiltinExtractors(t *testing.T) {
	reg := DefaultRegistry()

	cases := []struct {
		id   string
		body string
		want int64
	}{
		{Facebook, `{"id":"https://example.com","shares":1234}`, 1234},
		{Pinterest, `{"url":"https://example.com","count":17}`, 17},
		{LinkedIn, `{"count":"42","fCnt":"42"}`, 42},
		{Reddit, `{"data":{"children":[{"data":{"ups":3}},{"data":{"ups":"4"}},{"data":{"ups":5.0}}]}}`, 12},
		{Reddit, `{"data":{"children":[]}}`, 0},
		{Google, `{"result":{"metadata":{"globalCounts":{"count":99.0}}}}`, 99},
	}

	for _, tc := range cases {
		req, err := reg.BuildRequest(tc.id, "https://example.com")
		if err != nil {
			t.Fatalf("BuildRequest(%s): %v", tc.id, err)
		}
		got, err := req.Extract([]byte(tc.body))
		if err != nil {
			t.Errorf("%s: Extract error %v", tc.id, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%s: got %d want %d", tc.id, got, tc.want)
		}
	}
}

func TestExtractReturnsTypedErrors(t *testing.T) {
	reg := DefaultRegistry()

	cases := []struct {
		id   string
		body string
	}{
		{Facebook, `not json`},
		{Facebook, `{"id":"https://example.com"}`},
		{Facebook, `{"shares":"lots"}`},
		{Reddit, `{"data":{"children":{}}}`},
		{Reddit, `{"data":{"children":[{"data":{}}]}}`},
		{Google, `{"result":{"metadata":null}}`},
		{Pinterest, `[]`},
		{Facebook, `{"shares":1e300}`},
		{Facebook, `{"shares":"99999999999999999999"}`},
		{Facebook, `{"shares":99999999999999999999}`},
		{Facebook, `{"shares":9.3e18}`},
		{Facebook, `{"shares":-5}`},
		{LinkedIn, `{"count":"-1"}`},
		{Reddit, `{"data":{"children":[{"data":{"ups":9223372036854775807}},{"data":{"ups":1}}]}}`},
	}

	for _, tc := range cases {
		req, err := reg.BuildRequest(tc.id, "https://example.com")
		if err != nil {
			t.Fatalf("BuildRequest(%s): %v", tc.id, err)
		}
		_, err = req.Extract([]byte(tc.body))
		var extractErr *ExtractError
		if !errors.As(err, &extractErr) {
			t.Errorf("%s %q: expected *ExtractError, got %v", tc.id, tc.body, err)
			continue
		}
		if extractErr.Source != tc.id {
			t.Errorf("%s: error source = %q", tc.id, extractErr.Source)
		}
	}
}

func TestExtractAcceptsInt64Boundary(t *testing.T) {
	got, err := FieldExtractor("shares")([]byte(`{"shares":9223372036854775807}`))
	if err != nil || got != 9223372036854775807 {
		t.Fatalf("Extract = %d, %v", got, err)
	}
	if got, err := FieldExtractor("shares")([]byte(`{"shares":0}`)); err != nil || got != 0 {
		t.Fatalf("zero count = %d, %v", got, err)
	}
}
