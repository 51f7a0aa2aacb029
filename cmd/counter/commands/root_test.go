package commands

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/samvad-hq/openshare-counts/pkg/counter"
)

func TestPrintResultBreakdown(t *testing.T) {
	jsonOutput = false
	var buf bytes.Buffer
	err := printResult(&buf, counter.Result{
		Total: 12,
		Sources: []counter.SourceCount{
			{ID: "facebook", Count: 5},
			{ID: "reddit", Count: 7, Cached: true, Stale: true},
		},
		Failed: []counter.SourceFailure{{ID: "reddit", Err: errors.New("timeout")}},
	})
	if err != nil {
		t.Fatalf("printResult: %v", err)
	}

	want := "12\n  facebook\t5\n  reddit\t7 (stale)\n  reddit\tfailed: timeout\n"
	if buf.String() != want {
		t.Fatalf("output = %q, want %q", buf.String(), want)
	}
}

func TestPrintResultJSON(t *testing.T) {
	jsonOutput = true
	defer func() { jsonOutput = false }()

	var buf bytes.Buffer
	if err := printResult(&buf, counter.Result{Spec: "facebook", Total: 3}); err != nil {
		t.Fatalf("printResult: %v", err)
	}
	if !strings.Contains(buf.String(), `"total": 3`) {
		t.Fatalf("unexpected json %s", buf.String())
	}
}

func TestRootRequiresTwoArgs(t *testing.T) {
	if err := rootCmd.Args(rootCmd, []string{"facebook"}); err == nil {
		t.Fatal("expected argument count error")
	}
}
