// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/pdiddy/notemill/pkg/types"
)

// fakeConverter returns canned stats, standing in for a provider converter.
type fakeConverter struct {
	stats Stats
	err   error
}

func (f fakeConverter) Convert(exp types.Export, w io.Writer) (Stats, error) {
	fmt.Fprintf(w, "converted: %s\n", exp.Key())
	return f.stats, f.err
}

// overrideConverters substitutes converter dispatch for batch tests,
// returning a restore function.
func overrideConverters(fn func(types.Provider, types.ConvertConfig) (Converter, error)) func() {
	orig := converterFor
	converterFor = fn
	return func() { converterFor = orig }
}

func TestForProviderClosedSet(t *testing.T) {
	for _, p := range types.KnownProviders() {
		if _, err := ForProvider(p, types.ConvertConfig{}); err != nil {
			t.Errorf("ForProvider(%s) error = %v", p, err)
		}
	}
	if _, err := ForProvider("mistral", types.ConvertConfig{}); err == nil {
		t.Error("ForProvider() accepted an unknown provider")
	}
}

func TestStatsPrintSummaryCapsErrors(t *testing.T) {
	s := Stats{Total: 10, Converted: 3}
	for i := 0; i < 8; i++ {
		s.Errorf("conversation %d: broken", i)
	}

	var buf bytes.Buffer
	s.PrintSummary(&buf, 5)
	out := buf.String()

	if !strings.Contains(out, "conversations: 3/10 converted") {
		t.Errorf("missing conversion counts:\n%s", out)
	}
	if !strings.Contains(out, "errors: 8") {
		t.Errorf("missing error count:\n%s", out)
	}
	if !strings.Contains(out, "- conversation 4: broken") {
		t.Errorf("fifth error not printed:\n%s", out)
	}
	if strings.Contains(out, "conversation 5: broken") {
		t.Errorf("printed errors past the cap:\n%s", out)
	}
	if !strings.Contains(out, "... and 3 more") {
		t.Errorf("missing overflow line:\n%s", out)
	}
}

func TestStatsPrintSummaryOptionalLines(t *testing.T) {
	var buf bytes.Buffer
	Stats{Total: 2, Converted: 2}.PrintSummary(&buf, 0)
	out := buf.String()

	if strings.Contains(out, "memories:") || strings.Contains(out, "projects:") {
		t.Errorf("zero-valued sections printed:\n%s", out)
	}
	if strings.Contains(out, "errors:") {
		t.Errorf("error section printed with no errors:\n%s", out)
	}

	buf.Reset()
	Stats{Total: 1, Converted: 1, Memories: 1, Projects: 2}.PrintSummary(&buf, 0)
	out = buf.String()
	if !strings.Contains(out, "memories: 1") || !strings.Contains(out, "projects: 2") {
		t.Errorf("missing side-document counts:\n%s", out)
	}
}

func TestRunCollectsResults(t *testing.T) {
	defer overrideConverters(func(p types.Provider, cfg types.ConvertConfig) (Converter, error) {
		switch p {
		case types.ProviderClaude:
			return fakeConverter{stats: Stats{Total: 2, Converted: 2}}, nil
		case types.ProviderGemini:
			return fakeConverter{stats: Stats{Total: 1, Errors: []string{"Chat: no extractable content"}}}, nil
		default:
			return nil, fmt.Errorf("no converter for provider %q", p)
		}
	})()

	exports := []types.Export{
		{Provider: types.ProviderClaude, Date: "2026-01-15"},
		{Provider: types.ProviderGemini, Date: "2026-01-16"},
		{Provider: "mistral", Date: "2026-01-17"},
	}

	var buf bytes.Buffer
	batch := Run(exports, types.ConvertConfig{}, &buf)

	if len(batch.Results) != 3 {
		t.Fatalf("got %d results, want 3", len(batch.Results))
	}
	if !batch.Results[0].Succeeded() {
		t.Error("claude export should have succeeded")
	}
	if batch.Results[1].Succeeded() {
		t.Error("gemini export with nothing converted should not count as success")
	}
	if batch.Results[2].Err == "" {
		t.Error("unknown provider should carry an error")
	}
	if got := batch.Failed(); got != 2 {
		t.Errorf("Failed() = %d, want 2", got)
	}
	if !batch.HasFailures() {
		t.Error("HasFailures() = false with two failed exports")
	}

	totals := batch.Totals()
	if totals.Total != 3 || totals.Converted != 2 || len(totals.Errors) != 1 {
		t.Errorf("Totals() = %+v", totals)
	}

	out := buf.String()
	if !strings.Contains(out, "=== claude/2026-01-15 ===") {
		t.Errorf("missing export header:\n%s", out)
	}
	if !strings.Contains(out, "Batch summary: 2/3 conversations converted") {
		t.Errorf("missing batch summary:\n%s", out)
	}
}

func TestRunContinuesPastFailures(t *testing.T) {
	calls := 0
	defer overrideConverters(func(p types.Provider, cfg types.ConvertConfig) (Converter, error) {
		calls++
		if calls == 1 {
			return fakeConverter{err: fmt.Errorf("output directory unwritable")}, nil
		}
		return fakeConverter{stats: Stats{Total: 1, Converted: 1}}, nil
	})()

	exports := []types.Export{
		{Provider: types.ProviderClaude, Date: "2026-01-15"},
		{Provider: types.ProviderClaude, Date: "2026-02-01"},
	}

	batch := Run(exports, types.ConvertConfig{}, io.Discard)

	if calls != 2 {
		t.Fatalf("converter invoked %d times, want 2", calls)
	}
	if batch.Results[0].Err == "" {
		t.Error("first export should record its error")
	}
	if !batch.Results[1].Succeeded() {
		t.Error("second export should convert despite the first failing")
	}
}

func TestExportResultSucceeded(t *testing.T) {
	tests := []struct {
		name string
		res  ExportResult
		want bool
	}{
		{"conversations converted", ExportResult{Stats: Stats{Converted: 1}}, true},
		{"only memories", ExportResult{Stats: Stats{Memories: 1}}, true},
		{"only projects", ExportResult{Stats: Stats{Projects: 1}}, true},
		{"nothing produced", ExportResult{Stats: Stats{Total: 4}}, false},
		{"error despite output", ExportResult{Stats: Stats{Converted: 1}, Err: "boom"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.res.Succeeded(); got != tt.want {
				t.Errorf("Succeeded() = %v, want %v", got, tt.want)
			}
		})
	}
}
