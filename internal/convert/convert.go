// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert turns provider chat exports into Obsidian notes. Each
// provider has its own converter behind a shared interface; Run drives a
// batch of discovered exports through them sequentially and collects
// per-export outcomes.
package convert

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/pdiddy/notemill/internal/schema"
	"github.com/pdiddy/notemill/pkg/types"
)

const (
	// DefaultTimeout bounds each remote image download.
	DefaultTimeout = 15 * time.Second
	// DefaultUserAgent is sent with image downloads.
	DefaultUserAgent = "Mozilla/5.0"
	// DefaultMaxErrors caps how many error lines an export summary prints.
	DefaultMaxErrors = 5
)

// Converter converts one export directory into notes under the output root.
// Implementations return an error only for setup failures such as an
// unreadable source or output directory; per-conversation failures are
// collected in Stats and never abort the export.
type Converter interface {
	Convert(exp types.Export, w io.Writer) (Stats, error)
}

// Stats holds the outcome of converting one export.
type Stats struct {
	Total            int      `json:"total" yaml:"total"`
	Converted        int      `json:"converted" yaml:"converted"`
	Memories         int      `json:"memories,omitempty" yaml:"memories,omitempty"`
	Projects         int      `json:"projects,omitempty" yaml:"projects,omitempty"`
	AttachmentsSaved int      `json:"attachments_saved" yaml:"attachments_saved"`
	Errors           []string `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// Errorf records a per-conversation failure.
func (s *Stats) Errorf(format string, args ...any) {
	s.Errors = append(s.Errors, fmt.Sprintf(format, args...))
}

// PrintSummary writes the post-export summary block, capping the error list
// at maxErrors lines.
func (s Stats) PrintSummary(w io.Writer, maxErrors int) {
	if maxErrors <= 0 {
		maxErrors = DefaultMaxErrors
	}
	fmt.Fprintf(w, "conversations: %d/%d converted\n", s.Converted, s.Total)
	if s.Memories > 0 {
		fmt.Fprintf(w, "memories: %d\n", s.Memories)
	}
	if s.Projects > 0 {
		fmt.Fprintf(w, "projects: %d\n", s.Projects)
	}
	fmt.Fprintf(w, "attachments saved: %d\n", s.AttachmentsSaved)
	if len(s.Errors) > 0 {
		fmt.Fprintf(w, "errors: %d\n", len(s.Errors))
		for i, e := range s.Errors {
			if i == maxErrors {
				fmt.Fprintf(w, "  ... and %d more\n", len(s.Errors)-maxErrors)
				break
			}
			fmt.Fprintf(w, "  - %s\n", e)
		}
	}
}

// ForProvider returns the converter for p with zero-valued config fields
// filled in. The provider set is closed; asking for anything else is an
// error, not a fallback.
func ForProvider(p types.Provider, cfg types.ConvertConfig) (Converter, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.MaxErrors == 0 {
		cfg.MaxErrors = DefaultMaxErrors
	}

	switch p {
	case types.ProviderGemini:
		return NewGemini(cfg), nil
	case types.ProviderChatGPT:
		return NewChatGPT(cfg), nil
	case types.ProviderClaude:
		return NewClaude(cfg), nil
	default:
		return nil, fmt.Errorf("no converter for provider %q", p)
	}
}

// converterFor resolves an export's converter. It is a variable so batch
// tests can substitute fakes.
var converterFor = ForProvider

// ExportResult pairs an export with its conversion outcome.
type ExportResult struct {
	Export types.Export `json:"export" yaml:"export"`
	Stats  Stats        `json:"stats" yaml:"stats"`
	Err    string       `json:"error,omitempty" yaml:"error,omitempty"`
}

// Succeeded reports whether the export produced at least one note.
func (r ExportResult) Succeeded() bool {
	return r.Err == "" && (r.Stats.Converted > 0 || r.Stats.Memories > 0 || r.Stats.Projects > 0)
}

// BatchResult holds the outcomes of one conversion run.
type BatchResult struct {
	Results []ExportResult `json:"results" yaml:"results"`
}

// Totals sums the per-export stats.
func (b BatchResult) Totals() Stats {
	var t Stats
	for _, r := range b.Results {
		t.Total += r.Stats.Total
		t.Converted += r.Stats.Converted
		t.Memories += r.Stats.Memories
		t.Projects += r.Stats.Projects
		t.AttachmentsSaved += r.Stats.AttachmentsSaved
		t.Errors = append(t.Errors, r.Stats.Errors...)
	}
	return t
}

// Failed counts exports that produced no notes at all.
func (b BatchResult) Failed() int {
	n := 0
	for _, r := range b.Results {
		if !r.Succeeded() {
			n++
		}
	}
	return n
}

// HasFailures reports whether any export produced no notes.
func (b BatchResult) HasFailures() bool {
	return b.Failed() > 0
}

// Run converts each export in sequence, writing progress to w. A failing
// export is recorded and the run moves on to the next one.
func Run(exports []types.Export, cfg types.ConvertConfig, w io.Writer) BatchResult {
	var batch BatchResult
	for _, exp := range exports {
		fmt.Fprintf(w, "\n=== %s/%s ===\n", exp.Provider, exp.Date)

		res := ExportResult{Export: exp}
		conv, err := converterFor(exp.Provider, cfg)
		if err != nil {
			res.Err = err.Error()
			fmt.Fprintf(w, "failed:  %s (%v)\n", exp.Key(), err)
			batch.Results = append(batch.Results, res)
			continue
		}

		stats, err := conv.Convert(exp, w)
		res.Stats = stats
		if err != nil {
			res.Err = err.Error()
			fmt.Fprintf(w, "failed:  %s (%v)\n", exp.Key(), err)
		} else {
			stats.PrintSummary(w, cfg.MaxErrors)
		}
		batch.Results = append(batch.Results, res)
	}

	totals := batch.Totals()
	fmt.Fprintf(w, "\nBatch summary: %d/%d conversations converted, %d attachments saved, %d errors (exports: %d)\n",
		totals.Converted, totals.Total, totals.AttachmentsSaved, len(totals.Errors), len(batch.Results))
	return batch
}

// outputDir returns the note destination for exp, mirroring the source
// layout under the output root.
func outputDir(root string, exp types.Export) string {
	return filepath.Join(root, string(exp.Provider), exp.Date)
}

// warnSchemaDrift fingerprints the export and reports differences from the
// layout its converter was written against. Conversion proceeds either way;
// the warning tells the user why results may come out incomplete.
func warnSchemaDrift(exp types.Export, w io.Writer) {
	expected, ok := schema.Expected(exp.Provider)
	if !ok {
		return
	}
	detected, err := schema.Detect(exp.Path, exp.Provider)
	if err != nil {
		return
	}
	if match, diffs := detected.Matches(expected); !match {
		fmt.Fprintf(w, "warning: export layout differs from schema v%s:\n", expected.Version)
		for _, d := range diffs {
			fmt.Fprintf(w, "  - %s\n", d)
		}
		fmt.Fprintln(w, "proceeding; results may be incomplete")
	} else {
		fmt.Fprintf(w, "schema ok (v%s)\n", expected.Version)
	}
}
