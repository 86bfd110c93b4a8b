// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/notemill/internal/images"
	"github.com/pdiddy/notemill/internal/markup"
	"github.com/pdiddy/notemill/internal/note"
	"github.com/pdiddy/notemill/internal/webarchive"
	"github.com/pdiddy/notemill/pkg/types"
)

// errNoContent marks an archive whose page markup yields no turns, usually a
// capture taken before the page finished loading.
var errNoContent = errors.New("no extractable content")

// Gemini converts Safari webarchive captures of shared conversations. There
// is no bulk export for this provider: each conversation is a page archive
// saved from the browser, and the turns are recovered from the rendered
// page markup.
type Gemini struct {
	cfg    types.ConvertConfig
	client *http.Client
}

// NewGemini returns a Gemini converter. The HTTP client fetches generated
// images from the CDN within the configured timeout.
func NewGemini(cfg types.ConvertConfig) *Gemini {
	return &Gemini{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Convert processes every .webarchive file in the export directory. An
// archive that cannot be read or yields no turns gets an error entry; the
// rest of the export continues.
func (g *Gemini) Convert(exp types.Export, w io.Writer) (Stats, error) {
	var stats Stats

	nw, err := note.NewWriter(outputDir(g.cfg.OutputRoot, exp))
	if err != nil {
		return stats, err
	}

	entries, err := os.ReadDir(exp.Path)
	if err != nil {
		return stats, fmt.Errorf("reading export directory: %w", err)
	}
	var archives []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ".webarchive") {
			archives = append(archives, e.Name())
		}
	}
	stats.Total = len(archives)
	fmt.Fprintf(w, "found %d webarchive files\n", len(archives))

	used := make(map[string]int)
	for _, filename := range archives {
		title := strings.TrimSuffix(filename, filepath.Ext(filename))
		name := note.UniqueName(used, note.SanitizeFilename(title))

		saved, err := g.convertArchive(filepath.Join(exp.Path, filename), name, nw)
		stats.AttachmentsSaved += saved
		if err != nil {
			stats.Errorf("%s: %v", title, err)
			fmt.Fprintf(w, "failed:  %s (%v)\n", title, err)
			continue
		}
		stats.Converted++
		fmt.Fprintf(w, "converted: %s\n", name)
	}
	return stats, nil
}

// convertArchive turns one webarchive into a note, returning how many
// attachment files were saved along the way. Attachments are counted even
// when the note itself fails: they are already on disk.
func (g *Gemini) convertArchive(path, name string, nw *note.Writer) (int, error) {
	arch, err := webarchive.Open(path)
	if err != nil {
		return 0, err
	}

	resolver := images.NewResolver(nw, name, g.client, g.cfg.FetchConfig)
	turns := markup.ExtractTurns(arch.MainHTML, markup.NewTransducer(resolver))
	if len(turns) == 0 {
		return resolver.Saved(), errNoContent
	}

	doc := note.RenderConversation("gemini", turns)
	if err := nw.WriteDocument(name, doc); err != nil {
		return resolver.Saved(), err
	}
	return resolver.Saved(), nil
}
