// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package note assembles Obsidian notes from conversation turns and owns the
// output layout: markdown/ for notes, attachments/ for media. Rendering rules
// are shared by every provider; the converters only decide what the turns are.
package note

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pdiddy/notemill/internal/textnorm"
	"github.com/pdiddy/notemill/pkg/types"
)

const (
	markdownDir    = "markdown"
	attachmentsDir = "attachments"

	// maxFilenameLen caps sanitized note filenames.
	maxFilenameLen = 100
)

var (
	invalidFileCharRe = regexp.MustCompile(`[<>:"/\\|?*]`)
	whitespaceRunRe   = regexp.MustCompile(`\s+`)
)

// Frontmatter returns the YAML frontmatter block for a note.
func Frontmatter(tags ...string) string {
	var b strings.Builder
	b.WriteString("---\ntags:\n")
	for _, tag := range tags {
		b.WriteString("  - " + tag + "\n")
	}
	b.WriteString("relatedTo:\n---\n\n")
	return b.String()
}

// BlockquoteUser renders user-turn text as a blockquote: every non-blank
// line gets a "> " prefix and blank lines become a bare ">".
func BlockquoteUser(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) != "" {
			lines[i] = "> " + line
		} else {
			lines[i] = ">"
		}
	}
	return strings.Join(lines, "\n")
}

// RenderConversation assembles a conversation note: frontmatter tagged with
// the provider, user turns blockquoted, assistant turns verbatim, turns
// separated by blank lines, and final whitespace normalization over the
// whole document.
func RenderConversation(tag string, turns []types.Turn) string {
	parts := make([]string, 0, len(turns))
	for _, turn := range turns {
		if turn.Role == types.RoleUser {
			parts = append(parts, BlockquoteUser(turn.Content))
		} else {
			parts = append(parts, turn.Content)
		}
	}
	doc := Frontmatter(tag) + strings.Join(parts, "\n\n")
	return textnorm.NormalizeWhitespace(doc)
}

// SanitizeFilename derives a safe note filename from a conversation title:
// filesystem-hostile characters are removed, whitespace collapses to single
// spaces, and overlong names are cut back to a word boundary.
func SanitizeFilename(title string) string {
	s := invalidFileCharRe.ReplaceAllString(title, "")
	s = whitespaceRunRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)

	if utf8.RuneCountInString(s) > maxFilenameLen {
		runes := []rune(s)
		s = string(runes[:maxFilenameLen])
		if i := strings.LastIndex(s, " "); i >= 0 {
			s = s[:i]
		}
	}

	if s == "" {
		return "Untitled"
	}
	return s
}

// UniqueName disambiguates repeated titles within one export. The first use
// of a base name keeps it; later uses get " (N)" suffixes. used carries the
// per-base counts across calls.
func UniqueName(used map[string]int, base string) string {
	n, seen := used[base]
	if !seen {
		used[base] = 0
		return base
	}
	used[base] = n + 1
	return fmt.Sprintf("%s (%d)", base, n+1)
}

// Writer owns one export's output directory tree and writes notes and
// attachments into it.
type Writer struct {
	markdown    string
	attachments string
}

// NewWriter creates the markdown/ and attachments/ directories under
// outputDir and returns a Writer rooted there.
func NewWriter(outputDir string) (*Writer, error) {
	w := &Writer{
		markdown:    filepath.Join(outputDir, markdownDir),
		attachments: filepath.Join(outputDir, attachmentsDir),
	}
	for _, dir := range []string{w.markdown, w.attachments} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating output directory %s: %w", dir, err)
		}
	}
	return w, nil
}

// DocumentPath returns where the note named name is written.
func (w *Writer) DocumentPath(name string) string {
	return filepath.Join(w.markdown, name+".md")
}

// WriteDocument writes a note. name is the bare filename without extension;
// an existing note of the same name is replaced.
func (w *Writer) WriteDocument(name, text string) error {
	if err := os.WriteFile(w.DocumentPath(name), []byte(text), 0o644); err != nil {
		return fmt.Errorf("writing note %s: %w", name, err)
	}
	return nil
}

// WriteAttachment stores attachment bytes under name. An existing file of
// the same name wins: the write is skipped silently and saved is false.
func (w *Writer) WriteAttachment(name string, data []byte) (saved bool, err error) {
	path := filepath.Join(w.attachments, name)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("writing attachment %s: %w", name, err)
	}
	_, writeErr := f.Write(data)
	closeErr := f.Close()
	if writeErr != nil {
		return false, fmt.Errorf("writing attachment %s: %w", name, writeErr)
	}
	if closeErr != nil {
		return false, fmt.Errorf("writing attachment %s: %w", name, closeErr)
	}
	return true, nil
}

// Touch sets the note's access and modification times so the file carries
// the conversation's original timestamps.
func (w *Writer) Touch(name string, ts time.Time) error {
	return os.Chtimes(w.DocumentPath(name), ts, ts)
}
