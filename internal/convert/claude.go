// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pdiddy/notemill/internal/note"
	"github.com/pdiddy/notemill/internal/textnorm"
	"github.com/pdiddy/notemill/pkg/types"
)

// attachmentPreviewLimit caps how much of an attachment's extracted content
// gets inlined into the note.
const attachmentPreviewLimit = 500

// langByExt maps file extensions to code-fence language tags. Unknown
// extensions get an untagged fence.
var langByExt = map[string]string{
	".py":    "python",
	".swift": "swift",
	".js":    "javascript",
	".ts":    "typescript",
	".css":   "css",
	".html":  "html",
	".json":  "json",
	".md":    "markdown",
	".sh":    "bash",
	".yml":   "yaml",
	".yaml":  "yaml",
}

// Claude converts Anthropic data exports: conversations as flat message
// arrays, plus the memories.json and projects.json side documents.
type Claude struct {
	cfg types.ConvertConfig
}

// NewClaude returns a Claude converter.
func NewClaude(cfg types.ConvertConfig) *Claude {
	return &Claude{cfg: cfg}
}

type claudeConversation struct {
	Name      string          `json:"name"`
	CreatedAt string          `json:"created_at"`
	UpdatedAt string          `json:"updated_at"`
	Messages  []claudeMessage `json:"chat_messages"`
}

type claudeMessage struct {
	Sender      string             `json:"sender"`
	Text        string             `json:"text"`
	Content     []claudeContent    `json:"content"`
	Attachments []claudeAttachment `json:"attachments"`
}

type claudeContent struct {
	Type     string `json:"type"`
	Text     string `json:"text"`
	Thinking string `json:"thinking"`
}

type claudeAttachment struct {
	FileName         string `json:"file_name"`
	FileType         string `json:"file_type"`
	FileSize         int64  `json:"file_size"`
	ExtractedContent string `json:"extracted_content"`
}

type claudeMemory struct {
	ConversationsMemory string            `json:"conversations_memory"`
	ProjectMemories     map[string]string `json:"project_memories"`
}

type claudeProject struct {
	UUID             string             `json:"uuid"`
	Name             string             `json:"name"`
	Description      string             `json:"description"`
	Docs             []claudeProjectDoc `json:"docs"`
	CreatedAt        string             `json:"created_at"`
	IsStarterProject bool               `json:"is_starter_project"`
}

type claudeProjectDoc struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// Convert renders conversations, the memories document, and one note per
// project. Claude exports embed attachment content in the conversation
// records, so there are no separate media files to copy.
func (c *Claude) Convert(exp types.Export, w io.Writer) (Stats, error) {
	var stats Stats

	nw, err := note.NewWriter(outputDir(c.cfg.OutputRoot, exp))
	if err != nil {
		return stats, err
	}

	warnSchemaDrift(exp, w)

	projects, err := loadProjects(exp.Path)
	if err != nil {
		stats.Errorf("projects.json: %v", err)
	}
	memories, err := loadMemories(exp.Path)
	if err != nil {
		stats.Errorf("memories.json: %v", err)
	}

	// Project memories are keyed by project UUID and feed both the memories
	// document and the per-project notes.
	projectMemories := make(map[string]string)
	for _, mem := range memories {
		maps.Copy(projectMemories, mem.ProjectMemories)
	}

	c.convertConversations(exp.Path, nw, &stats, w)
	c.convertMemories(memories, projects, nw, &stats, w)
	c.convertProjects(projects, projectMemories, nw, &stats, w)

	fmt.Fprintln(w, "no separate attachments to copy (embedded in conversations)")
	return stats, nil
}

func loadMemories(dir string) ([]claudeMemory, error) {
	data, err := os.ReadFile(filepath.Join(dir, "memories.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var memories []claudeMemory
	if err := json.Unmarshal(data, &memories); err != nil {
		return nil, err
	}
	return memories, nil
}

func loadProjects(dir string) ([]claudeProject, error) {
	data, err := os.ReadFile(filepath.Join(dir, "projects.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var projects []claudeProject
	if err := json.Unmarshal(data, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

func (c *Claude) convertConversations(dir string, nw *note.Writer, stats *Stats, w io.Writer) {
	data, err := os.ReadFile(filepath.Join(dir, "conversations.json"))
	if err != nil {
		stats.Errorf("conversations.json not found in %s", dir)
		return
	}
	var conversations []claudeConversation
	if err := json.Unmarshal(data, &conversations); err != nil {
		stats.Errorf("parsing conversations.json: %v", err)
		return
	}
	stats.Total = len(conversations)
	fmt.Fprintf(w, "found %d conversations\n", len(conversations))

	used := make(map[string]int)
	for _, conv := range conversations {
		title := conv.Name
		if title == "" {
			title = "Untitled"
		}
		// Every conversation consumes a filename slot, converted or not,
		// so numbering is stable across runs.
		name := note.UniqueName(used, note.SanitizeFilename(title))
		if len(conv.Messages) == 0 {
			continue
		}

		doc := note.Frontmatter("claude") + formatClaudeConversation(conv.Messages)
		if err := nw.WriteDocument(name, textnorm.NormalizeWhitespace(doc)); err != nil {
			stats.Errorf("%s: %v", title, err)
			fmt.Fprintf(w, "failed:  %s (%v)\n", title, err)
			continue
		}
		if ts, ok := parseISOTime(conv.CreatedAt); ok {
			nw.Touch(name, ts)
		}
		stats.Converted++
		fmt.Fprintf(w, "converted: %s\n", name)
	}
}

// formatClaudeConversation renders messages with human turns blockquoted,
// assistant turns verbatim, and attachment previews after the quoted turn
// that carried them.
func formatClaudeConversation(messages []claudeMessage) string {
	var parts []string
	for _, msg := range messages {
		text := claudeMessageText(msg)
		if text == "" {
			continue
		}
		text = textnorm.Normalize(text)

		if msg.Sender == "human" {
			parts = append(parts, note.BlockquoteUser(text))
			if att := formatClaudeAttachments(msg.Attachments); att != "" {
				parts = append(parts, att)
			}
		} else {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// claudeMessageText pulls a message's text: the flat text field when
// present, otherwise the structured content items. Thinking blocks render
// as collapsed details sections; tool traffic is dropped.
func claudeMessageText(msg claudeMessage) string {
	if text := strings.TrimSpace(msg.Text); text != "" {
		return text
	}
	var parts []string
	for _, item := range msg.Content {
		switch item.Type {
		case "text":
			parts = append(parts, item.Text)
		case "thinking":
			if item.Thinking != "" {
				parts = append(parts, "\n<details>\n<summary>Thinking</summary>\n\n"+item.Thinking+"\n\n</details>\n")
			}
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

// formatClaudeAttachments renders attachments that carry extracted content.
// Text-like files get a capped code-fence preview, the rest just a size
// line. Attachments without extracted content are skipped.
func formatClaudeAttachments(attachments []claudeAttachment) string {
	var parts []string
	for _, att := range attachments {
		if att.ExtractedContent == "" {
			continue
		}
		name := att.FileName
		if name == "" {
			name = "unknown"
		}
		if isTextAttachment(att.FileType, name) {
			parts = append(parts, fmt.Sprintf("\n**Attached: %s**\n```%s\n%s\n```",
				name, langForFile(name), previewOf(att.ExtractedContent)))
		} else {
			parts = append(parts, fmt.Sprintf("\n**Attached: %s** (%d bytes)", name, att.FileSize))
		}
	}
	return strings.Join(parts, "\n")
}

func isTextAttachment(fileType, filename string) bool {
	if strings.HasPrefix(fileType, "text/") {
		return true
	}
	for _, ext := range []string{".md", ".py", ".swift", ".js", ".css"} {
		if strings.HasSuffix(filename, ext) {
			return true
		}
	}
	return false
}

func previewOf(content string) string {
	if utf8.RuneCountInString(content) <= attachmentPreviewLimit {
		return content
	}
	return string([]rune(content)[:attachmentPreviewLimit]) + "..."
}

func (c *Claude) convertMemories(memories []claudeMemory, projects []claudeProject, nw *note.Writer, stats *Stats, w io.Writer) {
	if len(memories) == 0 {
		fmt.Fprintln(w, "no memories to convert")
		return
	}

	names := make(map[string]string, len(projects))
	for _, p := range projects {
		names[p.UUID] = p.Name
	}

	var b strings.Builder
	b.WriteString(note.Frontmatter("claude", "chat_memory"))
	b.WriteString("# Claude Memories\n\n")
	b.WriteString("This file contains Claude's learned context from conversations.\n\n")

	for _, mem := range memories {
		if mem.ConversationsMemory != "" {
			b.WriteString("## General Context\n\n")
			b.WriteString(mem.ConversationsMemory + "\n\n")
		}
		if len(mem.ProjectMemories) == 0 {
			continue
		}
		b.WriteString("## Project Memories\n\n")
		for _, uuid := range sortedKeys(mem.ProjectMemories) {
			name := names[uuid]
			if name == "" {
				name = shortUUID(uuid)
			}
			b.WriteString("### " + name + "\n\n")
			b.WriteString(mem.ProjectMemories[uuid] + "\n\n")
		}
	}

	if err := nw.WriteDocument("Claude Memories", textnorm.NormalizeWhitespace(b.String())); err != nil {
		stats.Errorf("memories: %v", err)
		return
	}
	stats.Memories++
	fmt.Fprintln(w, "converted: Claude Memories")
}

// shortUUID abbreviates a project UUID for display when its project record
// is gone from the export.
func shortUUID(uuid string) string {
	if len(uuid) <= 12 {
		return uuid
	}
	return uuid[:12] + "..."
}

func (c *Claude) convertProjects(projects []claudeProject, projectMemories map[string]string, nw *note.Writer, stats *Stats, w io.Writer) {
	if len(projects) == 0 {
		return
	}
	fmt.Fprintf(w, "found %d projects\n", len(projects))

	for _, proj := range projects {
		// Starter projects are the provider's built-in examples.
		if proj.IsStarterProject {
			continue
		}
		name := proj.Name
		if name == "" {
			name = "Untitled Project"
		}
		filename := note.SanitizeFilename("Project - " + name)

		var b strings.Builder
		b.WriteString(note.Frontmatter("claude", "chat_project"))
		b.WriteString("# " + name + "\n\n")
		if proj.Description != "" {
			b.WriteString(proj.Description + "\n\n")
		}
		if memory, ok := projectMemories[proj.UUID]; ok {
			b.WriteString("## Project Memory\n\n")
			b.WriteString(memory + "\n\n")
		}
		if len(proj.Docs) > 0 {
			b.WriteString("## Project Documents\n\n")
			for _, doc := range proj.Docs {
				docName := doc.Filename
				if docName == "" {
					docName = "unknown"
				}
				b.WriteString("### " + docName + "\n\n")
				if doc.Content != "" {
					b.WriteString("```" + langForFile(docName) + "\n" + doc.Content + "\n```\n\n")
				}
			}
		}

		if err := nw.WriteDocument(filename, textnorm.NormalizeWhitespace(b.String())); err != nil {
			stats.Errorf("Project %s: %v", name, err)
			fmt.Fprintf(w, "failed:  %s (%v)\n", filename, err)
			continue
		}
		if ts, ok := parseISOTime(proj.CreatedAt); ok {
			nw.Touch(filename, ts)
		}
		stats.Projects++
		fmt.Fprintf(w, "converted: %s\n", filename)
	}
}

// langForFile maps a filename's extension to its fence language tag.
func langForFile(filename string) string {
	return langByExt[strings.ToLower(filepath.Ext(filename))]
}

// parseISOTime parses the export's ISO-8601 timestamps, with or without
// fractional seconds.
func parseISOTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// sortedKeys returns the keys of m in sorted order. It stands in for
// slices.Sorted(maps.Keys(m)), which needs Go 1.23.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
