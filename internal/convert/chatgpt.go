// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/pdiddy/notemill/internal/note"
	"github.com/pdiddy/notemill/internal/textnorm"
	"github.com/pdiddy/notemill/pkg/types"
)

// imageExts are the attachment types copied out of JSON exports.
var imageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
	".svg":  true,
}

// Asset pointer stems. Image files in the export start with one of these
// forms; conversation parts reference them by pointer URI.
var (
	sedimentRe    = regexp.MustCompile(`^file_[0-9a-f]+`)
	fileServiceRe = regexp.MustCompile(`^file-[A-Za-z0-9]+`)
)

// ChatGPT converts OpenAI data exports: one conversations.json holding every
// conversation as a message tree, plus image files referenced by asset
// pointer.
type ChatGPT struct {
	cfg types.ConvertConfig
}

// NewChatGPT returns a ChatGPT converter.
func NewChatGPT(cfg types.ConvertConfig) *ChatGPT {
	return &ChatGPT{cfg: cfg}
}

type chatgptConversation struct {
	Title      string                 `json:"title"`
	CreateTime float64                `json:"create_time"`
	UpdateTime float64                `json:"update_time"`
	Mapping    map[string]chatgptNode `json:"mapping"`
}

type chatgptNode struct {
	Parent   *string         `json:"parent"`
	Children []string        `json:"children"`
	Message  *chatgptMessage `json:"message"`
}

type chatgptMessage struct {
	Author struct {
		Role string `json:"role"`
	} `json:"author"`
	Content struct {
		ContentType string            `json:"content_type"`
		Parts       []json.RawMessage `json:"parts"`
	} `json:"content"`
}

// chatgptPart is the object form of a message part. Parts appear either as
// bare strings or as objects carrying text or an asset pointer.
type chatgptPart struct {
	Text         *string `json:"text"`
	ContentType  string  `json:"content_type"`
	AssetPointer string  `json:"asset_pointer"`
}

// Convert reads conversations.json and renders each conversation, then
// copies the export's image files into the attachments directory.
func (c *ChatGPT) Convert(exp types.Export, w io.Writer) (Stats, error) {
	var stats Stats

	nw, err := note.NewWriter(outputDir(c.cfg.OutputRoot, exp))
	if err != nil {
		return stats, err
	}

	warnSchemaDrift(exp, w)

	assets := buildAssetMap(exp.Path)
	fmt.Fprintf(w, "found %d image assets\n", len(assets))

	data, err := os.ReadFile(filepath.Join(exp.Path, "conversations.json"))
	if err != nil {
		stats.Errorf("conversations.json not found in %s", exp.Path)
		return stats, nil
	}
	var conversations []chatgptConversation
	if err := json.Unmarshal(data, &conversations); err != nil {
		stats.Errorf("parsing conversations.json: %v", err)
		return stats, nil
	}
	stats.Total = len(conversations)
	fmt.Fprintf(w, "found %d conversations\n", len(conversations))

	used := make(map[string]int)
	for _, conv := range conversations {
		title := conv.Title
		if title == "" {
			title = "Untitled"
		}
		// Every conversation consumes a filename slot, converted or not,
		// so numbering is stable across runs.
		name := note.UniqueName(used, note.SanitizeFilename(title))

		turns := turnsFromMapping(conv.Mapping, assets)
		if len(turns) == 0 {
			continue
		}

		doc := note.RenderConversation("chatgpt", turns)
		if err := nw.WriteDocument(name, doc); err != nil {
			stats.Errorf("%s: %v", title, err)
			fmt.Fprintf(w, "failed:  %s (%v)\n", title, err)
			continue
		}
		if conv.CreateTime > 0 {
			nw.Touch(name, timeFromUnix(conv.CreateTime))
		}
		stats.Converted++
		fmt.Fprintf(w, "converted: %s\n", name)
	}

	stats.AttachmentsSaved = copyAttachments(exp.Path, nw)
	fmt.Fprintf(w, "copied %d image files\n", stats.AttachmentsSaved)

	return stats, nil
}

// turnsFromMapping flattens a conversation's message tree into ordered
// turns. The mapping is id-indexed with parent/children links; traversal is
// an explicit stack with a visited set so exports with broken links or
// cycles terminate instead of recursing away.
func turnsFromMapping(mapping map[string]chatgptNode, assets map[string]string) []types.Turn {
	rootID := ""
	for id, node := range mapping {
		if node.Parent != nil {
			continue
		}
		// Map order is random; pick the smallest id so malformed exports
		// with several parentless nodes convert deterministically.
		if rootID == "" || id < rootID {
			rootID = id
		}
	}
	if rootID == "" {
		return nil
	}

	var turns []types.Turn
	visited := make(map[string]bool)
	stack := []string{rootID}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[id] {
			continue
		}
		visited[id] = true

		node, ok := mapping[id]
		if !ok {
			continue
		}
		if node.Message != nil {
			if turn, ok := turnFromMessage(node.Message, assets); ok {
				turn.Position = len(turns)
				turns = append(turns, turn)
			}
		}
		// Push children in reverse so the first child is visited next and
		// turns come out in document order.
		for i := len(node.Children) - 1; i >= 0; i-- {
			stack = append(stack, node.Children[i])
		}
	}
	return turns
}

// turnFromMessage assembles one turn's text from the message parts. System
// and tool messages are dropped; so are messages that end up empty.
func turnFromMessage(msg *chatgptMessage, assets map[string]string) (types.Turn, bool) {
	role := msg.Author.Role
	if role != "user" && role != "assistant" {
		return types.Turn{}, false
	}

	var textParts, embeds []string
	for _, raw := range msg.Content.Parts {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			textParts = append(textParts, s)
			continue
		}
		var part chatgptPart
		if err := json.Unmarshal(raw, &part); err != nil {
			continue
		}
		switch {
		case part.Text != nil:
			textParts = append(textParts, *part.Text)
		case part.ContentType == "image_asset_pointer":
			if name, ok := assets[part.AssetPointer]; ok {
				embeds = append(embeds, "![["+name+"]]")
			}
		}
	}

	text := strings.Join(textParts, "\n")
	if len(embeds) > 0 {
		if text != "" {
			text += "\n\n" + strings.Join(embeds, "\n")
		} else {
			text = strings.Join(embeds, "\n")
		}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return types.Turn{}, false
	}
	return types.Turn{Role: types.Role(role), Content: textnorm.Normalize(text)}, true
}

// buildAssetMap indexes the export's image files by the asset-pointer URIs
// conversation parts use to reference them. Images live in the export root
// and one or two directory levels below it.
func buildAssetMap(dir string) map[string]string {
	assets := make(map[string]string)
	registerDir(assets, dir)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return assets
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		sub := filepath.Join(dir, e.Name())
		registerDir(assets, sub)
		nested, err := os.ReadDir(sub)
		if err != nil {
			continue
		}
		for _, n := range nested {
			if n.IsDir() {
				registerDir(assets, filepath.Join(sub, n.Name()))
			}
		}
	}
	return assets
}

func registerDir(assets map[string]string, dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() || !imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		name := e.Name()
		if m := sedimentRe.FindString(name); m != "" {
			assets["sediment://"+m] = name
		} else if m := fileServiceRe.FindString(name); m != "" {
			assets["file-service://"+m] = name
		}
	}
}

// copyAttachments copies the export's image files into the attachments
// directory: the export root, dalle-generations/, user-*/ upload dirs, and
// bare-UUID dirs. Existing files win; the count is files actually written.
func copyAttachments(dir string, nw *note.Writer) int {
	copied := 0
	copyFrom := func(d string) {
		entries, err := os.ReadDir(d)
		if err != nil {
			return
		}
		for _, e := range entries {
			if e.IsDir() || !imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
				continue
			}
			data, err := os.ReadFile(filepath.Join(d, e.Name()))
			if err != nil {
				continue
			}
			if saved, err := nw.WriteAttachment(e.Name(), data); err == nil && saved {
				copied++
			}
		}
	}

	copyFrom(dir)
	copyFrom(filepath.Join(dir, "dalle-generations"))

	entries, err := os.ReadDir(dir)
	if err != nil {
		return copied
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if strings.HasPrefix(e.Name(), "user-") || looksLikeUUID(e.Name()) {
			copyFrom(filepath.Join(dir, e.Name()))
		}
	}
	return copied
}

// looksLikeUUID matches the bare-UUID directories some exports put uploads
// in.
func looksLikeUUID(name string) bool {
	return len(name) == 36 && strings.Contains(name, "-")
}

// timeFromUnix converts the export's fractional epoch seconds.
func timeFromUnix(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}
