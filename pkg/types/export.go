// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"strings"
	"time"
)

// Provider identifies a chat-export source. The set is closed: converter
// dispatch switches over these values exhaustively.
type Provider string

const (
	ProviderChatGPT Provider = "chatgpt"
	ProviderClaude  Provider = "claude"
	ProviderGemini  Provider = "gemini"
)

// KnownProviders returns the supported providers in listing order.
func KnownProviders() []Provider {
	return []Provider{ProviderChatGPT, ProviderClaude, ProviderGemini}
}

// ParseProvider maps a directory or flag name to a Provider.
func ParseProvider(name string) (Provider, error) {
	switch p := Provider(strings.ToLower(name)); p {
	case ProviderChatGPT, ProviderClaude, ProviderGemini:
		return p, nil
	default:
		return "", fmt.Errorf("unknown provider %q", name)
	}
}

// Supported reports whether a converter exists for p. Discovery can surface
// directories for providers nobody has written a converter for yet; those
// are listed but skipped.
func (p Provider) Supported() bool {
	switch p {
	case ProviderChatGPT, ProviderClaude, ProviderGemini:
		return true
	default:
		return false
	}
}

// Role identifies the speaker of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message exchange unit in a conversation. A turn is immutable
// once extracted; the ordered turn sequence reflects source document order.
type Turn struct {
	// Role is the speaker: user or assistant.
	Role Role `json:"role" yaml:"role"`

	// Content is the turn text. For assistant turns extracted from page
	// markup this is raw HTML until the converter transduces it.
	Content string `json:"content" yaml:"content"`

	// Position is the turn's offset in the source document, used to pair
	// queries with their responses.
	Position int `json:"position" yaml:"position"`
}

// Export is one discovered export directory under the providers root.
type Export struct {
	// Provider is the chat service that produced the export.
	Provider Provider `json:"provider" yaml:"provider"`

	// Date is the export date directory name (e.g. "2026-01-15").
	Date string `json:"date" yaml:"date"`

	// Path is the export directory on disk.
	Path string `json:"path" yaml:"path"`
}

// Key returns the registry key identifying this export.
func (e Export) Key() string {
	return fmt.Sprintf("%s-%s", e.Provider, e.Date)
}

// Conversation is the shared internal representation every provider
// converts into before rendering.
type Conversation struct {
	// Title is the conversation title, used to derive the note filename.
	Title string `json:"title" yaml:"title"`

	// Created is the conversation creation time. When known it is applied
	// to the written note's file times.
	Created time.Time `json:"created" yaml:"created"`

	// Updated is the last-activity time.
	Updated time.Time `json:"updated" yaml:"updated"`

	// Turns is the ordered message sequence.
	Turns []Turn `json:"turns" yaml:"turns"`
}
