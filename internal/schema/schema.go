// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package schema fingerprints export data layouts. Providers change their
// export formats without notice; a converter written against one layout
// should say so before chewing through a different one. Drift is reported,
// never fatal: conversion proceeds and degrades where fields moved.
package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pdiddy/notemill/pkg/types"
)

// Fingerprint describes the shape of an export: which JSON files it carries
// and the top-level keys of each, plus message-level detail for providers
// whose conversations nest structured content.
type Fingerprint struct {
	Provider     types.Provider
	Version      string
	Files        map[string][]string
	MessageKeys  []string
	ContentTypes []string
}

// claudeV1 is the export layout the Claude converter was written against.
var claudeV1 = Fingerprint{
	Provider: types.ProviderClaude,
	Version:  "1.0",
	Files: map[string][]string{
		"users.json":         {"uuid", "full_name", "email_address"},
		"conversations.json": {"uuid", "name", "summary", "created_at", "updated_at", "account", "chat_messages"},
		"memories.json":      {"conversations_memory", "project_memories", "account_uuid"},
		"projects.json":      {"uuid", "name", "description", "docs", "created_at"},
	},
	MessageKeys:  []string{"uuid", "text", "sender", "created_at", "content", "attachments", "files"},
	ContentTypes: []string{"text", "tool_use", "tool_result", "thinking", "token_budget"},
}

// chatgptV1 is the export layout the ChatGPT converter was written against.
var chatgptV1 = Fingerprint{
	Provider: types.ProviderChatGPT,
	Version:  "1.0",
	Files: map[string][]string{
		"conversations.json": {"title", "create_time", "update_time", "mapping"},
	},
}

// Expected returns the baseline fingerprint for p. ok is false for providers
// without a JSON export layout to validate (Gemini ships page archives).
func Expected(p types.Provider) (Fingerprint, bool) {
	switch p {
	case types.ProviderClaude:
		return claudeV1, true
	case types.ProviderChatGPT:
		return chatgptV1, true
	default:
		return Fingerprint{}, false
	}
}

// Detect fingerprints the export at dir: every parseable top-level JSON file
// contributes its key set, and for Claude exports the conversations file
// also contributes message keys and content types. Unparseable files are
// skipped; their absence from the fingerprint surfaces as drift.
func Detect(dir string, p types.Provider) (Fingerprint, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("reading export directory: %w", err)
	}

	fp := Fingerprint{Provider: p, Files: make(map[string][]string)}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		var doc any
		if err := json.Unmarshal(data, &doc); err != nil {
			continue
		}

		switch v := doc.(type) {
		case []any:
			if len(v) > 0 {
				if first, ok := v[0].(map[string]any); ok {
					fp.Files[e.Name()] = sortedKeys(first)
				}
			}
		case map[string]any:
			fp.Files[e.Name()] = sortedKeys(v)
		}

		if e.Name() == "conversations.json" && p == types.ProviderClaude {
			fp.MessageKeys, fp.ContentTypes = messageShape(doc)
		}
	}
	return fp, nil
}

// messageShape pulls message keys from the first message found and content
// types from every message in the export.
func messageShape(doc any) (keys, contentTypes []string) {
	conversations, ok := doc.([]any)
	if !ok {
		return nil, nil
	}

	typeSet := make(map[string]bool)
	for _, c := range conversations {
		conv, ok := c.(map[string]any)
		if !ok {
			continue
		}
		messages, ok := conv["chat_messages"].([]any)
		if !ok {
			continue
		}
		for _, m := range messages {
			msg, ok := m.(map[string]any)
			if !ok {
				continue
			}
			if keys == nil {
				keys = sortedKeys(msg)
			}
			content, ok := msg["content"].([]any)
			if !ok {
				continue
			}
			for _, item := range content {
				if entry, ok := item.(map[string]any); ok {
					if t, ok := entry["type"].(string); ok {
						typeSet[t] = true
					}
				}
			}
		}
	}
	return keys, sortedKeys(typeSet)
}

// Matches compares the detected fingerprint against a baseline. Extra files
// and keys are not drift (exports accrete fields constantly and converters
// ignore them); missing expected structure and unknown content types are.
func (f Fingerprint) Matches(expected Fingerprint) (bool, []string) {
	var diffs []string

	for _, name := range sortedKeys(expected.Files) {
		gotKeys, ok := f.Files[name]
		if !ok {
			diffs = append(diffs, fmt.Sprintf("%s: file missing or unreadable", name))
			continue
		}
		if missing := missingFrom(expected.Files[name], gotKeys); len(missing) > 0 {
			diffs = append(diffs, fmt.Sprintf("%s: missing keys %v", name, missing))
		}
	}

	if len(expected.MessageKeys) > 0 && len(f.MessageKeys) > 0 {
		if missing := missingFrom(expected.MessageKeys, f.MessageKeys); len(missing) > 0 {
			diffs = append(diffs, fmt.Sprintf("messages: missing keys %v", missing))
		}
	}

	if unknown := missingFrom(f.ContentTypes, expected.ContentTypes); len(unknown) > 0 {
		diffs = append(diffs, fmt.Sprintf("messages: unknown content types %v", unknown))
	}

	return len(diffs) == 0, diffs
}

// missingFrom returns the members of want absent from have, sorted.
func missingFrom(want, have []string) []string {
	var missing []string
	for _, k := range want {
		if !slices.Contains(have, k) {
			missing = append(missing, k)
		}
	}
	slices.Sort(missing)
	return missing
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
