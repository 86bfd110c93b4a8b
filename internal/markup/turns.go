// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package markup

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pdiddy/notemill/pkg/types"
)

// queryWindow bounds how far past a user-query marker the query text is
// searched for. Query markup sits close to its marker; the window keeps a
// marker near the end of the page from scanning megabytes of trailing DOM.
const queryWindow = 5000

var (
	// User queries carry an explicit zero-based index in their id.
	userMarkerRe = regexp.MustCompile(`id="user-query-content-(\d+)"`)
	queryTextRe  = regexp.MustCompile(`(?s)class="query-text[^"]*"[^>]*>(.*?)</p>`)
	queryLineRe  = regexp.MustCompile(`(?s)class="query-text-line[^"]*"[^>]*>\s*(.*?)\s*</p>`)

	// Responses live in markdown panels closed by their message-content
	// wrapper.
	responseRe = regexp.MustCompile(`(?s)class="markdown markdown-main-panel[^"]*"[^>]*>(.*?)</div>\s*</message-content>`)
)

type userQuery struct {
	index int
	pos   int
	text  string
}

type response struct {
	pos     int
	content string
}

// ExtractTurns recovers the conversation from rendered page HTML: user
// queries ordered by their explicit index, each paired with the first
// response region positioned between it and the next query. Assistant
// content is transduced through t before emission. Turns that clean down
// to nothing are dropped; a page with no recognizable markers yields an
// empty list, not an error.
func ExtractTurns(html string, t *Transducer) []types.Turn {
	queries := findUserQueries(html)
	responses := findResponses(html)

	// Query order comes from the explicit index, not document position.
	sort.SliceStable(queries, func(i, j int) bool { return queries[i].index < queries[j].index })

	var turns []types.Turn
	for i, q := range queries {
		if text := strings.TrimSpace(q.text); text != "" {
			turns = append(turns, types.Turn{Role: types.RoleUser, Content: text, Position: q.pos})
		}

		nextPos := len(html)
		if i+1 < len(queries) {
			nextPos = queries[i+1].pos
		}

		for _, r := range responses {
			if q.pos < r.pos && r.pos < nextPos {
				if cleaned := strings.TrimSpace(t.Transduce(r.content)); cleaned != "" {
					turns = append(turns, types.Turn{Role: types.RoleAssistant, Content: cleaned, Position: r.pos})
				}
				break
			}
		}
	}
	return turns
}

func findUserQueries(html string) []userQuery {
	var queries []userQuery
	for _, loc := range userMarkerRe.FindAllStringSubmatchIndex(html, -1) {
		idx, err := strconv.Atoi(html[loc[2]:loc[3]])
		if err != nil {
			continue
		}
		start := loc[0]

		end := start + queryWindow
		if end > len(html) {
			end = len(html)
		}
		tm := queryTextRe.FindStringSubmatch(html[start:end])
		if tm == nil {
			continue
		}
		raw := tm[1]

		// Multi-line queries render as one element per line; fall back to
		// stripping the whole captured region when no line elements exist.
		var text string
		if lines := queryLineRe.FindAllStringSubmatch(raw, -1); len(lines) > 0 {
			parts := make([]string, len(lines))
			for i, l := range lines {
				parts[i] = collapseInline(l[1])
			}
			text = strings.Join(parts, "\n")
		} else {
			text = collapseInline(raw)
		}

		queries = append(queries, userQuery{index: idx, pos: start, text: text})
	}
	return queries
}

func findResponses(html string) []response {
	var responses []response
	for _, loc := range responseRe.FindAllStringSubmatchIndex(html, -1) {
		responses = append(responses, response{pos: loc[0], content: html[loc[2]:loc[3]]})
	}
	return responses
}
