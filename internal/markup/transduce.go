// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package markup converts rendered chat-page HTML into document text with
// purely local pattern rewriting. It never builds a DOM tree: the page
// shape shifts between exports, so the converter runs an ordered list of
// regex passes and degrades unknown structure to stripped plain text.
package markup

import (
	"html"
	"regexp"
	"strings"

	"github.com/pdiddy/notemill/internal/textnorm"
)

// ImageResolver materializes image references found during transduction.
// Implementations report failure with ok=false and must not abort the
// surrounding conversion.
type ImageResolver interface {
	// ResolveInline decodes a data URI and saves it as an attachment,
	// returning an embed reference.
	ResolveInline(dataURI string) (ref string, ok bool)

	// ResolveRemote downloads a generated-image CDN URL and saves it as
	// an attachment, returning an embed reference.
	ResolveRemote(url string) (ref string, ok bool)
}

// generatedCDN marks URLs of provider-generated images that are worth
// downloading; all other remote images stay as plain links.
const generatedCDN = "lh3.googleusercontent.com/gg/"

var (
	dataImgRe   = regexp.MustCompile(`<img[^>]*src="(data:image/[^"]+)"[^>]*>`)
	remoteImgRe = regexp.MustCompile(`<img[^>]*src="(https?://[^"]+)"[^>]*>`)

	codeBlockElemRe = regexp.MustCompile(`(?s)<code-block[^>]*?language="([^"]*)"[^>]*>(.*?)</code-block>`)
	preCodeLangRe   = regexp.MustCompile(`(?s)<pre[^>]*><code[^>]*class="[^"]*language-([^"]*)"[^>]*>(.*?)</code></pre>`)
	preCodeRe       = regexp.MustCompile(`(?s)<pre[^>]*><code[^>]*>(.*?)</code></pre>`)
	inlineCodeRe    = regexp.MustCompile("<code[^>]*>(.*?)</code>")

	boldRe   = regexp.MustCompile(`<b[^>]*>(.*?)</b>`)
	strongRe = regexp.MustCompile(`<strong[^>]*>(.*?)</strong>`)
	italicRe = regexp.MustCompile(`<i[^>]*>(.*?)</i>`)
	emRe     = regexp.MustCompile(`<em[^>]*>(.*?)</em>`)

	h1Re = regexp.MustCompile(`<h1[^>]*>(.*?)</h1>`)
	h2Re = regexp.MustCompile(`<h2[^>]*>(.*?)</h2>`)
	h3Re = regexp.MustCompile(`<h3[^>]*>(.*?)</h3>`)
	h4Re = regexp.MustCompile(`<h4[^>]*>(.*?)</h4>`)

	tableRe = regexp.MustCompile(`(?s)<table[^>]*>(.*?)</table>`)
	trRe    = regexp.MustCompile(`(?s)<tr[^>]*>(.*?)</tr>`)
	cellRe  = regexp.MustCompile(`(?s)<t[dh][^>]*>(.*?)</t[dh]>`)

	liRe     = regexp.MustCompile(`(?s)<li[^>]*>(.*?)</li>`)
	ulOpenRe = regexp.MustCompile(`<ul[^>]*>`)
	olOpenRe = regexp.MustCompile(`<ol[^>]*>`)

	pOpenRe   = regexp.MustCompile(`<p[^>]*>`)
	brRe      = regexp.MustCompile(`<br\s*/?>`)
	divOpenRe = regexp.MustCompile(`<div[^>]*>`)

	linkRe = regexp.MustCompile(`<a[^>]*href="([^"]*)"[^>]*>(.*?)</a>`)

	tagRe          = regexp.MustCompile(`<[^>]+>`)
	anySpaceRe     = regexp.MustCompile(`\s+`)
	multiNewlineRe = regexp.MustCompile(`\n{3,}`)
	spaceRunRe     = regexp.MustCompile(` +`)
)

// Transducer converts one assistant-response HTML fragment into document
// text by running the rewrite passes in order. Order matters: later passes
// assume earlier passes already removed the structures they handle.
type Transducer struct {
	res ImageResolver
}

// NewTransducer returns a Transducer that materializes images through res.
// A nil resolver drops inline images and turns every remote image into a
// plain link.
func NewTransducer(res ImageResolver) *Transducer {
	return &Transducer{res: res}
}

type pass struct {
	name string
	fn   func(string) string
}

// passes returns the rewrite pipeline in execution order.
func (t *Transducer) passes() []pass {
	return []pass{
		{"inline-images", t.rewriteInlineImages},
		{"remote-images", t.rewriteRemoteImages},
		{"code-blocks", rewriteCodeBlocks},
		{"inline-code", rewriteInlineCode},
		{"emphasis", rewriteEmphasis},
		{"headings", rewriteHeadings},
		{"tables", rewriteTables},
		{"lists", rewriteLists},
		{"blocks", rewriteBlocks},
		{"links", rewriteLinks},
		{"cleanup", finalCleanup},
	}
}

// Transduce converts fragment to document text. The result contains no
// markup tags: recognized structure is rewritten and anything unrecognized
// is stripped with its inner text retained.
func (t *Transducer) Transduce(fragment string) string {
	text := fragment
	for _, p := range t.passes() {
		text = p.fn(text)
	}
	return strings.TrimSpace(text)
}

// rewriteInlineImages materializes embedded data-URI images. A failed
// resolution drops the image silently.
func (t *Transducer) rewriteInlineImages(text string) string {
	return dataImgRe.ReplaceAllStringFunc(text, func(m string) string {
		uri := dataImgRe.FindStringSubmatch(m)[1]
		if t.res != nil {
			if ref, ok := t.res.ResolveInline(uri); ok {
				return "\n" + ref + "\n"
			}
		}
		return ""
	})
}

// rewriteRemoteImages downloads generated-CDN images and keeps every other
// remote image (including failed downloads) as a plain link with the
// original URL.
func (t *Transducer) rewriteRemoteImages(text string) string {
	return remoteImgRe.ReplaceAllStringFunc(text, func(m string) string {
		url := remoteImgRe.FindStringSubmatch(m)[1]
		if strings.Contains(url, generatedCDN) && t.res != nil {
			if ref, ok := t.res.ResolveRemote(url); ok {
				return "\n" + ref + "\n"
			}
		}
		return "\n![](" + url + ")\n"
	})
}

// rewriteCodeBlocks handles the three code-block tiers, most specific
// first: the provider's <code-block language=".."> element, then
// <pre><code class="language-..">, then bare <pre><code>.
func rewriteCodeBlocks(text string) string {
	text = codeBlockElemRe.ReplaceAllStringFunc(text, func(m string) string {
		parts := codeBlockElemRe.FindStringSubmatch(m)
		return fencedBlock(parts[1], parts[2])
	})
	text = preCodeLangRe.ReplaceAllStringFunc(text, func(m string) string {
		parts := preCodeLangRe.FindStringSubmatch(m)
		return fencedBlock(parts[1], parts[2])
	})
	text = preCodeRe.ReplaceAllStringFunc(text, func(m string) string {
		return fencedBlock("", preCodeRe.FindStringSubmatch(m)[1])
	})
	return text
}

func fencedBlock(lang, body string) string {
	return "\n```" + lang + "\n" + html.UnescapeString(body) + "\n```\n"
}

func rewriteInlineCode(text string) string {
	return inlineCodeRe.ReplaceAllString(text, "`${1}`")
}

func rewriteEmphasis(text string) string {
	text = boldRe.ReplaceAllString(text, "**${1}**")
	text = strongRe.ReplaceAllString(text, "**${1}**")
	text = italicRe.ReplaceAllString(text, "*${1}*")
	text = emRe.ReplaceAllString(text, "*${1}*")
	return text
}

func rewriteHeadings(text string) string {
	text = h1Re.ReplaceAllString(text, "\n# ${1}\n")
	text = h2Re.ReplaceAllString(text, "\n## ${1}\n")
	text = h3Re.ReplaceAllString(text, "\n### ${1}\n")
	text = h4Re.ReplaceAllString(text, "\n#### ${1}\n")
	return text
}

// rewriteTables converts each HTML table to a pipe table. The first row
// with cells becomes the header and gets a dash separator row; a table
// yielding no rows rewrites to nothing.
func rewriteTables(text string) string {
	return tableRe.ReplaceAllStringFunc(text, func(m string) string {
		return tableToMarkdown(tableRe.FindStringSubmatch(m)[1])
	})
}

func tableToMarkdown(tableHTML string) string {
	var rows [][]string
	for i, row := range trRe.FindAllStringSubmatch(tableHTML, -1) {
		cells := cellRe.FindAllStringSubmatch(row[1], -1)
		clean := make([]string, 0, len(cells))
		for _, c := range cells {
			clean = append(clean, collapseInline(c[1]))
		}
		if len(clean) == 0 {
			continue
		}
		rows = append(rows, clean)
		if i == 0 {
			sep := make([]string, len(clean))
			for j := range sep {
				sep[j] = "---"
			}
			rows = append(rows, sep)
		}
	}

	if len(rows) == 0 {
		return ""
	}

	lines := make([]string, len(rows))
	for i, row := range rows {
		lines[i] = "| " + strings.Join(row, " | ") + " |"
	}
	return "\n\n" + strings.Join(lines, "\n") + "\n\n"
}

// rewriteLists flattens list items to "- " lines. Item content loses any
// paragraph wrappers the page nests inside <li>. Closing container tags
// become a newline to separate the list from following content; opening
// tags contribute nothing.
func rewriteLists(text string) string {
	text = liRe.ReplaceAllStringFunc(text, func(m string) string {
		content := liRe.FindStringSubmatch(m)[1]
		content = pOpenRe.ReplaceAllString(content, "")
		content = strings.ReplaceAll(content, "</p>", "")
		content = anySpaceRe.ReplaceAllString(content, " ")
		return "\n- " + strings.TrimSpace(content)
	})
	text = ulOpenRe.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "</ul>", "\n")
	text = olOpenRe.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "</ol>", "\n")
	return text
}

// rewriteBlocks turns paragraph boundaries and line breaks into newlines.
// Divs are purely structural on these pages and unwrap with no whitespace.
func rewriteBlocks(text string) string {
	text = pOpenRe.ReplaceAllString(text, "\n")
	text = strings.ReplaceAll(text, "</p>", "\n")
	text = brRe.ReplaceAllString(text, "\n")
	text = divOpenRe.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "</div>", "")
	return text
}

func rewriteLinks(text string) string {
	return linkRe.ReplaceAllString(text, "[${2}](${1})")
}

// finalCleanup strips whatever tags remain, decodes entities, tightens
// whitespace, and runs symbol normalization as the last transformation.
func finalCleanup(text string) string {
	text = tagRe.ReplaceAllString(text, "")
	text = html.UnescapeString(text)
	text = multiNewlineRe.ReplaceAllString(text, "\n\n")
	text = spaceRunRe.ReplaceAllString(text, " ")
	return textnorm.Normalize(text)
}

// collapseInline strips tags from an inline region, decodes entities, and
// collapses all whitespace to single spaces.
func collapseInline(s string) string {
	s = tagRe.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	s = anySpaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
