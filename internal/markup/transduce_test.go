// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package markup

import (
	"strings"
	"testing"
)

// fakeResolver records resolution calls and returns canned results.
type fakeResolver struct {
	inlineRef string
	inlineOK  bool
	remoteRef string
	remoteOK  bool

	inlineCalls []string
	remoteCalls []string
}

func (f *fakeResolver) ResolveInline(uri string) (string, bool) {
	f.inlineCalls = append(f.inlineCalls, uri)
	return f.inlineRef, f.inlineOK
}

func (f *fakeResolver) ResolveRemote(url string) (string, bool) {
	f.remoteCalls = append(f.remoteCalls, url)
	return f.remoteRef, f.remoteOK
}

func TestTransduceBasicBlocks(t *testing.T) {
	tr := NewTransducer(nil)
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"paragraph with bold", `<p>Hello <b>world</b></p>`, "Hello **world**"},
		{"strong and em", `<strong>a</strong> and <em>b</em>`, "**a** and *b*"},
		{"italic", `<i>soft</i>`, "*soft*"},
		{"heading", `<h2>Title</h2><p>Body</p>`, "## Title\n\nBody"},
		{"all heading levels", `<h1>A</h1><h2>B</h2><h3>C</h3><h4>D</h4>`, "# A\n\n## B\n\n### C\n\n#### D"},
		{"inline code", `Use <code>fmt.Println</code> here`, "Use `fmt.Println` here"},
		{"line break", `one<br>two<br/>three`, "one\ntwo\nthree"},
		{"divs unwrap without whitespace", `<div>glued</div><div>together</div>`, "gluedtogether"},
		{"link", `See <a href="https://example.com">the docs</a>.`, "See [the docs](https://example.com)."},
		{"entities decoded", `<p>a &amp; b</p>`, "a & b"},
		{"unknown tags stripped", `<custom-widget data-x="1">kept text</custom-widget>`, "kept text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tr.Transduce(tt.in)
			if got != tt.want {
				t.Errorf("Transduce(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTransduceCodeBlocks(t *testing.T) {
	tr := NewTransducer(nil)
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			"provider code-block element",
			`<code-block attr="x" language="swift">let x = 1</code-block>`,
			"```swift\nlet x = 1\n```",
		},
		{
			"pre code with language class",
			`<pre><code class="language-python">print(&quot;hi&quot;)</code></pre>`,
			"```python\nprint(\"hi\")\n```",
		},
		{
			"pre code without language",
			`<pre><code>a &amp; b</code></pre>`,
			"```\na & b\n```",
		},
		{
			"multiline body preserved",
			"<pre><code>line1\nline2</code></pre>",
			"```\nline1\nline2\n```",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tr.Transduce(tt.in)
			if got != tt.want {
				t.Errorf("Transduce(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTransduceTable(t *testing.T) {
	tr := NewTransducer(nil)

	in := `<table><tr><th>A</th><th>B</th></tr><tr><td>1</td><td>2</td></tr></table>`
	want := "| A | B |\n| --- | --- |\n| 1 | 2 |"
	if got := tr.Transduce(in); got != want {
		t.Errorf("Transduce table = %q, want %q", got, want)
	}
}

func TestTransduceTableEdgeCases(t *testing.T) {
	tr := NewTransducer(nil)
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty table", `<table></table>`, ""},
		{"rows without cells", `<table><tr></tr><tr></tr></table>`, ""},
		{
			// Emphasis rewriting runs before the table pass, so bold cell
			// text keeps its markers.
			"cells with markup and entities",
			`<table><tr><th><b>Name</b></th><th>Qty &amp; unit</th></tr><tr><td>  spaced   out </td><td>x</td></tr></table>`,
			"| **Name** | Qty & unit |\n| --- | --- |\n| spaced out | x |",
		},
		{
			"surrounded by paragraphs",
			`<p>before</p><table><tr><th>H</th></tr><tr><td>v</td></tr></table><p>after</p>`,
			"before\n\n| H |\n| --- |\n| v |\n\nafter",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tr.Transduce(tt.in)
			if got != tt.want {
				t.Errorf("Transduce(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTransduceLists(t *testing.T) {
	tr := NewTransducer(nil)
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			"unordered list with paragraph wrappers",
			`<ul><li><p>First item</p></li><li>Second   item</li></ul>`,
			"- First item\n- Second item",
		},
		{
			"ordered list",
			`<ol><li>one</li><li>two</li></ol>`,
			"- one\n- two",
		},
		{
			"list followed by paragraph",
			`<ul><li>item</li></ul><p>tail</p>`,
			"- item\n\ntail",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tr.Transduce(tt.in)
			if got != tt.want {
				t.Errorf("Transduce(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTransduceInlineImages(t *testing.T) {
	t.Run("resolved", func(t *testing.T) {
		res := &fakeResolver{inlineRef: "![[conv_img01.png]]", inlineOK: true}
		tr := NewTransducer(res)
		in := `<p>Before</p><img src="data:image/png;base64,AAAA" alt="x"><p>After</p>`
		want := "Before\n\n![[conv_img01.png]]\n\nAfter"
		if got := tr.Transduce(in); got != want {
			t.Errorf("Transduce = %q, want %q", got, want)
		}
		if len(res.inlineCalls) != 1 || res.inlineCalls[0] != "data:image/png;base64,AAAA" {
			t.Errorf("inline calls = %v", res.inlineCalls)
		}
	})

	t.Run("failed resolution drops image", func(t *testing.T) {
		res := &fakeResolver{inlineOK: false}
		tr := NewTransducer(res)
		in := `<p>Before</p><img src="data:image/png;base64,@@@"><p>After</p>`
		want := "Before\n\nAfter"
		if got := tr.Transduce(in); got != want {
			t.Errorf("Transduce = %q, want %q", got, want)
		}
	})
}

func TestTransduceRemoteImages(t *testing.T) {
	t.Run("generated CDN image downloaded", func(t *testing.T) {
		res := &fakeResolver{remoteRef: "![[conv_img01.png]]", remoteOK: true}
		tr := NewTransducer(res)
		in := `<img src="https://lh3.googleusercontent.com/gg/abc123=w512">`
		want := "![[conv_img01.png]]"
		if got := tr.Transduce(in); got != want {
			t.Errorf("Transduce = %q, want %q", got, want)
		}
		if len(res.remoteCalls) != 1 || res.remoteCalls[0] != "https://lh3.googleusercontent.com/gg/abc123=w512" {
			t.Errorf("remote calls = %v", res.remoteCalls)
		}
	})

	t.Run("failed download degrades to link", func(t *testing.T) {
		res := &fakeResolver{remoteOK: false}
		tr := NewTransducer(res)
		in := `<img src="https://lh3.googleusercontent.com/gg/abc123">`
		want := "![](https://lh3.googleusercontent.com/gg/abc123)"
		if got := tr.Transduce(in); got != want {
			t.Errorf("Transduce = %q, want %q", got, want)
		}
	})

	t.Run("non-CDN image stays a link and is never fetched", func(t *testing.T) {
		res := &fakeResolver{remoteRef: "![[should-not-appear]]", remoteOK: true}
		tr := NewTransducer(res)
		in := `<img src="https://example.com/pic.jpg" alt="pic">`
		want := "![](https://example.com/pic.jpg)"
		if got := tr.Transduce(in); got != want {
			t.Errorf("Transduce = %q, want %q", got, want)
		}
		if len(res.remoteCalls) != 0 {
			t.Errorf("resolver fetched non-CDN URL: %v", res.remoteCalls)
		}
	})
}

// Transduced output never contains markup tags, whatever the input shape.
func TestTransduceNoTagsRemain(t *testing.T) {
	tr := NewTransducer(nil)
	fragments := []string{
		`<span class="weird"><p>text</p></span>`,
		`<custom-element attr="1">inner</custom-element>`,
		`<p>unclosed paragraph`,
		`<div><div><p>deeply nested</p></div></div>`,
		`<table><tr><td><b>cell</b></td></tr></table>`,
		`<ul><li><span>item</span></li></ul>`,
		`<h1>head</h1><pre><code>code</code></pre><a href="u">l</a>`,
		`plain text with no markup at all`,
	}
	for _, f := range fragments {
		out := tr.Transduce(f)
		if strings.ContainsAny(out, "<>") {
			t.Errorf("Transduce(%q) left tag delimiters: %q", f, out)
		}
	}
}

func TestTransduceWhitespaceCollapse(t *testing.T) {
	tr := NewTransducer(nil)

	in := "<p>one</p>\n\n\n\n<p>two</p>"
	want := "one\n\ntwo"
	if got := tr.Transduce(in); got != want {
		t.Errorf("Transduce = %q, want %q", got, want)
	}
}

// The pipeline order is a contract: images before code blocks, code blocks
// before inline formatting, tables before lists, cleanup last.
func TestPassOrder(t *testing.T) {
	tr := NewTransducer(nil)
	want := []string{
		"inline-images", "remote-images", "code-blocks", "inline-code",
		"emphasis", "headings", "tables", "lists", "blocks", "links",
		"cleanup",
	}
	got := tr.passes()
	if len(got) != len(want) {
		t.Fatalf("pipeline has %d passes, want %d", len(got), len(want))
	}
	for i, p := range got {
		if p.name != want[i] {
			t.Errorf("pass %d = %q, want %q", i, p.name, want[i])
		}
	}
}
