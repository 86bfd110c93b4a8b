// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package images

import (
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pdiddy/notemill/pkg/types"
)

// memSink records attachment writes in memory with the same first-writer-wins
// behavior as the real attachments directory.
type memSink struct {
	files    map[string][]byte
	writeErr error
}

func newMemSink() *memSink {
	return &memSink{files: make(map[string][]byte)}
}

func (m *memSink) WriteAttachment(name string, data []byte) (bool, error) {
	if m.writeErr != nil {
		return false, m.writeErr
	}
	if _, exists := m.files[name]; exists {
		return false, nil
	}
	m.files[name] = append([]byte(nil), data...)
	return true, nil
}

// overrideCDNHost points CDN detection at a test server and returns a
// restore function.
func overrideCDNHost(serverURL string) func() {
	orig := cdnHost
	cdnHost = strings.TrimPrefix(strings.TrimPrefix(serverURL, "https://"), "http://")
	return func() { cdnHost = orig }
}

func dataURI(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func TestResolveInline(t *testing.T) {
	tests := []struct {
		name    string
		mime    string
		wantExt string
	}{
		{"png", "image/png", ".png"},
		{"jpeg maps to jpg", "image/jpeg", ".jpg"},
		{"gif", "image/gif", ".gif"},
		{"webp", "image/webp", ".webp"},
		{"unknown image type falls back to png", "image/svg+xml", ".png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := newMemSink()
			r := NewResolver(sink, "Chat", http.DefaultClient, types.FetchConfig{})

			embed, ok := r.ResolveInline(dataURI(tt.mime, []byte("imagebytes")))
			if !ok {
				t.Fatal("ResolveInline() reported failure for valid data URI")
			}

			wantName := "Chat_img01" + tt.wantExt
			if embed != "![["+wantName+"]]" {
				t.Errorf("embed = %q, want %q", embed, "![["+wantName+"]]")
			}
			if string(sink.files[wantName]) != "imagebytes" {
				t.Errorf("attachment bytes = %q, want decoded payload", sink.files[wantName])
			}
			if r.Saved() != 1 {
				t.Errorf("Saved() = %d, want 1", r.Saved())
			}
		})
	}
}

func TestResolveInlineRejectsBadURIs(t *testing.T) {
	tests := []struct {
		name string
		uri  string
	}{
		{"not a data URI", "https://example.com/image.png"},
		{"not an image", dataURI("text/plain", []byte("hello"))},
		{"missing base64 marker", "data:image/png,rawbytes"},
		{"invalid base64", "data:image/png;base64,!!!not-base64!!!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := newMemSink()
			r := NewResolver(sink, "Chat", http.DefaultClient, types.FetchConfig{})

			if _, ok := r.ResolveInline(tt.uri); ok {
				t.Error("ResolveInline() accepted a bad URI")
			}
			if len(sink.files) != 0 {
				t.Errorf("bad URI wrote %d attachments", len(sink.files))
			}

			// A rejected URI must not consume a sequence number.
			embed, ok := r.ResolveInline(dataURI("image/png", []byte("x")))
			if !ok || embed != "![[Chat_img01.png]]" {
				t.Errorf("next image = (%q, %v), want img01 with no gap", embed, ok)
			}
		})
	}
}

func TestResolveRemote(t *testing.T) {
	var gotPath, gotUA string
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		gotPath = r.URL.String()
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte("pngbytes"))
	}))
	defer server.Close()
	defer overrideCDNHost(server.URL)()

	sink := newMemSink()
	r := NewResolver(sink, "My Chat", server.Client(), types.FetchConfig{UserAgent: "Mozilla/5.0"})

	embed, ok := r.ResolveRemote(server.URL + "/gg/AIabc123=w256-h128")
	if !ok {
		t.Fatal("ResolveRemote() reported failure")
	}
	if embed != "![[My Chat_img01.png]]" {
		t.Errorf("embed = %q", embed)
	}
	if requests != 1 {
		t.Errorf("requests = %d, want 1", requests)
	}
	if gotPath != "/gg/AIabc123=s0-rp" {
		t.Errorf("requested path = %q, want size suffix rewritten to =s0-rp", gotPath)
	}
	if gotUA != "Mozilla/5.0" {
		t.Errorf("User-Agent = %q, want Mozilla/5.0", gotUA)
	}
	if string(sink.files["My Chat_img01.png"]) != "pngbytes" {
		t.Errorf("attachment bytes = %q", sink.files["My Chat_img01.png"])
	}
}

func TestResolveRemoteIgnoresForeignHosts(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer server.Close()
	defer overrideCDNHost(server.URL)()

	sink := newMemSink()
	r := NewResolver(sink, "Chat", server.Client(), types.FetchConfig{})

	if _, ok := r.ResolveRemote("https://example.com/gg/image=w256"); ok {
		t.Error("ResolveRemote() accepted a non-CDN URL")
	}
	if requests != 0 {
		t.Errorf("non-CDN URL triggered %d requests", requests)
	}
}

func TestResolveRemoteHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()
	defer overrideCDNHost(server.URL)()

	sink := newMemSink()
	r := NewResolver(sink, "Chat", server.Client(), types.FetchConfig{})

	if _, ok := r.ResolveRemote(server.URL + "/gg/missing=w64"); ok {
		t.Error("ResolveRemote() accepted a 404 response")
	}
	if r.Saved() != 0 {
		t.Errorf("Saved() = %d after failed download", r.Saved())
	}

	// A failed download must not consume a sequence number.
	embed, ok := r.ResolveInline(dataURI("image/png", []byte("x")))
	if !ok || embed != "![[Chat_img01.png]]" {
		t.Errorf("next image = (%q, %v), want img01 with no gap", embed, ok)
	}
}

func TestSequenceSharedAcrossSources(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("remote"))
	}))
	defer server.Close()
	defer overrideCDNHost(server.URL)()

	sink := newMemSink()
	r := NewResolver(sink, "Chat", server.Client(), types.FetchConfig{})

	first, _ := r.ResolveInline(dataURI("image/png", []byte("a")))
	second, _ := r.ResolveRemote(server.URL + "/gg/b=w64")
	r.ResolveInline("data:image/png;base64,???") // rejected, no slot
	third, _ := r.ResolveInline(dataURI("image/jpeg", []byte("c")))

	want := []string{"![[Chat_img01.png]]", "![[Chat_img02.png]]", "![[Chat_img03.jpg]]"}
	got := []string{first, second, third}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("image %d = %q, want %q", i+1, got[i], want[i])
		}
	}
	if r.Saved() != 3 {
		t.Errorf("Saved() = %d, want 3", r.Saved())
	}
}

func TestFailedWriteConsumesSlot(t *testing.T) {
	sink := newMemSink()
	r := NewResolver(sink, "Chat", http.DefaultClient, types.FetchConfig{})

	sink.writeErr = errors.New("disk full")
	if _, ok := r.ResolveInline(dataURI("image/png", []byte("a"))); ok {
		t.Error("ResolveInline() reported success for a failed write")
	}

	// The slot was consumed after a successful decode, so the next image
	// keeps its document-order number.
	sink.writeErr = nil
	embed, ok := r.ResolveInline(dataURI("image/png", []byte("b")))
	if !ok || embed != "![[Chat_img02.png]]" {
		t.Errorf("next image = (%q, %v), want img02", embed, ok)
	}
	if r.Saved() != 1 {
		t.Errorf("Saved() = %d, want 1", r.Saved())
	}
}

func TestExistingAttachmentNotRecounted(t *testing.T) {
	sink := newMemSink()
	sink.files["Chat_img01.png"] = []byte("earlier run")
	r := NewResolver(sink, "Chat", http.DefaultClient, types.FetchConfig{})

	embed, ok := r.ResolveInline(dataURI("image/png", []byte("new")))
	if !ok || embed != "![[Chat_img01.png]]" {
		t.Errorf("embed = (%q, %v), want existing name reused", embed, ok)
	}
	if string(sink.files["Chat_img01.png"]) != "earlier run" {
		t.Error("existing attachment was overwritten")
	}
	if r.Saved() != 0 {
		t.Errorf("Saved() = %d, want 0 for skipped write", r.Saved())
	}
}

func TestPNGURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{
			name: "size suffix replaced",
			url:  "https://lh3.googleusercontent.com/gg/abc=w512-h512",
			want: "https://lh3.googleusercontent.com/gg/abc=s0-rp",
		},
		{
			name: "no suffix appended",
			url:  "https://lh3.googleusercontent.com/gg/abc",
			want: "https://lh3.googleusercontent.com/gg/abc=s0-rp",
		},
		{
			name: "last equals sign wins",
			url:  "https://lh3.googleusercontent.com/gg/a=1/b=w64",
			want: "https://lh3.googleusercontent.com/gg/a=1/b=s0-rp",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := pngURL(tt.url); got != tt.want {
				t.Errorf("pngURL(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}
