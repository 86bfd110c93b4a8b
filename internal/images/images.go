// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package images materializes conversation images as attachment files with
// deterministic per-conversation numbering.
package images

import (
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pdiddy/notemill/pkg/types"
)

// cdnHost is the image CDN that serves provider-generated images. The CDN
// converts formats on request via a URL suffix. It is a variable so tests
// can point resolution at a local server.
var cdnHost = "lh3.googleusercontent.com"

// extByMIME maps image MIME types to attachment extensions. Unrecognized
// image types fall back to .png.
var extByMIME = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// AttachmentSink stores attachment bytes under a name. Implementations must
// not overwrite an existing file: the first writer for a name wins, and
// saved reports whether a write actually happened.
type AttachmentSink interface {
	WriteAttachment(name string, data []byte) (saved bool, err error)
}

// Resolver saves one conversation's images and hands back embed references.
// Inline and remote images share a single sequence counter that never
// resets within the conversation; create a new Resolver per conversation.
type Resolver struct {
	sink   AttachmentSink
	base   string
	client *http.Client
	cfg    types.FetchConfig

	counter    int
	savedCount int
}

// NewResolver returns a Resolver naming attachments after base. The client
// bounds download time; cfg supplies the request User-Agent.
func NewResolver(sink AttachmentSink, base string, client *http.Client, cfg types.FetchConfig) *Resolver {
	return &Resolver{sink: sink, base: base, client: client, cfg: cfg}
}

// Saved returns how many attachment files this resolver has written.
func (r *Resolver) Saved() int {
	return r.savedCount
}

// ResolveInline decodes a base64 data URI and saves it as an attachment.
// Parse and decode failures return ok=false without consuming a sequence
// number; the caller drops the image and continues.
func (r *Resolver) ResolveInline(dataURI string) (string, bool) {
	if !strings.HasPrefix(dataURI, "data:image/") {
		return "", false
	}
	header, b64, found := strings.Cut(dataURI, ";base64,")
	if !found {
		return "", false
	}
	ext, known := extByMIME[strings.TrimPrefix(header, "data:")]
	if !known {
		ext = ".png"
	}

	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "", false
	}
	return r.save(data, ext)
}

// ResolveRemote downloads a generated image from the CDN and saves it as a
// PNG attachment. Only CDN-hosted URLs are eligible; network errors,
// timeouts, and non-200 responses return ok=false.
func (r *Resolver) ResolveRemote(rawURL string) (string, bool) {
	if !strings.Contains(rawURL, cdnHost) {
		return "", false
	}
	data, err := r.fetch(pngURL(rawURL))
	if err != nil {
		return "", false
	}
	return r.save(data, ".png")
}

// save stores data under the next sequence number. The number is consumed
// once decode or download has succeeded, so a failed or skipped write
// still advances the sequence and later images keep their document-order
// slots.
func (r *Resolver) save(data []byte, ext string) (string, bool) {
	r.counter++
	name := fmt.Sprintf("%s_img%02d%s", r.base, r.counter, ext)

	saved, err := r.sink.WriteAttachment(name, data)
	if err != nil {
		return "", false
	}
	if saved {
		r.savedCount++
	}
	return "![[" + name + "]]", true
}

// pngURL rewrites the CDN size/format suffix to request the original size
// in lossless PNG (s0 = no resizing, rp = PNG).
func pngURL(rawURL string) string {
	if i := strings.LastIndex(rawURL, "="); i >= 0 {
		return rawURL[:i] + "=s0-rp"
	}
	return rawURL + "=s0-rp"
}

func (r *Resolver) fetch(url string) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", r.cfg.UserAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}
	return io.ReadAll(resp.Body)
}
