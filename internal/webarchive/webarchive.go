// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package webarchive reads Safari webarchive containers: property lists
// holding a main HTML resource plus embedded subresources.
package webarchive

import (
	"errors"
	"fmt"
	"os"

	"howett.net/plist"
)

// ErrUnreadableArchive marks a container that cannot be parsed as a
// webarchive property list.
var ErrUnreadableArchive = errors.New("unreadable archive container")

// Archive is a decoded container: page markup plus embedded resources.
// Read-only once produced.
type Archive struct {
	// MainHTML is the rendered page markup from the main resource.
	MainHTML string

	// Resources maps subresource URLs to their raw bytes.
	Resources map[string][]byte
}

type resource struct {
	Data             []byte `plist:"WebResourceData"`
	URL              string `plist:"WebResourceURL"`
	MIMEType         string `plist:"WebResourceMIMEType"`
	TextEncodingName string `plist:"WebResourceTextEncodingName"`
}

type container struct {
	MainResource resource   `plist:"WebMainResource"`
	Subresources []resource `plist:"WebSubresources"`
}

// Open reads and parses the webarchive at path.
func Open(path string) (*Archive, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading archive: %w", err)
	}
	return Parse(data)
}

// Parse decodes webarchive bytes. Safari writes binary property lists, but
// the XML encoding is accepted too.
func Parse(data []byte) (*Archive, error) {
	var c container
	if _, err := plist.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableArchive, err)
	}
	if len(c.MainResource.Data) == 0 {
		return nil, fmt.Errorf("%w: no main resource", ErrUnreadableArchive)
	}

	a := &Archive{
		MainHTML:  string(c.MainResource.Data),
		Resources: make(map[string][]byte, len(c.Subresources)),
	}
	for _, r := range c.Subresources {
		if r.URL != "" {
			a.Resources[r.URL] = r.Data
		}
	}
	return a, nil
}
