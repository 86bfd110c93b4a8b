// Package scan discovers chat exports on disk. Exports live in a two-level
// layout under the providers root: providers/<name>/<date>/, where <name> is
// the chat service and <date> is one export drop from it.
package scan

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/notemill/pkg/types"
)

// Discover walks the providers root and returns every export directory
// found, ordered by provider then date. Hidden entries and loose files are
// ignored. Unrecognized provider names are still returned so callers can
// report them; check Provider.Supported before converting.
func Discover(root string) ([]types.Export, error) {
	providers, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("reading providers root: %w", err)
	}

	var exports []types.Export
	for _, provider := range providers {
		if !provider.IsDir() || strings.HasPrefix(provider.Name(), ".") {
			continue
		}
		dates, err := os.ReadDir(filepath.Join(root, provider.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading provider directory %s: %w", provider.Name(), err)
		}
		for _, date := range dates {
			if !date.IsDir() || strings.HasPrefix(date.Name(), ".") {
				continue
			}
			exports = append(exports, types.Export{
				Provider: types.Provider(strings.ToLower(provider.Name())),
				Date:     date.Name(),
				Path:     filepath.Join(root, provider.Name(), date.Name()),
			})
		}
	}
	return exports, nil
}
