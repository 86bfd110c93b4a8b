// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/notemill/internal/registry"
	"github.com/pdiddy/notemill/internal/scan"
)

var exportsCmd = &cobra.Command{
	Use:   "exports",
	Short: "List discovered exports and their processed status",
	Long: `Exports scans the source root and lists every export found there, whether a
converter exists for its provider, and when it was last processed.`,
	RunE: runExports,
}

func init() {
	exportsCmd.Flags().String("source", defaultSourceRoot, "providers root to scan for exports")
	exportsCmd.Flags().String("registry", defaultRegistryPath, "processed-exports registry database")
	exportsCmd.Flags().String("format", "table", "output format: table, json, or yaml")

	rootCmd.AddCommand(exportsCmd)
}

// exportStatus is one row of the exports listing.
type exportStatus struct {
	Provider    string `json:"provider" yaml:"provider"`
	Date        string `json:"date" yaml:"date"`
	Path        string `json:"path" yaml:"path"`
	Supported   bool   `json:"supported" yaml:"supported"`
	Processed   bool   `json:"processed" yaml:"processed"`
	ProcessedAt string `json:"processed_at,omitempty" yaml:"processed_at,omitempty"`
}

func runExports(cmd *cobra.Command, args []string) error {
	exports, err := scan.Discover(stringSetting(cmd, "source", "source"))
	if err != nil {
		return err
	}

	reg, err := registry.Open(stringSetting(cmd, "registry", "registry"))
	if err != nil {
		return err
	}
	defer reg.Close()

	entries, err := reg.List()
	if err != nil {
		return err
	}

	statuses := make([]exportStatus, 0, len(exports))
	for _, exp := range exports {
		status := exportStatus{
			Provider:  string(exp.Provider),
			Date:      exp.Date,
			Path:      exp.Path,
			Supported: exp.Provider.Supported(),
		}
		if entry, ok := entries[exp.Key()]; ok {
			status.Processed = true
			status.ProcessedAt = entry.ProcessedAt.Format(time.RFC3339)
		}
		statuses = append(statuses, status)
	}

	switch format, _ := cmd.Flags().GetString("format"); format {
	case "table":
		formatExportsTable(statuses, os.Stdout)
		return nil
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(statuses)
	case "yaml":
		data, err := yaml.Marshal(statuses)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	default:
		return fmt.Errorf("unknown format: %s (use table, json, or yaml)", format)
	}
}

// formatExportsTable writes the listing as a human-readable table to w.
func formatExportsTable(statuses []exportStatus, w io.Writer) {
	if len(statuses) == 0 {
		fmt.Fprintln(w, "No exports found.")
		return
	}

	fmt.Fprintf(w, "%-10s  %-12s  %-14s  %-22s  %s\n",
		"Provider", "Date", "Status", "Processed At", "Path")
	fmt.Fprintln(w, strings.Repeat("-", 90))

	for _, s := range statuses {
		status := "pending"
		switch {
		case !s.Supported:
			status = "no converter"
		case s.Processed:
			status = "done"
		}
		fmt.Fprintf(w, "%-10s  %-12s  %-14s  %-22s  %s\n",
			s.Provider, s.Date, status, s.ProcessedAt, s.Path)
	}

	fmt.Fprintf(w, "\n%d exports\n", len(statuses))
}
