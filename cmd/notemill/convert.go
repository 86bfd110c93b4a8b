// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/notemill/internal/convert"
	"github.com/pdiddy/notemill/internal/registry"
	"github.com/pdiddy/notemill/internal/scan"
	"github.com/pdiddy/notemill/pkg/types"
)

const (
	defaultSourceRoot   = "providers"
	defaultOutputRoot   = "obsidian_export"
	defaultRegistryPath = "notemill.db"
)

var convertCmd = &cobra.Command{
	Use:   "convert [provider]",
	Short: "Convert chat exports into Obsidian notes",
	Long: `Convert discovers exports under the source root (providers/<name>/<date>/),
converts each into markdown notes and attachments under the output root, and
records processed exports so reruns skip them. Pass a provider name to
convert only that provider's exports.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().String("source", defaultSourceRoot, "providers root to scan for exports")
	convertCmd.Flags().String("output", defaultOutputRoot, "root directory for converted notes")
	convertCmd.Flags().String("date", "", "convert only exports with this date")
	convertCmd.Flags().Bool("all", false, "reconvert exports already marked processed")
	convertCmd.Flags().Duration("timeout", convert.DefaultTimeout, "HTTP timeout for image downloads")
	convertCmd.Flags().String("user-agent", convert.DefaultUserAgent, "User-Agent header for image downloads")
	convertCmd.Flags().Int("max-errors", convert.DefaultMaxErrors, "error lines shown per export summary")
	convertCmd.Flags().String("registry", defaultRegistryPath, "processed-exports registry database")
	convertCmd.Flags().String("report", "", "write a YAML conversion report to this file")

	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	cfg := types.ConvertConfig{
		FetchConfig: types.FetchConfig{
			Timeout:   durationSetting(cmd, "timeout", "timeout"),
			UserAgent: stringSetting(cmd, "user-agent", "user_agent"),
		},
		SourceRoot: stringSetting(cmd, "source", "source"),
		OutputRoot: stringSetting(cmd, "output", "output"),
		MaxErrors:  intSetting(cmd, "max-errors", "max_errors"),
	}

	exports, err := scan.Discover(cfg.SourceRoot)
	if err != nil {
		return err
	}
	if len(exports) == 0 {
		fmt.Printf("No exports found under %s.\n", cfg.SourceRoot)
		return nil
	}

	if len(args) == 1 {
		provider, err := types.ParseProvider(args[0])
		if err != nil {
			return err
		}
		exports = filterExports(exports, func(e types.Export) bool { return e.Provider == provider })
	}
	if date, _ := cmd.Flags().GetString("date"); date != "" {
		exports = filterExports(exports, func(e types.Export) bool { return e.Date == date })
	}

	reg, err := registry.Open(stringSetting(cmd, "registry", "registry"))
	if err != nil {
		return err
	}
	defer reg.Close()

	all, _ := cmd.Flags().GetBool("all")
	var pending []types.Export
	for _, exp := range exports {
		if !exp.Provider.Supported() {
			fmt.Printf("skipping %s (no converter)\n", exp.Key())
			continue
		}
		if !all {
			done, err := reg.IsProcessed(exp.Key())
			if err != nil {
				return err
			}
			if done {
				fmt.Printf("skipping %s (already processed)\n", exp.Key())
				continue
			}
		}
		pending = append(pending, exp)
	}
	if len(pending) == 0 {
		fmt.Println("All exports have been processed.")
		return nil
	}

	batch := convert.Run(pending, cfg, os.Stdout)

	for _, res := range batch.Results {
		if !res.Succeeded() {
			continue
		}
		if err := reg.MarkProcessed(res.Export); err != nil {
			return fmt.Errorf("marking %s processed: %w", res.Export.Key(), err)
		}
		fmt.Printf("marked %s as processed\n", res.Export.Key())
	}

	if report, _ := cmd.Flags().GetString("report"); report != "" {
		if err := writeReport(report, batch); err != nil {
			return err
		}
		fmt.Printf("report written to %s\n", report)
	}

	if batch.HasFailures() {
		return fmt.Errorf("%d export(s) failed conversion", batch.Failed())
	}
	return nil
}

func filterExports(exports []types.Export, keep func(types.Export) bool) []types.Export {
	var out []types.Export
	for _, e := range exports {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

// runReport is the YAML document written by --report.
type runReport struct {
	GeneratedAt string                 `yaml:"generated_at"`
	Results     []convert.ExportResult `yaml:"results"`
	Totals      convert.Stats          `yaml:"totals"`
}

func writeReport(path string, batch convert.BatchResult) error {
	report := runReport{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Results:     batch.Results,
		Totals:      batch.Totals(),
	}
	data, err := yaml.Marshal(report)
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
