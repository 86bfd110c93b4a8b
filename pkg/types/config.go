package types

import "time"

// FetchConfig holds HTTP settings for the remote-image fetch.
type FetchConfig struct {
	// Timeout bounds each image download.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with image requests. The
	// image CDN serves some assets only to browser-identifying agents.
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// ConvertConfig holds settings for a conversion run.
type ConvertConfig struct {
	FetchConfig `yaml:",inline"`

	// SourceRoot is the providers root scanned for exports. It contains
	// <provider>/<date>/ subdirectories.
	SourceRoot string `json:"source_root" yaml:"source_root"`

	// OutputRoot is the directory notes are written to. The converter
	// creates markdown/ and attachments/ beneath it.
	OutputRoot string `json:"output_root" yaml:"output_root"`

	// MaxErrors caps the number of error messages printed per run
	// (default 5). The summary still reports the full error count.
	MaxErrors int `json:"max_errors" yaml:"max_errors"`
}
