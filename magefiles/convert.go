//go:build mage

package main

import (
	"os"
	"os/exec"
	"path/filepath"

	"github.com/magefile/mage/mg"
)

// Convert builds the CLI and converts every pending export.
func Convert() error {
	mg.Deps(Build)

	cmd := exec.Command(filepath.Join(binDir, binName), "convert")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
