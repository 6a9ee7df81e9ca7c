// Package output writes pipeline payloads to disk for one-shot CLI runs.
package output

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gaurav-prasanna/deckproxy/core"
)

// Writer writes payload bodies to an output directory.
type Writer struct {
	OutputDir string
}

// New creates a Writer targeting the given output directory.
// If outputDir is empty, it defaults to the current working directory.
func New(outputDir string) (*Writer, error) {
	if outputDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting working directory: %w", err)
		}
		outputDir = wd
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	return &Writer{OutputDir: outputDir}, nil
}

// Write stores the payload body under its resolved filename and returns
// the written path. Streaming bodies are copied, not buffered.
func (w *Writer) Write(p *core.Payload) (string, error) {
	path := filepath.Join(w.OutputDir, filepath.Base(p.Filename))

	if p.Reader == nil {
		if err := os.WriteFile(path, p.Bytes, 0644); err != nil {
			return "", fmt.Errorf("writing file %s: %w", path, err)
		}
		return path, nil
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating file %s: %w", path, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, p.Reader); err != nil {
		return "", fmt.Errorf("writing file %s: %w", path, err)
	}
	return path, nil
}
