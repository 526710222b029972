package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

var threadIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ValidThreadID reports whether id is safe to use as a checkpoint key and file name part.
func ValidThreadID(id string) bool {
	return threadIDPattern.MatchString(id)
}

// ArtifactName is the file name of the deck generated for id.
func ArtifactName(id string) string {
	return "pitch_" + id + ".html"
}

// ArtifactLink is the public URL of the deck generated for id.
func ArtifactLink(host, id string) string {
	for len(host) > 0 && host[len(host)-1] == '/' {
		host = host[:len(host)-1]
	}
	return host + "/pitch/" + ArtifactName(id)
}

// FileWriter stores decks as pitch_{id}.html under Dir.
type FileWriter struct {
	Dir string
}

// NewFileWriter returns a writer rooted at dir.
func NewFileWriter(dir string) *FileWriter {
	return &FileWriter{Dir: dir}
}

// Write stores html and returns the file path. The file is replaced atomically.
func (w *FileWriter) Write(_ context.Context, id, html string) (string, error) {
	if !ValidThreadID(id) {
		return "", fmt.Errorf("invalid artifact id %q", id)
	}
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create generated directory: %w", err)
	}

	path := filepath.Join(w.Dir, ArtifactName(id))
	tmp, err := os.CreateTemp(w.Dir, ".pitch-*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.WriteString(html); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to move artifact into place: %w", err)
	}
	return path, nil
}

// Exists reports whether the deck for id is on disk.
func (w *FileWriter) Exists(_ context.Context, id string) bool {
	if !ValidThreadID(id) {
		return false
	}
	info, err := os.Stat(filepath.Join(w.Dir, ArtifactName(id)))
	return err == nil && info.Mode().IsRegular()
}
