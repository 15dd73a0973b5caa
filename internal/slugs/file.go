package slugs

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultListFile is the list file name used when none is configured.
const DefaultListFile = "plugin_list.txt"

// FileProvider loads the candidate list from a text file.
type FileProvider struct {
	path string
}

// Compile-time check that FileProvider implements Provider.
var _ Provider = (*FileProvider)(nil)

// NewFileProvider returns a provider reading path (DefaultListFile if empty).
func NewFileProvider(path string) *FileProvider {
	if path == "" {
		path = DefaultListFile
	}
	return &FileProvider{path: path}
}

// Slugs reads the list file. A missing file is an error wrapping
// os.ErrNotExist.
func (p *FileProvider) Slugs(ctx context.Context) ([]string, error) {
	entries, err := p.Entries(ctx)
	if err != nil {
		return nil, err
	}
	return SlugsOf(entries), nil
}

// Entries reads the list file including any metadata columns.
func (p *FileProvider) Entries(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(p.path)
	if err != nil {
		return nil, fmt.Errorf("slugs: open list: %w", err)
	}
	defer f.Close()
	return ParseList(f)
}

// FileSink writes a built list to a text file.
type FileSink struct {
	path string
}

// Compile-time check that FileSink implements Sink.
var _ Sink = (*FileSink)(nil)

// NewFileSink returns a sink writing path (DefaultListFile if empty).
func NewFileSink(path string) *FileSink {
	if path == "" {
		path = DefaultListFile
	}
	return &FileSink{path: path}
}

// Publish replaces the list file. The new content is written to a temporary
// file in the same directory and renamed over the old one, so readers never
// see a partial list.
func (s *FileSink) Publish(ctx context.Context, entries []Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".plugin_list-*")
	if err != nil {
		return fmt.Errorf("slugs: create temp list: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	for _, e := range entries {
		if _, err := fmt.Fprintln(w, formatLine(e)); err != nil {
			tmp.Close()
			return fmt.Errorf("slugs: write list: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("slugs: write list: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("slugs: close list: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("slugs: replace list: %w", err)
	}
	return nil
}
