package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileSink writes the audit to --out as json, ndjson or yaml.
type FileSink struct {
	path string
	file *os.File
	mu   sync.Mutex
	out  *structured
}

// OutFormatFor infers the --out format from the file extension.
func OutFormatFor(path string) (string, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		return "json", nil
	case ".ndjson", ".jsonl":
		return "ndjson", nil
	case ".yaml", ".yml":
		return "yaml", nil
	default:
		return "", fmt.Errorf("cannot infer output format from file extension %q (set --out-format)", ext)
	}
}

// NewFileSink creates path (and its directory). An empty format is inferred
// from the extension.
func NewFileSink(path string, format string) (*FileSink, error) {
	if path == "" {
		return nil, fmt.Errorf("output path required")
	}
	if format == "" {
		var err error
		if format, err = OutFormatFor(path); err != nil {
			return nil, err
		}
	}
	// Validate before touching the filesystem.
	if _, err := newStructured(nil, format, "json", "ndjson", "yaml"); err != nil {
		return nil, fmt.Errorf("output file: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	out, _ := newStructured(f, format, format)
	return &FileSink{path: path, file: f, out: out}, nil
}

func (s *FileSink) Write(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out.write(v)
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.out.finish()
	if closeErr := s.file.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	return nil
}
