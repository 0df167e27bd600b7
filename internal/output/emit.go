package output

import (
	"fmt"
	"io"
	"sync"
)

// EmitSink writes an extra machine-readable stream next to the console
// output (--emit): json writes one Document when the run closes, ndjson
// streams Events while rules run.
type EmitSink struct {
	mu  sync.Mutex
	out *structured
}

func NewEmitSink(w io.Writer, format string) (*EmitSink, error) {
	if w == nil {
		return nil, fmt.Errorf("emit sink writer must not be nil")
	}
	out, err := newStructured(w, format, "json", "ndjson")
	if err != nil {
		return nil, fmt.Errorf("emit: %w", err)
	}
	return &EmitSink{out: out}, nil
}

func (s *EmitSink) Write(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out.write(v)
}

func (s *EmitSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out.finish()
}
