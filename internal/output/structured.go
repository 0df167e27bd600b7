package output

import (
	"encoding/json"
	"fmt"
	"io"

	"appaudit/internal/rules"

	"gopkg.in/yaml.v3"
)

// structured writes the machine-readable audit formats shared by the console,
// --emit and --out sinks. json and yaml collect a Document and write it from
// finish; ndjson streams one Event per line as records arrive.
type structured struct {
	w         io.Writer
	format    string
	collector collector
}

func newStructured(w io.Writer, format string, allowed ...string) (*structured, error) {
	for _, f := range allowed {
		if f == format {
			return &structured{w: w, format: format}, nil
		}
	}
	return nil, fmt.Errorf("unsupported format %q (want one of %v)", format, allowed)
}

func (s *structured) write(v any) error {
	if s.format != "ndjson" {
		s.collector.collect(v)
		return nil
	}
	var rec Event
	switch t := v.(type) {
	case Event:
		rec = t
	case rules.Result:
		rec = eventFromResult(t)
	default:
		return nil
	}
	if err := json.NewEncoder(s.w).Encode(rec); err != nil {
		return err
	}
	return flushIfPossible(s.w)
}

func (s *structured) finish() error {
	doc := s.collector.document()
	switch s.format {
	case "json":
		enc := json.NewEncoder(s.w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return err
		}
	case "yaml":
		enc := yaml.NewEncoder(s.w)
		enc.SetIndent(2)
		err := enc.Encode(doc)
		if closeErr := enc.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			return err
		}
	default:
		return nil
	}
	return flushIfPossible(s.w)
}
