package host

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Well-known snapshot keys.
const (
	KeyEnvironment = "app.env"
	KeyDebug       = "app.debug"
	KeyMiddleware  = "http.middleware"
)

// DefaultEnvironment is assumed when the snapshot does not name one.
const DefaultEnvironment = "production"

// DefaultEnvPrefix is the environment variable prefix for host overrides.
// APPAUDIT_HOST_APP__DEBUG=true sets app.debug.
const DefaultEnvPrefix = "APPAUDIT_HOST_"

// Snapshot is a koanf-backed Context. It is built from host snapshot files
// (YAML, TOML or JSON) and environment overrides, and may be mutated with Set
// between queries.
type Snapshot struct {
	mu sync.RWMutex
	k  *koanf.Koanf
}

// LoadOptions selects the sources of a Snapshot. Files are merged in order;
// later files override earlier ones and environment overrides win.
type LoadOptions struct {
	Files     []string
	EnvPrefix string
}

// NewSnapshot builds a Snapshot from an in-memory map. Keys may be dotted
// ("app.debug") or nested maps.
func NewSnapshot(values map[string]any) (*Snapshot, error) {
	k := koanf.New(".")
	if len(values) > 0 {
		if err := k.Load(confmap.Provider(values, "."), nil); err != nil {
			return nil, fmt.Errorf("load host values: %w", err)
		}
	}
	return &Snapshot{k: k}, nil
}

// Load reads host snapshot files and environment overrides.
func Load(opts LoadOptions) (*Snapshot, error) {
	k := koanf.New(".")
	for _, path := range opts.Files {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		parser, err := parserFor(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("load host file %s: %w", path, err)
		}
	}

	if opts.EnvPrefix != "" {
		if err := loadEnv(k, opts.EnvPrefix); err != nil {
			return nil, fmt.Errorf("load host env: %w", err)
		}
	}
	return &Snapshot{k: k}, nil
}

func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		// JSON is a subset of YAML.
		return yaml.Parser(), nil
	case ".toml":
		return toml.Parser(), nil
	default:
		return nil, fmt.Errorf("unsupported host file %q: expected .yaml, .yml, .json or .toml", path)
	}
}

func loadEnv(k *koanf.Koanf, prefix string) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: prefix,
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, prefix))
			return strings.ReplaceAll(key, "__", "."), value
		},
	}), nil)
}

// Set overwrites a single key.
func (s *Snapshot) Set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.k.Set(key, value)
}

// SetMiddleware replaces the global middleware list.
func (s *Snapshot) SetMiddleware(refs ...MiddlewareRef) error {
	list := make([]any, 0, len(refs))
	for _, r := range refs {
		entry := map[string]any{"name": r.Name}
		if len(r.Params) > 0 {
			entry["params"] = r.Params
		}
		list = append(list, entry)
	}
	return s.Set(KeyMiddleware, list)
}

// PushMiddleware appends to the global middleware list.
func (s *Snapshot) PushMiddleware(ref MiddlewareRef) error {
	current, err := s.Middleware()
	if err != nil {
		return err
	}
	return s.SetMiddleware(append(current, ref)...)
}

func (s *Snapshot) Middleware() ([]MiddlewareRef, error) {
	s.mu.RLock()
	raw := s.k.Get(KeyMiddleware)
	s.mu.RUnlock()

	if raw == nil {
		return nil, nil
	}
	var items []any
	switch t := raw.(type) {
	case []any:
		items = t
	case []string:
		for _, name := range t {
			items = append(items, name)
		}
	default:
		return nil, fmt.Errorf("%w: %s must be a list, got %T", ErrInvalidValue, KeyMiddleware, raw)
	}

	refs := make([]MiddlewareRef, 0, len(items))
	for i, item := range items {
		ref, err := parseMiddlewareRef(item)
		if err != nil {
			return nil, fmt.Errorf("%w: %s[%d]: %v", ErrInvalidValue, KeyMiddleware, i, err)
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func parseMiddlewareRef(item any) (MiddlewareRef, error) {
	switch t := item.(type) {
	case string:
		if strings.TrimSpace(t) == "" {
			return MiddlewareRef{}, fmt.Errorf("empty middleware name")
		}
		return MiddlewareRef{Name: strings.TrimSpace(t)}, nil
	case map[string]any:
		name, _ := t["name"].(string)
		if strings.TrimSpace(name) == "" {
			return MiddlewareRef{}, fmt.Errorf("middleware entry without a name")
		}
		ref := MiddlewareRef{Name: strings.TrimSpace(name)}
		if params, ok := t["params"].(map[string]any); ok {
			ref.Params = params
		}
		return ref, nil
	default:
		return MiddlewareRef{}, fmt.Errorf("unsupported middleware entry %T", item)
	}
}

func (s *Snapshot) ConfigValue(key string) (any, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.k.Exists(key) {
		return nil, false, nil
	}
	return s.k.Get(key), true, nil
}

func (s *Snapshot) Environment() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	envName := strings.TrimSpace(s.k.String(KeyEnvironment))
	if envName == "" {
		return DefaultEnvironment, nil
	}
	return envName, nil
}

func (s *Snapshot) DebugEnabled() (bool, error) {
	s.mu.RLock()
	raw := s.k.Get(KeyDebug)
	s.mu.RUnlock()

	if raw == nil {
		return false, nil
	}
	b, err := ToBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrInvalidValue, KeyDebug, err)
	}
	return b, nil
}

// ToBool converts booleans coming from YAML, TOML or environment strings.
func ToBool(v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return false, nil
		}
		return strconv.ParseBool(s)
	case int:
		return t != 0, nil
	case int64:
		return t != 0, nil
	case float64:
		return t != 0, nil
	default:
		return false, fmt.Errorf("cannot use %T as bool", v)
	}
}
