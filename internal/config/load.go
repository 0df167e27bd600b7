package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix selects environment variables that override config file values.
// Nested keys use "__": APPAUDIT_RUNTIME__CI=true sets runtime.ci.
const EnvPrefix = "APPAUDIT_"

// Config file names looked up in the working directory, in order.
var localConfigNames = []string{"appaudit.yaml", "appaudit.yml", "appaudit.toml"}

// listKeys are split on commas when they come from the environment.
var listKeys = map[string]bool{
	"rules.enabled":     true,
	"rules.dont_report": true,
	"rules.set":         true,
	"host.files":        true,
	"output.emit":       true,
}

// defaultLoader loads New() into k. It can be replaced in tests.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(*New(), "koanf"), nil)
}

// envLoader loads APPAUDIT_ environment variables into k. It can be replaced in tests.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
			key = strings.ReplaceAll(key, "__", ".")
			value = strings.TrimSpace(value)
			if listKeys[key] && value != "" {
				return key, splitCommaList([]string{value})
			}
			return key, value
		},
	}), nil)
}

// userConfigPath finds $XDG_CONFIG_HOME/appaudit/config.yaml (or the first
// match on the XDG config search path). It can be replaced in tests.
var userConfigPath = func() (string, error) {
	return xdg.SearchConfigFile(filepath.Join("appaudit", "config.yaml"))
}

// FindConfigFile returns the config file to load when --config is not given:
// a local appaudit.{yaml,yml,toml} in dir, else the user config file. It
// returns "" when none exists.
func FindConfigFile(dir string) string {
	for _, name := range localConfigNames {
		p := filepath.Join(dir, name)
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return p
		}
	}
	if p, err := userConfigPath(); err == nil {
		return p
	}
	return ""
}

// Load builds a Config from defaults, the config file at path (if any) and
// APPAUDIT_ environment variables, in that order. The result is not yet
// validated: CLI flag overrides are applied on top before Validate.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := defaultLoader(k); err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}

	if path != "" {
		parser, err := parserFor(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("error loading config file %s: %w", path, err)
		}
	}

	if err := envLoader(k); err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	cfg := New()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}
	if cfg.Rules.Options == nil {
		cfg.Rules.Options = map[string]map[string]string{}
	}
	return cfg, nil
}

func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return yaml.Parser(), nil
	case ".toml":
		return toml.Parser(), nil
	case "":
		return nil, errors.New("config file has no extension; expected .yaml, .yml, .json or .toml")
	default:
		return nil, fmt.Errorf("unsupported config file %q: expected .yaml, .yml, .json or .toml", path)
	}
}
