package koanf

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	k "github.com/knadh/koanf/v2"
)

const (
	tag       = "koanf"
	delimiter = "."
	// nested keys are separated by a double underscore in environment variables,
	// e.g. ASSISTANT_POSTGRES__HOST maps to postgres.host.
	envNestSeparator = "__"
)

// Provide reads the configuration of the named service. Defaults come from def,
// then an optional TOML file named by <NAME>_CONFIG_FILE, then <NAME>_* environment variables.
// It panics when the configuration cannot be loaded, same as a missing flag would.
func Provide[T any](name string, def T) T {
	cfg, err := Load(name, def)
	if err != nil {
		log.Fatalf("loading %s configuration: %v", name, err)
	}

	return cfg
}

// Load is Provide without the fatal exit.
func Load[T any](name string, def T) (T, error) {
	var cfg T

	prefix := EnvPrefix(name)
	kc := k.New(delimiter)

	if err := kc.Load(structs.Provider(def, tag), nil); err != nil {
		return cfg, fmt.Errorf("loading defaults: %w", err)
	}

	if path := os.Getenv(prefix + "CONFIG_FILE"); path != "" {
		if err := kc.Load(file.Provider(path), toml.Parser()); err != nil {
			return cfg, fmt.Errorf("loading file %s: %w", path, err)
		}
	}

	if err := kc.Load(env.Provider(prefix, delimiter, func(s string) string {
		s = strings.TrimPrefix(s, prefix)
		if s == "CONFIG_FILE" {
			return ""
		}

		return strings.ReplaceAll(strings.ToLower(s), envNestSeparator, delimiter)
	}), nil); err != nil {
		return cfg, fmt.Errorf("loading environment: %w", err)
	}

	if err := kc.Unmarshal("", &cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal: %w", err)
	}

	return cfg, nil
}

// EnvPrefix returns the environment prefix of a service, "assistant" becomes "ASSISTANT_".
func EnvPrefix(name string) string {
	return strings.ToUpper(strings.ReplaceAll(name, "-", "_")) + "_"
}
