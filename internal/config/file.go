package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// loadFile reads a YAML config file and flattens it into the same keys the
// environment uses: {ai: {api_key: x}} becomes SCHEMAQUERY_AI_API_KEY=x.
func loadFile(path string) (map[string]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var document map[string]any
	if err := yaml.Unmarshal(raw, &document); err != nil {
		return nil, fmt.Errorf("parse config file %q: %w", path, err)
	}
	values := map[string]string{}
	if err := flatten(strings.TrimSuffix(envPrefix, "_"), document, values); err != nil {
		return nil, fmt.Errorf("parse config file %q: %w", path, err)
	}
	return values, nil
}

func flatten(prefix string, node map[string]any, out map[string]string) error {
	for key, value := range node {
		name := prefix + "_" + strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(key), "-", "_"))
		switch typed := value.(type) {
		case map[string]any:
			if err := flatten(name, typed, out); err != nil {
				return err
			}
		case []any:
			return fmt.Errorf("key %s: lists are not supported", name)
		case nil:
		default:
			out[name] = fmt.Sprint(typed)
		}
	}
	return nil
}

// layered resolves keys from primary first and falls back to values.
func layered(primary LookupFunc, values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		if value, ok := primary(key); ok {
			return value, true
		}
		value, ok := values[key]
		return value, ok
	}
}
