package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// lookupFunc resolves a variable the way os.LookupEnv does.
type lookupFunc func(key string) (string, bool)

// newLookup returns a lookup that prefers env and falls back to overrides.
// Presence in env wins even when the value is empty.
func newLookup(env lookupFunc, overrides map[string]string) lookupFunc {
	return func(key string) (string, bool) {
		if v, ok := env(key); ok {
			return v, true
		}
		v, ok := overrides[key]
		return v, ok
	}
}

// readEnvFile parses the .env override file. A missing file is not an error.
func readEnvFile(path string) (map[string]string, bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", path, err)
	}
	return parseEnv(string(data)), true, nil
}

// parseEnv reads KEY=value lines. Blank lines, '#' comments, lines without
// '=' and lines with an empty key are skipped. Key and value are trimmed and
// one layer of matching quotes is removed from the value; nothing else is
// interpreted, so '$', '#' and backslashes inside a value are kept as is.
// The first assignment of a key wins.
func parseEnv(content string) map[string]string {
	vars := make(map[string]string)
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		if _, seen := vars[key]; seen {
			continue
		}
		vars[key] = unquote(strings.TrimSpace(value))
	}
	return vars
}

// unquote strips one pair of matching surrounding quotes.
func unquote(v string) string {
	if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
		return v[1 : len(v)-1]
	}
	return v
}
