// Package prompts provides a loader for externalized LLM prompt templates.
// Prompts are stored as JSON files and embedded at compile time.
package prompts

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"text/template"
)

//go:embed *.json
var promptFiles embed.FS

var (
	cache     = make(map[string]map[string]string)
	templates = make(map[string]*template.Template)
	cacheMu   sync.RWMutex
)

// Get retrieves a raw prompt by filename and key (e.g. "pitch.json", "assess-fit-user").
func Get(filename, key string) (string, error) {
	prompts, err := loadFile(filename)
	if err != nil {
		return "", err
	}

	prompt, exists := prompts[key]
	if !exists {
		return "", fmt.Errorf("prompt key %q not found in %s", key, filename)
	}
	return prompt, nil
}

// MustGet retrieves a prompt by filename and key, panicking if not found.
func MustGet(filename, key string) string {
	prompt, err := Get(filename, key)
	if err != nil {
		panic(fmt.Sprintf("failed to load prompt: %v", err))
	}
	return prompt
}

// Render executes the prompt as a text/template with data. A placeholder
// without a matching key is an error rather than an empty substitution.
func Render(filename, key string, data map[string]string) (string, error) {
	tmpl, err := loadTemplate(filename, key)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render prompt %s/%s: %w", filename, key, err)
	}
	return buf.String(), nil
}

func loadTemplate(filename, key string) (*template.Template, error) {
	id := filename + "#" + key

	cacheMu.RLock()
	tmpl, ok := templates[id]
	cacheMu.RUnlock()
	if ok {
		return tmpl, nil
	}

	raw, err := Get(filename, key)
	if err != nil {
		return nil, err
	}
	tmpl, err = template.New(id).Option("missingkey=error").Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse prompt %s: %w", id, err)
	}

	cacheMu.Lock()
	templates[id] = tmpl
	cacheMu.Unlock()
	return tmpl, nil
}

func loadFile(filename string) (map[string]string, error) {
	cacheMu.RLock()
	if prompts, exists := cache[filename]; exists {
		cacheMu.RUnlock()
		return prompts, nil
	}
	cacheMu.RUnlock()

	data, err := promptFiles.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt file %s: %w", filename, err)
	}

	var prompts map[string]string
	if err := json.Unmarshal(data, &prompts); err != nil {
		return nil, fmt.Errorf("failed to parse prompt file %s: %w", filename, err)
	}

	cacheMu.Lock()
	cache[filename] = prompts
	cacheMu.Unlock()

	return prompts, nil
}

// ClearCache clears the prompt and template caches. Useful for testing.
func ClearCache() {
	cacheMu.Lock()
	cache = make(map[string]map[string]string)
	templates = make(map[string]*template.Template)
	cacheMu.Unlock()
}

// List returns all prompt keys in a file, sorted.
func List(filename string) ([]string, error) {
	prompts, err := loadFile(filename)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(prompts))
	for key := range prompts {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}
