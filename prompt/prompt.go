package prompt

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"text/template"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed prompts/*.txt
var embeddedPrompts embed.FS

// Loader renders drafting prompts. Files in the project's override
// directories shadow the embedded prompt of the same name. It is safe for
// concurrent use.
type Loader struct {
	dirs []string

	mu    sync.Mutex
	cache map[string]*template.Template
}

// NewLoader creates a loader for projectDir. Overrides are looked up in
// .socialflow/prompts/ and then prompts/ under projectDir. An empty
// projectDir uses only the embedded prompts.
func NewLoader(projectDir string) *Loader {
	l := &Loader{cache: make(map[string]*template.Template)}
	if projectDir != "" {
		l.dirs = []string{
			filepath.Join(projectDir, ".socialflow", "prompts"),
			filepath.Join(projectDir, "prompts"),
		}
	}
	return l
}

// Load renders a prompt that takes no variables.
func (l *Loader) Load(name string) (string, error) {
	return l.LoadWithVars(name, nil)
}

// LoadWithVars renders a prompt with vars.
func (l *Loader) LoadWithVars(name string, vars map[string]any) (string, error) {
	tmpl, err := l.template(name)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", name, err)
	}
	return buf.String(), nil
}

// Names lists the embedded prompt names, sorted. Overrides can only replace
// these.
func Names() []string {
	entries, _ := fs.Glob(embeddedPrompts, "prompts/*.txt")
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(filepath.Base(e), ".txt"))
	}
	sort.Strings(names)
	return names
}

// Check parses every prompt, overrides included, and reports all that fail.
func (l *Loader) Check() error {
	var errs []error
	for _, name := range Names() {
		if _, err := l.template(name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (l *Loader) template(name string) (*template.Template, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if tmpl, ok := l.cache[name]; ok {
		return tmpl, nil
	}

	content, source, err := l.read(name)
	if err != nil {
		return nil, err
	}
	tmpl, err := template.New(name).Funcs(funcs).Parse(content)
	if err != nil {
		return nil, fmt.Errorf("parse prompt %s (%s): %w", name, source, err)
	}
	l.cache[name] = tmpl
	return tmpl, nil
}

// read returns the prompt text and where it came from.
func (l *Loader) read(name string) (string, string, error) {
	filename := name + ".txt"
	for _, dir := range l.dirs {
		path := filepath.Join(dir, filename)
		if data, err := os.ReadFile(path); err == nil {
			return string(data), path, nil
		}
	}

	data, err := embeddedPrompts.ReadFile("prompts/" + filename)
	if err != nil {
		return "", "", fmt.Errorf("prompt not found: %s", name)
	}
	return string(data), "embedded", nil
}

var funcs = template.FuncMap{
	"default": defaultValue,
	"trim":    strings.TrimSpace,
	"join":    strings.Join,
	"quote":   func(s string) string { return fmt.Sprintf("%q", s) },
	"title":   cases.Title(language.English).String,
	"bullets": bullets,
}

// defaultValue returns def when value is nil or blank.
func defaultValue(def, value any) any {
	if value == nil {
		return def
	}
	if s, ok := value.(string); ok && strings.TrimSpace(s) == "" {
		return def
	}
	return value
}

// bullets renders items as a markdown list, one per line.
func bullets(items []string) string {
	var b strings.Builder
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- ")
		b.WriteString(strings.ReplaceAll(item, "\n", " "))
	}
	return b.String()
}

// Builder assembles a system prompt from a base text and titled sections.
type Builder struct {
	parts []string
}

// NewBuilder creates an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Add appends text. Blank text is skipped.
func (b *Builder) Add(text string) *Builder {
	if s := strings.TrimSpace(text); s != "" {
		b.parts = append(b.parts, s)
	}
	return b
}

// AddSection appends a "## header" section. Empty content is skipped.
func (b *Builder) AddSection(header, content string) *Builder {
	if strings.TrimSpace(content) == "" {
		return b
	}
	b.parts = append(b.parts, fmt.Sprintf("## %s\n\n%s", header, strings.TrimSpace(content)))
	return b
}

// Build returns the sections joined by blank lines.
func (b *Builder) Build() string {
	return strings.Join(b.parts, "\n\n")
}
