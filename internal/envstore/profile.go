package envstore

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// ScriptName is the shell fragment rendered next to the profile file.
const ScriptName = "env.sh"

type profileDoc struct {
	Variables map[string]string `yaml:"variables"`
}

// Profile stores variables in a YAML file and renders a POSIX shell script
// that login shells source. Search-path variables hold only the entries
// devenv manages; the script prepends them to the inherited value.
type Profile struct {
	path       string
	searchVars map[string]bool
	logger     *slog.Logger
	mu         sync.Mutex
}

// NewProfile returns a store persisted at path. searchPathVars names the
// variables rendered as prepended search lists.
func NewProfile(path string, searchPathVars []string, logger *slog.Logger) *Profile {
	if logger == nil {
		logger = slog.Default()
	}
	sv := make(map[string]bool, len(searchPathVars))
	for _, name := range searchPathVars {
		sv[name] = true
	}
	return &Profile{path: path, searchVars: sv, logger: logger}
}

// ScriptPath returns the location of the rendered shell fragment.
func (p *Profile) ScriptPath() string {
	return filepath.Join(filepath.Dir(p.path), ScriptName)
}

func (p *Profile) Get(name string) (string, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	doc, err := p.load()
	if err != nil {
		return "", false, err
	}
	v, ok := doc.Variables[name]
	return v, ok, nil
}

func (p *Profile) Set(name, value string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("variable name is empty")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	doc, err := p.load()
	if err != nil {
		return err
	}
	if doc.Variables == nil {
		doc.Variables = map[string]string{}
	}
	doc.Variables[name] = value
	return p.save(doc)
}

// Notify re-renders the shell script. Running shells keep their environment;
// new ones pick up the script.
func (p *Profile) Notify() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	doc, err := p.load()
	if err != nil {
		return err
	}
	if err := writeAtomic(p.ScriptPath(), []byte(p.render(doc))); err != nil {
		return err
	}
	p.logger.Debug("environment script rendered", "path", p.ScriptPath())
	return nil
}

func (p *Profile) load() (profileDoc, error) {
	var doc profileDoc
	data, err := os.ReadFile(p.path)
	if os.IsNotExist(err) {
		return doc, nil
	}
	if err != nil {
		return doc, fmt.Errorf("read profile %s: %w", p.path, err)
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("parse profile %s: %w", p.path, err)
	}
	return doc, nil
}

func (p *Profile) save(doc profileDoc) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	return writeAtomic(p.path, data)
}

func (p *Profile) render(doc profileDoc) string {
	names := make([]string, 0, len(doc.Variables))
	for k := range doc.Variables {
		names = append(names, k)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("# Generated by devenv. Source this file from your shell profile.\n")
	for _, name := range names {
		value := doc.Variables[name]
		if p.searchVars[name] {
			if value == "" {
				continue
			}
			fmt.Fprintf(&b, "export %s=%s:\"${%s}\"\n", name, shellQuote(value), name)
			continue
		}
		fmt.Fprintf(&b, "export %s=%s\n", name, shellQuote(value))
	}
	return b.String()
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	name := tmp.Name()
	defer os.Remove(name)
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(name, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
