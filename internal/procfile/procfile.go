// Package procfile reads, writes and completes the app's process types.
package procfile

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/reviewapps-dev/wfpack/internal/failure"
	"github.com/reviewapps-dev/wfpack/internal/install"
)

const (
	FileName = "Procfile"
	Web      = "web"
)

// Types maps a process type name to its command.
type Types map[string]string

// Names returns the type names with web first, the rest sorted.
func (t Types) Names() []string {
	names := make([]string, 0, len(t))
	for n := range t {
		if n != Web {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	if _, ok := t[Web]; ok {
		names = append([]string{Web}, names...)
	}
	return names
}

var entryPattern = regexp.MustCompile(`^([A-Za-z0-9_-]+):\s*(.*)$`)

// Parse reads a Procfile: one "name: command" per line, with blank lines and
// lines starting with # skipped. Commands are taken as written apart from
// surrounding whitespace. A missing file yields no types.
func Parse(path string) (Types, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Types{}, nil
		}
		return nil, failure.Configuration("read %s: %v", path, err)
	}

	types := Types{}
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, " \t\r")
		if line == "" || strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		m := entryPattern.FindStringSubmatch(line)
		if m == nil {
			return nil, failure.Configuration("%s:%d: expected \"name: command\"", path, i+1)
		}
		name, cmd := m[1], strings.TrimSpace(m[2])
		if cmd == "" {
			return nil, failure.Configuration("%s:%d: process type %q has an empty command", path, i+1, name)
		}
		if _, dup := types[name]; dup {
			return nil, failure.Configuration("%s:%d: process type %q declared twice", path, i+1, name)
		}
		types[name] = cmd
	}
	return types, nil
}

// Write stores types as a Procfile, web first.
func Write(path string, types Types) error {
	var sb strings.Builder
	for _, name := range types.Names() {
		fmt.Fprintf(&sb, "%s: %s\n", name, types[name])
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// DefaultWeb is the command that boots the installed server on $PORT. The
// home dir is written relative to $HOME when it lies inside buildDir.
func DefaultWeb(inst install.Installation, buildDir string) string {
	script := inst.StandalonePath()
	if buildDir != "" {
		if rel, err := filepath.Rel(buildDir, script); err == nil && !strings.HasPrefix(rel, "..") {
			script = "$HOME/" + filepath.ToSlash(rel)
		}
	}
	return script + " -b 0.0.0.0 -Djboss.http.port=$PORT"
}

// Select returns declared with a web type guaranteed. A declared web entry
// is kept verbatim; otherwise the default is added and synthesized is true.
// The declared map is not modified.
func Select(declared Types, inst install.Installation, buildDir string) (selected Types, synthesized bool) {
	selected = make(Types, len(declared)+1)
	for name, cmd := range declared {
		selected[name] = cmd
	}
	if _, ok := selected[Web]; ok {
		return selected, false
	}
	selected[Web] = DefaultWeb(inst, buildDir)
	return selected, true
}

// Release renders the default_process_types document a buildpack release
// step prints.
func Release(types Types) ([]byte, error) {
	doc := struct {
		DefaultProcessTypes Types `yaml:"default_process_types"`
	}{types}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal release: %w", err)
	}
	return out, nil
}
