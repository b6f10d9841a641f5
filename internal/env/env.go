// Package env derives the process environment for an installed server.
package env

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/reviewapps-dev/wfpack/internal/install"
	"github.com/reviewapps-dev/wfpack/internal/logging"
)

const (
	JBossHome      = "JBOSS_HOME"
	JBossCLI       = "JBOSS_CLI"
	WildFlyVersion = "WILDFLY_VERSION"
	JavaHome       = "JAVA_HOME"
	Path           = "PATH"
)

// Locked keys describe the installation itself; overrides never replace them.
var Locked = []string{JBossHome, JBossCLI, WildFlyVersion}

var validName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Map is an environment with stable key order. The zero value is empty and
// ready to use.
type Map struct {
	keys   []string
	values map[string]string
}

// FromPairs builds a Map from alternating keys and values.
func FromPairs(kv ...string) *Map {
	m := &Map{}
	for i := 0; i+1 < len(kv); i += 2 {
		m.Set(kv[i], kv[i+1])
	}
	return m
}

// Set adds key at the end, or replaces its value in place.
func (m *Map) Set(key, value string) {
	if m.values == nil {
		m.values = make(map[string]string)
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

func (m *Map) Get(key string) (string, bool) {
	if m == nil || m.values == nil {
		return "", false
	}
	v, ok := m.values[key]
	return v, ok
}

func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Environ overlays m onto base (os.Environ style) and expands $VAR
// references in m's values, so PATH="/jdk/bin:$PATH" extends the base PATH.
func (m *Map) Environ(base []string) []string {
	merged := &Map{}
	for _, kv := range base {
		k, v, ok := strings.Cut(kv, "=")
		if ok {
			merged.Set(k, v)
		}
	}
	for _, k := range m.Keys() {
		v, _ := m.Get(k)
		merged.Set(k, os.Expand(v, func(name string) string {
			s, _ := merged.Get(name)
			return s
		}))
	}

	out := make([]string, 0, merged.Len())
	for _, k := range merged.keys {
		out = append(out, k+"="+merged.values[k])
	}
	return out
}

type options struct {
	runtime *install.RuntimeInstallation
}

type Option func(*options)

// WithRuntime adds JAVA_HOME and puts the JDK on PATH.
func WithRuntime(rt install.RuntimeInstallation) Option {
	return func(o *options) { o.runtime = &rt }
}

// Configure builds the environment for inst. Derived values come first,
// overrides are merged on top, and the locked keys are set last.
func Configure(inst install.Installation, overrides *Map, opts ...Option) *Map {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	out := &Map{}
	out.Set(JBossHome, inst.HomeDir)
	out.Set(JBossCLI, inst.CLIPath)
	out.Set(WildFlyVersion, inst.Version)

	pathParts := []string{filepath.Join(inst.HomeDir, "bin")}
	if o.runtime != nil {
		out.Set(JavaHome, o.runtime.HomeDir)
		pathParts = append([]string{filepath.Join(o.runtime.HomeDir, "bin")}, pathParts...)
	}
	pathParts = append(pathParts, "$PATH")
	out.Set(Path, strings.Join(pathParts, string(os.PathListSeparator)))

	for _, k := range overrides.Keys() {
		if isLocked(k) {
			logging.Logger.WithField("key", k).Debug("ignoring override of locked variable")
			continue
		}
		v, _ := overrides.Get(k)
		out.Set(k, v)
	}

	out.Set(JBossHome, inst.HomeDir)
	out.Set(JBossCLI, inst.CLIPath)
	out.Set(WildFlyVersion, inst.Version)
	return out
}

func isLocked(key string) bool {
	for _, l := range Locked {
		if key == l {
			return true
		}
	}
	return false
}

// ReadDir loads an env dir: one file per variable, named after it, holding
// the value. A missing dir yields an empty Map.
func ReadDir(dir string) (*Map, error) {
	out := &Map{}
	if dir == "" {
		return out, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, fmt.Errorf("read env dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if !validName.MatchString(name) {
			logging.Logger.WithFields(logrus.Fields{"dir": dir, "name": name}).Warn("skipping env file with invalid name")
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read env %s: %w", name, err)
		}
		out.Set(name, strings.TrimSuffix(string(data), "\n"))
	}
	return out, nil
}

// WriteProfile writes a shell script exporting m. Paths under buildDir are
// rewritten relative to $HOME, where the build dir lives at runtime.
func WriteProfile(path string, m *Map, buildDir string) error {
	var sb strings.Builder
	for _, k := range m.Keys() {
		v, _ := m.Get(k)
		if buildDir != "" {
			v = homeRelative(v, filepath.Clean(buildDir))
		}
		fmt.Fprintf(&sb, "export %s=\"%s\"\n", k, shellEscape(v))
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create profile dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("write profile: %w", err)
	}
	return nil
}

// homeRelative replaces buildDir with $HOME where it appears as a whole path:
// followed by a separator, a PATH list colon or the end of the value.
func homeRelative(v, buildDir string) string {
	var sb strings.Builder
	for {
		i := strings.Index(v, buildDir)
		if i < 0 {
			sb.WriteString(v)
			return sb.String()
		}
		end := i + len(buildDir)
		if end == len(v) || v[end] == '/' || v[end] == ':' {
			sb.WriteString(v[:i])
			sb.WriteString("$HOME")
		} else {
			sb.WriteString(v[:end])
		}
		v = v[end:]
	}
}

// shellEscape escapes for a double-quoted string, leaving $ live.
func shellEscape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "`", "\\`")
	return r.Replace(s)
}

// WriteFile stores m as KEY=VALUE lines in order.
func WriteFile(path string, m *Map) error {
	var sb strings.Builder
	for _, k := range m.Keys() {
		v, _ := m.Get(k)
		if strings.ContainsAny(v, "\n") {
			return fmt.Errorf("env %s: value spans lines", k)
		}
		sb.WriteString(k + "=" + v + "\n")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create env dir: %w", err)
	}
	return os.WriteFile(path, []byte(sb.String()), 0o600)
}

// ReadFile loads a file written by WriteFile.
func ReadFile(path string) (*Map, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open env file: %w", err)
	}
	defer f.Close()

	out := &Map{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("env file %s: malformed line %q", path, line)
		}
		out.Set(k, v)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read env file: %w", err)
	}
	return out, nil
}
