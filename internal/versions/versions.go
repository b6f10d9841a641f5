// Package versions turns declared version pins into concrete installable versions.
package versions

import (
	"regexp"
	"strings"

	goversion "github.com/hashicorp/go-version"

	"github.com/reviewapps-dev/wfpack/internal/failure"
)

type Component string

const (
	Runtime Component = "runtime"
	Server  Component = "server"
)

// DisplayName is what build output calls the component.
func (c Component) DisplayName() string {
	switch c {
	case Runtime:
		return "JDK"
	case Server:
		return "WildFly"
	default:
		return string(c)
	}
}

type Spec struct {
	Component Component
	Requested string // empty when nothing was declared
	Resolved  string
}

// Defaulted reports whether the resolved version came from the defaults.
func (s Spec) Defaulted() bool { return s.Requested == "" }

type Defaults struct {
	Runtime           string
	Server            string
	ServerConstraint  string
	RuntimeConstraint string
}

// WildFly releases are tagged e.g. 16.0.0.Final, 17.0.0.Beta1, 18.0.0.CR1.
var serverPattern = regexp.MustCompile(`^(\d+\.\d+\.\d+)\.(Final|Alpha\d+|Beta\d+|CR\d+)$`)

// Resolve picks the effective runtime and server versions. Declared values are
// used verbatim apart from trimming surrounding whitespace.
func Resolve(declaredRuntime, declaredServer string, d Defaults) (Spec, Spec, error) {
	runtime := Spec{Component: Runtime, Requested: strings.TrimSpace(declaredRuntime)}
	server := Spec{Component: Server, Requested: strings.TrimSpace(declaredServer)}

	runtime.Resolved = runtime.Requested
	if runtime.Resolved == "" {
		runtime.Resolved = strings.TrimSpace(d.Runtime)
	}
	server.Resolved = server.Requested
	if server.Resolved == "" {
		server.Resolved = strings.TrimSpace(d.Server)
	}

	if err := ValidateRuntime(runtime.Resolved, d.RuntimeConstraint); err != nil {
		return Spec{}, Spec{}, err
	}
	if err := ValidateServer(server.Resolved, d.ServerConstraint); err != nil {
		return Spec{}, Spec{}, err
	}
	return runtime, server, nil
}

// ValidateRuntime accepts JDK versions such as 1.8, 11 or 11.0.2.
func ValidateRuntime(v, constraint string) error {
	if v == "" {
		return failure.InvalidVersion(string(Runtime), v, "no version declared and no default configured")
	}
	parsed, err := goversion.NewVersion(v)
	if err != nil || strings.HasPrefix(v, "v") || parsed.Prerelease() != "" || parsed.Metadata() != "" {
		return failure.InvalidVersion(string(Runtime), v, "expected a JDK version like 1.8 or 11")
	}
	return checkConstraint(Runtime, v, parsed, constraint)
}

// ValidateServer accepts WildFly release names such as 16.0.0.Final.
func ValidateServer(v, constraint string) error {
	if v == "" {
		return failure.InvalidVersion(string(Server), v, "no version declared and no default configured")
	}
	m := serverPattern.FindStringSubmatch(v)
	if m == nil {
		return failure.InvalidVersion(string(Server), v, "expected a WildFly release like 16.0.0.Final")
	}
	parsed, err := goversion.NewVersion(m[1])
	if err != nil {
		return failure.InvalidVersion(string(Server), v, "%v", err)
	}
	return checkConstraint(Server, v, parsed, constraint)
}

func checkConstraint(c Component, raw string, v *goversion.Version, constraint string) error {
	if constraint == "" {
		return nil
	}
	cs, err := goversion.NewConstraint(constraint)
	if err != nil {
		return failure.Configuration("%s constraint %q: %v", c, constraint, err)
	}
	if !cs.Check(v) {
		return failure.InvalidVersion(string(c), raw, "does not satisfy %s", constraint)
	}
	return nil
}
