// Package failure defines the terminal error kinds a build can end with.
package failure

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidVersion      = errors.New("invalid version")
	ErrArtifactUnavailable = errors.New("artifact unavailable")
	ErrInstallationFailed  = errors.New("installation failed")
	ErrArtifactMissing     = errors.New("artifact missing")
	ErrConfiguration       = errors.New("configuration error")
)

// Error carries the kind of failure plus enough context for the driver to
// report it. Match kinds with errors.Is(err, failure.ErrArtifactMissing).
type Error struct {
	Kind      error
	Stage     string
	Component string
	Version   string
	Err       error
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Kind.Error())

	var ctx []string
	if e.Stage != "" {
		ctx = append(ctx, "stage="+e.Stage)
	}
	if e.Component != "" {
		ctx = append(ctx, "component="+e.Component)
	}
	if e.Version != "" {
		ctx = append(ctx, "version="+e.Version)
	}
	if len(ctx) > 0 {
		sb.WriteString(" (" + strings.Join(ctx, ", ") + ")")
	}
	if e.Err != nil {
		sb.WriteString(": " + e.Err.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, component, version string, format string, args ...any) *Error {
	var err error
	if format != "" {
		err = fmt.Errorf(format, args...)
	}
	return &Error{Kind: kind, Component: component, Version: version, Err: err}
}

func InvalidVersion(component, version, format string, args ...any) *Error {
	return newError(ErrInvalidVersion, component, version, format, args...)
}

func ArtifactUnavailable(component, version, format string, args ...any) *Error {
	return newError(ErrArtifactUnavailable, component, version, format, args...)
}

func InstallationFailed(component, version, format string, args ...any) *Error {
	return newError(ErrInstallationFailed, component, version, format, args...)
}

func ArtifactMissing(path, format string, args ...any) *Error {
	e := &Error{Kind: ErrArtifactMissing, Component: "war", Err: errors.New(path)}
	if format != "" {
		e.Err = fmt.Errorf("%s: %s", path, fmt.Sprintf(format, args...))
	}
	return e
}

func Configuration(format string, args ...any) *Error {
	return newError(ErrConfiguration, "", "", format, args...)
}

// WithStage annotates err with the pipeline stage it came from. Errors that
// are not a *Error are wrapped as configuration errors.
func WithStage(err error, stage string) error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		if fe.Stage == "" {
			fe.Stage = stage
		}
		return err
	}
	return &Error{Kind: ErrConfiguration, Stage: stage, Err: err}
}

// Reason returns a short machine-friendly label for err's kind.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidVersion):
		return "InvalidVersion"
	case errors.Is(err, ErrArtifactUnavailable):
		return "ArtifactUnavailable"
	case errors.Is(err, ErrInstallationFailed):
		return "InstallationFailed"
	case errors.Is(err, ErrArtifactMissing):
		return "ArtifactMissing"
	case errors.Is(err, ErrConfiguration):
		return "ConfigurationError"
	default:
		return "Unknown"
	}
}
