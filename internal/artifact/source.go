package artifact

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/reviewapps-dev/wfpack/internal/config"
	"github.com/reviewapps-dev/wfpack/internal/versions"
)

// Source knows where each (component, version) artifact is published.
type Source interface {
	URL(c versions.Component, version string) (string, error)
	// ChecksumURL returns "" when the source publishes no checksum.
	ChecksumURL(c versions.Component, version string) string
}

// TemplateSource expands the URL templates from the [sources] config.
type TemplateSource struct {
	serverURL       string
	serverChecksum  string
	runtimeURL      string
	runtimeChecksum string
	stack           string
}

func NewTemplateSource(cfg config.SourcesConfig, stack string) *TemplateSource {
	return &TemplateSource{
		serverURL:       cfg.ServerURL,
		serverChecksum:  cfg.ServerChecksum,
		runtimeURL:      cfg.RuntimeURL,
		runtimeChecksum: cfg.RuntimeChecksum,
		stack:           stack,
	}
}

func (s *TemplateSource) URL(c versions.Component, version string) (string, error) {
	var tmpl string
	switch c {
	case versions.Server:
		tmpl = s.serverURL
	case versions.Runtime:
		tmpl = s.runtimeURL
	default:
		return "", fmt.Errorf("unknown component %q", c)
	}
	if tmpl == "" {
		return "", fmt.Errorf("no download url configured for %s", c)
	}
	return s.expand(tmpl, version), nil
}

func (s *TemplateSource) ChecksumURL(c versions.Component, version string) string {
	u, err := s.URL(c, version)
	if err != nil {
		return ""
	}
	switch c {
	case versions.Server:
		if s.serverChecksum != "" {
			return u + s.serverChecksum
		}
	case versions.Runtime:
		if s.runtimeChecksum != "" {
			return u + s.runtimeChecksum
		}
	}
	return ""
}

func (s *TemplateSource) expand(tmpl, version string) string {
	r := strings.NewReplacer("{version}", version, "{stack}", s.stack)
	return r.Replace(tmpl)
}

// fileName infers the cached file name from the download URL.
func fileName(downloadURL string) (string, error) {
	parsed, err := url.Parse(downloadURL)
	if err != nil {
		return "", fmt.Errorf("parse download url: %w", err)
	}
	base := path.Base(parsed.Path)
	if base == "." || base == "" || base == "/" {
		return "", fmt.Errorf("infer archive name from url: %s", downloadURL)
	}
	return base, nil
}
