// Package sysprops reads version pins from a project's system.properties.
package sysprops

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/magiconair/properties"

	"github.com/reviewapps-dev/wfpack/internal/failure"
)

const (
	FileName = "system.properties"

	RuntimeKey = "java.runtime.version"
	ServerKey  = "wildfly.version"
)

// Declared holds the pins a project asked for. Empty means not declared.
type Declared struct {
	RuntimeVersion string
	ServerVersion  string
}

// Read loads system.properties from buildDir. A missing file declares nothing.
func Read(buildDir string) (Declared, error) {
	path := filepath.Join(buildDir, FileName)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Declared{}, nil
		}
		return Declared{}, failure.Configuration("%s: %v", FileName, err)
	}

	p, err := properties.LoadFile(path, properties.UTF8)
	if err != nil {
		return Declared{}, failure.Configuration("%s: %v", FileName, err)
	}

	return Declared{
		RuntimeVersion: p.GetString(RuntimeKey, ""),
		ServerVersion:  p.GetString(ServerKey, ""),
	}, nil
}
