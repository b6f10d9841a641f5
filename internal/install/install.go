// Package install unpacks cached archives into the layout WildFly and the JDK
// expect at runtime.
package install

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/reviewapps-dev/wfpack/internal/artifact"
	"github.com/reviewapps-dev/wfpack/internal/failure"
	"github.com/reviewapps-dev/wfpack/internal/logging"
	"github.com/reviewapps-dev/wfpack/internal/versions"
)

const markerFile = ".installed"

const (
	cliRel         = "bin/jboss-cli.sh"
	standaloneRel  = "bin/standalone.sh"
	deploymentsRel = "standalone/deployments"
	javaRel        = "bin/java"
)

// Installation is an unpacked WildFly server.
type Installation struct {
	HomeDir        string
	CLIPath        string
	DeploymentsDir string
	Version        string
}

// StandalonePath is the script that boots the server.
func (i Installation) StandalonePath() string {
	return filepath.Join(i.HomeDir, filepath.FromSlash(standaloneRel))
}

// RuntimeInstallation is an unpacked JDK.
type RuntimeInstallation struct {
	HomeDir  string
	JavaPath string
	Version  string
}

type marker struct {
	Component versions.Component `json:"component"`
	Version   string             `json:"version"`
	Checksum  string             `json:"checksum"`
}

type layout struct {
	component   versions.Component
	executables []string
	dirs        []string
	emptied     []string
}

var serverLayout = layout{
	component:   versions.Server,
	executables: []string{cliRel, standaloneRel},
	dirs:        []string{deploymentsRel},
	emptied:     []string{deploymentsRel},
}

var runtimeLayout = layout{
	component:   versions.Runtime,
	executables: []string{javaRel},
}

// InstallServer unpacks a cached WildFly archive into targetDir. Installing
// the same entry again keeps the tree and only resets the deployments dir.
func InstallServer(entry artifact.Entry, targetDir string) (Installation, error) {
	if err := install(entry, targetDir, serverLayout); err != nil {
		return Installation{}, err
	}
	return serverInstallation(targetDir, entry.Version), nil
}

// InstallRuntime unpacks a cached JDK archive into targetDir.
func InstallRuntime(entry artifact.Entry, targetDir string) (RuntimeInstallation, error) {
	if err := install(entry, targetDir, runtimeLayout); err != nil {
		return RuntimeInstallation{}, err
	}
	return runtimeInstallation(targetDir, entry.Version), nil
}

// LoadServer reads back an installation made by InstallServer.
func LoadServer(targetDir string) (Installation, error) {
	m, err := readMarker(targetDir)
	if err != nil {
		return Installation{}, fmt.Errorf("no wildfly installation in %s: %w", targetDir, err)
	}
	if m.Component != versions.Server {
		return Installation{}, fmt.Errorf("%s holds a %s installation", targetDir, m.Component)
	}
	if err := checkLayout(targetDir, serverLayout); err != nil {
		return Installation{}, err
	}
	return serverInstallation(targetDir, m.Version), nil
}

// LoadRuntime reads back an installation made by InstallRuntime.
func LoadRuntime(targetDir string) (RuntimeInstallation, error) {
	m, err := readMarker(targetDir)
	if err != nil {
		return RuntimeInstallation{}, fmt.Errorf("no jdk installation in %s: %w", targetDir, err)
	}
	if m.Component != versions.Runtime {
		return RuntimeInstallation{}, fmt.Errorf("%s holds a %s installation", targetDir, m.Component)
	}
	if err := checkLayout(targetDir, runtimeLayout); err != nil {
		return RuntimeInstallation{}, err
	}
	return runtimeInstallation(targetDir, m.Version), nil
}

func serverInstallation(dir, version string) Installation {
	return Installation{
		HomeDir:        dir,
		CLIPath:        filepath.Join(dir, filepath.FromSlash(cliRel)),
		DeploymentsDir: filepath.Join(dir, filepath.FromSlash(deploymentsRel)),
		Version:        version,
	}
}

func runtimeInstallation(dir, version string) RuntimeInstallation {
	return RuntimeInstallation{
		HomeDir:  dir,
		JavaPath: filepath.Join(dir, filepath.FromSlash(javaRel)),
		Version:  version,
	}
}

func install(entry artifact.Entry, targetDir string, l layout) error {
	comp := string(l.component)
	fail := func(format string, args ...any) error {
		return failure.InstallationFailed(comp, entry.Version, format, args...)
	}

	if !entry.Verified {
		return fail("cache entry %s is not verified", entry.Path)
	}

	want := marker{Component: l.component, Version: entry.Version, Checksum: entry.Checksum}
	if have, err := readMarker(targetDir); err == nil && have == want && checkLayout(targetDir, l) == nil {
		logging.Logger.WithFields(logrus.Fields{
			"component": comp, "version": entry.Version, "dir": targetDir,
		}).Debug("installation up to date")
		if err := emptyDirs(targetDir, l.emptied); err != nil {
			return fail("%v", err)
		}
		return nil
	}

	parent := filepath.Dir(targetDir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fail("target %s is not writable: %v", targetDir, err)
	}

	staging := filepath.Join(parent, "."+filepath.Base(targetDir)+"-"+uuid.NewString())
	defer os.RemoveAll(staging)

	if err := extractTarGz(entry.Path, staging); err != nil {
		return fail("unpack %s: %v", filepath.Base(entry.Path), err)
	}
	for _, rel := range l.executables {
		if err := os.Chmod(filepath.Join(staging, filepath.FromSlash(rel)), 0o755); err != nil {
			return fail("archive is missing %s", rel)
		}
	}
	if err := checkLayout(staging, l); err != nil {
		return fail("%v", err)
	}
	if err := emptyDirs(staging, l.emptied); err != nil {
		return fail("%v", err)
	}
	if err := writeMarker(staging, want); err != nil {
		return fail("%v", err)
	}

	if err := os.RemoveAll(targetDir); err != nil {
		return fail("replace %s: %v", targetDir, err)
	}
	if err := os.Rename(staging, targetDir); err != nil {
		return fail("move into %s: %v", targetDir, err)
	}

	logging.Logger.WithFields(logrus.Fields{
		"component": comp, "version": entry.Version, "dir": targetDir,
	}).Info("installed")
	return nil
}

func checkLayout(dir string, l layout) error {
	for _, rel := range l.executables {
		info, err := os.Stat(filepath.Join(dir, filepath.FromSlash(rel)))
		if err != nil || !info.Mode().IsRegular() {
			return fmt.Errorf("missing %s", rel)
		}
		if info.Mode().Perm()&0o111 == 0 {
			return fmt.Errorf("%s is not executable", rel)
		}
	}
	for _, rel := range l.dirs {
		info, err := os.Stat(filepath.Join(dir, filepath.FromSlash(rel)))
		if err != nil || !info.IsDir() {
			return fmt.Errorf("missing directory %s", rel)
		}
	}
	return nil
}

// emptyDirs removes everything inside each dir, keeping the dir itself.
func emptyDirs(root string, rels []string) error {
	for _, rel := range rels {
		dir := filepath.Join(root, filepath.FromSlash(rel))
		entries, err := os.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("read %s: %w", rel, err)
		}
		for _, e := range entries {
			if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
				return fmt.Errorf("clear %s: %w", rel, err)
			}
		}
	}
	return nil
}

func readMarker(dir string) (marker, error) {
	data, err := os.ReadFile(filepath.Join(dir, markerFile))
	if err != nil {
		return marker{}, err
	}
	var m marker
	if err := json.Unmarshal(data, &m); err != nil {
		return marker{}, fmt.Errorf("parse %s: %w", markerFile, err)
	}
	if m.Version == "" {
		return marker{}, errors.New("marker has no version")
	}
	return m, nil
}

func writeMarker(dir string, m marker) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal marker: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, markerFile), data, 0o644); err != nil {
		return fmt.Errorf("write marker: %w", err)
	}
	return nil
}
