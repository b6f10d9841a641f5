// Package war drops built web archives into a server's deployments dir.
package war

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/reviewapps-dev/wfpack/internal/failure"
	"github.com/reviewapps-dev/wfpack/internal/install"
	"github.com/reviewapps-dev/wfpack/internal/logging"
)

// Place copies artifactPath into inst.DeploymentsDir under the same name and
// returns the placed path. Placing the same name again replaces the file.
func Place(artifactPath string, inst install.Installation) (string, error) {
	if err := validate(artifactPath); err != nil {
		return "", err
	}

	name := filepath.Base(artifactPath)
	dest := filepath.Join(inst.DeploymentsDir, name)
	tmp := filepath.Join(inst.DeploymentsDir, ".place-"+uuid.NewString()+".tmp")

	if err := copyFile(artifactPath, tmp); err != nil {
		os.Remove(tmp)
		return "", failure.ArtifactMissing(artifactPath, "copy into deployments: %v", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return "", failure.ArtifactMissing(artifactPath, "move into deployments: %v", err)
	}

	logging.Logger.WithFields(logrus.Fields{"war": name, "dest": dest}).Debug("placed deployment")
	return dest, nil
}

// Discover returns the archives under buildDir matching globs, sorted and
// without duplicates.
func Discover(buildDir string, globs []string) ([]string, error) {
	seen := make(map[string]bool)
	var found []string
	for _, g := range globs {
		matches, err := filepath.Glob(filepath.Join(buildDir, g))
		if err != nil {
			return nil, fmt.Errorf("war glob %q: %w", g, err)
		}
		for _, m := range matches {
			if info, err := os.Stat(m); err != nil || !info.Mode().IsRegular() {
				continue
			}
			if !seen[m] {
				seen[m] = true
				found = append(found, m)
			}
		}
	}
	if len(found) == 0 {
		return nil, failure.ArtifactMissing(buildDir, "no WAR file found matching %v", globs)
	}
	sort.Strings(found)
	return found, nil
}

func validate(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return failure.ArtifactMissing(path, "%v", err)
	}
	if !info.Mode().IsRegular() {
		return failure.ArtifactMissing(path, "not a regular file")
	}
	if info.Size() == 0 {
		return failure.ArtifactMissing(path, "file is empty")
	}
	zr, err := zip.OpenReader(path)
	if err != nil {
		return failure.ArtifactMissing(path, "not a valid web archive: %v", err)
	}
	zr.Close()
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
