package install

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// extractTarGz unpacks archivePath into dest, which must not exist yet.
// When the archive holds a single top-level directory its contents become
// the root of dest.
func extractTarGz(archivePath, dest string) error {
	work := dest + ".unpack"
	if err := os.MkdirAll(work, 0o755); err != nil {
		return fmt.Errorf("prepare extract dir: %w", err)
	}
	defer os.RemoveAll(work)

	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("gzip reader: %w", err)
	}
	defer gz.Close()

	if err := untar(gz, work); err != nil {
		return err
	}

	root, err := singleTopDir(work)
	if err != nil {
		return err
	}
	if err := os.Rename(root, dest); err != nil {
		return fmt.Errorf("move extracted tree: %w", err)
	}
	return nil
}

func untar(r io.Reader, dest string) error {
	root, err := filepath.EvalSymlinks(dest)
	if err != nil {
		return fmt.Errorf("resolve extract dir: %w", err)
	}

	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read tar header: %w", err)
		}

		rel, err := within(dest, hdr.Name)
		if err != nil {
			return err
		}
		if rel == "." {
			if hdr.Typeflag == tar.TypeDir {
				continue
			}
			return fmt.Errorf("archive entry %q has no name", hdr.Name)
		}
		dir, err := resolveDir(root, filepath.Dir(rel))
		if err != nil {
			return err
		}
		target := filepath.Join(dir, filepath.Base(rel))

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, dirMode(hdr.Mode)); err != nil {
				return fmt.Errorf("create dir %s: %w", target, err)
			}
		case tar.TypeReg:
			if err := dropLink(target); err != nil {
				return err
			}
			if err := writeFile(target, tr, os.FileMode(hdr.Mode).Perm()); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if filepath.IsAbs(hdr.Linkname) || !inside(root, filepath.Join(dir, filepath.FromSlash(hdr.Linkname))) {
				return fmt.Errorf("symlink %s points outside the archive", hdr.Name)
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("prepare link %s: %w", target, err)
			}
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return fmt.Errorf("create symlink %s: %w", target, err)
			}
		case tar.TypeLink:
			srcRel, err := within(dest, hdr.Linkname)
			if err != nil {
				return fmt.Errorf("hard link %s points outside the archive", hdr.Name)
			}
			srcDir, err := resolveDir(root, filepath.Dir(srcRel))
			if err != nil {
				return err
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("prepare link %s: %w", target, err)
			}
			if err := os.Link(filepath.Join(srcDir, filepath.Base(srcRel)), target); err != nil {
				return fmt.Errorf("create hard link %s: %w", target, err)
			}
		default:
			// Devices, fifos and pax headers have no place in a server tree.
		}
	}
}

func writeFile(target string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("prepare file %s: %w", target, err)
	}
	if mode == 0 {
		mode = 0o644
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("create file %s: %w", target, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("write file %s: %w", target, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close file %s: %w", target, err)
	}
	return nil
}

// dropLink removes a symlink left at target by an earlier entry so the file
// replaces the link instead of writing through it.
func dropLink(target string) error {
	info, err := os.Lstat(target)
	if err != nil || info.Mode()&os.ModeSymlink == 0 {
		return nil
	}
	if err := os.Remove(target); err != nil {
		return fmt.Errorf("replace symlink %s: %w", target, err)
	}
	return nil
}

// within cleans name and returns it relative to root, rejecting names that
// climb out of root.
func within(root, name string) (string, error) {
	target := filepath.Join(root, filepath.FromSlash(name))
	if !inside(root, target) {
		return "", fmt.Errorf("archive entry %q escapes the install dir", name)
	}
	return filepath.Rel(root, target)
}

// resolveDir walks rel below root one component at a time, following the
// symlinks extracted so far. Every link must resolve inside root.
func resolveDir(root, rel string) (string, error) {
	cur := root
	if rel == "." {
		return cur, nil
	}
	for _, part := range strings.Split(rel, string(os.PathSeparator)) {
		next := filepath.Join(cur, part)
		if info, err := os.Lstat(next); err == nil && info.Mode()&os.ModeSymlink != 0 {
			resolved, err := filepath.EvalSymlinks(next)
			if err != nil {
				return "", fmt.Errorf("resolve %s: %w", next, err)
			}
			if !inside(root, resolved) {
				return "", fmt.Errorf("archive path %q leads outside the install dir through a symlink", rel)
			}
			next = resolved
		}
		cur = next
	}
	return cur, nil
}

func inside(root, path string) bool {
	return path == root || strings.HasPrefix(path, root+string(os.PathSeparator))
}

func singleTopDir(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read extracted tree: %w", err)
	}
	if len(entries) == 0 {
		return "", fmt.Errorf("archive is empty")
	}
	if len(entries) == 1 && entries[0].IsDir() {
		return filepath.Join(dir, entries[0].Name()), nil
	}
	return dir, nil
}

func dirMode(mode int64) os.FileMode {
	m := os.FileMode(mode).Perm()
	// Directories must stay traversable for the rest of the extraction.
	return m | 0o700
}
