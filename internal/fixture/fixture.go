// Package fixture builds archives shaped like the real WildFly and JDK
// downloads, for tests.
package fixture

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// File is a tar entry. A name ending in "/" is a directory; a non-empty
// Link makes it a symlink to Link.
type File struct {
	Name    string
	Content string
	Mode    int64
	Link    string
}

// TarGz packs files into a gzipped tarball in the given order.
func TarGz(t testing.TB, files []File) []byte {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	for _, f := range files {
		hdr := &tar.Header{Name: f.Name, Mode: f.Mode}
		switch {
		case f.Link != "":
			hdr.Typeflag = tar.TypeSymlink
			hdr.Linkname = f.Link
			if hdr.Mode == 0 {
				hdr.Mode = 0o777
			}
		case strings.HasSuffix(f.Name, "/"):
			hdr.Typeflag = tar.TypeDir
			if hdr.Mode == 0 {
				hdr.Mode = 0o755
			}
		default:
			hdr.Typeflag = tar.TypeReg
			hdr.Size = int64(len(f.Content))
			if hdr.Mode == 0 {
				hdr.Mode = 0o644
			}
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("tar header %s: %v", f.Name, err)
		}
		if hdr.Typeflag == tar.TypeReg {
			if _, err := tw.Write([]byte(f.Content)); err != nil {
				t.Fatalf("tar write %s: %v", f.Name, err)
			}
		}
	}

	if err := tw.Close(); err != nil {
		t.Fatalf("tar close: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

// WildFly returns a tarball with the layout of wildfly-<version>.tar.gz,
// including the README the real distribution ships in standalone/deployments.
func WildFly(t testing.TB, version string) []byte {
	t.Helper()
	top := "wildfly-" + version + "/"
	return TarGz(t, []File{
		{Name: top},
		{Name: top + "bin/"},
		{Name: top + "bin/jboss-cli.sh", Content: "#!/bin/sh\necho cli " + version + "\n", Mode: 0o755},
		{Name: top + "bin/standalone.sh", Content: "#!/bin/sh\necho standalone " + version + "\n", Mode: 0o755},
		{Name: top + "standalone/"},
		{Name: top + "standalone/configuration/"},
		{Name: top + "standalone/configuration/standalone.xml", Content: "<server/>\n"},
		{Name: top + "standalone/deployments/"},
		{Name: top + "standalone/deployments/README.txt", Content: "drop archives here\n"},
		{Name: top + "version.txt", Content: "WildFly Full " + version + "\n"},
	})
}

// JDK returns a flat tarball like the heroku openjdk builds.
func JDK(t testing.TB, version string) []byte {
	t.Helper()
	return TarGz(t, []File{
		{Name: "bin/"},
		{Name: "bin/java", Content: "#!/bin/sh\necho java " + version + "\n", Mode: 0o755},
		{Name: "release", Content: "JAVA_VERSION=\"" + version + "\"\n"},
	})
}

// War writes a minimal web archive to path and returns its bytes.
func War(t testing.TB, path string, entries map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(entries[name])); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write war: %v", err)
	}
	return buf.Bytes()
}

func SHA1(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}

func SHA256(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
