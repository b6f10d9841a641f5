// Package artifact keeps downloaded server and runtime archives between builds.
//
// An entry lives at <root>/<component>/<version>/<file>. The canonical file is
// only ever created by renaming a fully downloaded and verified temp file onto
// it, so its presence is what makes an entry usable. Concurrent builds each
// download to their own temp name; the last rename wins and all contenders
// hold identical bytes for a given version.
package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/reviewapps-dev/wfpack/internal/failure"
	"github.com/reviewapps-dev/wfpack/internal/logging"
	"github.com/reviewapps-dev/wfpack/internal/versions"
)

const metaSuffix = ".json"

type Entry struct {
	Component versions.Component `json:"component"`
	Version   string             `json:"version"`
	Path      string             `json:"path"`
	URL       string             `json:"url"`
	Checksum  string             `json:"checksum"` // SHA-256 hex of the archive
	Verified  bool               `json:"verified"`
	FetchedAt time.Time          `json:"fetched_at"`
}

type Cache struct {
	root   string
	source Source
	client *http.Client
	clock  clockwork.Clock
}

type Option func(*Cache)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Cache) { c.client = client }
}

func WithClock(clock clockwork.Clock) Option {
	return func(c *Cache) { c.clock = clock }
}

func New(root string, source Source, opts ...Option) *Cache {
	c := &Cache{
		root:   root,
		source: source,
		client: &http.Client{Timeout: 10 * time.Minute},
		clock:  clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) Root() string { return c.root }

// Lookup returns the verified entry for (component, version) if one exists.
// It never touches the network.
func (c *Cache) Lookup(comp versions.Component, version string) (Entry, bool) {
	if checkKey(comp, version) != nil {
		return Entry{}, false
	}
	downloadURL, err := c.source.URL(comp, version)
	if err != nil {
		return Entry{}, false
	}
	name, err := fileName(downloadURL)
	if err != nil {
		return Entry{}, false
	}
	path := filepath.Join(c.entryDir(comp, version), name)
	return c.load(comp, version, path, downloadURL)
}

// Fetch returns the cached entry, downloading it first on a miss. hit reports
// whether the entry was already present.
func (c *Cache) Fetch(ctx context.Context, comp versions.Component, version string) (entry Entry, hit bool, err error) {
	if err := checkKey(comp, version); err != nil {
		return Entry{}, false, err
	}
	if entry, ok := c.Lookup(comp, version); ok {
		logging.Logger.WithFields(logrus.Fields{
			"component": comp, "version": version, "path": entry.Path,
		}).Debug("artifact cache hit")
		return entry, true, nil
	}

	downloadURL, err := c.source.URL(comp, version)
	if err != nil {
		return Entry{}, false, failure.ArtifactUnavailable(string(comp), version, "%v", err)
	}
	name, err := fileName(downloadURL)
	if err != nil {
		return Entry{}, false, failure.ArtifactUnavailable(string(comp), version, "%v", err)
	}

	dir := c.entryDir(comp, version)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Entry{}, false, failure.ArtifactUnavailable(string(comp), version, "prepare cache dir: %v", err)
	}

	logging.Logger.WithFields(logrus.Fields{
		"component": comp, "version": version, "url": downloadURL,
	}).Info("artifact cache miss, downloading")

	dl, err := c.download(ctx, downloadURL, dir)
	if err != nil {
		return Entry{}, false, failure.ArtifactUnavailable(string(comp), version, "%v", err)
	}
	defer os.Remove(dl.path) // no-op once promoted

	if checksumURL := c.source.ChecksumURL(comp, version); checksumURL != "" {
		expected, err := c.fetchChecksum(ctx, checksumURL, name)
		if err != nil {
			return Entry{}, false, failure.ArtifactUnavailable(string(comp), version, "%v", err)
		}
		if expected != "" {
			if err := dl.verify(expected); err != nil {
				return Entry{}, false, failure.ArtifactUnavailable(string(comp), version, "%v", err)
			}
		}
	}

	if err := probe(dl.path); err != nil {
		return Entry{}, false, failure.ArtifactUnavailable(string(comp), version, "%v", err)
	}

	canonical := filepath.Join(dir, name)
	if err := os.Rename(dl.path, canonical); err != nil {
		return Entry{}, false, failure.ArtifactUnavailable(string(comp), version, "promote download: %v", err)
	}

	entry = Entry{
		Component: comp,
		Version:   version,
		Path:      canonical,
		URL:       downloadURL,
		Checksum:  dl.sha256,
		Verified:  true,
		FetchedAt: c.clock.Now().UTC(),
	}
	if err := writeMeta(canonical+metaSuffix, entry); err != nil {
		// The archive is already usable; metadata is rebuilt on the next lookup.
		logging.Logger.WithError(err).Warn("write artifact metadata")
	}
	return entry, false, nil
}

// List returns every usable entry, ordered by component then version.
func (c *Cache) List() ([]Entry, error) {
	var entries []Entry
	comps, err := os.ReadDir(c.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read cache: %w", err)
	}
	for _, comp := range comps {
		if !comp.IsDir() || strings.HasPrefix(comp.Name(), ".") {
			continue
		}
		vers, err := os.ReadDir(filepath.Join(c.root, comp.Name()))
		if err != nil {
			return nil, fmt.Errorf("read cache: %w", err)
		}
		for _, ver := range vers {
			if !ver.IsDir() {
				continue
			}
			dir := filepath.Join(c.root, comp.Name(), ver.Name())
			files, err := os.ReadDir(dir)
			if err != nil {
				return nil, fmt.Errorf("read cache: %w", err)
			}
			for _, f := range files {
				name := f.Name()
				if f.IsDir() || strings.HasPrefix(name, ".") || strings.HasSuffix(name, metaSuffix) {
					continue
				}
				if e, ok := c.load(versions.Component(comp.Name()), ver.Name(), filepath.Join(dir, name), ""); ok {
					entries = append(entries, e)
				}
			}
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Component != entries[j].Component {
			return entries[i].Component < entries[j].Component
		}
		return entries[i].Version < entries[j].Version
	})
	return entries, nil
}

// Evict removes every file cached for (component, version).
func (c *Cache) Evict(comp versions.Component, version string) error {
	if err := checkKey(comp, version); err != nil {
		return err
	}
	dir := c.entryDir(comp, version)
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("%s %s is not cached", comp, version)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("evict %s %s: %w", comp, version, err)
	}
	return nil
}

// checkKey rejects versions that would not name a single directory below
// the component's cache dir.
func checkKey(comp versions.Component, version string) error {
	if version == "" || version == "." || version == ".." ||
		filepath.Base(version) != version || strings.ContainsAny(version, `/\`) {
		return failure.InvalidVersion(string(comp), version, "not usable as a cache key")
	}
	return nil
}

func (c *Cache) entryDir(comp versions.Component, version string) string {
	return filepath.Join(c.root, string(comp), version)
}

func (c *Cache) load(comp versions.Component, version, path, downloadURL string) (Entry, bool) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() || info.Size() == 0 {
		return Entry{}, false
	}

	var entry Entry
	if data, err := os.ReadFile(path + metaSuffix); err == nil && json.Unmarshal(data, &entry) == nil && entry.Checksum != "" {
		entry.Path = path
		entry.Verified = true
		return entry, true
	}

	sum, err := fileSHA256(path)
	if err != nil {
		return Entry{}, false
	}
	entry = Entry{
		Component: comp,
		Version:   version,
		Path:      path,
		URL:       downloadURL,
		Checksum:  sum,
		Verified:  true,
		FetchedAt: info.ModTime().UTC(),
	}
	_ = writeMeta(path+metaSuffix, entry)
	return entry, true
}

// writeMeta writes atomically via temp file + rename.
func writeMeta(path string, entry Entry) error {
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".meta-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}
