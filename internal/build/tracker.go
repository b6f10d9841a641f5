package build

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/reviewapps-dev/wfpack/internal/failure"
	"github.com/reviewapps-dev/wfpack/internal/logging"
)

const RecordFile = "build.json"

var ErrIllegalTransition = errors.New("illegal state transition")

// Tracker owns the Record for one build and writes it to disk after every
// change. An empty path keeps the record in memory only.
type Tracker struct {
	mu    sync.Mutex
	rec   Record
	path  string
	clock clockwork.Clock
}

type Option func(*Tracker)

func WithClock(clock clockwork.Clock) Option {
	return func(t *Tracker) { t.clock = clock }
}

// WithID fixes the build ID instead of generating one.
func WithID(id string) Option {
	return func(t *Tracker) { t.rec.ID = id }
}

func NewTracker(path string, opts ...Option) (*Tracker, error) {
	t := &Tracker{path: path, clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(t)
	}
	if t.rec.ID == "" {
		t.rec.ID = uuid.NewString()
	}
	now := t.clock.Now().UTC()
	t.rec.State = StateUnresolved
	t.rec.StartedAt = now
	t.rec.UpdatedAt = now

	if err := t.persistLocked(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tracker) ID() string { return t.rec.ID }

// Snapshot returns a copy of the current record.
func (t *Tracker) Snapshot() Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec := t.rec
	rec.Log = append([]string(nil), t.rec.Log...)
	rec.Deployments = append([]string(nil), t.rec.Deployments...)
	if t.rec.Processes != nil {
		rec.Processes = make(map[string]string, len(t.rec.Processes))
		for k, v := range t.rec.Processes {
			rec.Processes[k] = v
		}
	}
	return rec
}

// Advance moves to the next state, which must be to.
func (t *Tracker) Advance(to State) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	next, ok := t.rec.State.Next()
	if !ok || next != to {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, t.rec.State, to)
	}
	t.rec.State = to
	now := t.clock.Now().UTC()
	t.rec.UpdatedAt = now
	if to.Terminal() {
		t.rec.FinishedAt = &now
	}
	return t.persistLocked()
}

// Fail moves any non-terminal build to StateFailed with err as the reason.
func (t *Tracker) Fail(err error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.rec.State.Terminal() {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, t.rec.State, StateFailed)
	}
	var fe *failure.Error
	if errors.As(err, &fe) {
		t.rec.Stage = fe.Stage
	}
	t.rec.State = StateFailed
	t.rec.Reason = failure.Reason(err)
	t.rec.Error = err.Error()
	now := t.clock.Now().UTC()
	t.rec.UpdatedAt = now
	t.rec.FinishedAt = &now
	return t.persistLocked()
}

// Update applies fn to the record and persists it. fn must not change State.
func (t *Tracker) Update(fn func(*Record)) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	state := t.rec.State
	fn(&t.rec)
	t.rec.State = state
	t.rec.UpdatedAt = t.clock.Now().UTC()
	return t.persistLocked()
}

// AppendLog keeps a build output line. Lines are written out with the next
// state change rather than one by one.
func (t *Tracker) AppendLog(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rec.Log = append(t.rec.Log, line)
}

// persistLocked writes the record atomically via temp file. Must be called
// with mu held.
func (t *Tracker) persistLocked() error {
	if t.path == "" {
		return nil
	}

	data, err := json.MarshalIndent(t.rec, "", "  ")
	if err != nil {
		return fmt.Errorf("build record: marshal: %w", err)
	}

	dir := filepath.Dir(t.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("build record: create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "build-*.json")
	if err != nil {
		return fmt.Errorf("build record: create temp: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("build record: write temp: %w", err)
	}
	tmp.Close()

	if err := os.Rename(tmp.Name(), t.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("build record: rename: %w", err)
	}
	logging.Logger.WithField("build_id", t.rec.ID).WithField("state", t.rec.State).Debug("build record saved")
	return nil
}

// Load reads a record written by a Tracker.
func Load(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("build record: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("build record: parse %s: %w", path, err)
	}
	return &rec, nil
}
