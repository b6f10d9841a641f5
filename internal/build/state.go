// Package build tracks a single build through its states and persists the
// record next to the build output.
package build

import (
	"time"
)

type State string

const (
	StateUnresolved   State = "unresolved"
	StateResolved     State = "resolved"
	StateCached       State = "cached"
	StateInstalled    State = "installed"
	StateConfigured   State = "configured"
	StatePlaced       State = "placed"
	StateProcessReady State = "process_ready"
	StateFailed       State = "failed"
)

// order lists the forward path. A build moves one step at a time.
var order = []State{
	StateUnresolved,
	StateResolved,
	StateCached,
	StateInstalled,
	StateConfigured,
	StatePlaced,
	StateProcessReady,
}

func (s State) index() int {
	for i, st := range order {
		if st == s {
			return i
		}
	}
	return -1
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateProcessReady || s == StateFailed
}

// Next returns the state that follows s on the forward path.
func (s State) Next() (State, bool) {
	i := s.index()
	if i < 0 || i+1 >= len(order) {
		return "", false
	}
	return order[i+1], true
}

type Record struct {
	ID             string            `json:"id"`
	State          State             `json:"state"`
	Reason         string            `json:"reason,omitempty"`
	Error          string            `json:"error,omitempty"`
	Stage          string            `json:"stage,omitempty"`
	RuntimeVersion string            `json:"runtime_version,omitempty"`
	ServerVersion  string            `json:"server_version,omitempty"`
	Deployments    []string          `json:"deployments,omitempty"`
	Processes      map[string]string `json:"processes,omitempty"`
	StartedAt      time.Time         `json:"started_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	FinishedAt     *time.Time        `json:"finished_at,omitempty"`
	Log            []string          `json:"log,omitempty"`
}

// Deployable reports whether the external driver may release this build.
func (r *Record) Deployable() bool {
	return r.State == StateProcessReady
}
