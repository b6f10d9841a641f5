// Package logstream fans build output out to live subscribers.
package logstream

import "sync"

// subscriberBuffer is how many lines a subscriber may fall behind before
// further lines are dropped for it.
const subscriberBuffer = 64

// Hub routes output lines to the subscribers of each build. A build's stream
// ends with Close: its subscribers' channels are closed once the lines
// already queued for them are delivered, and later publishes are ignored.
type Hub struct {
	mu     sync.Mutex
	builds map[string]*stream
}

type stream struct {
	subs   map[*subscriber]struct{}
	closed bool
}

type subscriber struct {
	ch      chan string
	dropped int
}

func NewHub() *Hub {
	return &Hub{builds: make(map[string]*stream)}
}

// Subscription is one reader of a build's output.
type Subscription struct {
	hub     *Hub
	buildID string
	sub     *subscriber
}

// Lines delivers the build's output until the build is closed or the
// subscription is cancelled.
func (s *Subscription) Lines() <-chan string { return s.sub.ch }

// Dropped reports how many lines this subscriber missed by falling behind.
func (s *Subscription) Dropped() int {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	return s.sub.dropped
}

// Cancel detaches the subscription and closes its channel. It may be called
// more than once and after the build is closed.
func (s *Subscription) Cancel() {
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	st := h.builds[s.buildID]
	if st == nil {
		return
	}
	if _, ok := st.subs[s.sub]; ok {
		delete(st.subs, s.sub)
		close(s.sub.ch)
	}
	if len(st.subs) == 0 && !st.closed {
		delete(h.builds, s.buildID)
	}
}

// Subscribe starts reading buildID's output. Subscribing to a build that
// is already closed yields a channel that is closed straight away.
func (h *Hub) Subscribe(buildID string) *Subscription {
	sub := &subscriber{ch: make(chan string, subscriberBuffer)}
	h.mu.Lock()
	defer h.mu.Unlock()

	st := h.builds[buildID]
	if st == nil {
		st = &stream{subs: make(map[*subscriber]struct{})}
		h.builds[buildID] = st
	}
	if st.closed {
		close(sub.ch)
	} else {
		st.subs[sub] = struct{}{}
	}
	return &Subscription{hub: h, buildID: buildID, sub: sub}
}

// Publish queues line for every subscriber of buildID without blocking.
func (h *Hub) Publish(buildID, line string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	st := h.builds[buildID]
	if st == nil || st.closed {
		return
	}
	for sub := range st.subs {
		select {
		case sub.ch <- line:
		default:
			sub.dropped++
		}
	}
}

// Close ends buildID's stream. It is idempotent.
func (h *Hub) Close(buildID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	st := h.builds[buildID]
	if st == nil {
		st = &stream{subs: make(map[*subscriber]struct{})}
		h.builds[buildID] = st
	}
	if st.closed {
		return
	}
	st.closed = true
	for sub := range st.subs {
		close(sub.ch)
	}
	st.subs = map[*subscriber]struct{}{}
}

// Closed reports whether buildID's stream has ended.
func (h *Hub) Closed(buildID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	st := h.builds[buildID]
	return st != nil && st.closed
}
