package logstream

import (
	"context"
	"fmt"
	"time"

	"nhooyr.io/websocket"

	"github.com/reviewapps-dev/wfpack/internal/logging"
)

const writeTimeout = 5 * time.Second

// Sink forwards one build's lines from a Hub to a websocket endpoint, one
// text message per line.
type Sink struct {
	conn    *websocket.Conn
	buildID string
	sub     *Subscription
	done    chan struct{}
}

// Dial connects to url and starts forwarding lines published for buildID.
func Dial(ctx context.Context, url string, hub *Hub, buildID string) (*Sink, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("log stream: dial %s: %w", url, err)
	}

	s := &Sink{
		conn:    conn,
		buildID: buildID,
		sub:     hub.Subscribe(buildID),
		done:    make(chan struct{}),
	}
	go s.forward()
	return s, nil
}

func (s *Sink) forward() {
	defer close(s.done)

	broken := false
	for line := range s.sub.Lines() {
		if broken {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := s.conn.Write(ctx, websocket.MessageText, []byte(line))
		cancel()
		if err != nil {
			logging.Logger.WithError(err).WithField("build_id", s.buildID).Warn("log stream write failed, dropping remaining lines")
			broken = true
		}
	}

	if broken {
		s.conn.CloseNow()
		return
	}
	if n := s.sub.Dropped(); n > 0 {
		logging.Logger.WithField("build_id", s.buildID).Warnf("log stream fell behind, %d lines dropped", n)
	}
	s.conn.Close(websocket.StatusNormalClosure, "done")
}

// Close flushes lines already queued, closes the connection and waits for
// the forwarder to exit. Closing the build on the hub first ends the stream
// the same way; Close then only waits.
func (s *Sink) Close() {
	s.sub.Cancel()
	<-s.done
}
