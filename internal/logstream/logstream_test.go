package logstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
)

func TestHubDropsForSlowConsumers(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe("b1")
	defer sub.Cancel()

	for i := 0; i < 100; i++ {
		hub.Publish("b1", "line")
	}
	hub.Publish("other", "ignored")

	assert.Len(t, sub.Lines(), subscriberBuffer)
	assert.Equal(t, 100-subscriberBuffer, sub.Dropped())
}

func TestHubCloseEndsSubscriptions(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe("b1")

	hub.Publish("b1", "-----> Installing WildFly 16.0.0.Final")
	hub.Close("b1")
	hub.Publish("b1", "-----> BUILD SUCCESS")

	var got []string
	for line := range sub.Lines() {
		got = append(got, line)
	}
	assert.Equal(t, []string{"-----> Installing WildFly 16.0.0.Final"}, got)
	assert.True(t, hub.Closed("b1"))
	assert.False(t, hub.Closed("b2"))

	// Cancelling after Close, or twice, is harmless.
	sub.Cancel()
	sub.Cancel()
	hub.Close("b1")
}

func TestHubSubscribeAfterClose(t *testing.T) {
	hub := NewHub()
	hub.Close("b1")

	sub := hub.Subscribe("b1")
	_, open := <-sub.Lines()
	assert.False(t, open)
}

func TestHubCancelKeepsOtherSubscribers(t *testing.T) {
	hub := NewHub()
	first := hub.Subscribe("b1")
	second := hub.Subscribe("b1")

	first.Cancel()
	hub.Publish("b1", "line")

	_, open := <-first.Lines()
	assert.False(t, open)
	assert.Equal(t, "line", <-second.Lines())
	second.Cancel()
}

func TestSinkForwardsLines(t *testing.T) {
	received := make(chan []string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()

		var lines []string
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				break
			}
			lines = append(lines, string(data))
		}
		received <- lines
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	hub := NewHub()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	sink, err := Dial(ctx, url, hub, "b1")
	require.NoError(t, err)

	hub.Publish("b1", "-----> Deploying WAR file(s)")
	hub.Publish("b1", "       ROOT.war")
	hub.Close("b1")
	sink.Close()

	select {
	case lines := <-received:
		assert.Equal(t, []string{"-----> Deploying WAR file(s)", "       ROOT.war"}, lines)
	case <-ctx.Done():
		t.Fatal("server never saw the stream close")
	}
}

func TestDialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := Dial(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"), NewHub(), "b1")
	assert.Error(t, err)
}
