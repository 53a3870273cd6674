package wsfeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{}

// echoServer accepts one connection at a time, records every received text
// frame, and echoes nothing back (the client under test only needs to see
// its own auth/subscribe frames land server-side).
type echoServer struct {
	mu       sync.Mutex
	received []string
	conns    chan *websocket.Conn
}

func newEchoServer() (*httptest.Server, *echoServer) {
	es := &echoServer{conns: make(chan *websocket.Conn, 8)}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		es.conns <- conn
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			es.mu.Lock()
			es.received = append(es.received, string(msg))
			es.mu.Unlock()
		}
	}))
	return srv, es
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

func TestConnectDispatchesReceivedMessages(t *testing.T) {
	srv, es := newEchoServer()
	defer srv.Close()

	c := New(wsURL(srv.URL), nil)
	require.NoError(t, c.Connect(context.Background()))
	defer c.Disconnect()

	var received atomic.Value
	done := make(chan struct{}, 1)
	c.SetMessageCallback(func(text []byte) error {
		received.Store(string(text))
		done <- struct{}{}
		return nil
	})

	conn := <-es.conns
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"hello":"world"}`)))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("message callback was not invoked")
	}
	require.Equal(t, `{"hello":"world"}`, received.Load())
}

func TestDispatchRecoversFromCallbackPanic(t *testing.T) {
	srv, es := newEchoServer()
	defer srv.Close()

	c := New(wsURL(srv.URL), func(level, msg string) {})
	require.NoError(t, c.Connect(context.Background()))
	defer c.Disconnect()

	var afterPanic atomic.Bool
	done := make(chan struct{}, 2)
	first := true
	c.SetMessageCallback(func(text []byte) error {
		if first {
			first = false
			done <- struct{}{}
			panic("boom")
		}
		afterPanic.Store(true)
		done <- struct{}{}
		return nil
	})

	conn := <-es.conns
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("one")))
	<-done
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("two")))
	<-done
	require.True(t, afterPanic.Load())
}

func TestAuthenticateAndSubscribeAreRecordedForReplay(t *testing.T) {
	srv, es := newEchoServer()
	defer srv.Close()

	c := New(wsURL(srv.URL), nil)
	require.NoError(t, c.Connect(context.Background()))
	defer c.Disconnect()
	<-es.conns

	require.NoError(t, c.Authenticate("api-key"))
	require.NoError(t, c.Subscribe(SubscribeParams(`"XAS.BTC-USD"`)))

	require.Eventually(t, func() bool {
		es.mu.Lock()
		defer es.mu.Unlock()
		return len(es.received) >= 2
	}, time.Second, 10*time.Millisecond)

	es.mu.Lock()
	defer es.mu.Unlock()
	require.Contains(t, es.received[0], "auth")
	require.Contains(t, es.received[1], "subscribe")
}

func TestReconnectReplaysAuthAndSubscriptions(t *testing.T) {
	srv, es := newEchoServer()
	defer srv.Close()

	c := New(wsURL(srv.URL), func(level, msg string) {})
	require.NoError(t, c.Connect(context.Background()))
	defer c.Disconnect()

	firstConn := <-es.conns
	require.NoError(t, c.Authenticate("api-key"))
	require.NoError(t, c.Subscribe(SubscribeParams(`"XAS.BTC-USD"`)))

	// Force the server side to drop the connection so the client's receive
	// loop observes a read error and reconnects with backoff.
	firstConn.Close()

	select {
	case <-es.conns:
	case <-time.After(5 * time.Second):
		t.Fatal("client did not reconnect")
	}

	require.Eventually(t, func() bool {
		es.mu.Lock()
		defer es.mu.Unlock()
		// original auth+subscribe, then replayed auth+subscribe on reconnect
		return len(es.received) >= 4
	}, 5*time.Second, 20*time.Millisecond)
}
