package transport_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/KabeerThockchom/voxfolio/internal/transport"
)

// wsURL converts an httptest server HTTP URL to a WebSocket URL.
func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// startServer launches a test WebSocket server. The handler receives the
// accepted conn; the server closes when the test finishes.
func startServer(t *testing.T, handler func(conn *websocket.Conn, r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "done")
		handler(conn, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOptions_Endpoint(t *testing.T) {
	opts := transport.Options{
		URL:         "ws://127.0.0.1:8000/ws",
		PhoneNumber: "12345678901",
		Voice:       "ash",
		LogNeeded:   false,
		Realtime:    true,
	}
	endpoint, err := opts.Endpoint()
	if err != nil {
		t.Fatalf("Endpoint: %v", err)
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		t.Fatalf("parse endpoint: %v", err)
	}
	q := u.Query()
	for key, want := range map[string]string{
		"phonenumber": "12345678901",
		"voice":       "ash",
		"log_needed":  "false",
		"realtime":    "true",
	} {
		if got := q.Get(key); got != want {
			t.Errorf("query %s: got %q, want %q", key, got, want)
		}
	}
}

func TestOptions_EndpointInvalidURL(t *testing.T) {
	if _, err := (transport.Options{URL: "://bad"}).Endpoint(); err == nil {
		t.Fatal("expected error for invalid URL")
	}
}

func TestDial_SendAndReceive(t *testing.T) {
	received := make(chan []byte, 1)
	srv := startServer(t, func(conn *websocket.Conn, r *http.Request) {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		// Record the client's outbound frame, then reply with one binary
		// frame and one text message.
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		received <- data

		_ = conn.Write(ctx, websocket.MessageBinary, []byte{0xde, 0xad})
		_ = conn.Write(ctx, websocket.MessageText, []byte(`{"query_type":"news"}`))

		// Hold the connection open until the client disconnects.
		_, _, _ = conn.Read(ctx)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	tr, err := transport.Dial(ctx, transport.Options{URL: wsURL(srv), Voice: "ash"})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer tr.Close()

	if err := tr.Send(ctx, []byte{0x01, 0x02}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case got := <-received:
		if string(got) != "\x01\x02" {
			t.Errorf("server received %x, want 0102", got)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("server never received the frame")
	}

	select {
	case got := <-tr.Binary():
		if string(got) != "\xde\xad" {
			t.Errorf("binary: got %x, want dead", got)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no inbound binary message")
	}

	select {
	case got := <-tr.Text():
		if !strings.Contains(string(got), "news") {
			t.Errorf("text: got %s", got)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no inbound text message")
	}
}

func TestDial_RemoteCloseSignalsDone(t *testing.T) {
	srv := startServer(t, func(conn *websocket.Conn, r *http.Request) {
		// Return immediately — the deferred close tears the socket down.
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	tr, err := transport.Dial(ctx, transport.Options{URL: wsURL(srv)})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer tr.Close()

	select {
	case <-tr.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("Done never closed after remote close")
	}
}

func TestClose_LocalCloseLeavesErrNil(t *testing.T) {
	srv := startServer(t, func(conn *websocket.Conn, r *http.Request) {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_, _, _ = conn.Read(ctx)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	tr, err := transport.Dial(ctx, transport.Options{URL: wsURL(srv)})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}

	if err := tr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	select {
	case <-tr.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("Done never closed after local close")
	}
	if err := tr.Err(); err != nil {
		t.Errorf("Err after local close: got %v, want nil", err)
	}
}

func TestDial_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if _, err := transport.Dial(ctx, transport.Options{URL: "ws://127.0.0.1:1/ws"}); err == nil {
		t.Fatal("expected dial error for unreachable endpoint")
	}
}
