package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestURL(t *testing.T) {
	tests := []struct {
		name      string
		serverURL string
		namespace string
		want      string
		wantErr   bool
	}{
		{"http becomes ws", "http://localhost:9090", "/api", "ws://localhost:9090/api", false},
		{"https becomes wss", "https://ecg.example.org", "api", "wss://ecg.example.org/api", false},
		{"trailing slash", "http://localhost:9090/", "/api", "ws://localhost:9090/api", false},
		{"ws kept", "ws://10.0.0.2:9090", "/api", "ws://10.0.0.2:9090/api", false},
		{"no namespace", "http://localhost:9090", "", "ws://localhost:9090", false},
		{"bad scheme", "ftp://localhost", "/api", "", true},
		{"no host", "http://", "/api", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := URL(tt.serverURL, tt.namespace)
			if (err != nil) != tt.wantErr {
				t.Fatalf("URL() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("URL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDialer_RoundTrip(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		for {
			mt, msg, err := c.ReadMessage()
			if err != nil {
				return
			}
			if err := c.WriteMessage(mt, append([]byte("echo:"), msg...)); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	d := NewDialer(Config{HandshakeTimeout: time.Second, PingInterval: 50 * time.Millisecond, WriteTimeout: time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, err := d.Dial(ctx, url)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	type readResult struct {
		data []byte
		err  error
	}
	reads := make(chan readResult, 4)
	go func() {
		for {
			data, err := conn.ReadMessage()
			reads <- readResult{data, err}
			if err != nil {
				return
			}
		}
	}()

	expect := func(want string) {
		t.Helper()
		select {
		case r := <-reads:
			if r.err != nil {
				t.Fatalf("ReadMessage: %v", r.err)
			}
			if string(r.data) != want {
				t.Errorf("ReadMessage = %q, want %q", r.data, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}

	if err := conn.WriteMessage([]byte(`{"event":"ping"}`)); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	expect(`echo:{"event":"ping"}`)

	// Idle for several read deadlines; pongs keep the connection alive.
	time.Sleep(300 * time.Millisecond)
	if err := conn.WriteMessage([]byte("again")); err != nil {
		t.Fatalf("WriteMessage after idle: %v", err)
	}
	expect("echo:again")
}

func TestDialer_Refused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	d := NewDialer(DefaultConfig())
	_, err := d.Dial(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"))
	if err == nil {
		t.Fatal("expected dial error for non-websocket endpoint")
	}
	if !strings.Contains(err.Error(), "status 404") {
		t.Errorf("error = %v, want status 404", err)
	}
}

func TestConn_CloseUnblocksRead(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	d := NewDialer(Config{HandshakeTimeout: time.Second})
	conn, err := d.Dial(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := conn.ReadMessage()
		errCh <- err
	}()

	if err := conn.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// Second close is a no-op.
	if err := conn.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("ReadMessage returned nil error after Close")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ReadMessage not unblocked by Close")
	}
}
