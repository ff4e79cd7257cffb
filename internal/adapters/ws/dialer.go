// Package ws implements the transport ports on top of gorilla/websocket.
package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bft-labs/ecgsync/internal/ports"
)

// Config tunes the websocket connection.
type Config struct {
	// HandshakeTimeout bounds the opening handshake.
	HandshakeTimeout time.Duration

	// PingInterval is the keepalive period. A connection that sees no pong
	// for two intervals is considered dead. Zero disables keepalive.
	PingInterval time.Duration

	// WriteTimeout bounds a single message write.
	WriteTimeout time.Duration

	// Header is sent with the handshake request.
	Header http.Header
}

// DefaultConfig returns the connection defaults.
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     25 * time.Second,
		WriteTimeout:     10 * time.Second,
	}
}

// Dialer implements ports.Dialer.
type Dialer struct {
	cfg    Config
	dialer websocket.Dialer
}

// NewDialer creates a websocket dialer.
func NewDialer(cfg Config) *Dialer {
	return &Dialer{
		cfg: cfg,
		dialer: websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
	}
}

// Dial opens a websocket connection to url.
func (d *Dialer) Dial(ctx context.Context, url string) (ports.Conn, error) {
	conn, resp, err := d.dialer.DialContext(ctx, url, d.cfg.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	return newConn(conn, d.cfg), nil
}

// Conn implements ports.Conn over a *websocket.Conn.
type Conn struct {
	conn      *websocket.Conn
	cfg       Config
	done      chan struct{}
	closeOnce sync.Once
}

func newConn(conn *websocket.Conn, cfg Config) *Conn {
	c := &Conn{
		conn: conn,
		cfg:  cfg,
		done: make(chan struct{}),
	}
	if cfg.PingInterval > 0 {
		deadline := 2 * cfg.PingInterval
		_ = conn.SetReadDeadline(time.Now().Add(deadline))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(deadline))
		})
		go c.keepalive()
	}
	return c
}

// ReadMessage returns the payload of the next data message.
func (c *Conn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

// WriteMessage writes data as a single text message.
func (c *Conn) WriteMessage(data []byte) error {
	if c.cfg.WriteTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Close sends a normal closure frame and closes the socket.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		err = c.conn.Close()
	})
	return err
}

func (c *Conn) keepalive() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.cfg.PingInterval)
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

// URL converts an http(s) server URL and namespace path into the websocket
// endpoint URL. ws(s) URLs are accepted as is.
func URL(serverURL, namespace string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", errors.New("server url must use http, https, ws or wss")
	}
	if u.Host == "" {
		return "", errors.New("server url has no host")
	}
	if namespace != "" {
		u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(namespace, "/")
	}
	return u.String(), nil
}

var _ ports.Dialer = (*Dialer)(nil)
var _ ports.Conn = (*Conn)(nil)
