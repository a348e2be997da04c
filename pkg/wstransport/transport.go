// Package wstransport is the WebSocket transport of a hub client. The
// WebSocket protocol itself is handled by gorilla/websocket.
package wstransport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const closeTimeout = 5 * time.Second

type Option func(*Transport)

func WithDialer(dialer *websocket.Dialer) Option {
	return func(t *Transport) {
		t.dialer = dialer
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(t *Transport) {
		t.logger = logger
	}
}

// Transport carries text frames over one WebSocket connection. It is
// started once; a stopped transport cannot be restarted.
type Transport struct {
	url     string
	headers http.Header
	dialer  *websocket.Dialer
	logger  *slog.Logger

	mux       sync.Mutex
	conn      *websocket.Conn
	onReceive func([]byte)
	onClose   func(error)
	done      chan struct{}
	stopping  bool
}

// New normalizes rawURL to a ws or wss url. headers are sent with the
// opening handshake.
func New(rawURL string, headers map[string]string, opts ...Option) (*Transport, error) {
	wsURL, err := FormatURL(rawURL)
	if err != nil {
		return nil, err
	}

	t := &Transport{
		url:     wsURL,
		headers: http.Header{},
		dialer:  websocket.DefaultDialer,
		logger:  slog.Default(),
	}
	for k, v := range headers {
		t.headers.Set(k, v)
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

func (t *Transport) URL() string {
	return t.url
}

// OnReceive sets the callback for incoming messages. It is called from
// the read loop, one message at a time.
func (t *Transport) OnReceive(f func([]byte)) {
	t.mux.Lock()
	defer t.mux.Unlock()
	t.onReceive = f
}

// OnClose sets the callback run once when the connection ends. The
// error is nil after a normal close.
func (t *Transport) OnClose(f func(error)) {
	t.mux.Lock()
	defer t.mux.Unlock()
	t.onClose = f
}

func (t *Transport) Start(ctx context.Context) error {
	t.mux.Lock()
	defer t.mux.Unlock()
	if t.conn != nil || t.done != nil {
		return errors.New("transport already started")
	}

	t.logger.Debug("Starting WebSocket transport", "url", t.url)
	conn, resp, err := t.dialer.DialContext(ctx, t.url, t.headers)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("websocket handshake with %s failed with status %d: %w", t.url, resp.StatusCode, err)
		}
		return fmt.Errorf("connect to %s: %w", t.url, err)
	}

	t.conn = conn
	t.done = make(chan struct{})
	go t.readLoop(conn, t.done)

	t.logger.Info("WebSocket transport started", "url", t.url)
	return nil
}

func (t *Transport) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.closed(err)
			return
		}
		t.mux.Lock()
		onReceive := t.onReceive
		t.mux.Unlock()
		if onReceive != nil {
			onReceive(msg)
		}
	}
}

func (t *Transport) closed(err error) {
	t.mux.Lock()
	onClose := t.onClose
	stopping := t.stopping
	t.mux.Unlock()

	if stopping || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.logger.Info("WebSocket transport closed", "url", t.url)
		err = nil
	} else {
		t.logger.Error("WebSocket transport closed unexpectedly", "url", t.url, "error", err)
	}
	if onClose != nil {
		onClose(err)
	}
}

// Send writes data as a text message. The context deadline, if any,
// bounds the write.
func (t *Transport) Send(ctx context.Context, data []byte) error {
	t.mux.Lock()
	defer t.mux.Unlock()
	if t.conn == nil || t.stopping {
		return errors.New("transport is not running")
	}

	deadline, _ := ctx.Deadline()
	if err := t.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

// Stop sends a close frame and waits for the peer to answer before the
// connection is dropped.
func (t *Transport) Stop() error {
	t.mux.Lock()
	conn, done := t.conn, t.done
	if conn == nil || t.stopping {
		t.mux.Unlock()
		return nil
	}
	t.stopping = true
	t.mux.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeTimeout))
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		t.logger.Warn("Failed to send close frame", "error", err)
	}

	select {
	case <-done:
	case <-time.After(closeTimeout):
		t.logger.Warn("Timed out waiting for close frame", "url", t.url)
	}
	return conn.Close()
}
