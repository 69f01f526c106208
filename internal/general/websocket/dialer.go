package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"ride-convoy/internal/general/contracts"
	"ride-convoy/internal/general/jwt"
	"ride-convoy/internal/general/logger"
	"ride-convoy/internal/ports"

	"github.com/gorilla/websocket"
)

const (
	readLimit        = 1 << 20 // 1 MiB
	closeAckWindow   = 2 * time.Second
	authSuccessFrame = "auth_success"
	authErrorFrame   = "auth_error"
)

var (
	ErrAuthRejected = errors.New("websocket: server rejected authentication")
	ErrClosed       = errors.New("websocket: connection closed")
)

// Options tunes a Dialer. Zero values fall back to the defaults in
// NewDialer.
type Options struct {
	URL          string
	Token        string
	DialTimeout  time.Duration
	WriteTimeout time.Duration
	PingInterval time.Duration
	PongWait     time.Duration
}

// Dialer opens authenticated websocket connections to the ride relay.
type Dialer struct {
	opts   Options
	dialer *websocket.Dialer
	logger *logger.Logger
}

var _ ports.SessionTransport = (*Dialer)(nil)

func NewDialer(opts Options, log *logger.Logger) *Dialer {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 10 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	if opts.PongWait <= opts.PingInterval {
		opts.PongWait = 2 * opts.PingInterval
	}
	if log == nil {
		log = logger.Discard()
	}

	return &Dialer{
		opts: opts,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: opts.DialTimeout,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
		},
		logger: log,
	}
}

// Dial connects, authenticates with the configured token and waits for the
// server's auth_success frame. The session key is joined afterwards by the
// caller with a joinRide frame.
func (d *Dialer) Dial(ctx context.Context, sessionKey string) (ports.SessionConn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, d.opts.DialTimeout)
	defer cancel()

	// 1) handshake
	ws, resp, err := d.dialer.DialContext(dialCtx, d.opts.URL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket: dial %s: %w (status %d)", d.opts.URL, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("websocket: dial %s: %w", d.opts.URL, err)
	}
	ws.SetReadLimit(readLimit)

	conn := &Conn{
		ws:           ws,
		writeTimeout: d.opts.WriteTimeout,
		pongWait:     d.opts.PongWait,
		done:         make(chan struct{}),
	}

	// 2) auth frame must be first
	authFrame, err := jwt.AuthFrame(d.opts.Token)
	if err != nil {
		_ = ws.Close()
		return nil, err
	}
	if err := conn.write(websocket.TextMessage, authFrame); err != nil {
		_ = ws.Close()
		return nil, fmt.Errorf("websocket: send auth: %w", err)
	}

	// 3) wait for the verdict
	deadline, _ := dialCtx.Deadline()
	_ = ws.SetReadDeadline(deadline)
	_, payload, err := ws.ReadMessage()
	if err != nil {
		_ = ws.Close()
		return nil, fmt.Errorf("websocket: read auth reply: %w", err)
	}

	var reply struct {
		Type  string `json:"type"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(payload, &reply); err != nil || reply.Type != authSuccessFrame {
		_ = ws.Close()
		if reply.Type == authErrorFrame && reply.Error != "" {
			return nil, fmt.Errorf("%w: %s", ErrAuthRejected, reply.Error)
		}
		return nil, ErrAuthRejected
	}

	// 4) keepalive
	_ = ws.SetReadDeadline(time.Now().Add(d.opts.PongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(d.opts.PongWait))
	})
	go conn.pingLoop(d.opts.PingInterval, func(err error) {
		d.logger.Error(d.logger.WithRideID(context.Background(), sessionKey), "ws_ping_failed", "Failed to send ping", err, nil)
	})

	d.logger.Info(d.logger.WithRideID(ctx, sessionKey), "ws_connected", "Ride relay websocket connected", map[string]any{
		"url": redactQuery(d.opts.URL),
	})

	return conn, nil
}

// Conn is one authenticated websocket connection carrying
// {"type","data"} frames.
type Conn struct {
	ws           *websocket.Conn
	writeMu      sync.Mutex
	writeTimeout time.Duration
	pongWait     time.Duration
	closeOnce    sync.Once
	done         chan struct{}
}

// Send writes a single text frame under the connection's writer lock.
func (conn *Conn) Send(ctx context.Context, frame contracts.Frame) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return conn.write(websocket.TextMessage, payload)
}

// Receive blocks for the next data frame. Frames that are not valid
// envelopes are skipped.
func (conn *Conn) Receive(ctx context.Context) (contracts.Frame, error) {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		_ = conn.ws.SetReadDeadline(time.Now().Add(conn.pongWait))
		_, payload, err := conn.ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return contracts.Frame{}, ctx.Err()
			}
			select {
			case <-conn.done:
				return contracts.Frame{}, ErrClosed
			default:
			}
			return contracts.Frame{}, err
		}

		frame, err := contracts.DecodeFrame(payload)
		if err != nil {
			continue
		}
		return frame, nil
	}
}

// Close sends a normal close frame and releases the socket.
func (conn *Conn) Close() error {
	var err error
	conn.closeOnce.Do(func() {
		close(conn.done)

		conn.writeMu.Lock()
		_ = conn.ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
			time.Now().Add(closeAckWindow),
		)
		conn.writeMu.Unlock()

		err = conn.ws.Close()
	})
	return err
}

// write sets a short write deadline and writes a message.
func (conn *Conn) write(mt int, payload []byte) error {
	conn.writeMu.Lock()
	defer conn.writeMu.Unlock()

	select {
	case <-conn.done:
		return ErrClosed
	default:
	}

	_ = conn.ws.SetWriteDeadline(time.Now().Add(conn.writeTimeout))
	return conn.ws.WriteMessage(mt, payload)
}

func (conn *Conn) pingLoop(interval time.Duration, onErr func(error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-conn.done:
			return
		case <-ticker.C:
			conn.writeMu.Lock()
			err := conn.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(conn.writeTimeout))
			conn.writeMu.Unlock()
			if err != nil {
				// close the socket to unblock the reader
				onErr(err)
				_ = conn.Close()
				return
			}
		}
	}
}

func redactQuery(raw string) string {
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		return raw[:i]
	}
	return raw
}
