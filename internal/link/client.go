package link

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"tata-codec/internal/pipeline"
	"tata-codec/internal/transport"
)

var ErrNotConnected = errors.New("link: not connected")

// Link keeps a TCP connection to the socket proxy. Reports go out as NDJSON;
// lines coming back are operator messages typed into the proxy's UI.
type Link struct {
	addr    string
	logger  *slog.Logger
	handler func(ctx context.Context, m transport.Message)

	retryDial      time.Duration
	retryReconnect time.Duration

	mu   sync.Mutex
	conn net.Conn
}

// New returns a link to addr. handler may be nil, incoming lines are then
// only logged.
func New(addr string, lg *slog.Logger, handler func(ctx context.Context, m transport.Message)) *Link {
	return &Link{
		addr:           addr,
		logger:         lg.With("component", "link"),
		handler:        handler,
		retryDial:      5 * time.Second,
		retryReconnect: 2 * time.Second,
	}
}

// Run dials and redials the proxy until ctx is done.
func (l *Link) Run(ctx context.Context) {
	var d net.Dialer
	for ctx.Err() == nil {
		c, err := d.DialContext(ctx, "tcp", l.addr)
		if err != nil {
			l.logger.Error("dial failed", "addr", l.addr, "err", err)
			sleep(ctx, l.retryDial)
			continue
		}

		l.setConn(c)
		l.logger.Info("connected", "remote", c.RemoteAddr().String())

		stop := context.AfterFunc(ctx, func() { _ = c.Close() })
		l.readLoop(ctx, c)
		stop()

		l.clearConn(c)
		if ctx.Err() != nil {
			return
		}
		l.logger.Warn("connection closed, reconnecting")
		sleep(ctx, l.retryReconnect)
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (l *Link) setConn(c net.Conn) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.conn = c
}

func (l *Link) clearConn(c net.Conn) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == c {
		_ = l.conn.Close()
		l.conn = nil
	}
}

func (l *Link) getConn() net.Conn {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn
}

// Connected reports whether a proxy connection is up.
func (l *Link) Connected() bool {
	return l.getConn() != nil
}

func (l *Link) readLoop(ctx context.Context, c net.Conn) {
	r := bufio.NewScanner(c)
	for r.Scan() {
		l.handleIncomingLine(ctx, r.Bytes())
	}
	if err := r.Err(); err != nil && ctx.Err() == nil {
		l.logger.Warn("read error", "err", err)
	}
}

func (l *Link) handleIncomingLine(ctx context.Context, line []byte) {
	var in transport.Message
	if err := json.Unmarshal(line, &in); err != nil || in.Phone == "" {
		l.logger.Warn("ignoring incoming line", "line", string(line), "err", err)
		return
	}
	if l.handler == nil {
		l.logger.Info("incoming line", "phone", in.Phone, "body", in.Body)
		return
	}
	l.handler(ctx, in)
}

func (l *Link) sendNDJSON(v any) error {
	c := l.getConn()
	if c == nil {
		return ErrNotConnected
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err = c.Write(append(b, '\n'))
	return err
}

type reportPayload struct {
	IsReport bool `json:"report"`
	pipeline.Report
}

func (l *Link) Name() string { return "link" }

// Forward sends the report as one NDJSON line. It fails fast with
// ErrNotConnected while the proxy is away; reports are not queued.
func (l *Link) Forward(_ context.Context, r pipeline.Report) error {
	return l.sendNDJSON(reportPayload{IsReport: true, Report: r})
}
