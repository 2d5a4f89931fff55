package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"tata-codec/internal/observability"
	"tata-codec/internal/transport"
)

var ErrNoBridge = errors.New("bridge: no bridge connected")

// Handler receives every inbound SMS read from a bridge.
type Handler func(ctx context.Context, m transport.Message)

// TcpServer accepts SMS bridges: small daemons next to a GSM modem that
// forward each received SMS as one "<phone>\t<body>" line and deliver the
// lines written back to them.
type TcpServer struct {
	handler Handler
	logger  *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	active   net.Conn
	conns    map[net.Conn]struct{}
}

func New(handler Handler, lg *slog.Logger) *TcpServer {
	return &TcpServer{
		handler: handler,
		logger:  lg.With("component", "bridge"),
		conns:   make(map[net.Conn]struct{}),
	}
}

// Start listens on addr and serves until ctx is cancelled.
func (srv *TcpServer) Start(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("error starting TCP server: %w", err)
	}
	return srv.Serve(ctx, listener)
}

func (srv *TcpServer) Serve(ctx context.Context, listener net.Listener) error {
	srv.mu.Lock()
	srv.listener = listener
	srv.mu.Unlock()

	go func() {
		<-ctx.Done()
		_ = listener.Close()
		srv.closeAll()
	}()

	srv.logger.Info("TCP server listening", "addr", listener.Addr().String())

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			srv.logger.Error("accept error", "err", err)
			continue
		}
		observability.BridgeConnections.Inc()
		go srv.HandleConnection(ctx, conn)
	}
}

func (srv *TcpServer) HandleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	srv.register(conn)
	defer srv.unregister(conn)
	srv.logger.Info("bridge connected", "remote", conn.RemoteAddr().String())

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetKeepAlive(true)
		_ = tcpConn.SetKeepAlivePeriod(60 * time.Second)
	}

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		m, err := transport.DecodeLine(line)
		if err != nil {
			srv.logger.Warn("bad bridge line", "remote", conn.RemoteAddr().String(), "err", err)
			continue
		}
		observability.MessagesRecv.WithLabelValues("bridge").Inc()
		srv.handler(ctx, m)
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		srv.logger.Warn("read error", "remote", conn.RemoteAddr().String(), "err", err)
	}
	srv.logger.Info("bridge disconnected", "remote", conn.RemoteAddr().String())
}

// Send writes m to the most recently connected bridge.
func (srv *TcpServer) Send(ctx context.Context, m transport.Message) error {
	srv.mu.Lock()
	conn := srv.active
	srv.mu.Unlock()
	if conn == nil {
		return ErrNoBridge
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
		defer conn.SetWriteDeadline(time.Time{})
	}
	_, err := conn.Write([]byte(transport.EncodeLine(m) + "\n"))
	return err
}

func (srv *TcpServer) register(conn net.Conn) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	srv.conns[conn] = struct{}{}
	srv.active = conn
}

func (srv *TcpServer) unregister(conn net.Conn) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	delete(srv.conns, conn)
	if srv.active == conn {
		srv.active = nil
		for c := range srv.conns {
			srv.active = c
			break
		}
	}
}

func (srv *TcpServer) closeAll() {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	for c := range srv.conns {
		_ = c.Close()
	}
}
