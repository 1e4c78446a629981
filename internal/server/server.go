// Package server runs the DTC TCP listener (C7): accept connections, do the
// fixed-size encoding handshake, then frame-decode and dispatch protobuf
// messages until the client disconnects. Every frame the handler set does
// not recognize is logged and dropped — an unknown type never closes the
// connection, matching the Heartbeat/keep-alive tolerance the protocol
// expects.
//
// Grounded on 0xtitan6-polymarket-mm/internal/api/server.go's listen/serve
// shape and internal/api/stream.go's per-connection read/write split,
// adapted from HTTP+websocket to a raw TCP accept loop since DTC is not an
// HTTP protocol.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"dtc-btrex-bridge/internal/session"
	"dtc-btrex-bridge/internal/wire"
)

// Handler processes one decoded frame for a connection. The handler set
// (internal/handlers) implements this per message type it supports.
type Handler func(ctx context.Context, conn *session.Connection, msg wire.Message)

// Server accepts DTC TCP connections and drives them through the handshake
// and frame dispatch loop.
type Server struct {
	addr     string
	registry *session.Registry
	dispatch map[uint16]Handler
	onClose  func(*session.Connection)

	listener net.Listener
	logger   *slog.Logger
}

// New creates a server listening on addr (host:port), dispatching frames
// via handlers keyed by wire type id.
func New(addr string, registry *session.Registry, handlers map[uint16]Handler, onClose func(*session.Connection), logger *slog.Logger) *Server {
	return &Server{
		addr:     addr,
		registry: registry,
		dispatch: handlers,
		onClose:  onClose,
		logger:   logger.With("component", "dtc-server"),
	}
}

// Run listens and serves connections until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	s.listener = ln
	s.logger.Info("listening", "addr", s.addr)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	var wg sync.WaitGroup
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				wg.Wait()
				return nil
			}
			s.logger.Warn("accept failed", "error", err)
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.serve(ctx, conn)
		}()
	}
}

func (s *Server) serve(ctx context.Context, nc net.Conn) {
	remote := nc.RemoteAddr().String()
	logger := s.logger.With("remote", remote)
	defer nc.Close()

	if err := s.handshake(nc); err != nil {
		logger.Warn("handshake failed", "error", err)
		return
	}

	w := &connWriter{conn: nc}
	conn := session.NewConnection(remote, w)
	s.registry.Register(conn)
	defer func() {
		conn.Close()
		s.registry.Unregister(conn)
		if s.onClose != nil {
			s.onClose(conn)
		}
	}()

	logger.Info("connection established")

	dec := wire.NewDecoder()
	buf := make([]byte, 64*1024)
	for {
		nc.SetReadDeadline(time.Now().Add(5 * time.Minute))
		n, err := nc.Read(buf)
		if err != nil {
			logger.Info("connection closed", "error", err)
			return
		}
		msgs, err := dec.Feed(buf[:n])
		if err != nil {
			logger.Warn("frame decode error, closing connection", "error", err)
			return
		}
		for _, m := range msgs {
			h, ok := s.dispatch[m.TypeID]
			if !ok {
				logger.Debug("dropping frame with unknown type id", "type_id", m.TypeID)
				continue
			}
			h(ctx, conn, m)
		}
	}
}

// handshake reads and answers the fixed-size encoding request, rejecting
// anything other than a bid for protocol-buffer encoding.
func (s *Server) handshake(nc net.Conn) error {
	nc.SetReadDeadline(time.Now().Add(10 * time.Second))
	buf := make([]byte, wire.HandshakeSize)
	if _, err := fillBuffer(nc, buf); err != nil {
		return fmt.Errorf("read handshake: %w", err)
	}
	req, err := wire.DecodeHandshake(buf)
	if err != nil {
		return err
	}
	if req.Encoding != wire.EncodingProtocolBuffers {
		return fmt.Errorf("unsupported encoding %d", req.Encoding)
	}
	resp := wire.EncodeHandshake(wire.Handshake{
		TypeID:          wire.TypeEncodingResponse,
		ProtocolVersion: req.ProtocolVersion,
		Encoding:        wire.EncodingProtocolBuffers,
		ProtocolType:    req.ProtocolType,
	})
	_, err = nc.Write(resp)
	return err
}

func fillBuffer(nc net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := nc.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// connWriter serializes writes to a net.Conn for session.Connection's Send.
type connWriter struct {
	mu   sync.Mutex
	conn net.Conn
}

func (w *connWriter) Write(frame []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	_, err := w.conn.Write(frame)
	return err
}
