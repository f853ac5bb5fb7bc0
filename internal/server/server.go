// Package server implements the TCP front of the quiz server: connection
// lifecycle, request dispatch and response delivery.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hactazia/quiznet/internal/config"
	"github.com/hactazia/quiznet/internal/game"
	"github.com/hactazia/quiznet/internal/protocol"
	"github.com/hactazia/quiznet/internal/question"
)

// Server accepts quiz client connections and drives one read loop per
// connection.
type Server struct {
	cfg      config.Server
	accounts AccountStore
	games    *game.Manager
	bank     *question.Bank
	registry *Registry

	nextID atomic.Int64

	listener net.Listener
	mu       sync.Mutex
}

// NewServer creates a quiz server. The registry must be the same one the
// game manager broadcasts through.
func NewServer(cfg config.Server, accounts AccountStore, games *game.Manager, bank *question.Bank, registry *Registry) *Server {
	return &Server{
		cfg:      cfg,
		accounts: accounts,
		games:    games,
		bank:     bank,
		registry: registry,
	}
}

// Addr returns the address the server is listening on.
// Returns nil if the server hasn't started yet.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close closes the listener and stops the server.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

// Run begins listening for client connections on cfg.BindAddress:cfg.Port
// and starts the accept loop.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.BindAddress, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	return s.Serve(ctx, ln)
}

// Serve accepts connections from the given listener.
// Used for testing with custom listeners.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	var wg sync.WaitGroup
	wg.Go(func() {
		slog.Info("quiz server started", "address", ln.Addr())
		s.acceptLoop(ctx, &wg, ln)
	})

	wg.Wait()

	return nil
}

func (s *Server) acceptLoop(ctx context.Context, wg *sync.WaitGroup, ln net.Listener) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			conn, err := ln.Accept()
			if err != nil {
				if errors.Is(err, net.ErrClosed) {
					return
				}
				slog.Error("failed to accept new connection", "error", err)
				continue
			}

			if tcpConn, ok := conn.(*net.TCPConn); ok {
				if err := tcpConn.SetKeepAlive(true); err != nil {
					slog.Warn("set keepalive failed", "error", err)
				}
				if err := tcpConn.SetKeepAlivePeriod(30 * time.Second); err != nil {
					slog.Warn("set keepalive period failed", "error", err)
				}
			}

			wg.Go(func() {
				s.handleConnection(ctx, conn)
			})
		}
	}
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	id := s.nextID.Add(1)
	client := NewClient(id, conn, s.cfg.SendQueueSize, s.cfg.WriteTimeout)

	if !s.registry.Add(client) {
		slog.Warn("server full, rejecting connection", "remote", client.IP())
		return
	}
	defer func() {
		s.registry.Remove(id)
		if sessionID := client.SessionID(); sessionID != 0 {
			s.games.Leave(sessionID, id)
		}
		client.Close()
		slog.Info("client disconnected", "id", id, "pseudo", client.Pseudo())
	}()

	go client.writePump()
	slog.Info("client connected", "id", id, "remote", client.IP())

	s.readLoop(client)
}

// readLoop parses requests until the connection dies. A malformed header
// earns a generic bad-request response and the loop continues; an
// over-long line or any read error ends the connection.
func (s *Server) readLoop(c *Client) {
	r := protocol.NewReader(c.conn)
	for {
		req, err := r.ReadRequest()
		switch {
		case err == nil:
		case errors.Is(err, protocol.ErrMalformed):
			s.reply(c, protocol.BadRequest())
			continue
		case errors.Is(err, protocol.ErrLineTooLong):
			slog.Warn("request line too long, disconnecting", "client", c.IP())
			return
		case errors.Is(err, io.EOF):
			return
		default:
			slog.Debug("read failed", "client", c.IP(), "error", err)
			return
		}

		s.dispatch(c, req)

		select {
		case <-c.closeCh:
			// A full send queue closed the client mid-dispatch.
			return
		default:
		}
	}
}
