// Package discovery answers LAN broadcast probes so desktop clients can
// find the server without typing an address.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/hactazia/quiznet/internal/config"
)

// Probe is the exact datagram clients broadcast when scanning the LAN.
const Probe = "looking for quiznet servers"

// maxDatagram bounds a received probe. Anything longer than the probe is
// not a probe, but reading a full MTU keeps the socket drained.
const maxDatagram = 1500

// Responder answers UDP discovery probes with the server's identity.
type Responder struct {
	cfg     config.Discovery
	name    string
	tcpPort int

	conn *net.UDPConn
}

// NewResponder creates a discovery responder advertising the given server
// name and TCP game port.
func NewResponder(cfg config.Discovery, name string, tcpPort int) *Responder {
	return &Responder{cfg: cfg, name: name, tcpPort: tcpPort}
}

// Advertisement returns the datagram sent back to a probing client.
func (r *Responder) Advertisement() []byte {
	return fmt.Appendf(nil, "hello i'm a quiznet server:%s:%d", r.name, r.tcpPort)
}

// Addr returns the bound UDP address, nil before Run.
func (r *Responder) Addr() net.Addr {
	if r.conn == nil {
		return nil
	}
	return r.conn.LocalAddr()
}

// Run binds the UDP port and answers probes until ctx is cancelled.
func (r *Responder) Run(ctx context.Context) error {
	addr := &net.UDPAddr{IP: net.ParseIP(r.cfg.BindAddress), Port: r.cfg.Port}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("listening on udp %s:%d: %w", r.cfg.BindAddress, r.cfg.Port, err)
	}
	r.conn = conn

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	slog.Info("discovery responder started", "address", conn.LocalAddr())

	buf := make([]byte, maxDatagram)
	reply := r.Advertisement()
	for {
		n, peer, err := conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("reading discovery probe: %w", err)
		}
		if string(buf[:n]) != Probe {
			continue
		}
		if _, err := conn.WriteToUDP(reply, peer); err != nil {
			slog.Warn("discovery reply failed", "peer", peer, "error", err)
			continue
		}
		slog.Debug("discovery probe answered", "peer", peer)
	}
}
