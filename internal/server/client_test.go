package server

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSend_OverflowClosesConnection(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()

	c := NewClient(1, local, 1, time.Second)

	// Nobody drains the queue: the first payload fills it, the second
	// marks the client as too slow to keep.
	c.Send([]byte("queued\n"))
	c.Send([]byte("dropped\n"))

	select {
	case <-c.closeCh:
	default:
		t.Fatal("overflow did not stop the write pump")
	}

	// Closing the socket is what kicks a parked reader into the server's
	// cleanup path, so the peer must observe EOF, not a hung connection.
	// net.Pipe reports the peer-closed state from SetReadDeadline too, so
	// bound the read with a timer instead of a deadline.
	readErr := make(chan error, 1)
	go func() {
		_, err := remote.Read(make([]byte, 1))
		readErr <- err
	}()
	select {
	case err := <-readErr:
		assert.ErrorIs(t, err, io.EOF)
	case <-time.After(time.Second):
		t.Fatal("socket still open after overflow disconnect")
	}
}

func TestClose_Idempotent(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()

	c := NewClient(1, local, 1, time.Second)
	c.CloseAsync()
	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
}
