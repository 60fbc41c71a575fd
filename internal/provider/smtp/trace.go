package smtp

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"sync"
)

// traceConn copies the plaintext SMTP dialogue to w, one line per
// command or reply. It stops copying once muted so TLS records are
// never written out.
type traceConn struct {
	net.Conn
	w io.Writer

	mu    sync.Mutex
	muted bool
}

func (c *traceConn) Read(b []byte) (int, error) {
	n, err := c.Conn.Read(b)
	if n > 0 {
		c.emit("S: ", b[:n])
	}
	return n, err
}

func (c *traceConn) Write(b []byte) (int, error) {
	c.emit("C: ", b)
	return c.Conn.Write(b)
}

func (c *traceConn) mute() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.muted {
		fmt.Fprintln(c.w, "-- TLS negotiation started, trace suspended --")
	}
	c.muted = true
}

func (c *traceConn) emit(prefix string, b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.muted {
		return
	}
	for _, line := range bytes.SplitAfter(b, []byte("\n")) {
		line = bytes.TrimRight(line, "\r\n")
		if len(line) == 0 {
			continue
		}
		fmt.Fprintf(c.w, "%s%s\n", prefix, line)
	}
}
