package httpserver

import (
	"github.com/momentics/hioload-coro/coroio"
	"github.com/momentics/hioload-coro/ioreactor"
)

// fdConn adapts a raw, coroio-managed fd to io.Reader/io.Writer/io.Closer
// so the stdlib's bufio.Reader and http.ReadRequest can drive it without
// knowing anything about fibers or the reactor.
type fdConn struct {
	r  *ioreactor.Reactor
	fd int
}

func (c *fdConn) Read(p []byte) (int, error) {
	return coroio.Read(c.r, c.fd, p)
}

func (c *fdConn) Write(p []byte) (int, error) {
	total := 0
	for total < len(p) {
		n, err := coroio.Write(c.r, c.fd, p[total:])
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func (c *fdConn) Close() error {
	return coroio.Close(c.r, c.fd)
}
