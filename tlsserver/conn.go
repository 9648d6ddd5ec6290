package tlsserver

import (
	"net"
	"time"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-coro/coroio"
	"github.com/momentics/hioload-coro/fdctx"
	"github.com/momentics/hioload-coro/ioreactor"
	"github.com/momentics/hioload-coro/netaddr"
)

// fdNetConn adapts a raw, coroio-managed fd to the full net.Conn
// interface so crypto/tls.Server can drive its handshake and record
// framing over it. Deadlines are translated into fdctx's relative
// millisecond timeouts (coroio has no notion of an absolute deadline,
// only "how long may the next parked wait take"), which is sufficient
// for how crypto/tls actually uses a conn: a SetReadDeadline/Read or
// SetWriteDeadline/Write pair, not an ongoing deadline spanning many
// independent calls.
type fdNetConn struct {
	r      *ioreactor.Reactor
	fd     int
	local  net.Addr
	remote net.Addr
}

func newFdNetConn(r *ioreactor.Reactor, fd int, local, remote net.Addr) *fdNetConn {
	return &fdNetConn{r: r, fd: fd, local: local, remote: remote}
}

func (c *fdNetConn) Read(p []byte) (int, error)  { return coroio.Read(c.r, c.fd, p) }

func (c *fdNetConn) Write(p []byte) (int, error) {
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

func (c *fdNetConn) Close() error { return coroio.Close(c.r, c.fd) }

func (c *fdNetConn) LocalAddr() net.Addr  { return c.local }
func (c *fdNetConn) RemoteAddr() net.Addr { return c.remote }

func (c *fdNetConn) SetDeadline(t time.Time) error {
	if err := c.SetReadDeadline(t); err != nil {
		return err
	}
	return c.SetWriteDeadline(t)
}

func (c *fdNetConn) SetReadDeadline(t time.Time) error {
	fc := fdctx.Default().Get(c.fd, true)
	fc.SetRecvTimeoutMs(msUntil(t))
	return nil
}

func (c *fdNetConn) SetWriteDeadline(t time.Time) error {
	fc := fdctx.Default().Get(c.fd, true)
	fc.SetSendTimeoutMs(msUntil(t))
	return nil
}

func msUntil(t time.Time) int64 {
	if t.IsZero() {
		return fdctx.NoTimeout
	}
	d := time.Until(t)
	if d <= 0 {
		return 1
	}
	return d.Milliseconds()
}

func peerAddrs(fd int) (local, remote net.Addr) {
	local = &net.TCPAddr{}
	remote = &net.TCPAddr{}
	if sa, err := unix.Getsockname(fd); err == nil {
		if a, err := netaddr.FromSockaddr(sa); err == nil {
			local = a
		}
	}
	if sa, err := unix.Getpeername(fd); err == nil {
		if a, err := netaddr.FromSockaddr(sa); err == nil {
			remote = a
		}
	}
	return local, remote
}
