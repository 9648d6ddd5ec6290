package tcpserver

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-coro/coroio"
	"github.com/momentics/hioload-coro/fdctx"
	"github.com/momentics/hioload-coro/fiber"
	"github.com/momentics/hioload-coro/ioreactor"
	"github.com/momentics/hioload-coro/netaddr"
	"github.com/momentics/hioload-coro/scheduler"
	"github.com/momentics/hioload-coro/xlog"
)

var log = xlog.For("tcpserver")

// Handler processes one accepted connection. It runs on a fiber
// participating in reactor's scheduler, so any coroio call inside it
// parks the fiber rather than blocking a goroutine. The fd is not
// closed automatically; the handler owns it and must call
// coroio.Close(reactor, fd) when done.
type Handler func(reactor *ioreactor.Reactor, fd int, peer *net.TCPAddr)

// listener is one bound, listening socket driving its own accept loop.
type listener struct {
	fd   int
	addr *net.TCPAddr
}

// Server accepts connections on one or more bound addresses and hands
// each one to Handler on a fiber scheduled onto Reactor.
type Server struct {
	Reactor *ioreactor.Reactor
	Handler Handler

	name    string
	backlog int

	mu        sync.Mutex
	listeners []*listener
	stopped   atomic.Bool
}

// New constructs a Server. name is cosmetic, used only in log lines,
// mirroring TcpServer's m_name/m_type fields.
func New(name string, reactor *ioreactor.Reactor, handler Handler) *Server {
	return &Server{
		Reactor: reactor,
		Handler: handler,
		name:    name,
		backlog: 128,
	}
}

// SetBacklog overrides the listen(2) backlog (default 128). Call before Bind.
func (s *Server) SetBacklog(n int) { s.backlog = n }

// Bind opens, binds, and listens on addr, in the manner of
// TcpServer::bind: a non-blocking socket registered with fdctx so its
// accept loop can park on the reactor instead of blocking.
func (s *Server) Bind(addr *net.TCPAddr) error {
	domain := unix.AF_INET
	if addr.IP.To4() == nil {
		domain = unix.AF_INET6
	}
	fd, err := unix.Socket(domain, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return fmt.Errorf("tcpserver: socket: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(fd)
		return fmt.Errorf("tcpserver: setsockopt SO_REUSEADDR: %w", err)
	}

	sa, err := netaddr.ToSockaddr(addr)
	if err != nil {
		_ = unix.Close(fd)
		return err
	}
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return fmt.Errorf("tcpserver: bind %s: %w", addr, err)
	}
	if err := unix.Listen(fd, s.backlog); err != nil {
		_ = unix.Close(fd)
		return fmt.Errorf("tcpserver: listen %s: %w", addr, err)
	}

	fdctx.Default().Get(fd, true)

	bound := addr
	if name, nerr := unix.Getsockname(fd); nerr == nil {
		if resolved, rerr := netaddr.FromSockaddr(name); rerr == nil {
			bound = resolved
		}
	}

	s.mu.Lock()
	s.listeners = append(s.listeners, &listener{fd: fd, addr: bound})
	s.mu.Unlock()

	log.Info().Str("server", s.name).Str("addr", bound.String()).Msg("bind success")
	return nil
}

// BoundAddr returns the first bound listener's resolved address
// (useful after binding to port 0). Panics if nothing has been bound.
func (s *Server) BoundAddr() *net.TCPAddr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.listeners) == 0 {
		panic("tcpserver: BoundAddr called before Bind")
	}
	return s.listeners[0].addr
}

// ListenerFds returns the file descriptors of every currently bound
// listener, for diagnostics and tests.
func (s *Server) ListenerFds() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	fds := make([]int, len(s.listeners))
	for i, l := range s.listeners {
		fds[i] = l.fd
	}
	return fds
}

// Start schedules one accept-loop fiber per bound listener onto
// Reactor, mirroring TcpServer::start's per-socket
// m_acceptworker->schedule(startAccept).
func (s *Server) Start() error {
	s.mu.Lock()
	listeners := append([]*listener(nil), s.listeners...)
	s.mu.Unlock()
	if len(listeners) == 0 {
		return errors.New("tcpserver: Start called with no bound listeners")
	}

	for _, l := range listeners {
		l := l
		f := fiber.New(func() { s.acceptLoop(l) }, 0, true)
		if err := s.Reactor.Schedule(f, scheduler.AnyThread); err != nil {
			return fmt.Errorf("tcpserver: schedule accept loop: %w", err)
		}
	}
	return nil
}

func (s *Server) acceptLoop(l *listener) {
	for !s.stopped.Load() {
		cfd, sa, err := coroio.Accept(s.Reactor, l.fd)
		if err != nil {
			if s.stopped.Load() {
				return
			}
			log.Error().Err(err).Str("addr", l.addr.String()).Msg("accept failed")
			continue
		}

		peer, perr := netaddr.FromSockaddr(sa)
		if perr != nil {
			peer = &net.TCPAddr{}
		}

		handler := s.Handler
		reactor := s.Reactor
		cf := fiber.New(func() { handler(reactor, cfd, peer) }, 0, true)
		if err := s.Reactor.Schedule(cf, scheduler.AnyThread); err != nil {
			log.Error().Err(err).Msg("schedule connection handler failed")
			_ = coroio.Close(reactor, cfd)
		}
	}
}

// Stop marks the server stopped and cancels every listening fd's
// pending accept, mirroring TcpServer::stop's cancelAll+close. Accept
// loops notice s.stopped and exit instead of looping again.
func (s *Server) Stop() {
	if !s.stopped.CompareAndSwap(false, true) {
		return
	}
	s.mu.Lock()
	listeners := s.listeners
	s.listeners = nil
	s.mu.Unlock()

	for _, l := range listeners {
		s.Reactor.CancelAll(l.fd)
		_ = unix.Close(l.fd)
	}
}
