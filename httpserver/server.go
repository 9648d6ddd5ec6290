package httpserver

import (
	"bufio"
	"errors"
	"io"
	"net"
	"net/http"

	"github.com/momentics/hioload-coro/ioreactor"
	"github.com/momentics/hioload-coro/tcpserver"
	"github.com/momentics/hioload-coro/xlog"
)

var log = xlog.For("httpserver")

// MaxRequestHeaderBytes is the size of the buffered reader each connection
// parses requests from. It does not cap the header block: http.ReadRequest
// still reads a header larger than the buffer in full.
const MaxRequestHeaderBytes = 1 << 16

// Server serves HTTP/1.1 over a tcpserver.Server, dispatching each
// request to Handler (typically a *Dispatch).
type Server struct {
	tcp     *tcpserver.Server
	Handler http.Handler
}

// New wraps reactor in a tcpserver.Server whose connection handler
// parses and dispatches HTTP/1.1 requests via handler.
func New(name string, reactor *ioreactor.Reactor, handler http.Handler) *Server {
	s := &Server{Handler: handler}
	s.tcp = tcpserver.New(name, reactor, s.handleConn)
	return s
}

// Bind delegates to the underlying tcpserver.Server.
func (s *Server) Bind(addr *net.TCPAddr) error { return s.tcp.Bind(addr) }

// Start delegates to the underlying tcpserver.Server.
func (s *Server) Start() error { return s.tcp.Start() }

// Stop delegates to the underlying tcpserver.Server.
func (s *Server) Stop() { s.tcp.Stop() }

// BoundAddr delegates to the underlying tcpserver.Server.
func (s *Server) BoundAddr() *net.TCPAddr { return s.tcp.BoundAddr() }

func (s *Server) handleConn(r *ioreactor.Reactor, fd int, peer *net.TCPAddr) {
	conn := &fdConn{r: r, fd: fd}
	defer conn.Close()

	br := bufio.NewReaderSize(conn, MaxRequestHeaderBytes)
	for {
		req, err := http.ReadRequest(br)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Debug().Err(err).Str("peer", peer.String()).Msg("request parse ended")
			}
			return
		}

		w := newResponseWriter()
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					log.Error().Interface("panic", rec).Msg("handler panicked")
					w.WriteHeader(http.StatusInternalServerError)
				}
			}()
			s.Handler.ServeHTTP(w, req)
		}()

		keepAlive := !req.Close && req.ProtoAtLeast(1, 1)
		if _, err := conn.Write(w.flush(keepAlive)); err != nil {
			return
		}
		if !keepAlive {
			return
		}
	}
}
