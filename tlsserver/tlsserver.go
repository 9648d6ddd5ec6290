package tlsserver

import (
	"crypto/tls"
	"fmt"
	"net"

	"github.com/momentics/hioload-coro/ioreactor"
	"github.com/momentics/hioload-coro/tcpserver"
	"github.com/momentics/hioload-coro/xlog"
)

var log = xlog.For("tlsserver")

// Config mirrors the source's SslConfig fields, translated onto
// crypto/tls.Config: certificate/key/chain files, minimum protocol
// version, cipher suite list, and client-certificate verification.
type Config struct {
	CertFile  string
	KeyFile   string
	ChainFile string // intermediate certificates, concatenated after the leaf

	MinVersion   uint16 // e.g. tls.VersionTLS12, matching SslConfig's default TLS_1_2
	CipherSuites []uint16
	VerifyClient bool
}

// Build loads CertFile/KeyFile (and ChainFile, if set) into a
// tls.Config, mirroring SslContext::initilaize/loadCertificates.
func (c *Config) Build() (*tls.Config, error) {
	certPEM, err := loadCertChain(c.CertFile, c.ChainFile)
	if err != nil {
		return nil, err
	}
	keyPEM, err := readFile(c.KeyFile)
	if err != nil {
		return nil, err
	}
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("tlsserver: X509KeyPair: %w", err)
	}

	minVersion := c.MinVersion
	if minVersion == 0 {
		minVersion = tls.VersionTLS12
	}

	cfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   minVersion,
		CipherSuites: c.CipherSuites,
	}
	if c.VerifyClient {
		cfg.ClientAuth = tls.RequireAndVerifyClientCert
	}
	return cfg, nil
}

// Handler processes one established TLS connection.
type Handler func(conn *tls.Conn, peer net.Addr)

// Server accepts TCP connections via a tcpserver.Server, performs the
// TLS handshake, and hands the resulting *tls.Conn to Handler.
type Server struct {
	tcp     *tcpserver.Server
	tlsCfg  *tls.Config
	handler Handler
}

// New wraps reactor and tlsCfg (built from Config.Build, or provided
// directly) in a Server whose accepted connections are TLS-terminated
// before reaching handler.
func New(name string, reactor *ioreactor.Reactor, tlsCfg *tls.Config, handler Handler) *Server {
	s := &Server{tlsCfg: tlsCfg, handler: handler}
	s.tcp = tcpserver.New(name, reactor, s.handleConn)
	return s
}

func (s *Server) handleConn(r *ioreactor.Reactor, fd int, peer *net.TCPAddr) {
	local, remote := peerAddrs(fd)
	if remote == nil || remote.String() == "" {
		remote = peer
	}
	raw := newFdNetConn(r, fd, local, remote)

	conn := tls.Server(raw, s.tlsCfg)
	if err := conn.Handshake(); err != nil {
		log.Warn().Err(err).Str("peer", remote.String()).Msg("tls handshake failed")
		_ = raw.Close()
		return
	}
	s.handler(conn, remote)
}

// Bind delegates to the underlying tcpserver.Server.
func (s *Server) Bind(addr *net.TCPAddr) error { return s.tcp.Bind(addr) }

// Start delegates to the underlying tcpserver.Server.
func (s *Server) Start() error { return s.tcp.Start() }

// Stop delegates to the underlying tcpserver.Server.
func (s *Server) Stop() { s.tcp.Stop() }

// BoundAddr delegates to the underlying tcpserver.Server.
func (s *Server) BoundAddr() *net.TCPAddr { return s.tcp.BoundAddr() }
