// Command tlsechoserver is a TLS-terminated echo server built on
// tlsserver, grounded on sylar's ssl echo usage in test/test_ssl.cpp.
package main

import (
	"bufio"
	"crypto/tls"
	"flag"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/momentics/hioload-coro/ioreactor"
	"github.com/momentics/hioload-coro/tlsserver"
	"github.com/momentics/hioload-coro/xlog"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:8443", "address to listen on")
	certFile := flag.String("cert", "server.crt", "PEM certificate file")
	keyFile := flag.String("key", "server.key", "PEM private key file")
	workers := flag.Int("workers", 4, "reactor worker count")
	flag.Parse()

	log := xlog.For("tlsechoserver")

	r, err := ioreactor.New("tlsechoserver", *workers, false)
	if err != nil {
		log.Fatal().Err(err).Msg("ioreactor.New failed")
	}
	r.Start()
	defer r.Stop()
	defer r.Close()

	tlsCfg, err := (&tlsserver.Config{
		CertFile:   *certFile,
		KeyFile:    *keyFile,
		MinVersion: tls.VersionTLS12,
	}).Build()
	if err != nil {
		log.Fatal().Err(err).Msg("tls config build failed")
	}

	srv := tlsserver.New("tlsechoserver", r, tlsCfg, handleConn)

	tcpAddr, err := net.ResolveTCPAddr("tcp", *addr)
	if err != nil {
		log.Fatal().Err(err).Str("addr", *addr).Msg("invalid address")
	}
	if err := srv.Bind(tcpAddr); err != nil {
		log.Fatal().Err(err).Msg("bind failed")
	}
	if err := srv.Start(); err != nil {
		log.Fatal().Err(err).Msg("start failed")
	}
	log.Info().Str("addr", srv.BoundAddr().String()).Msg("tls echoing")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info().Msg("shutting down")
	srv.Stop()
}

func handleConn(conn *tls.Conn, peer net.Addr) {
	log := xlog.For("tlsechoserver")
	defer conn.Close()
	log.Debug().Str("peer", peer.String()).Msg("tls handshake complete")

	r := bufio.NewReader(conn)
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if err != nil || n == 0 {
			return
		}
		if _, err := conn.Write(buf[:n]); err != nil {
			return
		}
	}
}
