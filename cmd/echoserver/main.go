// Command echoserver is a minimal TCP echo server built directly on
// tcpserver/ioreactor/coroio: it demonstrates the coroutine-scheduled
// accept loop with no framework above raw sockets.
package main

import (
	"flag"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/momentics/hioload-coro/coroio"
	"github.com/momentics/hioload-coro/ioreactor"
	"github.com/momentics/hioload-coro/tcpserver"
	"github.com/momentics/hioload-coro/xlog"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:12345", "address to listen on")
	workers := flag.Int("workers", 4, "reactor worker count")
	flag.Parse()

	log := xlog.For("echoserver")

	r, err := ioreactor.New("echoserver", *workers, false)
	if err != nil {
		log.Fatal().Err(err).Msg("ioreactor.New failed")
	}
	r.Start()
	defer r.Stop()
	defer r.Close()

	srv := tcpserver.New("echoserver", r, handleConn)

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
	log.Info().Str("addr", srv.BoundAddr().String()).Msg("echoing")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info().Msg("shutting down")
	srv.Stop()
}

func handleConn(r *ioreactor.Reactor, fd int, peer *net.TCPAddr) {
	log := xlog.For("echoserver")
	defer coroio.Close(r, fd)
	log.Debug().Str("peer", peer.String()).Msg("accepted")

	buf := make([]byte, 4096)
	for {
		n, err := coroio.Read(r, fd, buf)
		if err != nil || n == 0 {
			return
		}
		if _, err := coroio.Write(r, fd, buf[:n]); err != nil {
			return
		}
	}
}
