// Command httpdemo serves a small HTTP/1.1 API over httpserver,
// wiring corsmw and session together to demonstrate route
// registration, path parameters, and middleware composition.
package main

import (
	"encoding/json"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/momentics/hioload-coro/corsmw"
	"github.com/momentics/hioload-coro/httpserver"
	"github.com/momentics/hioload-coro/ioreactor"
	"github.com/momentics/hioload-coro/session"
	"github.com/momentics/hioload-coro/xlog"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:8080", "address to listen on")
	workers := flag.Int("workers", 4, "reactor worker count")
	flag.Parse()

	log := xlog.For("httpdemo")

	r, err := ioreactor.New("httpdemo", *workers, false)
	if err != nil {
		log.Fatal().Err(err).Msg("ioreactor.New failed")
	}
	r.Start()
	defer r.Stop()
	defer r.Close()

	sessions := session.NewStore(r, 16, 5*time.Minute)

	dispatch := httpserver.NewDispatch()
	dispatch.Handle("GET", "/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	dispatch.HandleRegex("GET", "/users/:id", func(w http.ResponseWriter, req *http.Request) {
		id := httpserver.PathParam(req, "id")
		sess := sessions.GetOrCreate(req.RemoteAddr)
		sess.Touch()
		sess.Set("last_user_lookup", id)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"id": id})
	})

	handler := corsmw.Wrap(corsmw.DefaultConfig(), dispatch)
	srv := httpserver.New("httpdemo", r, handler)

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
	log.Info().Str("addr", srv.BoundAddr().String()).Msg("serving")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info().Msg("shutting down")
	srv.Stop()
}
