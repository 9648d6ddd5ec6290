// Command pooledclient dials a target repeatedly through connpool,
// framing each request with bytearray's length-prefixed string codec.
package main

import (
	"context"
	"flag"
	"time"

	"github.com/momentics/hioload-coro/bytearray"
	"github.com/momentics/hioload-coro/connpool"
	"github.com/momentics/hioload-coro/coroio"
	"github.com/momentics/hioload-coro/ioreactor"
	"github.com/momentics/hioload-coro/scheduler"
	"github.com/momentics/hioload-coro/xlog"
)

func main() {
	target := flag.String("target", "127.0.0.1:12345", "host:port to dial")
	requests := flag.Int("n", 10, "number of requests to send")
	flag.Parse()

	log := xlog.For("pooledclient")

	r, err := ioreactor.New("pooledclient", 2, false)
	if err != nil {
		log.Fatal().Err(err).Msg("ioreactor.New failed")
	}
	r.Start()
	defer r.Stop()
	defer r.Close()

	pool := connpool.New(r, 4, 30*time.Second)

	done := make(chan error, 1)
	r.ScheduleFunc(func() {
		for i := 0; i < *requests; i++ {
			if err := sendOne(r, pool, *target, i); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}, scheduler.AnyThread)

	if err := <-done; err != nil {
		log.Fatal().Err(err).Msg("pooledclient run failed")
	}
	log.Info().Int("requests", *requests).Msg("done")
}

func sendOne(r *ioreactor.Reactor, pool *connpool.Pool, target string, seq int) error {
	conn, err := pool.Get(context.Background(), target)
	if err != nil {
		return err
	}
	defer conn.Release()

	out := bytearray.New()
	out.WriteStringF32("ping")
	if _, err := coroio.Write(r, conn.FD(), out.Bytes()); err != nil {
		return err
	}

	buf := make([]byte, 4096)
	n, err := coroio.Read(r, conn.FD(), buf)
	if err != nil {
		return err
	}
	in := bytearray.FromBytes(buf[:n])
	reply, err := in.ReadStringF32()
	if err != nil {
		return err
	}
	log := xlog.For("pooledclient")
	log.Debug().Int("seq", seq).Str("reply", reply).Msg("roundtrip")
	return nil
}
