package httpserver_test

import (
	"bufio"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/momentics/hioload-coro/httpserver"
	"github.com/momentics/hioload-coro/ioreactor"
)

func startServer(t *testing.T, handler http.Handler) (*httpserver.Server, func()) {
	t.Helper()
	r, err := ioreactor.New("http-test", 2, false)
	if err != nil {
		t.Fatalf("ioreactor.New: %v", err)
	}
	r.Start()

	srv := httpserver.New("http-test", r, handler)
	if err := srv.Bind(&net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0}); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	cleanup := func() {
		srv.Stop()
		r.Stop()
		r.Close()
	}
	return srv, cleanup
}

func TestDispatchExactRoute(t *testing.T) {
	d := httpserver.NewDispatch()
	d.Handle("GET", "/ping", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("pong"))
	})

	srv, cleanup := startServer(t, d)
	defer cleanup()

	conn, err := net.DialTimeout("tcp", srv.BoundAddr().String(), 2*time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("GET /ping HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n")); err != nil {
		t.Fatalf("write request: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	resp, err := http.ReadResponse(bufio.NewReader(conn), nil)
	if err != nil {
		t.Fatalf("ReadResponse: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	buf := make([]byte, 4)
	if _, err := resp.Body.Read(buf); err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(buf) != "pong" {
		t.Fatalf("expected body 'pong', got %q", buf)
	}
}

func TestDispatchRegexRouteExtractsParam(t *testing.T) {
	d := httpserver.NewDispatch()
	var gotID string
	d.HandleRegex("GET", "/users/:id", func(w http.ResponseWriter, r *http.Request) {
		gotID = httpserver.PathParam(r, "id")
		w.WriteHeader(http.StatusOK)
	})

	srv, cleanup := startServer(t, d)
	defer cleanup()

	conn, err := net.DialTimeout("tcp", srv.BoundAddr().String(), 2*time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("GET /users/42 HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n")); err != nil {
		t.Fatalf("write request: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	if _, err := http.ReadResponse(bufio.NewReader(conn), nil); err != nil {
		t.Fatalf("ReadResponse: %v", err)
	}
	if gotID != "42" {
		t.Fatalf("expected path param id=42, got %q", gotID)
	}
}

func TestDispatchUnmatchedReturnsNotFound(t *testing.T) {
	d := httpserver.NewDispatch()

	srv, cleanup := startServer(t, d)
	defer cleanup()

	conn, err := net.DialTimeout("tcp", srv.BoundAddr().String(), 2*time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("GET /nope HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n")); err != nil {
		t.Fatalf("write request: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	resp, err := http.ReadResponse(bufio.NewReader(conn), nil)
	if err != nil {
		t.Fatalf("ReadResponse: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestKeepAliveServesSecondRequestOnSameConnection(t *testing.T) {
	d := httpserver.NewDispatch()
	d.Handle("GET", "/a", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("A")) })
	d.Handle("GET", "/b", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("B")) })

	srv, cleanup := startServer(t, d)
	defer cleanup()

	conn, err := net.DialTimeout("tcp", srv.BoundAddr().String(), 2*time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(3 * time.Second))

	br := bufio.NewReader(conn)
	if _, err := conn.Write([]byte("GET /a HTTP/1.1\r\nHost: x\r\n\r\n")); err != nil {
		t.Fatalf("write first request: %v", err)
	}
	resp1, err := http.ReadResponse(br, nil)
	if err != nil {
		t.Fatalf("ReadResponse 1: %v", err)
	}
	resp1.Body.Close()

	if _, err := conn.Write([]byte("GET /b HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n")); err != nil {
		t.Fatalf("write second request: %v", err)
	}
	resp2, err := http.ReadResponse(br, nil)
	if err != nil {
		t.Fatalf("ReadResponse 2: %v", err)
	}
	buf := make([]byte, 1)
	resp2.Body.Read(buf)
	if string(buf) != "B" {
		t.Fatalf("expected second response body 'B', got %q", buf)
	}
}
