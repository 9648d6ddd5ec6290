// Package httpserver is a minimal HTTP/1.1 request parser and servlet
// dispatcher running on tcpserver/coroio connections, grounded on the
// source's http_servlet.cpp (ServletDispatch's exact-path map, regex
// routes with ":name" path parameters, and NotFoundServlet fallback:
// original_source/src/http/http_servlet.cpp,
// original_source/include/http/http_servlet.h) and on http_server.cpp's
// accept-then-parse-then-dispatch loop
// (original_source/src/http/http_server.cpp).
//
// Rather than hand-rolling an HTTP/1.1 parser the way sylar's
// http_parser.cpp does with a generated Ragel state machine, this
// package reuses net/http's own request parser
// (http.ReadRequest over a bufio.Reader) the same way
// protocol.DoHandshakeCore does for the WebSocket upgrade request
// (core/protocol/handshake.go) — bufio.NewReader wraps a small
// io.Reader/io.Writer adapter over the raw fd (fdConn) so parsing still
// runs entirely on top of coroio's cooperative Read/Write, it just
// doesn't reimplement RFC 7230 token-by-token.
package httpserver
