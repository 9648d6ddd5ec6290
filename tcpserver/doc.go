// Package tcpserver is an accept-loop TCP server built directly on
// ioreactor and coroio, grounded on the source's TcpServer
// (original_source/include/base/tcp_server.h,
// original_source/src/base/tcp_server.cpp): bind a listening socket per
// address, schedule an accept loop per listener onto the reactor, and
// schedule a handler fiber per accepted connection.
//
// Unlike transport/tcp/listener.go, which drives accept
// and I/O through net.Listen/net.Conn, this package opens raw sockets
// with golang.org/x/sys/unix and drives them through coroio so accept
// and read/write actually suspend the calling fiber on the reactor's
// epoll instance instead of blocking a goroutine — that is the entire
// point of a C10K coroutine scheduler, and net.Conn would bypass it.
package tcpserver
