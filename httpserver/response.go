package httpserver

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"time"
)

// responseWriter buffers status/headers/body so the full response can
// be measured (for Content-Length) before anything reaches the wire,
// implementing http.ResponseWriter so ordinary net/http-style handlers
// work unmodified.
type responseWriter struct {
	header      http.Header
	status      int
	body        bytes.Buffer
	wroteHeader bool
}

func newResponseWriter() *responseWriter {
	return &responseWriter{header: make(http.Header), status: http.StatusOK}
}

func (w *responseWriter) Header() http.Header { return w.header }

func (w *responseWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.status = status
	w.wroteHeader = true
}

func (w *responseWriter) Write(p []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.body.Write(p)
}

// flush renders the full HTTP/1.1 response line, headers, and body into
// a single []byte, setting Content-Length, Date, and Connection.
func (w *responseWriter) flush(keepAlive bool) []byte {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "HTTP/1.1 %d %s\r\n", w.status, http.StatusText(w.status))

	w.header.Set("Content-Length", fmt.Sprintf("%d", w.body.Len()))
	w.header.Set("Date", time.Now().UTC().Format(http.TimeFormat))
	if keepAlive {
		w.header.Set("Connection", "keep-alive")
	} else {
		w.header.Set("Connection", "close")
	}

	keys := make([]string, 0, len(w.header))
	for k := range w.header {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range w.header[k] {
			fmt.Fprintf(&buf, "%s: %s\r\n", k, v)
		}
	}
	buf.WriteString("\r\n")
	buf.Write(w.body.Bytes())
	return buf.Bytes()
}
