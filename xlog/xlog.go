package xlog

import (
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

var root atomic.Pointer[zerolog.Logger]

func init() {
	l := newLogger(os.Stderr)
	root.Store(&l)
}

func newLogger(w io.Writer) zerolog.Logger {
	cw := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	return zerolog.New(cw).With().Timestamp().Logger()
}

// SetOutput redirects the destination loggers obtained from For write to.
// Loggers already handed out before this call keep their old writer; call
// For again afterward to pick up the change.
func SetOutput(w io.Writer) {
	l := newLogger(w)
	root.Store(&l)
}

// SetLevel sets the process-wide minimum log level, below which events are
// dropped before formatting.
func SetLevel(lvl zerolog.Level) {
	zerolog.SetGlobalLevel(lvl)
}

// For returns a logger scoped to component: every event it emits carries a
// "component" field set to that name.
func For(component string) zerolog.Logger {
	return root.Load().With().Str("component", component).Logger()
}
