package display

import (
	"bytes"
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/term"
)

// RawKeys switches in to raw mode when it is a terminal, so single key presses reach
// ReadCommands without Enter. The returned function restores the previous mode. For any
// other reader both raw and restore do nothing.
func RawKeys(in io.Reader, out *ConsoleWriter) (restore func() error, err error) {
	noop := func() error { return nil }
	f, ok := in.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return noop, nil
	}
	fd := int(f.Fd())
	state, err := term.MakeRaw(fd)
	if err != nil {
		return noop, errors.Wrap(err, "cannot switch terminal to raw mode")
	}
	out.SetRaw(true)
	return func() error {
		out.SetRaw(false)
		return term.Restore(fd, state)
	}, nil
}

// ConsoleWriter writes to a terminal that may be in raw mode, where a line feed no longer
// returns the carriage.
type ConsoleWriter struct {
	mu  sync.Mutex
	w   io.Writer
	raw bool
}

// NewConsoleWriter wraps w.
func NewConsoleWriter(w io.Writer) *ConsoleWriter {
	return &ConsoleWriter{w: w}
}

// SetRaw turns line feed translation on or off.
func (cw *ConsoleWriter) SetRaw(raw bool) {
	cw.mu.Lock()
	cw.raw = raw
	cw.mu.Unlock()
}

// Write writes p, expanding every \n to \r\n in raw mode. It reports len(p) on success.
func (cw *ConsoleWriter) Write(p []byte) (int, error) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if !cw.raw {
		return cw.w.Write(p)
	}
	if _, err := cw.w.Write(bytes.ReplaceAll(p, []byte("\n"), []byte("\r\n"))); err != nil {
		return 0, err
	}
	return len(p), nil
}
