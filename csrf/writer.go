package csrf

import (
	"bufio"
	"net"
	"net/http"
)

// saveWriter runs a hook right before the response headers are first
// written, so the token can still be added as a header. Hijacked
// connections skip the hook.
type saveWriter struct {
	http.ResponseWriter
	before func() error
	fired  bool
	err    error
}

func newSaveWriter(w http.ResponseWriter, before func() error) *saveWriter {
	return &saveWriter{ResponseWriter: w, before: before}
}

func (w *saveWriter) fire() error {
	if !w.fired {
		w.fired = true
		w.err = w.before()
	}
	return w.err
}

func (w *saveWriter) WriteHeader(code int) {
	if w.fire() != nil {
		return
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *saveWriter) Write(b []byte) (int, error) {
	if err := w.fire(); err != nil {
		return 0, err
	}
	return w.ResponseWriter.Write(b)
}

func (w *saveWriter) Flush() {
	if w.fire() != nil {
		return
	}
	_ = http.NewResponseController(w.ResponseWriter).Flush()
}

func (w *saveWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	w.fired = true
	return http.NewResponseController(w.ResponseWriter).Hijack()
}

// Unwrap returns the underlying ResponseWriter for http.ResponseController.
func (w *saveWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
