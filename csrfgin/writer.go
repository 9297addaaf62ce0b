package csrfgin

import (
	"bufio"
	"net"

	"github.com/gin-gonic/gin"
)

// saveWriter runs before once, ahead of the first header or body write.
// Gin only records the status in WriteHeader, so firing there is still
// early enough to add headers.
type saveWriter struct {
	gin.ResponseWriter
	before func() error
	fired  bool
	err    error
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

func (w *saveWriter) WriteHeaderNow() {
	if w.fire() != nil {
		return
	}
	w.ResponseWriter.WriteHeaderNow()
}

func (w *saveWriter) Write(b []byte) (int, error) {
	if err := w.fire(); err != nil {
		return 0, err
	}
	return w.ResponseWriter.Write(b)
}

func (w *saveWriter) WriteString(s string) (int, error) {
	if err := w.fire(); err != nil {
		return 0, err
	}
	return w.ResponseWriter.WriteString(s)
}

func (w *saveWriter) Flush() {
	if w.fire() != nil {
		return
	}
	w.ResponseWriter.Flush()
}

func (w *saveWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	w.fired = true
	return w.ResponseWriter.Hijack()
}
