package csrf

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrConfig is matched by every *ConfigError via errors.Is.
	ErrConfig = errors.New("csrf: configuration error")

	// ErrNotConfigured is returned when a Protector was never built with New,
	// or when a package-level helper is used on a request that was not
	// served through a Protector.
	ErrNotConfigured = &ConfigError{Op: "lookup", Msg: "protector not configured; build one with csrf.New and serve requests through it"}

	// ErrNoRequestScope is returned by storage operations on a request that
	// carries no request scope.
	ErrNoRequestScope = errors.New("csrf: request has no csrf scope")
)

// ConfigError reports an invalid or missing configuration. It is raised
// eagerly, at construction time, whenever possible.
type ConfigError struct {
	Op  string
	Msg string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("csrf: %s: %s", e.Op, e.Msg)
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrConfig
}

func configErr(op, format string, args ...any) error {
	return &ConfigError{Op: op, Msg: fmt.Sprintf(format, args...)}
}

// StatusCoder is implemented by errors that stand for a complete HTTP
// response, such as *HTTPError.
type StatusCoder interface {
	StatusCode() int
}

// HTTPError is a terminal error response. Used as an ErrorRenderer it aborts
// the request with its status code.
type HTTPError struct {
	Code    int
	Message string
}

// NewHTTPError returns an HTTPError whose message defaults to the status text.
func NewHTTPError(code int, message ...string) *HTTPError {
	e := &HTTPError{Code: code, Message: http.StatusText(code)}
	if len(message) > 0 {
		e.Message = message[0]
	}
	return e
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("code=%d, message=%s", e.Code, e.Message)
}

func (e *HTTPError) StatusCode() int { return e.Code }

// RenderError returns e itself, which aborts the response path.
func (e *HTTPError) RenderError(http.ResponseWriter, *http.Request) error {
	return e
}

// exceptional reports whether err is a handler's structured error response.
func exceptional(err error) bool {
	var sc StatusCoder
	return errors.As(err, &sc)
}

// writeError renders err for handlers that have no outer error handler.
func writeError(w http.ResponseWriter, err error) {
	var sc StatusCoder
	if errors.As(err, &sc) {
		msg := http.StatusText(sc.StatusCode())
		var he *HTTPError
		if errors.As(err, &he) && he.Message != "" {
			msg = he.Message
		}
		http.Error(w, msg, sc.StatusCode())
		return
	}
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}
