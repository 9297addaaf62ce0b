package csrf

import "net/http"

// ErrorRenderer decides the response for a request that failed the check.
//
// Returning a non-nil error aborts the response path with that error; a
// renderer that writes its own response returns nil.
type ErrorRenderer interface {
	RenderError(w http.ResponseWriter, r *http.Request) error
}

// RendererFunc adapts a function writing an alternate response.
type RendererFunc func(w http.ResponseWriter, r *http.Request) error

func (f RendererFunc) RenderError(w http.ResponseWriter, r *http.Request) error {
	return f(w, r)
}

// DefaultErrorRenderer aborts with 403 Forbidden.
var DefaultErrorRenderer ErrorRenderer = NewHTTPError(http.StatusForbidden)

// ValidateRenderer reports a ConfigError when er cannot serve as an error
// renderer: nil, a typed nil, or an *HTTPError without an error status.
func ValidateRenderer(er ErrorRenderer) error {
	return validateRenderer("renderer", er)
}

func validateRenderer(op string, er ErrorRenderer) error {
	if isNil(er) {
		return configErr(op, "error renderer must be an *HTTPError or a RendererFunc, got nil %T", er)
	}
	if he, ok := er.(*HTTPError); ok && (he.Code < 400 || he.Code > 599) {
		return configErr(op, "error renderer status %d is not an error status", he.Code)
	}
	return nil
}

// RenderError runs the failure path: override when non-nil, otherwise the
// protector's default renderer.
func (p *Protector) RenderError(w http.ResponseWriter, r *http.Request, override ErrorRenderer) error {
	er := override
	if er == nil {
		if !p.configured() {
			return ErrNotConfigured
		}
		er = p.renderer
	}
	return er.RenderError(w, r)
}
