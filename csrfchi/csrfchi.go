// Package csrfchi lets a csrf.Protector resolve decorated handlers behind a
// chi router.
//
// Register decorated handlers as handlers, with Method or Handle:
//
//	r.Method(http.MethodPost, "/webhooks/{provider}", p.Exempt(hook))
//
// A method value such as p.Exempt(hook).ServeHTTP passed to Post loses the
// decoration and the route is protected like any other.
package csrfchi

import (
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/JeanGrijp/go-csrf/v2/csrf"
)

// Router exposes the handler a *chi.Mux dispatches to. Routes are indexed on
// first use, so every route must be registered before serving.
type Router struct {
	*chi.Mux

	once   sync.Once
	routes map[string]http.Handler
	err    error
}

var _ csrf.Router = (*Router)(nil)

// New returns a Router over mux.
func New(mux *chi.Mux) *Router {
	return &Router{Mux: mux}
}

func routeKey(method, pattern string) string {
	return method + " " + pattern
}

func (rt *Router) index() {
	rt.routes = make(map[string]http.Handler)
	rt.err = chi.Walk(rt.Mux, func(method, route string, h http.Handler, _ ...func(http.Handler) http.Handler) error {
		rt.routes[routeKey(method, route)] = h
		return nil
	})
}

// Handler returns the matched route's own handler, without inline or
// router-level middleware, and its full pattern. It returns a nil handler
// when no route matches.
func (rt *Router) Handler(r *http.Request) (http.Handler, string) {
	rt.once.Do(rt.index)
	if rt.err != nil {
		return nil, ""
	}

	path := r.URL.RawPath
	if path == "" {
		path = r.URL.Path
	}
	pattern := rt.Find(chi.NewRouteContext(), r.Method, path)
	if pattern == "" {
		return nil, ""
	}
	h, ok := rt.routes[routeKey(r.Method, pattern)]
	if !ok {
		return nil, ""
	}
	return h, pattern
}

// Middleware protects every route of mux except those decorated with
// Protector.Exempt or Protector.Protect.
func Middleware(p *csrf.Protector, mux *chi.Mux) http.Handler {
	return p.Dispatch(New(mux))
}
