// Package csrfmux lets a csrf.Protector resolve decorated handlers behind a
// gorilla/mux router.
package csrfmux

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/JeanGrijp/go-csrf/v2/csrf"
)

// Router exposes the handler a *mux.Router dispatches to.
type Router struct {
	*mux.Router
}

var _ csrf.Router = Router{}

// Handler returns the matched route's own handler, before router-level
// middleware is applied, and its path template. It returns a nil handler
// when no route matches.
func (rt Router) Handler(r *http.Request) (http.Handler, string) {
	var m mux.RouteMatch
	if !rt.Match(r, &m) || m.MatchErr != nil || m.Route == nil {
		return nil, ""
	}
	tpl, _ := m.Route.GetPathTemplate()
	return m.Route.GetHandler(), tpl
}

// Middleware protects every route of r except those decorated with
// Protector.Exempt or Protector.Protect.
func Middleware(p *csrf.Protector, r *mux.Router) http.Handler {
	return p.Dispatch(Router{Router: r})
}
