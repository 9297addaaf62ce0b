package csrf

import (
	"log/slog"
	"mime/multipart"
	"net/http"
)

// HandlerFunc is a handler that may return an exceptional response: an
// error implementing StatusCoder, such as *HTTPError. Protection persists
// the token for such responses before returning the error to the caller.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// ServeHTTP writes a returned error as a plain-text response.
func (f HandlerFunc) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := f(w, r); err != nil {
		writeError(w, err)
	}
}

// Tag records how a handler was decorated.
type Tag int

const (
	TagUnmarked Tag = iota
	TagExempt
	TagProtected
)

// Handler is a handler decorated by Protect, ProtectFunc, ProtectWith or
// Exempt.
type Handler struct {
	p        *Protector
	tag      Tag
	next     HandlerFunc
	renderer ErrorRenderer
}

// Tag returns how h was decorated.
func (h *Handler) Tag() Tag { return h.tag }

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := h.Serve(w, r); err != nil {
		h.p.log().Debug("csrf: request ended with error", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, err)
	}
}

// Serve is the error-returning form of ServeHTTP for callers that render
// errors themselves.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) error {
	if h.tag == TagExempt {
		orig := r
		r = h.p.Scope(r)
		defer ReleaseForm(orig, r)
		h.p.MarkExempt(r)
		return h.next(w, r)
	}
	return h.p.serve(w, r, h.next, h.renderer, true)
}

// TagOf returns the decoration of h; undecorated handlers are TagUnmarked.
func TagOf(h http.Handler) Tag {
	if hh, ok := h.(*Handler); ok && hh != nil {
		return hh.tag
	}
	return TagUnmarked
}

// Protect wraps next with explicit protection.
//
// Behavior:
//   - Safe methods (GET/HEAD/OPTIONS/TRACE) are never checked.
//   - Other methods must present a token accepted by the policy; otherwise
//     the error renderer decides the response and next is not called.
//   - A token is persisted onto every response next produces, including
//     exceptional responses returned as StatusCoder errors.
func (p *Protector) Protect(next http.Handler) http.Handler {
	return p.decorate(next, TagProtected, nil)
}

// ProtectFunc is Protect for error-returning handlers.
func (p *Protector) ProtectFunc(next HandlerFunc) *Handler {
	return p.decorate(next, TagProtected, nil)
}

// ProtectWith returns a Protect middleware that renders failures with er
// instead of the protector's default renderer.
func (p *Protector) ProtectWith(er ErrorRenderer) (func(http.Handler) http.Handler, error) {
	if err := validateRenderer("protect", er); err != nil {
		return nil, err
	}
	return func(next http.Handler) http.Handler {
		return p.decorate(next, TagProtected, er)
	}, nil
}

// MustProtectWith is like ProtectWith but panics on error.
func (p *Protector) MustProtectWith(er ErrorRenderer) func(http.Handler) http.Handler {
	mw, err := p.ProtectWith(er)
	if err != nil {
		panic(err)
	}
	return mw
}

// Exempt marks next as never checked. The blanket middleware leaves it
// alone; next may still issue and save tokens itself.
func (p *Protector) Exempt(next http.Handler) http.Handler {
	return p.decorate(next, TagExempt, nil)
}

// decorate tags next. An already decorated handler is re-tagged rather than
// wrapped twice.
func (p *Protector) decorate(next http.Handler, tag Tag, er ErrorRenderer) *Handler {
	if hh, ok := next.(*Handler); ok && hh != nil {
		return &Handler{p: p, tag: tag, next: hh.next, renderer: er}
	}
	return &Handler{p: p, tag: tag, next: adapt(next), renderer: er}
}

func adapt(next http.Handler) HandlerFunc {
	if f, ok := next.(HandlerFunc); ok {
		return f
	}
	return func(w http.ResponseWriter, r *http.Request) error {
		next.ServeHTTP(w, r)
		return nil
	}
}

// Router is a handler able to name the handler it will dispatch a request
// to. *http.ServeMux implements it.
type Router interface {
	http.Handler
	Handler(r *http.Request) (h http.Handler, pattern string)
}

var _ Router = (*http.ServeMux)(nil)

// Middleware applies protection to every request reaching next. When next is
// a Router, requests whose target handler is decorated are left to that
// handler.
//
// Any other handler is protected as a whole, before it dispatches: Exempt
// decorations behind it are never seen and those routes are rejected like
// the rest. Routers other than *http.ServeMux need a resolver, such as
// csrfmux.Router or csrfchi.Router, passed to Dispatch.
func (p *Protector) Middleware(next http.Handler) http.Handler {
	if rt, ok := next.(Router); ok {
		return p.Dispatch(rt)
	}
	return HandlerFunc(func(w http.ResponseWriter, r *http.Request) error {
		return p.serve(w, r, adapt(next), nil, false)
	})
}

// Dispatch protects every route of router except those whose handler is
// already decorated with Exempt or Protect.
func (p *Protector) Dispatch(router Router) http.Handler {
	return HandlerFunc(func(w http.ResponseWriter, r *http.Request) error {
		orig := r
		r = p.Scope(r)
		if h, _ := router.Handler(r); TagOf(h) != TagUnmarked {
			defer ReleaseForm(orig, r)
			router.ServeHTTP(w, r)
			return nil
		}
		return p.serve(w, r, adapt(router), nil, false)
	})
}

// serve runs the protection state machine for one request. explicit
// protection overrides an exemption recorded by an outer layer.
func (p *Protector) serve(w http.ResponseWriter, r *http.Request, next HandlerFunc, override ErrorRenderer, explicit bool) error {
	if !p.configured() {
		return ErrNotConfigured
	}
	orig := r
	r = p.Scope(r)
	defer ReleaseForm(orig, r)

	begin := p.Begin
	if explicit {
		begin = p.BeginProtected
	}
	owned, ok, err := begin(r)
	if err != nil {
		return err
	}
	if !owned {
		return next(w, r)
	}
	if !ok {
		return p.RenderError(w, r, override)
	}

	sw := newSaveWriter(w, func() error { return p.Persist(w, r) })
	err = next(sw, r)
	if err == nil || exceptional(err) {
		if serr := sw.fire(); serr != nil {
			return serr
		}
	}
	return err
}

// Begin starts protection of r, which must carry a scope. owned is false
// when an outer layer already checked or exempted r; the caller then just
// runs its next handler and leaves persistence to that layer. For an owned
// request, allowed is the check result.
func (p *Protector) Begin(r *http.Request) (owned, allowed bool, err error) {
	if !p.configured() {
		return false, false, ErrNotConfigured
	}
	sc, err := scopeOf(r)
	if err != nil {
		return false, false, err
	}
	if sc.phase != phaseUnchecked {
		return false, false, nil
	}
	allowed, err = p.Check(r)
	return true, allowed, err
}

// BeginProtected is Begin for explicitly protected handlers. An exemption
// recorded by an outer blanket layer does not apply: r is checked anyway.
// A request already checked is still not owned.
func (p *Protector) BeginProtected(r *http.Request) (owned, allowed bool, err error) {
	if !p.configured() {
		return false, false, ErrNotConfigured
	}
	sc, err := scopeOf(r)
	if err != nil {
		return false, false, err
	}
	if sc.phase == phaseExempt {
		sc.phase = phaseUnchecked
	}
	return p.Begin(r)
}

// ReleaseForm removes the temporary files of multipart forms parsed on
// scoped, a copy of orig made by Scope, or by a policy on any request
// sharing its scope. The server only cleans up the form of the request it
// created. It is a no-op unless scoped was created from orig.
func ReleaseForm(orig, scoped *http.Request) {
	if scoped == orig {
		return
	}
	forms := []*multipart.Form{scoped.MultipartForm}
	sc, ok := scopeFromContext(scoped.Context())
	if ok {
		forms = append(forms, sc.forms...)
		sc.forms = nil
	}
	seen := make(map[*multipart.Form]bool, len(forms))
	for _, f := range forms {
		if f == nil || f == orig.MultipartForm || seen[f] {
			continue
		}
		seen[f] = true
		if err := f.RemoveAll(); err != nil && ok {
			sc.p.log().Warn("csrf: removing multipart files", "path", scoped.URL.Path, "error", err)
		}
	}
}

// Persist saves the token on the way out of a protected handler. It is a
// no-op for cancelled requests; failures are logged and returned.
func (p *Protector) Persist(w http.ResponseWriter, r *http.Request) error {
	if r.Context().Err() != nil {
		return nil
	}
	if err := p.storage.Save(w, r); err != nil {
		p.logger.Error("csrf: saving token", "method", r.Method, "path", r.URL.Path, "error", err)
		return err
	}
	return nil
}

// Scope returns r carrying a request scope bound to p. A request that
// already carries one is returned unchanged.
func (p *Protector) Scope(r *http.Request) *http.Request {
	if _, ok := scopeFromContext(r.Context()); ok {
		return r
	}
	return r.WithContext(contextWithScope(r.Context(), &scope{p: p}))
}

// Check runs the verification step once per request and reports whether
// the request may reach its handler. Later calls return the first result.
func (p *Protector) Check(r *http.Request) (bool, error) {
	if !p.configured() {
		return false, ErrNotConfigured
	}
	sc, err := scopeOf(r)
	if err != nil {
		return false, err
	}
	switch sc.phase {
	case phasePassed, phaseExempt:
		return true, nil
	case phaseRejected:
		return false, nil
	}

	if safeMethods[r.Method] {
		sc.phase = phasePassed
		p.observe(r, EventSafeMethod)
		return true, nil
	}

	expected, err := p.storage.Get(r)
	if err != nil {
		p.logger.Error("csrf: reading token", "method", r.Method, "path", r.URL.Path, "error", err)
		return false, err
	}
	ok, err := p.policy.Check(r, expected)
	if err != nil {
		return false, err
	}
	if !ok {
		sc.phase = phaseRejected
		p.observe(r, EventRejected)
		p.logger.Debug("csrf: token check failed", "method", r.Method, "path", r.URL.Path, "has_token", expected != "")
		return false, nil
	}
	sc.phase = phasePassed
	p.observe(r, EventPassed)
	return true, nil
}

// MarkExempt records that r skips the check. It has no effect once the
// check ran.
func (p *Protector) MarkExempt(r *http.Request) {
	sc, err := scopeOf(r)
	if err != nil || sc.phase != phaseUnchecked {
		return
	}
	sc.phase = phaseExempt
	p.observe(r, EventExempt)
}

// Token returns the token the request carries and provisions a new one for
// the response.
func (p *Protector) Token(r *http.Request) (string, error) {
	if !p.configured() {
		return "", ErrNotConfigured
	}
	return p.storage.Get(r)
}

// GenerateToken returns the token that will be issued on the response. It
// is generated once per request.
func (p *Protector) GenerateToken(r *http.Request) (string, error) {
	if !p.configured() {
		return "", ErrNotConfigured
	}
	return p.storage.NewToken(r)
}

// SaveToken persists the due token onto w. Protected handlers get this on
// the way out; exempt handlers call it themselves.
func (p *Protector) SaveToken(w http.ResponseWriter, r *http.Request) error {
	if !p.configured() {
		return ErrNotConfigured
	}
	return p.storage.Save(w, r)
}

// TokenHandler returns an HTTP handler that writes a fresh token, for SPAs
// that attach it to subsequent requests. The token is also persisted on the
// response.
func (p *Protector) TokenHandler() http.Handler {
	return p.ProtectFunc(func(w http.ResponseWriter, r *http.Request) error {
		tok, err := p.GenerateToken(r)
		if err != nil {
			return err
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, err = w.Write([]byte(tok))
		return err
	})
}

func (p *Protector) log() *slog.Logger {
	if p == nil || p.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return p.logger
}

func protectorOf(r *http.Request) (*Protector, error) {
	sc, ok := scopeFromContext(r.Context())
	if !ok || !sc.p.configured() {
		return nil, ErrNotConfigured
	}
	return sc.p, nil
}

// Token returns the request's existing token using the protector serving r.
func Token(r *http.Request) (string, error) {
	p, err := protectorOf(r)
	if err != nil {
		return "", err
	}
	return p.Token(r)
}

// GenerateToken returns the new token for r using the protector serving r.
func GenerateToken(r *http.Request) (string, error) {
	p, err := protectorOf(r)
	if err != nil {
		return "", err
	}
	return p.GenerateToken(r)
}

// SaveToken persists the due token onto w using the protector serving r.
func SaveToken(w http.ResponseWriter, r *http.Request) error {
	p, err := protectorOf(r)
	if err != nil {
		return err
	}
	return p.SaveToken(w, r)
}
