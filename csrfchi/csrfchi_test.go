package csrfchi_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JeanGrijp/go-csrf/v2/csrf"
	"github.com/JeanGrijp/go-csrf/v2/csrfchi"
)

func ok(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func newRouter(t *testing.T) (*csrf.Protector, *chi.Mux) {
	t.Helper()
	storage, err := csrf.NewCookieStorage(csrf.CookieOptions{}, nil)
	require.NoError(t, err)
	p, err := csrf.New(csrf.Config{Policy: csrf.HeaderPolicy{Name: "X-CSRF-Token"}, Storage: storage})
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Method(http.MethodPost, "/login", p.Exempt(http.HandlerFunc(ok)))
	r.Post("/logout", ok)
	r.Method(http.MethodPost, "/refresh", p.MustProtectWith(csrf.NewHTTPError(http.StatusUnauthorized))(http.HandlerFunc(ok)))
	r.Route("/api", func(r chi.Router) {
		r.Handle("/hooks/{provider}", p.Exempt(http.HandlerFunc(ok)))
		r.With(middleware.NoCache).Post("/items", ok)
	})
	return p, r
}

func TestHandlerResolvesRouteHandler(t *testing.T) {
	_, r := newRouter(t)
	rt := csrfchi.New(r)

	h, pattern := rt.Handler(httptest.NewRequest(http.MethodPost, "/login", nil))
	assert.Equal(t, csrf.TagExempt, csrf.TagOf(h))
	assert.Equal(t, "/login", pattern)

	h, pattern = rt.Handler(httptest.NewRequest(http.MethodPost, "/api/hooks/stripe", nil))
	assert.Equal(t, csrf.TagExempt, csrf.TagOf(h))
	assert.Equal(t, "/api/hooks/{provider}", pattern)

	h, _ = rt.Handler(httptest.NewRequest(http.MethodPost, "/refresh", nil))
	assert.Equal(t, csrf.TagProtected, csrf.TagOf(h))

	h, _ = rt.Handler(httptest.NewRequest(http.MethodPost, "/logout", nil))
	assert.Equal(t, csrf.TagUnmarked, csrf.TagOf(h))

	h, _ = rt.Handler(httptest.NewRequest(http.MethodGet, "/login", nil))
	assert.Nil(t, h)

	h, _ = rt.Handler(httptest.NewRequest(http.MethodPost, "/nowhere", nil))
	assert.Nil(t, h)
}

func TestMiddlewareHonorsDecorations(t *testing.T) {
	p, r := newRouter(t)
	h := csrfchi.Middleware(p, r)

	serve := func(path string) int {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, serve("/login"))
	assert.Equal(t, http.StatusOK, serve("/api/hooks/github"))
	assert.Equal(t, http.StatusForbidden, serve("/logout"))
	assert.Equal(t, http.StatusForbidden, serve("/api/items"))
	assert.Equal(t, http.StatusUnauthorized, serve("/refresh"))
}

func TestPlainMiddlewareProtectsEverything(t *testing.T) {
	p, r := newRouter(t)
	h := p.Middleware(r)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/login", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code, "a chi router needs csrfchi to see exemptions")
}
