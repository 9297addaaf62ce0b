package csrfecho_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JeanGrijp/go-csrf/v2/csrf"
	"github.com/JeanGrijp/go-csrf/v2/csrfecho"
)

const header = "X-CSRF-Token"

func newEcho(t *testing.T, cfg csrfecho.Config) *echo.Echo {
	t.Helper()
	storage, err := csrf.NewCookieStorage(csrf.CookieOptions{}, nil)
	require.NoError(t, err)
	p, err := csrf.New(csrf.Config{Policy: csrf.HeaderPolicy{Name: header}, Storage: storage})
	require.NoError(t, err)
	mw, err := csrfecho.MiddlewareWithConfig(p, cfg)
	require.NoError(t, err)

	e := echo.New()
	e.Use(mw)
	e.GET("/token", func(c echo.Context) error {
		tok, err := csrfecho.Token(c)
		if err != nil {
			return err
		}
		return c.String(http.StatusOK, tok)
	})
	e.POST("/submit", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.POST("/conflict", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusConflict, "already exists")
	})
	e.POST("/broken", func(c echo.Context) error {
		return errors.New("database unavailable")
	})
	e.POST("/hooks", func(c echo.Context) error {
		return c.NoContent(http.StatusAccepted)
	})
	return e
}

func csrfCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == "csrf_token" {
			return c
		}
	}
	return nil
}

func post(e *echo.Echo, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: "csrf_token", Value: token})
		req.Header.Set(header, token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestMiddleware(t *testing.T) {
	e := newEcho(t, csrfecho.Config{})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/token", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	issued := csrfCookie(rec)
	require.NotNil(t, issued)
	assert.Equal(t, rec.Body.String(), issued.Value)

	rec = post(e, "/submit", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Nil(t, csrfCookie(rec), "rejected requests do not persist")

	rec = post(e, "/submit", issued.Value)
	assert.Equal(t, http.StatusOK, rec.Code)
	rotated := csrfCookie(rec)
	require.NotNil(t, rotated)
	assert.NotEqual(t, issued.Value, rotated.Value)
}

func TestHTTPErrorIsPersisted(t *testing.T) {
	e := newEcho(t, csrfecho.Config{})

	rec := post(e, "/conflict", "tok")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "already exists")
	assert.NotNil(t, csrfCookie(rec))
}

func TestInternalErrorSkipsPersistence(t *testing.T) {
	e := newEcho(t, csrfecho.Config{})

	rec := post(e, "/broken", "tok")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Nil(t, csrfCookie(rec))
}

func TestSkipperExempts(t *testing.T) {
	e := newEcho(t, csrfecho.Config{Skipper: csrfecho.ExemptPaths("/hooks")})

	rec := post(e, "/hooks", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Nil(t, csrfCookie(rec))

	assert.Equal(t, http.StatusForbidden, post(e, "/submit", "").Code)
}

func TestCustomRenderer(t *testing.T) {
	e := newEcho(t, csrfecho.Config{ErrorRenderer: csrf.NewHTTPError(http.StatusBadRequest, "bad token")})

	rec := post(e, "/submit", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "bad token")

	storage, err := csrf.NewCookieStorage(csrf.CookieOptions{}, nil)
	require.NoError(t, err)
	p := csrf.MustNew(csrf.Config{Policy: csrf.HeaderPolicy{Name: header}, Storage: storage})
	_, err = csrfecho.MiddlewareWithConfig(p, csrfecho.Config{ErrorRenderer: (*csrf.HTTPError)(nil)})
	assert.ErrorIs(t, err, csrf.ErrConfig)
}
