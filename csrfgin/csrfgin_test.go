package csrfgin_test

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JeanGrijp/go-csrf/v2/csrf"
	"github.com/JeanGrijp/go-csrf/v2/csrfgin"
)

const header = "X-CSRF-Token"

func init() {
	gin.SetMode(gin.TestMode)
}

type countingPolicy struct {
	csrf.Policy
	calls atomic.Int32
}

func (p *countingPolicy) Check(r *http.Request, expected string) (bool, error) {
	p.calls.Add(1)
	return p.Policy.Check(r, expected)
}

func newProtector(t *testing.T) (*csrf.Protector, *countingPolicy) {
	t.Helper()
	storage, err := csrf.NewCookieStorage(csrf.CookieOptions{}, nil)
	require.NoError(t, err)
	policy := &countingPolicy{Policy: csrf.HeaderPolicy{Name: header}}
	p, err := csrf.New(csrf.Config{Policy: policy, Storage: storage})
	require.NoError(t, err)
	return p, policy
}

func tokenRoute(c *gin.Context) {
	tok, err := csrfgin.Token(c)
	if err != nil {
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	c.String(http.StatusOK, tok)
}

func cookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == "csrf_token" {
			return c
		}
	}
	return nil
}

func post(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: "csrf_token", Value: token})
		req.Header.Set(header, token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestBlanketMiddleware(t *testing.T) {
	p, _ := newProtector(t)
	g := csrfgin.New(p)
	g.Exempt(http.MethodPost, "/hooks/:name")

	r := gin.New()
	r.Use(g.Middleware())
	r.GET("/token", tokenRoute)
	r.POST("/submit", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.POST("/hooks/:name", func(c *gin.Context) { c.String(http.StatusAccepted, c.Param("name")) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/token", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	c := cookie(rec)
	require.NotNil(t, c)
	assert.Equal(t, rec.Body.String(), c.Value)

	assert.Equal(t, http.StatusForbidden, post(r, "/submit", "").Code)

	rec = post(r, "/submit", c.Value)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	rotated := cookie(rec)
	require.NotNil(t, rotated)
	assert.NotEqual(t, c.Value, rotated.Value)

	rec = post(r, "/hooks/stripe", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "stripe", rec.Body.String())
	assert.Nil(t, cookie(rec), "exempt routes do not persist tokens")
}

func TestGroupProtect(t *testing.T) {
	p, _ := newProtector(t)
	g := csrfgin.New(p)

	r := gin.New()
	r.POST("/open", func(c *gin.Context) { c.String(http.StatusOK, "open") })
	api := r.Group("/api", g.Protect())
	api.POST("/items", func(c *gin.Context) { c.String(http.StatusCreated, "created") })

	assert.Equal(t, http.StatusOK, post(r, "/open", "").Code)
	assert.Equal(t, http.StatusForbidden, post(r, "/api/items", "").Code)
	assert.Equal(t, http.StatusCreated, post(r, "/api/items", "tok").Code)
}

func TestNestedProtectionChecksOnce(t *testing.T) {
	p, policy := newProtector(t)
	g := csrfgin.New(p)

	r := gin.New()
	r.Use(g.Middleware())
	r.POST("/submit", g.Protect(), func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	rec := post(r, "/submit", "tok")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, policy.calls.Load())
	assert.Len(t, rec.Result().Cookies(), 1)
}

func TestTokenSavedWhenHandlerWritesNothing(t *testing.T) {
	p, _ := newProtector(t)
	g := csrfgin.New(p)

	r := gin.New()
	r.Use(g.Middleware())
	r.GET("/noop", func(c *gin.Context) {})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/noop", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotNil(t, cookie(rec))
}

func TestProtectWithRenderer(t *testing.T) {
	p, _ := newProtector(t)
	g := csrfgin.New(p)

	teapot, err := g.ProtectWith(csrf.RendererFunc(func(w http.ResponseWriter, r *http.Request) error {
		w.WriteHeader(http.StatusTeapot)
		return nil
	}))
	require.NoError(t, err)

	r := gin.New()
	r.POST("/brew", teapot, func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	assert.Equal(t, http.StatusTeapot, post(r, "/brew", "").Code)

	_, err = g.ProtectWith(csrf.NewHTTPError(http.StatusOK))
	assert.ErrorIs(t, err, csrf.ErrConfig)
}

func TestExemptRouteCanSaveToken(t *testing.T) {
	p, _ := newProtector(t)
	g := csrfgin.New(p)
	g.Exempt(http.MethodPost, "/login")

	r := gin.New()
	r.Use(g.Middleware())
	r.POST("/login", func(c *gin.Context) {
		tok, err := csrfgin.Token(c)
		require.NoError(t, err)
		require.NoError(t, csrfgin.SaveToken(c))
		c.String(http.StatusOK, tok)
	})

	rec := post(r, "/login", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	c := cookie(rec)
	require.NotNil(t, c)
	assert.Equal(t, rec.Body.String(), c.Value)
}

func TestExplicitProtectOverridesExemption(t *testing.T) {
	p, policy := newProtector(t)
	g := csrfgin.New(p)
	g.Exempt(http.MethodPost, "/transfer")

	r := gin.New()
	r.Use(g.Middleware())
	r.POST("/transfer", g.Protect(), func(c *gin.Context) { c.String(http.StatusOK, "reached") })

	rec := post(r, "/transfer", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.NotEqual(t, "reached", rec.Body.String())

	rec = post(r, "/transfer", "tok")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotNil(t, cookie(rec))
	assert.EqualValues(t, 2, policy.calls.Load())
}
