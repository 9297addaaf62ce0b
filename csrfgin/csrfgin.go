// Package csrfgin adapts a csrf.Protector to Gin.
//
// Gin handlers are plain functions and cannot carry a decoration, so routes
// are exempted by method and route pattern on a Guard:
//
//	g := csrfgin.New(p)
//	g.Exempt(http.MethodPost, "/webhooks/:provider")
//	r.Use(g.Middleware())
//
// Groups that are not behind the blanket middleware opt in with Protect.
package csrfgin

import (
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/JeanGrijp/go-csrf/v2/csrf"
)

// Guard applies one Protector to Gin routes.
type Guard struct {
	p *csrf.Protector

	mu     sync.RWMutex
	exempt map[string]bool
}

// New returns a Guard for p.
func New(p *csrf.Protector) *Guard {
	return &Guard{p: p, exempt: make(map[string]bool)}
}

func routeKey(method, fullPath string) string {
	return method + " " + fullPath
}

// Exempt excludes the route registered as method + fullPath from the blanket
// middleware. fullPath is the pattern given to Gin, e.g. "/users/:id".
func (g *Guard) Exempt(method, fullPath string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.exempt[routeKey(method, fullPath)] = true
}

func (g *Guard) isExempt(c *gin.Context) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.exempt[routeKey(c.Request.Method, c.FullPath())]
}

// Middleware protects every route except the exempted ones.
func (g *Guard) Middleware() gin.HandlerFunc {
	return g.handler(nil, true)
}

// Protect explicitly protects the routes it is attached to, regardless of
// exemptions: a route both exempted and protected is checked.
func (g *Guard) Protect() gin.HandlerFunc {
	return g.handler(nil, false)
}

// ProtectWith is Protect with a route-specific error renderer.
func (g *Guard) ProtectWith(er csrf.ErrorRenderer) (gin.HandlerFunc, error) {
	if err := csrf.ValidateRenderer(er); err != nil {
		return nil, err
	}
	return g.handler(er, false), nil
}

func (g *Guard) handler(override csrf.ErrorRenderer, blanket bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		orig := c.Request
		r := g.p.Scope(orig)
		c.Request = r
		defer csrf.ReleaseForm(orig, r)

		if blanket && g.isExempt(c) {
			g.p.MarkExempt(r)
			c.Next()
			return
		}

		begin := g.p.BeginProtected
		if blanket {
			begin = g.p.Begin
		}
		owned, ok, err := begin(r)
		if err != nil {
			abortWithError(c, err)
			return
		}
		if !owned {
			c.Next()
			return
		}
		if !ok {
			if err := g.p.RenderError(c.Writer, r, override); err != nil {
				abortWithError(c, err)
				return
			}
			c.Abort()
			return
		}

		ow := c.Writer
		sw := &saveWriter{ResponseWriter: ow, before: func() error { return g.p.Persist(ow, r) }}
		c.Writer = sw
		c.Next()
		c.Writer = ow

		if err := sw.fire(); err != nil {
			_ = c.Error(err)
			if !ow.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
			}
		}
	}
}

// abortWithError stops the chain with the status carried by err, or 500.
func abortWithError(c *gin.Context, err error) {
	code := http.StatusInternalServerError
	var sc csrf.StatusCoder
	if errors.As(err, &sc) {
		code = sc.StatusCode()
	}
	_ = c.AbortWithError(code, err)
}

// Token returns the token issued on the current response, generating it on
// first use.
func Token(c *gin.Context) (string, error) {
	return csrf.GenerateToken(c.Request)
}

// SaveToken persists the due token from an exempt route.
func SaveToken(c *gin.Context) error {
	return csrf.SaveToken(c.Writer, c.Request)
}
