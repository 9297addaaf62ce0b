// Package csrfecho adapts a csrf.Protector to Echo.
//
// Handler errors of type *echo.HTTPError are exceptional responses: the
// token is persisted before the error is handed back to Echo's error
// handler.
package csrfecho

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/JeanGrijp/go-csrf/v2/csrf"
)

// Config customizes the middleware.
type Config struct {
	// Skipper marks requests as exempt. Exempt requests are never checked
	// and never get a token persisted automatically.
	Skipper middleware.Skipper

	// ErrorRenderer overrides the protector's renderer.
	ErrorRenderer csrf.ErrorRenderer
}

// Middleware protects every request with p.
func Middleware(p *csrf.Protector) echo.MiddlewareFunc {
	mw, err := MiddlewareWithConfig(p, Config{})
	if err != nil {
		panic(err)
	}
	return mw
}

// MiddlewareWithConfig is Middleware with a Config.
func MiddlewareWithConfig(p *csrf.Protector, cfg Config) (echo.MiddlewareFunc, error) {
	if cfg.Skipper == nil {
		cfg.Skipper = middleware.DefaultSkipper
	}
	if cfg.ErrorRenderer != nil {
		if err := csrf.ValidateRenderer(cfg.ErrorRenderer); err != nil {
			return nil, err
		}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			orig := c.Request()
			r := p.Scope(orig)
			c.SetRequest(r)
			defer csrf.ReleaseForm(orig, r)

			if cfg.Skipper(c) {
				p.MarkExempt(r)
				return next(c)
			}

			owned, ok, err := p.Begin(r)
			if err != nil {
				return toEcho(err)
			}
			if !owned {
				return next(c)
			}
			if !ok {
				if err := p.RenderError(c.Response(), r, cfg.ErrorRenderer); err != nil {
					return toEcho(err)
				}
				return nil
			}

			res := c.Response()
			var skip bool
			res.Before(func() {
				if skip {
					return
				}
				// failures are logged by Persist
				_ = p.Persist(res, r)
			})

			err = next(c)
			if err != nil && !exceptional(err) {
				skip = true
				return err
			}
			if !res.Committed {
				if serr := p.Persist(res, r); serr != nil {
					return serr
				}
			}
			return err
		}
	}, nil
}

// ExemptPaths returns a Skipper matching the given route patterns, as
// registered with Echo (c.Path()).
func ExemptPaths(paths ...string) middleware.Skipper {
	set := make(map[string]bool, len(paths))
	for _, p := range paths {
		set[p] = true
	}
	return func(c echo.Context) bool {
		return set[c.Path()]
	}
}

func exceptional(err error) bool {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return true
	}
	var sc csrf.StatusCoder
	return errors.As(err, &sc)
}

// toEcho converts csrf errors into *echo.HTTPError.
func toEcho(err error) error {
	var he *csrf.HTTPError
	if errors.As(err, &he) {
		return echo.NewHTTPError(he.Code, he.Message)
	}
	if errors.Is(err, csrf.ErrConfig) {
		return echo.NewHTTPError(http.StatusInternalServerError).SetInternal(err)
	}
	return err
}

// Token returns the token issued on the current response.
func Token(c echo.Context) (string, error) {
	return csrf.GenerateToken(c.Request())
}

// SaveToken persists the due token from an exempt handler.
func SaveToken(c echo.Context) error {
	return csrf.SaveToken(c.Response(), c.Request())
}
