// Package demo is a small form application showing the two ways of wiring
// protection: blanket middleware with exemptions, and per-handler
// protection.
package demo

import (
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/JeanGrijp/go-csrf/v2/csrf"
)

const (
	// FormField is the hidden form field carrying the token.
	FormField = "_csrf_token"

	// CookieName is the cookie carrying the token with cookie storage.
	CookieName = "csrf_token"

	// HeaderName carries the token for script clients.
	HeaderName = "X-CSRF-Token"
)

var (
	formTmpl = template.Must(template.New("form").Parse(`<html>
  <head><title>{{.Title}}</title></head>
  <body>
    <form method="POST" action="{{.Action}}">
      {{if .Token}}<input type="hidden" name="{{.Field}}" value="{{.Token}}" />{{end}}
      <input type="text" name="name" />
      <input type="submit" value="Say hello">
    </form>
  </body>
</html>
`))

	helloTmpl = template.Must(template.New("hello").Parse(`Hello, {{.}}`))
)

type formPage struct {
	Title  string
	Action string
	Field  string
	Token  string
}

// Options configures the demo application.
type Options struct {
	// Mode is "middleware" or "manual".
	Mode string

	Policy   csrf.Policy
	Storage  csrf.Storage
	Logger   *slog.Logger
	Observer csrf.Observer
}

// NewPolicy maps a policy name to its csrf.Policy.
func NewPolicy(name string) (csrf.Policy, error) {
	switch name {
	case "", "form":
		return csrf.FormPolicy{Field: FormField}, nil
	case "header":
		return csrf.HeaderPolicy{Name: HeaderName}, nil
	case "both":
		return csrf.FormAndHeaderPolicy(HeaderName, FormField), nil
	default:
		return nil, fmt.Errorf("demo: unknown policy %q", name)
	}
}

// NewHandler builds the demo application.
func NewHandler(opts Options) (http.Handler, error) {
	if opts.Policy == nil {
		opts.Policy = csrf.FormPolicy{Field: FormField}
	}
	p, err := csrf.New(csrf.Config{
		Policy:   opts.Policy,
		Storage:  opts.Storage,
		Logger:   opts.Logger,
		Observer: opts.Observer,
	})
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	switch opts.Mode {
	case "", "middleware":
		mux.Handle("GET /form_with_check", formHandler("Form with csrf protection", "/post_with_check", true))
		mux.Handle("POST /post_with_check", helloHandler())
		mux.Handle("GET /form_without_check", formHandler("Form without csrf protection", "/post_without_check", false))
		mux.Handle("POST /post_without_check", p.Exempt(helloHandler()))
		mux.Handle("GET /csrf-token", p.TokenHandler())
		return p.Middleware(mux), nil
	case "manual":
		// both methods need protection so the GET persists the token
		mux.Handle("GET /{$}", p.ProtectFunc(formHandler("Form with csrf protection", "/", true)))
		mux.Handle("POST /{$}", p.ProtectFunc(helloHandler()))
		return mux, nil
	default:
		return nil, fmt.Errorf("demo: unknown mode %q", opts.Mode)
	}
}

func formHandler(title, action string, withToken bool) csrf.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		page := formPage{Title: title, Action: action, Field: FormField}
		if withToken {
			tok, err := csrf.GenerateToken(r)
			if err != nil {
				return err
			}
			page.Token = tok
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		return formTmpl.Execute(w, page)
	}
}

func helloHandler() csrf.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		if err := r.ParseForm(); err != nil {
			return csrf.NewHTTPError(http.StatusBadRequest, "malformed form body")
		}
		name := r.PostForm.Get("name")
		if name == "" {
			return csrf.NewHTTPError(http.StatusUnprocessableEntity, "name is required")
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		return helloTmpl.Execute(w, name)
	}
}
