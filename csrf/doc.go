// Package csrf provides CSRF protection for Go net/http servers.
//
// # How it works
//
//   - A Storage keeps one token per client, in a cookie (NewCookieStorage) or
//     in the client's session (NewSessionStorage).
//   - Safe methods (GET, HEAD, OPTIONS, TRACE) are never checked.
//   - Other methods must submit the stored token where the Policy looks for
//     it: a header (HeaderPolicy), a form field (FormPolicy), or either
//     (FormAndHeaderPolicy). A failed check is handed to the ErrorRenderer
//     (403 Forbidden by default) and the handler is not called.
//   - Reading the stored token provisions a replacement, which is persisted
//     on the response. A token that was checked is therefore never accepted
//     twice, while a token nobody read is left in place.
//
// # Configuration
//
// All behavior is driven by Config:
//   - Policy and Storage (required)
//   - ErrorRenderer: an *HTTPError to abort with, or a RendererFunc writing an
//     alternate response
//   - Logger (*slog.Logger) and Observer (protocol events, see csrfprom)
//
// # Typical usage
//
//	storage, _ := csrf.NewCookieStorage(csrf.CookieOptions{Secure: true}, nil)
//	p, err := csrf.New(csrf.Config{
//	    Policy:  csrf.FormAndHeaderPolicy("X-CSRF-Token", "csrf_token"),
//	    Storage: storage,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	mux := http.NewServeMux()
//	mux.HandleFunc("GET /form", renderForm)
//	mux.Handle("POST /webhook", p.Exempt(http.HandlerFunc(webhook)))
//	http.ListenAndServe(":8080", p.Middleware(mux))
//
// Protection can also be opt-in per handler with p.Protect, or with
// p.ProtectWith to override the error renderer for one handler.
//
// In handlers, issue the token for forms or APIs:
//
//	tok, err := csrf.GenerateToken(r)
//
// For SPAs, expose a small endpoint that returns a fresh token:
//
//	mux.Handle("GET /csrf-token", p.TokenHandler())
//
// # Adapters
//
// Routers and frameworks that are not plain net/http build on Scope, Begin,
// RenderError and Persist; see csrfgin and csrfecho. Middleware only sees
// Exempt decorations behind a Router such as *http.ServeMux; csrfmux and
// csrfchi resolve them for gorilla/mux and chi.
package csrf
