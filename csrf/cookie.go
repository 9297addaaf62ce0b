package csrf

import "net/http"

// CookieOptions configures the cookie carrying the token.
type CookieOptions struct {
	Name     string
	Path     string
	Domain   string
	Secure   bool
	HTTPOnly bool
	SameSite http.SameSite
	MaxAge   int // in seconds
}

func (o CookieOptions) withDefaults() CookieOptions {
	if o.Name == "" {
		o.Name = "csrf_token"
	}
	if o.Path == "" {
		o.Path = "/"
	}
	// Lax unless set
	if o.SameSite == 0 {
		o.SameSite = http.SameSiteLaxMode
	}
	return o
}

// CookieBackend keeps the token in a named cookie.
type CookieBackend struct {
	opts CookieOptions
}

// NewCookieBackend returns a CookieBackend; zero fields of opts take defaults.
func NewCookieBackend(opts CookieOptions) *CookieBackend {
	return &CookieBackend{opts: opts.withDefaults()}
}

// Name returns the cookie name.
func (b *CookieBackend) Name() string { return b.opts.Name }

func (b *CookieBackend) Read(r *http.Request) (string, error) {
	c, err := r.Cookie(b.opts.Name)
	if err != nil {
		return "", nil
	}
	return c.Value, nil
}

func (b *CookieBackend) Write(w http.ResponseWriter, _ *http.Request, token string) error {
	http.SetCookie(w, &http.Cookie{
		Name:     b.opts.Name,
		Value:    token,
		Path:     b.opts.Path,
		Domain:   b.opts.Domain,
		MaxAge:   b.opts.MaxAge,
		SameSite: b.opts.SameSite,
		Secure:   b.opts.Secure,
		HttpOnly: b.opts.HTTPOnly,
	})
	return nil
}

// NewCookieStorage returns cookie-backed Storage.
func NewCookieStorage(opts CookieOptions, gen TokenGenerator) (*TokenStorage, error) {
	return NewStorage(NewCookieBackend(opts), gen)
}
