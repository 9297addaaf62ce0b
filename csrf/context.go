package csrf

import (
	"context"
	"mime/multipart"
	"net/http"
)

type ctxKey string

const scopeKey ctxKey = "csrf_scope_ctx"

type phase int

const (
	phaseUnchecked phase = iota
	phaseExempt
	phasePassed
	phaseRejected
)

func (p phase) String() string {
	switch p {
	case phaseExempt:
		return "exempt"
	case phasePassed:
		return "passed"
	case phaseRejected:
		return "rejected"
	default:
		return "unchecked"
	}
}

// scope is the per-request scratch space. It lives exactly as long as the
// request and is never shared with another request.
type scope struct {
	p *Protector

	phase phase

	newToken  string
	generated bool
	saved     bool

	session Session

	// multipart forms parsed by a policy, released with the scope
	forms []*multipart.Form
}

// contextWithScope returns a derived context that stores sc.
func contextWithScope(ctx context.Context, sc *scope) context.Context {
	return context.WithValue(ctx, scopeKey, sc)
}

// scopeFromContext extracts the request scope from ctx, if present.
func scopeFromContext(ctx context.Context) (*scope, bool) {
	sc, ok := ctx.Value(scopeKey).(*scope)
	return sc, ok && sc != nil
}

func scopeOf(r *http.Request) (*scope, error) {
	if r == nil {
		return nil, ErrNoRequestScope
	}
	sc, ok := scopeFromContext(r.Context())
	if !ok {
		return nil, ErrNoRequestScope
	}
	return sc, nil
}

// TokenFromContext returns the new token generated for the request owning
// ctx, if one has been generated yet.
func TokenFromContext(ctx context.Context) (string, bool) {
	sc, ok := scopeFromContext(ctx)
	if !ok || !sc.generated {
		return "", false
	}
	return sc.newToken, true
}
