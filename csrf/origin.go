package csrf

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
)

// OriginPolicy rejects cross-site requests by Origin/Referer before handing
// the request to the token policy in Next.
type OriginPolicy struct {
	// AllowedHost is the host (domain[:port]) considered same-site. When
	// empty, the request host is used.
	AllowedHost string

	Next Policy
}

func (p OriginPolicy) Check(r *http.Request, expected string) (bool, error) {
	if err := validateOriginOrReferer(r, p.AllowedHost); err != nil {
		return false, nil
	}
	if p.Next == nil {
		return false, configErr("origin policy", "no token policy")
	}
	return p.Next.Check(r, expected)
}

// validateOriginOrReferer reports why r is not same-site with allowed, or
// r.Host when allowed is empty. A present Origin decides alone; Referer is
// only consulted without one. A request carrying neither fails.
func validateOriginOrReferer(r *http.Request, allowed string) error {
	host := allowed
	if host == "" {
		host = r.Host
	}

	origin := r.Header.Get("Origin")
	ref := r.Header.Get("Referer")

	switch {
	case origin == "" && ref == "":
		return errors.New("no origin/referer")
	case origin != "":
		if !sameSite(origin, host) {
			return errors.New("bad origin")
		}
	case !sameSite(ref, host):
		return errors.New("bad referer")
	}
	return nil
}

// sameSite compares only the host part (port included) of originOrRef.
func sameSite(originOrRef, allowedHost string) bool {
	u, err := url.Parse(originOrRef)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, allowedHost)
}
