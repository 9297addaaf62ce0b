package csrf

import (
	"fmt"
	"net/http"
	"reflect"
)

// Storage decides where a token lives across one request/response pair.
//
// An empty token means "no token".
type Storage interface {
	// Existing reads the token currently carried by the request. It never
	// mutates state.
	Existing(r *http.Request) (string, error)

	// NewToken returns the token generated for this request, generating it
	// on first use. Repeated calls within one request return the same value.
	NewToken(r *http.Request) (string, error)

	// Get returns the existing token and provisions a new one for the
	// response.
	Get(r *http.Request) (string, error)

	// Save persists a token onto the response when one is due.
	Save(w http.ResponseWriter, r *http.Request) error
}

// Backend is the carrier a TokenStorage reads from and writes to.
type Backend interface {
	Read(r *http.Request) (string, error)
	Write(w http.ResponseWriter, r *http.Request, token string) error
}

// TokenStorage implements the Storage protocol on top of a Backend. It is
// stateless; per-request state lives in the request scope.
type TokenStorage struct {
	backend Backend
	gen     TokenGenerator
}

var _ Storage = (*TokenStorage)(nil)

// NewStorage returns a TokenStorage over backend. A nil gen selects
// RandomGenerator.
func NewStorage(backend Backend, gen TokenGenerator) (*TokenStorage, error) {
	if isNil(backend) {
		return nil, configErr("storage", "backend is nil")
	}
	if gen == nil {
		gen = RandomGenerator{}
	} else if isNil(gen) {
		return nil, configErr("storage", "token generator %T is a nil value", gen)
	}
	return &TokenStorage{backend: backend, gen: gen}, nil
}

func (s *TokenStorage) Existing(r *http.Request) (string, error) {
	tok, err := s.backend.Read(r)
	if err != nil {
		return "", fmt.Errorf("csrf: reading token: %w", err)
	}
	return tok, nil
}

func (s *TokenStorage) NewToken(r *http.Request) (string, error) {
	sc, err := scopeOf(r)
	if err != nil {
		return "", err
	}
	if sc.generated {
		return sc.newToken, nil
	}
	sc.newToken = s.gen.Generate()
	sc.generated = true
	sc.p.observe(r, EventTokenGenerated)
	return sc.newToken, nil
}

func (s *TokenStorage) Get(r *http.Request) (string, error) {
	tok, err := s.Existing(r)
	if err != nil {
		return "", err
	}
	if _, err := s.NewToken(r); err != nil {
		return "", err
	}
	return tok, nil
}

// Save persists, in order of precedence: the token generated during this
// request; a fresh token when the request carried none; nothing otherwise.
// A token that was never read is not rotated.
func (s *TokenStorage) Save(w http.ResponseWriter, r *http.Request) error {
	sc, err := scopeOf(r)
	if err != nil {
		return err
	}
	if sc.saved {
		return nil
	}

	token := sc.newToken
	if !sc.generated {
		existing, err := s.Existing(r)
		if err != nil {
			return err
		}
		if existing != "" {
			return nil
		}
		if token, err = s.NewToken(r); err != nil {
			return err
		}
	}

	if err := s.backend.Write(w, r, token); err != nil {
		return fmt.Errorf("csrf: persisting token: %w", err)
	}
	sc.saved = true
	sc.p.observe(r, EventTokenSaved)
	return nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Func, reflect.Map, reflect.Interface, reflect.Slice, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
