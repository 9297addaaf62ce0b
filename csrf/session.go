package csrf

import (
	"fmt"
	"net/http"
)

// Session is a mutable mapping owned by an external session subsystem.
type Session interface {
	Value(key string) (string, bool)
	SetValue(key, value string)
}

// SessionSaver is implemented by sessions that must be flushed onto the
// response, such as cookie-encoded sessions. Save is called after the token
// is written and before the response headers are sent.
type SessionSaver interface {
	Save(w http.ResponseWriter, r *http.Request) error
}

// SessionStore returns the session associated with a request.
type SessionStore interface {
	Session(r *http.Request) (Session, error)
}

// SessionBackend keeps the token under a key of the request's session. The
// session is loaded at most once per request.
type SessionBackend struct {
	store SessionStore
	key   string
}

// NewSessionBackend returns a SessionBackend storing the token under key.
func NewSessionBackend(store SessionStore, key string) (*SessionBackend, error) {
	if isNil(store) {
		return nil, configErr("session storage", "session store is nil")
	}
	if key == "" {
		key = "csrf_token"
	}
	return &SessionBackend{store: store, key: key}, nil
}

func (b *SessionBackend) session(r *http.Request) (Session, error) {
	sc, err := scopeOf(r)
	if err != nil {
		return nil, err
	}
	if sc.session != nil {
		return sc.session, nil
	}
	sess, err := b.store.Session(r)
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	sc.session = sess
	return sess, nil
}

func (b *SessionBackend) Read(r *http.Request) (string, error) {
	sess, err := b.session(r)
	if err != nil {
		return "", err
	}
	tok, _ := sess.Value(b.key)
	return tok, nil
}

func (b *SessionBackend) Write(w http.ResponseWriter, r *http.Request, token string) error {
	sess, err := b.session(r)
	if err != nil {
		return err
	}
	sess.SetValue(b.key, token)
	if saver, ok := sess.(SessionSaver); ok {
		if err := saver.Save(w, r); err != nil {
			return fmt.Errorf("saving session: %w", err)
		}
	}
	return nil
}

// NewSessionStorage returns session-backed Storage.
func NewSessionStorage(store SessionStore, key string, gen TokenGenerator) (*TokenStorage, error) {
	b, err := NewSessionBackend(store, key)
	if err != nil {
		return nil, err
	}
	return NewStorage(b, gen)
}
