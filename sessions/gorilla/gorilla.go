// Package gorilla stores csrf tokens in gorilla/sessions sessions.
//
//	store := sessions.NewCookieStore(authKey)
//	storage, err := csrf.NewSessionStorage(gorilla.New(store, "app"), "", nil)
package gorilla

import (
	"errors"
	"net/http"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"

	"github.com/JeanGrijp/go-csrf/v2/csrf"
)

// Store adapts a sessions.Store to csrf.SessionStore.
type Store struct {
	store sessions.Store
	name  string
}

var _ csrf.SessionStore = (*Store)(nil)

// New returns a Store reading the session called name from store.
func New(store sessions.Store, name string) *Store {
	return &Store{store: store, name: name}
}

// Session returns the request's session. A session cookie that fails to
// decode yields a fresh session; other store errors are returned.
func (s *Store) Session(r *http.Request) (csrf.Session, error) {
	sess, err := s.store.Get(r, s.name)
	if err != nil {
		var scErr securecookie.Error
		if sess == nil || !errors.As(err, &scErr) || !scErr.IsDecode() {
			return nil, err
		}
	}
	return &session{sess: sess}, nil
}

type session struct {
	sess *sessions.Session
}

func (s *session) Value(key string) (string, bool) {
	v, ok := s.sess.Values[key].(string)
	return v, ok
}

func (s *session) SetValue(key, value string) {
	s.sess.Values[key] = value
}

func (s *session) Save(w http.ResponseWriter, r *http.Request) error {
	return s.sess.Save(r, w)
}
