// Package redisstore is a server-side session store on Redis. The browser
// only holds an opaque session id; values live in a Redis hash that expires
// with the session.
package redisstore

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/JeanGrijp/go-csrf/v2/csrf"
)

// Options configures a Store.
type Options struct {
	// CookieName carries the session id (default: "session_id").
	CookieName string

	// KeyPrefix is prepended to the session id (default: "session:").
	KeyPrefix string

	// TTL is the lifetime of the hash and the cookie (default: 24h).
	TTL time.Duration

	// Secure marks the id cookie Secure.
	Secure bool
}

// Store implements csrf.SessionStore on a Redis client.
type Store struct {
	client redis.UniversalClient
	opts   Options
}

var _ csrf.SessionStore = (*Store)(nil)

// New returns a Store using client.
func New(client redis.UniversalClient, opts Options) (*Store, error) {
	if client == nil {
		return nil, errors.New("redisstore: client is nil")
	}
	if opts.CookieName == "" {
		opts.CookieName = "session_id"
	}
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = "session:"
	}
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	return &Store{client: client, opts: opts}, nil
}

func (s *Store) key(id string) string {
	return s.opts.KeyPrefix + id
}

// Session loads the session named by the request's id cookie. Requests
// without a valid id, or whose hash expired, get a new empty session.
func (s *Store) Session(r *http.Request) (csrf.Session, error) {
	c, err := r.Cookie(s.opts.CookieName)
	if err != nil || uuid.Validate(c.Value) != nil {
		return s.fresh(), nil
	}

	values, err := s.client.HGetAll(r.Context(), s.key(c.Value)).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: loading session: %w", err)
	}
	if len(values) == 0 {
		return s.fresh(), nil
	}
	return &Session{store: s, id: c.Value, values: values}, nil
}

func (s *Store) fresh() *Session {
	return &Session{store: s, id: uuid.NewString(), values: map[string]string{}, isNew: true}
}

// Session is one Redis-backed session.
type Session struct {
	store  *Store
	id     string
	values map[string]string
	isNew  bool
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// IsNew reports whether the session has not been saved yet.
func (s *Session) IsNew() bool { return s.isNew }

func (s *Session) Value(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

func (s *Session) SetValue(key, value string) {
	s.values[key] = value
}

// Save writes the values and refreshes the expiry in one transaction, then
// sets the id cookie.
func (s *Session) Save(w http.ResponseWriter, r *http.Request) error {
	key := s.store.key(s.id)
	fields := make([]any, 0, 2*len(s.values))
	for k, v := range s.values {
		fields = append(fields, k, v)
	}
	_, err := s.store.client.TxPipelined(r.Context(), func(pipe redis.Pipeliner) error {
		if len(fields) > 0 {
			pipe.HSet(r.Context(), key, fields...)
		}
		pipe.Expire(r.Context(), key, s.store.opts.TTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redisstore: saving session: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.store.opts.CookieName,
		Value:    s.id,
		Path:     "/",
		MaxAge:   int(s.store.opts.TTL.Seconds()),
		Secure:   s.store.opts.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	s.isNew = false
	return nil
}
