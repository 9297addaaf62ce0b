package demo

import (
	"fmt"

	"github.com/gorilla/sessions"
	"github.com/redis/go-redis/v9"

	"github.com/JeanGrijp/go-csrf/v2/csrf"
	"github.com/JeanGrijp/go-csrf/v2/internal/config"
	"github.com/JeanGrijp/go-csrf/v2/sessions/gorilla"
	"github.com/JeanGrijp/go-csrf/v2/sessions/redisstore"
)

// sessionName names the gorilla session holding the token.
const sessionName = "csrf_demo"

// NewStorage builds the token storage selected by cfg. The returned func
// releases the resources the storage holds.
func NewStorage(cfg *config.Config) (csrf.Storage, func() error, error) {
	noop := func() error { return nil }

	var gen csrf.TokenGenerator
	if cfg.TokenSecret != "" {
		hg, err := csrf.NewHashedGenerator(cfg.TokenSecret)
		if err != nil {
			return nil, nil, err
		}
		gen = hg
	}

	switch cfg.Storage {
	case "cookie":
		s, err := csrf.NewCookieStorage(csrf.CookieOptions{
			Name:   CookieName,
			Secure: cfg.CookieSecure,
			MaxAge: int(cfg.CookieMaxAge.Seconds()),
		}, gen)
		if err != nil {
			return nil, nil, err
		}
		return s, noop, nil

	case "session":
		store := sessions.NewCookieStore([]byte(cfg.SessionKey))
		store.Options.Secure = cfg.CookieSecure
		store.Options.HttpOnly = true
		s, err := csrf.NewSessionStorage(gorilla.New(store, sessionName), "", gen)
		if err != nil {
			return nil, nil, err
		}
		return s, noop, nil

	case "redis":
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parsing REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		store, err := redisstore.New(client, redisstore.Options{Secure: cfg.CookieSecure})
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		s, err := csrf.NewSessionStorage(store, "", gen)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return s, client.Close, nil

	default:
		return nil, nil, fmt.Errorf("demo: unknown storage %q", cfg.Storage)
	}
}
