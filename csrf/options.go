package csrf

import (
	"log/slog"
	"net/http"
)

// Config is the process-wide protection setup. It is read once by New.
type Config struct {
	// Policy extracts and compares the submitted token. Required.
	Policy Policy

	// Storage carries the token between requests. Required.
	Storage Storage

	// ErrorRenderer handles failed checks (default: 403 Forbidden).
	ErrorRenderer ErrorRenderer

	// Logger receives debug records for rejected requests and errors for
	// storage failures (default: discard).
	Logger *slog.Logger

	// Observer receives protocol events (optional).
	Observer Observer
}

// Protector holds the immutable protection setup shared by every request.
type Protector struct {
	policy   Policy
	storage  Storage
	renderer ErrorRenderer
	logger   *slog.Logger
	observer Observer
}

// New validates cfg and returns a Protector.
//
// Params:
// - cfg: policy, storage and optional renderer, logger and observer.
//
// Returns:
// - the Protector, or a *ConfigError naming the invalid field.
func New(cfg Config) (*Protector, error) {
	if isNil(cfg.Policy) {
		return nil, configErr("setup", "policy is required")
	}
	if isNil(cfg.Storage) {
		return nil, configErr("setup", "storage is required")
	}
	if cfg.ErrorRenderer == nil {
		cfg.ErrorRenderer = DefaultErrorRenderer
	}
	if err := validateRenderer("setup", cfg.ErrorRenderer); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if isNil(cfg.Observer) {
		cfg.Observer = nil
	}
	return &Protector{
		policy:   cfg.Policy,
		storage:  cfg.Storage,
		renderer: cfg.ErrorRenderer,
		logger:   cfg.Logger,
		observer: cfg.Observer,
	}, nil
}

// MustNew is like New but panics on error.
func MustNew(cfg Config) *Protector {
	p, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Protector) configured() bool {
	return p != nil && p.policy != nil && p.storage != nil && p.renderer != nil
}

// safeMethods are never checked.
var safeMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodOptions: true,
	http.MethodTrace:   true,
}

// IsSafeMethod reports whether method is exempt from checking.
func IsSafeMethod(method string) bool {
	return safeMethods[method]
}
