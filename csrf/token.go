package csrf

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
)

// TokenGenerator produces unguessable opaque tokens. Generate must be safe
// for concurrent use.
type TokenGenerator interface {
	Generate() string
}

// GeneratorFunc adapts a plain function to TokenGenerator.
type GeneratorFunc func() string

func (f GeneratorFunc) Generate() string { return f() }

// RandomGenerator returns a random 128-bit identifier as 32 hex characters.
type RandomGenerator struct{}

func (RandomGenerator) Generate() string {
	return randomHex()
}

// HashedGenerator hashes a fresh random identifier together with a server
// secret. Only the digest leaves the server.
type HashedGenerator struct {
	secret string
}

// NewHashedGenerator returns a HashedGenerator keyed by secret.
//
// Params:
// - secret: server-side secret mixed into every token; must not be empty.
//
// Returns:
// - the generator, or a *ConfigError when secret is empty.
func NewHashedGenerator(secret string) (*HashedGenerator, error) {
	if secret == "" {
		return nil, configErr("hashed generator", "empty secret")
	}
	return &HashedGenerator{secret: secret}, nil
}

func (g *HashedGenerator) Generate() string {
	sum := sha256.Sum256([]byte(randomHex() + g.secret))
	return hex.EncodeToString(sum[:])
}

func randomHex() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}
