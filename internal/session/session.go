// Package session supplies the token that authenticates requests to the
// catalog and analysis services.
package session

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/Hansil-Chapadiya/problems-analyzer/internal/config"
)

// EnvToken is the environment variable that overrides the stored token.
const EnvToken = "PROBLEMS_TOKEN"

// Provider returns the current session token, or "" when there is none.
type Provider interface {
	CurrentToken() string
}

// Static always returns the same token.
type Static string

func (s Static) CurrentToken() string { return string(s) }

// Env reads the token from an environment variable on every call.
type Env string

func (e Env) CurrentToken() string { return strings.TrimSpace(os.Getenv(string(e))) }

// Chain returns the first non-empty token from its providers.
type Chain []Provider

func (c Chain) CurrentToken() string {
	for _, p := range c {
		if p == nil {
			continue
		}
		if tok := p.CurrentToken(); tok != "" {
			return tok
		}
	}
	return ""
}

// Store keeps the token in the platform secret store.
type Store struct {
	kc config.Keychain
}

// NewStore returns a Store backed by kc. A nil kc selects the platform
// keychain.
func NewStore(kc config.Keychain) *Store {
	if kc == nil {
		kc = config.PlatformKeychain()
	}
	return &Store{kc: kc}
}

// CurrentToken returns the stored token. Lookup failures read as absent.
func (s *Store) CurrentToken() string {
	tok, err := s.kc.Get(config.KeychainService, config.AccountToken)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(tok)
}

// Save stores token, replacing any previous one.
func (s *Store) Save(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("session: empty token")
	}
	if err := s.kc.Set(config.KeychainService, config.AccountToken, token); err != nil {
		return fmt.Errorf("saving token: %w", err)
	}
	return nil
}

// Clear removes the stored token.
func (s *Store) Clear() error {
	if err := s.kc.Delete(config.KeychainService, config.AccountToken); err != nil {
		return fmt.Errorf("clearing token: %w", err)
	}
	return nil
}

// Default is the provider used by the CLI: PROBLEMS_TOKEN first, then the
// secret store.
func Default(store *Store) Provider {
	if store == nil {
		return Env(EnvToken)
	}
	return Chain{Env(EnvToken), store}
}

type ctxKey struct{}

// WithToken returns a context carrying a request-scoped token.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, ctxKey{}, token)
}

// TokenFrom returns the request-scoped token in ctx, falling back to p.
func TokenFrom(ctx context.Context, p Provider) string {
	if tok, ok := ctx.Value(ctxKey{}).(string); ok && tok != "" {
		return tok
	}
	if p == nil {
		return ""
	}
	return p.CurrentToken()
}

// Mask shortens a token for display.
func Mask(token string) string {
	if len(token) <= 8 {
		return strings.Repeat("*", len(token))
	}
	return token[:4] + strings.Repeat("*", len(token)-8) + token[len(token)-4:]
}
