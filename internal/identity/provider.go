package identity

import (
	"context"
	"time"

	dserrors "github.com/systmms/landdsync/internal/errors"
	"github.com/systmms/landdsync/internal/logging"
)

// LocalTokenSource issues secret store tokens without credentials.
type LocalTokenSource interface {
	Token(ctx context.Context) (Token, error)
}

// DestinationTokenSource exchanges client credentials for a destination token.
type DestinationTokenSource interface {
	Token(ctx context.Context, creds ClientCredentials) (Token, error)
}

// Provider hands out tokens for one attempt, re-acquiring any that expired.
// Build a new Provider per attempt so no token outlives it.
type Provider struct {
	local       LocalTokenSource
	destination DestinationTokenSource
	logger      logging.Printer
	secretStore *TokenCache
	dest        *TokenCache
}

// NewProvider creates a per-attempt provider.
func NewProvider(local LocalTokenSource, destination DestinationTokenSource, logger logging.Printer, now func() time.Time) *Provider {
	return &Provider{
		local:       local,
		destination: destination,
		logger:      logger,
		secretStore: NewTokenCache(now),
		dest:        NewTokenCache(now),
	}
}

// SecretStoreToken returns a valid token for the secret store.
func (p *Provider) SecretStoreToken(ctx context.Context) (Token, error) {
	if tok, ok := p.secretStore.Get(); ok {
		return tok, nil
	}
	tok, err := p.local.Token(ctx)
	if err != nil {
		return Token{}, err
	}
	if err := p.secretStore.Set(tok); err != nil {
		return Token{}, dserrors.AuthError{Domain: string(DomainLocalIdentity), Message: "issued token is already expired", Err: err}
	}
	p.logger.Info("Got access token using managed identity")
	p.logger.Debug("Secret store token valid for %s", p.secretStore.TTL().Round(time.Second))
	return tok, nil
}

// DestinationToken returns a valid token for the destination service.
func (p *Provider) DestinationToken(ctx context.Context, creds ClientCredentials) (Token, error) {
	if tok, ok := p.dest.Get(); ok {
		return tok, nil
	}
	tok, err := p.destination.Token(ctx, creds)
	if err != nil {
		return Token{}, err
	}
	if err := p.dest.Set(tok); err != nil {
		return Token{}, dserrors.AuthError{Domain: string(DomainDestination), Message: "issued token is already expired", Err: err}
	}
	p.logger.Info("Got access token for the L&D API")
	p.logger.Debug("L&D token valid for %s", p.dest.TTL().Round(time.Second))
	return tok, nil
}

// Close drops both cached tokens. A provider lives for one attempt.
func (p *Provider) Close() {
	p.secretStore.Clear()
	p.dest.Clear()
}
