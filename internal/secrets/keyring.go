package secrets

import (
	"context"
	"errors"

	"github.com/zalando/go-keyring"

	dserrors "github.com/systmms/landdsync/internal/errors"
	"github.com/systmms/landdsync/internal/identity"
)

// KeyringResolver reads secrets from the OS keyring, for workstation runs
// without a managed identity. The token is ignored.
type KeyringResolver struct {
	Service string
}

// Resolve looks up key under the configured keyring service.
func (r KeyringResolver) Resolve(_ context.Context, _ identity.Token, key string) (string, error) {
	value, err := keyring.Get(r.Service, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", dserrors.SecretError{
				Key:        key,
				StatusCode: 404,
				Message:    "not found in keyring service " + r.Service,
			}
		}
		return "", dserrors.SecretError{Key: key, Message: "keyring unavailable", Err: err}
	}
	if value == "" {
		return "", dserrors.SecretError{Key: key, Message: "keyring entry is empty"}
	}
	return value, nil
}

// Store saves a value under key, for seeding a workstation keyring.
func (r KeyringResolver) Store(key, value string) error {
	return keyring.Set(r.Service, key, value)
}
