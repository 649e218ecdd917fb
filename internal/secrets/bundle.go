package secrets

import (
	"context"
	"fmt"
	"sort"

	"github.com/systmms/landdsync/internal/config"
	dserrors "github.com/systmms/landdsync/internal/errors"
	"github.com/systmms/landdsync/internal/identity"
	"github.com/systmms/landdsync/internal/logging"
	"github.com/systmms/landdsync/internal/secure"
)

// Bundle maps logical secret names to sealed values for one attempt.
type Bundle struct {
	values map[string]*secure.SecureBuffer
}

// NewBundle creates an empty bundle.
func NewBundle() *Bundle {
	return &Bundle{values: make(map[string]*secure.SecureBuffer)}
}

// Put seals value under name, replacing any previous value.
func (b *Bundle) Put(name, value string) error {
	buf, err := secure.NewSecureBuffer([]byte(value))
	if err != nil {
		return dserrors.SecretError{Key: name, Message: "cannot seal value", Err: err}
	}
	if old, ok := b.values[name]; ok {
		old.Destroy()
	}
	b.values[name] = buf
	return nil
}

// Get returns the plaintext for name.
func (b *Bundle) Get(name string) (string, error) {
	buf, ok := b.values[name]
	if !ok {
		return "", dserrors.SecretError{Key: name, Message: "not present in secret bundle"}
	}
	var value string
	err := buf.Use(func(plain []byte) error {
		value = string(plain)
		return nil
	})
	if err != nil {
		return "", dserrors.SecretError{Key: name, Message: "cannot open sealed value", Err: err}
	}
	return value, nil
}

// Require fails with a SecretError naming the first missing logical name.
func (b *Bundle) Require(names ...string) error {
	for _, name := range names {
		if _, ok := b.values[name]; !ok {
			return dserrors.SecretError{Key: name, Message: "required secret was not resolved"}
		}
	}
	return nil
}

// Names lists the logical names in the bundle, sorted.
func (b *Bundle) Names() []string {
	names := make([]string, 0, len(b.values))
	for name := range b.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Destroy drops every sealed value.
func (b *Bundle) Destroy() {
	for name, buf := range b.values {
		buf.Destroy()
		delete(b.values, name)
	}
}

// ResolveBundle resolves every binding in order and checks that all required
// names are present. Nothing is returned on failure.
func ResolveBundle(ctx context.Context, r Resolver, token identity.Token, bindings []config.SecretBinding, required []string, logger logging.Printer) (*Bundle, error) {
	bundle := NewBundle()
	for _, binding := range bindings {
		value, err := r.Resolve(ctx, token, binding.Key)
		if err != nil {
			bundle.Destroy()
			logger.Error("Cannot read secret %s from the secret store", binding.Key)
			return nil, fmt.Errorf("resolve %s: %w", binding.Name, err)
		}
		if err := bundle.Put(binding.Name, value); err != nil {
			bundle.Destroy()
			return nil, err
		}
		logger.Info("Got secret %s from the secret store", binding.Key)
	}
	if err := bundle.Require(required...); err != nil {
		bundle.Destroy()
		return nil, err
	}
	return bundle, nil
}
