package fakes

import (
	"context"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
)

// FakeTokenCredential is an azcore.TokenCredential returning a fixed token.
type FakeTokenCredential struct {
	Token     string
	ExpiresOn time.Time
	Err       error

	mu     sync.Mutex
	calls  int
	scopes [][]string
}

// GetToken implements azcore.TokenCredential.
func (f *FakeTokenCredential) GetToken(_ context.Context, opts policy.TokenRequestOptions) (azcore.AccessToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.scopes = append(f.scopes, opts.Scopes)
	if f.Err != nil {
		return azcore.AccessToken{}, f.Err
	}
	return azcore.AccessToken{Token: f.Token, ExpiresOn: f.ExpiresOn}, nil
}

// Calls returns the number of GetToken calls.
func (f *FakeTokenCredential) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Scopes returns the scopes of every GetToken call.
func (f *FakeTokenCredential) Scopes() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.scopes...)
}

// CredentialCall captures the arguments of one credential construction.
type CredentialCall struct {
	Tenant   string
	ClientID string
	Secret   string
	Options  *azidentity.ClientSecretCredentialOptions
}

// CredentialFactory records every construction and hands back Credential.
type CredentialFactory struct {
	Credential *FakeTokenCredential
	Err        error

	mu    sync.Mutex
	calls []CredentialCall
}

// New matches the identity.CredentialFactory signature.
func (f *CredentialFactory) New(tenant, clientID, secret string, opts *azidentity.ClientSecretCredentialOptions) (azcore.TokenCredential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, CredentialCall{Tenant: tenant, ClientID: clientID, Secret: secret, Options: opts})
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Credential, nil
}

// Calls returns every recorded construction.
func (f *CredentialFactory) Calls() []CredentialCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]CredentialCall(nil), f.calls...)
}
