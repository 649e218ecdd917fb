package identity_test

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dserrors "github.com/systmms/landdsync/internal/errors"
	"github.com/systmms/landdsync/internal/identity"
	"github.com/systmms/landdsync/tests/fakes"
	"github.com/systmms/landdsync/tests/testutil"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestTokenValidity(t *testing.T) {
	t.Parallel()

	tok := identity.Token{Value: "abc", Domain: identity.DomainDestination, ExpiresOn: epoch}

	assert.True(t, tok.Valid(epoch.Add(-time.Second)))
	assert.False(t, tok.Valid(epoch))
	assert.False(t, identity.Token{ExpiresOn: epoch}.Valid(epoch.Add(-time.Hour)))
	assert.Equal(t, "Bearer abc", tok.Bearer())
	assert.NotContains(t, fmt.Sprint(tok), "abc")
}

func TestTokenCache(t *testing.T) {
	t.Parallel()

	now := epoch
	cache := identity.NewTokenCache(func() time.Time { return now })

	_, ok := cache.Get()
	assert.False(t, ok)

	err := cache.Set(identity.Token{Value: "stale", ExpiresOn: epoch.Add(-time.Minute)})
	assert.ErrorIs(t, err, identity.ErrTokenExpired)

	require.NoError(t, cache.Set(identity.Token{Value: "fresh", ExpiresOn: epoch.Add(time.Minute)}))
	tok, ok := cache.Get()
	require.True(t, ok)
	assert.Equal(t, "fresh", tok.Value)
	assert.Equal(t, time.Minute, cache.TTL())

	now = epoch.Add(58 * time.Second)
	_, ok = cache.Get()
	assert.False(t, ok, "tokens inside the refresh buffer are not handed out")

	cache.Clear()
	assert.Zero(t, cache.TTL())
}

func TestLocalIdentityToken(t *testing.T) {
	t.Parallel()

	msi := fakes.NewMSIServer("msi-token", epoch.Add(time.Hour))
	defer msi.Close()

	local := identity.LocalIdentity{
		Endpoint: msi.Endpoint(),
		Resource: "https://vault.azure.net",
		Client:   msi.Client(),
		Now:      fixedClock(epoch),
	}

	tok, err := local.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "msi-token", tok.Value)
	assert.Equal(t, identity.DomainSecretStore, tok.Domain)
	assert.True(t, tok.ExpiresOn.Equal(epoch.Add(time.Hour)))

	resource, metadata := msi.LastRequest()
	assert.Equal(t, "https://vault.azure.net", resource)
	assert.Equal(t, "true", metadata)
}

func TestLocalIdentityExpiresIn(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"access_token":"t","expires_in":"600"}`)
	}))
	defer srv.Close()

	tok, err := identity.LocalIdentity{Endpoint: srv.URL, Client: srv.Client(), Now: fixedClock(epoch)}.Token(context.Background())
	require.NoError(t, err)
	assert.True(t, tok.ExpiresOn.Equal(epoch.Add(10*time.Minute)))
}

func TestLocalIdentityFailures(t *testing.T) {
	t.Parallel()

	t.Run("non-success status", func(t *testing.T) {
		t.Parallel()
		msi := fakes.NewMSIServer("unused", epoch.Add(time.Hour))
		defer msi.Close()
		msi.FailWith(http.StatusBadRequest)

		_, err := identity.LocalIdentity{Endpoint: msi.Endpoint(), Client: msi.Client()}.Token(context.Background())
		var authErr dserrors.AuthError
		require.True(t, stderrors.As(err, &authErr))
		assert.Equal(t, "local-identity", authErr.Domain)
		assert.Equal(t, http.StatusBadRequest, authErr.StatusCode)
		assert.Equal(t, 1, msi.Requests(), "no retry inside the call")
	})

	t.Run("unreachable", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.NotFoundHandler())
		endpoint := srv.URL
		srv.Close()

		_, err := identity.LocalIdentity{Endpoint: endpoint, Client: &http.Client{Timeout: time.Second}}.Token(context.Background())
		var authErr dserrors.AuthError
		require.True(t, stderrors.As(err, &authErr))
		assert.Zero(t, authErr.StatusCode)
	})

	t.Run("empty token", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"token_type":"Bearer"}`)
		}))
		defer srv.Close()

		_, err := identity.LocalIdentity{Endpoint: srv.URL, Client: srv.Client()}.Token(context.Background())
		var authErr dserrors.AuthError
		require.True(t, stderrors.As(err, &authErr))
		assert.Contains(t, authErr.Message, "access_token")
	})
}

func TestDestinationToken(t *testing.T) {
	t.Parallel()

	cred := &fakes.FakeTokenCredential{Token: "landd-token", ExpiresOn: epoch.Add(time.Hour)}
	factory := &fakes.CredentialFactory{Credential: cred}
	dest := identity.NewDestination(nil, identity.WithCredentialFactory(factory.New))

	tok, err := dest.Token(context.Background(), identity.ClientCredentials{
		AuthorityHost: "https://login.microsoftonline.com",
		Tenant:        "contoso.onmicrosoft.com",
		Resource:      "https://landd.example.com",
		ClientID:      "client-id",
		ClientSecret:  "client-secret",
	})
	require.NoError(t, err)
	assert.Equal(t, "landd-token", tok.Value)
	assert.Equal(t, identity.DomainDestination, tok.Domain)

	calls := factory.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "contoso.onmicrosoft.com", calls[0].Tenant)
	assert.Equal(t, "client-id", calls[0].ClientID)
	assert.Equal(t, "client-secret", calls[0].Secret)
	assert.Equal(t, "https://login.microsoftonline.com/", calls[0].Options.Cloud.ActiveDirectoryAuthorityHost)
	assert.False(t, calls[0].Options.DisableInstanceDiscovery)
	assert.Equal(t, [][]string{{"https://landd.example.com/.default"}}, cred.Scopes())
}

func TestDestinationADFSDisablesInstanceDiscovery(t *testing.T) {
	t.Parallel()

	factory := &fakes.CredentialFactory{Credential: &fakes.FakeTokenCredential{Token: "t", ExpiresOn: epoch.Add(time.Hour)}}
	dest := identity.NewDestination(nil, identity.WithCredentialFactory(factory.New))

	_, err := dest.Token(context.Background(), identity.ClientCredentials{AuthorityHost: "https://adfs.contoso.com/", Tenant: "adfs"})
	require.NoError(t, err)
	require.Len(t, factory.Calls(), 1)
	assert.True(t, factory.Calls()[0].Options.DisableInstanceDiscovery)
	assert.Equal(t, "https://adfs.contoso.com/", factory.Calls()[0].Options.Cloud.ActiveDirectoryAuthorityHost)
}

func TestDestinationFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		factory *fakes.CredentialFactory
	}{
		{"factory error", &fakes.CredentialFactory{Err: fmt.Errorf("invalid tenant")}},
		{"token error", &fakes.CredentialFactory{Credential: &fakes.FakeTokenCredential{Err: fmt.Errorf("AADSTS7000215: invalid_client")}}},
		{"empty token", &fakes.CredentialFactory{Credential: &fakes.FakeTokenCredential{ExpiresOn: epoch.Add(time.Hour)}}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dest := identity.NewDestination(nil, identity.WithCredentialFactory(tt.factory.New))
			_, err := dest.Token(context.Background(), identity.ClientCredentials{Tenant: "t", Resource: "https://r"})

			var authErr dserrors.AuthError
			require.True(t, stderrors.As(err, &authErr))
			assert.Equal(t, "destination", authErr.Domain)
		})
	}
}

func TestScope(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://landd.example.com/.default", identity.Scope("https://landd.example.com"))
	assert.Equal(t, "https://landd.example.com/.default", identity.Scope("https://landd.example.com/"))
	assert.Equal(t, "api://x/.default", identity.Scope("api://x/.default"))
}

func policyOptions() policy.TokenRequestOptions {
	return policy.TokenRequestOptions{Scopes: []string{"https://vault.azure.net/.default"}}
}

func TestStaticCredential(t *testing.T) {
	t.Parallel()

	cred := identity.StaticCredential{
		Token: identity.Token{Value: "v", ExpiresOn: epoch.Add(time.Minute)},
		Now:   fixedClock(epoch),
	}
	at, err := cred.GetToken(context.Background(), policyOptions())
	require.NoError(t, err)
	assert.Equal(t, "v", at.Token)

	cred.Now = fixedClock(epoch.Add(time.Hour))
	_, err = cred.GetToken(context.Background(), policyOptions())
	assert.ErrorIs(t, err, identity.ErrTokenExpired)
}

type countingLocal struct {
	calls int
	tok   identity.Token
}

func (c *countingLocal) Token(context.Context) (identity.Token, error) {
	c.calls++
	return c.tok, nil
}

type countingDestination struct {
	calls int
	tok   identity.Token
}

func (c *countingDestination) Token(context.Context, identity.ClientCredentials) (identity.Token, error) {
	c.calls++
	return c.tok, nil
}

func TestProviderCachesUntilExpiry(t *testing.T) {
	t.Parallel()

	now := epoch
	local := &countingLocal{tok: identity.Token{Value: "kv", Domain: identity.DomainSecretStore, ExpiresOn: epoch.Add(time.Minute)}}
	dest := &countingDestination{tok: identity.Token{Value: "ld", Domain: identity.DomainDestination, ExpiresOn: epoch.Add(time.Hour)}}
	logger := testutil.NewTestLogger(t)
	p := identity.NewProvider(local, dest, logger, func() time.Time { return now })

	for i := 0; i < 3; i++ {
		_, err := p.SecretStoreToken(context.Background())
		require.NoError(t, err)
		_, err = p.DestinationToken(context.Background(), identity.ClientCredentials{})
		require.NoError(t, err)
	}
	assert.Equal(t, 1, local.calls)
	assert.Equal(t, 1, dest.calls)

	now = epoch.Add(2 * time.Minute)
	local.tok.ExpiresOn = now.Add(time.Minute)
	_, err := p.SecretStoreToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, local.calls, "expired token is re-acquired")
	logger.AssertNotContains(t, "kv")
}

func TestProviderCloseForgetsTokens(t *testing.T) {
	t.Parallel()

	local := &countingLocal{tok: identity.Token{Value: "kv", Domain: identity.DomainSecretStore, ExpiresOn: epoch.Add(time.Hour)}}
	dest := &countingDestination{tok: identity.Token{Value: "ld", Domain: identity.DomainDestination, ExpiresOn: epoch.Add(30 * time.Minute)}}
	logger := testutil.NewTestLoggerWithDebug(t, true)
	p := identity.NewProvider(local, dest, logger, fixedClock(epoch))

	_, err := p.SecretStoreToken(context.Background())
	require.NoError(t, err)
	_, err = p.DestinationToken(context.Background(), identity.ClientCredentials{})
	require.NoError(t, err)
	logger.AssertContains(t, "Secret store token valid for 1h0m0s")
	logger.AssertContains(t, "L&D token valid for 30m0s")

	p.Close()
	_, err = p.SecretStoreToken(context.Background())
	require.NoError(t, err)
	_, err = p.DestinationToken(context.Background(), identity.ClientCredentials{})
	require.NoError(t, err)
	assert.Equal(t, 2, local.calls)
	assert.Equal(t, 2, dest.calls)
}

func TestProviderRefusesExpiredIssue(t *testing.T) {
	t.Parallel()

	local := &countingLocal{tok: identity.Token{Value: "kv", ExpiresOn: epoch.Add(-time.Second)}}
	p := identity.NewProvider(local, &countingDestination{}, testutil.NewTestLogger(t), fixedClock(epoch))

	_, err := p.SecretStoreToken(context.Background())
	var authErr dserrors.AuthError
	require.True(t, stderrors.As(err, &authErr))
	assert.ErrorIs(t, err, identity.ErrTokenExpired)
}
