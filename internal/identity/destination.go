package identity

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/cloud"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"

	dserrors "github.com/systmms/landdsync/internal/errors"
)

// ClientCredentials identifies the destination application and its authority.
type ClientCredentials struct {
	AuthorityHost string
	Tenant        string
	Resource      string
	ClientID      string
	ClientSecret  string
}

// CredentialFactory builds the token credential for a client-credentials grant.
type CredentialFactory func(tenant, clientID, secret string, opts *azidentity.ClientSecretCredentialOptions) (azcore.TokenCredential, error)

func newClientSecretCredential(tenant, clientID, secret string, opts *azidentity.ClientSecretCredentialOptions) (azcore.TokenCredential, error) {
	return azidentity.NewClientSecretCredential(tenant, clientID, secret, opts)
}

// Destination exchanges client credentials for a destination access token.
type Destination struct {
	client  *http.Client
	factory CredentialFactory
}

// DestinationOption configures a Destination.
type DestinationOption func(*Destination)

// WithCredentialFactory replaces the azidentity credential constructor.
func WithCredentialFactory(f CredentialFactory) DestinationOption {
	return func(d *Destination) {
		d.factory = f
	}
}

// NewDestination creates a destination token source sending requests through client.
func NewDestination(client *http.Client, opts ...DestinationOption) *Destination {
	d := &Destination{
		client:  client,
		factory: newClientSecretCredential,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Token performs one client-credentials exchange.
func (d *Destination) Token(ctx context.Context, creds ClientCredentials) (Token, error) {
	opts := &azidentity.ClientSecretCredentialOptions{
		ClientOptions: azcore.ClientOptions{
			Cloud: cloud.Configuration{
				ActiveDirectoryAuthorityHost: strings.TrimSuffix(creds.AuthorityHost, "/") + "/",
			},
			Retry: policy.RetryOptions{MaxRetries: -1},
		},
		// ADFS authorities cannot be validated through instance discovery.
		DisableInstanceDiscovery: strings.EqualFold(creds.Tenant, "adfs"),
	}
	if d.client != nil {
		opts.ClientOptions.Transport = d.client
	}

	cred, err := d.factory(creds.Tenant, creds.ClientID, creds.ClientSecret, opts)
	if err != nil {
		return Token{}, dserrors.AuthError{
			Domain:  string(DomainDestination),
			Message: "cannot build client credential",
			Err:     err,
		}
	}

	at, err := cred.GetToken(ctx, policy.TokenRequestOptions{
		Scopes: []string{Scope(creds.Resource)},
	})
	if err != nil {
		return Token{}, dserrors.AuthError{Domain: string(DomainDestination), Err: err}
	}
	if at.Token == "" {
		return Token{}, dserrors.AuthError{
			Domain:  string(DomainDestination),
			Message: fmt.Sprintf("authority %s returned an empty access token", creds.AuthorityHost),
		}
	}

	return Token{
		Value:     at.Token,
		Domain:    DomainDestination,
		ExpiresOn: at.ExpiresOn,
	}, nil
}

// Scope turns a resource URI into the v2 scope requested for it.
func Scope(resource string) string {
	if strings.HasSuffix(resource, "/.default") {
		return resource
	}
	return strings.TrimSuffix(resource, "/") + "/.default"
}
