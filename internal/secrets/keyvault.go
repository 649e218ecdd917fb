package secrets

import (
	"context"
	"errors"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"

	dserrors "github.com/systmms/landdsync/internal/errors"
	"github.com/systmms/landdsync/internal/identity"
)

// KeyVaultClientAPI is the subset of azsecrets.Client used here.
type KeyVaultClientAPI interface {
	GetSecret(ctx context.Context, name string, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error)
}

// ClientFactory builds a Key Vault client authenticated with cred.
type ClientFactory func(cred azcore.TokenCredential) (KeyVaultClientAPI, error)

// KeyVaultResolver reads secrets through the Azure SDK instead of raw REST calls.
type KeyVaultResolver struct {
	vaultURL   string
	apiVersion string
	client     *http.Client
	factory    ClientFactory
}

// KeyVaultOption configures a KeyVaultResolver.
type KeyVaultOption func(*KeyVaultResolver)

// WithClientFactory sets a custom Key Vault client constructor (for testing)
func WithClientFactory(f ClientFactory) KeyVaultOption {
	return func(r *KeyVaultResolver) {
		r.factory = f
	}
}

// NewKeyVaultResolver creates an SDK-backed resolver for vaultURL.
func NewKeyVaultResolver(vaultURL, apiVersion string, client *http.Client, opts ...KeyVaultOption) *KeyVaultResolver {
	r := &KeyVaultResolver{
		vaultURL:   vaultURL,
		apiVersion: apiVersion,
		client:     client,
	}
	r.factory = r.newClient
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *KeyVaultResolver) newClient(cred azcore.TokenCredential) (KeyVaultClientAPI, error) {
	opts := &azsecrets.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			APIVersion: r.apiVersion,
			Retry:      policy.RetryOptions{MaxRetries: -1},
		},
		DisableChallengeResourceVerification: true,
	}
	if r.client != nil {
		opts.ClientOptions.Transport = r.client
	}
	return azsecrets.NewClient(r.vaultURL, cred, opts)
}

// Resolve returns the latest version of the secret named key.
func (r *KeyVaultResolver) Resolve(ctx context.Context, token identity.Token, key string) (string, error) {
	client, err := r.factory(identity.StaticCredential{Token: token})
	if err != nil {
		return "", dserrors.SecretError{Key: key, Message: "cannot create Key Vault client", Err: err}
	}

	resp, err := client.GetSecret(ctx, key, "", nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) {
			return "", dserrors.SecretError{
				Key:        key,
				StatusCode: respErr.StatusCode,
				Message:    respErr.ErrorCode,
			}
		}
		return "", dserrors.TransportError{Op: "GET", URL: r.vaultURL + "/secrets/" + key, Err: err}
	}
	if resp.Value == nil || *resp.Value == "" {
		return "", dserrors.SecretError{Key: key, Message: "secret has no value"}
	}
	return *resp.Value, nil
}
