package identity

import (
	"context"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
)

// StaticCredential presents an already acquired token to Azure SDK clients.
type StaticCredential struct {
	Token Token
	Now   func() time.Time
}

// GetToken implements azcore.TokenCredential.
func (c StaticCredential) GetToken(_ context.Context, _ policy.TokenRequestOptions) (azcore.AccessToken, error) {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	if !c.Token.Valid(now()) {
		return azcore.AccessToken{}, ErrTokenExpired
	}
	return azcore.AccessToken{Token: c.Token.Value, ExpiresOn: c.Token.ExpiresOn}, nil
}

var _ azcore.TokenCredential = StaticCredential{}
