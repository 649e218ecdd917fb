// Package secrets resolves the named secrets a sync run needs from the
// secret store and keeps them sealed until a request header needs them.
package secrets

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	dserrors "github.com/systmms/landdsync/internal/errors"
	"github.com/systmms/landdsync/internal/identity"
	"github.com/systmms/landdsync/internal/transport"
)

// Resolver fetches one secret value by its store key.
type Resolver interface {
	Resolve(ctx context.Context, token identity.Token, key string) (string, error)
}

// RESTResolver reads secrets through the Key Vault REST API.
type RESTResolver struct {
	VaultURL   string
	APIVersion string
	Client     *http.Client
}

// Resolve GETs {vault}/secrets/{key}?api-version=... and returns its value.
// A rejected request is a SecretError and is never retried.
func (r RESTResolver) Resolve(ctx context.Context, token identity.Token, key string) (string, error) {
	endpoint := strings.TrimSuffix(r.VaultURL, "/") + "/secrets/" + url.PathEscape(key)

	var body string
	err := transport.Request(r.Client, endpoint, http.Header{"Authorization": {token.Bearer()}}).
		Param("api-version", r.APIVersion).
		ToString(&body).
		Fetch(ctx)
	if err != nil {
		if statusErr, ok := transport.AsStatus(err); ok {
			return "", dserrors.SecretError{
				Key:        key,
				StatusCode: statusErr.Code,
				Message:    statusErr.Body,
			}
		}
		return "", dserrors.TransportError{Op: "GET", URL: endpoint, Err: err}
	}

	value := gjson.Get(body, "value").String()
	if value == "" {
		return "", dserrors.SecretError{Key: key, Message: "response carried no value"}
	}
	return value, nil
}
