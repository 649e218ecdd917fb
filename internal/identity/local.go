package identity

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"

	dserrors "github.com/systmms/landdsync/internal/errors"
	"github.com/systmms/landdsync/internal/transport"
)

// defaultLifetime is assumed when the endpoint omits expiry information.
const defaultLifetime = 10 * time.Minute

// LocalIdentity requests tokens from the managed identity endpoint exposed on
// the host. It needs no credentials of its own.
type LocalIdentity struct {
	Endpoint string
	Resource string
	Client   *http.Client
	Now      func() time.Time
}

// Token performs one request against the endpoint. Failures are not retried here.
func (l LocalIdentity) Token(ctx context.Context) (Token, error) {
	now := time.Now
	if l.Now != nil {
		now = l.Now
	}

	var body bytes.Buffer
	err := transport.Request(l.Client, l.Endpoint, http.Header{"Metadata": {"true"}}).
		Post().
		BodyForm(url.Values{"resource": {l.Resource}}).
		ToBytesBuffer(&body).
		Fetch(ctx)
	if err != nil {
		authErr := dserrors.AuthError{Domain: string(DomainLocalIdentity), Err: err}
		if statusErr, ok := transport.AsStatus(err); ok {
			authErr.StatusCode = statusErr.Code
			authErr.Err = nil
			authErr.Message = statusErr.Body
		}
		return Token{}, authErr
	}

	res := gjson.ParseBytes(body.Bytes())
	value := res.Get("access_token").String()
	if value == "" {
		return Token{}, dserrors.AuthError{
			Domain:  string(DomainLocalIdentity),
			Message: "response carried no access_token",
		}
	}

	issued := now()
	expires := issued.Add(defaultLifetime)
	if on := res.Get("expires_on"); on.Exists() && on.Int() > 0 {
		expires = time.Unix(on.Int(), 0)
	} else if in := res.Get("expires_in"); in.Exists() && in.Int() > 0 {
		expires = issued.Add(time.Duration(in.Int()) * time.Second)
	}

	return Token{
		Value:     value,
		Domain:    DomainSecretStore,
		ExpiresOn: expires,
	}, nil
}
