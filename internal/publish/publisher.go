// Package publish posts mapped batches to the L&D service.
package publish

import (
	"context"
	"net/http"

	dserrors "github.com/systmms/landdsync/internal/errors"
	"github.com/systmms/landdsync/internal/logging"
	"github.com/systmms/landdsync/internal/transport"
)

// Publisher sends one JSON batch per call.
type Publisher struct {
	Client *http.Client
	Logger logging.Printer
}

// Publish POSTs body as JSON to url with headers and returns the response
// body. Any 2xx status is success; other statuses are a PublishError and
// network failures a TransportError.
func (p *Publisher) Publish(ctx context.Context, url string, headers http.Header, body any) (string, error) {
	var response string
	err := transport.Request(p.Client, url, headers).
		BodyJSON(body).
		ToString(&response).
		Fetch(ctx)
	if err != nil {
		if statusErr, ok := transport.AsStatus(err); ok {
			return "", dserrors.PublishError{
				URL:        url,
				StatusCode: statusErr.Code,
				Body:       statusErr.Body,
			}
		}
		return "", dserrors.TransportError{Op: "POST", URL: url, Err: err}
	}

	if p.Logger != nil {
		p.Logger.Debug("Destination answered: %s", response)
	}
	return response, nil
}
