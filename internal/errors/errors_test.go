package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/systmms/landdsync/internal/errors"
	"github.com/systmms/landdsync/internal/logging"
)

// TestUserErrorFormatting verifies UserError displays properly
func TestUserErrorFormatting(t *testing.T) {
	t.Parallel()

	err := errors.UserError{
		Message:    "Operation failed",
		Details:    "Connection timeout",
		Suggestion: "Check network connectivity",
	}

	errMsg := err.Error()

	assert.Contains(t, errMsg, "Operation failed")
	assert.Contains(t, errMsg, "Connection timeout")
	assert.Contains(t, errMsg, "Check network connectivity")
	assert.Contains(t, errMsg, "💡")
}

// TestConfigErrorFormatting verifies ConfigError displays with context
func TestConfigErrorFormatting(t *testing.T) {
	t.Parallel()

	err := errors.ConfigError{
		Field:      "key_vault.url",
		Value:      "not-a-url",
		Message:    "must be an absolute https URL",
		Suggestion: "Use format: https://<vault>.vault.azure.net",
	}

	errMsg := err.Error()

	assert.Contains(t, errMsg, "key_vault.url")
	assert.Contains(t, errMsg, "not-a-url")
	assert.Contains(t, errMsg, "absolute https URL")
	assert.Contains(t, errMsg, "vault.azure.net")
}

func TestTaxonomyFormatting(t *testing.T) {
	t.Parallel()

	cause := fmt.Errorf("dial tcp: connection refused")

	tests := []struct {
		name     string
		err      error
		contains []string
	}{
		{
			name:     "auth",
			err:      errors.AuthError{Domain: "local-identity", StatusCode: 400, Message: "no token"},
			contains: []string{"local-identity", "status 400", "no token"},
		},
		{
			name:     "transport",
			err:      errors.TransportError{Op: "GET", URL: "https://edx.example/api", Err: cause},
			contains: []string{"GET https://edx.example/api failed", "connection refused"},
		},
		{
			name:     "mapping",
			err:      errors.MappingError{Index: 3, RecordID: "course-v1:Org+C1+2020", Field: "media.image", Message: "missing"},
			contains: []string{"record 3", "course-v1:Org+C1+2020", "media.image", "missing"},
		},
		{
			name:     "publish",
			err:      errors.PublishError{URL: "https://landd.example/consumption", StatusCode: 500, Body: "boom"},
			contains: []string{"rejected", "status 500", "boom"},
		},
		{
			name:     "checkpoint",
			err:      errors.CheckpointError{Path: "/var/lib/landdsync/checkpoint", Op: "write", Err: cause},
			contains: []string{"checkpoint write", "/var/lib/landdsync/checkpoint"},
		},
		{
			name:     "secret",
			err:      errors.SecretError{Key: "edx-api-key", StatusCode: 403},
			contains: []string{"edx-api-key", "status 403"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			for _, want := range tt.contains {
				assert.Contains(t, tt.err.Error(), want)
			}
		})
	}
}

func TestUnwrapChain(t *testing.T) {
	t.Parallel()

	cause := fmt.Errorf("root cause")
	wrapped := fmt.Errorf("attempt 2: %w", errors.TransportError{Op: "POST", URL: "u", Err: cause})

	assert.True(t, stderrors.Is(wrapped, cause))

	var transportErr errors.TransportError
	assert.True(t, stderrors.As(wrapped, &transportErr))
	assert.Equal(t, "POST", transportErr.Op)
}

func TestSecretDoesNotLeakThroughErrors(t *testing.T) {
	t.Parallel()

	secretValue := "api-key-super-secret-123"
	err := errors.AuthError{
		Domain: "destination",
		Err:    fmt.Errorf("client secret %s rejected", logging.Secret(secretValue)),
	}

	assert.Contains(t, err.Error(), "[REDACTED]")
	assert.NotContains(t, err.Error(), secretValue)
}

func TestIsFatal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		err   error
		fatal bool
	}{
		{"nil", nil, false},
		{"secret", errors.SecretError{Key: "k", StatusCode: 404}, true},
		{"wrapped_secret", fmt.Errorf("resolve: %w", errors.SecretError{Key: "k"}), true},
		{"config", errors.ConfigError{Field: "edx.catalog_url", Message: "required"}, true},
		{"mapping", errors.MappingError{Index: 0, Message: "missing"}, true},
		{"auth", errors.AuthError{Domain: "destination"}, false},
		{"publish", errors.PublishError{StatusCode: 502}, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.fatal, errors.IsFatal(tt.err))
		})
	}
}

// TestIsRetryable verifies retryable error detection
func TestIsRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"nil_error", nil, false},
		{"timeout", fmt.Errorf("operation timeout"), true},
		{"rate_limit", fmt.Errorf("rate limit exceeded"), true},
		{"connection_reset", fmt.Errorf("connection reset by peer"), true},
		{"not_found", fmt.Errorf("resource not found"), false},
		{"auth", errors.AuthError{Domain: "local-identity"}, true},
		{"transport", errors.TransportError{Op: "GET"}, true},
		{"publish", errors.PublishError{StatusCode: 500}, true},
		{"checkpoint", errors.CheckpointError{Op: "write", Err: fmt.Errorf("disk full")}, true},
		{"secret_never", errors.SecretError{Key: "k", Message: "timeout"}, false},
		{"mapping_never", errors.MappingError{Message: "timeout"}, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.retryable, errors.IsRetryable(tt.err))
		})
	}
}

func TestSuggest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		contains string
	}{
		{"msi", errors.AuthError{Domain: "local-identity"}, "managed identity"},
		{"destination_invalid_client", errors.AuthError{Domain: "destination", Message: "invalid_client"}, "Rotate landd_clientsecret"},
		{"destination_generic", errors.AuthError{Domain: "destination"}, "landd.tenant"},
		{"secret_forbidden", errors.SecretError{Key: "k", StatusCode: 403}, "'get' permission"},
		{"secret_missing", errors.SecretError{Key: "edx-key", StatusCode: 404}, "edx-key"},
		{"publish_5xx", errors.PublishError{StatusCode: 503}, "resend"},
		{"checkpoint", errors.CheckpointError{Op: "read", Err: fmt.Errorf("x")}, "writable"},
		{"timeout", fmt.Errorf("context deadline exceeded"), "timed out"},
		{"refused", fmt.Errorf("dial tcp 127.0.0.1:50342: connection refused"), "Unable to connect"},
		{"unknown", fmt.Errorf("something else"), ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := errors.Suggest(tt.err)
			if tt.contains == "" {
				assert.Empty(t, got)
				return
			}
			assert.Contains(t, got, tt.contains)
		})
	}
}

// TestSimplifyError verifies error simplification for common cases
func TestSimplifyError(t *testing.T) {
	t.Parallel()

	t.Run("nil", func(t *testing.T) {
		t.Parallel()
		assert.Nil(t, errors.SimplifyError(nil))
	})

	t.Run("yaml", func(t *testing.T) {
		t.Parallel()
		err := errors.SimplifyError(fmt.Errorf("load: %w", fmt.Errorf("yaml: line 3: mapping values are not allowed")))
		var configErr errors.ConfigError
		assert.True(t, stderrors.As(err, &configErr))
		assert.Contains(t, configErr.Message, "Invalid YAML")
	})

	t.Run("already_user_error", func(t *testing.T) {
		t.Parallel()
		in := errors.UserError{Message: "x"}
		assert.Equal(t, in, errors.SimplifyError(in))
	})

	t.Run("suggested", func(t *testing.T) {
		t.Parallel()
		err := errors.SimplifyError(errors.SecretError{Key: "k", StatusCode: 403})
		var userErr errors.UserError
		assert.True(t, stderrors.As(err, &userErr))
		assert.Contains(t, err.Error(), "💡 Try:")
	})

	t.Run("passthrough", func(t *testing.T) {
		t.Parallel()
		in := fmt.Errorf("plain")
		assert.Equal(t, in, errors.SimplifyError(in))
	})
}
