package errors

import (
	"errors"
	"fmt"
	"strings"
)

// UserError represents an error that should be shown to the user with helpful context
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  💡 Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error with helpful context
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// AuthError means a credential could not be acquired for one trust domain.
type AuthError struct {
	Domain     string
	StatusCode int
	Message    string
	Err        error
}

func (e AuthError) Error() string {
	msg := fmt.Sprintf("authentication failed for %s", e.Domain)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e AuthError) Unwrap() error {
	return e.Err
}

// TransportError wraps network and decode failures while talking to a remote service.
type TransportError struct {
	Op         string
	URL        string
	StatusCode int
	Err        error
}

func (e TransportError) Error() string {
	msg := fmt.Sprintf("%s %s", e.Op, e.URL)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" returned status %d", e.StatusCode)
	} else {
		msg += " failed"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e TransportError) Unwrap() error {
	return e.Err
}

// MappingError reports a source record that lacks the structure the mapper needs.
type MappingError struct {
	Index    int
	RecordID string
	Field    string
	Message  string
}

func (e MappingError) Error() string {
	msg := fmt.Sprintf("record %d", e.Index)
	if e.RecordID != "" {
		msg += fmt.Sprintf(" (%s)", e.RecordID)
	}
	if e.Field != "" {
		msg += fmt.Sprintf(" field '%s'", e.Field)
	}
	return msg + ": " + e.Message
}

// PublishError means the destination rejected a batch.
type PublishError struct {
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e PublishError) Error() string {
	msg := fmt.Sprintf("publish to %s rejected", e.URL)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" with status %d", e.StatusCode)
	}
	if e.Body != "" {
		msg += ": " + e.Body
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e PublishError) Unwrap() error {
	return e.Err
}

// CheckpointError wraps a failure reading or writing the checkpoint store.
type CheckpointError struct {
	Path string
	Op   string
	Err  error
}

func (e CheckpointError) Error() string {
	return fmt.Sprintf("checkpoint %s %s: %v", e.Op, e.Path, e.Err)
}

func (e CheckpointError) Unwrap() error {
	return e.Err
}

// SecretError means the secret store refused or could not supply a secret.
// It is never retried.
type SecretError struct {
	Key        string
	StatusCode int
	Message    string
	Err        error
}

func (e SecretError) Error() string {
	msg := fmt.Sprintf("secret '%s' unavailable", e.Key)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e SecretError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err must end the run without another attempt.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var secretErr SecretError
	if errors.As(err, &secretErr) {
		return true
	}
	var configErr ConfigError
	if errors.As(err, &configErr) {
		return true
	}
	var mappingErr MappingError
	return errors.As(err, &mappingErr)
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if err == nil || IsFatal(err) {
		return false
	}

	var (
		authErr       AuthError
		transportErr  TransportError
		publishErr    PublishError
		checkpointErr CheckpointError
	)
	switch {
	case errors.As(err, &authErr), errors.As(err, &transportErr),
		errors.As(err, &publishErr), errors.As(err, &checkpointErr):
		return true
	}

	errStr := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"timeout",
		"temporary failure",
		"connection reset",
		"broken pipe",
		"rate limit",
		"throttling",
		"too many requests",
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// Suggest returns a hint for the operator based on where err came from.
func Suggest(err error) string {
	if err == nil {
		return ""
	}
	errStr := err.Error()

	var (
		authErr      AuthError
		secretErr    SecretError
		publishErr   PublishError
		checkpointEr CheckpointError
	)
	switch {
	case errors.As(err, &authErr):
		switch authErr.Domain {
		case "local-identity":
			return "Check that the managed identity endpoint is enabled on this host (identity.endpoint)"
		case "destination":
			if strings.Contains(errStr, "AADSTS7000215") || strings.Contains(errStr, "invalid_client") {
				return "The destination client secret was rejected. Rotate landd_clientsecret in Key Vault"
			}
			return "Verify landd.tenant, landd.authority_host_url and the client id stored in Key Vault"
		}
	case errors.As(err, &secretErr):
		switch secretErr.StatusCode {
		case 401, 403:
			return "Grant the managed identity 'get' permission on Key Vault secrets"
		case 404:
			return fmt.Sprintf("Create secret '%s' in Key Vault or fix key_vault.secrets", secretErr.Key)
		}
	case errors.As(err, &publishErr):
		switch {
		case publishErr.StatusCode == 401:
			return "The destination token was rejected. Check landd.resource and the subscription key"
		case publishErr.StatusCode >= 500:
			return "The destination service failed. The next run will resend the same window"
		}
	case errors.As(err, &checkpointEr):
		return "Check that consumption.checkpoint_file is writable by the sync user"
	}

	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
		return "The operation timed out. Check your network connection or raise general.http_timeout"
	}
	if strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no such host") {
		return "Unable to connect. Check your network and endpoint configuration"
	}

	return ""
}

// SimplifyError simplifies complex error messages for users
func SimplifyError(err error) error {
	if err == nil {
		return nil
	}

	// Already a user-friendly error
	if _, ok := err.(UserError); ok {
		return err
	}
	if _, ok := err.(ConfigError); ok {
		return err
	}

	rootErr := err
	for {
		unwrapped := errors.Unwrap(rootErr)
		if unwrapped == nil {
			break
		}
		rootErr = unwrapped
	}
	errStr := rootErr.Error()

	if strings.Contains(errStr, "yaml:") {
		return ConfigError{
			Message:    "Invalid YAML format",
			Suggestion: "Check for indentation errors and missing quotes",
		}
	}

	if strings.Contains(errStr, "permission denied") {
		return UserError{
			Message:    "Permission denied",
			Suggestion: "Check file permissions or run with appropriate privileges",
			Err:        err,
		}
	}

	if suggestion := Suggest(err); suggestion != "" {
		return UserError{
			Message:    err.Error(),
			Suggestion: suggestion,
			Err:        err,
		}
	}

	return err
}
