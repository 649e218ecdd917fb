package secure

import (
	"errors"
	"sync"

	"github.com/awnumar/memguard"
)

var (
	// ErrEmpty is returned when sealing a zero-length value.
	ErrEmpty = errors.New("secure: empty value")
	// ErrDestroyed is returned when opening a destroyed buffer.
	ErrDestroyed = errors.New("secure: buffer destroyed")
)

// SecureBuffer holds one secret value sealed in a memguard enclave.
type SecureBuffer struct {
	mu      sync.RWMutex
	enclave *memguard.Enclave
}

// NewSecureBuffer seals data. memguard wipes data after copying it, so pass
// a copy if the caller still needs the plaintext.
func NewSecureBuffer(data []byte) (*SecureBuffer, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	return &SecureBuffer{enclave: memguard.NewEnclave(data)}, nil
}

// Open decrypts into a locked buffer. The caller must Destroy it.
func (s *SecureBuffer) Open() (*memguard.LockedBuffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.enclave == nil {
		return nil, ErrDestroyed
	}
	return s.enclave.Open()
}

// Use decrypts the value for the duration of fn and wipes the plaintext afterwards.
// fn must not retain the slice.
func (s *SecureBuffer) Use(fn func(plain []byte) error) error {
	locked, err := s.Open()
	if err != nil {
		return err
	}
	defer locked.Destroy()
	return fn(locked.Bytes())
}

// Destroy drops the enclave. It is safe to call more than once.
func (s *SecureBuffer) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enclave = nil
}

// String keeps the buffer out of logs.
func (s *SecureBuffer) String() string {
	return "[REDACTED]"
}
