// Package checkpoint persists the end of the last synced consumption window.
package checkpoint

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	dserrors "github.com/systmms/landdsync/internal/errors"
)

// Layout is the timestamp format stored in the checkpoint and sent as the
// source window bounds.
const Layout = "2006-01-02T15:04:05"

const filePerm = 0o640

// Format renders t in Layout, in UTC.
func Format(t time.Time) string {
	return t.UTC().Format(Layout)
}

// Parse validates a stored or operator supplied checkpoint value.
func Parse(value string) (time.Time, error) {
	t, err := time.ParseInLocation(Layout, value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("checkpoint %q is not in %s format", value, Layout)
	}
	return t, nil
}

// Store reads and replaces a single plain-text checkpoint file.
type Store struct {
	fs   billy.Filesystem
	path string
}

// New returns a store for path inside fs.
func New(fs billy.Filesystem, path string) *Store {
	return &Store{fs: fs, path: path}
}

// Open returns a store backed by the OS filesystem, rooted at the
// checkpoint's directory.
func Open(path string) *Store {
	return New(osfs.New(filepath.Dir(path)), filepath.Base(path))
}

// Path is the checkpoint location inside the store's filesystem.
func (s *Store) Path() string {
	return s.path
}

// Read returns the stored checkpoint. An absent file is created empty and
// read as the empty value, which means no lower bound.
func (s *Store) Read() (string, error) {
	data, err := util.ReadFile(s.fs, s.path)
	if errors.Is(err, os.ErrNotExist) {
		if err := s.ensureDir(); err != nil {
			return "", err
		}
		if err := util.WriteFile(s.fs, s.path, nil, filePerm); err != nil {
			return "", s.fail("create", err)
		}
		return "", nil
	}
	if err != nil {
		return "", s.fail("read", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Write replaces the checkpoint with value. The value lands in a temporary
// file in the same directory that is then renamed over the checkpoint, so
// readers see either the old value or the new one.
func (s *Store) Write(value string) (err error) {
	if err := s.ensureDir(); err != nil {
		return err
	}

	tmp, err := s.fs.TempFile(s.dir(), ".checkpoint-")
	if err != nil {
		return s.fail("write", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = s.fs.Remove(tmpName)
		}
	}()

	if _, err := io.WriteString(tmp, value); err != nil {
		_ = tmp.Close()
		return s.fail("write", err)
	}
	if err := tmp.Close(); err != nil {
		return s.fail("write", err)
	}
	if err := s.fs.Rename(tmpName, s.path); err != nil {
		return s.fail("rename", err)
	}
	return nil
}

// Reset stores the empty value, so the next consumption run starts unbounded.
func (s *Store) Reset() error {
	return s.Write("")
}

func (s *Store) dir() string {
	return filepath.Dir(s.path)
}

func (s *Store) ensureDir() error {
	if dir := s.dir(); dir != "." && dir != "/" {
		if err := s.fs.MkdirAll(dir, 0o750); err != nil {
			return s.fail("mkdir", err)
		}
	}
	return nil
}

func (s *Store) fail(op string, err error) error {
	return dserrors.CheckpointError{Path: s.path, Op: op, Err: err}
}
