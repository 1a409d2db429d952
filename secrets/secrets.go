// Package secrets reads secret values (passwords, tokens, client secrets) from
// files on local disk.
//
// A secret is the entire content of its file, decoded as UTF-8 with no trimming.
// Each call performs exactly one read; there is no retry and no caching.
// Secret values are never logged.
package secrets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

var (
	ErrSecretNotFound     = errors.New("secret file not found")
	ErrSecretAccessDenied = errors.New("secret file access denied")
	ErrSecretRead         = errors.New("secret file read failed")
)

// Loader reads a secret from path. LoadSecret is the production implementation.
type Loader func(path string) (string, error)

// FileError describes why a secret file could not be read. Kind is one of
// ErrSecretNotFound, ErrSecretAccessDenied or ErrSecretRead.
type FileError struct {
	Path string
	Kind error
	Err  error
}

func (e *FileError) Error() string {
	switch e.Kind {
	case ErrSecretNotFound:
		return fmt.Sprintf("requested file %s does not exist at specified location", e.Path)
	case ErrSecretAccessDenied:
		return fmt.Sprintf("current user does not have permissions to access %s", e.Path)
	default:
		return fmt.Sprintf("failed to read %s: %v", e.Path, e.Err)
	}
}

func (e *FileError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// LoadSecret returns the full content of the file at path.
func LoadSecret(path string) (string, error) {
	content, err := ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// ReadFile reads path in full, reporting failures as a *FileError. Key and
// trust stores are read through it so their errors carry the same causes.
func ReadFile(path string) ([]byte, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, classify(path, err)
	}
	return content, nil
}

func classify(path string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return &FileError{Path: path, Kind: ErrSecretNotFound, Err: err}
	case errors.Is(err, fs.ErrPermission):
		return &FileError{Path: path, Kind: ErrSecretAccessDenied, Err: err}
	default:
		return &FileError{Path: path, Kind: ErrSecretRead, Err: err}
	}
}
