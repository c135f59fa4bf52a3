package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"
)

// LocalStore writes artifacts under a root directory on the local filesystem.
type LocalStore struct {
	root   string
	logger *zap.Logger
}

// NewLocalStore creates a store rooted at root ("~" is expanded).
func NewLocalStore(root string, logger *zap.Logger) (*LocalStore, error) {
	if root == "" {
		root = "."
	}
	expanded, err := homedir.Expand(root)
	if err != nil {
		return nil, fmt.Errorf("expand storage root: %w", err)
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	return &LocalStore{root: abs, logger: logger.Named("storage.fs")}, nil
}

// Root returns the absolute directory artifacts are written under.
func (s *LocalStore) Root() string { return s.root }

func (s *LocalStore) resolve(p string) (string, error) {
	key, err := cleanKey(p)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}

// WriteText replaces the file at p, creating parent directories.
func (s *LocalStore) WriteText(ctx context.Context, p, content string) error {
	return s.write(ctx, "write", p, []byte(content))
}

// WriteStructured writes v as indented JSON.
func (s *LocalStore) WriteStructured(ctx context.Context, p string, v any) error {
	data, err := marshalStructured(v)
	if err != nil {
		return storageErr("write", p, err)
	}
	return s.write(ctx, "write", p, data)
}

func (s *LocalStore) write(ctx context.Context, op, p string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return storageErr(op, p, err)
	}
	full, err := s.resolve(p)
	if err != nil {
		return storageErr(op, p, err)
	}
	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return storageErr(op, p, fmt.Errorf("creating directory %s: %w", dir, err))
	}

	// Write to a sibling temp file and rename so readers never see a partial file.
	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(full)+"-*")
	if err != nil {
		return storageErr(op, p, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return storageErr(op, p, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return storageErr(op, p, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return storageErr(op, p, err)
	}
	if err := os.Rename(tmpName, full); err != nil {
		os.Remove(tmpName)
		return storageErr(op, p, err)
	}

	s.logger.Debug("Artifact written", zap.String("path", full), zap.Int("bytes", len(data)))
	return nil
}

// ReadText returns the file at p. A missing file wraps ErrNotFound.
func (s *LocalStore) ReadText(ctx context.Context, p string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", storageErr("read", p, err)
	}
	full, err := s.resolve(p)
	if err != nil {
		return "", storageErr("read", p, err)
	}
	data, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", storageErr("read", p, ErrNotFound)
		}
		return "", storageErr("read", p, err)
	}
	return string(data), nil
}
