// Package storage persists generated artifacts behind schemas.ArtifactStore.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/agentforge/api/schemas"
	"github.com/xkilldash9x/agentforge/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrNotFound is wrapped by ReadText when nothing is stored at the path.
var ErrNotFound = errors.New("artifact not found")

// New builds the store selected by cfg. root is where the filesystem backend
// writes; the other backends ignore it.
func New(ctx context.Context, cfg config.StorageConfig, root string, logger *zap.Logger) (schemas.ArtifactStore, error) {
	switch cfg.Backend {
	case config.StorageFS, "":
		return NewLocalStore(root, logger)
	case config.StorageS3:
		return NewS3Store(ctx, cfg.S3, logger)
	case config.StorageMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}

// cleanKey normalizes an artifact path to a slash-separated relative key and
// rejects paths that escape the store root.
func cleanKey(p string) (string, error) {
	p = strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
	if p == "" {
		return "", fmt.Errorf("path is required")
	}
	key := path.Clean(strings.TrimLeft(p, "/"))
	if key == "." || key == ".." || strings.HasPrefix(key, "../") {
		return "", fmt.Errorf("path %q escapes the store root", p)
	}
	return key, nil
}

func marshalStructured(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	return append(data, '\n'), nil
}

func storageErr(op, p string, err error) error {
	return &schemas.StorageError{Op: op, Path: p, Err: err}
}
