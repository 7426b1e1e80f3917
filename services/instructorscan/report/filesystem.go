package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FilesystemStore publishes artifacts to a directory served by a static
// web server.
type FilesystemStore struct {
	baseDir string
}

func NewFilesystemStore(baseDir string) (FilesystemStore, error) {
	if baseDir == "" {
		baseDir = "./public"
	}
	err := os.MkdirAll(baseDir, 0o755)
	if err != nil {
		return FilesystemStore{}, fmt.Errorf("create artifact directory: %w", err)
	}
	return FilesystemStore{baseDir: baseDir}, nil
}

func (s FilesystemStore) Save(ctx context.Context, name, contentType string, contents []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := filepath.Join(s.baseDir, filepath.Clean(name))
	err := os.WriteFile(path, contents, 0o644)
	if err != nil {
		return fmt.Errorf("write artifact %s: %w", name, err)
	}
	return nil
}
