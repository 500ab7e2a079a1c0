package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

type localStorage struct {
	dir        string
	publicPath string
}

// NewLocalStorage stores images on disk under dir and serves them from publicPath.
func NewLocalStorage(dir, publicPath string) (ImageStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &localStorage{dir: dir, publicPath: strings.TrimSuffix(publicPath, "/")}, nil
}

func (s *localStorage) UploadImage(ctx context.Context, r io.Reader, folder, fileName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := filepath.Base(fileName)
	targetDir := filepath.Join(s.dir, filepath.Clean("/"+folder))
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload folder: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(targetDir, name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create image file: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("failed to write image file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close image file: %w", err)
	}

	return path.Join(s.publicPath, folder, name), nil
}

func (s *localStorage) DeleteImage(ctx context.Context, fileURL string) error {
	rel := strings.TrimPrefix(fileURL, s.publicPath)
	if rel == fileURL || rel == "" {
		return fmt.Errorf("image %s is not managed by local storage", fileURL)
	}

	err := os.Remove(filepath.Join(s.dir, filepath.Clean("/"+rel)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
