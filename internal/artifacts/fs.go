package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"reelforge/internal/services"
)

// FSBackend stores blobs as files under {dir}/{runID}/{name}.
type FSBackend struct {
	dir string
}

// NewFSBackend creates the root directory if needed.
func NewFSBackend(dir string) (*FSBackend, error) {
	if dir == "" {
		return nil, services.Wrap(services.ErrConfiguration, "artifacts", "fs", "directory required", nil)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return &FSBackend{dir: dir}, nil
}

func (b *FSBackend) Name() string { return "fs" }

// Dir returns the root directory.
func (b *FSBackend) Dir() string { return b.dir }

func (b *FSBackend) path(key string) string {
	return filepath.Join(b.dir, filepath.FromSlash(key))
}

// Put writes atomically via a temp file and rename in the target directory.
func (b *FSBackend) Put(_ context.Context, key string, data []byte) error {
	target := b.path(key)
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create run dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		cleanup()
		return fmt.Errorf("rename artifact: %w", err)
	}
	return nil
}

func (b *FSBackend) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(b.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	return data, nil
}

// Delete removes the file and the run directory once it is empty.
func (b *FSBackend) Delete(_ context.Context, key string) error {
	target := b.path(key)
	if err := os.Remove(target); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return fmt.Errorf("remove artifact: %w", err)
	}
	dir := filepath.Dir(target)
	if dir != b.dir {
		if entries, err := os.ReadDir(dir); err == nil && len(entries) == 0 {
			_ = os.Remove(dir)
		}
	}
	return nil
}

// List walks one level of run directories.
func (b *FSBackend) List(_ context.Context) ([]Object, error) {
	runs, err := os.ReadDir(b.dir)
	if err != nil {
		return nil, fmt.Errorf("read artifact dir: %w", err)
	}
	var objects []Object
	for _, run := range runs {
		if !run.IsDir() {
			continue
		}
		files, err := os.ReadDir(filepath.Join(b.dir, run.Name()))
		if err != nil {
			continue
		}
		for _, file := range files {
			if file.IsDir() || strings.HasPrefix(file.Name(), ".tmp-") {
				continue
			}
			info, err := file.Info()
			if err != nil {
				continue
			}
			objects = append(objects, Object{
				Key:     Key(run.Name(), file.Name()),
				Size:    info.Size(),
				ModTime: info.ModTime(),
			})
		}
	}
	return objects, nil
}

// Ping verifies the artifact directory exists.
func (b *FSBackend) Ping() error {
	info, err := os.Stat(b.dir)
	if err != nil {
		return fmt.Errorf("artifact dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("artifact dir %q is not a directory", b.dir)
	}
	return nil
}

func (b *FSBackend) Close() error { return nil }
