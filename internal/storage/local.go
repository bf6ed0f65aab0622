package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jaki95/check-engine/internal/domain"
)

// LocalFileStorage implements the Storage interface for local filesystem
type LocalFileStorage struct {
	outputDir string
}

// NewLocalFileStorage creates a new local file storage instance
func NewLocalFileStorage(outputDir string) (*LocalFileStorage, error) {
	if err := os.MkdirAll(outputDir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", outputDir, err)
	}

	return &LocalFileStorage{outputDir: outputDir}, nil
}

// SaveResult writes the result as JSON under the project directory and
// returns its path.
func (s *LocalFileStorage) SaveResult(ctx context.Context, projectID string, result *domain.Result) (string, error) {
	key := resultKey(projectID)
	if err := saveResult(ctx, s, key, result); err != nil {
		return "", err
	}
	return s.resolve(key), nil
}

// LoadResult reads the archived result of a project.
func (s *LocalFileStorage) LoadResult(ctx context.Context, projectID string) (*domain.Result, error) {
	return loadResult(ctx, s, resultKey(projectID))
}

// SaveRun archives the result of one task run and returns its path.
func (s *LocalFileStorage) SaveRun(ctx context.Context, projectID, taskID string, result *domain.Result) (string, error) {
	key := runKey(projectID, taskID)
	if err := saveResult(ctx, s, key, result); err != nil {
		return "", err
	}
	return s.resolve(key), nil
}

// LoadRun reads the archived result of one task run.
func (s *LocalFileStorage) LoadRun(ctx context.Context, projectID, taskID string) (*domain.Result, error) {
	return loadResult(ctx, s, runKey(projectID, taskID))
}

// ImagePath returns the path of a project image.
func (s *LocalFileStorage) ImagePath(projectID, hiddenFileName string) string {
	return s.resolve(imageKey(projectID, hiddenFileName))
}

// GetReader returns a reader for the specified file
func (s *LocalFileStorage) GetReader(_ context.Context, path string) (io.ReadCloser, error) {
	f, err := os.Open(s.resolve(path))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return f, err
}

// GetWriter returns a writer for the specified file, creating its directory
func (s *LocalFileStorage) GetWriter(_ context.Context, path string) (io.WriteCloser, error) {
	full := s.resolve(path)
	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return os.Create(full)
}

// FileExists checks if a file exists
func (s *LocalFileStorage) FileExists(_ context.Context, path string) bool {
	_, err := os.Stat(s.resolve(path))
	return err == nil
}

// ListFiles lists files in a directory matching a pattern
func (s *LocalFileStorage) ListFiles(_ context.Context, dir string, pattern string) ([]string, error) {
	// If dir is empty, use the output directory
	listDir := s.outputDir
	if dir != "" {
		listDir = s.resolve(dir)
	}

	files, err := os.ReadDir(listDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var results []string
	for _, file := range files {
		if file.IsDir() {
			continue
		}

		// Match pattern (simple prefix for now)
		if pattern != "" && !strings.HasPrefix(file.Name(), pattern) {
			continue
		}

		results = append(results, filepath.Join(listDir, file.Name()))
	}

	return results, nil
}

// Close is a no-op for local storage
func (s *LocalFileStorage) Close() error {
	return nil
}

// resolve maps a storage key to a path under the output directory. Absolute
// paths and paths already under it are returned unchanged.
func (s *LocalFileStorage) resolve(path string) string {
	if filepath.IsAbs(path) || strings.HasPrefix(path, s.outputDir+string(filepath.Separator)) {
		return path
	}
	return filepath.Join(s.outputDir, filepath.FromSlash(path))
}
