package storage

import (
	"context"
	"errors"
	"io"

	"github.com/jaki95/check-engine/internal/domain"
)

// ErrNotFound is returned when no archived result or file exists.
var ErrNotFound = errors.New("not found")

// Storage archives check results and serves the project files they refer to,
// such as the images annotations are drawn on.
type Storage interface {
	SaveResult(ctx context.Context, projectID string, result *domain.Result) (string, error)

	LoadResult(ctx context.Context, projectID string) (*domain.Result, error)

	SaveRun(ctx context.Context, projectID, taskID string, result *domain.Result) (string, error)

	LoadRun(ctx context.Context, projectID, taskID string) (*domain.Result, error)

	ImagePath(projectID, hiddenFileName string) string

	GetReader(ctx context.Context, path string) (io.ReadCloser, error)

	GetWriter(ctx context.Context, path string) (io.WriteCloser, error)

	FileExists(ctx context.Context, path string) bool

	ListFiles(ctx context.Context, dir string, pattern string) ([]string, error)

	Close() error
}
