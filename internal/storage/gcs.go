package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/jaki95/check-engine/internal/domain"
)

// uploadTimeout bounds a single object write.
const uploadTimeout = 5 * time.Minute

// GCSStorage implements the Storage interface for Google Cloud Storage
type GCSStorage struct {
	client       *storage.Client
	bucket       string
	objectPrefix string
}

// NewGCSStorage creates a new GCSStorage instance
func NewGCSStorage(ctx context.Context, bucketName, objectPrefix, credentialsFile string) (*GCSStorage, error) {
	if bucketName == "" {
		return nil, errors.New("gcs storage requires a bucket")
	}

	var client *storage.Client
	var err error

	// Create a client
	if credentialsFile != "" {
		client, err = storage.NewClient(ctx, option.WithCredentialsFile(credentialsFile))
	} else {
		// Use application default credentials
		client, err = storage.NewClient(ctx)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &GCSStorage{
		client:       client,
		bucket:       bucketName,
		objectPrefix: strings.Trim(objectPrefix, "/"),
	}, nil
}

// SaveResult uploads the result as JSON and returns its object name.
func (s *GCSStorage) SaveResult(ctx context.Context, projectID string, result *domain.Result) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	key := resultKey(projectID)
	if err := saveResult(ctx, s, key, result); err != nil {
		return "", err
	}
	return s.objectName(key), nil
}

// LoadResult downloads the archived result of a project.
func (s *GCSStorage) LoadResult(ctx context.Context, projectID string) (*domain.Result, error) {
	return loadResult(ctx, s, resultKey(projectID))
}

// SaveRun uploads the result of one task run and returns its object name.
func (s *GCSStorage) SaveRun(ctx context.Context, projectID, taskID string, result *domain.Result) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	key := runKey(projectID, taskID)
	if err := saveResult(ctx, s, key, result); err != nil {
		return "", err
	}
	return s.objectName(key), nil
}

// LoadRun downloads the result of one task run.
func (s *GCSStorage) LoadRun(ctx context.Context, projectID, taskID string) (*domain.Result, error) {
	return loadResult(ctx, s, runKey(projectID, taskID))
}

// ImagePath returns the object name of a project image.
func (s *GCSStorage) ImagePath(projectID, hiddenFileName string) string {
	return s.objectName(imageKey(projectID, hiddenFileName))
}

// GetReader returns a reader for an object
func (s *GCSStorage) GetReader(ctx context.Context, path string) (io.ReadCloser, error) {
	r, err := s.client.Bucket(s.bucket).Object(s.objectName(path)).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return r, err
}

// GetWriter returns a writer for an object. The object is committed on Close.
func (s *GCSStorage) GetWriter(ctx context.Context, path string) (io.WriteCloser, error) {
	w := s.client.Bucket(s.bucket).Object(s.objectName(path)).NewWriter(ctx)
	w.ContentType = contentType(path)
	return w, nil
}

// FileExists checks if an object exists
func (s *GCSStorage) FileExists(ctx context.Context, path string) bool {
	_, err := s.client.Bucket(s.bucket).Object(s.objectName(path)).Attrs(ctx)
	return err == nil
}

// ListFiles lists objects under dir whose base name starts with pattern
func (s *GCSStorage) ListFiles(ctx context.Context, dir string, pattern string) ([]string, error) {
	prefix := s.objectName(dir)
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{
		Prefix: prefix,
	})

	var results []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error listing objects: %w", err)
		}

		// Skip directories (objects ending with /)
		if strings.HasSuffix(attrs.Name, "/") {
			continue
		}

		// Match pattern (simple prefix for now)
		if pattern != "" && !strings.HasPrefix(path.Base(attrs.Name), pattern) {
			continue
		}

		results = append(results, attrs.Name)
	}

	return results, nil
}

// Close closes the GCS client
func (s *GCSStorage) Close() error {
	return s.client.Close()
}

// objectName prefixes a storage key. Keys that already carry the prefix are
// returned unchanged.
func (s *GCSStorage) objectName(key string) string {
	key = strings.TrimPrefix(key, "/")
	if s.objectPrefix == "" || key == s.objectPrefix || strings.HasPrefix(key, s.objectPrefix+"/") {
		return key
	}
	if key == "" {
		return s.objectPrefix
	}
	return s.objectPrefix + "/" + key
}

func contentType(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".json":
		return "application/json"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}
