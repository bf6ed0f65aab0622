package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/jaki95/check-engine/config"
	"github.com/jaki95/check-engine/internal/domain"
)

const (
	resultFileName = "result.json"
	imagesDirName  = "images"
	runsDirName    = "runs"
)

// New builds the storage selected by cfg.Type.
func New(ctx context.Context, cfg config.StorageConfig) (Storage, error) {
	switch cfg.Type {
	case "", "local":
		return NewLocalFileStorage(cfg.OutputDir)
	case "gcs":
		return NewGCSStorage(ctx, cfg.Bucket, cfg.ObjectPrefix, cfg.CredentialsFile)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

// SanitizeName removes path separators and other characters that are invalid
// in file or object names.
func SanitizeName(name string) string {
	invalid := []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|", "\n", "\r", "\t"}
	result := name
	for _, char := range invalid {
		result = strings.ReplaceAll(result, char, "_")
	}

	result = strings.Trim(result, " .")
	if result == "" {
		result = "untitled"
	}
	return result
}

func resultKey(projectID string) string {
	return path.Join(SanitizeName(projectID), resultFileName)
}

func runKey(projectID, taskID string) string {
	return path.Join(SanitizeName(projectID), runsDirName, SanitizeName(taskID)+".json")
}

func imageKey(projectID, hiddenFileName string) string {
	return path.Join(SanitizeName(projectID), imagesDirName, SanitizeName(hiddenFileName))
}

func saveResult(ctx context.Context, s Storage, key string, result *domain.Result) error {
	w, err := s.GetWriter(ctx, key)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		w.Close()
		return fmt.Errorf("failed to encode result: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	return nil
}

func loadResult(ctx context.Context, s Storage, key string) (*domain.Result, error) {
	if !s.FileExists(ctx, key) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	r, err := s.GetReader(ctx, key)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read result: %w", err)
	}

	var result domain.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to decode result %s: %w", key, err)
	}
	return &result, nil
}
