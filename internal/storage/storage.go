// Package storage puts image persistence behind a small interface so
// the upload route and the store logic never care whether files land on
// local disk or somewhere else.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ImageStore accepts a binary stream and returns a durable, publicly
// resolvable URL for it.
type ImageStore interface {
	Store(ctx context.Context, filename string, r io.Reader) (string, error)
}

type LocalStore struct {
	dir     string
	baseURL string
}

// NewLocalStore creates the target directory if needed; calling it
// twice on the same directory is fine.
func NewLocalStore(dir string, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating image dir: %w", err)
	}
	return &LocalStore{
		dir:     dir,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}, nil
}

func (s *LocalStore) Store(ctx context.Context, filename string, r io.Reader) (string, error) {
	unique := fmt.Sprintf("%s_%s", uuid.NewString(), sanitizeFilename(filename))
	path := filepath.Join(s.dir, unique)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating image file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("writing image file: %w", err)
	}
	return s.baseURL + "/" + unique, nil
}

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, " ", "_")
	if name == "." || name == string(filepath.Separator) || name == "" {
		return "file"
	}
	return name
}
