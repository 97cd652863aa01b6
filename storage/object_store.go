package storage

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// defaultLocalDir is the base directory used when no directory is configured.
const defaultLocalDir = "_uploads"

// ObjectStore stores binary proof-of-delivery content with public visibility.
type ObjectStore interface {
	// Put saves data under objectPath and returns a publicly retrievable URL.
	Put(ctx context.Context, objectPath string, data []byte, contentType string) (publicURL string, err error)
}

// LocalFileStore implements ObjectStore on the local file system. Files are
// expected to be served from publicBaseURL (see api.SetupRoutes).
type LocalFileStore struct {
	basePath      string
	publicBaseURL string
}

// NewLocalFileStore creates a new LocalFileStore.
// If basePath is empty, it defaults to defaultLocalDir.
func NewLocalFileStore(basePath, publicBaseURL string) *LocalFileStore {
	if basePath == "" {
		basePath = defaultLocalDir
	}
	return &LocalFileStore{basePath: basePath, publicBaseURL: strings.TrimRight(publicBaseURL, "/")}
}

// Dir is the directory objects are written to.
func (s *LocalFileStore) Dir() string { return s.basePath }

func (s *LocalFileStore) Put(ctx context.Context, objectPath string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	clean, err := cleanObjectPath(objectPath)
	if err != nil {
		return "", err
	}

	fullPath := filepath.Join(s.basePath, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(fullPath), os.ModePerm); err != nil {
		log.Printf("ERROR (LocalFileStore): Failed to create storage directory for '%s': %v", fullPath, err)
		return "", fmt.Errorf("failed to create storage directory: %w", err)
	}

	if err := os.WriteFile(fullPath, data, 0644); err != nil {
		log.Printf("ERROR (LocalFileStore): Failed to write object to '%s': %v", fullPath, err)
		return "", fmt.Errorf("failed to save object: %w", err)
	}

	log.Printf("INFO (LocalFileStore): Saved %d bytes to %s (Content-Type: %s)", len(data), fullPath, contentType)
	return s.publicBaseURL + "/" + escapePath(clean), nil
}

// cleanObjectPath rejects paths that would escape the store root.
func cleanObjectPath(objectPath string) (string, error) {
	if objectPath == "" {
		return "", fmt.Errorf("object path cannot be empty")
	}
	clean := path.Clean("/" + objectPath)[1:]
	if clean == "" || clean != strings.TrimPrefix(objectPath, "/") {
		return "", fmt.Errorf("invalid object path %q", objectPath)
	}
	return clean, nil
}

func escapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}
