package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBlobAPIURL     = "https://blob.vercel-storage.com"
	blobAPIVersion        = "7"
	defaultBlobPutTimeout = 30 * time.Second
)

// BlobStore implements ObjectStore on the Vercel Blob HTTP API.
type BlobStore struct {
	apiURL string
	token  string
	client *http.Client
}

func NewBlobStore(apiURL, token string) *BlobStore {
	if apiURL == "" {
		apiURL = defaultBlobAPIURL
	}
	return &BlobStore{
		apiURL: strings.TrimRight(apiURL, "/"),
		token:  token,
		client: &http.Client{Timeout: defaultBlobPutTimeout},
	}
}

type blobPutResponse struct {
	URL         string `json:"url"`
	Pathname    string `json:"pathname"`
	ContentType string `json:"contentType"`
}

func (s *BlobStore) Put(ctx context.Context, objectPath string, data []byte, contentType string) (string, error) {
	clean, err := cleanObjectPath(objectPath)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.apiURL+"/"+escapePath(clean), bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create blob request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("x-api-version", blobAPIVersion)
	req.Header.Set("x-content-type", contentType)
	req.Header.Set("x-add-random-suffix", "0")
	req.Header.Set("Content-Type", contentType)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("blob upload request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("blob store returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var out blobPutResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode blob response: %w", err)
	}
	if out.URL == "" {
		return "", fmt.Errorf("blob store returned no URL for %s", clean)
	}

	log.Printf("INFO (BlobStore): Uploaded %d bytes to %s", len(data), out.URL)
	return out.URL, nil
}
