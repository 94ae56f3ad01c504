package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// skinStore keeps uploaded skin archives on disk under one directory.
type skinStore struct {
	dir  string
	http *http.Client
}

func newSkinStore(dir string) *skinStore {
	return &skinStore{dir: dir, http: &http.Client{Timeout: 60 * time.Second}}
}

// SaveFromURL downloads an attachment and stores it under its base filename,
// returning the stored path. An existing file with the same name is replaced.
func (s *skinStore) SaveFromURL(ctx context.Context, filename, url string) (string, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("could not create skins dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("could not download skin: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("could not download skin: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("could not read skin: %w", err)
	}

	path := filepath.Join(s.dir, filepath.Base(filename))
	if err := writeFileAtomic(path, data); err != nil {
		return "", fmt.Errorf("could not store skin: %w", err)
	}
	return path, nil
}
