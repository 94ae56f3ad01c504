package main

import (
	"context"
	"encoding/json"
	"log/slog"
)

// fileMirror writes the full registry as a JSON document for the public
// player listing to pick up. Exports are best effort and last-writer-wins;
// the registry never fails an operation over a mirror problem.
type fileMirror struct {
	path   string
	logger *slog.Logger
}

func newFileMirror(logger *slog.Logger, path string) *fileMirror {
	return &fileMirror{path: path, logger: logger}
}

func (m *fileMirror) Export(_ context.Context, records []MemberRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	if err := writeFileAtomic(m.path, data); err != nil {
		return err
	}
	m.logger.Info("exported registry mirror", slog.String("path", m.path), slog.Int("count", len(records)))
	return nil
}
