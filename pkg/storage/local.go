package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LocalArchive implements Archive using the local filesystem
type LocalArchive struct {
	basePath string
	now      func() time.Time
}

var _ Archive = (*LocalArchive)(nil)

// NewLocalArchive creates a new local filesystem archive
func NewLocalArchive(basePath string) (*LocalArchive, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	return &LocalArchive{basePath: basePath, now: time.Now}, nil
}

// Put stores an extract and returns its metadata
func (s *LocalArchive) Put(_ context.Context, entry Entry, r io.Reader) (*Entry, error) {
	if entry.SourceKey == "" {
		return nil, errors.New("source key is required")
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now().UTC()
	}

	dir := s.partition(entry.SourceKey)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create partition directory: %w", err)
	}

	entry.Path = fmt.Sprintf("%s_%s", entry.ID.String()[:8], sanitizeFilename(filepath.Base(entry.Name)))
	filePath := filepath.Join(dir, entry.Path)

	f, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	size, err := io.Copy(f, r)
	if err != nil {
		os.Remove(filePath)
		return nil, fmt.Errorf("failed to write file: %w", err)
	}
	entry.Size = size

	if err := s.saveMetadata(&entry); err != nil {
		os.Remove(filePath)
		return nil, err
	}
	return &entry, nil
}

// Open returns a reader for an archived extract
func (s *LocalArchive) Open(_ context.Context, sourceKey string, id uuid.UUID) (io.ReadCloser, *Entry, error) {
	entry, err := s.metadata(sourceKey, id)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(filepath.Join(s.partition(sourceKey), entry.Path))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, entry, nil
}

// List returns the entries archived under a source key
func (s *LocalArchive) List(_ context.Context, sourceKey string) ([]*Entry, error) {
	metaDir := filepath.Join(s.partition(sourceKey), ".meta")
	entries, err := os.ReadDir(metaDir)
	if os.IsNotExist(err) {
		return []*Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list metadata: %w", err)
	}

	out := make([]*Entry, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		id, err := uuid.Parse(strings.TrimSuffix(e.Name(), ".json"))
		if err != nil {
			continue
		}
		entry, err := s.metadata(sourceKey, id)
		if err != nil {
			continue
		}
		out = append(out, entry)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Delete removes an archived extract
func (s *LocalArchive) Delete(_ context.Context, sourceKey string, id uuid.UUID) error {
	entry, err := s.metadata(sourceKey, id)
	if err != nil {
		return err
	}

	dir := s.partition(sourceKey)
	if err := os.Remove(filepath.Join(dir, entry.Path)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	if err := os.Remove(s.metaPath(sourceKey, id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete metadata: %w", err)
	}
	return nil
}

func (s *LocalArchive) partition(sourceKey string) string {
	return filepath.Join(s.basePath, sanitizeFilename(sourceKey))
}

func (s *LocalArchive) metaPath(sourceKey string, id uuid.UUID) string {
	return filepath.Join(s.partition(sourceKey), ".meta", id.String()+".json")
}

func (s *LocalArchive) metadata(sourceKey string, id uuid.UUID) (*Entry, error) {
	data, err := os.ReadFile(s.metaPath(sourceKey, id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}
	return &entry, nil
}

func (s *LocalArchive) saveMetadata(entry *Entry) error {
	metaDir := filepath.Join(s.partition(entry.SourceKey), ".meta")
	if err := os.MkdirAll(metaDir, 0755); err != nil {
		return fmt.Errorf("failed to create metadata directory: %w", err)
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(s.metaPath(entry.SourceKey, entry.ID), data, 0644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return nil
}

// sanitizeFilename removes unsafe characters from file and partition names
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		"..", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
	)
	return replacer.Replace(name)
}
