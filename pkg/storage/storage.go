// Package storage archives raw extracts that could not be mapped or whose
// rows failed validation, so an operator can review and replay them.
package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
)

// Archive reasons.
const (
	ReasonUnresolved = "unresolved" // required fields could not be detected
	ReasonRejected   = "rejected"   // success rate below the acceptance threshold
)

// ErrNotFound is returned for unknown entries.
var ErrNotFound = errors.New("archived extract not found")

// Entry contains metadata about an archived extract
type Entry struct {
	ID          uuid.UUID `json:"id"`
	SourceKey   string    `json:"source_key"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	Reason      string    `json:"reason"`
	SuccessRate float64   `json:"success_rate"`
	Path        string    `json:"path"` // Internal storage path
	CreatedAt   time.Time `json:"created_at"`
}

// Archive stores raw extracts partitioned by source key.
type Archive interface {
	// Put stores the extract read from r. ID and CreatedAt are assigned when zero.
	Put(ctx context.Context, entry Entry, r io.Reader) (*Entry, error)

	// Open returns a reader for an archived extract and its metadata.
	Open(ctx context.Context, sourceKey string, id uuid.UUID) (io.ReadCloser, *Entry, error)

	// List returns the entries of a source key, oldest first.
	List(ctx context.Context, sourceKey string) ([]*Entry, error)

	// Delete removes an entry and its content.
	Delete(ctx context.Context, sourceKey string, id uuid.UUID) error
}
