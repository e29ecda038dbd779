// Package repository defines storage interfaces implemented by concrete backends.
//
// Implementations classify backend failures into the errs taxonomy; raw driver
// or SDK errors never cross this boundary.
package repository

import (
	"context"

	"github.com/and161185/filekeeper/internal/fpath"
	"github.com/and161185/filekeeper/internal/model"
)

// FanOutBatchSize bounds the number of per-user entries removed per bulk delete.
const FanOutBatchSize = 25

// MetadataRepository owns master and per-user access entries.
type MetadataRepository interface {
	// CreateMasterEntry inserts the master entry for p only if no entry exists for that key.
	CreateMasterEntry(ctx context.Context, p fpath.FilePath) (model.CreateOutcome, error)

	// GetMasterEntry loads the master entry for p (errs.ErrNotFound if absent).
	GetMasterEntry(ctx context.Context, p fpath.FilePath) (*model.MasterEntry, error)

	// DeleteMasterEntry removes every per-user entry of p and then the master entry.
	DeleteMasterEntry(ctx context.Context, p fpath.FilePath) error
}

// Chunk splits users into slices of at most size elements.
func Chunk(users []string, size int) [][]string {
	if size <= 0 {
		size = FanOutBatchSize
	}
	var out [][]string
	for start := 0; start < len(users); start += size {
		end := min(start+size, len(users))
		out = append(out, users[start:end])
	}
	return out
}
