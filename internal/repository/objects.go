package repository

import (
	"context"

	"github.com/and161185/filekeeper/internal/fpath"
)

// ObjectStore holds the file blobs, keyed by the normalized path.
type ObjectStore interface {
	// Exists reports whether the object for p is present. A genuine absence is
	// (false, nil); any other failure is an errs.ErrServer error.
	Exists(ctx context.Context, p fpath.FilePath) (bool, error)

	// Create writes an empty object for p, overwriting any existing one.
	Create(ctx context.Context, p fpath.FilePath) error
}
