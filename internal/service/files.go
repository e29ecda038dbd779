package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/and161185/filekeeper/internal/errs"
	"github.com/and161185/filekeeper/internal/fpath"
	"github.com/and161185/filekeeper/internal/model"
	"github.com/and161185/filekeeper/internal/repository"
)

// FileService creates files across the metadata and object stores.
type FileService interface {
	// Create makes p exist in both stores or in neither.
	Create(ctx context.Context, p fpath.FilePath) error
}

// FileServiceImpl coordinates the two stores. The metadata conditional create
// decides which caller owns the creation; object store mutations are
// compensated relative to its outcome.
type FileServiceImpl struct {
	meta    repository.MetadataRepository
	objects repository.ObjectStore
	log     *zap.Logger
}

// NewFileService wires the coordinator with its stores.
func NewFileService(meta repository.MetadataRepository, objects repository.ObjectStore, log *zap.Logger) *FileServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &FileServiceImpl{meta: meta, objects: objects, log: log}
}

// Create runs the creation protocol:
//  1. probe the object store;
//  2. conditionally create the master entry;
//  3. resolve (object present, entry outcome);
//  4. on a clean win, create the object, retracting the entry if that fails.
//
// Every compensating delete is attempted once and never retried.
func (s *FileServiceImpl) Create(ctx context.Context, p fpath.FilePath) error {
	exists, err := s.objects.Exists(ctx, p)
	if err != nil {
		return err
	}

	outcome, err := s.meta.CreateMasterEntry(ctx, p)
	if err != nil {
		return err
	}

	switch {
	case outcome == model.AlreadyExisted:
		return errs.Conflict("file already exists")

	case exists:
		// Object without metadata: a delete in flight or an orphaned object.
		// The entry just created must not stay committed.
		if err := s.meta.DeleteMasterEntry(ctx, p); err != nil {
			s.log.Error("retract master entry",
				zap.String("owner", p.Owner()),
				zap.String("path", p.Normalized()),
				zap.Error(err),
			)
			return errs.Server("failed to create file")
		}
		return errs.Server("file may still be in the process of being deleted, wait a few seconds and retry the request")
	}

	if objErr := s.objects.Create(ctx, p); objErr != nil {
		if err := s.meta.DeleteMasterEntry(ctx, p); err != nil {
			s.log.Error("orphaned master entry, file object missing",
				zap.String("owner", p.Owner()),
				zap.String("path", p.Normalized()),
				zap.NamedError("objectError", objErr),
				zap.NamedError("compensationError", err),
			)
			return errs.Server("failed to create file")
		}
		s.log.Warn("file object create failed, master entry retracted",
			zap.String("owner", p.Owner()),
			zap.String("path", p.Normalized()),
			zap.Error(objErr),
		)
		return errs.Server("failed to create file")
	}
	return nil
}

var _ FileService = (*FileServiceImpl)(nil)
