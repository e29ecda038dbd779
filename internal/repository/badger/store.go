// Package badger provides an embedded BadgerDB metadata repository.
//
// Key layout:
//
//	e:<user>\x00<path>   entry (JSON)
//
// The master entry of a file is the entry keyed by its owner.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/and161185/filekeeper/internal/errs"
	"github.com/and161185/filekeeper/internal/fpath"
	"github.com/and161185/filekeeper/internal/model"
	"github.com/and161185/filekeeper/internal/repository"
)

const (
	prefixEntry = "e:"

	// maxConflictRetries bounds re-runs of a conditional create whose commit
	// lost a race. A re-run observes the winner's key and reports AlreadyExisted.
	maxConflictRetries = 8
)

// entry is the stored value.
type entry struct {
	Read       bool       `json:"read"`
	Write      bool       `json:"write"`
	Users      []string   `json:"users"`
	DeleteTime *time.Time `json:"delete-time,omitempty"`
}

// Store implements MetadataRepository on BadgerDB.
type Store struct {
	db  *badgerdb.DB
	log *zap.Logger
}

// Open opens (or creates) a database in dir. An empty dir opens an in-memory database.
func Open(dir string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	opts := badgerdb.DefaultOptions(dir).WithLogger(zapLogger{log.Sugar().Named("badger")})
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Store{db: db, log: log}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

func keyEntry(user, path string) []byte {
	return []byte(prefixEntry + user + "\x00" + path)
}

// CreateMasterEntry writes the owner's entry only if its key is absent.
func (s *Store) CreateMasterEntry(ctx context.Context, p fpath.FilePath) (model.CreateOutcome, error) {
	e := model.NewMasterEntry(p)
	val, err := json.Marshal(entry{Read: e.Read, Write: e.Write, Users: e.Users})
	if err != nil {
		s.log.Error("marshal master entry", zap.String("path", e.Path), zap.Error(err))
		return 0, errs.Server("failed to create master entry")
	}
	k := keyEntry(e.Owner, e.Path)

	var outcome model.CreateOutcome
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return 0, errs.Server("failed to create master entry")
		}
		err = s.db.Update(func(txn *badgerdb.Txn) error {
			_, err := txn.Get(k)
			if err == nil {
				outcome = model.AlreadyExisted
				return nil
			}
			if !errors.Is(err, badgerdb.ErrKeyNotFound) {
				return err
			}
			outcome = model.Created
			return txn.Set(k, val)
		})
		if !errors.Is(err, badgerdb.ErrConflict) {
			break
		}
	}
	if err != nil {
		s.log.Error("create master entry", zap.String("path", e.Path), zap.Error(err))
		return 0, errs.Server("failed to create master entry")
	}
	return outcome, nil
}

// GetMasterEntry reads the owner's entry.
func (s *Store) GetMasterEntry(ctx context.Context, p fpath.FilePath) (*model.MasterEntry, error) {
	var (
		stored entry
		found  = true
	)
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(keyEntry(p.Owner(), p.Normalized()))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			found = false
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			return json.Unmarshal(v, &stored)
		})
	})
	if err != nil {
		s.log.Error("get master entry", zap.String("path", p.Normalized()), zap.Error(err))
		return nil, errs.Server("retrieving metadata failed")
	}
	if !found {
		return nil, errs.NotFound("master entry not found")
	}
	return &model.MasterEntry{
		Owner:      p.Owner(),
		Path:       p.Normalized(),
		Read:       stored.Read,
		Write:      stored.Write,
		Users:      stored.Users,
		DeleteTime: stored.DeleteTime,
	}, nil
}

// DeleteMasterEntry removes the per-user entries with a write batch, then the
// master entry. The master delete is attempted even if the batch failed.
func (s *Store) DeleteMasterEntry(ctx context.Context, p fpath.FilePath) error {
	e, err := s.GetMasterEntry(ctx, p)
	if err != nil {
		return err
	}
	fanOutErr := s.deleteUserEntries(p, e.Users)

	err = s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Delete(keyEntry(p.Owner(), p.Normalized()))
	})
	if err != nil {
		s.log.Error("delete master entry", zap.String("path", p.Normalized()), zap.Error(err))
		return errs.Server("changing file metadata failed")
	}
	return fanOutErr
}

func (s *Store) deleteUserEntries(p fpath.FilePath, users []string) error {
	var failed []string
	for _, batch := range repository.Chunk(users, repository.FanOutBatchSize) {
		if err := s.deleteBatch(p, batch); err != nil {
			s.log.Error("delete user entries", zap.String("path", p.Normalized()), zap.Error(err))
			failed = append(failed, batch...)
		}
	}
	if len(failed) > 0 {
		s.log.Warn("user file entries left behind",
			zap.String("path", p.Normalized()),
			zap.Strings("users", failed),
		)
		return errs.Server("failed to delete user file entries")
	}
	return nil
}

func (s *Store) deleteBatch(p fpath.FilePath, users []string) error {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, u := range users {
		if err := wb.Delete(keyEntry(u, p.Normalized())); err != nil {
			return err
		}
	}
	return wb.Flush()
}

var _ repository.MetadataRepository = (*Store)(nil)
