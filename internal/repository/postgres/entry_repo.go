package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"

	"github.com/and161185/filekeeper/internal/errs"
	"github.com/and161185/filekeeper/internal/fpath"
	"github.com/and161185/filekeeper/internal/model"
	"github.com/and161185/filekeeper/internal/repository"
)

// EntryRepo implements MetadataRepository using PostgreSQL.
// Master and per-user entries live in one table keyed by (user_id, path).
type EntryRepo struct {
	db  *DB
	log *zap.Logger

	insertQ     string
	selectQ     string
	deleteQ     string
	deleteManyQ string
}

// NewEntryRepo constructs an entry repository over the given table.
func NewEntryRepo(db *DB, table string, log *zap.Logger) *EntryRepo {
	if log == nil {
		log = zap.NewNop()
	}
	t := tableIdent(table)
	return &EntryRepo{
		db:  db,
		log: log,
		insertQ: fmt.Sprintf(`INSERT INTO %s (user_id, path, read, write, users)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (user_id, path) DO NOTHING`, t),
		selectQ:     fmt.Sprintf(`SELECT read, write, users, delete_time FROM %s WHERE user_id=$1 AND path=$2`, t),
		deleteQ:     fmt.Sprintf(`DELETE FROM %s WHERE user_id=$1 AND path=$2`, t),
		deleteManyQ: fmt.Sprintf(`DELETE FROM %s WHERE path=$1 AND user_id = ANY($2)`, t),
	}
}

// CreateMasterEntry inserts the owner's entry unless one already exists.
func (r *EntryRepo) CreateMasterEntry(ctx context.Context, p fpath.FilePath) (model.CreateOutcome, error) {
	e := model.NewMasterEntry(p)
	tag, err := r.db.Pool.Exec(ctx, r.insertQ, e.Owner, e.Path, e.Read, e.Write, e.Users)
	if err != nil {
		r.log.Error("create master entry", zap.String("path", e.Path), zap.Error(err))
		return 0, errs.Server("failed to create master entry")
	}
	if tag.RowsAffected() == 0 {
		return model.AlreadyExisted, nil
	}
	return model.Created, nil
}

// GetMasterEntry selects the master entry of p.
func (r *EntryRepo) GetMasterEntry(ctx context.Context, p fpath.FilePath) (*model.MasterEntry, error) {
	e := model.MasterEntry{Owner: p.Owner(), Path: p.Normalized()}
	var deleteTime pgtype.Timestamptz
	err := r.db.Pool.QueryRow(ctx, r.selectQ, e.Owner, e.Path).Scan(&e.Read, &e.Write, &e.Users, &deleteTime)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.NotFound("master entry not found")
		}
		r.log.Error("get master entry", zap.String("path", e.Path), zap.Error(err))
		return nil, errs.Server("retrieving metadata failed")
	}
	if deleteTime.Valid {
		ts := deleteTime.Time
		e.DeleteTime = &ts
	}
	return &e, nil
}

// DeleteMasterEntry removes the per-user entries of every user in the master
// entry, then the master entry itself. The master delete is attempted even if
// the fan-out failed; the fan-out error is reported afterwards.
func (r *EntryRepo) DeleteMasterEntry(ctx context.Context, p fpath.FilePath) error {
	e, err := r.GetMasterEntry(ctx, p)
	if err != nil {
		return err
	}
	fanOutErr := r.deleteUserEntries(ctx, p, e.Users)

	if _, err := r.db.Pool.Exec(ctx, r.deleteQ, p.Owner(), p.Normalized()); err != nil {
		r.log.Error("delete master entry", zap.String("path", p.Normalized()), zap.Error(err))
		return errs.Server("changing file metadata failed")
	}
	return fanOutErr
}

func (r *EntryRepo) deleteUserEntries(ctx context.Context, p fpath.FilePath, users []string) error {
	var failed []string
	for _, batch := range repository.Chunk(users, repository.FanOutBatchSize) {
		if _, err := r.db.Pool.Exec(ctx, r.deleteManyQ, p.Normalized(), batch); err != nil {
			r.log.Error("delete user entries", zap.String("path", p.Normalized()), zap.Error(err))
			failed = append(failed, batch...)
		}
	}
	if len(failed) > 0 {
		r.log.Warn("user file entries left behind",
			zap.String("path", p.Normalized()),
			zap.Strings("users", failed),
		)
		return errs.Server("failed to delete user file entries")
	}
	return nil
}

var _ repository.MetadataRepository = (*EntryRepo)(nil)
