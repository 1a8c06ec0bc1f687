package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/photo-receipts/internal/common"
	"github.com/joseph-ayodele/photo-receipts/internal/entity"
)

const (
	tablePhotos       = "photos"
	tableGroups       = "receipt_groups"
	tableGroupMembers = "receipt_group_photos"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS photos (
		id TEXT PRIMARY KEY,
		retrieval_url TEXT NOT NULL,
		recorded TEXT NOT NULL,
		taken_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS receipt_groups (
		id TEXT PRIMARY KEY,
		recorded TEXT NOT NULL,
		taken_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS receipt_group_photos (
		group_id TEXT NOT NULL REFERENCES receipt_groups(id) ON DELETE CASCADE,
		ordinal INTEGER NOT NULL,
		photo_id TEXT NOT NULL REFERENCES photos(id),
		PRIMARY KEY (group_id, ordinal)
	)`,
	`CREATE INDEX IF NOT EXISTS receipt_groups_taken_at_idx ON receipt_groups (taken_at)`,
}

// Migrate creates the registry tables if they do not exist.
func Migrate(ctx context.Context, drv *entsql.Driver, logger *slog.Logger) error {
	for _, stmt := range schemaStatements {
		if err := drv.Exec(ctx, stmt, []any{}, nil); err != nil {
			logger.Error("failed to migrate registry schema", "dialect", drv.Dialect(), "error", err)
			return fmt.Errorf("%w: migrate: %v", common.ErrDatabase, err)
		}
	}
	return nil
}

type sqlRepository struct {
	drv    *entsql.Driver
	logger *slog.Logger
}

// NewSQLRepository returns a registry backed by a SQL database reached through ent's driver.
// Postgres and SQLite are supported.
func NewSQLRepository(drv *entsql.Driver, logger *slog.Logger) PhotoRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &sqlRepository{drv: drv, logger: logger}
}

func (r *sqlRepository) builder() *entsql.DialectBuilder {
	return entsql.Dialect(r.drv.Dialect())
}

func (r *sqlRepository) Put(ctx context.Context, req PutRequest) (err error) {
	if err := validatePut(req); err != nil {
		r.logger.Error("failed to store photo", "photo_id", req.Photo.ID, "error", err)
		return err
	}

	tx, err := r.drv.Tx(ctx)
	if err != nil {
		r.logger.Error("failed to begin registry transaction", "error", err)
		return fmt.Errorf("%w: begin: %v", common.ErrDatabase, err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				r.logger.Warn("registry rollback failed", "error", rbErr)
			}
		}
	}()

	photos := []entity.Photo{req.Photo}
	if req.Group != nil {
		photos = append(photos, req.Group.Photos...)
	}
	for _, p := range photos {
		if err = r.upsertPhoto(ctx, tx, p); err != nil {
			r.logger.Error("failed to store photo", "photo_id", p.ID, "error", err)
			return fmt.Errorf("%w: store photo %s: %v", common.ErrDatabase, p.ID, err)
		}
	}
	if req.Group != nil {
		if err = r.replaceGroup(ctx, tx, *req.Group); err != nil {
			r.logger.Error("failed to store group", "group_id", req.Group.ID, "error", err)
			return fmt.Errorf("%w: store group %s: %v", common.ErrDatabase, req.Group.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		r.logger.Error("failed to commit registry transaction", "error", err)
		return fmt.Errorf("%w: commit: %v", common.ErrDatabase, err)
	}
	return nil
}

func (r *sqlRepository) upsertPhoto(ctx context.Context, tx dialect.ExecQuerier, p entity.Photo) error {
	takenAt, err := sortableTime(p.Timestamp)
	if err != nil {
		return err
	}
	q, args := r.builder().Insert(tablePhotos).
		Columns("id", "retrieval_url", "recorded", "taken_at").
		Values(p.ID, p.RetrievalURL, p.Timestamp, takenAt).
		OnConflict(entsql.ConflictColumns("id"), entsql.ResolveWithNewValues()).
		Query()
	return tx.Exec(ctx, q, args, nil)
}

func (r *sqlRepository) replaceGroup(ctx context.Context, tx dialect.ExecQuerier, g entity.Group) error {
	b := r.builder()
	takenAt, err := sortableTime(g.Timestamp)
	if err != nil {
		return err
	}
	q, args := b.Insert(tableGroups).
		Columns("id", "recorded", "taken_at").
		Values(g.ID, g.Timestamp, takenAt).
		OnConflict(entsql.ConflictColumns("id"), entsql.ResolveWithNewValues()).
		Query()
	if err := tx.Exec(ctx, q, args, nil); err != nil {
		return err
	}

	q, args = b.Delete(tableGroupMembers).Where(entsql.EQ("group_id", g.ID)).Query()
	if err := tx.Exec(ctx, q, args, nil); err != nil {
		return err
	}

	ins := b.Insert(tableGroupMembers).Columns("group_id", "ordinal", "photo_id")
	for i, m := range g.Photos {
		ins.Values(g.ID, i, m.ID)
	}
	q, args = ins.Query()
	return tx.Exec(ctx, q, args, nil)
}

func (r *sqlRepository) Get(ctx context.Context, id string) (*entity.Photo, error) {
	b := r.builder()
	q, args := b.Select("id", "retrieval_url", "recorded").
		From(b.Table(tablePhotos)).
		Where(entsql.EQ("id", id)).
		Query()

	var rows entsql.Rows
	if err := r.drv.Query(ctx, q, args, &rows); err != nil {
		r.logger.Error("failed to get photo", "photo_id", id, "error", err)
		return nil, fmt.Errorf("%w: get photo: %v", common.ErrDatabase, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("%w: get photo: %v", common.ErrDatabase, err)
		}
		return nil, ErrNotFound
	}
	var p entity.Photo
	if err := rows.Scan(&p.ID, &p.RetrievalURL, &p.Timestamp); err != nil {
		return nil, fmt.Errorf("%w: scan photo: %v", common.ErrDatabase, err)
	}
	return &p, nil
}

func (r *sqlRepository) GetGroup(ctx context.Context, groupID string) (*entity.Group, error) {
	groups, err := r.queryGroups(ctx, entsql.EQ("id", groupID))
	if err != nil {
		r.logger.Error("failed to get group", "group_id", groupID, "error", err)
		return nil, err
	}
	if len(groups) == 0 {
		return nil, ErrNotFound
	}
	return groups[0], nil
}

func (r *sqlRepository) ListGroups(ctx context.Context, from, to *time.Time) ([]*entity.Group, error) {
	var preds []*entsql.Predicate
	if from != nil {
		preds = append(preds, entsql.GTE("taken_at", boundString(from)))
	}
	if to != nil {
		preds = append(preds, entsql.LT("taken_at", boundString(to)))
	}
	var where *entsql.Predicate
	if len(preds) > 0 {
		where = entsql.And(preds...)
	}
	groups, err := r.queryGroups(ctx, where)
	if err != nil {
		r.logger.Error("failed to list groups", "error", err)
		return nil, err
	}
	return groups, nil
}

// queryGroups loads groups matching where (nil for all) and their ordered members.
func (r *sqlRepository) queryGroups(ctx context.Context, where *entsql.Predicate) ([]*entity.Group, error) {
	b := r.builder()
	sel := b.Select("id", "recorded").From(b.Table(tableGroups))
	if where != nil {
		sel.Where(where)
	}
	q, args := sel.OrderBy("taken_at", "id").Query()

	var rows entsql.Rows
	if err := r.drv.Query(ctx, q, args, &rows); err != nil {
		return nil, fmt.Errorf("%w: query groups: %v", common.ErrDatabase, err)
	}
	var (
		groups []*entity.Group
		byID   = map[string]*entity.Group{}
		ids    []any
	)
	for rows.Next() {
		g := &entity.Group{}
		if err := rows.Scan(&g.ID, &g.Timestamp); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("%w: scan group: %v", common.ErrDatabase, err)
		}
		groups = append(groups, g)
		byID[g.ID] = g
		ids = append(ids, g.ID)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("%w: query groups: %v", common.ErrDatabase, err)
	}
	_ = rows.Close()
	if len(groups) == 0 {
		return nil, nil
	}

	m := b.Table(tableGroupMembers).As("m")
	p := b.Table(tablePhotos).As("p")
	q, args = b.Select(m.C("group_id"), p.C("id"), p.C("retrieval_url"), p.C("recorded")).
		From(m).
		Join(p).On(m.C("photo_id"), p.C("id")).
		Where(entsql.In(m.C("group_id"), ids...)).
		OrderBy(m.C("group_id"), m.C("ordinal")).
		Query()

	var members entsql.Rows
	if err := r.drv.Query(ctx, q, args, &members); err != nil {
		return nil, fmt.Errorf("%w: query members: %v", common.ErrDatabase, err)
	}
	defer members.Close()
	for members.Next() {
		var gid string
		var ph entity.Photo
		if err := members.Scan(&gid, &ph.ID, &ph.RetrievalURL, &ph.Timestamp); err != nil {
			return nil, fmt.Errorf("%w: scan member: %v", common.ErrDatabase, err)
		}
		if g, ok := byID[gid]; ok {
			g.Photos = append(g.Photos, ph)
		}
	}
	if err := members.Err(); err != nil {
		return nil, fmt.Errorf("%w: query members: %v", common.ErrDatabase, err)
	}
	return groups, nil
}
