package repository

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/joseph-ayodele/photo-receipts/internal/entity"
)

type memoryRepository struct {
	mu     sync.RWMutex
	photos map[string]entity.Photo
	groups map[string]entity.Group
	logger *slog.Logger
}

// NewMemoryRepository returns a process-local registry. Records do not survive a restart.
func NewMemoryRepository(logger *slog.Logger) PhotoRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &memoryRepository{
		photos: make(map[string]entity.Photo),
		groups: make(map[string]entity.Group),
		logger: logger,
	}
}

func (r *memoryRepository) Put(ctx context.Context, req PutRequest) error {
	if err := validatePut(req); err != nil {
		r.logger.Error("failed to store photo", "photo_id", req.Photo.ID, "error", err)
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.photos[req.Photo.ID] = req.Photo
	if req.Group != nil {
		g := *req.Group
		g.Photos = append([]entity.Photo(nil), req.Group.Photos...)
		for _, m := range g.Photos {
			r.photos[m.ID] = m
		}
		r.groups[g.ID] = g
	}
	return nil
}

func (r *memoryRepository) Get(ctx context.Context, id string) (*entity.Photo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.photos[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (r *memoryRepository) GetGroup(ctx context.Context, groupID string) (*entity.Group, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.groups[groupID]
	if !ok {
		return nil, ErrNotFound
	}
	g.Photos = append([]entity.Photo(nil), g.Photos...)
	return &g, nil
}

func (r *memoryRepository) ListGroups(ctx context.Context, from, to *time.Time) ([]*entity.Group, error) {
	type keyed struct {
		at string
		g  entity.Group
	}
	r.mu.RLock()
	var rows []keyed
	for _, g := range r.groups {
		at, err := sortableTime(g.Timestamp)
		if err != nil || !inRange(at, from, to) {
			continue
		}
		g.Photos = append([]entity.Photo(nil), g.Photos...)
		rows = append(rows, keyed{at: at, g: g})
	}
	r.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].at != rows[j].at {
			return rows[i].at < rows[j].at
		}
		return rows[i].g.ID < rows[j].g.ID
	})
	out := make([]*entity.Group, len(rows))
	for i := range rows {
		out[i] = &rows[i].g
	}
	return out, nil
}
