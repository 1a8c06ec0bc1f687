package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/joseph-ayodele/photo-receipts/internal/common"
	"github.com/joseph-ayodele/photo-receipts/internal/entity"
)

// ErrNotFound is returned by lookups for records the registry does not hold.
var ErrNotFound = fmt.Errorf("registry record: %w", common.ErrNotFound)

// PutRequest stores a photo and, when Group is set, the group and every member photo.
type PutRequest struct {
	Photo entity.Photo
	Group *entity.Group
}

// PhotoRepository is the metadata registry: photo id to retrieval URL, group id to members.
type PhotoRepository interface {
	Put(ctx context.Context, req PutRequest) error
	Get(ctx context.Context, id string) (*entity.Photo, error)
	GetGroup(ctx context.Context, groupID string) (*entity.Group, error)
	// ListGroups returns groups taken in [from, to), oldest first. Nil bounds are open.
	ListGroups(ctx context.Context, from, to *time.Time) ([]*entity.Group, error)
}

// sortableLayout is a fixed-width UTC layout whose lexical order is chronological.
const sortableLayout = "2006-01-02T15:04:05.000000000Z"

func sortableTime(ts string) (string, error) {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return "", fmt.Errorf("%w: timestamp %q: %v", common.ErrInvalidInput, ts, err)
	}
	return t.UTC().Format(sortableLayout), nil
}

func boundString(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(sortableLayout)
}

func validatePut(req PutRequest) error {
	if req.Photo.ID == "" || req.Photo.RetrievalURL == "" {
		return fmt.Errorf("%w: photo id and retrieval url are required", common.ErrInvalidInput)
	}
	if _, err := sortableTime(req.Photo.Timestamp); err != nil {
		return err
	}
	if req.Group == nil {
		return nil
	}
	if req.Group.ID == "" {
		return fmt.Errorf("%w: group id is required", common.ErrInvalidInput)
	}
	if len(req.Group.Photos) == 0 {
		return fmt.Errorf("%w: group %s has no members", common.ErrInvalidInput, req.Group.ID)
	}
	if _, err := sortableTime(req.Group.Timestamp); err != nil {
		return err
	}
	for i, m := range req.Group.Photos {
		if m.ID == "" || m.RetrievalURL == "" {
			return fmt.Errorf("%w: group member %d is incomplete", common.ErrInvalidInput, i)
		}
		if _, err := sortableTime(m.Timestamp); err != nil {
			return err
		}
	}
	return nil
}

func inRange(takenAt string, from, to *time.Time) bool {
	if lo := boundString(from); lo != "" && takenAt < lo {
		return false
	}
	if hi := boundString(to); hi != "" && takenAt >= hi {
		return false
	}
	return true
}
