package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/joseph-ayodele/photo-receipts/constants"
	"github.com/joseph-ayodele/photo-receipts/internal/common"
	"github.com/joseph-ayodele/photo-receipts/internal/entity"
	"github.com/joseph-ayodele/photo-receipts/internal/repository"
	"github.com/joseph-ayodele/photo-receipts/internal/transport"
)

const maxRegistryBody = 64 << 10

func photoSchemaProps() map[string]any {
	return map[string]any{
		"identifier":   map[string]any{"type": "string", "minLength": 1, "maxLength": 512},
		"retrievalUrl": map[string]any{"type": "string", "minLength": 1, "maxLength": 2048},
		"timestamp":    map[string]any{"type": "string", "minLength": 1},
	}
}

var putPhotoSchema = common.MustCompileSchema("put-photo.json", func() map[string]any {
	props := photoSchemaProps()
	props["groupId"] = map[string]any{"type": "string", "minLength": 1, "maxLength": 128}
	props["members"] = map[string]any{
		"type":     "array",
		"minItems": 1,
		"maxItems": constants.MaxPhotosPerReceipt,
		"items": map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"properties":           photoSchemaProps(),
			"required":             []string{"identifier", "retrievalUrl", "timestamp"},
		},
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             []string{"identifier", "retrievalUrl", "timestamp"},
		"dependentRequired": map[string]any{
			"members": []string{"groupId"},
			"groupId": []string{"members"},
		},
	}
}())

type putPhotoRequest struct {
	entity.Photo
	GroupID string         `json:"groupId,omitempty"`
	Members []entity.Photo `json:"members,omitempty"`
}

// handlePutPhoto registers a photo, or a whole receipt group when groupId and members are given.
func (s *Server) handlePutPhoto(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxRegistryBody+1))
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: read body: %v", common.ErrInvalidInput, err))
		return
	}
	if len(raw) > maxRegistryBody {
		s.writeError(w, r, common.NewAppError("BODY_TOO_LARGE", "request body too large", common.ErrInvalidInput))
		return
	}
	if err := common.ValidateJSON(putPhotoSchema, raw); err != nil {
		s.writeError(w, r, common.NewAppError("INVALID_ARGUMENT", err.Error(), err))
		return
	}
	var req putPhotoRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", common.ErrInvalidInput, err))
		return
	}

	v := common.NewValidator()
	s.validatePhoto(v, "", req.Photo)
	for i, m := range req.Members {
		s.validatePhoto(v, fmt.Sprintf("members[%d].", i), m)
	}
	if err := v.Error(); err != nil {
		s.writeError(w, r, common.NewAppError("INVALID_ARGUMENT", v.ErrorMessage(), err))
		return
	}

	put := repository.PutRequest{Photo: req.Photo}
	if req.GroupID != "" {
		put.Group = &entity.Group{ID: req.GroupID, Photos: req.Members, Timestamp: req.Timestamp}
	}
	if err := s.deps.Photos.Put(r.Context(), put); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "identifier": req.ID})
}

func (s *Server) validatePhoto(v *common.Validator, prefix string, p entity.Photo) {
	v.Field(prefix+"identifier", p.ID, common.Required, common.MaxLength(512))
	v.Field(prefix+"retrievalUrl", p.RetrievalURL, common.Required, common.AbsoluteURL, s.allowedMediaHost)
	v.Field(prefix+"timestamp", p.Timestamp, common.Required, common.Timestamp)
}

func (s *Server) allowedMediaHost(fieldName string, value interface{}) *common.ValidationError {
	str, _ := value.(string)
	if !transport.HostAllowed(str, s.deps.MediaHosts) {
		return &common.ValidationError{Field: fieldName, Value: value, Message: "must be an https URL on an allowed media host"}
	}
	return nil
}

// handleGetPhoto looks a photo up by ?id= or a receipt group by ?receiptId=.
func (s *Server) handleGetPhoto(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	id := strings.TrimSpace(q.Get("id"))
	groupID := strings.TrimSpace(q.Get("receiptId"))

	switch {
	case groupID != "":
		g, err := s.deps.Photos.GetGroup(r.Context(), groupID)
		if err != nil {
			s.writeLookupError(w, r, err, "Receipt not found")
			return
		}
		writeJSON(w, http.StatusOK, g)
	case id != "":
		p, err := s.deps.Photos.Get(r.Context(), id)
		if err != nil {
			s.writeLookupError(w, r, err, "Photo not found")
			return
		}
		writeJSON(w, http.StatusOK, p)
	default:
		s.writeError(w, r, common.NewAppError("MISSING_ID", "Photo ID or Receipt ID required", common.ErrInvalidInput))
	}
}

func (s *Server) writeLookupError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	if errors.Is(err, repository.ErrNotFound) {
		s.writeError(w, r, common.NewAppError("NOT_FOUND", notFound, err))
		return
	}
	s.writeError(w, r, err)
}
