package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/joseph-ayodele/photo-receipts/constants"
	"github.com/joseph-ayodele/photo-receipts/internal/capture"
	"github.com/joseph-ayodele/photo-receipts/internal/common"
	"github.com/joseph-ayodele/photo-receipts/internal/pipeline"
	"github.com/joseph-ayodele/photo-receipts/internal/utils"
)

// handleCreateReceipt accepts 1-3 "photo" files plus "filter" values and answers with the receipt PDF.
// One filter applies to every photo; otherwise filters pair with photos by position.
func (s *Server) handleCreateReceipt(w http.ResponseWriter, r *http.Request) {
	if s.deps.Processor == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "receipt issuing is not configured", Code: "UNAVAILABLE"})
		return
	}
	limit := int64(s.deps.MaxUploadMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		s.writeError(w, r, common.NewAppError("INVALID_UPLOAD", "expected a multipart form within the upload limit", common.ErrInvalidInput))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	files := r.MultipartForm.File["photo"]
	if len(files) == 0 || len(files) > constants.MaxPhotosPerReceipt {
		s.writeError(w, r, common.NewAppError("INVALID_PHOTO_COUNT",
			fmt.Sprintf("send 1 to %d photo files", constants.MaxPhotosPerReceipt), common.ErrInvalidInput))
		return
	}
	filters := r.MultipartForm.Value["filter"]
	if len(filters) > 1 && len(filters) != len(files) {
		s.writeError(w, r, common.NewAppError("INVALID_FILTER",
			"send one filter, or one filter per photo", common.ErrInvalidInput))
		return
	}

	captures := make([]pipeline.Capture, len(files))
	for i, fh := range files {
		name := ""
		switch len(filters) {
		case 0:
		case 1:
			name = filters[0]
		default:
			name = filters[i]
		}
		kind, err := constants.ParseFilter(name)
		if err != nil {
			s.writeError(w, r, common.NewAppError("INVALID_FILTER", err.Error(), common.ErrInvalidInput))
			return
		}

		f, err := fh.Open()
		if err != nil {
			s.writeError(w, r, fmt.Errorf("%w: open photo %d: %v", common.ErrInvalidInput, i+1, err))
			return
		}
		decoded, err := capture.Decode(f)
		_ = f.Close()
		if err != nil {
			s.writeError(w, r, common.NewAppError("INVALID_PHOTO",
				fmt.Sprintf("photo %d (%s) is not a readable image", i+1, fh.Filename), common.ErrInvalidInput))
			return
		}
		captures[i] = pipeline.Capture{Image: decoded.Image, Filter: kind}
	}

	res, err := s.deps.Processor.Process(r.Context(), captures)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", constants.ContentTypePDF)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, res.Document.Name))
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Document.Bytes)))
	w.Header().Set("X-Receipt-Id", res.Group.ID)
	w.Header().Set("X-View-Url", res.ViewURL)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Document.Bytes)
}

// handleExport streams an XLSX of receipt groups for ?from=YYYY-MM-DD&to=YYYY-MM-DD (both optional, inclusive).
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if s.deps.Export == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "export is not configured", Code: "UNAVAILABLE"})
		return
	}
	parseDate := func(key string) (*time.Time, error) {
		t, err := utils.ParseOptionalYMD(r.URL.Query().Get(key))
		if err != nil {
			return nil, common.NewAppError("INVALID_DATE", key+" must be YYYY-MM-DD", common.ErrInvalidInput)
		}
		return t, nil
	}
	from, err := parseDate("from")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	to, err := parseDate("to")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if from != nil && to != nil && to.Before(*from) {
		s.writeError(w, r, common.NewAppError("INVALID_DATE", "to must not be before from", common.ErrInvalidInput))
		return
	}

	xlsx, err := s.deps.Export.ExportGroupsXLSX(r.Context(), from, to)
	if err != nil {
		s.logger.Error("export.xlsx.failed", "req_id", common.RequestIDFromContext(r.Context()), "err", err)
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="photo-receipts.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(xlsx)
}
