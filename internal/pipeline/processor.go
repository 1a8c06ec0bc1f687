// Package pipeline turns captured stills into an issued photo receipt.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/photo-receipts/constants"
	"github.com/joseph-ayodele/photo-receipts/internal/async"
	"github.com/joseph-ayodele/photo-receipts/internal/common"
	"github.com/joseph-ayodele/photo-receipts/internal/compose"
	"github.com/joseph-ayodele/photo-receipts/internal/entity"
	"github.com/joseph-ayodele/photo-receipts/internal/filter"
	"github.com/joseph-ayodele/photo-receipts/internal/links"
	"github.com/joseph-ayodele/photo-receipts/internal/qr"
	"github.com/joseph-ayodele/photo-receipts/internal/repository"
	"github.com/joseph-ayodele/photo-receipts/internal/transport"
)

const jpegQuality = 92

// Capture is one still taken at the booth and the filter chosen for it.
type Capture struct {
	Image  image.Image
	Filter constants.Filter
}

// Result is an issued receipt.
type Result struct {
	Group    entity.Group
	ViewURL  string
	Document *compose.Document
}

// Publisher announces issued receipts. The live gallery implements it.
type Publisher interface {
	ReceiptCreated(g entity.Group, viewURL string, at time.Time)
}

// Deps are the collaborators of a Processor. Verify and Gallery are optional.
type Deps struct {
	Uploader transport.Uploader
	Photos   repository.PhotoRepository
	Composer *compose.Composer
	Verify   async.Queue
	Gallery  Publisher
	// Origin is the public origin viewing links point at.
	Origin string
	// Now defaults to time.Now.
	Now func() time.Time
}

// Processor coordinates filter, upload, registry, QR and composition for one receipt.
type Processor struct {
	Logger *slog.Logger
	deps   Deps
}

func NewProcessor(deps Deps, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Processor{Logger: logger, deps: deps}
}

// Process issues one receipt. Uploads run concurrently; the registry is written only after all of
// them succeed, and any failure aborts the whole receipt without a document.
func (p *Processor) Process(ctx context.Context, captures []Capture) (*Result, error) {
	now := p.deps.Now().UTC()
	start := time.Now()
	reqID := common.RequestIDFromContext(ctx)

	// 1) validate
	if n := len(captures); n == 0 || n > constants.MaxPhotosPerReceipt {
		return nil, common.NewAppError("INVALID_PHOTO_COUNT",
			fmt.Sprintf("a receipt holds 1 to %d photos, got %d", constants.MaxPhotosPerReceipt, n),
			common.ErrInvalidInput)
	}
	for i, c := range captures {
		if c.Image == nil || c.Image.Bounds().Empty() {
			return nil, common.NewAppError("INVALID_PHOTO", fmt.Sprintf("photo %d is empty", i+1), common.ErrInvalidInput)
		}
	}

	groupID := uuid.New().String()
	ctx = common.WithReceiptID(ctx, groupID)

	// 2) filter + encode
	encoded := make([][]byte, len(captures))
	for i, c := range captures {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, filter.ApplyImage(c.Image, c.Filter), &jpeg.Options{Quality: jpegQuality}); err != nil {
			return nil, fmt.Errorf("encode photo %d: %w", i+1, err)
		}
		encoded[i] = buf.Bytes()
	}

	// 3) upload, all or nothing
	uploaded := make([]transport.Result, len(captures))
	g, gctx := errgroup.WithContext(ctx)
	for i := range encoded {
		g.Go(func() error {
			res, err := p.deps.Uploader.Upload(gctx, transport.Upload{
				Filename:    fmt.Sprintf("booth-%d-%d.jpg", now.UnixMilli(), i+1),
				ContentType: constants.ContentTypeJPEG,
				Data:        encoded[i],
			})
			if err != nil {
				return fmt.Errorf("photo %d: %w", i+1, err)
			}
			uploaded[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		p.Logger.Error("receipt.upload.failed", "req_id", reqID, "group_id", groupID, "photos", len(captures), "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil, err
	}

	// 4) registry
	ts := entity.FormatTimestamp(now)
	group := entity.Group{ID: groupID, Timestamp: ts, Photos: make([]entity.Photo, len(uploaded))}
	for i, u := range uploaded {
		group.Photos[i] = entity.Photo{ID: u.ID, RetrievalURL: u.RetrievalURL, Timestamp: ts}
	}
	if err := p.deps.Photos.Put(ctx, repository.PutRequest{Photo: group.Photos[0], Group: &group}); err != nil {
		p.Logger.Error("receipt.registry.failed", "req_id", reqID, "group_id", group.ID, "error", err)
		return nil, err
	}

	// 5) link + QR
	viewURL := links.Group(p.deps.Origin, group.ID)
	qrPNG, err := qr.Encode(viewURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrComposition, err)
	}

	// 6) compose
	req := compose.Request{ViewURL: viewURL, QR: qrPNG, Now: now, Photos: make([]compose.Photo, len(group.Photos))}
	for i, ph := range group.Photos {
		req.Photos[i] = compose.Photo{ID: ph.ID, RetrievalURL: ph.RetrievalURL, Data: encoded[i]}
	}
	doc, err := p.deps.Composer.Compose(ctx, req)
	if err != nil {
		p.Logger.Error("receipt.compose.failed", "req_id", reqID, "group_id", group.ID, "error", err)
		return nil, err
	}

	// 7) follow-ups never fail the receipt
	if p.deps.Verify != nil {
		for _, ph := range group.Photos {
			job := async.Job{PhotoID: ph.ID, GroupID: group.ID, URL: ph.RetrievalURL, SubmittedAt: now, TraceID: reqID}
			if err := p.deps.Verify.Enqueue(ctx, job); err != nil {
				p.Logger.Warn("receipt.verify.not_queued", "req_id", reqID, "photo_id", ph.ID, "error", err)
			}
		}
	}
	if p.deps.Gallery != nil {
		p.deps.Gallery.ReceiptCreated(group, viewURL, now)
	}

	p.Logger.Info("receipt.issue.ok",
		"req_id", reqID,
		"group_id", group.ID,
		"photos", len(group.Photos),
		"document", doc.Name,
		"bytes", len(doc.Bytes),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return &Result{Group: group, ViewURL: viewURL, Document: doc}, nil
}
