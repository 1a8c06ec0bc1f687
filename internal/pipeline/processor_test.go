package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/joseph-ayodele/photo-receipts/constants"
	"github.com/joseph-ayodele/photo-receipts/internal/async"
	"github.com/joseph-ayodele/photo-receipts/internal/common"
	"github.com/joseph-ayodele/photo-receipts/internal/compose"
	"github.com/joseph-ayodele/photo-receipts/internal/entity"
	"github.com/joseph-ayodele/photo-receipts/internal/links"
	"github.com/joseph-ayodele/photo-receipts/internal/repository"
	"github.com/joseph-ayodele/photo-receipts/internal/transport"
)

type fakeUploader struct {
	mu     sync.Mutex
	calls  int
	failOn string // filename suffix that fails
}

func (u *fakeUploader) Upload(ctx context.Context, up transport.Upload) (transport.Result, error) {
	u.mu.Lock()
	u.calls++
	u.mu.Unlock()
	if u.failOn != "" && strings.HasSuffix(up.Filename, u.failOn) {
		return transport.Result{}, fmt.Errorf("%w: status 500", transport.ErrUpload)
	}
	if up.ContentType != constants.ContentTypeJPEG || len(up.Data) == 0 {
		return transport.Result{}, errors.New("bad upload payload")
	}
	id := "booth/" + strings.TrimSuffix(up.Filename, ".jpg")
	return transport.Result{ID: id, RetrievalURL: "https://res.cloudinary.com/demo/image/upload/v1/" + id + ".jpg"}, nil
}

type fakeQueue struct{ jobs []async.Job }

func (q *fakeQueue) Enqueue(_ context.Context, job async.Job) error {
	q.jobs = append(q.jobs, job)
	return nil
}
func (q *fakeQueue) Shutdown(context.Context) {}

type fakeGallery struct {
	groups []entity.Group
	urls   []string
}

func (g *fakeGallery) ReceiptCreated(group entity.Group, viewURL string, _ time.Time) {
	g.groups = append(g.groups, group)
	g.urls = append(g.urls, viewURL)
}

func still(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 150, B: 100, A: 255})
		}
	}
	return img
}

var fixedNow = time.Date(2024, 5, 4, 18, 30, 0, 0, time.UTC)

func newProcessor(up transport.Uploader, repo repository.PhotoRepository, q async.Queue, gal Publisher) *Processor {
	return NewProcessor(Deps{
		Uploader: up,
		Photos:   repo,
		Composer: compose.New(compose.Config{}, nil),
		Verify:   q,
		Gallery:  gal,
		Origin:   "https://booth.example.com",
		Now:      func() time.Time { return fixedNow },
	}, nil)
}

func TestProcessIssuesReceipt(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository(nil)
	q := &fakeQueue{}
	gal := &fakeGallery{}
	p := newProcessor(&fakeUploader{}, repo, q, gal)

	res, err := p.Process(ctx, []Capture{
		{Image: still(32, 24), Filter: constants.FilterSepia},
		{Image: still(24, 32), Filter: constants.FilterNone},
	})
	if err != nil {
		t.Fatalf("Process() failed: %v", err)
	}

	if len(res.Group.Photos) != 2 || res.Group.Timestamp != entity.FormatTimestamp(fixedNow) {
		t.Fatalf("group = %+v", res.Group)
	}
	if res.ViewURL != links.Group("https://booth.example.com", res.Group.ID) {
		t.Errorf("view url = %q", res.ViewURL)
	}
	stored, err := repo.GetGroup(ctx, res.Group.ID)
	if err != nil {
		t.Fatalf("group not registered: %v", err)
	}
	if stored.Photos[0].ID != res.Group.Photos[0].ID || stored.Photos[1].RetrievalURL != res.Group.Photos[1].RetrievalURL {
		t.Errorf("stored group = %+v", stored)
	}
	if want := compose.FileName(res.Group.Photos[0].ID, 2); res.Document.Name != want {
		t.Errorf("document name = %q, want %q", res.Document.Name, want)
	}
	if len(q.jobs) != 2 || q.jobs[0].GroupID != res.Group.ID {
		t.Errorf("verify jobs = %+v", q.jobs)
	}
	if len(gal.groups) != 1 || gal.urls[0] != res.ViewURL {
		t.Errorf("gallery events = %+v", gal.groups)
	}
}

func TestProcessUploadFailureWritesNothing(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository(nil)
	q := &fakeQueue{}
	gal := &fakeGallery{}
	p := newProcessor(&fakeUploader{failOn: "-2.jpg"}, repo, q, gal)

	res, err := p.Process(ctx, []Capture{
		{Image: still(8, 8)},
		{Image: still(8, 8)},
		{Image: still(8, 8)},
	})
	if err == nil || res != nil {
		t.Fatalf("Process() = %v, %v; want failure", res, err)
	}
	if !errors.Is(err, transport.ErrUpload) || !errors.Is(err, common.ErrUpstream) {
		t.Errorf("error = %v, want upload failure", err)
	}
	groups, _ := repo.ListGroups(ctx, nil, nil)
	if len(groups) != 0 {
		t.Errorf("registry holds %d groups after a failed upload", len(groups))
	}
	if len(q.jobs) != 0 || len(gal.groups) != 0 {
		t.Error("follow-ups ran for a failed receipt")
	}
}

func TestProcessPhotoCount(t *testing.T) {
	p := newProcessor(&fakeUploader{}, repository.NewMemoryRepository(nil), nil, nil)
	for _, n := range []int{0, 4} {
		captures := make([]Capture, n)
		for i := range captures {
			captures[i] = Capture{Image: still(4, 4)}
		}
		if _, err := p.Process(context.Background(), captures); !errors.Is(err, common.ErrInvalidInput) {
			t.Errorf("%d photos: error = %v, want ErrInvalidInput", n, err)
		}
	}
}
