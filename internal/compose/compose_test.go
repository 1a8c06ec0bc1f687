package compose

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/joseph-ayodele/photo-receipts/internal/common"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestPlanHeight(t *testing.T) {
	tests := []struct {
		name     string
		urlLines int
		want     float64
	}{
		{"no printed link", 0, HeaderHeight + HeaderGap + 60 + PhotoSpacing + DividerBlock + QRBand + FooterHeight},
		{"one link line", 1, HeaderHeight + HeaderGap + 60 + PhotoSpacing + DividerBlock + QRBand + URLLabel + URLLineHeight + URLGap + FooterHeight},
		{"three link lines", 3, HeaderHeight + HeaderGap + 60 + PhotoSpacing + DividerBlock + QRBand + URLLabel + 3*URLLineHeight + URLGap + FooterHeight},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := Plan([]image.Point{{X: 100, Y: 100}}, tt.urlLines)
			if err != nil {
				t.Fatalf("Plan() failed: %v", err)
			}
			if l.Height != tt.want {
				t.Errorf("height = %v, want %v", l.Height, tt.want)
			}
			if l.Width != PageWidth {
				t.Errorf("width = %v, want %v", l.Width, PageWidth)
			}
			if p := l.Photos[0]; p.W != 60 || p.H != 60 || p.Rotation != -8 {
				t.Errorf("placement = %+v", p)
			}
			if l.URLLines != tt.urlLines || l.URLY != l.QRY+QRBand {
				t.Errorf("url block = %d lines at %v, want %d at %v", l.URLLines, l.URLY, tt.urlLines, l.QRY+QRBand)
			}
			if l.FooterY != l.URLY+URLBlockHeight(tt.urlLines) {
				t.Errorf("footer at %v, want %v", l.FooterY, l.URLY+URLBlockHeight(tt.urlLines))
			}
		})
	}
}

func TestWrapURL(t *testing.T) {
	long := "https://booth.example.com/photo/3f2b8c1e-9a4d-4f6e-b1c2-7d8e9f0a1b2c?receiptId=3f2b8c1e-9a4d-4f6e-b1c2-7d8e9f0a1b2c"
	lines := wrapURL(long)
	if len(lines) < 2 {
		t.Fatalf("wrapURL gave %d lines, want the long link wrapped", len(lines))
	}
	if strings.Join(lines, "") != long {
		t.Errorf("wrapped lines lose characters: %q", lines)
	}
	if got := wrapURL("https://x.example/p"); len(got) != 1 {
		t.Errorf("short link lines = %q", got)
	}
	if got := wrapURL(""); got != nil {
		t.Errorf("empty link lines = %q", got)
	}
	if got := strings.Join(wrapURL("https://café.example/p"), ""); got != "https://caf?.example/p" {
		t.Errorf("non-ASCII link printed as %q", got)
	}
}

func TestPlanPhotoCounts(t *testing.T) {
	tests := []struct {
		name   string
		sizes  []image.Point
		target float64
	}{
		{"two", []image.Point{{X: 10, Y: 10}, {X: 10, Y: 10}}, 50},
		{"three", []image.Point{{X: 10, Y: 10}, {X: 10, Y: 10}, {X: 10, Y: 10}}, 42},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := Plan(tt.sizes, 0)
			if err != nil {
				t.Fatalf("Plan() failed: %v", err)
			}
			want := HeaderHeight + HeaderGap + float64(len(tt.sizes))*(tt.target+PhotoSpacing) + DividerBlock + QRBand + FooterHeight
			if l.Height != want {
				t.Errorf("height = %v, want %v", l.Height, want)
			}
			for i, p := range l.Photos {
				if p.W != tt.target || p.H != tt.target {
					t.Errorf("photo %d size = %vx%v, want %v", i, p.W, p.H, tt.target)
				}
				if p.Rotation != rotations[i] {
					t.Errorf("photo %d rotation = %v, want %v", i, p.Rotation, rotations[i])
				}
			}
			if l.Photos[1].X == l.Photos[0].X {
				t.Error("second photo is not offset")
			}
		})
	}
}

func TestPlanAspectRatio(t *testing.T) {
	l, err := Plan([]image.Point{{X: 400, Y: 200}, {X: 100, Y: 400}, {X: 300, Y: 300}}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if p := l.Photos[0]; p.W != 42 || p.H != 21 {
		t.Errorf("landscape = %vx%v, want 42x21", p.W, p.H)
	}
	if p := l.Photos[1]; p.W != 10.5 || p.H != 42 {
		t.Errorf("portrait = %vx%v, want 10.5x42", p.W, p.H)
	}
}

func TestPlanNoPhotos(t *testing.T) {
	if _, err := Plan(nil, 1); !errors.Is(err, ErrNoPhotos) {
		t.Errorf("Plan(nil) error = %v, want ErrNoPhotos", err)
	}
}

func TestCompose(t *testing.T) {
	c := New(Config{}, nil)
	now := time.Date(2024, 5, 4, 18, 30, 0, 0, time.UTC)
	req := Request{
		Photos: []Photo{
			{ID: "booth/abc", RetrievalURL: "https://res.cloudinary.com/demo/a.jpg", Data: pngBytes(t, 64, 48)},
			{ID: "def", RetrievalURL: "https://res.cloudinary.com/demo/b.jpg", Data: pngBytes(t, 48, 64)},
		},
		ViewURL: "https://booth.example.com/photo/3f2b8c1e-9a4d-4f6e-b1c2-7d8e9f0a1b2c?receiptId=3f2b8c1e-9a4d-4f6e-b1c2-7d8e9f0a1b2c",
		Now:     now,
	}

	doc, err := c.Compose(context.Background(), req)
	if err != nil {
		t.Fatalf("Compose() failed: %v", err)
	}
	if !bytes.HasPrefix(doc.Bytes, []byte("%PDF-")) {
		t.Errorf("output is not a PDF")
	}
	if doc.Name != "photo-receipt-booth_abc-2photos.pdf" {
		t.Errorf("name = %q", doc.Name)
	}
	if len(doc.Layout.Photos) != 2 {
		t.Errorf("layout photos = %d", len(doc.Layout.Photos))
	}
	lines := wrapURL(req.ViewURL)
	if doc.Layout.URLLines != len(lines) || len(lines) < 2 {
		t.Errorf("printed link lines = %d, want %d (>1)", doc.Layout.URLLines, len(lines))
	}
	if want := doc.Layout.QRY + QRBand + URLBlockHeight(len(lines)) + FooterHeight; doc.Layout.Height != want {
		t.Errorf("height = %v, want %v including the printed link", doc.Layout.Height, want)
	}
	// the QR image and the printed link band each carry one annotation
	if n := bytes.Count(doc.Bytes, []byte("/URI ("+req.ViewURL+")")); n != 2 {
		t.Errorf("viewing link annotations = %d, want 2", n)
	}

	again, err := c.Compose(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(doc.Bytes, again.Bytes) {
		t.Error("equal inputs produced different documents")
	}
}

func TestComposeRejects(t *testing.T) {
	c := New(Config{}, nil)
	now := time.Date(2024, 5, 4, 18, 30, 0, 0, time.UTC)

	if _, err := c.Compose(context.Background(), Request{ViewURL: "https://x.example/photo/1", Now: now}); !errors.Is(err, ErrNoPhotos) {
		t.Errorf("no photos error = %v, want ErrNoPhotos", err)
	}

	_, err := c.Compose(context.Background(), Request{
		Photos: []Photo{
			{ID: "ok", Data: pngBytes(t, 8, 8)},
			{ID: "broken", Data: []byte("not an image")},
		},
		ViewURL: "https://x.example/photo/1",
		Now:     now,
	})
	if !errors.Is(err, common.ErrComposition) {
		t.Fatalf("decode error = %v, want ErrComposition", err)
	}
	if !strings.Contains(err.Error(), "photo 2 (broken)") {
		t.Errorf("error %q does not name the photo", err)
	}

	_, err = c.Compose(context.Background(), Request{
		Photos: []Photo{{ID: "ok", Data: pngBytes(t, 8, 8)}},
		QR:     []byte("garbage"),
		Now:    now,
	})
	if !errors.Is(err, common.ErrComposition) {
		t.Errorf("bad QR error = %v, want ErrComposition", err)
	}
}

func TestFileName(t *testing.T) {
	tests := []struct {
		id    string
		count int
		want  string
	}{
		{"abc123", 1, "photo-receipt-abc123.pdf"},
		{"abc123", 3, "photo-receipt-abc123-3photos.pdf"},
		{"folder/sub id", 1, "photo-receipt-folder_sub_id.pdf"},
		{"../..", 1, "photo-receipt-photo.pdf"},
	}
	for _, tt := range tests {
		if got := FileName(tt.id, tt.count); got != tt.want {
			t.Errorf("FileName(%q, %d) = %q, want %q", tt.id, tt.count, got, tt.want)
		}
	}
}
