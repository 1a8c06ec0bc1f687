// Package compose renders the printable photo receipt as a narrow, single-page PDF.
package compose

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/nfnt/resize"

	"github.com/joseph-ayodele/photo-receipts/internal/common"
	"github.com/joseph-ayodele/photo-receipts/internal/qr"
)

const (
	MaxEmbedPixels = 1200
	jpegQuality    = 90

	TimestampLayout = "Jan 2, 2006 • 15:04"
	QRCaption       = "Scan or tap to view"
)

// Photo is one filtered, encoded image to place on the receipt.
type Photo struct {
	ID           string
	RetrievalURL string
	Data         []byte // JPEG, PNG or GIF
}

// Request carries everything a receipt needs. Now is the operation time; the composer never reads the clock.
type Request struct {
	Photos  []Photo
	ViewURL string
	// QR is a PNG raster of ViewURL. When empty it is encoded from ViewURL.
	QR  []byte
	Now time.Time
}

// Document is the rendered receipt.
type Document struct {
	Name   string
	Bytes  []byte
	Layout Layout
}

// Config holds the fixed receipt texts.
type Config struct {
	Title    string
	Footer   string
	Location *time.Location
}

// Composer renders receipts.
type Composer struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a composer. Empty texts fall back to defaults.
func New(cfg Config, logger *slog.Logger) *Composer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Title == "" {
		cfg.Title = "PHOTO BOOTH"
	}
	if cfg.Footer == "" {
		cfg.Footer = "Thanks for stopping by!"
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Composer{cfg: cfg, logger: logger}
}

// Compose renders the receipt. Any undecodable photo fails the whole document.
func (c *Composer) Compose(ctx context.Context, req Request) (*Document, error) {
	start := time.Now()
	if len(req.Photos) == 0 {
		return nil, ErrNoPhotos
	}

	prepared := make([][]byte, len(req.Photos))
	sizes := make([]image.Point, len(req.Photos))
	for i, p := range req.Photos {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, size, err := prepare(p.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: photo %d (%s) could not be decoded: %w", common.ErrComposition, i+1, p.ID, err)
		}
		prepared[i] = data
		sizes[i] = size
	}

	qrPNG := req.QR
	if len(qrPNG) == 0 {
		var err error
		if qrPNG, err = qr.Encode(req.ViewURL); err != nil {
			return nil, fmt.Errorf("%w: viewing link could not be encoded: %w", common.ErrComposition, err)
		}
	}
	if _, err := png.DecodeConfig(bytes.NewReader(qrPNG)); err != nil {
		return nil, fmt.Errorf("%w: QR image could not be decoded: %w", common.ErrComposition, err)
	}

	urlLines := wrapURL(req.ViewURL)
	layout, err := Plan(sizes, len(urlLines))
	if err != nil {
		return nil, err
	}

	out, err := c.render(layout, prepared, qrPNG, urlLines, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrComposition, err)
	}

	doc := &Document{
		Name:   FileName(req.Photos[0].ID, len(req.Photos)),
		Bytes:  out,
		Layout: layout,
	}
	c.logger.Debug("receipt.compose.ok",
		"name", doc.Name,
		"photos", len(req.Photos),
		"height_mm", layout.Height,
		"bytes", len(out),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return doc, nil
}

// wrapURL splits the viewing URL into lines that fit the page at the URL font size.
func wrapURL(viewURL string) []string {
	if viewURL == "" {
		return nil
	}
	// core fonts only measure single-byte characters
	printable := strings.Map(func(r rune) rune {
		if r < 0x20 || r > 0x7e {
			return '?'
		}
		return r
	}, viewURL)
	m := fpdf.New("P", "mm", "A4", "")
	m.SetFont("Helvetica", "", URLFontSize)
	return m.SplitText(printable, PageWidth-2*URLMargin)
}

func (c *Composer) render(l Layout, photos [][]byte, qrPNG []byte, urlLines []string, req Request) ([]byte, error) {
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: l.Width, Ht: l.Height},
	})
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(req.Now)
	pdf.SetModificationDate(req.Now)
	pdf.SetTitle(c.cfg.Title, true)
	pdf.SetProducer("photo-receipts", false)
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	// header
	pdf.SetFillColor(33, 33, 33)
	pdf.Rect(0, 0, l.Width, HeaderHeight, "F")
	pdf.SetFont("Helvetica", "B", 14)
	pdf.SetTextColor(255, 255, 255)
	pdf.SetXY(0, 0)
	pdf.CellFormat(l.Width, HeaderHeight, tr(c.cfg.Title), "", 0, "CM", false, 0, "")

	// photos
	opts := fpdf.ImageOptions{ImageType: "JPEG"}
	for i, p := range l.Photos {
		name := fmt.Sprintf("photo-%d", i)
		pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(photos[i]))
		cx, cy := p.Center()
		link := req.Photos[i].RetrievalURL

		pdf.TransformBegin()
		pdf.TransformRotate(p.Rotation, cx, cy)
		pdf.SetFillColor(190, 190, 190)
		pdf.Rect(p.X+ShadowOffset, p.Y+ShadowOffset, p.W, p.H, "F")
		pdf.ImageOptions(name, p.X, p.Y, p.W, p.H, false, opts, 0, link)
		pdf.TransformEnd()
	}

	// divider and timestamp
	pdf.SetDrawColor(120, 120, 120)
	pdf.SetLineWidth(0.3)
	pdf.Line(6, l.DividerY, l.Width-6, l.DividerY)
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(60, 60, 60)
	pdf.SetXY(0, l.DividerY+2)
	pdf.CellFormat(l.Width, DividerBlock-4, tr(req.Now.In(c.cfg.Location).Format(TimestampLayout)), "", 0, "CM", false, 0, "")

	// QR band
	qrOpts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", qrOpts, bytes.NewReader(qrPNG))
	pdf.ImageOptions("qr", l.QRX, l.QRY, QRSize, QRSize, false, qrOpts, 0, req.ViewURL)
	pdf.SetFont("Helvetica", "", 8)
	pdf.SetXY(0, l.QRY+QRSize+1)
	pdf.CellFormat(l.Width, QRLabel-2, QRCaption, "", 0, "CM", false, 0, "")

	// printed link, the fallback when the code does not scan
	if len(urlLines) > 0 {
		pdf.SetFont("Helvetica", "B", URLFontSize+1)
		pdf.SetXY(URLMargin, l.URLY)
		pdf.CellFormat(l.Width-2*URLMargin, URLLabel, "View:", "", 0, "LM", false, 0, "")
		pdf.SetFont("Helvetica", "", URLFontSize)
		pdf.SetTextColor(30, 80, 160)
		for i, line := range urlLines {
			pdf.SetXY(URLMargin, l.URLY+URLLabel+float64(i)*URLLineHeight)
			pdf.CellFormat(l.Width-2*URLMargin, URLLineHeight, line, "", 0, "LM", false, 0, "")
		}
		pdf.SetTextColor(60, 60, 60)
	}
	// one region spans caption, label and every URL line
	if req.ViewURL != "" {
		pdf.LinkString(0, l.QRY+QRSize, l.Width, l.FooterY-(l.QRY+QRSize), req.ViewURL)
	}

	// footer
	pdf.Line(6, l.FooterY, l.Width-6, l.FooterY)
	pdf.SetFont("Helvetica", "I", 9)
	pdf.SetXY(0, l.FooterY+1)
	pdf.CellFormat(l.Width, FooterHeight-2, tr(c.cfg.Footer), "", 0, "CM", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// prepare decodes an encoded photo, bounds its longest side and re-encodes it as JPEG.
func prepare(data []byte) ([]byte, image.Point, error) {
	if len(data) == 0 {
		return nil, image.Point{}, fmt.Errorf("empty image data")
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, image.Point{}, err
	}
	b := img.Bounds()
	if b.Dx() > MaxEmbedPixels || b.Dy() > MaxEmbedPixels {
		img = resize.Thumbnail(MaxEmbedPixels, MaxEmbedPixels, img, resize.Lanczos3)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, image.Point{}, err
	}
	return buf.Bytes(), img.Bounds().Size(), nil
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SafeID makes an identifier usable inside a file name.
func SafeID(id string) string {
	s := strings.Trim(unsafeName.ReplaceAllString(id, "_"), "._")
	if s == "" {
		return "photo"
	}
	return s
}

// FileName is the download name of a receipt whose first photo is id.
func FileName(id string, count int) string {
	if count > 1 {
		return fmt.Sprintf("photo-receipt-%s-%dphotos.pdf", SafeID(id), count)
	}
	return fmt.Sprintf("photo-receipt-%s.pdf", SafeID(id))
}
