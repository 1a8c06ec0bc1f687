// Package qr renders viewing links as PNG QR codes for the receipt.
package qr

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/url"

	qrcode "github.com/skip2/go-qrcode"
)

const (
	DefaultSize   = 200
	DefaultMargin = 2 // modules of quiet zone on each side
)

var (
	ErrEmptyContent = errors.New("qr: empty content")
	ErrNotAbsURL    = errors.New("qr: content is not an absolute URL")
)

type options struct {
	size     int
	margin   int
	level    qrcode.RecoveryLevel
	allowRaw bool
}

// Option configures Encode.
type Option func(*options)

// WithSize sets the target edge length in pixels. The output is the largest whole-module
// multiple that does not exceed it, with a floor of one pixel per module.
func WithSize(px int) Option { return func(o *options) { o.size = px } }

// WithMargin sets the quiet zone in modules.
func WithMargin(modules int) Option { return func(o *options) { o.margin = modules } }

// WithRecoveryLevel overrides the medium error correction default.
func WithRecoveryLevel(l qrcode.RecoveryLevel) Option { return func(o *options) { o.level = l } }

// AllowAnyContent disables the absolute URL check.
func AllowAnyContent() Option { return func(o *options) { o.allowRaw = true } }

// Encode returns a PNG QR raster for content.
func Encode(content string, opts ...Option) ([]byte, error) {
	o := options{size: DefaultSize, margin: DefaultMargin, level: qrcode.Medium}
	for _, opt := range opts {
		opt(&o)
	}
	if content == "" {
		return nil, ErrEmptyContent
	}
	if !o.allowRaw {
		u, err := url.Parse(content)
		if err != nil || !u.IsAbs() || u.Host == "" {
			return nil, fmt.Errorf("%w: %q", ErrNotAbsURL, content)
		}
	}
	if o.margin < 0 {
		o.margin = 0
	}

	code, err := qrcode.New(content, o.level)
	if err != nil {
		return nil, fmt.Errorf("qr encode: %w", err)
	}
	code.DisableBorder = true
	bits := code.Bitmap()

	n := len(bits)
	total := n + 2*o.margin
	scale := o.size / total
	if scale < 1 {
		scale = 1
	}
	edge := total * scale

	img := image.NewGray(image.Rect(0, 0, edge, edge))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	black := color.Gray{Y: 0}
	for y, row := range bits {
		for x, on := range row {
			if !on {
				continue
			}
			x0 := (x + o.margin) * scale
			y0 := (y + o.margin) * scale
			for dy := 0; dy < scale; dy++ {
				for dx := 0; dx < scale; dx++ {
					img.SetGray(x0+dx, y0+dy, black)
				}
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("qr png: %w", err)
	}
	return buf.Bytes(), nil
}
