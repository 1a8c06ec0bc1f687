package capture

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/joseph-ayodele/photo-receipts/internal/filter"
)

// Decoded is a still frame plus the format it was encoded in.
type Decoded struct {
	Image  *image.NRGBA
	Format string
}

// Width and Height of the decoded frame.
func (d Decoded) Width() int  { return d.Image.Rect.Dx() }
func (d Decoded) Height() int { return d.Image.Rect.Dy() }

// Decode reads one encoded still (JPEG, PNG or GIF) into an NRGBA buffer.
func Decode(r io.Reader) (Decoded, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return Decoded{}, fmt.Errorf("decode image: %w", err)
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return Decoded{}, fmt.Errorf("decode image: empty %s frame", format)
	}
	return Decoded{Image: filter.ToNRGBA(img), Format: format}, nil
}

// DecodeBytes is Decode over an in-memory buffer.
func DecodeBytes(data []byte) (Decoded, error) {
	return Decode(bytes.NewReader(data))
}
