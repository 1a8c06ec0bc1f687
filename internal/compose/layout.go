package compose

import (
	"errors"
	"fmt"
	"image"
)

// Receipt geometry in millimetres.
const (
	PageWidth    = 80.0
	HeaderHeight = 16.0
	HeaderGap    = 6.0
	PhotoSpacing = 6.0
	DividerBlock = 12.0
	QRSize       = 40.0
	QRLabel      = 10.0
	QRBand       = QRSize + QRLabel
	FooterHeight = 14.0

	// "View:" label plus the wrapped viewing URL below the QR caption.
	URLLabel      = 4.0
	URLLineHeight = 3.5
	URLMargin     = 6.0
	URLGap        = 2.0
	URLFontSize   = 7.0

	ShadowOffset = 1.5
	PhotoShift   = 4.0
)

// ErrNoPhotos is returned when a receipt is requested without any photo.
var ErrNoPhotos = errors.New("compose: receipt needs at least one photo")

var rotations = [...]float64{-8, 5, -5}

// TargetSize is the edge of the square each photo is fitted into, by photo count.
func TargetSize(count int) float64 {
	switch {
	case count <= 1:
		return 60
	case count == 2:
		return 50
	default:
		return 42
	}
}

// Placement is where one photo lands on the page.
type Placement struct {
	X, Y     float64
	W, H     float64
	Rotation float64 // degrees, counterclockwise
}

// Center returns the rotation pivot.
func (p Placement) Center() (float64, float64) {
	return p.X + p.W/2, p.Y + p.H/2
}

// Layout is the computed page geometry. Height is the full page height.
type Layout struct {
	Width, Height float64
	Photos        []Placement
	DividerY      float64
	QRX, QRY      float64
	URLY          float64
	URLLines      int
	FooterY       float64
}

// URLBlockHeight is the height taken by the "View:" label and n wrapped URL lines.
func URLBlockHeight(n int) float64 {
	if n <= 0 {
		return 0
	}
	return URLLabel + float64(n)*URLLineHeight + URLGap
}

// Plan lays out a receipt for photos of the given pixel sizes and a viewing URL wrapped over
// urlLines lines, without rendering anything.
func Plan(sizes []image.Point, urlLines int) (Layout, error) {
	if len(sizes) == 0 {
		return Layout{}, ErrNoPhotos
	}
	target := TargetSize(len(sizes))
	l := Layout{Width: PageWidth, Photos: make([]Placement, 0, len(sizes))}

	y := HeaderHeight + HeaderGap
	for i, sz := range sizes {
		if sz.X <= 0 || sz.Y <= 0 {
			return Layout{}, fmt.Errorf("compose: photo %d has empty dimensions %v", i, sz)
		}
		w, h := fit(sz, target)
		x := (PageWidth - w) / 2
		if i > 0 {
			if i%2 == 1 {
				x += PhotoShift
			} else {
				x -= PhotoShift
			}
		}
		l.Photos = append(l.Photos, Placement{X: x, Y: y, W: w, H: h, Rotation: rotations[i%len(rotations)]})
		y += h + PhotoSpacing
	}

	l.DividerY = y
	y += DividerBlock
	l.QRX = (PageWidth - QRSize) / 2
	l.QRY = y
	y += QRBand
	l.URLY = y
	if urlLines > 0 {
		l.URLLines = urlLines
	}
	y += URLBlockHeight(urlLines)
	l.FooterY = y
	l.Height = y + FooterHeight
	return l, nil
}

// fit scales sz into a target x target square preserving aspect ratio.
func fit(sz image.Point, target float64) (float64, float64) {
	if sz.X >= sz.Y {
		return target, target * float64(sz.Y) / float64(sz.X)
	}
	return target * float64(sz.X) / float64(sz.Y), target
}
