// Package overlay draws short text blocks over frames.
package overlay

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	padding = 4
)

var (
	DefaultForeground = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	DefaultBackground = color.RGBA{A: 0xa0}
)

type Text struct {
	Face       font.Face
	Foreground color.Color
	Background color.Color
}

func New() *Text {
	return &Text{
		Face:       basicfont.Face7x13,
		Foreground: DefaultForeground,
		Background: DefaultBackground,
	}
}

// Draw writes the lines into the top-left corner of the area, over a
// translucent box; anything outside of the area is clipped.
func (t *Text) Draw(
	dst *image.RGBA,
	area image.Rectangle,
	lines []string,
) {
	if len(lines) == 0 {
		return
	}
	area = area.Intersect(dst.Bounds())
	if area.Empty() {
		return
	}
	canvas := dst.SubImage(area).(*image.RGBA)

	metrics := t.Face.Metrics()
	lineHeight := metrics.Height.Ceil()
	drawer := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(t.Foreground),
		Face: t.Face,
	}

	width := 0
	for _, line := range lines {
		if w := drawer.MeasureString(line).Ceil(); w > width {
			width = w
		}
	}
	box := image.Rect(0, 0, width+2*padding, len(lines)*lineHeight+2*padding).
		Add(area.Min).
		Intersect(area)
	draw.Draw(canvas, box, image.NewUniform(t.Background), image.Point{}, draw.Over)

	for idx, line := range lines {
		drawer.Dot = fixed.P(
			area.Min.X+padding,
			area.Min.Y+padding+idx*lineHeight+metrics.Ascent.Ceil(),
		)
		drawer.DrawString(line)
	}
}
