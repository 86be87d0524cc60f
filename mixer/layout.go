package mixer

import (
	"image"
	"image/draw"

	"github.com/anthonynsimon/bild/transform"
)

// noCell marks a stream which does not fit into the layout; it still
// participates in the metrics.
const noCell = -1

// cellRect returns the area of the output covered by the cell.
func (cfg Config) cellRect(cell int) image.Rectangle {
	w, h := int(cfg.CellWidth), int(cfg.CellHeight)
	switch cfg.Layout {
	case LayoutSplitScreen:
		half := w / 2
		if cell == 0 {
			return image.Rect(0, 0, half, h)
		}
		return image.Rect(half, 0, w, h)
	default:
		col, row := cell%int(cfg.Columns), cell/int(cfg.Columns)
		return image.Rect(col*w, row*h, (col+1)*w, (row+1)*h)
	}
}

// drawCell scales the source to the full cell size and draws the visible
// part of it; in the split screen every stream shows its own half.
func (cfg Config) drawCell(
	dst *image.RGBA,
	cell int,
	src *image.RGBA,
) {
	w, h := int(cfg.CellWidth), int(cfg.CellHeight)
	scaled := scale(src, w, h, cfg.ScalingPolicy)
	r := cfg.cellRect(cell)
	srcPoint := scaled.Bounds().Min
	if cfg.Layout == LayoutSplitScreen {
		srcPoint = srcPoint.Add(image.Pt(r.Min.X, 0))
	}
	draw.Draw(dst, r, scaled, srcPoint, draw.Src)
}

func fill(dst *image.RGBA, r image.Rectangle, c Color) {
	draw.Draw(dst, r, image.NewUniform(c.RGBA()), image.Point{}, draw.Src)
}

// scale returns img itself if it already has the requested size.
func scale(
	img *image.RGBA,
	width, height int,
	policy ScalingPolicy,
) *image.RGBA {
	size := img.Bounds().Size()
	if size.X == width && size.Y == height {
		return img
	}
	filter := transform.NearestNeighbor
	if policy == ScalingPolicyBilinear {
		filter = transform.Linear
	}
	return transform.Resize(img, width, height, filter)
}
