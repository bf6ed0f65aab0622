package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"

	"golang.org/x/image/draw"

	"github.com/jaki95/check-engine/internal/domain"
	"github.com/jaki95/check-engine/internal/viewport"
)

// DefaultStroke is the outline width of a drawn marker in pixels.
const DefaultStroke = 2

// ErrEmptyImage is returned when the source image has no pixels.
var ErrEmptyImage = errors.New("image has no pixels")

// OverlayOptions controls DrawOverlay. Zero values select defaults.
type OverlayOptions struct {
	// Width and Height are the displayed size. Zero keeps the natural size;
	// setting only one keeps the aspect ratio.
	Width  int
	Height int

	MinSize float64
	Stroke  int

	// FillAlpha tints the marker interior. Zero leaves it clear.
	FillAlpha uint8
}

// DrawOverlay returns a copy of src scaled to the displayed size with every
// annotation outlined in its category color.
func DrawOverlay(src image.Image, annotations []domain.Annotation, opts OverlayOptions) (*image.RGBA, error) {
	b := src.Bounds()
	if b.Empty() {
		return nil, ErrEmptyImage
	}

	w, h := displaySize(b.Dx(), b.Dy(), opts.Width, opts.Height)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	}

	state := viewport.State{
		NaturalWidth:    float64(b.Dx()),
		NaturalHeight:   float64(b.Dy()),
		DisplayedWidth:  float64(w),
		DisplayedHeight: float64(h),
		Zoom:            1,
	}
	markers, err := Markers(annotations, state, opts.MinSize)
	if err != nil {
		return nil, fmt.Errorf("failed to place markers: %w", err)
	}

	stroke := opts.Stroke
	if stroke <= 0 {
		stroke = DefaultStroke
	}
	// the screen offset only matters on a live page
	off := state.Offset()
	for _, m := range markers {
		r := image.Rect(
			int(m.Rect.X-off.X),
			int(m.Rect.Y-off.Y),
			int(m.Rect.X-off.X+m.Rect.Width),
			int(m.Rect.Y-off.Y+m.Rect.Height),
		)
		if opts.FillAlpha > 0 {
			fill := color.NRGBA{R: m.Color.R, G: m.Color.G, B: m.Color.B, A: opts.FillAlpha}
			draw.Draw(dst, r.Intersect(dst.Bounds()), image.NewUniform(fill), image.Point{}, draw.Over)
		}
		outline(dst, r, m.Color, stroke)
	}
	return dst, nil
}

// EncodePNG writes img as PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("failed to encode png: %w", err)
	}
	return nil
}

func outline(dst draw.Image, r image.Rectangle, c color.Color, stroke int) {
	src := image.NewUniform(c)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+stroke),
		image.Rect(r.Min.X, r.Max.Y-stroke, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+stroke, r.Max.Y),
		image.Rect(r.Max.X-stroke, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e.Intersect(dst.Bounds()), src, image.Point{}, draw.Src)
	}
}

func displaySize(nw, nh, w, h int) (int, int) {
	switch {
	case w > 0 && h > 0:
		return w, h
	case w > 0:
		return w, max(1, nh*w/nw)
	case h > 0:
		return max(1, nw*h/nh), h
	}
	return nw, nh
}

// AnnotateImage decodes an image from r and draws annotations on it.
func AnnotateImage(r io.Reader, annotations []domain.Annotation, opts OverlayOptions) (*image.RGBA, error) {
	src, _, err := viewport.DecodeImage(r)
	if err != nil {
		return nil, err
	}
	return DrawOverlay(src, annotations, opts)
}
