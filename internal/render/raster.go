package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

const rasterName = "raster"

// RasterRenderer draws placeholders onto the template image and emits PNG.
type RasterRenderer struct {
	fonts *FontResolver
}

// NewRasterRenderer creates a raster renderer using the given font resolver.
func NewRasterRenderer(fonts *FontResolver) *RasterRenderer {
	return &RasterRenderer{fonts: fonts}
}

func (r *RasterRenderer) Name() string {
	return rasterName
}

// Render paints the template at its true size and draws every placeholder
// that has a non-empty value, with the text box top pinned at y.
func (r *RasterRenderer) Render(ctx context.Context, job Job) (*Output, error) {
	canvas, err := r.canvas(job)
	if err != nil {
		return nil, err
	}

	out := &Output{}
	for _, item := range job.Items {
		if err := ctx.Err(); err != nil {
			return nil, fail(rasterName, "draw", err)
		}
		text := job.valueFor(item.Type)
		if text == "" {
			continue
		}
		op, err := r.drawText(canvas, item, text)
		if err != nil {
			return nil, fail(rasterName, "draw", err)
		}
		out.Ops = append(out.Ops, op)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, canvas, imaging.PNG); err != nil {
		return nil, fail(rasterName, "encode", err)
	}
	out.Data = buf.Bytes()
	return out, nil
}

// canvas decodes the template and returns it covering a surface of exactly
// the template's true size.
func (r *RasterRenderer) canvas(job Job) (*image.NRGBA, error) {
	w, h := job.pixelSize()
	if w <= 0 || h <= 0 {
		return nil, fail(rasterName, "canvas", ErrInvalidDimensions)
	}
	src, err := job.Asset.rasterSource()
	if err != nil {
		return nil, fail(rasterName, "decode", err)
	}
	img, err := decodeImage(src)
	if err != nil {
		return nil, fail(rasterName, "decode", err)
	}
	if b := img.Bounds(); b.Dx() != w || b.Dy() != h {
		img = imaging.Resize(img, w, h, imaging.Lanczos)
	}
	surface := imaging.New(w, h, color.NRGBA{})
	return imaging.Paste(surface, img, image.Pt(0, 0)), nil
}

func (r *RasterRenderer) drawText(dst *image.NRGBA, item Placed, text string) (TextOp, error) {
	f, err := r.fonts.Resolve(item.Category, item.FontWeight, item.FontStyle)
	if err != nil {
		return TextOp{}, err
	}
	if err := f.Covers(text); err != nil {
		return TextOp{}, err
	}
	face, err := f.NewFace(item.FontSize)
	if err != nil {
		return TextOp{}, err
	}
	defer face.Close()

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(colorOrBlack(item.Color)),
		Face: face,
	}
	width := fromFixed(d.MeasureString(text))
	left := item.X + AlignOffset(item.TextAlign, width)
	baseline := item.Y + TopToBaseline(item.FontSize)
	d.Dot = fixed.Point26_6{X: toFixed(left), Y: toFixed(baseline)}
	d.DrawString(text)

	return TextOp{
		Type:     item.Type,
		Text:     text,
		AnchorX:  item.X,
		Left:     left,
		Top:      item.Y,
		Baseline: baseline,
		FontSize: item.FontSize,
		Category: item.Category,
	}, nil
}

func decodeImage(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeTemplate, err)
	}
	return img, nil
}

func toFixed(v float64) fixed.Int26_6 {
	return fixed.Int26_6(v * 64)
}

func fromFixed(v fixed.Int26_6) float64 {
	return float64(v) / 64
}
