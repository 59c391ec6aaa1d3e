package render

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/disintegration/imaging"
	"github.com/jung-kurt/gofpdf"
	"github.com/jung-kurt/gofpdf/contrib/gofpdi"
)

const (
	vectorName     = "vector"
	backgroundName = "template-background"
)

// VectorRenderer lays the template out as a single PDF page, one point per
// template pixel, and draws placeholders with the raster renderer's fonts
// embedded as UTF-8 TrueType.
type VectorRenderer struct {
	fonts *FontResolver
}

// NewVectorRenderer creates a vector renderer using the given font resolver.
func NewVectorRenderer(fonts *FontResolver) *VectorRenderer {
	return &VectorRenderer{fonts: fonts}
}

func (r *VectorRenderer) Name() string {
	return vectorName
}

// Render produces PDF bytes. Text uses the same anchoring as the raster
// renderer: the baseline sits TopToBaseline below y.
func (r *VectorRenderer) Render(ctx context.Context, job Job) (out *Output, err error) {
	if !job.Size.valid() {
		return nil, fail(vectorName, "page", ErrInvalidDimensions)
	}

	// The PDF import library reports malformed input by panicking.
	defer func() {
		if rec := recover(); rec != nil {
			out = nil
			err = fail(vectorName, "background", fmt.Errorf("%w: %v", ErrDecodeTemplate, rec))
		}
	}()

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: job.Size.Width, Ht: job.Size.Height},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCellMargin(0)
	pdf.AddPage()

	if err := r.background(pdf, job); err != nil {
		return nil, err
	}

	out = &Output{}
	for _, item := range job.Items {
		if err := ctx.Err(); err != nil {
			return nil, fail(vectorName, "draw", err)
		}
		text := job.valueFor(item.Type)
		if text == "" {
			continue
		}
		op, err := r.drawText(pdf, item, text)
		if err != nil {
			return nil, fail(vectorName, "draw", err)
		}
		out.Ops = append(out.Ops, op)
		if pdf.Err() {
			return nil, fail(vectorName, "draw", pdf.Error())
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fail(vectorName, "encode", err)
	}
	out.Data = buf.Bytes()
	return out, nil
}

func (r *VectorRenderer) background(pdf *gofpdf.Fpdf, job Job) error {
	if job.Asset.IsPDF() {
		if len(job.Asset.Data) == 0 {
			return fail(vectorName, "background", ErrDecodeTemplate)
		}
		rs := io.ReadSeeker(bytes.NewReader(job.Asset.Data))
		imp := gofpdi.NewImporter()
		tpl := imp.ImportPageFromStream(pdf, &rs, 1, "/MediaBox")
		imp.UseImportedTemplate(pdf, tpl, 0, 0, job.Size.Width, job.Size.Height)
		if pdf.Err() {
			return fail(vectorName, "background", pdf.Error())
		}
		return nil
	}

	// Re-encoding gives gofpdf an 8-bit, non-interlaced PNG whatever the
	// upload looked like.
	img, err := decodeImage(job.Asset.Data)
	if err != nil {
		return fail(vectorName, "background", err)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return fail(vectorName, "background", err)
	}

	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader(backgroundName, opts, &buf)
	pdf.ImageOptions(backgroundName, 0, 0, job.Size.Width, job.Size.Height, false, opts, 0, "")
	if pdf.Err() {
		return fail(vectorName, "background", pdf.Error())
	}
	return nil
}

// drawText embeds the face on first use. gofpdf ignores a second
// registration of the same family.
func (r *VectorRenderer) drawText(pdf *gofpdf.Fpdf, item Placed, text string) (TextOp, error) {
	f, err := r.fonts.Resolve(item.Category, item.FontWeight, item.FontStyle)
	if err != nil {
		return TextOp{}, err
	}
	if err := f.Covers(text); err != nil {
		return TextOp{}, err
	}
	pdf.AddUTF8FontFromBytes(f.Name, "", f.Data)
	pdf.SetFont(f.Name, "", item.FontSize)
	c := colorOrBlack(item.Color)
	pdf.SetTextColor(int(c.R), int(c.G), int(c.B))

	width := pdf.GetStringWidth(text)
	left := item.X + AlignOffset(item.TextAlign, width)
	baseline := item.Y + TopToBaseline(item.FontSize)
	pdf.Text(left, baseline, text)

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
