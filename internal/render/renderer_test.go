package render

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngTemplate(t *testing.T, w, h int) []byte {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 250, G: 245, B: 230, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func scenarioJob(t *testing.T, values map[PlaceholderType]string) Job {
	t.Helper()
	actual := Size{Width: 1000, Height: 600}
	placed, _, err := MapPlaceholders(actual, Size{Width: 800, Height: 480}, []Placeholder{
		{Type: PlaceholderName, X: 100, Y: 50, FontSize: 24, FontFamily: "Georgia", Color: "#1a2b3c"},
		{Type: PlaceholderID, X: 400, Y: 400, FontSize: 12, FontFamily: "Courier New", TextAlign: AlignCenter, FontWeight: "bold"},
	}, DefaultContainerWidth)
	require.NoError(t, err)

	return Job{
		Asset:  Asset{Data: pngTemplate(t, 1000, 600), MIMEType: MIMEPNG},
		Size:   actual,
		Items:  placed,
		Values: values,
	}
}

func TestPipeline_ProducesBothFiles(t *testing.T) {
	pipeline := NewDefaultPipeline("", nil)
	job := scenarioJob(t, map[PlaceholderType]string{
		PlaceholderName: "Ada Lovelace",
		PlaceholderID:   "CERT-2024-001",
	})

	res, err := pipeline.Run(context.Background(), job)
	require.NoError(t, err)

	assert.Greater(t, len(res.PNG.Data), 0)
	assert.Greater(t, len(res.PDF.Data), 0)
	assert.True(t, bytes.HasPrefix(res.PDF.Data, []byte("%PDF-")))

	img, err := png.Decode(bytes.NewReader(res.PNG.Data))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 1000, 600), img.Bounds())
}

func TestPipeline_RenderersAgreeOnPlacement(t *testing.T) {
	pipeline := NewDefaultPipeline("", nil)
	job := scenarioJob(t, map[PlaceholderType]string{
		PlaceholderName: "Grace Hopper",
		PlaceholderID:   "CERT-2024-002",
	})

	res, err := pipeline.Run(context.Background(), job)
	require.NoError(t, err)
	require.Len(t, res.PNG.Ops, 2)
	require.Len(t, res.PDF.Ops, 2)

	for i := range res.PNG.Ops {
		raster, vector := res.PNG.Ops[i], res.PDF.Ops[i]
		assert.Equal(t, raster.Type, vector.Type)
		assert.Equal(t, raster.AnchorX, vector.AnchorX)
		assert.Equal(t, raster.Top, vector.Top)
		assert.Equal(t, raster.Baseline, vector.Baseline)
		assert.Equal(t, raster.FontSize, vector.FontSize)
		assert.Equal(t, raster.Category, vector.Category)
	}

	name := res.PNG.Ops[0]
	assert.InDelta(t, 125.0, name.AnchorX, 1e-9)
	assert.InDelta(t, 125.0, name.Left, 1e-9)
	assert.InDelta(t, 62.5, name.Top, 1e-9)
	assert.InDelta(t, 30.0, name.FontSize, 1e-9)
	assert.InDelta(t, 62.5+24.0, name.Baseline, 1e-9)
	assert.InDelta(t, 125.0, res.PDF.Ops[0].Left, 1e-9)

	id := res.PNG.Ops[1]
	assert.Less(t, id.Left, id.AnchorX)
	assert.Less(t, res.PDF.Ops[1].Left, res.PDF.Ops[1].AnchorX)
}

func TestPipeline_SkipsEmptyValues(t *testing.T) {
	pipeline := NewDefaultPipeline("", nil)
	job := scenarioJob(t, map[PlaceholderType]string{
		PlaceholderName: "   ",
		PlaceholderID:   "CERT-2024-003",
	})

	res, err := pipeline.Run(context.Background(), job)
	require.NoError(t, err)

	require.Len(t, res.PNG.Ops, 1)
	require.Len(t, res.PDF.Ops, 1)
	assert.Equal(t, PlaceholderID, res.PNG.Ops[0].Type)
	assert.Equal(t, PlaceholderID, res.PDF.Ops[0].Type)
}

func TestPipeline_NoValuesStillRendersBackground(t *testing.T) {
	pipeline := NewDefaultPipeline("", nil)
	res, err := pipeline.Run(context.Background(), scenarioJob(t, nil))
	require.NoError(t, err)

	assert.Empty(t, res.PNG.Ops)
	assert.Empty(t, res.PDF.Ops)
	assert.NotEmpty(t, res.PNG.Data)
	assert.NotEmpty(t, res.PDF.Data)
}

func TestRasterRenderer_DrawsInkNearPlaceholder(t *testing.T) {
	job := scenarioJob(t, map[PlaceholderType]string{PlaceholderName: "MMMM"})
	out, err := NewRasterRenderer(NewFontResolver("")).Render(context.Background(), job)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(out.Data))
	require.NoError(t, err)

	background := color.NRGBAModel.Convert(img.At(5, 5)).(color.NRGBA)
	inked := false
	for y := 62; y < 62+30; y++ {
		for x := 125; x < 200; x++ {
			if color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA) != background {
				inked = true
			}
		}
	}
	assert.True(t, inked, "expected glyph pixels inside the name placeholder box")

	above := false
	for x := 125; x < 200; x++ {
		if color.NRGBAModel.Convert(img.At(x, 55)).(color.NRGBA) != background {
			above = true
		}
	}
	assert.False(t, above, "no glyph pixels expected above the placeholder top")
}

func TestRasterRenderer_ResizesToDeclaredSize(t *testing.T) {
	job := Job{
		Asset: Asset{Data: pngTemplate(t, 500, 300), MIMEType: MIMEPNG},
		Size:  Size{Width: 1000, Height: 600},
	}
	out, err := NewRasterRenderer(NewFontResolver("")).Render(context.Background(), job)
	require.NoError(t, err)

	cfg, err := png.DecodeConfig(bytes.NewReader(out.Data))
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.Width)
	assert.Equal(t, 600, cfg.Height)
}

func TestRenderers_CorruptTemplateIsDecodeFailure(t *testing.T) {
	job := Job{
		Asset:  Asset{Data: []byte("definitely not a png"), MIMEType: MIMEPNG},
		Size:   Size{Width: 100, Height: 100},
		Values: map[PlaceholderType]string{PlaceholderName: "x"},
	}

	_, err := NewRasterRenderer(NewFontResolver("")).Render(context.Background(), job)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDecodeTemplate)
	var rerr *Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "raster", rerr.Renderer)
	assert.Equal(t, "decode", rerr.Stage)

	_, err = NewVectorRenderer(NewFontResolver("")).Render(context.Background(), job)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDecodeTemplate)
}

func TestRenderers_CorruptPDFIsDecodeFailure(t *testing.T) {
	job := Job{
		Asset: Asset{Data: []byte("%PDF-1.4 truncated"), MIMEType: MIMEPDF, Preview: pngTemplate(t, 50, 50)},
		Size:  Size{Width: 50, Height: 50},
	}
	_, err := NewVectorRenderer(NewFontResolver("")).Render(context.Background(), job)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDecodeTemplate)
}

func TestRasterRenderer_PDFWithoutPreview(t *testing.T) {
	job := Job{
		Asset: Asset{Data: []byte("%PDF-1.4"), MIMEType: MIMEPDF},
		Size:  Size{Width: 100, Height: 100},
	}
	_, err := NewRasterRenderer(NewFontResolver("")).Render(context.Background(), job)
	assert.ErrorIs(t, err, ErrMissingPreview)
}

func TestRasterRenderer_UsesPreviewForPDF(t *testing.T) {
	job := Job{
		Asset: Asset{Data: []byte("%PDF-1.4"), MIMEType: MIMEPDF, Preview: pngTemplate(t, 80, 40)},
		Size:  Size{Width: 80, Height: 40},
	}
	out, err := NewRasterRenderer(NewFontResolver("")).Render(context.Background(), job)
	require.NoError(t, err)
	assert.NotEmpty(t, out.Data)
}

func TestPipeline_StopsAfterRasterFailure(t *testing.T) {
	var calls []string
	pipeline := NewDefaultPipeline("", func(renderer string, _ time.Duration, err error) {
		calls = append(calls, renderer)
	})
	job := Job{
		Asset: Asset{Data: []byte("garbage"), MIMEType: MIMEJPEG},
		Size:  Size{Width: 10, Height: 10},
	}

	_, err := pipeline.Run(context.Background(), job)
	require.Error(t, err)
	assert.Equal(t, []string{"raster"}, calls)
}

func TestVectorRenderer_InvalidSize(t *testing.T) {
	_, err := NewVectorRenderer(NewFontResolver("")).Render(context.Background(), Job{})
	assert.ErrorIs(t, err, ErrInvalidDimensions)
}

func centeredNameJob(t *testing.T, family, name string) Job {
	t.Helper()
	actual := Size{Width: 1000, Height: 600}
	placed, _, err := MapPlaceholders(actual, actual, []Placeholder{
		{Type: PlaceholderName, X: 500, Y: 200, FontSize: 40, FontFamily: family, TextAlign: AlignCenter},
	}, DefaultContainerWidth)
	require.NoError(t, err)
	return Job{
		Asset:  Asset{Data: pngTemplate(t, 1000, 600), MIMEType: MIMEPNG},
		Size:   actual,
		Items:  placed,
		Values: map[PlaceholderType]string{PlaceholderName: name},
	}
}

// assertSameStart checks that centred text measured the same width in both
// outputs. The raster side applies kerning, so allow one percent.
func assertSameStart(t *testing.T, raster, vector TextOp) {
	t.Helper()
	width := 2 * (raster.AnchorX - raster.Left)
	require.Greater(t, width, 0.0)
	assert.InDelta(t, raster.Left, vector.Left, width*0.01)
}

func TestPipeline_NonLatinNamesMatchInBothOutputs(t *testing.T) {
	pipeline := NewDefaultPipeline("", nil)

	for _, name := range []string{"Łukasz Żółć", "Ştefan Dumitrescu", "Ørjan Ålesund"} {
		t.Run(name, func(t *testing.T) {
			res, err := pipeline.Run(context.Background(), centeredNameJob(t, "Georgia", name))
			require.NoError(t, err)
			require.Len(t, res.PNG.Ops, 1)
			require.Len(t, res.PDF.Ops, 1)

			assert.Equal(t, name, res.PNG.Ops[0].Text)
			assert.Equal(t, name, res.PDF.Ops[0].Text)
			assertSameStart(t, res.PNG.Ops[0], res.PDF.Ops[0])
		})
	}
}

func TestRenderers_SerifWidthsAgree(t *testing.T) {
	job := centeredNameJob(t, "Times New Roman", "Certificate of Achievement")
	fonts := NewFontResolver("")

	raster, err := NewRasterRenderer(fonts).Render(context.Background(), job)
	require.NoError(t, err)
	vector, err := NewVectorRenderer(fonts).Render(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, CategorySerif, raster.Ops[0].Category)
	assertSameStart(t, raster.Ops[0], vector.Ops[0])
}

func TestRenderers_UnsupportedCharacterFailsBoth(t *testing.T) {
	job := centeredNameJob(t, "Arial", "王小明")

	_, err := NewRasterRenderer(NewFontResolver("")).Render(context.Background(), job)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingGlyph)
	var rerr *Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "raster", rerr.Renderer)
	assert.Equal(t, "draw", rerr.Stage)

	_, err = NewVectorRenderer(NewFontResolver("")).Render(context.Background(), job)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingGlyph)
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "vector", rerr.Renderer)
}
