package render

import (
	"context"
	"strings"
)

// MIME types accepted for template assets.
const (
	MIMEPNG  = "image/png"
	MIMEJPEG = "image/jpeg"
	MIMEPDF  = "application/pdf"
)

// Asset is a template's source file as handed to the renderers.
type Asset struct {
	Data     []byte
	MIMEType string
	// Preview is a raster rendition of a PDF template's first page.
	Preview []byte
}

// IsPDF reports whether the asset is a PDF document.
func (a Asset) IsPDF() bool {
	return strings.EqualFold(a.MIMEType, MIMEPDF)
}

func (a Asset) rasterSource() ([]byte, error) {
	if a.IsPDF() {
		if len(a.Preview) == 0 {
			return nil, ErrMissingPreview
		}
		return a.Preview, nil
	}
	if len(a.Data) == 0 {
		return nil, ErrDecodeTemplate
	}
	return a.Data, nil
}

// Job is one certificate's worth of rendering input.
type Job struct {
	Asset  Asset
	Size   Size
	Items  []Placed
	Values map[PlaceholderType]string
}

// TextOp records where a renderer drew one string, in template pixels.
type TextOp struct {
	Type     PlaceholderType `json:"type"`
	Text     string          `json:"text"`
	AnchorX  float64         `json:"anchorX"`
	Left     float64         `json:"left"`
	Top      float64         `json:"top"`
	Baseline float64         `json:"baseline"`
	FontSize float64         `json:"fontSize"`
	Category FontCategory    `json:"category"`
}

// Output is a rendered file plus the text it drew.
type Output struct {
	Data []byte
	Ops  []TextOp
}

// Renderer turns a Job into file bytes.
type Renderer interface {
	Name() string
	Render(ctx context.Context, job Job) (*Output, error)
}

func (j Job) valueFor(t PlaceholderType) string {
	return strings.TrimSpace(j.Values[t])
}

func (j Job) pixelSize() (int, int) {
	return int(j.Size.Width + 0.5), int(j.Size.Height + 0.5)
}
