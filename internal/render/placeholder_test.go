package render

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequireUsable(t *testing.T) {
	name := Placeholder{Type: PlaceholderName, FontSize: 12}
	id := Placeholder{Type: PlaceholderID, FontSize: 12}

	assert.NoError(t, RequireUsable([]Placeholder{name, id}))
	assert.NoError(t, RequireUsable([]Placeholder{id, name, name}))
	assert.ErrorIs(t, RequireUsable([]Placeholder{name}), ErrTemplateIncomplete)
	assert.ErrorIs(t, RequireUsable([]Placeholder{id}), ErrTemplateIncomplete)
	assert.ErrorIs(t, RequireUsable(nil), ErrTemplateIncomplete)
}

func TestValidatePlaceholders(t *testing.T) {
	assert.NoError(t, ValidatePlaceholders(nil))
	assert.NoError(t, ValidatePlaceholders([]Placeholder{
		{Type: PlaceholderName, FontSize: 24, Color: "#fff", TextAlign: AlignCenter},
		{Type: PlaceholderID, FontSize: 10, Color: "000000"},
	}))

	bad := []Placeholder{
		{Type: "signature", FontSize: 12},
		{Type: PlaceholderName, FontSize: 0},
		{Type: PlaceholderName, FontSize: 12, X: -1},
		{Type: PlaceholderName, FontSize: 12, Color: "#12345"},
		{Type: PlaceholderName, FontSize: 12, TextAlign: "justify"},
	}
	for _, p := range bad {
		assert.ErrorIs(t, ValidatePlaceholders([]Placeholder{p}), ErrInvalidPlaceholder, "%+v", p)
	}
}

func TestClonePlaceholders_DoesNotShareDimensions(t *testing.T) {
	w := 200.0
	src := []Placeholder{{Type: PlaceholderName, FontSize: 12, Width: &w}}

	dst := ClonePlaceholders(src)
	*src[0].Width = 999
	src[0].X = 50

	require.NotNil(t, dst[0].Width)
	assert.Equal(t, 200.0, *dst[0].Width)
	assert.Equal(t, 0.0, dst[0].X)
	assert.Nil(t, ClonePlaceholders(nil))
}

func TestParseHexColor(t *testing.T) {
	c, err := ParseHexColor("#1a2b3c")
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 0x1a, G: 0x2b, B: 0x3c, A: 0xff}, c)

	c, err = ParseHexColor("f0a")
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 0xff, G: 0x00, B: 0xaa, A: 0xff}, c)

	c, err = ParseHexColor("")
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{A: 0xff}, c)

	_, err = ParseHexColor("#zzzzzz")
	assert.Error(t, err)
	_, err = ParseHexColor("#12")
	assert.Error(t, err)
}
