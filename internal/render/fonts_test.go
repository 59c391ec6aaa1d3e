package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
)

func TestCategoryOf(t *testing.T) {
	assert.Equal(t, CategorySans, CategoryOf("Arial"))
	assert.Equal(t, CategorySans, CategoryOf("  'Open Sans' "))
	assert.Equal(t, CategorySerif, CategoryOf("Times New Roman"))
	assert.Equal(t, CategorySerif, CategoryOf("\"Playfair Display\""))
	assert.Equal(t, CategoryMono, CategoryOf("Courier New"))
	assert.Equal(t, CategoryDisplay, CategoryOf("Great Vibes"))
	assert.Equal(t, CategorySans, CategoryOf("Some Font Nobody Has"))
	assert.Equal(t, CategorySans, CategoryOf(""))
}

func TestSupportedFonts_EveryEntryResolvesInBothRenderers(t *testing.T) {
	resolver := NewFontResolver("")
	faceByCategory := map[FontCategory]string{
		CategorySans:    "Liberation Sans",
		CategorySerif:   "Liberation Serif",
		CategoryMono:    "Liberation Mono",
		CategoryDisplay: "Liberation Serif Italic",
	}

	fonts := SupportedFonts()
	require.NotEmpty(t, fonts)
	for _, f := range fonts {
		assert.Equal(t, f.Category, CategoryOf(f.Family), f.Family)
		assert.Equal(t, faceByCategory[f.Category], f.Face, f.Family)

		face, err := resolver.Face(f.Category, "bold", "italic", 18)
		require.NoError(t, err, f.Family)
		face.Close()
	}
}

func TestSupportedFonts_SortedByFamily(t *testing.T) {
	fonts := SupportedFonts()
	for i := 1; i < len(fonts); i++ {
		assert.Less(t, fonts[i-1].Family, fonts[i].Family)
	}
}

func TestIsBold(t *testing.T) {
	assert.True(t, IsBold("bold"))
	assert.True(t, IsBold("Bolder"))
	assert.True(t, IsBold("700"))
	assert.True(t, IsBold("600"))
	assert.False(t, IsBold("500"))
	assert.False(t, IsBold("normal"))
	assert.False(t, IsBold(""))
}

func TestFontResolver_ResolvesVariants(t *testing.T) {
	resolver := NewFontResolver("")

	tests := []struct {
		category      FontCategory
		weight, style string
		want          string
	}{
		{CategorySans, "normal", "normal", "LiberationSans-Regular"},
		{CategorySans, "bold", "", "LiberationSans-Bold"},
		{CategorySerif, "", "italic", "LiberationSerif-Italic"},
		{CategoryMono, "800", "oblique", "LiberationMono-BoldItalic"},
		{CategoryDisplay, "", "", "LiberationSerif-Italic"},
		{CategoryDisplay, "bold", "", "LiberationSerif-BoldItalic"},
	}

	for _, tt := range tests {
		f, err := resolver.Resolve(tt.category, tt.weight, tt.style)
		require.NoError(t, err)
		assert.Equal(t, tt.want, f.Name)
		assert.NotEmpty(t, f.Data)
	}
}

func TestFontResolver_CategoriesUseDistinctEmbeddedFaces(t *testing.T) {
	resolver := NewFontResolver("fonts-that-do-not-exist")
	const text = "Certificate of Achievement"

	advance := func(c FontCategory) int {
		face, err := resolver.Face(c, "", "", 40)
		require.NoError(t, err)
		defer face.Close()
		return int(font.MeasureString(face, text))
	}

	sans, serif, mono := advance(CategorySans), advance(CategorySerif), advance(CategoryMono)
	assert.NotEqual(t, sans, serif)
	assert.NotEqual(t, sans, mono)
	assert.NotEqual(t, serif, mono)
}

func TestResolvedFont_Covers(t *testing.T) {
	f, err := NewFontResolver("").Resolve(CategorySerif, "", "")
	require.NoError(t, err)

	assert.NoError(t, f.Covers("Łukasz Żółć"))
	assert.NoError(t, f.Covers("José  Müller\t"))
	assert.ErrorIs(t, f.Covers("Ada 王"), ErrMissingGlyph)
}

func TestFontResolver_FallsBackToEmbeddedFonts(t *testing.T) {
	resolver := NewFontResolver(t.TempDir())

	face, err := resolver.Face(CategoryMono, "", "", 24)
	require.NoError(t, err)
	defer face.Close()

	metrics := face.Metrics()
	assert.Greater(t, metrics.Ascent.Ceil(), 0)
}

func TestFaceFor_UnknownCategoryIsSans(t *testing.T) {
	assert.Equal(t, CategorySans, FaceFor("handwriting").Category)
}
