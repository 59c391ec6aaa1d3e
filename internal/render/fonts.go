package render

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/go-fonts/liberation/liberationmonobold"
	"github.com/go-fonts/liberation/liberationmonobolditalic"
	"github.com/go-fonts/liberation/liberationmonoitalic"
	"github.com/go-fonts/liberation/liberationmonoregular"
	"github.com/go-fonts/liberation/liberationsansbold"
	"github.com/go-fonts/liberation/liberationsansbolditalic"
	"github.com/go-fonts/liberation/liberationsansitalic"
	"github.com/go-fonts/liberation/liberationsansregular"
	"github.com/go-fonts/liberation/liberationserifbold"
	"github.com/go-fonts/liberation/liberationserifbolditalic"
	"github.com/go-fonts/liberation/liberationserifitalic"
	"github.com/go-fonts/liberation/liberationserifregular"
	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
)

// ErrMissingGlyph is returned when a value contains a character the
// placeholder's font cannot draw.
var ErrMissingGlyph = errors.New("font has no glyph for character")

// FontCategory is the semantic typeface class a font family belongs to.
type FontCategory string

const (
	CategorySans    FontCategory = "sans"
	CategorySerif   FontCategory = "serif"
	CategoryMono    FontCategory = "mono"
	CategoryDisplay FontCategory = "display"
)

// fontVariant selects one of the four faces of a family.
type fontVariant int

const (
	variantRegular fontVariant = iota
	variantBold
	variantItalic
	variantBoldItalic
)

// FacePair is the one typeface a category renders with. The raster renderer
// draws with it and the vector renderer embeds the same TrueType bytes, so
// the two outputs cannot disagree on glyph shapes or advances.
type FacePair struct {
	Category FontCategory
	Family   string
	// Files are looked up in the font directory, indexed by fontVariant.
	Files [4]string
	// Embedded is used for any file the font directory does not provide.
	Embedded [4][]byte
}

var (
	sansFiles  = [4]string{"LiberationSans-Regular.ttf", "LiberationSans-Bold.ttf", "LiberationSans-Italic.ttf", "LiberationSans-BoldItalic.ttf"}
	serifFiles = [4]string{"LiberationSerif-Regular.ttf", "LiberationSerif-Bold.ttf", "LiberationSerif-Italic.ttf", "LiberationSerif-BoldItalic.ttf"}
	monoFiles  = [4]string{"LiberationMono-Regular.ttf", "LiberationMono-Bold.ttf", "LiberationMono-Italic.ttf", "LiberationMono-BoldItalic.ttf"}

	sansTTF  = [4][]byte{liberationsansregular.TTF, liberationsansbold.TTF, liberationsansitalic.TTF, liberationsansbolditalic.TTF}
	serifTTF = [4][]byte{liberationserifregular.TTF, liberationserifbold.TTF, liberationserifitalic.TTF, liberationserifbolditalic.TTF}
	monoTTF  = [4][]byte{liberationmonoregular.TTF, liberationmonobold.TTF, liberationmonoitalic.TTF, liberationmonobolditalic.TTF}
)

var faces = map[FontCategory]FacePair{
	CategorySans:  {Category: CategorySans, Family: "Liberation Sans", Files: sansFiles, Embedded: sansTTF},
	CategorySerif: {Category: CategorySerif, Family: "Liberation Serif", Files: serifFiles, Embedded: serifTTF},
	CategoryMono:  {Category: CategoryMono, Family: "Liberation Mono", Files: monoFiles, Embedded: monoTTF},
	// Display text is always italic; weight still selects bold.
	CategoryDisplay: {
		Category: CategoryDisplay,
		Family:   "Liberation Serif Italic",
		Files:    [4]string{serifFiles[variantItalic], serifFiles[variantBoldItalic], serifFiles[variantItalic], serifFiles[variantBoldItalic]},
		Embedded: [4][]byte{serifTTF[variantItalic], serifTTF[variantBoldItalic], serifTTF[variantItalic], serifTTF[variantBoldItalic]},
	},
}

// fontCategories lists every family the template editor's font picker offers.
var fontCategories = map[string]FontCategory{
	"arial":              CategorySans,
	"helvetica":          CategorySans,
	"helvetica neue":     CategorySans,
	"verdana":            CategorySans,
	"tahoma":             CategorySans,
	"trebuchet ms":       CategorySans,
	"segoe ui":           CategorySans,
	"roboto":             CategorySans,
	"open sans":          CategorySans,
	"lato":               CategorySans,
	"montserrat":         CategorySans,
	"poppins":            CategorySans,
	"raleway":            CategorySans,
	"nunito":             CategorySans,
	"inter":              CategorySans,
	"sans-serif":         CategorySans,
	"times new roman":    CategorySerif,
	"times":              CategorySerif,
	"georgia":            CategorySerif,
	"garamond":           CategorySerif,
	"eb garamond":        CategorySerif,
	"baskerville":        CategorySerif,
	"book antiqua":       CategorySerif,
	"palatino":           CategorySerif,
	"merriweather":       CategorySerif,
	"playfair display":   CategorySerif,
	"cormorant garamond": CategorySerif,
	"libre baskerville":  CategorySerif,
	"serif":              CategorySerif,
	"courier new":        CategoryMono,
	"courier":            CategoryMono,
	"consolas":           CategoryMono,
	"monaco":             CategoryMono,
	"lucida console":     CategoryMono,
	"roboto mono":        CategoryMono,
	"source code pro":    CategoryMono,
	"monospace":          CategoryMono,
	"great vibes":        CategoryDisplay,
	"dancing script":     CategoryDisplay,
	"pacifico":           CategoryDisplay,
	"lobster":            CategoryDisplay,
	"alex brush":         CategoryDisplay,
	"pinyon script":      CategoryDisplay,
	"parisienne":         CategoryDisplay,
	"allura":             CategoryDisplay,
	"brush script mt":    CategoryDisplay,
	"cursive":            CategoryDisplay,
}

// CategoryOf maps a family name to its category. Unknown names are sans.
func CategoryOf(family string) FontCategory {
	name := strings.ToLower(strings.TrimSpace(family))
	name = strings.Trim(name, `"'`)
	if c, ok := fontCategories[name]; ok {
		return c
	}
	return CategorySans
}

// FaceFor returns the paired faces of a category.
func FaceFor(c FontCategory) FacePair {
	if f, ok := faces[c]; ok {
		return f
	}
	return faces[CategorySans]
}

// FontOption is one entry of the editor's font picker.
type FontOption struct {
	Family   string       `json:"family"`
	Category FontCategory `json:"category"`
	Face     string       `json:"face"`
}

// SupportedFonts lists the font picker entries with the face both renderers
// will actually use, sorted by family.
func SupportedFonts() []FontOption {
	out := make([]FontOption, 0, len(fontCategories))
	for family, c := range fontCategories {
		out = append(out, FontOption{
			Family:   family,
			Category: c,
			Face:     FaceFor(c).Family,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Family < out[j].Family })
	return out
}

// IsBold reports whether a CSS font-weight value renders as bold.
func IsBold(weight string) bool {
	w := strings.ToLower(strings.TrimSpace(weight))
	switch w {
	case "bold", "bolder":
		return true
	}
	if n, err := strconv.Atoi(w); err == nil {
		return n >= 600
	}
	return false
}

// IsItalic reports whether a CSS font-style value renders as italic.
func IsItalic(style string) bool {
	s := strings.ToLower(strings.TrimSpace(style))
	return s == "italic" || s == "oblique"
}

func variantOf(weight, style string) fontVariant {
	bold, italic := IsBold(weight), IsItalic(style)
	switch {
	case bold && italic:
		return variantBoldItalic
	case bold:
		return variantBold
	case italic:
		return variantItalic
	default:
		return variantRegular
	}
}

// ResolvedFont is one face of a family as both renderers use it.
type ResolvedFont struct {
	// Name is unique per face and is the family the PDF embeds it under.
	Name string
	Data []byte
	font *opentype.Font
}

// NewFace returns a raster face at size pixels. The caller closes it.
func (f *ResolvedFont) NewFace(size float64) (font.Face, error) {
	face, err := opentype.NewFace(f.font, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, fmt.Errorf("create font face: %w", err)
	}
	return face, nil
}

// Covers fails with ErrMissingGlyph on the first character of text the face
// cannot draw. Whitespace is not checked.
func (f *ResolvedFont) Covers(text string) error {
	var buf sfnt.Buffer
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		idx, err := f.font.GlyphIndex(&buf, r)
		if err != nil {
			return fmt.Errorf("look up glyph %q in %s: %w", r, f.Name, err)
		}
		if idx == 0 {
			return fmt.Errorf("%w %q (%U) in %s", ErrMissingGlyph, r, r, f.Name)
		}
	}
	return nil
}

// FontResolver loads faces from a font directory, falling back to the
// embedded Liberation fonts. Parsed fonts are cached for the resolver's
// lifetime.
type FontResolver struct {
	dir   string
	mu    sync.Mutex
	cache map[string]*ResolvedFont
}

// NewFontResolver creates a resolver. An empty dir uses embedded fonts only.
func NewFontResolver(dir string) *FontResolver {
	return &FontResolver{
		dir:   dir,
		cache: make(map[string]*ResolvedFont),
	}
}

// Resolve returns the face for a category and CSS weight/style.
func (r *FontResolver) Resolve(c FontCategory, weight, style string) (*ResolvedFont, error) {
	pair := FaceFor(c)
	v := variantOf(weight, style)
	file := pair.Files[v]

	r.mu.Lock()
	defer r.mu.Unlock()

	if f, ok := r.cache[file]; ok {
		return f, nil
	}

	data := pair.Embedded[v]
	if r.dir != "" {
		if b, err := os.ReadFile(filepath.Join(r.dir, file)); err == nil {
			data = b
		}
	}

	parsed, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font %s: %w", file, err)
	}
	f := &ResolvedFont{
		Name: strings.TrimSuffix(file, filepath.Ext(file)),
		Data: data,
		font: parsed,
	}
	r.cache[file] = f
	return f, nil
}

// Face returns a raster face for the category and CSS weight/style at size
// pixels. The caller closes it.
func (r *FontResolver) Face(c FontCategory, weight, style string, size float64) (font.Face, error) {
	f, err := r.Resolve(c, weight, style)
	if err != nil {
		return nil, err
	}
	return f.NewFace(size)
}
