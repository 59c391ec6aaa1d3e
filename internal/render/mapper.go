package render

// DefaultContainerWidth is the editor preview width assumed when the caller
// cannot report the container size it placed placeholders against.
const DefaultContainerWidth = 800

// topToBaselineRatio places the baseline this far below the top of the text
// box, as a fraction of the font size. Both renderers use it, so the top of
// the glyph box sits at the placeholder's y in PNG and PDF output alike.
const topToBaselineRatio = 0.8

// Size is a width/height pair in pixels.
type Size struct {
	Width  float64 `json:"width" bson:"width"`
	Height float64 `json:"height" bson:"height"`
}

func (s Size) valid() bool {
	return s.Width > 0 && s.Height > 0
}

// Scale maps editor display coordinates onto the template's true pixels.
type Scale struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Placed is a placeholder whose position and font size are expressed in the
// template's true pixel space.
type Placed struct {
	Placeholder
	Category FontCategory
}

// ContainerOrDefault returns container when both of its sides are positive.
// Otherwise it assumes the preview kept the template's aspect ratio at
// defaultWidth pixels wide.
func ContainerOrDefault(actual, container Size, defaultWidth float64) Size {
	if container.valid() {
		return container
	}
	if defaultWidth <= 0 {
		defaultWidth = DefaultContainerWidth
	}
	if actual.Width <= 0 {
		return Size{}
	}
	return Size{Width: defaultWidth, Height: defaultWidth * actual.Height / actual.Width}
}

// NewScale computes the factors from container space to actual space.
func NewScale(actual, container Size) (Scale, error) {
	if !actual.valid() || !container.valid() {
		return Scale{}, ErrInvalidDimensions
	}
	return Scale{
		X: actual.Width / container.Width,
		Y: actual.Height / container.Height,
	}, nil
}

// Place scales one placeholder. Font size follows the horizontal factor.
func (s Scale) Place(p Placeholder) Placed {
	p.X *= s.X
	p.Y *= s.Y
	p.FontSize *= s.X
	p.TextAlign = normalizeAlign(p.TextAlign)
	return Placed{Placeholder: p, Category: CategoryOf(p.FontFamily)}
}

// MapPlaceholders is the single place where editor coordinates become render
// coordinates; both renderers consume its output.
func MapPlaceholders(actual, container Size, ps []Placeholder, defaultWidth float64) ([]Placed, Scale, error) {
	scale, err := NewScale(actual, ContainerOrDefault(actual, container, defaultWidth))
	if err != nil {
		return nil, Scale{}, err
	}
	placed := make([]Placed, 0, len(ps))
	for _, p := range ps {
		placed = append(placed, scale.Place(p))
	}
	return placed, scale, nil
}

// TopToBaseline is the distance from the top of a text box to its baseline.
func TopToBaseline(fontSize float64) float64 {
	return fontSize * topToBaselineRatio
}

// AlignOffset is added to a placeholder's x to get the left edge of text
// that is width pixels wide.
func AlignOffset(align TextAlign, width float64) float64 {
	switch normalizeAlign(align) {
	case AlignCenter:
		return -width / 2
	case AlignRight:
		return -width
	default:
		return 0
	}
}
