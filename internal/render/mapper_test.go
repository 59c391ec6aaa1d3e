package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewScale_IdentityWhenContainerMatchesTemplate(t *testing.T) {
	actual := Size{Width: 1754, Height: 1240}

	scale, err := NewScale(actual, actual)
	require.NoError(t, err)
	assert.Equal(t, Scale{X: 1, Y: 1}, scale)

	p := Placeholder{Type: PlaceholderName, X: 321.5, Y: 88, FontSize: 42}
	placed := scale.Place(p)
	assert.Equal(t, 321.5, placed.X)
	assert.Equal(t, 88.0, placed.Y)
	assert.Equal(t, 42.0, placed.FontSize)
}

func TestNewScale_RejectsNonPositiveSides(t *testing.T) {
	cases := []struct {
		name      string
		actual    Size
		container Size
	}{
		{"zero container width", Size{1000, 600}, Size{0, 480}},
		{"zero container height", Size{1000, 600}, Size{800, 0}},
		{"negative actual", Size{-1, 600}, Size{800, 480}},
		{"zero actual", Size{}, Size{800, 480}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewScale(tc.actual, tc.container)
			assert.ErrorIs(t, err, ErrInvalidDimensions)
		})
	}
}

func TestScale_PreservesRelativeHorizontalPosition(t *testing.T) {
	actual := Size{Width: 2480, Height: 3508}
	containers := []Size{
		{Width: 800, Height: 1131.6},
		{Width: 613, Height: 867},
		{Width: 1440, Height: 2037},
	}
	for _, container := range containers {
		scale, err := NewScale(actual, container)
		require.NoError(t, err)

		for _, x := range []float64{0, 17, 250.25, container.Width / 2, container.Width} {
			placed := scale.Place(Placeholder{Type: PlaceholderID, X: x, FontSize: 12})
			assert.InDelta(t, x/container.Width, placed.X/actual.Width, 1e-9)
		}
	}
}

func TestMapPlaceholders_ConcreteScenario(t *testing.T) {
	actual := Size{Width: 1000, Height: 600}
	container := Size{Width: 800, Height: 480}
	ps := []Placeholder{
		{Type: PlaceholderName, X: 100, Y: 50, FontSize: 24, FontFamily: "Georgia"},
	}

	placed, scale, err := MapPlaceholders(actual, container, ps, DefaultContainerWidth)
	require.NoError(t, err)
	require.Len(t, placed, 1)

	assert.Equal(t, 1.25, scale.X)
	assert.Equal(t, 1.25, scale.Y)
	assert.InDelta(t, 125.0, placed[0].X, 1e-9)
	assert.InDelta(t, 62.5, placed[0].Y, 1e-9)
	assert.InDelta(t, 30.0, placed[0].FontSize, 1e-9)
	assert.Equal(t, CategorySerif, placed[0].Category)
	assert.Equal(t, AlignLeft, placed[0].TextAlign)
}

func TestMapPlaceholders_FontSizeFollowsHorizontalScale(t *testing.T) {
	placed, scale, err := MapPlaceholders(
		Size{Width: 1200, Height: 900},
		Size{Width: 600, Height: 300},
		[]Placeholder{{Type: PlaceholderName, X: 10, Y: 10, FontSize: 20}},
		DefaultContainerWidth,
	)
	require.NoError(t, err)

	assert.Equal(t, 2.0, scale.X)
	assert.Equal(t, 3.0, scale.Y)
	assert.Equal(t, 20.0, placed[0].X)
	assert.Equal(t, 30.0, placed[0].Y)
	assert.Equal(t, 40.0, placed[0].FontSize)
}

func TestContainerOrDefault(t *testing.T) {
	actual := Size{Width: 2000, Height: 1000}

	assert.Equal(t, Size{Width: 640, Height: 320}, ContainerOrDefault(actual, Size{Width: 640, Height: 320}, 800))
	assert.Equal(t, Size{Width: 800, Height: 400}, ContainerOrDefault(actual, Size{}, 800))
	assert.Equal(t, Size{Width: 800, Height: 400}, ContainerOrDefault(actual, Size{Width: 640}, 0))
	assert.Equal(t, Size{}, ContainerOrDefault(Size{}, Size{}, 800))
}

func TestMapPlaceholders_MissingContainerUsesDefaultWidth(t *testing.T) {
	placed, scale, err := MapPlaceholders(
		Size{Width: 1600, Height: 1200},
		Size{},
		[]Placeholder{{Type: PlaceholderID, X: 400, Y: 300, FontSize: 10}},
		DefaultContainerWidth,
	)
	require.NoError(t, err)

	assert.Equal(t, Scale{X: 2, Y: 2}, scale)
	assert.Equal(t, 800.0, placed[0].X)
	assert.Equal(t, 600.0, placed[0].Y)
	assert.Equal(t, 20.0, placed[0].FontSize)
}

func TestAlignOffset(t *testing.T) {
	assert.Equal(t, 0.0, AlignOffset(AlignLeft, 120))
	assert.Equal(t, 0.0, AlignOffset("", 120))
	assert.Equal(t, -60.0, AlignOffset(AlignCenter, 120))
	assert.Equal(t, -60.0, AlignOffset("CENTER", 120))
	assert.Equal(t, -120.0, AlignOffset(AlignRight, 120))
}

func TestTopToBaseline(t *testing.T) {
	assert.InDelta(t, 24.0, TopToBaseline(30), 1e-9)
}
