package render

import (
	"fmt"
	"strings"
)

// PlaceholderType identifies which participant value a placeholder shows.
type PlaceholderType string

const (
	PlaceholderName PlaceholderType = "name"
	PlaceholderID   PlaceholderType = "id"
)

// TextAlign is the horizontal anchor of a placeholder's text at its x position.
type TextAlign string

const (
	AlignLeft   TextAlign = "left"
	AlignCenter TextAlign = "center"
	AlignRight  TextAlign = "right"
)

// Placeholder is a text slot on a template, positioned in the editor's
// display coordinate space.
type Placeholder struct {
	ID         string          `json:"id" bson:"id"`
	Type       PlaceholderType `json:"type" bson:"type" binding:"required"`
	X          float64         `json:"x" bson:"x"`
	Y          float64         `json:"y" bson:"y"`
	FontSize   float64         `json:"fontSize" bson:"fontSize"`
	FontFamily string          `json:"fontFamily" bson:"fontFamily"`
	Color      string          `json:"color" bson:"color"`
	FontWeight string          `json:"fontWeight" bson:"fontWeight"`
	FontStyle  string          `json:"fontStyle" bson:"fontStyle"`
	TextAlign  TextAlign       `json:"textAlign" bson:"textAlign"`
	// Rotation is kept with the template but neither renderer applies it.
	Rotation float64  `json:"rotation" bson:"rotation"`
	Width    *float64 `json:"width,omitempty" bson:"width,omitempty"`
	Height   *float64 `json:"height,omitempty" bson:"height,omitempty"`
}

// Validate checks a single placeholder's style attributes.
func (p Placeholder) Validate() error {
	switch p.Type {
	case PlaceholderName, PlaceholderID:
	default:
		return fmt.Errorf("%w: type %q must be %q or %q", ErrInvalidPlaceholder, p.Type, PlaceholderName, PlaceholderID)
	}
	if p.FontSize <= 0 {
		return fmt.Errorf("%w: %q font size must be positive", ErrInvalidPlaceholder, p.Type)
	}
	if p.X < 0 || p.Y < 0 {
		return fmt.Errorf("%w: %q position must not be negative", ErrInvalidPlaceholder, p.Type)
	}
	if p.Color != "" {
		if _, err := ParseHexColor(p.Color); err != nil {
			return fmt.Errorf("%w: %q %v", ErrInvalidPlaceholder, p.Type, err)
		}
	}
	switch normalizeAlign(p.TextAlign) {
	case AlignLeft, AlignCenter, AlignRight:
	default:
		return fmt.Errorf("%w: %q text align %q is not supported", ErrInvalidPlaceholder, p.Type, p.TextAlign)
	}
	return nil
}

// ValidatePlaceholders validates every placeholder of a list. An empty list
// is valid; it only makes the template unusable for generation.
func ValidatePlaceholders(ps []Placeholder) error {
	for i, p := range ps {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("placeholder %d: %w", i, err)
		}
	}
	return nil
}

// RequireUsable returns ErrTemplateIncomplete unless the list holds at least
// one name and one id placeholder.
func RequireUsable(ps []Placeholder) error {
	var hasName, hasID bool
	for _, p := range ps {
		switch p.Type {
		case PlaceholderName:
			hasName = true
		case PlaceholderID:
			hasID = true
		}
	}
	if !hasName || !hasID {
		return ErrTemplateIncomplete
	}
	return nil
}

// ClonePlaceholders copies a placeholder list, including the optional
// width/height pointers, so snapshots never share memory with the source.
func ClonePlaceholders(ps []Placeholder) []Placeholder {
	if ps == nil {
		return nil
	}
	out := make([]Placeholder, len(ps))
	for i, p := range ps {
		out[i] = p
		if p.Width != nil {
			w := *p.Width
			out[i].Width = &w
		}
		if p.Height != nil {
			h := *p.Height
			out[i].Height = &h
		}
	}
	return out
}

func normalizeAlign(a TextAlign) TextAlign {
	if a == "" {
		return AlignLeft
	}
	return TextAlign(strings.ToLower(string(a)))
}
