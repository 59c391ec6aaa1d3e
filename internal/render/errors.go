package render

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidDimensions  = errors.New("template and container dimensions must be positive")
	ErrDecodeTemplate     = errors.New("template asset could not be decoded")
	ErrTemplateIncomplete = errors.New("template needs at least one name and one id placeholder")
	ErrMissingPreview     = errors.New("pdf template has no preview image for raster output")
	ErrInvalidPlaceholder = errors.New("invalid placeholder")
)

// Error reports which renderer failed and at what stage.
type Error struct {
	Renderer string
	Stage    string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s renderer: %s: %v", e.Renderer, e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func fail(renderer, stage string, err error) error {
	return &Error{Renderer: renderer, Stage: stage, Err: err}
}
