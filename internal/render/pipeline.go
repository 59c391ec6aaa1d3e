package render

import (
	"context"
	"time"
)

// Observer is told how long each renderer took and whether it failed.
type Observer func(renderer string, took time.Duration, err error)

// Pipeline runs the raster renderer and then the vector renderer for a job.
// Either failing fails the pair.
type Pipeline struct {
	raster  Renderer
	vector  Renderer
	observe Observer
}

// Result holds both outputs of a successful pipeline run.
type Result struct {
	PNG *Output
	PDF *Output
}

// NewPipeline creates a pipeline. observe may be nil.
func NewPipeline(raster, vector Renderer, observe Observer) *Pipeline {
	if observe == nil {
		observe = func(string, time.Duration, error) {}
	}
	return &Pipeline{raster: raster, vector: vector, observe: observe}
}

// NewDefaultPipeline wires the stock renderers to one font resolver over
// fontDir, so both outputs draw with the same faces.
func NewDefaultPipeline(fontDir string, observe Observer) *Pipeline {
	fonts := NewFontResolver(fontDir)
	return NewPipeline(NewRasterRenderer(fonts), NewVectorRenderer(fonts), observe)
}

// Run renders the job with both renderers, one after the other.
func (p *Pipeline) Run(ctx context.Context, job Job) (*Result, error) {
	png, err := p.run(ctx, p.raster, job)
	if err != nil {
		return nil, err
	}
	pdf, err := p.run(ctx, p.vector, job)
	if err != nil {
		return nil, err
	}
	return &Result{PNG: png, PDF: pdf}, nil
}

// Preview renders only the raster output, for the template editor.
func (p *Pipeline) Preview(ctx context.Context, job Job) (*Output, error) {
	return p.run(ctx, p.raster, job)
}

func (p *Pipeline) run(ctx context.Context, r Renderer, job Job) (*Output, error) {
	start := time.Now()
	out, err := r.Render(ctx, job)
	p.observe(r.Name(), time.Since(start), err)
	return out, err
}
