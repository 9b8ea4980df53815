package pipeline

import (
	"errors"

	"github.com/kweli-data/minutiae.registry/internal/minutiae"
	"github.com/kweli-data/minutiae.registry/internal/template"
)

// ErrFusionEmpty reports that no minutiae survived fusion. It is fatal
// for the enrollment attempt that produced it.
var ErrFusionEmpty = errors.New("no minutiae survived fusion")

// Pipeline runs the full template-preparation sequence:
// fuse → canonicalize → quantize → stabilize. It is stateless and safe
// for concurrent use; every run is a pure function of its input and the
// fixed parameters.
type Pipeline struct {
	params Params
}

// New creates a pipeline with the given parameters.
func New(params Params) *Pipeline {
	return &Pipeline{params: params}
}

// NewDefault creates a pipeline with default parameters.
func NewDefault() *Pipeline {
	return New(DefaultParams())
}

// Params returns the pipeline's parameters.
func (p *Pipeline) Params() Params {
	return p.params
}

// Run produces a stabilized set of exactly TemplateSize points from one
// or more samples of the same finger. Returns ErrFusionEmpty when
// clustering leaves nothing to build a template from.
func (p *Pipeline) Run(samples []minutiae.Set) (minutiae.Set, error) {
	fused := Fuse(samples, p.params.Eps, p.params.MinSamples)
	if len(fused) == 0 {
		return nil, ErrFusionEmpty
	}
	canonical := Canonicalize(fused)
	quantized := Quantize(canonical, p.params.GridStep, p.params.AngleStep)
	return Stabilize(quantized, p.params.StabilizeRadius, p.params.TemplateSize), nil
}

// Template runs the pipeline and encodes the result into the binary
// wire format.
func (p *Pipeline) Template(samples []minutiae.Set) ([]byte, error) {
	stabilized, err := p.Run(samples)
	if err != nil {
		return nil, err
	}
	return template.Encode(stabilized), nil
}
