// Package pipeline implements the shared template-preparation pipeline:
// fuse multiple per-finger samples into one set, canonicalize position
// and orientation, quantize, and stabilize to a fixed cardinality.
//
// There is exactly one pipeline. Every entry point (enrollment,
// verification, tooling) runs the same stages with the same parameters;
// no caller carries its own variant. Each stage is a pure function of
// its input and returns a new set.
package pipeline

// Params holds the tuning parameters for every pipeline stage. The
// defaults were tuned empirically; treat them as configuration, not
// derivable constants.
type Params struct {
	// Eps is the DBSCAN neighborhood radius in pixels used during
	// multi-sample fusion.
	Eps float64
	// MinSamples is the DBSCAN minimum cluster population.
	MinSamples int
	// GridStep is the coordinate quantization grid in pixels.
	GridStep int
	// AngleStep is the angle quantization step in degrees.
	AngleStep int
	// StabilizeRadius is the fixed cutoff distance from the median
	// center beyond which points are discarded. Non-adaptive on
	// purpose: an adaptive radius would make output depend on outlier
	// geometry.
	StabilizeRadius int
	// TemplateSize is the fixed point cardinality of a stabilized set.
	TemplateSize int
}

// Default parameter values.
const (
	DefaultEps             = 12.0
	DefaultMinSamples      = 2
	DefaultGridStep        = 8
	DefaultAngleStep       = 10
	DefaultStabilizeRadius = 200
	DefaultTemplateSize    = 40
)

// DefaultParams returns the default pipeline parameters.
func DefaultParams() Params {
	return Params{
		Eps:             DefaultEps,
		MinSamples:      DefaultMinSamples,
		GridStep:        DefaultGridStep,
		AngleStep:       DefaultAngleStep,
		StabilizeRadius: DefaultStabilizeRadius,
		TemplateSize:    DefaultTemplateSize,
	}
}
