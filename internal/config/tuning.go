// Package config loads the tuning parameters shared by the pipeline,
// the external tool adapters, and the HTTP layer.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file,
// the single source of truth for default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig is the root tuning configuration. Fields are pointers so
// a partial JSON file is safe: anything omitted falls back to the Get*
// defaults. The quantization and clustering constants were tuned
// empirically in production; they are configuration, not derivations.
type TuningConfig struct {
	// Fusion params
	FusionEps        *float64 `json:"fusion_eps,omitempty"`
	FusionMinSamples *int     `json:"fusion_min_samples,omitempty"`

	// Quantizer params
	GridStep  *int `json:"grid_step,omitempty"`
	AngleStep *int `json:"angle_step,omitempty"`

	// Stabilizer params
	StabilizeRadius *int `json:"stabilize_radius,omitempty"`
	TemplateSize    *int `json:"template_size,omitempty"`

	// Matching params
	MatchThreshold *int    `json:"match_threshold,omitempty"`
	GalleryWorkers *int    `json:"gallery_workers,omitempty"`
	GalleryLimit   *int    `json:"gallery_limit,omitempty"`
	MatcherTimeout *string `json:"matcher_timeout,omitempty"` // duration string like "10s"
	MatcherBin     *string `json:"matcher_bin,omitempty"`

	// Extraction params
	ExtractorTimeout *string `json:"extractor_timeout,omitempty"` // duration string like "30s"
	ExtractorBin     *string `json:"extractor_bin,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields unset.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. The file must
// have a .json extension and stay under the max file size. Omitted
// fields keep their defaults, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configured values are usable.
func (c *TuningConfig) Validate() error {
	if c.FusionEps != nil && *c.FusionEps <= 0 {
		return fmt.Errorf("fusion_eps must be positive, got %f", *c.FusionEps)
	}
	if c.FusionMinSamples != nil && *c.FusionMinSamples < 1 {
		return fmt.Errorf("fusion_min_samples must be at least 1, got %d", *c.FusionMinSamples)
	}
	if c.GridStep != nil && *c.GridStep < 1 {
		return fmt.Errorf("grid_step must be at least 1, got %d", *c.GridStep)
	}
	if c.AngleStep != nil && (*c.AngleStep < 1 || *c.AngleStep > 90) {
		return fmt.Errorf("angle_step must be in [1,90], got %d", *c.AngleStep)
	}
	if c.StabilizeRadius != nil && *c.StabilizeRadius < 1 {
		return fmt.Errorf("stabilize_radius must be positive, got %d", *c.StabilizeRadius)
	}
	if c.TemplateSize != nil && (*c.TemplateSize < 1 || *c.TemplateSize > 255) {
		return fmt.Errorf("template_size must be in [1,255], got %d", *c.TemplateSize)
	}
	if c.MatchThreshold != nil && *c.MatchThreshold < 0 {
		return fmt.Errorf("match_threshold must be non-negative, got %d", *c.MatchThreshold)
	}
	if c.GalleryWorkers != nil && *c.GalleryWorkers < 1 {
		return fmt.Errorf("gallery_workers must be at least 1, got %d", *c.GalleryWorkers)
	}
	if c.MatcherTimeout != nil && *c.MatcherTimeout != "" {
		if _, err := time.ParseDuration(*c.MatcherTimeout); err != nil {
			return fmt.Errorf("invalid matcher_timeout '%s': %w", *c.MatcherTimeout, err)
		}
	}
	if c.ExtractorTimeout != nil && *c.ExtractorTimeout != "" {
		if _, err := time.ParseDuration(*c.ExtractorTimeout); err != nil {
			return fmt.Errorf("invalid extractor_timeout '%s': %w", *c.ExtractorTimeout, err)
		}
	}
	return nil
}

// GetFusionEps returns the fusion_eps value or the default.
func (c *TuningConfig) GetFusionEps() float64 {
	if c.FusionEps == nil {
		return 12.0
	}
	return *c.FusionEps
}

// GetFusionMinSamples returns the fusion_min_samples value or the default.
func (c *TuningConfig) GetFusionMinSamples() int {
	if c.FusionMinSamples == nil {
		return 2
	}
	return *c.FusionMinSamples
}

// GetGridStep returns the grid_step value or the default.
func (c *TuningConfig) GetGridStep() int {
	if c.GridStep == nil {
		return 8
	}
	return *c.GridStep
}

// GetAngleStep returns the angle_step value or the default.
func (c *TuningConfig) GetAngleStep() int {
	if c.AngleStep == nil {
		return 10
	}
	return *c.AngleStep
}

// GetStabilizeRadius returns the stabilize_radius value or the default.
func (c *TuningConfig) GetStabilizeRadius() int {
	if c.StabilizeRadius == nil {
		return 200
	}
	return *c.StabilizeRadius
}

// GetTemplateSize returns the template_size value or the default.
func (c *TuningConfig) GetTemplateSize() int {
	if c.TemplateSize == nil {
		return 40
	}
	return *c.TemplateSize
}

// GetMatchThreshold returns the match_threshold value or the default.
func (c *TuningConfig) GetMatchThreshold() int {
	if c.MatchThreshold == nil {
		return 40
	}
	return *c.MatchThreshold
}

// GetGalleryWorkers returns the gallery_workers value or the default.
func (c *TuningConfig) GetGalleryWorkers() int {
	if c.GalleryWorkers == nil {
		return 4
	}
	return *c.GalleryWorkers
}

// GetGalleryLimit returns the gallery_limit value or the default.
func (c *TuningConfig) GetGalleryLimit() int {
	if c.GalleryLimit == nil {
		return 5
	}
	return *c.GalleryLimit
}

// GetMatcherTimeout parses and returns the matcher_timeout as a duration.
func (c *TuningConfig) GetMatcherTimeout() time.Duration {
	if c.MatcherTimeout == nil || *c.MatcherTimeout == "" {
		return 10 * time.Second
	}
	d, err := time.ParseDuration(*c.MatcherTimeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// GetMatcherBin returns the matcher_bin value or the default.
func (c *TuningConfig) GetMatcherBin() string {
	if c.MatcherBin == nil || *c.MatcherBin == "" {
		return "bozorth3"
	}
	return *c.MatcherBin
}

// GetExtractorTimeout parses and returns the extractor_timeout as a duration.
func (c *TuningConfig) GetExtractorTimeout() time.Duration {
	if c.ExtractorTimeout == nil || *c.ExtractorTimeout == "" {
		return 30 * time.Second
	}
	d, err := time.ParseDuration(*c.ExtractorTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetExtractorBin returns the extractor_bin value or the default.
func (c *TuningConfig) GetExtractorBin() string {
	if c.ExtractorBin == nil || *c.ExtractorBin == "" {
		return "mindtct"
	}
	return *c.ExtractorBin
}
