// Package enroll orchestrates the enrollment and verification flows.
// Every entry point funnels through the one shared pipeline; there are
// no per-handler pipeline variants.
package enroll

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kweli-data/minutiae.registry/internal/extract"
	"github.com/kweli-data/minutiae.registry/internal/matcher"
	"github.com/kweli-data/minutiae.registry/internal/minutiae"
	"github.com/kweli-data/minutiae.registry/internal/monitoring"
	"github.com/kweli-data/minutiae.registry/internal/pipeline"
	"github.com/kweli-data/minutiae.registry/internal/store"
	"github.com/kweli-data/minutiae.registry/internal/template"
)

// CreationMethod identifies how enrolled templates are built.
const CreationMethod = "fused-dbscan"

// ErrNoUsableSamples reports that every enrollment sample failed
// extraction. A single failed sample is skipped; total failure is fatal
// for the attempt.
var ErrNoUsableSamples = errors.New("no sample produced usable minutiae")

// Service wires the extractor, the pipeline, the template store, and
// the matcher engine into the enrollment and verification operations.
type Service struct {
	extractor extract.Extractor
	pipe      *pipeline.Pipeline
	store     *store.Store
	engine    *matcher.Engine
	workers   int
	limit     int
}

// NewService builds a Service. workers bounds concurrent gallery
// comparisons during identification; limit caps returned matches.
func NewService(extractor extract.Extractor, pipe *pipeline.Pipeline, st *store.Store, engine *matcher.Engine, workers, limit int) *Service {
	return &Service{
		extractor: extractor,
		pipe:      pipe,
		store:     st,
		engine:    engine,
		workers:   workers,
		limit:     limit,
	}
}

// Result is the outcome of a successful enrollment. MetadataJSON is the
// marshaled form of Metadata, the same bytes that were persisted.
type Result struct {
	TemplateID   string            `json:"template_id"`
	Template     []byte            `json:"-"`
	XYT          string            `json:"-"`
	Metadata     template.Metadata `json:"metadata"`
	MetadataJSON json.RawMessage   `json:"-"`
}

// Enroll extracts minutiae from each sample image, fuses them through
// the pipeline, encodes and stores the resulting template.
//
// A sample that fails extraction is skipped — multiple captures exist
// precisely to tolerate a bad one. Only when every sample fails, or
// when fusion leaves nothing, does enrollment fail.
func (s *Service) Enroll(ctx context.Context, nationalID string, samples [][]byte) (*Result, error) {
	var sets []minutiae.Set
	for i, img := range samples {
		points, err := s.extractor.Extract(ctx, img)
		if err != nil {
			monitoring.Logf("enroll: sample %d failed extraction: %v", i+1, err)
			continue
		}
		sets = append(sets, points)
	}
	if len(sets) == 0 {
		return nil, ErrNoUsableSamples
	}

	stabilized, err := s.pipe.Run(sets)
	if err != nil {
		return nil, err
	}

	encoded := template.Encode(stabilized)
	meta := template.Describe(stabilized, CreationMethod)
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}

	rec := &store.Record{
		NationalID:   nationalID,
		ISOTemplate:  encoded,
		XYTData:      matcher.FormatXYT(minutiae.RepairAll(stabilized)),
		TemplateHash: meta.TemplateHash,
		MetadataJSON: metaJSON,
	}
	if err := s.store.Insert(rec); err != nil {
		return nil, fmt.Errorf("store template: %w", err)
	}

	return &Result{
		TemplateID:   rec.TemplateID,
		Template:     encoded,
		XYT:          rec.XYTData,
		Metadata:     meta,
		MetadataJSON: metaJSON,
	}, nil
}

// ExtractProbe turns a probe image into a matcher input via the
// external detector.
func (s *Service) ExtractProbe(ctx context.Context, image []byte) (matcher.Input, error) {
	points, err := s.extractor.Extract(ctx, image)
	if err != nil {
		return matcher.Input{}, err
	}
	return matcher.TextInput(matcher.FormatXYT(points)), nil
}

// Verify compares a probe against the template stored for a national
// id. Lookup failure is a Go error; comparison-level failures come back
// inside the Result per the fail-closed policy.
func (s *Service) Verify(ctx context.Context, probe matcher.Input, nationalID string, threshold int) (matcher.Result, error) {
	rec, err := s.store.GetByNationalID(nationalID)
	if err != nil {
		return matcher.Result{}, err
	}
	return s.engine.Match(ctx, probe, matcher.DetectInput(rec.ISOTemplate), threshold), nil
}

// VerifyAgainst compares a probe against a caller-supplied template.
func (s *Service) VerifyAgainst(ctx context.Context, probe, gallery matcher.Input, threshold int) matcher.Result {
	return s.engine.Match(ctx, probe, gallery, threshold)
}

// Template returns the stored record for a template id.
func (s *Service) Template(templateID string) (*store.Record, error) {
	return s.store.GetByID(templateID)
}

// DeleteTemplate removes a stored template by id.
func (s *Service) DeleteTemplate(templateID string) error {
	return s.store.DeleteByID(templateID)
}

// Identify ranks the probe against every stored template. Per-candidate
// failures are absorbed and excluded from the ranking.
func (s *Service) Identify(ctx context.Context, probe matcher.Input, threshold, limit int) ([]matcher.RankedMatch, int, error) {
	recs, err := s.store.List()
	if err != nil {
		return nil, 0, fmt.Errorf("list templates: %w", err)
	}

	candidates := make([]matcher.Candidate, 0, len(recs))
	for _, rec := range recs {
		candidates = append(candidates, matcher.Candidate{
			TemplateID: rec.TemplateID,
			NationalID: rec.NationalID,
			Template:   rec.ISOTemplate,
		})
	}

	if limit <= 0 {
		limit = s.limit
	}
	matches := s.engine.Identify(ctx, probe, candidates, threshold, limit, s.workers)
	return matches, len(candidates), nil
}
