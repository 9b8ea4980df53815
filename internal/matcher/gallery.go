package matcher

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Candidate is one stored template to compare a probe against.
type Candidate struct {
	TemplateID string
	NationalID string
	Template   []byte
}

// RankedMatch is one gallery comparison that met the threshold.
type RankedMatch struct {
	TemplateID string `json:"template_id"`
	NationalID string `json:"national_id,omitempty"`
	Score      int    `json:"score"`
}

// DefaultGalleryWorkers bounds concurrent scorer subprocesses during
// identification.
const DefaultGalleryWorkers = 4

// Identify compares the probe against every candidate over a bounded
// worker pool and returns the matches at or above the threshold, ranked
// by score descending, capped at limit (<=0 means no cap).
//
// The comparisons are independent, so they run concurrently; ranking
// happens only after all of them return. A failed comparison
// (unavailable scorer, malformed stored template) is absorbed: that
// candidate is simply excluded, and identification carries on.
func (e *Engine) Identify(ctx context.Context, probe Input, candidates []Candidate, threshold, limit, workers int) []RankedMatch {
	if threshold <= 0 {
		threshold = e.threshold
	}
	if workers <= 0 {
		workers = DefaultGalleryWorkers
	}

	var mu sync.Mutex
	var matches []RankedMatch

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, cand := range candidates {
		g.Go(func() error {
			res := e.Match(gctx, probe, DetectInput(cand.Template), threshold)
			if res.Error != "" || !res.IsMatch {
				return nil
			}
			mu.Lock()
			matches = append(matches, RankedMatch{
				TemplateID: cand.TemplateID,
				NationalID: cand.NationalID,
				Score:      res.Score,
			})
			mu.Unlock()
			return nil
		})
	}
	// Workers never return errors; comparison failures are absorbed
	// per candidate.
	_ = g.Wait()

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].TemplateID < matches[j].TemplateID
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}
