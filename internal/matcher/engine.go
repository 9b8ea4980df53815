// Package matcher bridges template representations to the external
// scoring engine. It owns the encoded-vs-text ingress union, the xyt
// text convention, and the fail-closed policy around the black-box
// scorer subprocess.
package matcher

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/kweli-data/minutiae.registry/internal/monitoring"
	"github.com/kweli-data/minutiae.registry/internal/scratch"
)

// Error tags carried in a failed Result. The shape is always the same
// (score 0, no match); the tag says which stage failed.
const (
	ErrTagMalformed   = "malformed input"
	ErrTagUnavailable = "match engine unavailable"
	ErrTagTimeout     = "match engine timeout"
)

// DefaultThreshold is the score at or above which two templates are
// considered a match.
const DefaultThreshold = 40

// Result is the outcome of one comparison. Failures never propagate as
// faults: they come back as score 0 with an error tag.
type Result struct {
	Score   int    `json:"score"`
	IsMatch bool   `json:"is_match"`
	Error   string `json:"error,omitempty"`
}

// Scorer produces a similarity score for two point-list files. The
// scoring algorithm itself is an external black box.
type Scorer interface {
	Score(ctx context.Context, probePath, galleryPath string) (int, error)
}

// Bozorth3 invokes NIST's bozorth3 matcher as a subprocess. Every call
// is bounded by Timeout.
type Bozorth3 struct {
	// Bin is the executable to run, usually just "bozorth3".
	Bin string
	// Timeout bounds one invocation.
	Timeout time.Duration
}

// errTimeout distinguishes a deadline kill from other process failures.
var errTimeout = errors.New("scorer timed out")

// Score runs the external matcher on two xyt files and parses its
// single integer output.
func (b *Bozorth3) Score(ctx context.Context, probePath, galleryPath string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, b.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, b.Bin, probePath, galleryPath)
	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return 0, fmt.Errorf("%w: %v", errTimeout, ctx.Err())
		}
		return 0, fmt.Errorf("run %s: %w", b.Bin, err)
	}

	score, err := strconv.Atoi(strings.TrimSpace(string(out)))
	if err != nil {
		return 0, fmt.Errorf("parse %s output %q: %w", b.Bin, strings.TrimSpace(string(out)), err)
	}
	return score, nil
}

// Engine wires the scorer to the template representations and owns the
// fail-closed result mapping.
type Engine struct {
	scorer    Scorer
	threshold int
}

// NewEngine creates an Engine around the given scorer with the default
// match threshold.
func NewEngine(scorer Scorer) *Engine {
	return &Engine{scorer: scorer, threshold: DefaultThreshold}
}

// NewEngineWithThreshold creates an Engine with a specific default
// threshold.
func NewEngineWithThreshold(scorer Scorer, threshold int) *Engine {
	return &Engine{scorer: scorer, threshold: threshold}
}

// Threshold returns the engine's default threshold.
func (e *Engine) Threshold() int {
	return e.threshold
}

// Match compares two template representations at the given threshold
// (<=0 means the engine default). Malformed input, scorer failures, and
// timeouts all return the zero-score shape with an error tag; Match
// never returns a Go error for a comparison-level failure.
func (e *Engine) Match(ctx context.Context, probe, gallery Input, threshold int) Result {
	if threshold <= 0 {
		threshold = e.threshold
	}

	probeXYT, err := probe.XYT()
	if err != nil {
		return failClosed(ErrTagMalformed, err)
	}
	galleryXYT, err := gallery.XYT()
	if err != nil {
		return failClosed(ErrTagMalformed, err)
	}

	dir, err := scratch.New("match")
	if err != nil {
		return failClosed(ErrTagUnavailable, err)
	}
	defer dir.Close()

	probePath, err := dir.WriteFile("probe.xyt", []byte(probeXYT))
	if err != nil {
		return failClosed(ErrTagUnavailable, err)
	}
	galleryPath, err := dir.WriteFile("gallery.xyt", []byte(galleryXYT))
	if err != nil {
		return failClosed(ErrTagUnavailable, err)
	}

	score, err := e.scorer.Score(ctx, probePath, galleryPath)
	if err != nil {
		if errors.Is(err, errTimeout) || errors.Is(err, context.DeadlineExceeded) {
			return failClosed(ErrTagTimeout, err)
		}
		return failClosed(ErrTagUnavailable, err)
	}

	return Result{Score: score, IsMatch: score >= threshold}
}

func failClosed(tag string, err error) Result {
	monitoring.Logf("matcher: %s: %v", tag, err)
	return Result{Score: 0, IsMatch: false, Error: tag}
}
