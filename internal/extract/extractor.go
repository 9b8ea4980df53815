// Package extract adapts the external minutiae detector. The detection
// algorithm itself is out of scope; this package only shells out to it
// and parses what it writes.
package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/kweli-data/minutiae.registry/internal/matcher"
	"github.com/kweli-data/minutiae.registry/internal/minutiae"
	"github.com/kweli-data/minutiae.registry/internal/scratch"
)

// ErrNoMinutiae reports that a sample produced no usable minutiae.
// Non-fatal for enrollment unless every sample fails.
var ErrNoMinutiae = errors.New("no usable minutiae in sample")

// Extractor produces minutiae from a fingerprint image. Images arrive
// already normalized (grayscale, fixed frame); pixel processing is not
// this layer's job.
type Extractor interface {
	Extract(ctx context.Context, image []byte) (minutiae.Set, error)
}

// Mindtct runs NIST's mindtct detector as a subprocess. Each call gets
// its own scratch directory, removed on every exit path.
type Mindtct struct {
	// Bin is the executable to run, usually just "mindtct".
	Bin string
	// Timeout bounds one invocation.
	Timeout time.Duration
}

// Extract writes the image to scratch storage, runs the detector, and
// parses its xyt output into a point set.
func (m *Mindtct) Extract(ctx context.Context, image []byte) (minutiae.Set, error) {
	dir, err := scratch.New("extract")
	if err != nil {
		return nil, err
	}
	defer dir.Close()

	imagePath, err := dir.WriteFile("sample.png", image)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, m.Timeout)
	defer cancel()

	outBase := dir.Join("probe")
	cmd := exec.CommandContext(ctx, m.Bin, "-m1", imagePath, outBase)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("run %s: %w (output: %s)", m.Bin, err, out)
	}

	xyt, err := os.ReadFile(outBase + ".xyt")
	if err != nil {
		return nil, fmt.Errorf("read detector output: %w", err)
	}
	return ParseDetectorOutput(xyt)
}

// ParseDetectorOutput parses the detector's xyt text into a point set.
// Returns ErrNoMinutiae for empty or entirely unusable output.
func ParseDetectorOutput(xyt []byte) (minutiae.Set, error) {
	points, err := matcher.ParseXYT(string(xyt))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoMinutiae, err)
	}
	if len(points) == 0 {
		return nil, ErrNoMinutiae
	}
	return points, nil
}
