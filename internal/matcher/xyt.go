package matcher

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kweli-data/minutiae.registry/internal/minutiae"
)

// ErrMalformedInput reports a point-list line that is not 3-4 numeric
// tokens. The adapter fails closed on it: score 0, no match, no fault
// propagated.
var ErrMalformedInput = errors.New("malformed input")

// FormatXYT renders a point set in the matcher's text convention:
// "x y theta" integer triples, one per line, trailing newline.
func FormatXYT(set minutiae.Set) string {
	var sb strings.Builder
	for _, p := range set {
		fmt.Fprintf(&sb, "%d %d %d\n", p.X, p.Y, p.Theta)
	}
	return sb.String()
}

// ParseXYT parses point-list text. Every non-blank line must hold 3-4
// numeric tokens (a fourth token, quality, is accepted and ignored);
// anything else returns ErrMalformedInput. Angles are wrapped into the
// matcher domain and coordinates clamped, matching what the external
// extractor emits.
func ParseXYT(text string) (minutiae.Set, error) {
	var set minutiae.Set
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		tokens := strings.Fields(line)
		if len(tokens) < 3 || len(tokens) > 4 {
			return nil, fmt.Errorf("%w: %q", ErrMalformedInput, line)
		}
		nums := make([]int, 3)
		for i := 0; i < 3; i++ {
			v, err := strconv.Atoi(tokens[i])
			if err != nil {
				// mindtct occasionally emits float-formatted values.
				f, ferr := strconv.ParseFloat(tokens[i], 64)
				if ferr != nil {
					return nil, fmt.Errorf("%w: %q", ErrMalformedInput, line)
				}
				v = int(f)
			}
			nums[i] = v
		}
		if len(tokens) == 4 {
			if _, err := strconv.ParseFloat(tokens[3], 64); err != nil {
				return nil, fmt.Errorf("%w: %q", ErrMalformedInput, line)
			}
		}
		set = append(set, minutiae.ClampToImage(minutiae.Point{
			X:     nums[0],
			Y:     nums[1],
			Theta: minutiae.WrapMatcher(nums[2]),
		}))
	}
	return set, nil
}
