package matcher

import (
	"fmt"

	"github.com/kweli-data/minutiae.registry/internal/minutiae"
	"github.com/kweli-data/minutiae.registry/internal/template"
)

// InputKind tags the two template representations the adapter accepts.
type InputKind int

const (
	// KindEncoded is a binary template record.
	KindEncoded InputKind = iota
	// KindText is a point-list in the matcher's text convention.
	KindText
)

// Input is a resolved template representation. The encoded-vs-text
// decision is made exactly once, by magic-byte sniffing at the ingress
// boundary; nothing downstream re-sniffs.
type Input struct {
	kind InputKind
	data []byte
}

// DetectInput resolves raw bytes into a tagged Input: buffers starting
// with the template magic are encoded records, everything else is
// treated as point-list text.
func DetectInput(data []byte) Input {
	if template.IsEncoded(data) {
		return Input{kind: KindEncoded, data: data}
	}
	return Input{kind: KindText, data: data}
}

// EncodedInput wraps bytes already known to be a binary template.
func EncodedInput(data []byte) Input {
	return Input{kind: KindEncoded, data: data}
}

// TextInput wraps a point-list string.
func TextInput(text string) Input {
	return Input{kind: KindText, data: []byte(text)}
}

// Kind returns the input's resolved representation.
func (in Input) Kind() InputKind {
	return in.kind
}

// Points extracts the repaired point set from either representation.
// Repair runs here because this is the boundary the points cross on
// their way to the external scorer.
func (in Input) Points() (minutiae.Set, error) {
	switch in.kind {
	case KindEncoded:
		points, err := template.Decode(in.data)
		if err != nil {
			return nil, fmt.Errorf("encoded input: %w", err)
		}
		return minutiae.RepairAll(points), nil
	default:
		points, err := ParseXYT(string(in.data))
		if err != nil {
			return nil, err
		}
		return minutiae.RepairAll(points), nil
	}
}

// XYT renders the input in the scorer's text convention, repair
// applied.
func (in Input) XYT() (string, error) {
	points, err := in.Points()
	if err != nil {
		return "", err
	}
	return FormatXYT(points), nil
}
