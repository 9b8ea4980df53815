package template

import "github.com/kweli-data/minutiae.registry/internal/minutiae"

// Template format version reported in metadata.
const Version = "2.0"

// CenterPoint is the arithmetic center of a template's minutiae.
type CenterPoint struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Metadata describes an enrolled template. Informational only: nothing
// in matching reads it.
type Metadata struct {
	TemplateVersion string      `json:"template_version"`
	CreationMethod  string      `json:"creation_method"`
	MinutiaeCount   int         `json:"minutiae_count"`
	TemplateHash    string      `json:"template_hash"`
	CenterPoint     CenterPoint `json:"center_point"`
}

// Describe builds the metadata record for a stabilized point set.
func Describe(points minutiae.Set, creationMethod string) Metadata {
	cx, cy := points.Centroid()
	return Metadata{
		TemplateVersion: Version,
		CreationMethod:  creationMethod,
		MinutiaeCount:   len(points),
		TemplateHash:    Hash(points),
		CenterPoint:     CenterPoint{X: int(cx), Y: int(cy)},
	}
}
