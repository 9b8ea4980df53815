package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/kweli-data/minutiae.registry/internal/enroll"
	"github.com/kweli-data/minutiae.registry/internal/httputil"
	"github.com/kweli-data/minutiae.registry/internal/matcher"
	"github.com/kweli-data/minutiae.registry/internal/pipeline"
	"github.com/kweli-data/minutiae.registry/internal/store"
)

// FingerprintSample is one captured sample in an enrollment request.
type FingerprintSample struct {
	// Sample is the base64-encoded fingerprint image.
	Sample string `json:"sample"`
	// Finger labels the capture ("Scan 1", ...). Informational.
	Finger string `json:"finger,omitempty"`
}

// EnrollRequest enrolls N samples of one finger for a national id.
type EnrollRequest struct {
	NationalID   string              `json:"national_id"`
	Fingerprints []FingerprintSample `json:"fingerprints"`
}

// EnrollResponse returns the enrolled template and its metadata.
type EnrollResponse struct {
	TemplateID     string          `json:"template_id"`
	TemplateBase64 string          `json:"iso_template_base64"`
	XYTData        string          `json:"xyt_data"`
	Metadata       json.RawMessage `json:"metadata"`
}

// VerifyRequest compares a probe against a stored or supplied template.
// The probe is either an image (to be run through the external
// detector) or an already-built template; the gallery side is either a
// national id lookup or an inline template.
type VerifyRequest struct {
	ProbeImage      string `json:"probe_image,omitempty"`    // base64 image
	ProbeTemplate   string `json:"probe_template,omitempty"` // base64 template or xyt text
	NationalID      string `json:"national_id,omitempty"`
	GalleryTemplate string `json:"gallery_template,omitempty"` // base64 template or xyt text
	Threshold       int    `json:"threshold,omitempty"`
}

// VerifyResponse carries the comparison outcome.
type VerifyResponse struct {
	NationalID string `json:"national_id,omitempty"`
	Score      int    `json:"score"`
	IsMatch    bool   `json:"is_match"`
	Error      string `json:"error,omitempty"`
}

// IdentifyRequest ranks a probe against every stored template.
type IdentifyRequest struct {
	ProbeImage    string `json:"probe_image,omitempty"`
	ProbeTemplate string `json:"probe_template,omitempty"`
	Threshold     int    `json:"threshold,omitempty"`
	Limit         int    `json:"limit,omitempty"`
}

// IdentifyResponse lists ranked matches.
type IdentifyResponse struct {
	Matches           []matcher.RankedMatch `json:"matches"`
	MatchCount        int                   `json:"match_count"`
	TemplatesCompared int                   `json:"templates_compared"`
	ThresholdUsed     int                   `json:"threshold_used"`
}

func (s *Server) enrollTemplate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	var req EnrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.BadRequest(w, "invalid request body: "+err.Error())
		return
	}
	if req.NationalID == "" {
		httputil.BadRequest(w, "national_id is required")
		return
	}
	if len(req.Fingerprints) == 0 {
		httputil.BadRequest(w, "at least one fingerprint sample is required")
		return
	}

	samples := make([][]byte, 0, len(req.Fingerprints))
	for i, fp := range req.Fingerprints {
		img, err := base64.StdEncoding.DecodeString(fp.Sample)
		if err != nil {
			httputil.BadRequest(w, fmt.Sprintf("sample %d is not valid base64", i+1))
			return
		}
		samples = append(samples, img)
	}

	result, err := s.svc.Enroll(r.Context(), req.NationalID, samples)
	switch {
	case errors.Is(err, enroll.ErrNoUsableSamples), errors.Is(err, pipeline.ErrFusionEmpty):
		httputil.WriteJSONError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		httputil.InternalServerError(w, "enrollment failed: "+err.Error())
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, EnrollResponse{
		TemplateID:     result.TemplateID,
		TemplateBase64: base64.StdEncoding.EncodeToString(result.Template),
		XYTData:        result.XYT,
		Metadata:       result.MetadataJSON,
	})
}

func (s *Server) verifyTemplate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.BadRequest(w, "invalid request body: "+err.Error())
		return
	}

	if req.NationalID != "" && req.GalleryTemplate != "" {
		httputil.BadRequest(w, "national_id and gallery_template are mutually exclusive")
		return
	}

	probe, ok := s.resolveProbe(w, r, req.ProbeImage, req.ProbeTemplate)
	if !ok {
		return
	}

	threshold := req.Threshold
	if threshold <= 0 {
		threshold = s.cfg.GetMatchThreshold()
	}

	switch {
	case req.NationalID != "":
		result, err := s.svc.Verify(r.Context(), probe, req.NationalID, threshold)
		if errors.Is(err, store.ErrNotFound) {
			httputil.NotFound(w, "no template found for national id")
			return
		}
		if err != nil {
			httputil.InternalServerError(w, "verification failed: "+err.Error())
			return
		}
		httputil.WriteJSONOK(w, VerifyResponse{
			NationalID: req.NationalID,
			Score:      result.Score,
			IsMatch:    result.IsMatch,
			Error:      result.Error,
		})
	case req.GalleryTemplate != "":
		gallery := decodeTemplateField(req.GalleryTemplate)
		result := s.svc.VerifyAgainst(r.Context(), probe, gallery, threshold)
		httputil.WriteJSONOK(w, VerifyResponse{
			Score:   result.Score,
			IsMatch: result.IsMatch,
			Error:   result.Error,
		})
	default:
		httputil.BadRequest(w, "either national_id or gallery_template is required")
	}
}

func (s *Server) identifyTemplate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	var req IdentifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.BadRequest(w, "invalid request body: "+err.Error())
		return
	}

	probe, ok := s.resolveProbe(w, r, req.ProbeImage, req.ProbeTemplate)
	if !ok {
		return
	}

	threshold := req.Threshold
	if threshold <= 0 {
		threshold = s.cfg.GetMatchThreshold()
	}
	limit := req.Limit
	if limit <= 0 {
		limit = s.cfg.GetGalleryLimit()
	}

	matches, compared, err := s.svc.Identify(r.Context(), probe, threshold, limit)
	if err != nil {
		httputil.InternalServerError(w, "identification failed: "+err.Error())
		return
	}
	if matches == nil {
		matches = []matcher.RankedMatch{}
	}
	httputil.WriteJSONOK(w, IdentifyResponse{
		Matches:           matches,
		MatchCount:        len(matches),
		TemplatesCompared: compared,
		ThresholdUsed:     threshold,
	})
}

// TemplateRecordResponse is the admin view of one stored template.
type TemplateRecordResponse struct {
	TemplateID     string          `json:"template_id"`
	NationalID     string          `json:"national_id"`
	TemplateBase64 string          `json:"iso_template_base64"`
	TemplateHash   string          `json:"template_hash"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
	CreatedAt      int64           `json:"created_at"`
}

// templateByID serves the admin surface for a single stored template:
// GET fetches the record, DELETE removes it.
func (s *Server) templateByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/templates/")
	if id == "" || strings.Contains(id, "/") {
		httputil.NotFound(w, "unknown route")
		return
	}

	switch r.Method {
	case http.MethodGet:
		rec, err := s.svc.Template(id)
		if errors.Is(err, store.ErrNotFound) {
			httputil.NotFound(w, "no template with id "+id)
			return
		}
		if err != nil {
			httputil.InternalServerError(w, "template lookup failed: "+err.Error())
			return
		}
		httputil.WriteJSONOK(w, TemplateRecordResponse{
			TemplateID:     rec.TemplateID,
			NationalID:     rec.NationalID,
			TemplateBase64: base64.StdEncoding.EncodeToString(rec.ISOTemplate),
			TemplateHash:   rec.TemplateHash,
			Metadata:       rec.MetadataJSON,
			CreatedAt:      rec.CreatedAt,
		})
	case http.MethodDelete:
		err := s.svc.DeleteTemplate(id)
		if errors.Is(err, store.ErrNotFound) {
			httputil.NotFound(w, "no template with id "+id)
			return
		}
		if err != nil {
			httputil.InternalServerError(w, "template delete failed: "+err.Error())
			return
		}
		httputil.WriteJSONOK(w, map[string]string{"deleted": id})
	default:
		httputil.MethodNotAllowed(w)
	}
}

// resolveProbe builds the matcher input from a request's probe fields.
// Writes the error response itself when the probe is unusable.
func (s *Server) resolveProbe(w http.ResponseWriter, r *http.Request, probeImage, probeTemplate string) (matcher.Input, bool) {
	switch {
	case probeImage != "":
		img, err := base64.StdEncoding.DecodeString(probeImage)
		if err != nil {
			httputil.BadRequest(w, "probe_image is not valid base64")
			return matcher.Input{}, false
		}
		probe, err := s.svc.ExtractProbe(r.Context(), img)
		if err != nil {
			httputil.WriteJSONError(w, http.StatusUnprocessableEntity, "probe extraction failed: "+err.Error())
			return matcher.Input{}, false
		}
		return probe, true
	case probeTemplate != "":
		return decodeTemplateField(probeTemplate), true
	default:
		httputil.BadRequest(w, "either probe_image or probe_template is required")
		return matcher.Input{}, false
	}
}

// decodeTemplateField resolves a request field that may hold a base64
// encoded binary template, base64 point-list text, or raw point-list
// text. The representation is decided here, once; downstream code never
// re-sniffs.
func decodeTemplateField(field string) matcher.Input {
	if raw, err := base64.StdEncoding.DecodeString(field); err == nil {
		return matcher.DetectInput(raw)
	}
	// Not base64: accept raw xyt text as a convenience.
	return matcher.TextInput(field)
}
