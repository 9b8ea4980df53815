package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/kweli-data/minutiae.registry/internal/config"
	"github.com/kweli-data/minutiae.registry/internal/enroll"
	"github.com/kweli-data/minutiae.registry/internal/extract"
	"github.com/kweli-data/minutiae.registry/internal/matcher"
	"github.com/kweli-data/minutiae.registry/internal/minutiae"
	"github.com/kweli-data/minutiae.registry/internal/pipeline"
	"github.com/kweli-data/minutiae.registry/internal/store"
)

// textExtractor reads the "image" bytes as xyt text so tests control
// extraction without the external detector.
type textExtractor struct{}

func (textExtractor) Extract(ctx context.Context, image []byte) (minutiae.Set, error) {
	return extract.ParseDetectorOutput(image)
}

var _ extract.Extractor = textExtractor{}

type fixedScorer struct {
	score int
}

func (s *fixedScorer) Score(ctx context.Context, probePath, galleryPath string) (int, error) {
	return s.score, nil
}

func newTestServer(t *testing.T, score int) *Server {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "templates.db"))
	if err != nil {
		t.Fatalf("store.Open() error: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.MigrateUp("../../migrations"); err != nil {
		t.Fatalf("MigrateUp() error: %v", err)
	}

	cfg := config.EmptyTuningConfig()
	engine := matcher.NewEngine(&fixedScorer{score: score})
	svc := enroll.NewService(textExtractor{}, pipeline.NewDefault(), st, engine, 2, 10)
	return NewServer(svc, cfg)
}

func postJSON(t *testing.T, srv *Server, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	rec := httptest.NewRecorder()
	srv.ServeMux().ServeHTTP(rec, req)
	return rec
}

func enrollBody(nationalID string) EnrollRequest {
	samples := []string{
		"100 100 30\n200 200 90\n300 150 140\n",
		"102 101 34\n202 201 94\n301 152 138\n",
	}
	req := EnrollRequest{NationalID: nationalID}
	for i, s := range samples {
		req.Fingerprints = append(req.Fingerprints, FingerprintSample{
			Sample: base64.StdEncoding.EncodeToString([]byte(s)),
			Finger: "Scan " + string(rune('1'+i)),
		})
	}
	return req
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, 80)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.ServeMux().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %v, want ok", body["status"])
	}
}

func TestConfigEndpoint(t *testing.T) {
	srv := newTestServer(t, 80)

	req := httptest.NewRequest(http.MethodGet, "/api/config", nil)
	rec := httptest.NewRecorder()
	srv.ServeMux().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["match_threshold"] != float64(40) {
		t.Errorf("match_threshold = %v, want 40", body["match_threshold"])
	}
}

func TestEnrollEndpoint(t *testing.T) {
	srv := newTestServer(t, 80)

	rec := postJSON(t, srv, "/api/templates/enroll", enrollBody("ID-100"))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body: %s", rec.Code, rec.Body.String())
	}
	var resp EnrollResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp.TemplateID == "" {
		t.Error("empty template id")
	}
	if resp.TemplateBase64 == "" {
		t.Error("empty template")
	}
	if _, err := base64.StdEncoding.DecodeString(resp.TemplateBase64); err != nil {
		t.Errorf("template is not valid base64: %v", err)
	}

	var meta map[string]any
	if err := json.Unmarshal(resp.Metadata, &meta); err != nil {
		t.Fatalf("metadata is not valid JSON: %v", err)
	}
	if meta["template_hash"] == "" || meta["template_hash"] == nil {
		t.Error("metadata is missing template_hash")
	}
}

func TestTemplateAdminRoutes(t *testing.T) {
	srv := newTestServer(t, 80)

	rec := postJSON(t, srv, "/api/templates/enroll", enrollBody("ID-150"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("enroll status = %d; body: %s", rec.Code, rec.Body.String())
	}
	var enrolled EnrollResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &enrolled); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	do := func(method, path string) *httptest.ResponseRecorder {
		t.Helper()
		req := httptest.NewRequest(method, path, nil)
		rec := httptest.NewRecorder()
		srv.ServeMux().ServeHTTP(rec, req)
		return rec
	}

	got := do(http.MethodGet, "/api/templates/"+enrolled.TemplateID)
	if got.Code != http.StatusOK {
		t.Fatalf("get status = %d, want 200; body: %s", got.Code, got.Body.String())
	}
	var record TemplateRecordResponse
	if err := json.Unmarshal(got.Body.Bytes(), &record); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if record.NationalID != "ID-150" {
		t.Errorf("national_id = %q, want ID-150", record.NationalID)
	}
	if record.TemplateBase64 != enrolled.TemplateBase64 {
		t.Error("stored template differs from the enrolled one")
	}
	if record.CreatedAt == 0 {
		t.Error("created_at is zero")
	}

	if rec := do(http.MethodPut, "/api/templates/"+enrolled.TemplateID); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("put status = %d, want 405", rec.Code)
	}

	if rec := do(http.MethodDelete, "/api/templates/"+enrolled.TemplateID); rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	if rec := do(http.MethodGet, "/api/templates/"+enrolled.TemplateID); rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", rec.Code)
	}
	if rec := do(http.MethodDelete, "/api/templates/"+enrolled.TemplateID); rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}

	if rec := do(http.MethodGet, "/api/templates/"); rec.Code != http.StatusNotFound {
		t.Errorf("bare prefix status = %d, want 404", rec.Code)
	}
}

func TestEnrollEndpointValidation(t *testing.T) {
	srv := newTestServer(t, 80)

	tests := []struct {
		name string
		body EnrollRequest
		want int
	}{
		{
			name: "missing national id",
			body: EnrollRequest{Fingerprints: enrollBody("x").Fingerprints},
			want: http.StatusBadRequest,
		},
		{
			name: "no samples",
			body: EnrollRequest{NationalID: "ID-101"},
			want: http.StatusBadRequest,
		},
		{
			name: "invalid base64",
			body: EnrollRequest{
				NationalID:   "ID-102",
				Fingerprints: []FingerprintSample{{Sample: "not base64!!!"}},
			},
			want: http.StatusBadRequest,
		},
		{
			name: "unusable samples",
			body: EnrollRequest{
				NationalID: "ID-103",
				Fingerprints: []FingerprintSample{{
					Sample: base64.StdEncoding.EncodeToString([]byte("unreadable image data")),
				}},
			},
			want: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, srv, "/api/templates/enroll", tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d; body: %s", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestEnrollEndpointMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, 80)

	req := httptest.NewRequest(http.MethodGet, "/api/templates/enroll", nil)
	rec := httptest.NewRecorder()
	srv.ServeMux().ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestVerifyEndpointAgainstStored(t *testing.T) {
	srv := newTestServer(t, 80)

	if rec := postJSON(t, srv, "/api/templates/enroll", enrollBody("ID-200")); rec.Code != http.StatusCreated {
		t.Fatalf("enroll status = %d; body: %s", rec.Code, rec.Body.String())
	}

	rec := postJSON(t, srv, "/api/templates/verify", VerifyRequest{
		ProbeTemplate: base64.StdEncoding.EncodeToString([]byte("100 100 30\n200 200 90\n")),
		NationalID:    "ID-200",
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	var resp VerifyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if !resp.IsMatch || resp.Score != 80 {
		t.Errorf("got %+v, want match with score 80", resp)
	}
}

func TestVerifyEndpointUnknownNationalID(t *testing.T) {
	srv := newTestServer(t, 80)

	rec := postJSON(t, srv, "/api/templates/verify", VerifyRequest{
		ProbeTemplate: base64.StdEncoding.EncodeToString([]byte("100 100 30\n")),
		NationalID:    "ID-404",
	})

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestVerifyEndpointInlineGallery(t *testing.T) {
	srv := newTestServer(t, 80)

	rec := postJSON(t, srv, "/api/templates/verify", VerifyRequest{
		ProbeTemplate:   base64.StdEncoding.EncodeToString([]byte("100 100 30\n")),
		GalleryTemplate: base64.StdEncoding.EncodeToString([]byte("101 101 32\n")),
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	var resp VerifyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if !resp.IsMatch {
		t.Errorf("got %+v, want a match at the default threshold", resp)
	}
}

func TestVerifyEndpointAmbiguousGallery(t *testing.T) {
	srv := newTestServer(t, 80)

	rec := postJSON(t, srv, "/api/templates/verify", VerifyRequest{
		ProbeTemplate:   base64.StdEncoding.EncodeToString([]byte("100 100 30\n")),
		NationalID:      "ID-1",
		GalleryTemplate: base64.StdEncoding.EncodeToString([]byte("101 101 32\n")),
	})

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestVerifyEndpointMissingProbe(t *testing.T) {
	srv := newTestServer(t, 80)

	rec := postJSON(t, srv, "/api/templates/verify", VerifyRequest{NationalID: "ID-1"})

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestIdentifyEndpoint(t *testing.T) {
	srv := newTestServer(t, 80)

	for _, id := range []string{"ID-301", "ID-302"} {
		if rec := postJSON(t, srv, "/api/templates/enroll", enrollBody(id)); rec.Code != http.StatusCreated {
			t.Fatalf("enroll status = %d; body: %s", rec.Code, rec.Body.String())
		}
	}

	rec := postJSON(t, srv, "/api/templates/identify", IdentifyRequest{
		ProbeTemplate: base64.StdEncoding.EncodeToString([]byte("100 100 30\n")),
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	var resp IdentifyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp.TemplatesCompared != 2 {
		t.Errorf("templates compared = %d, want 2", resp.TemplatesCompared)
	}
	if resp.MatchCount != 2 || len(resp.Matches) != 2 {
		t.Errorf("match count = %d (%d entries), want 2", resp.MatchCount, len(resp.Matches))
	}
	if resp.ThresholdUsed != 40 {
		t.Errorf("threshold used = %d, want 40", resp.ThresholdUsed)
	}
}

func TestIdentifyEndpointEmptyGallery(t *testing.T) {
	srv := newTestServer(t, 80)

	rec := postJSON(t, srv, "/api/templates/identify", IdentifyRequest{
		ProbeTemplate: base64.StdEncoding.EncodeToString([]byte("100 100 30\n")),
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	var resp IdentifyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp.MatchCount != 0 {
		t.Errorf("match count = %d, want 0", resp.MatchCount)
	}
	if resp.Matches == nil {
		t.Error("matches should encode as an empty list, not null")
	}
}
