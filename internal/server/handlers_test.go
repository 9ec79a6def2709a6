package server

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"example.com/edmgate/internal/manifest"
	"example.com/edmgate/internal/report"
)

func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	s, err := NewServer(Options{StorageDir: t.TempDir()})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, NewRouter(s)
}

// sampleDownload builds a minimal valid download file: a checksummed header
// cataloging one 16-word flight, followed by that flight's binary block.
func sampleDownload(t *testing.T) []byte {
	t.Helper()
	var b bytes.Buffer
	for _, content := range []string{"$U,N12345", "$D,1,16", "$L,1"} {
		var sum byte
		for i := 1; i < len(content); i++ {
			sum ^= content[i]
		}
		fmt.Fprintf(&b, "%s*%02X\r\n", content, sum)
	}
	block := make([]byte, 32)
	for i := range block {
		block[i] = 0x5A
	}
	binary.BigEndian.PutUint16(block[0:], 1)
	binary.BigEndian.PutUint16(block[22:], 6)
	binary.BigEndian.PutUint16(block[24:], uint16(24<<9|6<<5|15))
	binary.BigEndian.PutUint16(block[26:], uint16(14<<11|30<<5|13))
	b.Write(block)
	return b.Bytes()
}

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "download.jpi")
	if err := os.WriteFile(path, sampleDownload(t), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func postJSON(t *testing.T, h http.Handler, url string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestInspectEndpoint(t *testing.T) {
	_, h := newTestServer(t)
	path := writeSample(t)

	rec := postJSON(t, h, "/inspect", map[string]any{"input": path})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Summary   report.Summary `json:"summary"`
		Artifacts []ArtifactRef  `json:"artifacts"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Summary.TailNumber != "N12345" {
		t.Fatalf("TailNumber = %q", resp.Summary.TailNumber)
	}
	if len(resp.Summary.Flights) != 1 || !resp.Summary.Flights[0].Resolved {
		t.Fatalf("flights = %+v", resp.Summary.Flights)
	}
	if !resp.Summary.Acceptance.Summary.Pass {
		t.Fatalf("expected pass, findings: %+v", resp.Summary.Acceptance.Findings)
	}
	if len(resp.Artifacts) != 2 {
		t.Fatalf("artifacts = %d, want diagnostics + summary", len(resp.Artifacts))
	}

	dl := httptest.NewRequest(http.MethodGet, "/artifacts/"+resp.Artifacts[1].ID, nil)
	rec2 := httptest.NewRecorder()
	h.ServeHTTP(rec2, dl)
	if rec2.Code != http.StatusOK {
		t.Fatalf("artifact download status = %d", rec2.Code)
	}
	var sum report.Summary
	if err := json.Unmarshal(rec2.Body.Bytes(), &sum); err != nil {
		t.Fatalf("downloaded summary: %v", err)
	}
	if sum.TailNumber != "N12345" {
		t.Fatalf("downloaded TailNumber = %q", sum.TailNumber)
	}
}

func TestInspectWithPDFArtifact(t *testing.T) {
	_, h := newTestServer(t)
	path := writeSample(t)

	rec := postJSON(t, h, "/inspect", map[string]any{"input": path, "pdf": true})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Artifacts []ArtifactRef `json:"artifacts"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Artifacts) != 3 {
		t.Fatalf("artifacts = %d, want 3", len(resp.Artifacts))
	}
	if resp.Artifacts[2].Kind != "report" || resp.Artifacts[2].ContentType != "application/pdf" {
		t.Fatalf("pdf artifact = %+v", resp.Artifacts[2])
	}
}

func TestInspectStreamEmitsSummaryLast(t *testing.T) {
	_, h := newTestServer(t)
	path := writeSample(t)

	rec := postJSON(t, h, "/inspect?stream=true", map[string]any{"input": path})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/x-ndjson" {
		t.Fatalf("Content-Type = %q", ct)
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	var last struct {
		Type    string         `json:"type"`
		Summary report.Summary `json:"summary"`
	}
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &last); err != nil {
		t.Fatalf("final line: %v", err)
	}
	if last.Type != "summary" {
		t.Fatalf("final line type = %q", last.Type)
	}
	if last.Summary.BinaryStart == 0 {
		t.Fatal("summary missing binary start")
	}
}

func TestInspectRejectsBadInput(t *testing.T) {
	_, h := newTestServer(t)

	rec := postJSON(t, h, "/inspect", map[string]any{"input": filepath.Join(t.TempDir(), "absent.jpi")})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	headerOnly := filepath.Join(t.TempDir(), "truncated.jpi")
	if err := os.WriteFile(headerOnly, []byte("$U,N12345*06\r\n"), 0644); err != nil {
		t.Fatal(err)
	}
	rec2 := postJSON(t, h, "/inspect", map[string]any{"input": headerOnly})
	if rec2.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422 for missing terminal record", rec2.Code)
	}
}

func TestFlightsEndpointStreamsCatalog(t *testing.T) {
	_, h := newTestServer(t)
	path := writeSample(t)

	rec := postJSON(t, h, "/flights", map[string]any{"input": path})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("rows = %d, want 1", len(lines))
	}
	var row struct {
		Number   uint16 `json:"number"`
		Resolved bool   `json:"resolved"`
		Offset   int64  `json:"offset"`
	}
	if err := json.Unmarshal([]byte(lines[0]), &row); err != nil {
		t.Fatal(err)
	}
	if row.Number != 1 || !row.Resolved {
		t.Fatalf("row = %+v", row)
	}
}

func TestUploadThenInspectByArtifactID(t *testing.T) {
	_, h := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "download.jpi")
	if err != nil {
		t.Fatal(err)
	}
	part.Write(sampleDownload(t))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload status = %d, body %s", rec.Code, rec.Body.String())
	}
	var up struct {
		Files []ArtifactRef `json:"files"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &up); err != nil {
		t.Fatal(err)
	}
	if len(up.Files) != 1 || up.Files[0].Kind != "upload" {
		t.Fatalf("upload response = %+v", up)
	}

	rec2 := postJSON(t, h, "/inspect", map[string]any{"input": up.Files[0].ID})
	if rec2.Code != http.StatusOK {
		t.Fatalf("inspect by id status = %d, body %s", rec2.Code, rec2.Body.String())
	}
}

func TestManifestEndpoint(t *testing.T) {
	_, h := newTestServer(t)
	path := writeSample(t)

	rec := postJSON(t, h, "/manifest", map[string]any{"inputs": []string{path}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Manifest manifest.Manifest `json:"manifest"`
		Artifact ArtifactRef       `json:"artifact"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Manifest.Items) != 1 || resp.Manifest.Items[0].Type != "edm" {
		t.Fatalf("manifest = %+v", resp.Manifest.Items)
	}
	if resp.Artifact.Kind != "manifest" {
		t.Fatalf("artifact kind = %q", resp.Artifact.Kind)
	}

	rec2 := postJSON(t, h, "/manifest", map[string]any{"inputs": []string{path}, "shaAlgo": "md5"})
	if rec2.Code != http.StatusBadRequest {
		t.Fatalf("md5 status = %d, want 400", rec2.Code)
	}
}

func TestHealthz(t *testing.T) {
	_, h := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}
