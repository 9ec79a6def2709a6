package report

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"example.com/edmgate/internal/edm"
	"example.com/edmgate/internal/rules"
)

func sampleData(t *testing.T) ([]byte, *edm.Header) {
	t.Helper()
	var b bytes.Buffer
	for _, content := range []string{"$U,N54321", "$C,930,2699,1552,330", "$T,6,15,24,14,30", "$D,7,16", "$L,7"} {
		var sum byte
		for i := 1; i < len(content); i++ {
			sum ^= content[i]
		}
		fmt.Fprintf(&b, "%s*%02X\r\n", content, sum)
	}
	block := make([]byte, 32)
	binary.BigEndian.PutUint16(block[0:], 7)
	binary.BigEndian.PutUint16(block[22:], 6)
	binary.BigEndian.PutUint16(block[24:], uint16(24<<9|6<<5|15))
	binary.BigEndian.PutUint16(block[26:], uint16(14<<11|30<<5|13))
	b.Write(block)

	data := b.Bytes()
	hdr, err := edm.Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	return data, hdr
}

func acceptanceFor(t *testing.T, file string, hdr *edm.Header, size int64) rules.AcceptanceReport {
	t.Helper()
	eng := rules.NewEngine()
	eng.RegisterBuiltins()
	if _, err := eng.Eval(&rules.Context{File: file, Header: hdr, Size: size}); err != nil {
		t.Fatalf("Eval failed: %v", err)
	}
	return eng.MakeAcceptance()
}

func TestBuildSummary(t *testing.T) {
	data, hdr := sampleData(t)
	rep := acceptanceFor(t, "download.jpi", hdr, int64(len(data)))
	sum := BuildSummary("download.jpi", data, hdr, rep)

	if sum.TailNumber != "N54321" {
		t.Fatalf("TailNumber = %q", sum.TailNumber)
	}
	if sum.Model != 930 {
		t.Fatalf("Model = %d", sum.Model)
	}
	if sum.Downloaded != "2024-06-15 14:30" {
		t.Fatalf("Downloaded = %q", sum.Downloaded)
	}
	if len(sum.Sha256) != 64 {
		t.Fatalf("Sha256 = %q", sum.Sha256)
	}
	if len(sum.Flights) != 1 {
		t.Fatalf("flights = %d", len(sum.Flights))
	}
	f := sum.Flights[0]
	if !f.Resolved || f.Date != "2024-06-15" || f.Time != "14:30:26" || f.Interval != 6 {
		t.Fatalf("flight = %+v", f)
	}
	if !sum.Acceptance.Summary.Pass {
		t.Fatalf("expected pass, findings: %+v", sum.Acceptance.Findings)
	}
}

func TestSummaryJSONRoundTrip(t *testing.T) {
	data, hdr := sampleData(t)
	rep := acceptanceFor(t, "download.jpi", hdr, int64(len(data)))
	sum := BuildSummary("download.jpi", data, hdr, rep)

	out := filepath.Join(t.TempDir(), "summary.json")
	if err := SaveSummaryJSON(sum, out); err != nil {
		t.Fatalf("SaveSummaryJSON failed: %v", err)
	}
	got, err := LoadSummaryJSON(out)
	if err != nil {
		t.Fatalf("LoadSummaryJSON failed: %v", err)
	}
	if got.Sha256 != sum.Sha256 || got.BinaryStart != sum.BinaryStart {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if len(got.Flights) != len(sum.Flights) {
		t.Fatalf("flights = %d, want %d", len(got.Flights), len(sum.Flights))
	}
}

func TestDigestToQR(t *testing.T) {
	png, err := DigestToQR("ab12cd34", 128)
	if err != nil {
		t.Fatalf("DigestToQR failed: %v", err)
	}
	if len(png) == 0 || !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Fatal("expected PNG output")
	}
	if _, err := DigestToQR("  ", 128); err == nil {
		t.Fatal("empty digest should fail")
	}
}

func TestSanitizeHash(t *testing.T) {
	if got := sanitizeHash(" ab:CD-12 "); got != "ABCD12" {
		t.Fatalf("sanitizeHash = %q", got)
	}
}

func TestSaveInspectionPDF(t *testing.T) {
	data, hdr := sampleData(t)
	rep := acceptanceFor(t, "download.jpi", hdr, int64(len(data)))
	sum := BuildSummary("download.jpi", data, hdr, rep)

	out := filepath.Join(t.TempDir(), "report.pdf")
	if err := SaveInspectionPDF(sum, out); err != nil {
		t.Fatalf("SaveInspectionPDF failed: %v", err)
	}
	raw, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(raw, []byte("%PDF")) {
		t.Fatal("output is not a PDF document")
	}
}
