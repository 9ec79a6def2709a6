package smoke

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"example.com/edmgate/internal/manifest"
	"example.com/edmgate/internal/report"
	"example.com/edmgate/internal/rules"
)

// buildDownload assembles a two-flight download file with computed checksums
// and valid flight headers in the binary region.
func buildDownload(t *testing.T) []byte {
	t.Helper()
	var b bytes.Buffer
	lines := []string{
		"$U,N424EX",
		"$C,830,2699,1552,330",
		"$F,0,49,15,3100,3100",
		"$T,2,12,25,9,45",
		"$D,12,64",
		"$D,13,32",
		"$L,13",
	}
	for _, content := range lines {
		var sum byte
		for i := 1; i < len(content); i++ {
			sum ^= content[i]
		}
		fmt.Fprintf(&b, "%s*%02X\r\n", content, sum)
	}
	for i, spec := range []struct {
		number uint16
		size   int
	}{{12, 128}, {13, 64}} {
		block := make([]byte, spec.size)
		for j := range block {
			block[j] = 0x5A
		}
		binary.BigEndian.PutUint16(block[0:], spec.number)
		binary.BigEndian.PutUint16(block[22:], 6)
		binary.BigEndian.PutUint16(block[24:], uint16(25<<9|2<<5|12))
		binary.BigEndian.PutUint16(block[26:], uint16(9<<11|(45+i)<<5|10))
		b.Write(block)
	}
	return b.Bytes()
}

func TestInspectionPipeline(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "download.jpi")
	data := buildDownload(t)
	if err := os.WriteFile(input, data, 0644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	hdr, engine, diags, err := rules.EvalFile(input, data)
	if err != nil {
		t.Fatalf("EvalFile: %v", err)
	}
	if hdr.TailNumber != "N424EX" {
		t.Fatalf("TailNumber = %q", hdr.TailNumber)
	}
	for _, f := range hdr.Flights {
		if !f.Resolved() {
			t.Fatalf("flight %d not resolved", f.Number)
		}
	}

	diagPath := filepath.Join(dir, "diagnostics.jsonl")
	if err := engine.WriteDiagnosticsNDJSON(diagPath); err != nil {
		t.Fatalf("WriteDiagnosticsNDJSON: %v", err)
	}
	f, err := os.Open(diagPath)
	if err != nil {
		t.Fatal(err)
	}
	lineCount := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var d rules.Diagnostic
		if err := json.Unmarshal(scanner.Bytes(), &d); err != nil {
			t.Fatalf("diagnostics line %d: %v", lineCount, err)
		}
		lineCount++
	}
	f.Close()
	if lineCount != len(diags) {
		t.Fatalf("diagnostics lines = %d, want %d", lineCount, len(diags))
	}

	rep := engine.MakeAcceptance()
	if !rep.Summary.Pass {
		t.Fatalf("expected pass, findings: %+v", rep.Findings)
	}

	sum := report.BuildSummary(input, data, hdr, rep)
	sumPath := filepath.Join(dir, "summary.json")
	if err := report.SaveSummaryJSON(sum, sumPath); err != nil {
		t.Fatalf("SaveSummaryJSON: %v", err)
	}
	loaded, err := report.LoadSummaryJSON(sumPath)
	if err != nil {
		t.Fatalf("LoadSummaryJSON: %v", err)
	}
	if loaded.Downloaded != "2025-02-12 09:45" {
		t.Fatalf("Downloaded = %q", loaded.Downloaded)
	}

	pdfPath := filepath.Join(dir, "report.pdf")
	if err := report.SaveInspectionPDF(loaded, pdfPath); err != nil {
		t.Fatalf("SaveInspectionPDF: %v", err)
	}
	raw, err := os.ReadFile(pdfPath)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(raw, []byte("%PDF")) {
		t.Fatal("report is not a PDF document")
	}

	m, err := manifest.Build([]string{input, diagPath, sumPath, pdfPath})
	if err != nil {
		t.Fatalf("manifest.Build: %v", err)
	}
	mPath := filepath.Join(dir, "manifest.json")
	if err := manifest.Save(m, mPath); err != nil {
		t.Fatalf("manifest.Save: %v", err)
	}
	got, err := manifest.Load(mPath)
	if err != nil {
		t.Fatalf("manifest.Load: %v", err)
	}
	if len(got.Items) != 4 {
		t.Fatalf("manifest items = %d, want 4", len(got.Items))
	}
	wantTypes := map[string]bool{"edm": false, "diagnostics": false, "json": false, "pdf": false}
	for _, item := range got.Items {
		wantTypes[item.Type] = true
	}
	for typ, seen := range wantTypes {
		if !seen {
			t.Fatalf("manifest missing %s item", typ)
		}
	}
}
