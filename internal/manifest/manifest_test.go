package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func TestBuildClassifiesArtifacts(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"download.jpi":      "raw",
		"diagnostics.jsonl": "{}\n",
		"summary.json":      "{}",
		"report.pdf":        "%PDF",
		"notes.txt":         "x",
	}
	var paths []string
	for name, body := range files {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, p)
	}

	m, err := Build(paths)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if m.ShaAlgo != "sha256" {
		t.Fatalf("ShaAlgo = %q", m.ShaAlgo)
	}
	if len(m.Items) != len(paths) {
		t.Fatalf("items = %d, want %d", len(m.Items), len(paths))
	}

	types := map[string]string{}
	for _, it := range m.Items {
		types[filepath.Base(it.Path)] = it.Type
		if len(it.Sha256) != 64 {
			t.Fatalf("%s: sha256 length %d", it.Path, len(it.Sha256))
		}
		if it.Size <= 0 {
			t.Fatalf("%s: size %d", it.Path, it.Size)
		}
	}
	want := map[string]string{
		"download.jpi":      "edm",
		"diagnostics.jsonl": "diagnostics",
		"summary.json":      "json",
		"report.pdf":        "pdf",
		"notes.txt":         "other",
	}
	for name, typ := range want {
		if types[name] != typ {
			t.Fatalf("%s classified %q, want %q", name, types[name], typ)
		}
	}
}

func TestBuildMissingFile(t *testing.T) {
	if _, err := Build([]string{filepath.Join(t.TempDir(), "absent.jpi")}); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "download.jpi")
	if err := os.WriteFile(src, []byte("payload"), 0644); err != nil {
		t.Fatal(err)
	}
	m, err := Build([]string{src})
	if err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(dir, "manifest.json")
	if err := Save(m, out); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := Load(out)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(got.Items) != 1 || got.Items[0].Sha256 != m.Items[0].Sha256 {
		t.Fatalf("round trip mismatch: %+v", got.Items)
	}
}
