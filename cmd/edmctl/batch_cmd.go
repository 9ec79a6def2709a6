package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"example.com/edmgate/internal/report"
	"example.com/edmgate/internal/rules"
)

type batchResult struct {
	File  string
	Pass  bool
	Diags int
	Err   error
}

func batchCmd(args []string) {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	inDir := fs.String("in", ".", "input directory")
	outDir := fs.String("out-dir", "out", "results directory")
	concurrency := fs.Int("concurrency", runtime.NumCPU(), "maximum concurrent files")
	fs.Parse(args)

	results, err := runBatch(*inDir, *outDir, *concurrency)
	if err != nil {
		fmt.Println("batch:", err)
		os.Exit(1)
	}
	if len(results) == 0 {
		fmt.Println("no download files found in", *inDir)
		return
	}
	failed := 0
	for _, r := range results {
		switch {
		case r.Err != nil:
			failed++
			fmt.Printf("%s: error: %v\n", r.File, r.Err)
		case !r.Pass:
			failed++
			fmt.Printf("%s: FAIL (%d diagnostics)\n", r.File, r.Diags)
		default:
			fmt.Printf("%s: PASS (%d diagnostics)\n", r.File, r.Diags)
		}
	}
	fmt.Printf("Checked %d file(s), %d failed\n", len(results), failed)
	if failed > 0 {
		os.Exit(1)
	}
}

// runBatch checks every download file in dir with a bounded worker pool and
// writes per-file diagnostics and summaries under outDir.
func runBatch(dir, outDir string, concurrency int) ([]batchResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".jpi", ".dat", ".edm":
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	if len(files) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	jobs := make(chan string)
	resultCh := make(chan batchResult)
	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				resultCh <- checkOne(path, outDir)
			}
		}()
	}
	go func() {
		for _, f := range files {
			jobs <- f
		}
		close(jobs)
		wg.Wait()
		close(resultCh)
	}()

	var results []batchResult
	for r := range resultCh {
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].File < results[j].File })
	return results, nil
}

func checkOne(path, outDir string) batchResult {
	res := batchResult{File: path}
	data, err := os.ReadFile(path)
	if err != nil {
		res.Err = err
		return res
	}
	hdr, engine, diags, err := rules.EvalFile(path, data)
	if err != nil {
		res.Err = err
		return res
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if err := engine.WriteDiagnosticsNDJSON(filepath.Join(outDir, base+".diagnostics.jsonl")); err != nil {
		res.Err = err
		return res
	}
	rep := engine.MakeAcceptance()
	sum := report.BuildSummary(path, data, hdr, rep)
	if err := report.SaveSummaryJSON(sum, filepath.Join(outDir, base+".summary.json")); err != nil {
		res.Err = err
		return res
	}
	res.Pass = rep.Summary.Pass
	res.Diags = len(diags)
	return res
}
