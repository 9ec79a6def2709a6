package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"example.com/edmgate/internal/common"
	"example.com/edmgate/internal/edm"
	"example.com/edmgate/internal/manifest"
	"example.com/edmgate/internal/report"
	"example.com/edmgate/internal/rules"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}
	cmd := os.Args[1]
	switch cmd {
	case "inspect":
		inspectCmd(os.Args[2:])
	case "check":
		checkCmd(os.Args[2:])
	case "report":
		reportCmd(os.Args[2:])
	case "manifest":
		manifestCmd(os.Args[2:])
	case "batch":
		batchCmd(os.Args[2:])
	default:
		usage()
	}
}

func usage() {
	fmt.Printf(`edmctl %s (built %s) <command> [options]

Commands:
  inspect   --in <download> [--json] [--metrics] [--progress]
  check     --in <download> [--out <diagnostics.jsonl>] [--acceptance <acceptance.json>] [--summary <summary.json>]
  report    --summary <summary.json> --pdf <report.pdf>
  manifest  --inputs <comma-separated> --out <manifest.json>
  batch     --in <dir> --out-dir <dir> [--concurrency <n>]
`, version, buildDate)
}

func decodeFile(path string, metrics *common.Metrics) ([]byte, *edm.Header, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	dec := edm.NewDecoder()
	if metrics != nil {
		dec.SetMetrics(metrics)
	}
	hdr, err := dec.Decode(data)
	if err != nil {
		return nil, nil, err
	}
	return data, hdr, nil
}

func inspectCmd(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	in := fs.String("in", "", "input download file")
	asJSON := fs.Bool("json", false, "print the decoded header as JSON")
	metricsFlag := fs.Bool("metrics", false, "print decode throughput metrics")
	progressFlag := fs.Bool("progress", false, "display decode progress updates")
	fs.Parse(args)

	if *in == "" {
		fmt.Println("required: --in")
		os.Exit(1)
	}

	var metrics *common.Metrics
	if *metricsFlag || *progressFlag {
		metrics = common.NewMetrics()
		metrics.Start()
	}
	var stopProgress func()
	if metrics != nil && *progressFlag {
		stopProgress = common.StartProgressPrinter(os.Stderr, metrics, 500*time.Millisecond)
	}
	data, hdr, err := decodeFile(*in, metrics)
	if stopProgress != nil {
		stopProgress()
	}
	if metrics != nil {
		metrics.Stop()
	}
	if err != nil {
		fmt.Println("decode:", err)
		os.Exit(1)
	}

	if *asJSON {
		printHeaderJSON(hdr)
	} else {
		printHeaderTable(*in, data, hdr)
	}
	if metrics != nil && *metricsFlag {
		snap := metrics.Snapshot()
		mbPerSec := snap.ThroughputBytesPerSecond() / 1_000_000
		fmt.Printf("Metrics: duration=%s lines=%d flights=%d resolved=%d processed=%s throughput=%.2f MB/s\n",
			snap.Duration.Round(10*time.Millisecond),
			snap.Lines,
			snap.Flights,
			snap.Resolved,
			common.FormatBytes(snap.Bytes),
			mbPerSec,
		)
	}
}

func checkCmd(args []string) {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	in := fs.String("in", "", "input download file")
	outDiag := fs.String("out", "diagnostics.jsonl", "diagnostics output")
	outAcc := fs.String("acceptance", "", "acceptance json output")
	outSum := fs.String("summary", "", "inspection summary json output")
	fs.Parse(args)

	if *in == "" {
		fmt.Println("required: --in")
		os.Exit(1)
	}
	data, err := os.ReadFile(*in)
	if err != nil {
		fmt.Println("read input:", err)
		os.Exit(1)
	}
	hdr, engine, diags, err := rules.EvalFile(*in, data)
	if err != nil {
		fmt.Println("eval:", err)
		os.Exit(1)
	}
	if err := engine.WriteDiagnosticsNDJSON(*outDiag); err != nil {
		fmt.Println("write diags:", err)
		os.Exit(1)
	}
	rep := engine.MakeAcceptance()
	if *outAcc != "" {
		if err := rules.SaveAcceptanceJSON(rep, *outAcc); err != nil {
			fmt.Println("write acceptance:", err)
			os.Exit(1)
		}
	}
	if *outSum != "" {
		sum := report.BuildSummary(*in, data, hdr, rep)
		if err := report.SaveSummaryJSON(sum, *outSum); err != nil {
			fmt.Println("write summary:", err)
			os.Exit(1)
		}
	}
	fmt.Printf("PASS=%v, errors=%d, warnings=%d, diagnostics=%d\n",
		rep.Summary.Pass, rep.Summary.Errors, rep.Summary.Warnings, len(diags))
	if !rep.Summary.Pass {
		os.Exit(1)
	}
}

func reportCmd(args []string) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	sumPath := fs.String("summary", "", "inspection summary json")
	pdfPath := fs.String("pdf", "", "output report PDF")
	fs.Parse(args)

	if *sumPath == "" || *pdfPath == "" {
		fmt.Println("required: --summary, --pdf")
		os.Exit(1)
	}
	sum, err := report.LoadSummaryJSON(*sumPath)
	if err != nil {
		fmt.Println("load summary:", err)
		os.Exit(1)
	}
	if err := report.SaveInspectionPDF(sum, *pdfPath); err != nil {
		fmt.Println("write pdf:", err)
		os.Exit(1)
	}
	fmt.Println("Wrote PDF:", *pdfPath)
}

func manifestCmd(args []string) {
	fs := flag.NewFlagSet("manifest", flag.ExitOnError)
	inputs := fs.String("inputs", "", "comma-separated paths")
	out := fs.String("out", "manifest.json", "output json")
	fs.Parse(args)

	if *inputs == "" {
		fmt.Println("required: --inputs")
		os.Exit(1)
	}
	paths := splitPaths(*inputs)
	if len(paths) == 0 {
		fmt.Println("no input paths specified")
		os.Exit(1)
	}
	m, err := manifest.Build(paths)
	if err != nil {
		fmt.Println("manifest build:", err)
		os.Exit(1)
	}
	if err := manifest.Save(m, *out); err != nil {
		fmt.Println("manifest save:", err)
		os.Exit(1)
	}
	fmt.Println("Wrote", *out)
}
