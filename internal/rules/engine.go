package rules

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"time"

	"example.com/edmgate/internal/edm"
)

type Severity string

const (
	ERROR Severity = "ERROR"
	WARN  Severity = "WARN"
	INFO  Severity = "INFO"
)

// Diagnostic is one finding raised against a decoded download file.
type Diagnostic struct {
	Ts           time.Time `json:"ts"`
	File         string    `json:"file"`
	FlightNumber int       `json:"flightNumber,omitempty"`
	Offset       string    `json:"offset,omitempty"`
	RuleId       string    `json:"ruleId"`
	Severity     Severity  `json:"severity"`
	Message      string    `json:"message"`
}

// Finding is the raw output of a check before the engine stamps rule
// identity, severity, file, and timestamp onto it.
type Finding struct {
	FlightNumber int
	Offset       string
	Message      string
}

// Context carries everything the checks inspect. Header must come from a
// successful decode of the file's contents; Size is the full file length.
type Context struct {
	File   string
	Header *edm.Header
	Size   int64
}

type CheckFunc func(ctx *Context) []Finding

type check struct {
	id       string
	name     string
	severity Severity
	fn       CheckFunc
}

// Engine evaluates registered checks against one decoded header and keeps
// the resulting diagnostics for reporting.
type Engine struct {
	checks      []check
	diagnostics []Diagnostic
	gateMatrix  []GateResult
}

func NewEngine() *Engine {
	return &Engine{}
}

// Register adds a check. Checks run in registration order.
func (e *Engine) Register(id, name string, severity Severity, fn CheckFunc) {
	e.checks = append(e.checks, check{id: id, name: name, severity: severity, fn: fn})
}

// GateResult summarizes one check's outcome for the acceptance matrix.
type GateResult struct {
	RuleId   string   `json:"ruleId"`
	Name     string   `json:"name"`
	Severity Severity `json:"severity"`
	Pass     bool     `json:"pass"`
	Findings int      `json:"findings"`
}

// Eval runs every registered check and returns the collected diagnostics.
func (e *Engine) Eval(ctx *Context) ([]Diagnostic, error) {
	if ctx == nil {
		return nil, errors.New("nil context")
	}
	if ctx.Header == nil {
		return nil, errors.New("context has no decoded header")
	}
	now := time.Now()
	var diags []Diagnostic
	matrix := make([]GateResult, 0, len(e.checks))
	for _, c := range e.checks {
		findings := c.fn(ctx)
		matrix = append(matrix, GateResult{
			RuleId:   c.id,
			Name:     c.name,
			Severity: c.severity,
			Pass:     len(findings) == 0,
			Findings: len(findings),
		})
		for _, f := range findings {
			diags = append(diags, Diagnostic{
				Ts:           now,
				File:         ctx.File,
				FlightNumber: f.FlightNumber,
				Offset:       f.Offset,
				RuleId:       c.id,
				Severity:     c.severity,
				Message:      f.Message,
			})
		}
	}
	e.diagnostics = diags
	e.gateMatrix = matrix
	return diags, nil
}

// WriteDiagnosticsNDJSON writes one JSON object per finding.
func (e *Engine) WriteDiagnosticsNDJSON(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	defer w.Flush()
	for _, d := range e.diagnostics {
		b, _ := json.Marshal(d)
		w.Write(b)
		w.WriteString("\n")
	}
	return nil
}

type AcceptanceReport struct {
	Summary struct {
		Total    int  `json:"total"`
		Errors   int  `json:"errors"`
		Warnings int  `json:"warnings"`
		Pass     bool `json:"pass"`
	} `json:"summary"`
	GateMatrix []GateResult `json:"gateMatrix"`
	Findings   []Diagnostic `json:"findings,omitempty"`
}

// SaveAcceptanceJSON writes the acceptance report as indented JSON.
func SaveAcceptanceJSON(rep AcceptanceReport, out string) error {
	b, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(out, b, 0644)
}

func LoadAcceptanceJSON(path string) (AcceptanceReport, error) {
	var rep AcceptanceReport
	b, err := os.ReadFile(path)
	if err != nil {
		return rep, err
	}
	err = json.Unmarshal(b, &rep)
	return rep, err
}

// MakeAcceptance folds the last evaluation into a pass/fail summary. A file
// passes when no ERROR-severity finding was raised.
func (e *Engine) MakeAcceptance() AcceptanceReport {
	var rep AcceptanceReport
	var errs, warns int
	for _, d := range e.diagnostics {
		switch d.Severity {
		case ERROR:
			errs++
		case WARN:
			warns++
		}
	}
	rep.Summary.Total = len(e.diagnostics)
	rep.Summary.Errors = errs
	rep.Summary.Warnings = warns
	rep.Summary.Pass = errs == 0
	rep.GateMatrix = e.gateMatrix
	rep.Findings = e.diagnostics
	return rep
}
