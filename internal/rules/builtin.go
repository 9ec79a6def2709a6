package rules

import (
	"fmt"

	"example.com/edmgate/internal/edm"
)

// RegisterBuiltins installs the standard checks run against every decoded
// download file.
func (e *Engine) RegisterBuiltins() {
	e.Register("edm.flight.position", "flight position resolved", ERROR, checkFlightPosition)
	e.Register("edm.flight.order", "resolved offsets strictly increasing", ERROR, checkFlightOrder)
	e.Register("edm.flight.range", "declared range inside file", WARN, checkFlightRange)
	e.Register("edm.flight.duplicate", "unique flight numbers", WARN, checkFlightDuplicate)
	e.Register("edm.flight.empty", "non-empty flight data", WARN, checkFlightEmpty)
	e.Register("edm.flight.drift", "declared length rounding drift", INFO, checkFlightDrift)
	e.Register("edm.header.registration", "registration present", WARN, checkRegistration)
	e.Register("edm.header.config", "config record present", WARN, checkConfigPresent)
	e.Register("edm.header.timestamp", "download timestamp present", INFO, checkTimestampPresent)
	e.Register("edm.fuel.kfactor", "fuel K-factor nonzero", WARN, checkFuelKFactor)
}

func offsetHex(off int64) string {
	return fmt.Sprintf("0x%X", off)
}

func checkFlightPosition(ctx *Context) []Finding {
	var out []Finding
	for _, f := range ctx.Header.Flights {
		if !f.Resolved() {
			out = append(out, Finding{
				FlightNumber: int(f.Number),
				Offset:       offsetHex(ctx.Header.BinaryStart + f.DeclaredOffset),
				Message:      fmt.Sprintf("flight %d: no plausible header at either probe position", f.Number),
			})
		}
	}
	return out
}

func checkFlightOrder(ctx *Context) []Finding {
	var out []Finding
	var prev int64 = -1
	for _, f := range ctx.Header.Flights {
		if !f.Resolved() {
			continue
		}
		if prev >= 0 && f.Offset <= prev {
			out = append(out, Finding{
				FlightNumber: int(f.Number),
				Offset:       offsetHex(f.Offset),
				Message:      fmt.Sprintf("flight %d resolved at %d, not after previous flight at %d", f.Number, f.Offset, prev),
			})
		}
		prev = f.Offset
	}
	return out
}

func checkFlightRange(ctx *Context) []Finding {
	var out []Finding
	for _, f := range ctx.Header.Flights {
		start := ctx.Header.BinaryStart + f.DeclaredOffset
		if end := start + int64(f.DataBytes); end > ctx.Size {
			out = append(out, Finding{
				FlightNumber: int(f.Number),
				Offset:       offsetHex(start),
				Message:      fmt.Sprintf("flight %d: declared range ends at %d beyond file size %d", f.Number, end, ctx.Size),
			})
		}
	}
	return out
}

func checkFlightDuplicate(ctx *Context) []Finding {
	var out []Finding
	seen := make(map[uint16]bool)
	for _, f := range ctx.Header.Flights {
		if seen[f.Number] {
			out = append(out, Finding{
				FlightNumber: int(f.Number),
				Message:      fmt.Sprintf("flight number %d appears more than once in the catalog", f.Number),
			})
		}
		seen[f.Number] = true
	}
	return out
}

func checkFlightEmpty(ctx *Context) []Finding {
	var out []Finding
	for _, f := range ctx.Header.Flights {
		if f.DataWords == 0 {
			out = append(out, Finding{
				FlightNumber: int(f.Number),
				Message:      fmt.Sprintf("flight %d declares zero data words", f.Number),
			})
		}
	}
	return out
}

// checkFlightDrift reports where rounding of declared lengths pushed a
// resolved start off its declaration-only position. Expected for flights
// following one with an odd true length, hence informational.
func checkFlightDrift(ctx *Context) []Finding {
	var out []Finding
	for _, f := range ctx.Header.Flights {
		if !f.Resolved() {
			continue
		}
		expected := ctx.Header.BinaryStart + f.DeclaredOffset
		if f.Offset != expected {
			out = append(out, Finding{
				FlightNumber: int(f.Number),
				Offset:       offsetHex(f.Offset),
				Message:      fmt.Sprintf("flight %d resolved %d byte(s) before its declared position", f.Number, expected-f.Offset),
			})
		}
	}
	return out
}

func checkRegistration(ctx *Context) []Finding {
	if ctx.Header.TailNumber == "" {
		return []Finding{{Message: "no $U registration record in header"}}
	}
	return nil
}

func checkConfigPresent(ctx *Context) []Finding {
	if ctx.Header.Config == nil {
		return []Finding{{Message: "no $C configuration record in header"}}
	}
	return nil
}

func checkTimestampPresent(ctx *Context) []Finding {
	if ctx.Header.Timestamp == nil {
		return []Finding{{Message: "no $T download timestamp in header"}}
	}
	return nil
}

func checkFuelKFactor(ctx *Context) []Finding {
	fc := ctx.Header.FuelConfig
	if fc == nil {
		return nil
	}
	var out []Finding
	if fc.KFactor1 == 0 {
		out = append(out, Finding{Message: "fuel flow K-factor 1 is zero; fuel quantities will not compute"})
	}
	if fc.KFactor2 == 0 && fc.KFactor1 != 0 {
		out = append(out, Finding{Message: "fuel flow K-factor 2 is zero"})
	}
	return out
}

// EvalFile decodes data and runs the builtin checks against it. path is
// only recorded in the diagnostics.
func EvalFile(path string, data []byte) (*edm.Header, *Engine, []Diagnostic, error) {
	hdr, err := edm.Decode(data)
	if err != nil {
		return nil, nil, nil, err
	}
	eng := NewEngine()
	eng.RegisterBuiltins()
	diags, err := eng.Eval(&Context{File: path, Header: hdr, Size: int64(len(data))})
	if err != nil {
		return nil, nil, nil, err
	}
	return hdr, eng, diags, nil
}
