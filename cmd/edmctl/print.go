package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"example.com/edmgate/internal/common"
	"example.com/edmgate/internal/edm"
)

func printHeaderJSON(hdr *edm.Header) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(hdr)
}

func printHeaderTable(file string, data []byte, hdr *edm.Header) {
	fmt.Printf("File: %s (%s)\n", file, common.FormatBytes(int64(len(data))))
	if hdr.TailNumber != "" {
		fmt.Printf("Registration: %s\n", hdr.TailNumber)
	}
	if hdr.Config != nil {
		fmt.Printf("Unit model: EDM-%d\n", hdr.Config.Model)
	}
	if ts := hdr.Timestamp; ts != nil {
		fmt.Printf("Downloaded: 20%02d-%02d-%02d %02d:%02d\n", ts.Year, ts.Month, ts.Day, ts.Hour, ts.Minute)
	}
	fmt.Printf("Binary region: bytes %d..%d\n", hdr.BinaryStart, len(data))

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FLIGHT\tWORDS\tDECLARED\tRESOLVED\tDATE\tTIME\tINTERVAL")
	for _, f := range hdr.Flights {
		resolved := "not located"
		date, clock, interval := "-", "-", "-"
		if f.Resolved() {
			resolved = strconv.FormatInt(f.Offset, 10)
			if fh, ok := edm.ReadFlightHeader(data, f.Offset); ok {
				date = fmt.Sprintf("%04d-%02d-%02d", fh.Year, fh.Month, fh.Day)
				clock = fmt.Sprintf("%02d:%02d:%02d", fh.Hour, fh.Minute, fh.Second)
				interval = fmt.Sprintf("%ds", fh.Interval)
			}
		}
		fmt.Fprintf(w, "%d\t%d\t%d\t%s\t%s\t%s\t%s\n",
			f.Number, f.DataWords, f.DeclaredOffset, resolved, date, clock, interval)
	}
	w.Flush()
}

func splitPaths(csv string) []string {
	var paths []string
	for _, p := range strings.Split(csv, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		paths = append(paths, p)
	}
	return paths
}
