package report

import (
	"encoding/json"
	"fmt"
	"os"

	"example.com/edmgate/internal/common"
	"example.com/edmgate/internal/edm"
	"example.com/edmgate/internal/rules"
)

// FlightSummary is one catalog row enriched with the decoded flight header
// when the position resolved.
type FlightSummary struct {
	Number         uint16 `json:"number"`
	DataWords      int    `json:"dataWords"`
	DataBytes      int    `json:"dataBytes"`
	DeclaredOffset int64  `json:"declaredOffset"`
	Offset         int64  `json:"offset"`
	Resolved       bool   `json:"resolved"`
	Date           string `json:"date,omitempty"`
	Time           string `json:"time,omitempty"`
	Interval       int    `json:"interval,omitempty"`
}

// Summary is the complete inspection result for one download file.
type Summary struct {
	File        string                 `json:"file"`
	Sha256      string                 `json:"sha256"`
	Size        int64                  `json:"size"`
	TailNumber  string                 `json:"tailNumber,omitempty"`
	Model       int                    `json:"model,omitempty"`
	Downloaded  string                 `json:"downloaded,omitempty"`
	BinaryStart int64                  `json:"binaryStart"`
	Flights     []FlightSummary        `json:"flights"`
	Acceptance  rules.AcceptanceReport `json:"acceptance"`
}

// BuildSummary flattens a decoded header and its acceptance report into the
// serializable inspection summary.
func BuildSummary(file string, data []byte, hdr *edm.Header, rep rules.AcceptanceReport) Summary {
	sum := Summary{
		File:        file,
		Sha256:      common.Sha256OfBytes(data),
		Size:        int64(len(data)),
		TailNumber:  hdr.TailNumber,
		BinaryStart: hdr.BinaryStart,
		Acceptance:  rep,
	}
	if hdr.Config != nil {
		sum.Model = hdr.Config.Model
	}
	if ts := hdr.Timestamp; ts != nil {
		sum.Downloaded = fmt.Sprintf("20%02d-%02d-%02d %02d:%02d", ts.Year, ts.Month, ts.Day, ts.Hour, ts.Minute)
	}
	for _, f := range hdr.Flights {
		fs := FlightSummary{
			Number:         f.Number,
			DataWords:      f.DataWords,
			DataBytes:      f.DataBytes,
			DeclaredOffset: f.DeclaredOffset,
			Offset:         f.Offset,
			Resolved:       f.Resolved(),
		}
		if f.Resolved() {
			if fh, ok := edm.ReadFlightHeader(data, f.Offset); ok {
				fs.Date = fmt.Sprintf("%04d-%02d-%02d", fh.Year, fh.Month, fh.Day)
				fs.Time = fmt.Sprintf("%02d:%02d:%02d", fh.Hour, fh.Minute, fh.Second)
				fs.Interval = fh.Interval
			}
		}
		sum.Flights = append(sum.Flights, fs)
	}
	return sum
}

func SaveSummaryJSON(sum Summary, out string) error {
	b, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(out, b, 0644)
}

func LoadSummaryJSON(path string) (Summary, error) {
	var sum Summary
	b, err := os.ReadFile(path)
	if err != nil {
		return sum, err
	}
	err = json.Unmarshal(b, &sum)
	return sum, err
}
