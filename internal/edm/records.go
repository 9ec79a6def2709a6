package edm

import (
	"strconv"
	"strings"
)

// Record type characters, keyed by the byte following the leading $.
const (
	tailNumberType  = 'U'
	alarmLimitsType = 'A'
	configType      = 'C'
	flightIndexType = 'D'
	fuelConfigType  = 'F'
	timestampType   = 'T'
	protocolType    = 'P'
	oldHeaderType   = 'H'
	lastRecordType  = 'L'
)

// decodeRecord dispatches one verified line into the accumulating header.
// It never fails: unknown record types are skipped and malformed numeric
// fields fall back to defaults, matching the tolerance of real download
// files. The returned Flight is non-nil only for $D records so the caller
// can advance its cumulative-offset counter.
func decodeRecord(line []byte, hdr *Header) *Flight {
	if len(line) < 2 || line[0] != recordMarker {
		return nil
	}
	var rest string
	if len(line) > 3 {
		rest = string(line[3:])
	}
	switch line[1] {
	case tailNumberType:
		hdr.TailNumber = decodeTailNumber(rest)
	case alarmLimitsType:
		hdr.AlarmLimits = decodeAlarmLimits(splitFields(rest))
	case configType:
		hdr.Config = decodeConfig(splitFields(rest))
	case flightIndexType:
		f := decodeFlight(splitFields(rest))
		hdr.Flights = append(hdr.Flights, f)
		return f
	case fuelConfigType:
		hdr.FuelConfig = decodeFuelConfig(splitFields(rest))
	case timestampType:
		hdr.Timestamp = decodeTimestamp(splitFields(rest))
	case protocolType, oldHeaderType, lastRecordType:
		// Recognized record types that carry nothing the decoder needs.
	}
	return nil
}

func splitFields(rest string) []string {
	if rest == "" {
		return nil
	}
	fields := strings.Split(rest, ",")
	for i, f := range fields {
		fields[i] = strings.TrimSpace(f)
	}
	return fields
}

// numField parses the i-th field as a base-10 integer. Missing, empty, or
// non-numeric fields decode to 0; short lines are routine in this format.
func numField(fields []string, i int) int {
	if i >= len(fields) {
		return 0
	}
	v, err := strconv.Atoi(fields[i])
	if err != nil {
		return 0
	}
	return v
}

// optField distinguishes an absent trailing field (nil) from one that is
// present but unparsable (0).
func optField(fields []string, i int) *int {
	if i >= len(fields) {
		return nil
	}
	v := numField(fields, i)
	return &v
}

// decodeTailNumber keeps the registration verbatim, commas included. Some
// units append a stray *-suffix beyond the checksum; it is dropped.
func decodeTailNumber(rest string) string {
	if i := strings.IndexByte(rest, checksumSep); i >= 0 {
		rest = rest[:i]
	}
	return strings.TrimSpace(rest)
}

func decodeAlarmLimits(fields []string) *AlarmLimits {
	return &AlarmLimits{
		VoltsHi: numField(fields, 0),
		VoltsLo: numField(fields, 1),
		Diff:    numField(fields, 2),
		CHT:     numField(fields, 3),
		CLD:     numField(fields, 4),
		TIT:     numField(fields, 5),
		OilHi:   numField(fields, 6),
		OilLo:   numField(fields, 7),
	}
}

func decodeConfig(fields []string) *Config {
	return &Config{
		Model:   numField(fields, 0),
		FlagsLo: numField(fields, 1),
		FlagsHi: numField(fields, 2),
		Unknown: optField(fields, 3),
		Version: optField(fields, 4),
		Spare1:  optField(fields, 5),
		Spare2:  optField(fields, 6),
		Spare3:  optField(fields, 7),
		Spare4:  optField(fields, 8),
	}
}

func decodeFlight(fields []string) *Flight {
	words := numField(fields, 1)
	return &Flight{
		Number:    uint16(numField(fields, 0)),
		DataWords: words,
		DataBytes: words * 2,
		Offset:    OffsetUnresolved,
	}
}

func decodeFuelConfig(fields []string) *FuelConfig {
	return &FuelConfig{
		Empty:    numField(fields, 0),
		Full:     numField(fields, 1),
		Warning:  numField(fields, 2),
		KFactor1: numField(fields, 3),
		KFactor2: numField(fields, 4),
	}
}

func decodeTimestamp(fields []string) *Timestamp {
	return &Timestamp{
		Month:   numField(fields, 0),
		Day:     numField(fields, 1),
		Year:    numField(fields, 2),
		Hour:    numField(fields, 3),
		Minute:  numField(fields, 4),
		Unknown: optField(fields, 5),
	}
}
