package edm

import "encoding/binary"

// flightHeaderLen is the fixed per-flight header block inside the binary
// region: 14 big-endian 16-bit words. Word 0 doubles as the flight-number
// tag; words 11-13 hold the sample interval and the packed date and time.
const flightHeaderLen = 28

const (
	fhIntervalOff = 22
	fhDateOff     = 24
	fhTimeOff     = 26
)

// ResolveOffsets locates each flight's true start position inside the binary
// region. Declared lengths are rounded up to whole 16-bit words, so a
// flight's real start is either the running cursor or one byte before it;
// no other candidate can be correct and none is probed.
func ResolveOffsets(buf []byte, hdr *Header) {
	cursor := hdr.BinaryStart
	for _, f := range hdr.Flights {
		if off, ok := probeFlight(buf, hdr.BinaryStart, cursor, f.Number); ok {
			f.Offset = off
			cursor = off + int64(f.DataBytes)
			continue
		}
		// Leave the flight unresolved but keep the cursor moving so one
		// damaged flight cannot take the rest of the catalog with it.
		cursor += int64(f.DataBytes)
	}
}

func probeFlight(buf []byte, start, cursor int64, number uint16) (int64, bool) {
	var tag [2]byte
	binary.BigEndian.PutUint16(tag[:], number)
	for _, cand := range [2]int64{cursor, cursor - 1} {
		if cand < start || cand+flightHeaderLen > int64(len(buf)) {
			continue
		}
		w := buf[cand : cand+flightHeaderLen]
		if w[0] != tag[0] || w[1] != tag[1] {
			continue
		}
		if !plausibleFlightHeader(w) {
			continue
		}
		return cand, true
	}
	return 0, false
}

// plausibleFlightHeader rejects tag matches whose embedded interval, date,
// or time words could not have come from a real flight header. It is a
// disambiguator, not a proof: a window that passes may still be wrong, but
// stray bytes almost never survive all three checks.
func plausibleFlightHeader(w []byte) bool {
	interval := binary.BigEndian.Uint16(w[fhIntervalOff : fhIntervalOff+2])
	if interval < 1 || interval > 60 {
		return false
	}
	date := binary.BigEndian.Uint16(w[fhDateOff : fhDateOff+2])
	day := int(date & 0x1F)
	month := int((date >> 5) & 0x0F)
	year := 2000 + int((date>>9)&0x7F)
	if day < 1 || day > 31 || month < 1 || month > 12 || year > 2100 {
		return false
	}
	tm := binary.BigEndian.Uint16(w[fhTimeOff : fhTimeOff+2])
	second := int(tm&0x1F) * 2
	minute := int((tm >> 5) & 0x3F)
	hour := int((tm >> 11) & 0x1F)
	return hour <= 23 && minute <= 59 && second <= 59
}

// FlightHeader is the decoded form of the 28-byte block at the start of a
// flight's binary data. Only the words with known meaning are exposed; the
// rest belong to the downstream sample decoder.
type FlightHeader struct {
	Number   uint16 `json:"number"`
	Interval int    `json:"interval"`
	Year     int    `json:"year"`
	Month    int    `json:"month"`
	Day      int    `json:"day"`
	Hour     int    `json:"hour"`
	Minute   int    `json:"minute"`
	Second   int    `json:"second"`
}

// ReadFlightHeader decodes the flight header block at off. It reports false
// when the window does not fit inside buf.
func ReadFlightHeader(buf []byte, off int64) (FlightHeader, bool) {
	if off < 0 || off+flightHeaderLen > int64(len(buf)) {
		return FlightHeader{}, false
	}
	w := buf[off : off+flightHeaderLen]
	date := binary.BigEndian.Uint16(w[fhDateOff : fhDateOff+2])
	tm := binary.BigEndian.Uint16(w[fhTimeOff : fhTimeOff+2])
	return FlightHeader{
		Number:   binary.BigEndian.Uint16(w[0:2]),
		Interval: int(binary.BigEndian.Uint16(w[fhIntervalOff : fhIntervalOff+2])),
		Year:     2000 + int((date>>9)&0x7F),
		Month:    int((date >> 5) & 0x0F),
		Day:      int(date & 0x1F),
		Hour:     int((tm >> 11) & 0x1F),
		Minute:   int((tm >> 5) & 0x3F),
		Second:   int(tm&0x1F) * 2,
	}, true
}
