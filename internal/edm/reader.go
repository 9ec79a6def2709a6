package edm

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
)

const (
	recordMarker = '$'
	checksumSep  = '*'
)

var crlf = []byte{'\r', '\n'}

// ErrNoLastRecord reports a header whose lines ran out before a $L record
// fixed the binary-region boundary. Without that boundary nothing after the
// header can be interpreted, so the decode is abandoned.
var ErrNoLastRecord = errors.New("no $L record before end of header")

// ChecksumError reports a header line whose XOR checksum disagrees with the
// declared value. The line's fields cannot be trusted, so the whole decode
// fails.
type ChecksumError struct {
	Line     int
	Computed uint8
	Declared uint8
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("header line %d: checksum mismatch: computed %02x, declared %02x", e.Line, e.Computed, e.Declared)
}

// lineReader walks the CRLF-terminated $-lines at the front of a download
// file. It is single-pass: Next consumes a line and never rewinds.
type lineReader struct {
	buf    []byte
	offset int64
	line   int
	done   bool

	// binaryStart is set once, when the $L record is consumed.
	binaryStart int64
}

func newLineReader(buf []byte) *lineReader {
	return &lineReader{buf: buf}
}

// Next returns the content of the next verified header line with the "*hh"
// checksum suffix stripped. It returns io.EOF once the header section is
// exhausted: after the $L record, at the first line not starting with $, or
// when no CRLF remains. A line that fails verification ends the sequence
// with a ChecksumError.
func (r *lineReader) Next() ([]byte, error) {
	if r.done {
		return nil, io.EOF
	}
	rel := bytes.Index(r.buf[r.offset:], crlf)
	if rel < 0 {
		r.done = true
		return nil, io.EOF
	}
	line := r.buf[r.offset : r.offset+int64(rel)]
	if len(line) == 0 || line[0] != recordMarker {
		// Not a header line. It must not be consumed: the header simply
		// ends here.
		r.done = true
		return nil, io.EOF
	}
	r.line++
	r.offset += int64(rel) + int64(len(crlf))

	content, err := verifyLine(line, r.line)
	if err != nil {
		r.done = true
		return nil, err
	}
	if len(line) >= 2 && line[1] == lastRecordType {
		r.binaryStart = r.offset
		r.done = true
	}
	return content, nil
}

// verifyLine checks the XOR checksum of a header line and returns the line
// with the checksum suffix removed. A line without a * separator (or with a
// truncated checksum field) is passed through unverified.
func verifyLine(line []byte, num int) ([]byte, error) {
	sep := bytes.LastIndexByte(line, checksumSep)
	if sep < 0 {
		return line, nil
	}
	content := line[:sep]
	digits := line[sep+1:]
	if len(digits) < 2 {
		return content, nil
	}
	declared, err := strconv.ParseUint(string(digits[:2]), 16, 8)
	if err != nil {
		return nil, fmt.Errorf("header line %d: malformed checksum field %q", num, string(digits))
	}
	var sum uint8
	for _, c := range line[1:sep] {
		sum ^= c
	}
	if sum != uint8(declared) {
		return nil, &ChecksumError{Line: num, Computed: sum, Declared: uint8(declared)}
	}
	return content, nil
}
