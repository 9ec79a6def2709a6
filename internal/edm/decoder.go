package edm

import (
	"errors"
	"io"

	"example.com/edmgate/internal/common"
)

// Decoder runs one full header decode pass over an in-memory download file.
// A Decoder holds no state between calls; concurrent decodes of different
// buffers need separate Decoder values only if they attach metrics.
type Decoder struct {
	metrics *common.Metrics
}

func NewDecoder() *Decoder {
	return &Decoder{}
}

// SetMetrics attaches a metrics recorder to the decoder.
func (d *Decoder) SetMetrics(m *common.Metrics) {
	d.metrics = m
}

// Decode parses the header section of buf and resolves every flight's
// binary start position. The returned header owns all records; buf is only
// read.
func (d *Decoder) Decode(buf []byte) (*Header, error) {
	if d.metrics != nil {
		d.metrics.SetTotalBytes(int64(len(buf)))
	}
	hdr := &Header{}
	lr := newLineReader(buf)
	var declared int64
	for {
		line, err := lr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if d.metrics != nil {
			d.metrics.AddLine(int64(len(line)) + int64(len(crlf)))
		}
		if f := decodeRecord(line, hdr); f != nil {
			f.DeclaredOffset = declared
			declared += int64(f.DataBytes)
		}
	}
	if lr.binaryStart == 0 {
		return nil, ErrNoLastRecord
	}
	hdr.BinaryStart = lr.binaryStart

	ResolveOffsets(buf, hdr)
	if d.metrics != nil {
		for _, f := range hdr.Flights {
			d.metrics.AddFlight(f.Resolved())
		}
	}
	return hdr, nil
}

// Decode is the single-shot convenience form.
func Decode(buf []byte) (*Header, error) {
	return NewDecoder().Decode(buf)
}
