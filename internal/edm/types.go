package edm

// OffsetUnresolved marks a flight whose binary start position could not be
// located by the resolver. Callers must check for it before slicing the
// flight's data range out of the source buffer.
const OffsetUnresolved int64 = -1

// Flight is one catalog entry from a $D record. DeclaredOffset is where the
// flight would start if every declared length were exact; Offset is the
// probed, verified start position (OffsetUnresolved until resolution).
type Flight struct {
	Number         uint16 `json:"number"`
	DataWords      int    `json:"dataWords"`
	DataBytes      int    `json:"dataBytes"`
	DeclaredOffset int64  `json:"declaredOffset"`
	Offset         int64  `json:"offset"`
}

// Resolved reports whether the flight's binary start position was located.
func (f *Flight) Resolved() bool {
	return f != nil && f.Offset != OffsetUnresolved
}

// Config carries the $C record. The trailing fields are optional in real
// files; nil means the field was absent from the record, while a present but
// unparsable field decodes to 0.
type Config struct {
	Model   int  `json:"model"`
	FlagsLo int  `json:"flagsLo"`
	FlagsHi int  `json:"flagsHi"`
	Unknown *int `json:"unknown,omitempty"`
	Version *int `json:"version,omitempty"`
	Spare1  *int `json:"spare1,omitempty"`
	Spare2  *int `json:"spare2,omitempty"`
	Spare3  *int `json:"spare3,omitempty"`
	Spare4  *int `json:"spare4,omitempty"`
}

// AlarmLimits carries the $A record thresholds.
type AlarmLimits struct {
	VoltsHi int `json:"voltsHi"`
	VoltsLo int `json:"voltsLo"`
	Diff    int `json:"diff"`
	CHT     int `json:"cht"`
	CLD     int `json:"cld"`
	TIT     int `json:"tit"`
	OilHi   int `json:"oilHi"`
	OilLo   int `json:"oilLo"`
}

// FuelConfig carries the $F record.
type FuelConfig struct {
	Empty    int `json:"empty"`
	Full     int `json:"full"`
	Warning  int `json:"warning"`
	KFactor1 int `json:"kFactor1"`
	KFactor2 int `json:"kFactor2"`
}

// Timestamp carries the $T record (download time as recorded by the unit).
type Timestamp struct {
	Month   int  `json:"month"`
	Day     int  `json:"day"`
	Year    int  `json:"year"`
	Hour    int  `json:"hour"`
	Minute  int  `json:"minute"`
	Unknown *int `json:"unknown,omitempty"`
}

// Header is the decoded ASCII section of a download file. Flights appear in
// header order and are never reordered. BinaryStart is the byte offset of
// the binary region, fixed by the $L record.
type Header struct {
	TailNumber  string       `json:"tailNumber,omitempty"`
	Config      *Config      `json:"config,omitempty"`
	AlarmLimits *AlarmLimits `json:"alarmLimits,omitempty"`
	FuelConfig  *FuelConfig  `json:"fuelConfig,omitempty"`
	Timestamp   *Timestamp   `json:"timestamp,omitempty"`
	Flights     []*Flight    `json:"flights"`
	BinaryStart int64        `json:"binaryStart"`
}

// FlightByNumber returns the first catalog entry with the given flight
// number, or nil.
func (h *Header) FlightByNumber(num uint16) *Flight {
	for _, f := range h.Flights {
		if f.Number == num {
			return f
		}
	}
	return nil
}
