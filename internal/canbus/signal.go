package canbus

import (
	"encoding/binary"
	"math"

	"github.com/brutella/can"
)

// SignalDef describes one signal inside a message using DBC conventions:
// StartBit is the LSB position for little-endian (Intel) signals and the MSB
// position in sawtooth numbering for big-endian (Motorola) signals.
type SignalDef struct {
	Name         string
	StartBit     uint
	Size         uint
	LittleEndian bool
	Signed       bool
	Factor       float64
	Offset       float64
	Default      float64
}

// MessageDef is a message layout.
type MessageDef struct {
	Name    string
	ID      uint32
	Length  uint8
	Signals []SignalDef
}

// Signal looks up a signal by name.
func (m *MessageDef) Signal(name string) (SignalDef, bool) {
	for _, s := range m.Signals {
		if s.Name == name {
			return s, true
		}
	}
	return SignalDef{}, false
}

func (s SignalDef) mask() uint64 {
	if s.Size >= 64 {
		return math.MaxUint64
	}
	return (uint64(1) << s.Size) - 1
}

// lsbShift returns the right shift that aligns the signal's LSB with bit 0 of
// the payload word for the signal's byte order.
func (s SignalDef) lsbShift() uint {
	if s.LittleEndian {
		return s.StartBit
	}
	// sawtooth MSB position mapped onto a big-endian word
	msb := (7-s.StartBit/8)*8 + s.StartBit%8
	return msb - (s.Size - 1)
}

// Raw extracts the unscaled integer value from a frame payload.
func (s SignalDef) Raw(data [can.MaxFrameDataLength]uint8) int64 {
	var word uint64
	if s.LittleEndian {
		word = binary.LittleEndian.Uint64(data[:])
	} else {
		word = binary.BigEndian.Uint64(data[:])
	}
	v := (word >> s.lsbShift()) & s.mask()
	if s.Signed && s.Size < 64 && v&(uint64(1)<<(s.Size-1)) != 0 {
		v |= ^s.mask()
	}
	return int64(v)
}

// Decode extracts the physical value of the signal from a frame payload.
func (s SignalDef) Decode(data [can.MaxFrameDataLength]uint8) float64 {
	factor := s.Factor
	if factor == 0 {
		factor = 1
	}
	return float64(s.Raw(data))*factor + s.Offset
}

// Encode writes a physical value into a frame payload, rounding to the
// nearest representable step and saturating at the signal's range.
func (s SignalDef) Encode(data *[can.MaxFrameDataLength]uint8, value float64) {
	factor := s.Factor
	if factor == 0 {
		factor = 1
	}
	raw := math.Round((value - s.Offset) / factor)

	lo, hi := 0.0, float64(s.mask())
	if s.Signed {
		hi = float64(s.mask() >> 1)
		lo = -hi - 1
	}
	raw = math.Max(lo, math.Min(hi, raw))

	var word uint64
	if s.LittleEndian {
		word = binary.LittleEndian.Uint64(data[:])
	} else {
		word = binary.BigEndian.Uint64(data[:])
	}
	shift := s.lsbShift()
	word &^= s.mask() << shift
	word |= (uint64(int64(raw)) & s.mask()) << shift
	if s.LittleEndian {
		binary.LittleEndian.PutUint64(data[:], word)
	} else {
		binary.BigEndian.PutUint64(data[:], word)
	}
}

// Encode packs the given signal values into a frame for bus. Signals not
// present in values are written with their default.
func (m *MessageDef) Encode(bus uint8, values map[string]float64) BusFrame {
	f := BusFrame{Bus: bus, Frame: can.Frame{ID: m.ID, Length: m.Length}}
	for _, s := range m.Signals {
		v, ok := values[s.Name]
		if !ok {
			v = s.Default
		}
		s.Encode(&f.Frame.Data, v)
	}
	return f
}
