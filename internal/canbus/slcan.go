package canbus

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/brutella/can"
)

// ErrMalformedSLCAN is wrapped by every SLCAN parse failure.
var ErrMalformedSLCAN = errors.New("malformed slcan frame")

// ParseSLCAN decodes one SLCAN (Lawicel) frame line such as "t1238DEADBEEF00112233"
// or "T0000012A2BEEF". A trailing 4-digit timestamp, if present, is ignored.
func ParseSLCAN(bus uint8, line string) (BusFrame, error) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return BusFrame{}, fmt.Errorf("%w: empty line", ErrMalformedSLCAN)
	}

	var idLen int
	var flags uint32
	switch line[0] {
	case 't':
		idLen = 3
	case 'T':
		idLen, flags = 8, FlagExtended
	case 'r':
		idLen, flags = 3, FlagRemote
	case 'R':
		idLen, flags = 8, FlagExtended|FlagRemote
	default:
		return BusFrame{}, fmt.Errorf("%w: unknown frame type %q", ErrMalformedSLCAN, line[0])
	}

	if len(line) < 1+idLen+1 {
		return BusFrame{}, fmt.Errorf("%w: line too short: %q", ErrMalformedSLCAN, line)
	}

	id, err := strconv.ParseUint(line[1:1+idLen], 16, 32)
	if err != nil {
		return BusFrame{}, fmt.Errorf("%w: bad id: %v", ErrMalformedSLCAN, err)
	}
	if flags&FlagExtended == 0 && uint32(id) > MaskStdID {
		return BusFrame{}, fmt.Errorf("%w: standard id 0x%X out of range", ErrMalformedSLCAN, id)
	}
	if uint32(id) > MaskExtID {
		return BusFrame{}, fmt.Errorf("%w: extended id 0x%X out of range", ErrMalformedSLCAN, id)
	}

	dlc := line[1+idLen] - '0'
	if dlc > can.MaxFrameDataLength {
		return BusFrame{}, fmt.Errorf("%w: dlc %q", ErrMalformedSLCAN, line[1+idLen])
	}

	rest := line[2+idLen:]
	dataLen := 0
	if flags&FlagRemote == 0 {
		dataLen = int(dlc) * 2
	}
	if len(rest) != dataLen && len(rest) != dataLen+4 {
		return BusFrame{}, fmt.Errorf("%w: expected %d data digits in %q", ErrMalformedSLCAN, dataLen, line)
	}

	frame := can.Frame{ID: uint32(id) | flags, Length: dlc}
	if dataLen > 0 {
		if _, err := hex.Decode(frame.Data[:dlc], []byte(rest[:dataLen])); err != nil {
			return BusFrame{}, fmt.Errorf("%w: bad data: %v", ErrMalformedSLCAN, err)
		}
	}

	return BusFrame{Bus: bus, Frame: frame}, nil
}

// FormatSLCAN encodes a frame as an SLCAN transmit command without the
// trailing carriage return.
func FormatSLCAN(f BusFrame) string {
	var b strings.Builder
	extended := f.Frame.ID&FlagExtended != 0
	remote := f.Frame.ID&FlagRemote != 0

	switch {
	case extended && remote:
		b.WriteByte('R')
	case extended:
		b.WriteByte('T')
	case remote:
		b.WriteByte('r')
	default:
		b.WriteByte('t')
	}

	if extended {
		fmt.Fprintf(&b, "%08X", f.Frame.ID&MaskExtID)
	} else {
		fmt.Fprintf(&b, "%03X", f.Frame.ID&MaskStdID)
	}

	n := f.Frame.Length
	if n > can.MaxFrameDataLength {
		n = can.MaxFrameDataLength
	}
	b.WriteByte('0' + n)
	if !remote {
		b.WriteString(strings.ToUpper(hex.EncodeToString(f.Frame.Data[:n])))
	}
	return b.String()
}
