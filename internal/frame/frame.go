// Package frame parses the MAC header of a LoRaWAN PHY payload far enough to
// locate the application payload. FOpts are not decoded.
package frame

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/brocaar/lorawan"
)

// MHDR(1) + DevAddr(4) + FCtrl(1) + FCnt(2) + MIC(4)
const MinLength = 12

const (
	micLen        = 4
	devAddrOffset = 1
	fctrlOffset   = 5
	fcntOffset    = 6
	fportOffset   = 8
)

var ErrMalformedFrame = errors.New("malformed lorawan frame")

// DevAddrOrder selects how a DevAddr is rendered as hex.
type DevAddrOrder int

const (
	// WireOrder prints the four bytes as they appear in the frame.
	WireOrder DevAddrOrder = iota
	// Reversed prints the address most significant byte first, which is how
	// network servers display it (the wire encoding is little endian).
	Reversed
)

func (o DevAddrOrder) String() string {
	switch o {
	case WireOrder:
		return "wire"
	case Reversed:
		return "reversed"
	}
	return fmt.Sprintf("DevAddrOrder(%d)", int(o))
}

// ParseDevAddrOrder maps "wire" or "reversed" to a DevAddrOrder.
func ParseDevAddrOrder(s string) (DevAddrOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "wire":
		return WireOrder, nil
	case "reversed", "big-endian":
		return Reversed, nil
	}
	return WireOrder, fmt.Errorf("unknown devaddr order %q", s)
}

// Frame is a parsed uplink candidate. Raw owns the full frame including the
// trailing MIC.
type Frame struct {
	MHDR          byte
	MType         lorawan.MType
	DevAddr       [4]byte // wire order
	FCtrl         byte
	FCnt          uint16
	FPort         *uint8
	PayloadOffset int
	Raw           []byte
}

// Parse decodes a standard base64 PHY payload.
func Parse(data string) (*Frame, error) {
	b, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("%w: base64: %v", ErrMalformedFrame, err)
	}
	return ParseBytes(b)
}

// ParseBytes parses a raw PHY payload. The slice is copied.
func ParseBytes(b []byte) (*Frame, error) {
	if len(b) < MinLength {
		return nil, fmt.Errorf("%w: %d bytes, need at least %d", ErrMalformedFrame, len(b), MinLength)
	}
	raw := make([]byte, len(b))
	copy(raw, b)

	f := &Frame{
		MHDR:          raw[0],
		MType:         lorawan.MType(raw[0] >> 5),
		FCtrl:         raw[fctrlOffset],
		FCnt:          binary.LittleEndian.Uint16(raw[fcntOffset : fcntOffset+2]),
		PayloadOffset: fportOffset,
		Raw:           raw,
	}
	copy(f.DevAddr[:], raw[devAddrOffset:devAddrOffset+4])

	// Non-zero FOptsLen is not skipped over; such frames are reported
	// without a port.
	if f.FOptsLen() == 0 && len(raw) > MinLength {
		port := raw[fportOffset]
		f.FPort = &port
		f.PayloadOffset = fportOffset + 1
	}
	return f, nil
}

// IsUplink reports whether the message type is an unconfirmed or confirmed
// data uplink.
func (f *Frame) IsUplink() bool {
	return f.MType == lorawan.UnconfirmedDataUp || f.MType == lorawan.ConfirmedDataUp
}

func (f *Frame) FOptsLen() int {
	return int(f.FCtrl & 0x0f)
}

func (f *Frame) Len() int {
	return len(f.Raw)
}

// PayloadLength is the number of bytes between the payload offset and the
// MIC. It is negative when the frame cannot hold a MIC after the offset.
func (f *Frame) PayloadLength() int {
	return len(f.Raw) - f.PayloadOffset - micLen
}

// Payload returns the encrypted FRMPayload, MIC excluded, or nil when there
// is none.
func (f *Frame) Payload() []byte {
	if f.PayloadLength() <= 0 {
		return nil
	}
	return f.Raw[f.PayloadOffset : len(f.Raw)-micLen]
}

func (f *Frame) MIC() []byte {
	return f.Raw[len(f.Raw)-micLen:]
}

// DevAddrString renders the device address as upper case hex.
func (f *Frame) DevAddrString(order DevAddrOrder) string {
	if order == Reversed {
		var a lorawan.DevAddr
		// cannot fail, the length is fixed
		_ = a.UnmarshalBinary(f.DevAddr[:])
		return strings.ToUpper(a.String())
	}
	return strings.ToUpper(hex.EncodeToString(f.DevAddr[:]))
}
