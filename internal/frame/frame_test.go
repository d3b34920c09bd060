package frame

import (
	"encoding/base64"
	"errors"
	"testing"

	"github.com/brocaar/lorawan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildFrame(mhdr, fctrl byte, port *byte, payloadLen int) []byte {
	b := []byte{mhdr, 0x04, 0x03, 0x02, 0x01, fctrl, 0x2a, 0x01}
	if port != nil {
		b = append(b, *port)
	}
	for i := 0; i < payloadLen; i++ {
		b = append(b, byte(i))
	}
	return append(b, 0xde, 0xad, 0xbe, 0xef)
}

func TestParseReferenceLiteral(t *testing.T) {
	// 40 01010203 04 0506 0708090a0b 0c0d0e0f
	f, err := Parse("QAEBAgMEBQYHCAkKCwwNDg8=")
	require.NoError(t, err)

	assert.Equal(t, 17, f.Len())
	assert.Equal(t, byte(0x40), f.MHDR)
	assert.Equal(t, lorawan.UnconfirmedDataUp, f.MType)
	assert.True(t, f.IsUplink())
	assert.Equal(t, [4]byte{0x01, 0x01, 0x02, 0x03}, f.DevAddr)
	assert.Equal(t, "01010203", f.DevAddrString(WireOrder))
	assert.Equal(t, "03020101", f.DevAddrString(Reversed))
	assert.Equal(t, byte(0x04), f.FCtrl)
	assert.Equal(t, 4, f.FOptsLen())
	assert.Equal(t, uint16(0x0605), f.FCnt)
	assert.Nil(t, f.FPort)
	assert.Equal(t, 8, f.PayloadOffset)
	assert.Equal(t, 5, f.PayloadLength())
	assert.Equal(t, []byte{0x07, 0x08, 0x09, 0x0a, 0x0b}, f.Payload())
	assert.Equal(t, []byte{0x0c, 0x0d, 0x0e, 0x0f}, f.MIC())
}

func TestParseSensorFrame(t *testing.T) {
	port := byte(2)
	raw := buildFrame(0x40, 0x00, &port, 22)
	require.Len(t, raw, 35)

	f, err := Parse(base64.StdEncoding.EncodeToString(raw))
	require.NoError(t, err)
	require.NotNil(t, f.FPort)
	assert.Equal(t, uint8(2), *f.FPort)
	assert.Equal(t, 9, f.PayloadOffset)
	assert.Equal(t, 22, f.PayloadLength())
	assert.Equal(t, uint16(0x012a), f.FCnt)
	assert.Equal(t, "04030201", f.DevAddrString(WireOrder))
	assert.Equal(t, "01020304", f.DevAddrString(Reversed))
	assert.Len(t, f.Payload(), 22)
}

func TestParseMinimalFrameHasNoPort(t *testing.T) {
	f, err := ParseBytes(buildFrame(0x80, 0x00, nil, 0))
	require.NoError(t, err)
	assert.Equal(t, lorawan.ConfirmedDataUp, f.MType)
	assert.True(t, f.IsUplink())
	assert.Nil(t, f.FPort)
	assert.Equal(t, 8, f.PayloadOffset)
	assert.Equal(t, 0, f.PayloadLength())
	assert.Nil(t, f.Payload())
}

func TestParseMessageTypes(t *testing.T) {
	tests := []struct {
		mhdr   byte
		mtype  lorawan.MType
		uplink bool
	}{
		{0x00, lorawan.JoinRequest, false},
		{0x20, lorawan.JoinAccept, false},
		{0x40, lorawan.UnconfirmedDataUp, true},
		{0x60, lorawan.UnconfirmedDataDown, false},
		{0x80, lorawan.ConfirmedDataUp, true},
		{0xa0, lorawan.ConfirmedDataDown, false},
		{0xe0, lorawan.Proprietary, false},
	}
	for _, tt := range tests {
		f, err := ParseBytes(buildFrame(tt.mhdr, 0x00, nil, 0))
		require.NoError(t, err)
		assert.Equal(t, tt.mtype, f.MType, "mhdr %#x", tt.mhdr)
		assert.Equal(t, tt.uplink, f.IsUplink(), "mhdr %#x", tt.mhdr)
	}
}

func TestParseMalformed(t *testing.T) {
	for name, data := range map[string]string{
		"not base64": "@@@@",
		"empty":      "",
		"11 bytes":   base64.StdEncoding.EncodeToString(make([]byte, 11)),
		"1 byte":     "QA==",
	} {
		t.Run(name, func(t *testing.T) {
			f, err := Parse(data)
			assert.Nil(t, f)
			assert.True(t, errors.Is(err, ErrMalformedFrame))
		})
	}
}

func TestParseCopiesInput(t *testing.T) {
	port := byte(2)
	raw := buildFrame(0x40, 0x00, &port, 4)
	f, err := ParseBytes(raw)
	require.NoError(t, err)
	raw[0] = 0xff
	assert.Equal(t, byte(0x40), f.Raw[0])
}

func TestParseDevAddrOrder(t *testing.T) {
	o, err := ParseDevAddrOrder("wire")
	require.NoError(t, err)
	assert.Equal(t, WireOrder, o)

	o, err = ParseDevAddrOrder("Reversed")
	require.NoError(t, err)
	assert.Equal(t, Reversed, o)

	o, err = ParseDevAddrOrder("")
	require.NoError(t, err)
	assert.Equal(t, WireOrder, o)

	_, err = ParseDevAddrOrder("middle")
	assert.Error(t, err)
}
