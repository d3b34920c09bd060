package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lora-monitor/internal/frame"
)

const (
	testDevEUI = "0102030405060708"
	testAppEUI = "1112131415161718"
	testAppKey = "21222324252627282A2B2C2D2E2F3031"
)

func testSignature(t *testing.T) Signature {
	t.Helper()
	s, err := NewSignature("Sensorite V4", testDevEUI, testAppEUI, testAppKey, 0, 0)
	require.NoError(t, err)
	return s
}

func sensorFrame(t *testing.T, mhdr byte, port *byte, payloadLen int) *frame.Frame {
	t.Helper()
	b := []byte{mhdr, 0x01, 0x02, 0x03, 0x04, 0x00, 0x10, 0x00}
	if port != nil {
		b = append(b, *port)
	}
	b = append(b, make([]byte, payloadLen)...)
	b = append(b, 0, 0, 0, 0)
	f, err := frame.ParseBytes(b)
	require.NoError(t, err)
	return f
}

func bytePtr(b byte) *byte { return &b }

func TestNewSignatureDefaults(t *testing.T) {
	s := testSignature(t)
	assert.Equal(t, DefaultPayloadLength, s.PayloadLength)
	assert.Equal(t, uint8(DefaultPort), s.Port)
	assert.Equal(t, "0102030405060708", s.DevEUI.String())
	assert.Equal(t, byte(0x21), s.AppKey[0])
	assert.Equal(t, byte(0x31), s.AppKey[15])
}

func TestNewSignatureInvalid(t *testing.T) {
	_, err := NewSignature("x", "01020304", testAppEUI, testAppKey, 0, 0)
	assert.Error(t, err)
	_, err = NewSignature("x", testDevEUI, "zz", testAppKey, 0, 0)
	assert.Error(t, err)
	// 15 bytes
	_, err = NewSignature("x", testDevEUI, testAppEUI, "21222324252627282A2B2C2D2E2F30", 0, 0)
	assert.Error(t, err)
	_, err = NewSignature("x", testDevEUI, testAppEUI, testAppKey, 0, 300)
	assert.Error(t, err)
	_, err = NewSignature("x", testDevEUI, testAppEUI, testAppKey, -1, 0)
	assert.Error(t, err)
}

func TestFilterMatch(t *testing.T) {
	f := Filter{Signature: testSignature(t)}

	tests := []struct {
		name    string
		frame   *frame.Frame
		matched bool
		reason  string
	}{
		{"sensor uplink", sensorFrame(t, 0x40, bytePtr(2), 22), true, ""},
		{"confirmed uplink", sensorFrame(t, 0x80, bytePtr(2), 22), true, ""},
		{"21 byte payload", sensorFrame(t, 0x40, bytePtr(2), 21), false, ReasonPayloadLength},
		{"23 byte payload", sensorFrame(t, 0x40, bytePtr(2), 23), false, ReasonPayloadLength},
		{"port 3", sensorFrame(t, 0x40, bytePtr(3), 22), false, ReasonPort},
		{"downlink", sensorFrame(t, 0x60, bytePtr(2), 22), false, ReasonNotUplink},
		{"join request", sensorFrame(t, 0x00, bytePtr(2), 22), false, ReasonNotUplink},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := f.Match(tt.frame)
			assert.Equal(t, tt.matched, v.Matched)
			assert.Equal(t, tt.reason, v.Reason)
		})
	}
}

func TestFilterVerdictMeasurements(t *testing.T) {
	f := Filter{Signature: testSignature(t)}
	v := f.Match(sensorFrame(t, 0x40, bytePtr(3), 21))
	assert.False(t, v.Matched)
	assert.Equal(t, 21, v.PayloadLength)
	require.NotNil(t, v.Port)
	assert.Equal(t, uint8(3), *v.Port)
	assert.Contains(t, v.String(), "rejected")
}

func TestFilterLenientIgnoresMType(t *testing.T) {
	f := Filter{Signature: testSignature(t), Policy: Lenient}
	assert.True(t, f.Match(sensorFrame(t, 0x60, bytePtr(2), 22)).Matched)
	assert.False(t, f.Match(sensorFrame(t, 0x60, bytePtr(3), 22)).Matched)
}

func TestFilterTooShortForMIC(t *testing.T) {
	f := Filter{Signature: testSignature(t)}
	fr := sensorFrame(t, 0x40, bytePtr(2), 0)
	// a hand-built frame whose offset leaves no room for the MIC
	fr.PayloadOffset = fr.Len() - 2
	v := f.Match(fr)
	assert.False(t, v.Matched)
	assert.Equal(t, ReasonTooShort, v.Reason)
}

func TestFilterCustomSignature(t *testing.T) {
	s, err := NewSignature("other", testDevEUI, testAppEUI, testAppKey, 10, 7)
	require.NoError(t, err)
	f := Filter{Signature: s}
	assert.True(t, f.Match(sensorFrame(t, 0x40, bytePtr(7), 10)).Matched)
	assert.False(t, f.Match(sensorFrame(t, 0x40, bytePtr(2), 22)).Matched)
}

func TestParseMTypePolicy(t *testing.T) {
	p, err := ParseMTypePolicy("lenient")
	require.NoError(t, err)
	assert.Equal(t, Lenient, p)
	p, err = ParseMTypePolicy("")
	require.NoError(t, err)
	assert.Equal(t, Strict, p)
	_, err = ParseMTypePolicy("maybe")
	assert.Error(t, err)
}
