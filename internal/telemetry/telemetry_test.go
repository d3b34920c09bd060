package telemetry

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFull(t *testing.T) {
	buf := []byte{
		0x03, 0xe8, // accel x 1000 -> 1.0
		0xfc, 0x18, // accel y -1000 -> -1.0
		0x00, 0x00, // accel z
		0x00, 0x7b, // gyro x 123 -> 12.3
		0xff, 0x85, // gyro y -123 -> -12.3
		0x00, 0x0a, // gyro z 10 -> 1.0
		0x01, 0xf4, // mag x 500 -> 50.0
		0xfe, 0x0c, // mag y -500 -> -50.0
		0x00, 0x05, // mag z 5 -> 0.5
		0x04, 0xd2, // tof c 1234
		0xff, 0xff, // tof d out of range
	}
	tm, err := Decode(buf)
	require.NoError(t, err)

	assert.Equal(t, TierFull, tm.Tier)
	assert.Equal(t, Vector3{X: 1.0, Y: -1.0, Z: 0}, tm.Accelerometer)
	assert.InDelta(t, 12.3, tm.Gyroscope.X, 1e-9)
	assert.InDelta(t, -12.3, tm.Gyroscope.Y, 1e-9)
	assert.InDelta(t, 1.0, tm.Gyroscope.Z, 1e-9)
	assert.InDelta(t, 50.0, tm.Magnetometer.X, 1e-9)
	assert.InDelta(t, -50.0, tm.Magnetometer.Y, 1e-9)
	require.NotNil(t, tm.Magnetometer.Z)
	assert.InDelta(t, 0.5, *tm.Magnetometer.Z, 1e-9)
	require.NotNil(t, tm.ToF)
	require.NotNil(t, tm.ToF.DistanceC)
	assert.Equal(t, uint16(1234), *tm.ToF.DistanceC)
	assert.Nil(t, tm.ToF.DistanceD)
}

func TestDecodeZeroAccel(t *testing.T) {
	tm, err := Decode(make([]byte, 22))
	require.NoError(t, err)
	assert.Equal(t, Vector3{}, tm.Accelerometer)
	require.NotNil(t, tm.ToF.DistanceC)
	assert.Equal(t, uint16(0), *tm.ToF.DistanceC)
}

func TestDecodeToFValues(t *testing.T) {
	for _, v := range []uint16{0, 1, 0x7fff, 0x8000, 0xfffe} {
		buf := make([]byte, 22)
		buf[18], buf[19] = byte(v>>8), byte(v)
		buf[20], buf[21] = 0xff, 0xff
		tm, err := Decode(buf)
		require.NoError(t, err)
		require.NotNil(t, tm.ToF.DistanceC)
		assert.Equal(t, v, *tm.ToF.DistanceC)
		assert.Nil(t, tm.ToF.DistanceD)
	}
}

func TestDecodePaddedBuffer(t *testing.T) {
	buf := make([]byte, 32)
	buf[0], buf[1] = 0x00, 0x01
	tm, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, TierFull, tm.Tier)
	assert.Equal(t, 0.001, tm.Accelerometer.X)
}

func TestDecodePartialTier(t *testing.T) {
	buf := make([]byte, 16)
	buf[14], buf[15] = 0x00, 0x64 // mag y 100 -> 10.0

	tm, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, TierPartial, tm.Tier)
	assert.Equal(t, 10.0, tm.Magnetometer.Y)
	assert.Nil(t, tm.Magnetometer.Z)
	assert.Nil(t, tm.ToF)
}

func TestDecodePartialTierIgnoresTrailingBytes(t *testing.T) {
	// 21 bytes: mag z and tof c are present but the tier does not cover them
	buf := make([]byte, 21)
	for i := 16; i < 21; i++ {
		buf[i] = 0x7f
	}
	tm, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, TierPartial, tm.Tier)
	assert.Nil(t, tm.Magnetometer.Z)
	assert.Nil(t, tm.ToF)
}

func TestDecodeIncomplete(t *testing.T) {
	for _, n := range []int{0, 1, 15} {
		_, err := Decode(make([]byte, n))
		assert.True(t, errors.Is(err, ErrIncompleteTelemetry), "len %d", n)
	}
}

func TestDecodeIsPure(t *testing.T) {
	buf := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20, 21, 22}
	a, err := Decode(buf)
	require.NoError(t, err)
	b, err := Decode(buf)
	require.NoError(t, err)
	ja, _ := json.Marshal(a)
	jb, _ := json.Marshal(b)
	assert.Equal(t, ja, jb)
}

func TestTelemetryJSON(t *testing.T) {
	buf := make([]byte, 22)
	buf[20], buf[21] = 0xff, 0xff
	tm, err := Decode(buf)
	require.NoError(t, err)
	b, err := json.Marshal(tm)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"tier":"full"`)
	assert.Contains(t, string(b), `"distance_c_mm":0`)
	assert.Contains(t, string(b), `"distance_d_mm":null`)
}
