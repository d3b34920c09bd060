// Package telemetry decodes the fixed layout sensor payload into physical
// units. All fields are big endian.
//
//	offset  field            type    scale
//	0       accel x,y,z      int16   /1000 (g)
//	6       gyro x,y,z       int16   /10 (dps)
//	12      mag x,y,z        int16   /10 (uT)
//	18      tof c            uint16  mm, 0xFFFF out of range
//	20      tof d            uint16  mm, 0xFFFF out of range
package telemetry

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	FullLength    = 22
	PartialLength = 16

	// ToFOutOfRange is reported by a distance sensor with no target.
	ToFOutOfRange = 0xFFFF

	accelScale = 1000.0
	gyroScale  = 10.0
	magScale   = 10.0
)

var ErrIncompleteTelemetry = errors.New("incomplete telemetry")

// Tier says how much of the layout was present.
type Tier int

const (
	// TierPartial has accelerometer, gyroscope and magnetometer x,y.
	TierPartial Tier = iota + 1
	// TierFull has every field.
	TierFull
)

func (t Tier) String() string {
	switch t {
	case TierPartial:
		return "partial"
	case TierFull:
		return "full"
	}
	return fmt.Sprintf("Tier(%d)", int(t))
}

func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Magnetometer.Z is nil in the partial tier.
type Magnetometer struct {
	X float64  `json:"x"`
	Y float64  `json:"y"`
	Z *float64 `json:"z"`
}

// ToF distances in millimetres; nil means out of range.
type ToF struct {
	DistanceC *uint16 `json:"distance_c_mm"`
	DistanceD *uint16 `json:"distance_d_mm"`
}

type Telemetry struct {
	Tier          Tier         `json:"tier"`
	Accelerometer Vector3      `json:"accelerometer"`
	Gyroscope     Vector3      `json:"gyroscope"`
	Magnetometer  Magnetometer `json:"magnetometer"`
	ToF           *ToF         `json:"tof,omitempty"`
}

// Decode picks the richest tier the buffer length allows. Bytes beyond the
// tier are never read.
func Decode(buf []byte) (Telemetry, error) {
	var t Telemetry
	switch {
	case len(buf) >= FullLength:
		buf = buf[:FullLength]
		t.Tier = TierFull
	case len(buf) >= PartialLength:
		buf = buf[:PartialLength]
		t.Tier = TierPartial
	default:
		return t, fmt.Errorf("%w: %d bytes, need at least %d", ErrIncompleteTelemetry, len(buf), PartialLength)
	}

	t.Accelerometer = Vector3{
		X: scaled(buf, 0, accelScale),
		Y: scaled(buf, 2, accelScale),
		Z: scaled(buf, 4, accelScale),
	}
	t.Gyroscope = Vector3{
		X: scaled(buf, 6, gyroScale),
		Y: scaled(buf, 8, gyroScale),
		Z: scaled(buf, 10, gyroScale),
	}
	t.Magnetometer = Magnetometer{
		X: scaled(buf, 12, magScale),
		Y: scaled(buf, 14, magScale),
	}
	if t.Tier == TierFull {
		z := scaled(buf, 16, magScale)
		t.Magnetometer.Z = &z
		t.ToF = &ToF{
			DistanceC: distance(buf, 18),
			DistanceD: distance(buf, 20),
		}
	}
	return t, nil
}

func scaled(buf []byte, off int, scale float64) float64 {
	return float64(int16(binary.BigEndian.Uint16(buf[off:]))) / scale
}

func distance(buf []byte, off int) *uint16 {
	v := binary.BigEndian.Uint16(buf[off:])
	if v == ToFOutOfRange {
		return nil
	}
	return &v
}
