// Package device holds the signature of the tracked sensor class and the
// filter that recognises its frames.
package device

import (
	"fmt"
	"strings"

	"github.com/brocaar/lorawan"

	"lora-monitor/internal/frame"
)

const (
	DefaultPayloadLength = 22
	DefaultPort          = 2
)

// Signature identifies the tracked device class. AppKey is also the key for
// payload decryption.
type Signature struct {
	Name          string
	DevEUI        lorawan.EUI64
	AppEUI        lorawan.EUI64
	AppKey        lorawan.AES128Key
	PayloadLength int
	Port          uint8
}

// NewSignature builds a signature from the hex identifiers found in device
// configuration. Zero payload length and port fall back to the defaults.
func NewSignature(name, devEUI, appEUI, appKey string, payloadLength, port int) (Signature, error) {
	s := Signature{Name: name, PayloadLength: payloadLength}
	if err := s.DevEUI.UnmarshalText([]byte(strings.TrimSpace(devEUI))); err != nil {
		return s, fmt.Errorf("dev_eui: %w", err)
	}
	if err := s.AppEUI.UnmarshalText([]byte(strings.TrimSpace(appEUI))); err != nil {
		return s, fmt.Errorf("app_eui: %w", err)
	}
	if err := s.AppKey.UnmarshalText([]byte(strings.TrimSpace(appKey))); err != nil {
		return s, fmt.Errorf("app_key: %w", err)
	}
	if s.PayloadLength == 0 {
		s.PayloadLength = DefaultPayloadLength
	}
	if s.PayloadLength < 0 {
		return s, fmt.Errorf("expected_payload_length must be positive, got %d", payloadLength)
	}
	switch {
	case port == 0:
		s.Port = DefaultPort
	case port < 0 || port > 255:
		return s, fmt.Errorf("expected_port out of range: %d", port)
	default:
		s.Port = uint8(port)
	}
	return s, nil
}

// MTypePolicy controls whether the filter looks at the message type.
type MTypePolicy int

const (
	// Strict only accepts unconfirmed and confirmed data uplinks.
	Strict MTypePolicy = iota
	// Lenient ignores the message type and relies on length and port alone.
	Lenient
)

func (p MTypePolicy) String() string {
	if p == Lenient {
		return "lenient"
	}
	return "strict"
}

// ParseMTypePolicy maps "strict" or "lenient" to a policy.
func ParseMTypePolicy(s string) (MTypePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "strict":
		return Strict, nil
	case "lenient":
		return Lenient, nil
	}
	return Strict, fmt.Errorf("unknown mtype check %q", s)
}

// Rejection reasons.
const (
	ReasonNotUplink     = "not an uplink"
	ReasonTooShort      = "too short for MIC"
	ReasonPayloadLength = "payload length mismatch"
	ReasonPort          = "port mismatch"
)

// Verdict is the filter decision plus the measurements behind it. Reason is
// empty when the frame matched.
type Verdict struct {
	Matched       bool
	Reason        string
	PayloadLength int
	Port          *uint8
}

func (v Verdict) String() string {
	port := "none"
	if v.Port != nil {
		port = fmt.Sprint(*v.Port)
	}
	if v.Matched {
		return fmt.Sprintf("matched: payload=%dB port=%s", v.PayloadLength, port)
	}
	return fmt.Sprintf("rejected (%s): payload=%dB port=%s", v.Reason, v.PayloadLength, port)
}

// Filter decides whether a frame belongs to the tracked device class.
type Filter struct {
	Signature Signature
	Policy    MTypePolicy
}

func (f Filter) Match(fr *frame.Frame) Verdict {
	v := Verdict{PayloadLength: fr.PayloadLength(), Port: fr.FPort}
	switch {
	case fr.Len() < fr.PayloadOffset+4:
		v.Reason = ReasonTooShort
	case f.Policy == Strict && !fr.IsUplink():
		v.Reason = ReasonNotUplink
	case v.PayloadLength != f.Signature.PayloadLength:
		v.Reason = ReasonPayloadLength
	case fr.FPort == nil || *fr.FPort != f.Signature.Port:
		v.Reason = ReasonPort
	default:
		v.Matched = true
	}
	return v
}
