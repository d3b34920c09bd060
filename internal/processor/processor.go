package processor

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"lora-monitor/internal/capture"
	"lora-monitor/internal/decrypt"
	"lora-monitor/internal/device"
	"lora-monitor/internal/frame"
	"lora-monitor/internal/signal"
	"lora-monitor/internal/telemetry"
)

// Kind is the outcome of running one line through the pipeline.
type Kind int

const (
	NotAReception Kind = iota
	MalformedFrame
	FilterRejected
	Decoded
	DecryptUnavailable
	DecryptError
	IncompleteTelemetry

	numKinds
)

var kindNames = [numKinds]string{
	NotAReception:       "not_a_reception",
	MalformedFrame:      "malformed_frame",
	FilterRejected:      "filter_rejected",
	Decoded:             "decoded",
	DecryptUnavailable:  "decrypt_unavailable",
	DecryptError:        "decrypt_error",
	IncompleteTelemetry: "incomplete_telemetry",
}

func (k Kind) String() string {
	if k < 0 || k >= numKinds {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Accepted reports whether the frame passed the device filter. Accepted
// results always carry a Record, possibly with Error set.
func (k Kind) Accepted() bool {
	return k >= Decoded
}

// Record is the structured output for an accepted reception.
type Record struct {
	Timestamp string         `json:"timestamp,omitempty"`
	Format    capture.Format `json:"format,omitempty"`
	Device    string         `json:"device,omitempty"`
	RSSI      int            `json:"rssi"`
	SNR       float64        `json:"snr"`
	Freq      float64        `json:"freq"`
	Size      int            `json:"size"`
	DataRate  string         `json:"datarate"`
	Channel   int            `json:"channel"`
	signal.Quality
	DevAddr      string               `json:"dev_addr"`
	FCnt         uint16               `json:"fcnt"`
	FPort        *uint8               `json:"fport"`
	EncryptedHex string               `json:"encrypted_hex,omitempty"`
	DecryptedHex string               `json:"decrypted_hex,omitempty"`
	Telemetry    *telemetry.Telemetry `json:"telemetry,omitempty"`
	Error        string               `json:"error,omitempty"`
}

// Result carries everything known about one line. Record is set only for
// accepted kinds.
type Result struct {
	Kind      Kind                 `json:"kind"`
	Reception capture.RawReception `json:"reception"`
	Verdict   device.Verdict       `json:"-"`
	Record    *Record              `json:"record,omitempty"`
}

// Processor runs the decode pipeline. It holds no mutable state, so one
// value may serve concurrent callers.
type Processor struct {
	Logger       zerolog.Logger
	Filter       device.Filter
	Decryptor    decrypt.Decryptor
	DevAddrOrder frame.DevAddrOrder
}

// HandleLine classifies one capture line and, for receptions, runs the rest
// of the pipeline. It never fails; the outcome is in Result.Kind.
func (p Processor) HandleLine(line string) Result {
	rx, ok := capture.Classify(line)
	if !ok {
		return Result{Kind: NotAReception}
	}
	return p.HandleReception(rx)
}

func (p Processor) HandleReception(rx capture.RawReception) Result {
	res := Result{Reception: rx}
	fr, err := frame.Parse(rx.Data)
	if err != nil {
		p.Logger.Debug().Err(err).Str("format", string(rx.Format)).Int("size", rx.Size).Msg("skipping malformed frame")
		res.Kind = MalformedFrame
		return res
	}

	res.Verdict = p.Filter.Match(fr)
	p.logVerdict(fr, res.Verdict)
	if !res.Verdict.Matched {
		res.Kind = FilterRejected
		return res
	}
	res.Kind, res.Record = p.decode(rx, fr)
	return res
}

// DecodePayload decodes a single base64 PHY payload without consulting the
// device filter.
func (p Processor) DecodePayload(data string) (Result, error) {
	rx := capture.RawReception{Data: data, Size: -1}
	fr, err := frame.Parse(data)
	if err != nil {
		return Result{Kind: MalformedFrame, Reception: rx}, err
	}
	rx.Size = fr.Len()
	res := Result{Reception: rx, Verdict: p.Filter.Match(fr)}
	res.Kind, res.Record = p.decode(rx, fr)
	return res, nil
}

func (p Processor) decode(rx capture.RawReception, fr *frame.Frame) (Kind, *Record) {
	rec := &Record{
		Timestamp: rx.Timestamp,
		Format:    rx.Format,
		Device:    p.Filter.Signature.Name,
		RSSI:      rx.RSSI,
		SNR:       rx.SNR,
		Freq:      rx.Frequency,
		Size:      rx.Size,
		DataRate:  rx.DataRate,
		Channel:   rx.Channel,
		Quality:   signal.Assess(rx.RSSI, rx.SNR),
		DevAddr:   fr.DevAddrString(p.DevAddrOrder),
		FCnt:      fr.FCnt,
		FPort:     fr.FPort,
	}
	payload := fr.Payload()
	rec.EncryptedHex = hex.EncodeToString(payload)

	plain, err := p.Decryptor.Decrypt(fr.Raw, fr.PayloadOffset, p.Filter.Signature.AppKey[:])
	if err != nil {
		rec.Error = err.Error()
		p.Logger.Warn().Err(err).Str("dev_addr", rec.DevAddr).Uint16("fcnt", rec.FCnt).Msg("payload decrypt failed")
		if errors.Is(err, decrypt.ErrDecryptUnavailable) {
			return DecryptUnavailable, rec
		}
		return DecryptError, rec
	}
	n := len(payload)
	if n > len(plain) {
		n = len(plain)
	}
	rec.DecryptedHex = hex.EncodeToString(plain[:n])

	tm, err := telemetry.Decode(plain)
	if err != nil {
		rec.Error = err.Error()
		p.Logger.Warn().Err(err).Str("dev_addr", rec.DevAddr).Int("decrypted_len", len(plain)).Msg("telemetry decode failed")
		return IncompleteTelemetry, rec
	}
	rec.Telemetry = &tm
	return Decoded, rec
}

// logVerdict emits the filter diagnostic. It is informational only.
func (p Processor) logVerdict(fr *frame.Frame, v device.Verdict) {
	ev := p.Logger.Debug().
		Str("dev_addr", fr.DevAddrString(p.DevAddrOrder)).
		Int("payload_length", v.PayloadLength).
		Int("expected_payload_length", p.Filter.Signature.PayloadLength)
	if v.Port != nil {
		ev = ev.Uint8("port", *v.Port)
	}
	if v.Matched {
		ev.Msg("filter matched")
		return
	}
	ev.Str("reason", v.Reason).Msg("filter rejected")
}
