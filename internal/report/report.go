// Package report renders pipeline results for people (text) and machines
// (JSON lines).
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"lora-monitor/internal/processor"
	"lora-monitor/internal/telemetry"
)

const rule = "------------------------------------------------------------"

// TextWriter prints a block per accepted reception and a single line per
// rejected one.
type TextWriter struct {
	W   io.Writer
	Now func() time.Time
}

func (tw TextWriter) now() time.Time {
	if tw.Now != nil {
		return tw.Now()
	}
	return time.Now()
}

func (tw TextWriter) Emit(_ context.Context, r processor.Result) error {
	clock := tw.now().Format("15:04:05")
	if r.Record == nil {
		rx := r.Reception
		_, err := fmt.Fprintf(tw.W, "[%s] Other device: RSSI=%ddBm, Size=%dB, Freq=%gMHz\n", clock, rx.RSSI, rx.Size, rx.Frequency)
		return err
	}

	rec := r.Record
	var b strings.Builder
	name := rec.Device
	if name == "" {
		name = "device"
	}
	fmt.Fprintf(&b, "\n%s packet (%s)\n", name, r.Kind)
	fmt.Fprintf(&b, "Time: %s\n", clock)
	fmt.Fprintf(&b, "RSSI: %d dBm\n", rec.RSSI)
	fmt.Fprintf(&b, "SNR: %g dB\n", rec.SNR)
	fmt.Fprintf(&b, "Freq: %g MHz\n", rec.Freq)
	fmt.Fprintf(&b, "Size: %d bytes\n", rec.Size)
	fmt.Fprintf(&b, "Rate: %s\n", rec.DataRate)
	fmt.Fprintf(&b, "Quality: %s (%s), SNR %s\n", rec.Signal, rec.Distance, rec.Quality.SNR)
	fmt.Fprintf(&b, "DevAddr: %s\n", rec.DevAddr)
	fmt.Fprintf(&b, "FCnt: %d\n", rec.FCnt)
	fmt.Fprintf(&b, "Port: %s\n", port(rec.FPort))

	if tm := rec.Telemetry; tm != nil {
		writeTelemetry(&b, tm)
	}
	if rec.EncryptedHex != "" {
		fmt.Fprintf(&b, "Encrypted: %s\n", abbreviate(rec.EncryptedHex))
	}
	if rec.DecryptedHex != "" {
		fmt.Fprintf(&b, "Decrypted: %s\n", abbreviate(rec.DecryptedHex))
	}
	if rec.Error != "" {
		fmt.Fprintf(&b, "Decode failed: %s\n", rec.Error)
	}
	b.WriteString(rule + "\n")

	_, err := io.WriteString(tw.W, b.String())
	return err
}

func writeTelemetry(b *strings.Builder, tm *telemetry.Telemetry) {
	a, g, m := tm.Accelerometer, tm.Gyroscope, tm.Magnetometer
	fmt.Fprintf(b, "Accel [g]: X=%.3f, Y=%.3f, Z=%.3f\n", a.X, a.Y, a.Z)
	fmt.Fprintf(b, "Gyro [dps]: X=%.1f, Y=%.1f, Z=%.1f\n", g.X, g.Y, g.Z)
	if m.Z != nil {
		fmt.Fprintf(b, "Mag [uT]: X=%.1f, Y=%.1f, Z=%.1f\n", m.X, m.Y, *m.Z)
	} else {
		fmt.Fprintf(b, "Mag [uT]: X=%.1f, Y=%.1f\n", m.X, m.Y)
	}
	if tm.ToF != nil {
		fmt.Fprintf(b, "ToF C: %s, ToF D: %s\n", distance(tm.ToF.DistanceC), distance(tm.ToF.DistanceD))
	}
}

func distance(mm *uint16) string {
	if mm == nil {
		return "Out of Range"
	}
	return fmt.Sprintf("%dmm", *mm)
}

func port(p *uint8) string {
	if p == nil {
		return "none"
	}
	return fmt.Sprint(*p)
}

func abbreviate(h string) string {
	if len(h) <= 32 {
		return h
	}
	return h[:32] + "..."
}

// JSONWriter writes one JSON object per result. Receptions whose capture
// line carried no time are stamped with Now at emit time.
type JSONWriter struct {
	W   io.Writer
	Now func() time.Time
}

func (jw JSONWriter) Emit(_ context.Context, r processor.Result) error {
	now := time.Now
	if jw.Now != nil {
		now = jw.Now
	}
	return json.NewEncoder(jw.W).Encode(stamp(r, now()))
}

// stamp fills empty timestamps without touching the caller's record.
func stamp(r processor.Result, now time.Time) processor.Result {
	ts := now.UTC().Format(time.RFC3339)
	if r.Kind != processor.NotAReception && r.Reception.Timestamp == "" {
		r.Reception.Timestamp = ts
	}
	if r.Record != nil && r.Record.Timestamp == "" {
		rec := *r.Record
		rec.Timestamp = ts
		r.Record = &rec
	}
	return r
}

// SyncWriter serialises writes from the session loop and the final summary.
type SyncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func NewSyncWriter(w io.Writer) *SyncWriter {
	return &SyncWriter{w: w}
}

func (s *SyncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// WriteSummary prints the session statistics.
func WriteSummary(w io.Writer, s processor.Stats, now time.Time, device string) error {
	if device == "" {
		device = "Matched"
	}
	var b strings.Builder
	b.WriteString("\nSESSION STATISTICS\n")
	fmt.Fprintf(&b, "Duration: %s\n", s.Duration(now).Round(time.Second))
	fmt.Fprintf(&b, "Lines read: %d\n", s.Lines)
	fmt.Fprintf(&b, "Total packets: %d\n", s.Receptions)
	fmt.Fprintf(&b, "%s packets: %d\n", device, s.Matched)
	if s.Receptions > 0 {
		fmt.Fprintf(&b, "Match percentage: %.1f%%\n", s.MatchedPercent())
	}
	_, err := io.WriteString(w, b.String())
	return err
}
