// Package capture recognises gateway capture lines and turns them into
// RawReception values. Lines that match none of the known shapes are not
// errors, they are simply not receptions.
package capture

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

const (
	bridgeMarker  = `"phyPayload"`
	csvMarker     = "RXPK,"
	csvMinFields  = 10
	debugDataRate = "SF7BW125"
)

var (
	rxpkRe  = regexp.MustCompile(`\{"rxpk":\[.*?\]\}`)
	debugRe = regexp.MustCompile(`freq=([0-9.]+) rssi=(-?[0-9]+) snr=(-?[0-9.]+) size=([0-9]+) data=([A-Fa-f0-9]+)`)
)

type parser struct {
	format Format
	parse  func(line string) (RawReception, bool)
}

// parsers are tried in order; the shapes are mutually exclusive so the first
// hit wins.
var parsers = []parser{
	{format: FormatPacketForwarder, parse: parsePacketForwarder},
	{format: FormatGatewayBridge, parse: parseGatewayBridge},
	{format: FormatCSV, parse: parseCSV},
	{format: FormatDebug, parse: parseDebug},
}

// Classify extracts a reception from one capture line. The boolean is false
// when the line is not a reception.
func Classify(line string) (RawReception, bool) {
	for _, p := range parsers {
		if r, ok := p.parse(line); ok {
			r.Format = p.format
			return r, true
		}
	}
	return RawReception{}, false
}

func parsePacketForwarder(line string) (RawReception, bool) {
	m := rxpkRe.FindString(line)
	if m == "" {
		return RawReception{}, false
	}
	var up upstream
	if err := json.Unmarshal([]byte(m), &up); err != nil || len(up.Rxpk) == 0 {
		return RawReception{}, false
	}
	p := up.Rxpk[0]
	return RawReception{
		Timestamp: p.Time,
		Frequency: p.Freq,
		RSSI:      dBm(p.RSSI),
		SNR:       p.LSNR,
		DataRate:  p.dataRate(),
		Size:      p.Size,
		Data:      p.Data,
		Channel:   p.Chan,
	}, true
}

// parseGatewayBridge handles one uplink event per line as logged from the
// gateway bridge MQTT topic.
func parseGatewayBridge(line string) (RawReception, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "{") || !strings.Contains(line, bridgeMarker) {
		return RawReception{}, false
	}
	var ev uplinkEvent
	if err := json.Unmarshal([]byte(line), &ev); err != nil || ev.PHYPayload == "" {
		return RawReception{}, false
	}
	phy, err := base64.StdEncoding.DecodeString(ev.PHYPayload)
	if err != nil {
		return RawReception{}, false
	}
	rx, ok := ev.first()
	if !ok {
		return RawReception{}, false
	}
	return RawReception{
		Timestamp: rx.Time,
		Frequency: float64(ev.TxInfo.Frequency) / 1e6,
		RSSI:      dBm(rx.RSSI),
		SNR:       rx.LoRaSNR,
		DataRate:  ev.TxInfo.dataRate(),
		Size:      len(phy),
		Data:      ev.PHYPayload,
		Channel:   rx.Channel,
	}, true
}

// parseCSV handles the modified forwarder output:
// RXPK,timestamp,freq,rssi,lsnr,sf,bw,cr,size,hexdata
func parseCSV(line string) (RawReception, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, csvMarker) {
		return RawReception{}, false
	}
	parts := strings.Split(line, ",")
	if len(parts) < csvMinFields {
		return RawReception{}, false
	}
	freq, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
	if err != nil {
		return RawReception{}, false
	}
	rssi, err := strconv.Atoi(strings.TrimSpace(parts[3]))
	if err != nil {
		return RawReception{}, false
	}
	snr, err := strconv.ParseFloat(strings.TrimSpace(parts[4]), 64)
	if err != nil {
		return RawReception{}, false
	}
	size, err := strconv.Atoi(strings.TrimSpace(parts[8]))
	if err != nil {
		return RawReception{}, false
	}
	data, ok := hexToBase64(strings.TrimSpace(parts[9]))
	if !ok {
		return RawReception{}, false
	}
	return RawReception{
		Timestamp: strings.TrimSpace(parts[1]),
		Frequency: freq,
		RSSI:      rssi,
		SNR:       snr,
		DataRate:  "SF" + strings.TrimSpace(parts[5]) + "BW" + strings.TrimSpace(parts[6]),
		Size:      size,
		Data:      data,
	}, true
}

// parseDebug handles free-text forwarder debug output such as
// INFO: [RAW] freq=915.2 rssi=-89 snr=8.5 size=26 data=5353...
// The line carries no timestamp or datarate.
func parseDebug(line string) (RawReception, bool) {
	g := debugRe.FindStringSubmatch(line)
	if g == nil {
		return RawReception{}, false
	}
	freq, err := strconv.ParseFloat(g[1], 64)
	if err != nil {
		return RawReception{}, false
	}
	rssi, err := strconv.Atoi(g[2])
	if err != nil {
		return RawReception{}, false
	}
	snr, err := strconv.ParseFloat(g[3], 64)
	if err != nil {
		return RawReception{}, false
	}
	size, err := strconv.Atoi(g[4])
	if err != nil {
		return RawReception{}, false
	}
	data, ok := hexToBase64(g[5])
	if !ok {
		return RawReception{}, false
	}
	return RawReception{
		Frequency: freq,
		RSSI:      rssi,
		SNR:       snr,
		DataRate:  debugDataRate,
		Size:      size,
		Data:      data,
	}, true
}

func hexToBase64(s string) (string, bool) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return "", false
	}
	return base64.StdEncoding.EncodeToString(b), true
}
