package capture

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Format tags the line shape a reception was recovered from.
type Format string

const (
	FormatPacketForwarder Format = "rxpk_json"
	FormatGatewayBridge   Format = "bridge_json"
	FormatCSV             Format = "rxpk_csv"
	FormatDebug           Format = "raw_debug"
)

// RawReception is one radio reception as reported by the gateway. Data always
// holds the PHY payload as standard base64, whatever the source line used.
type RawReception struct {
	Timestamp string  `json:"timestamp"`
	Frequency float64 `json:"freq"`
	RSSI      int     `json:"rssi"`
	SNR       float64 `json:"snr"`
	DataRate  string  `json:"datarate"`
	Size      int     `json:"size"`
	Data      string  `json:"data"`
	Channel   int     `json:"channel"`
	Format    Format  `json:"format"`
}

// upstream mirrors the packet forwarder PUSH_DATA body.
type upstream struct {
	Rxpk []rxpk `json:"rxpk"`
}

type rxpk struct {
	Time string          `json:"time"`
	Freq float64         `json:"freq"`
	Chan int             `json:"chan"`
	RSSI float64         `json:"rssi"` // some forwarders emit -45.0
	LSNR float64         `json:"lsnr"`
	Datr json.RawMessage `json:"datr"` // "SF7BW125" for LoRa, bits per second for FSK
	Size int             `json:"size"`
	Data string          `json:"data"`
}

func (p rxpk) dataRate() string {
	if len(p.Datr) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(p.Datr, &s); err == nil {
		return s
	}
	var n float64
	if err := json.Unmarshal(p.Datr, &n); err == nil {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return strings.Trim(string(p.Datr), `"`)
}

// uplinkEvent is the JSON uplink event a gateway bridge publishes on
// gateway/<id>/event/up. Older bridges send rxInfo as an object, newer
// integrations as a list of per-gateway entries.
type uplinkEvent struct {
	PHYPayload string          `json:"phyPayload"`
	TxInfo     txInfo          `json:"txInfo"`
	RxInfo     json.RawMessage `json:"rxInfo"`
}

type txInfo struct {
	Frequency  uint64 `json:"frequency"` // Hz
	Modulation string `json:"modulation"`
	LoRa       struct {
		Bandwidth       int `json:"bandwidth"` // kHz
		SpreadingFactor int `json:"spreadingFactor"`
	} `json:"loRaModulationInfo"`
}

func (t txInfo) dataRate() string {
	if t.LoRa.SpreadingFactor == 0 {
		return t.Modulation
	}
	return fmt.Sprintf("SF%dBW%d", t.LoRa.SpreadingFactor, t.LoRa.Bandwidth)
}

type rxInfo struct {
	GatewayID string  `json:"gatewayID"`
	Time      string  `json:"time"`
	RSSI      float64 `json:"rssi"`
	LoRaSNR   float64 `json:"loRaSNR"`
	Channel   int     `json:"channel"`
}

// first returns the first gateway entry of rxInfo.
func (e uplinkEvent) first() (rxInfo, bool) {
	var one rxInfo
	if err := json.Unmarshal(e.RxInfo, &one); err == nil {
		return one, true
	}
	var many []rxInfo
	if err := json.Unmarshal(e.RxInfo, &many); err == nil && len(many) > 0 {
		return many[0], true
	}
	return rxInfo{}, false
}

// dBm rounds a reported RSSI to whole dBm.
func dBm(v float64) int {
	return int(math.Round(v))
}
