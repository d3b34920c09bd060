// Package signal grades RSSI and SNR into coarse bands.
//
// Every threshold is a strict greater-than comparison, so a value sitting
// exactly on a boundary falls into the lower band: RSSI -80 is Good, SNR 0
// is Fair.
package signal

type Band string

const (
	Excellent Band = "Excellent"
	Good      Band = "Good"
	Fair      Band = "Fair"
	Poor      Band = "Poor"
)

// Distance estimates derived from RSSI alone.
const (
	DistanceUnder100m = "<100m"
	Distance100mTo1km = "100m-1km"
	Distance1To5km    = "1km-5km"
	Distance5To15km   = "5km-15km"
	DistanceOver15km  = ">15km"
)

type Quality struct {
	Signal   Band   `json:"quality"`
	SNR      Band   `json:"snr_quality"`
	Distance string `json:"distance_estimate"`
}

func Assess(rssi int, snr float64) Quality {
	return Quality{
		Signal:   RSSIBand(rssi),
		SNR:      SNRBand(snr),
		Distance: EstimateDistance(rssi),
	}
}

func RSSIBand(rssi int) Band {
	switch {
	case rssi > -80:
		return Excellent
	case rssi > -100:
		return Good
	case rssi > -120:
		return Fair
	}
	return Poor
}

func SNRBand(snr float64) Band {
	switch {
	case snr > 5:
		return Excellent
	case snr > 0:
		return Good
	case snr > -10:
		return Fair
	}
	return Poor
}

func EstimateDistance(rssi int) string {
	switch {
	case rssi > -50:
		return DistanceUnder100m
	case rssi > -80:
		return Distance100mTo1km
	case rssi > -100:
		return Distance1To5km
	case rssi > -120:
		return Distance5To15km
	}
	return DistanceOver15km
}
