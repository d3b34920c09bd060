package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"lora-monitor/internal/processor"
)

const namespace = "lora_monitor"

var (
	LinesCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_total",
			Help:      "The total number of capture lines read",
		},
	)

	ReceptionsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "receptions_total",
			Help:      "The total number of receptions recognised, by line format",
		},
		[]string{"format"},
	)

	OutcomesCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outcomes_total",
			Help:      "The total number of pipeline outcomes, by kind",
		},
		[]string{"kind"},
	)

	LastRSSI = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "matched_rssi_dbm",
			Help:      "RSSI of the last reception from the tracked device",
		},
	)
)

// Observe records one pipeline result.
func Observe(r processor.Result) {
	LinesCounter.Inc()
	OutcomesCounter.WithLabelValues(r.Kind.String()).Inc()
	if r.Kind == processor.NotAReception {
		return
	}
	ReceptionsCounter.WithLabelValues(string(r.Reception.Format)).Inc()
	if r.Record != nil {
		LastRSSI.Set(float64(r.Record.RSSI))
	}
}

// Serve exposes /metrics on bind in the background. An empty bind disables
// the endpoint and returns nil.
func Serve(bind string, logger zerolog.Logger) *http.Server {
	if bind == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: bind, Handler: mux}

	logger.Info().Str("bind", bind).Msg("starting prometheus metrics server")
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server error")
		}
	}()
	return server
}
