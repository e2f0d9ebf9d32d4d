package station

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the prometheus collectors of a station.
type Metrics struct {
	level     *prometheus.GaugeVec   // Last observed level (by freq)
	threshold *prometheus.GaugeVec   // Active threshold (by freq)
	signals   *prometheus.CounterVec // Closed excursions (by freq and outcome)
	rejected  *prometheus.CounterVec // Samples rejected by a monitor (by freq)
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		level: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "rfmonitor_level_db",
				Help: "Last observed level of a monitored frequency in dB",
			},
			[]string{"freq"},
		),
		threshold: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "rfmonitor_threshold_db",
				Help: "Detection threshold of a monitored frequency in dB",
			},
			[]string{"freq"},
		),
		signals: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rfmonitor_signals_total",
				Help: "Signals detected on a monitored frequency, recorded or discarded while not recording",
			},
			[]string{"freq", "outcome"},
		),
		rejected: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rfmonitor_rejected_samples_total",
				Help: "Samples a monitor refused, e.g. because they arrived out of order",
			},
			[]string{"freq"},
		),
	}
}

func freqLabel(freq int64) string {
	return strconv.FormatInt(freq, 10)
}

func (m *Metrics) observed(freq int64, level, threshold float64) {
	m.level.WithLabelValues(freqLabel(freq)).Set(level)
	m.threshold.WithLabelValues(freqLabel(freq)).Set(threshold)
}

func (m *Metrics) signal(freq int64, recorded bool) {
	outcome := "discarded"
	if recorded {
		outcome = "recorded"
	}
	m.signals.WithLabelValues(freqLabel(freq), outcome).Inc()
}

func (m *Metrics) reject(freq int64) {
	m.rejected.WithLabelValues(freqLabel(freq)).Inc()
}

// forget drops the series of a monitor that went away.
func (m *Metrics) forget(freq int64) {
	label := prometheus.Labels{"freq": freqLabel(freq)}
	m.level.Delete(label)
	m.threshold.Delete(label)
	m.signals.DeletePartialMatch(label)
	m.rejected.Delete(label)
}
