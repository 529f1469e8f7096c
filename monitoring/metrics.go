package monitoring

import (
	"context"
	"time"

	"github.com/pocketbase/pocketbase/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	validations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_validations_total",
			Help: "Total validation attempts by outcome",
		},
		[]string{"outcome"},
	)

	reservations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inventory_reservations_total",
			Help: "Total inventory reservation attempts",
		},
		[]string{"ticket_type", "status"},
	)

	validateDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ticket_validate_duration_seconds",
			Help:    "Duration of the atomic validate operation",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
	)

	soldRatio = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ticket_type_sold_ratio",
			Help: "sold_count / capacity per ticket type",
		},
		[]string{"ticket_type"},
	)
)

type Monitor struct {
	app      core.App
	interval time.Duration
}

func NewMonitor(app core.App, interval time.Duration) *Monitor {
	monitor := &Monitor{app: app, interval: interval}

	go monitor.collectMetrics()

	return monitor
}

func (m *Monitor) collectMetrics() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for range ticker.C {
		m.collectInventoryMetrics(context.Background())
	}
}

func (m *Monitor) collectInventoryMetrics(ctx context.Context) {
	records, err := m.app.FindRecordsByFilter("ticket_types", "id != ''", "", 0, 0)
	if err != nil {
		return
	}

	for _, record := range records {
		capacity := record.GetInt("capacity")
		if capacity <= 0 {
			continue
		}
		ratio := float64(record.GetInt("sold_count")) / float64(capacity)
		soldRatio.WithLabelValues(record.GetString("name")).Set(ratio)
	}
}

// TrackValidation counts a scan attempt by its outcome.
func TrackValidation(outcome string) {
	validations.WithLabelValues(outcome).Inc()
}

// TrackReservation counts a reserve attempt per ticket type.
func TrackReservation(ticketTypeID, status string) {
	reservations.WithLabelValues(ticketTypeID, status).Inc()
}

// TrackValidateDuration observes the latency of one validate call.
func TrackValidateDuration(d time.Duration) {
	validateDuration.Observe(d.Seconds())
}
