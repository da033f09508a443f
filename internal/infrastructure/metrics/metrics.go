package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the bridge
type Metrics struct {
	// Event pipeline metrics
	EventsProcessed prometheus.Counter
	EventsSkipped   *prometheus.CounterVec
	EventErrors     prometheus.Counter
	Redeliveries    prometheus.Counter

	// Delivery metrics
	DeliveriesTotal    prometheus.Counter
	DeliveriesSkipped  prometheus.Counter
	DeliveryErrors     *prometheus.CounterVec
	DeliveryDuration   prometheus.Histogram
	LedgerRecordErrors prometheus.Counter

	// Media metrics
	MediaRelocated    prometheus.Counter
	MediaSkipped      *prometheus.CounterVec
	MediaErrors       prometheus.Counter
	AvatarsRelocated  prometheus.Counter
	DownloadDuration  prometheus.Histogram
}

var (
	// DefaultMetrics is the default metrics instance
	DefaultMetrics *Metrics
	once           sync.Once
)

// GetDefaultMetrics returns the singleton metrics instance
func GetDefaultMetrics() *Metrics {
	once.Do(func() {
		DefaultMetrics = NewMetrics()
	})
	return DefaultMetrics
}

func init() {
	GetDefaultMetrics()
}

// NewMetrics creates a new Metrics instance with all counters and gauges
func NewMetrics() *Metrics {
	return &Metrics{
		EventsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tgbridge_events_processed_total",
			Help: "Total number of channel message events processed",
		}),
		EventsSkipped: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tgbridge_events_skipped_total",
				Help: "Total number of events skipped before dispatch",
			},
			[]string{"reason"},
		),
		EventErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tgbridge_event_errors_total",
			Help: "Total number of events that failed processing",
		}),
		Redeliveries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tgbridge_redeliveries_total",
			Help: "Total number of events observed for an already known source message",
		}),

		DeliveriesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tgbridge_deliveries_total",
			Help: "Total number of successful webhook deliveries",
		}),
		DeliveriesSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tgbridge_deliveries_skipped_total",
			Help: "Total number of deliveries skipped because the ledger already had them",
		}),
		DeliveryErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tgbridge_delivery_errors_total",
				Help: "Total number of failed webhook deliveries",
			},
			[]string{"error_type"},
		),
		DeliveryDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "tgbridge_delivery_duration_seconds",
			Help:    "Duration of a single webhook delivery in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		LedgerRecordErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tgbridge_ledger_record_failures_total",
			Help: "Total number of deliveries sent but not recorded in the ledger",
		}),

		MediaRelocated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tgbridge_media_relocated_total",
			Help: "Total number of message attachments relocated to storage",
		}),
		MediaSkipped: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tgbridge_media_skipped_total",
				Help: "Total number of attachments skipped during relocation",
			},
			[]string{"reason"},
		),
		MediaErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tgbridge_media_errors_total",
			Help: "Total number of failed media relocations",
		}),
		AvatarsRelocated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tgbridge_avatars_relocated_total",
			Help: "Total number of chat avatars relocated to storage",
		}),
		DownloadDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "tgbridge_media_download_duration_seconds",
			Help:    "Duration of media downloads from Telegram in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
	}
}

// RecordEventProcessed records a fully dispatched event
func (m *Metrics) RecordEventProcessed() {
	m.EventsProcessed.Inc()
}

// RecordEventSkipped records an event discarded before dispatch
func (m *Metrics) RecordEventSkipped(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	m.EventsSkipped.WithLabelValues(reason).Inc()
}

// RecordEventError records an event that failed processing
func (m *Metrics) RecordEventError() {
	m.EventErrors.Inc()
}

// RecordRedelivery records an event for an already known source message
func (m *Metrics) RecordRedelivery() {
	m.Redeliveries.Inc()
}

// RecordDelivery records a successful delivery with its duration
func (m *Metrics) RecordDelivery(duration float64) {
	m.DeliveriesTotal.Inc()
	m.DeliveryDuration.Observe(duration)
}

// RecordDeliverySkipped records a delivery the ledger already had
func (m *Metrics) RecordDeliverySkipped() {
	m.DeliveriesSkipped.Inc()
}

// RecordDeliveryError records a failed delivery with error type
func (m *Metrics) RecordDeliveryError(errorType string) {
	if errorType == "" {
		errorType = "unknown"
	}
	m.DeliveryErrors.WithLabelValues(errorType).Inc()
}

// RecordLedgerRecordError records a delivery that was sent but whose
// ledger row could not be written
func (m *Metrics) RecordLedgerRecordError() {
	m.LedgerRecordErrors.Inc()
}

// RecordMediaRelocated records a relocated attachment
func (m *Metrics) RecordMediaRelocated(downloadDuration float64) {
	m.MediaRelocated.Inc()
	m.DownloadDuration.Observe(downloadDuration)
}

// RecordMediaSkipped records an attachment skipped during relocation
func (m *Metrics) RecordMediaSkipped(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	m.MediaSkipped.WithLabelValues(reason).Inc()
}

// RecordMediaError records a failed relocation
func (m *Metrics) RecordMediaError() {
	m.MediaErrors.Inc()
}

// RecordAvatarRelocated records a relocated chat avatar
func (m *Metrics) RecordAvatarRelocated() {
	m.AvatarsRelocated.Inc()
}
