// Package metrics holds the prometheus collectors of the registrar.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	PendingIdentities prometheus.Gauge
	MessagesHandled   *prometheus.CounterVec
	Deliveries        *prometheus.CounterVec
	DeliveriesSkipped *prometheus.CounterVec
	Judgements        *prometheus.CounterVec
	ExpiredIdentities prometheus.Counter

	WatcherFrames     *prometheus.CounterVec
	WatcherErrors     *prometheus.CounterVec
	WatcherReconnects prometheus.Counter

	AdapterDeliveries *prometheus.CounterVec
	AdapterFetched    *prometheus.CounterVec
	Verifications     *prometheus.CounterVec
}

// New registers every collector with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		PendingIdentities: f.NewGauge(prometheus.GaugeOpts{
			Name: "registrar_pending_identities",
			Help: "Number of identities waiting for a judgement",
		}),
		MessagesHandled: f.NewCounterVec(prometheus.CounterOpts{
			Name: "registrar_messages_handled_total",
			Help: "Bus messages handled by the registry, by kind",
		}, []string{"kind"}),
		Deliveries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "registrar_challenge_deliveries_total",
			Help: "Challenges handed to a collaborator for delivery",
		}, []string{"account_type"}),
		DeliveriesSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "registrar_delivery_skipped_total",
			Help: "Challenges not delivered because no collaborator serves the account type",
		}, []string{"account_type"}),
		Judgements: f.NewCounterVec(prometheus.CounterOpts{
			Name: "registrar_judgements_total",
			Help: "Judgements sent to the watcher",
		}, []string{"judgement"}),
		ExpiredIdentities: f.NewCounter(prometheus.CounterOpts{
			Name: "registrar_expired_identities_total",
			Help: "Pending identities removed because every challenge expired",
		}),
		WatcherFrames: f.NewCounterVec(prometheus.CounterOpts{
			Name: "registrar_watcher_frames_total",
			Help: "Frames exchanged with the chain watcher",
		}, []string{"direction", "event"}),
		WatcherErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "registrar_watcher_errors_total",
			Help: "Bridge errors by class",
		}, []string{"class"}),
		WatcherReconnects: f.NewCounter(prometheus.CounterOpts{
			Name: "registrar_watcher_reconnects_total",
			Help: "Successful reconnections to the chain watcher",
		}),
		AdapterDeliveries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "registrar_adapter_deliveries_total",
			Help: "Challenge delivery attempts by adapter and outcome",
		}, []string{"adapter", "outcome"}),
		AdapterFetched: f.NewCounterVec(prometheus.CounterOpts{
			Name: "registrar_adapter_messages_fetched_total",
			Help: "External messages fetched by adapter",
		}, []string{"adapter"}),
		Verifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "registrar_verifications_total",
			Help: "External messages checked against challenges, by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.PendingIdentities.Set(float64(n))
}

func (m *Metrics) IncrementHandled(kind string) {
	if m == nil {
		return
	}
	m.MessagesHandled.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncrementDelivery(accountType string) {
	if m == nil {
		return
	}
	m.Deliveries.WithLabelValues(accountType).Inc()
}

func (m *Metrics) IncrementDeliverySkipped(accountType string) {
	if m == nil {
		return
	}
	m.DeliveriesSkipped.WithLabelValues(accountType).Inc()
}

func (m *Metrics) IncrementJudgement(judgement string) {
	if m == nil {
		return
	}
	m.Judgements.WithLabelValues(judgement).Inc()
}

func (m *Metrics) IncrementExpired() {
	if m == nil {
		return
	}
	m.ExpiredIdentities.Inc()
}

func (m *Metrics) IncrementFrame(direction, event string) {
	if m == nil {
		return
	}
	m.WatcherFrames.WithLabelValues(direction, event).Inc()
}

func (m *Metrics) IncrementWatcherError(class string) {
	if m == nil {
		return
	}
	m.WatcherErrors.WithLabelValues(class).Inc()
}

func (m *Metrics) IncrementReconnect() {
	if m == nil {
		return
	}
	m.WatcherReconnects.Inc()
}

func (m *Metrics) IncrementAdapterDelivery(adapter, outcome string) {
	if m == nil {
		return
	}
	m.AdapterDeliveries.WithLabelValues(adapter, outcome).Inc()
}

func (m *Metrics) AddFetched(adapter string, n int) {
	if m == nil {
		return
	}
	m.AdapterFetched.WithLabelValues(adapter).Add(float64(n))
}

func (m *Metrics) IncrementVerification(outcome string) {
	if m == nil {
		return
	}
	m.Verifications.WithLabelValues(outcome).Inc()
}
