package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MessagingMetrics exposes counters/histograms for the auto-responder flows.
// All methods are safe on a nil receiver.
type MessagingMetrics struct {
	inboundTotal      *prometheus.CounterVec
	outboundTotal     *prometheus.CounterVec
	outboundLatency   *prometheus.HistogramVec
	webhookTotal      *prometheus.CounterVec
	webhookLatency    prometheus.Histogram
	transitionsTotal  *prometheus.CounterVec
	matchTotal        *prometheus.CounterVec
	matchScore        *prometheus.HistogramVec
	skippedScripts    *prometheus.CounterVec
	embeddingTotal    *prometheus.CounterVec
	embeddingDuration *prometheus.HistogramVec
}

func NewMessagingMetrics(reg prometheus.Registerer) *MessagingMetrics {
	m := &MessagingMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "messaging",
			Name:      "inbound_messages_total",
			Help:      "Inbound WhatsApp messages by kind and result",
		}, []string{"kind", "result"}),
		outboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "messaging",
			Name:      "outbound_total",
			Help:      "Outbound WhatsApp sends by shape and status",
		}, []string{"shape", "status"}),
		outboundLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "messaging",
			Name:      "outbound_latency_seconds",
			Help:      "Latency of WhatsApp send calls including retries",
			Buckets:   prometheus.DefBuckets,
		}, []string{"shape"}),
		webhookTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "messaging",
			Name:      "webhook_requests_total",
			Help:      "WhatsApp webhook deliveries by HTTP status",
		}, []string{"status"}),
		webhookLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "messaging",
			Name:      "webhook_latency_seconds",
			Help:      "Latency of WhatsApp webhook processing",
			Buckets:   prometheus.DefBuckets,
		}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "conversation",
			Name:      "state_transitions_total",
			Help:      "Patient conversation state transitions",
		}, []string{"from", "to"}),
		matchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "scripts",
			Name:      "match_total",
			Help:      "Script match attempts by strategy and outcome",
		}, []string{"strategy", "matched"}),
		matchScore: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "scripts",
			Name:      "match_score",
			Help:      "Best combined score per match attempt",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1, 1.2},
		}, []string{"strategy"}),
		skippedScripts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "scripts",
			Name:      "skipped_total",
			Help:      "Scripts skipped for lacking an embedding in the message language",
		}, []string{"language"}),
		embeddingTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "embedding",
			Name:      "requests_total",
			Help:      "Embedding provider calls by outcome",
		}, []string{"provider", "outcome"}),
		embeddingDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "embedding",
			Name:      "duration_seconds",
			Help:      "Embedding provider call latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.inboundTotal, m.outboundTotal, m.outboundLatency,
		m.webhookTotal, m.webhookLatency, m.transitionsTotal,
		m.matchTotal, m.matchScore, m.skippedScripts,
		m.embeddingTotal, m.embeddingDuration,
	)
	return m
}

func (m *MessagingMetrics) ObserveInbound(kind, result string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(kind, result).Inc()
}

func (m *MessagingMetrics) ObserveOutbound(shape, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.outboundTotal.WithLabelValues(shape, status).Inc()
	m.outboundLatency.WithLabelValues(shape).Observe(d.Seconds())
}

func (m *MessagingMetrics) ObserveWebhook(status int, d time.Duration) {
	if m == nil {
		return
	}
	m.webhookTotal.WithLabelValues(strconv.Itoa(status)).Inc()
	m.webhookLatency.Observe(d.Seconds())
}

func (m *MessagingMetrics) ObserveTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(from, to).Inc()
}

func (m *MessagingMetrics) ObserveMatch(strategy string, matched bool, score float64) {
	if m == nil {
		return
	}
	m.matchTotal.WithLabelValues(strategy, strconv.FormatBool(matched)).Inc()
	m.matchScore.WithLabelValues(strategy).Observe(score)
}

func (m *MessagingMetrics) ObserveSkippedScript(language string) {
	if m == nil {
		return
	}
	m.skippedScripts.WithLabelValues(language).Inc()
}

func (m *MessagingMetrics) ObserveEmbedding(provider, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.embeddingTotal.WithLabelValues(provider, outcome).Inc()
	m.embeddingDuration.WithLabelValues(provider).Observe(d.Seconds())
}
