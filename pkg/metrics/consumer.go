package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ConsumerMetrics records outcomes for pub/sub message consumers.
type ConsumerMetrics struct {
	duration *prometheus.HistogramVec
	acked    *prometheus.CounterVec
	nacked   *prometheus.CounterVec
}

// NewConsumerMetrics registers the consumer metrics on the provided registerer.
func NewConsumerMetrics(reg prometheus.Registerer) *ConsumerMetrics {
	if reg == nil {
		return &ConsumerMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "consumer_message_duration_seconds",
		Help:    "Time spent handling a single pub/sub message.",
		Buckets: prometheus.DefBuckets,
	}, []string{"consumer"})
	acked := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "consumer_messages_acked",
		Help: "Messages acknowledged by the consumer.",
	}, []string{"consumer"})
	nacked := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "consumer_messages_nacked",
		Help: "Messages returned to the subscription for redelivery.",
	}, []string{"consumer"})
	reg.MustRegister(duration, acked, nacked)
	return &ConsumerMetrics{
		duration: duration,
		acked:    acked,
		nacked:   nacked,
	}
}

// ObserveDuration records handling time for the named consumer.
func (c *ConsumerMetrics) ObserveDuration(consumer string, duration time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(normalizeLabel(consumer)).Observe(duration.Seconds())
}

// IncAcked increments the ack counter for the named consumer.
func (c *ConsumerMetrics) IncAcked(consumer string) {
	if c == nil || c.acked == nil {
		return
	}
	c.acked.WithLabelValues(normalizeLabel(consumer)).Inc()
}

// IncNacked increments the nack counter for the named consumer.
func (c *ConsumerMetrics) IncNacked(consumer string) {
	if c == nil || c.nacked == nil {
		return
	}
	c.nacked.WithLabelValues(normalizeLabel(consumer)).Inc()
}

func normalizeLabel(consumer string) string {
	if consumer == "" {
		return "unknown"
	}
	return consumer
}
