package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Inbound outcomes.
const (
	OutcomeHandled   = "handled"
	OutcomeDuplicate = "duplicate"
	OutcomeIgnored   = "ignored"
	OutcomeOptedOut  = "opted_out"
	OutcomeHandoff   = "needs_human"
	OutcomeFailed    = "failed"
)

// ConversationMetrics tracks the conversation pipeline.
type ConversationMetrics struct {
	inbound      *prometheus.CounterVec
	route        *prometheus.CounterVec
	actions      *prometheus.CounterVec
	upstream     *prometheus.HistogramVec
	orders       prometheus.Counter
	escalations  prometheus.Counter
	outboundSent *prometheus.CounterVec
}

// NewConversationMetrics registers the conversation metrics on reg. A nil
// registerer yields a no-op recorder.
func NewConversationMetrics(reg prometheus.Registerer) *ConversationMetrics {
	if reg == nil {
		return &ConversationMetrics{}
	}
	m := &ConversationMetrics{
		inbound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbound_messages_total",
			Help:      "Inbound WhatsApp messages by outcome.",
		}, []string{"outcome"}),
		route: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversation_routes_total",
			Help:      "Which handler produced the reply for a message.",
		}, []string{"route"}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_actions_total",
			Help:      "Agent actions by type and result.",
		}, []string{"type", "result"}),
		upstream: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_call_duration_seconds",
			Help:      "Latency of agent, gateway and export calls.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
		}, []string{"service", "result"}),
		orders: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_created_total",
			Help:      "Orders created from confirmed carts.",
		}),
		escalations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversation_escalations_total",
			Help:      "Conversations handed off to a human after repeated failures.",
		}),
		outboundSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbound_messages_total",
			Help:      "Outbound gateway sends by kind and result.",
		}, []string{"kind", "result"}),
	}
	reg.MustRegister(m.inbound, m.route, m.actions, m.upstream, m.orders, m.escalations, m.outboundSent)
	return m
}

// IncInbound counts an inbound message outcome.
func (m *ConversationMetrics) IncInbound(outcome string) {
	if m == nil || m.inbound == nil {
		return
	}
	m.inbound.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncRoute counts which handler answered.
func (m *ConversationMetrics) IncRoute(route string) {
	if m == nil || m.route == nil {
		return
	}
	m.route.WithLabelValues(normalizeLabel(route)).Inc()
}

// IncAction counts an applied or dropped agent action.
func (m *ConversationMetrics) IncAction(actionType, result string) {
	if m == nil || m.actions == nil {
		return
	}
	m.actions.WithLabelValues(normalizeLabel(actionType), normalizeLabel(result)).Inc()
}

// ObserveUpstream records an upstream call latency.
func (m *ConversationMetrics) ObserveUpstream(service string, err error, d time.Duration) {
	if m == nil || m.upstream == nil {
		return
	}
	m.upstream.WithLabelValues(normalizeLabel(service), resultLabel(err)).Observe(d.Seconds())
}

// IncOutbound counts a gateway send.
func (m *ConversationMetrics) IncOutbound(kind string, err error) {
	if m == nil || m.outboundSent == nil {
		return
	}
	m.outboundSent.WithLabelValues(normalizeLabel(kind), resultLabel(err)).Inc()
}

// IncOrdersCreated counts a committed order.
func (m *ConversationMetrics) IncOrdersCreated() {
	if m == nil || m.orders == nil {
		return
	}
	m.orders.Inc()
}

// IncEscalations counts a human handoff.
func (m *ConversationMetrics) IncEscalations() {
	if m == nil || m.escalations == nil {
		return
	}
	m.escalations.Inc()
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
