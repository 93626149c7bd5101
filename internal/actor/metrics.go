// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package actor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Status values for message metrics.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// MessagesProcessed counts messages handled by the worker.
// Use RegisterMetrics to register this with a Prometheus registry.
var MessagesProcessed = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "plugbridge_actor_messages_total",
		Help: "Total number of mailbox messages processed by the runtime actor",
	},
	[]string{"kind", "status"},
)

// MessageDuration is the histogram of time spent handling one message.
var MessageDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "plugbridge_actor_message_duration_seconds",
		Help:    "Time the runtime actor spent handling one message",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"kind"},
)

// MailboxDepth is the number of messages waiting when the worker takes the next one.
var MailboxDepth = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "plugbridge_actor_mailbox_depth",
		Help: "Messages queued for the runtime actor",
	},
)

// PluginTransitions counts lifecycle transitions by target state.
var PluginTransitions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "plugbridge_plugin_transitions_total",
		Help: "Total number of plugin lifecycle transitions",
	},
	[]string{"state"},
)

// RegisterMetrics registers actor metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(MessagesProcessed)
	reg.MustRegister(MessageDuration)
	reg.MustRegister(MailboxDepth)
	reg.MustRegister(PluginTransitions)
}

func recordMessage(kind, status string, d time.Duration) {
	MessagesProcessed.WithLabelValues(kind, status).Inc()
	MessageDuration.WithLabelValues(kind).Observe(d.Seconds())
}
