// Package sse implements the live subscription fan-out for chat messages.
//
// This file exposes Prometheus instrumentation for the hub. The per-chat
// offline buffer is deliberately unbounded (see Hub), so the buffered gauge
// is the operational signal that a chat is accumulating messages with no
// subscriber attached.
package sse

import "github.com/prometheus/client_golang/prometheus"

var (
	// subsActive gauges the number of currently registered subscriptions.
	subsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sse_active_subscriptions",
		Help: "Current number of active SSE subscriptions.",
	})

	// eventsBuffered gauges messages parked in offline buffers across all chats.
	eventsBuffered = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sse_buffered_messages",
		Help: "Messages buffered for chats with no active subscriber.",
	})

	// eventsDelivered counts frames written to subscriber channels by kind.
	eventsDelivered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sse_events_delivered_total",
			Help: "Total events written to subscriber channels.",
		},
		[]string{"type"},
	)

	// writeFailures counts channel writes that failed and forced an unsubscribe.
	writeFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sse_channel_write_failures_total",
		Help: "Channel writes that failed and were converted into unsubscribes.",
	})

	// subsReaped counts subscriptions removed by the idle reaper.
	subsReaped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sse_subscriptions_reaped_total",
		Help: "Subscriptions removed after exceeding the idle timeout.",
	})
)

func init() {
	prometheus.MustRegister(subsActive, eventsBuffered, eventsDelivered, writeFailures, subsReaped)
}
