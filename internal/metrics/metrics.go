// Package metrics holds the Prometheus counters of the push pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PushNotifications counts missed-message events handled, by outcome.
	PushNotifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "push_notifications_total",
		Help: "Missed-message events processed by the push dispatcher.",
	}, []string{"outcome"})

	// ApplePushNotifications counts Apple deliveries per device, by result.
	ApplePushNotifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apple_push_notification_total",
		Help: "Per-device results of Apple push deliveries.",
	}, []string{"result"})

	// AndroidPushNotifications counts Android batch sends, by outcome.
	AndroidPushNotifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "android_push_notification_total",
		Help: "Android push batches sent, by outcome.",
	}, []string{"outcome"})

	// AndroidTokenUpdates counts directory changes caused by gateway feedback.
	AndroidTokenUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "android_token_updates_total",
		Help: "Android token records changed after gateway feedback.",
	}, []string{"action"})

	// BouncerRequests counts relay calls, by endpoint and classification.
	BouncerRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "push_bouncer_requests_total",
		Help: "Requests sent to the push notification bouncer.",
	}, []string{"endpoint", "result"})
)
