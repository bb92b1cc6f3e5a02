package voicemail

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bitfsorg/libvoicemail-go/token"
)

var (
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicemail_operations_total",
		Help: "Service operations, labeled by operation and outcome kind",
	}, []string{"operation", "result"})

	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "voicemail_operation_duration_seconds",
		Help:    "Latency distribution of service operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	notificationsAcknowledged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voicemail_notifications_acknowledged_total",
		Help: "Relay notifications acknowledged after reconciliation",
	})
)

// errorKinds maps failure kinds to metric labels, most specific first.
var errorKinds = []struct {
	err   error
	label string
}{
	{token.ErrDecodeCorruption, "decode_corruption"},
	{token.ErrDecryptRequired, "decrypt_required"},
	{token.ErrStaleReference, "stale_reference"},
	{token.ErrUnlockAuthorization, "unlock_authorization"},
	{token.ErrRelayUnavailable, "relay_unavailable"},
	{token.ErrConstructionFailure, "construction_failure"},
	{token.ErrIdentityUnavailable, "identity_unavailable"},
	{token.ErrEncryptionFailure, "encryption_failure"},
	{token.ErrRedemptionInFlight, "redemption_in_flight"},
	{token.ErrNotFound, "not_found"},
	{token.ErrInvalidRequest, "invalid_request"},
}

// resultLabel returns "ok" for nil and the kind label of err otherwise.
func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.label
		}
	}
	return "error"
}

func observe(op string, start time.Time, err error) {
	operationsTotal.WithLabelValues(op, resultLabel(err)).Inc()
	operationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
