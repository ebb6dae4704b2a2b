package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TokensIssued counts single-use tokens issued by purpose (magic_link|invitation).
	TokensIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skyquote_tokens_issued_total",
			Help: "Total number of single-use tokens issued",
		},
		[]string{"purpose"},
	)

	// TokenValidations counts token validation outcomes (ok|not_found|expired|consumed).
	TokenValidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skyquote_token_validations_total",
			Help: "Total number of token validation attempts",
		},
		[]string{"purpose", "result"},
	)

	// EnquiryTransitions counts enquiry state machine transitions by event.
	EnquiryTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skyquote_enquiry_transitions_total",
			Help: "Total number of enquiry status transitions",
		},
		[]string{"event", "result"},
	)

	// InvitationsSent counts pilot invitations created per round start.
	InvitationsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "skyquote_invitations_sent_total",
			Help: "Total number of pilot invitations sent",
		},
	)

	// InvitationsExpired counts invitations moved to EXPIRED by the sweep.
	InvitationsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "skyquote_invitations_expired_total",
			Help: "Total number of pilot invitations expired by the sweep",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "skyquote_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
