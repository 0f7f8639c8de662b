package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	TokensIssued = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "openmark", Name: "tokens_issued_total", Help: "Number of tokens issued by kind (at|dat)."},
		[]string{"kind"},
	)
	TokenValidationFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "openmark", Name: "token_validation_failures_total", Help: "Number of token validation failures by reason."},
		[]string{"reason"},
	)
	TokensRevoked = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "openmark", Name: "tokens_revoked_total", Help: "Number of authentication tokens revoked via logout."},
	)
	DocumentsServed = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "openmark", Name: "documents_served_total", Help: "Number of cached PDF documents served."},
	)
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "openmark", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "openmark", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(
		TokensIssued,
		TokenValidationFailures,
		TokensRevoked,
		DocumentsServed,
		RateLimitAllowed,
		RateLimitRejected,
	)
}
