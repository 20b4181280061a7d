package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for AuthAttempts
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

var (
	AuthAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "farmfresh", Name: "auth_attempts_total", Help: "Authentication flow invocations by flow and outcome."},
		[]string{"flow", "outcome"},
	)
	UsersCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "farmfresh", Name: "users_created_total", Help: "User records created, by the auth method that created them."},
		[]string{"method"},
	)
	AuthMethodsLinked = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "farmfresh", Name: "auth_methods_linked_total", Help: "Auth methods attached to an existing user record."},
		[]string{"method"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(AuthAttempts)
	reg.MustRegister(UsersCreated)
	reg.MustRegister(AuthMethodsLinked)
}
