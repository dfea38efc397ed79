package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

var (
	LoginSuccessTotal    prometheus.Counter
	LoginFailureTotal    prometheus.Counter
	LogoutTotal          prometheus.Counter
	TokenRefreshTotal    prometheus.Counter
	TokenRefreshFailures prometheus.Counter
	ActiveSessionsGauge  prometheus.Gauge
)

// Init initializes and registers the module's Prometheus metrics. It should
// be called once at application startup.
func Init(reg prometheus.Registerer) {
	LoginSuccessTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "clientlogin_logins_success_total",
		Help: "Total number of successful logins.",
	})
	LoginFailureTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "clientlogin_logins_failure_total",
		Help: "Total number of failed logins.",
	})
	LogoutTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "clientlogin_logouts_total",
		Help: "Total number of logouts.",
	})
	TokenRefreshTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "clientlogin_token_refresh_total",
		Help: "Total number of access-token refreshes.",
	})
	TokenRefreshFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "clientlogin_token_refresh_failures_total",
		Help: "Total number of failed access-token refreshes.",
	})
	ActiveSessionsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "clientlogin_active_sessions_gauge",
		Help: "Current number of active visitor sessions.",
	})

	if reg == nil {
		log.Error().Msg("Prometheus registry is nil, cannot register metrics.")
		return
	}
	for _, c := range []prometheus.Collector{
		LoginSuccessTotal, LoginFailureTotal, LogoutTotal,
		TokenRefreshTotal, TokenRefreshFailures, ActiveSessionsGauge,
	} {
		if err := reg.Register(c); err != nil {
			log.Warn().Err(err).Msg("Failed to register clientlogin metric")
		}
	}
	log.Info().Msg("clientlogin Prometheus metrics registered.")
}
