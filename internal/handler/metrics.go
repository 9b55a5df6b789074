package handler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	matchRequestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classmatch_match_requests_total",
		Help: "Matching calls served.",
	})
	sessionsScheduledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classmatch_sessions_scheduled_total",
		Help: "Sessions created, reschedules included.",
	})
	conflictsDetectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classmatch_conflicts_detected_total",
		Help: "Create attempts rejected by the buffer-aware conflict check.",
	})
	conflictsOverriddenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classmatch_conflicts_overridden_total",
		Help: "Sessions created over a detected conflict with a justification.",
	})
)
