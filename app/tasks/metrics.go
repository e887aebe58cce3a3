package tasks

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsClaimed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rss_insight_jobs_claimed_total",
		Help: "Jobs moved from pending to running.",
	})

	jobsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rss_insight_jobs_finished_total",
		Help: "Jobs that reached a terminal status.",
	}, []string{"type", "status"})
)
