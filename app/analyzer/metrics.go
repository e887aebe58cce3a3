package analyzer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var insightsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "rss_insight_insights_created_total",
	Help: "Insights stored, by pillar.",
}, []string{"pillar"})
