package content

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var itemsIngested = promauto.NewCounter(prometheus.CounterOpts{
	Name: "rss_insight_items_ingested_total",
	Help: "Items stored by the content store.",
})
