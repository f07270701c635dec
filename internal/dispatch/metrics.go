package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	offersExtendedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_offers_extended_total",
		Help: "Total number of offers created by the dispatcher",
	})

	offersExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_offers_expired_total",
		Help: "Total number of pending offers expired by the sweeper",
	})

	noDriverFoundTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_no_driver_found_total",
		Help: "Total number of bookings terminated after driver exhaustion",
	})

	raceLostTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_race_lost_total",
		Help: "Total number of offer creations that lost the unique-pending race",
	})

	dispatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dispatch_run_duration_seconds",
		Help:    "Duration of a single dispatch run for one booking",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})
)
