package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QuotationRequestsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quotation_requests_created_total",
		Help: "Total number of quotation requests created",
	})

	QuotationResponsesSubmittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quotation_responses_submitted_total",
		Help: "Total number of distributor responses submitted",
	})

	QuotationResponsesUpdatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quotation_responses_updated_total",
		Help: "Total number of distributor responses revised",
	})

	QuotationsAcceptedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quotations_accepted_total",
		Help: "Total number of accepted quotations (orders materialized)",
	})

	QuotationRequestsCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quotation_requests_cancelled_total",
		Help: "Total number of cancelled quotation requests",
	})

	QuotationOperationsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quotation_operations_failed_total",
		Help: "Total number of failed quotation operations",
	}, []string{"operation", "kind"})

	QuotationAcceptLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "quotation_accept_latency_seconds",
		Help:    "Latency of quotation acceptance including order materialization",
		Buckets: prometheus.DefBuckets,
	})

	ComparisonCacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quotation_comparison_cache_lookups_total",
		Help: "Comparison cache lookups by result",
	}, []string{"result"})

	NotificationsWrittenTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_written_total",
		Help: "Total number of inbox notifications written",
	}, []string{"kind"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
