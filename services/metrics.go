package services

import "github.com/prometheus/client_golang/prometheus"

var (
	papersCreatedCounter prometheus.Counter
	statusTransitions    *prometheus.CounterVec
	loginAttempts        *prometheus.CounterVec
	fileUploads          *prometheus.CounterVec
	eventCacheHits       prometheus.Counter
	eventCacheMisses     prometheus.Counter
)

func init() {
	papersCreatedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "portal_papers_created_total",
		Help: "Total number of papers created.",
	})
	statusTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_paper_status_transitions_total",
		Help: "Paper status transitions by source and target status.",
	}, []string{"from", "to"})
	loginAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_login_attempts_total",
		Help: "Login attempts by result.",
	}, []string{"result"})
	fileUploads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_file_uploads_total",
		Help: "Paper file uploads by result.",
	}, []string{"result"})
	eventCacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "portal_event_cache_hits_total",
		Help: "Event metadata cache hits.",
	})
	eventCacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "portal_event_cache_misses_total",
		Help: "Event metadata cache misses.",
	})
	prometheus.MustRegister(papersCreatedCounter, statusTransitions, loginAttempts, fileUploads, eventCacheHits, eventCacheMisses)
}
