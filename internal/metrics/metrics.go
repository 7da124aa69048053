package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// API
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Count of HTTP requests."},
		[]string{"handler", "method", "code"},
	)
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms..~10s
		},
		[]string{"handler", "method"},
	)

	// Queue
	QueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "queue_depth", Help: "Messages in the queue by status."},
		[]string{"status"},
	)
	EnqueueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "queue_enqueue_total", Help: "Enqueue results."},
		[]string{"channel", "result"}, // ok | invalid
	)

	// Dispatcher
	PassTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "dispatch_pass_total", Help: "Dispatcher passes."},
		[]string{"result"}, // ok | offline | aborted | busy
	)
	SendTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "dispatch_send_total", Help: "Send attempt outcomes."},
		[]string{"channel", "outcome"}, // sent | retry | failed
	)
	SendDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dispatch_send_duration_seconds",
			Help:    "Channel sender latency per attempt.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms..~40s
		},
	)

	// Connectivity
	Online = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "network_online", Help: "1 when the last probe judged the network reachable."},
	)
	ProbeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "network_probe_total", Help: "Connectivity probe outcomes."},
		[]string{"outcome"}, // online | offline
	)
)

// SetQueueDepth records current per-status depths.
func SetQueueDepth(pending, sending, sent, failed, retrying int) {
	QueueDepth.WithLabelValues("pending").Set(float64(pending))
	QueueDepth.WithLabelValues("sending").Set(float64(sending))
	QueueDepth.WithLabelValues("sent").Set(float64(sent))
	QueueDepth.WithLabelValues("failed").Set(float64(failed))
	QueueDepth.WithLabelValues("retrying").Set(float64(retrying))
}

// SetOnline records the connectivity boolean.
func SetOnline(online bool) {
	if online {
		Online.Set(1)
		ProbeTotal.WithLabelValues("online").Inc()
	} else {
		Online.Set(0)
		ProbeTotal.WithLabelValues("offline").Inc()
	}
}

var registerOnce sync.Once

// Register default + our collectors. Safe to call more than once; tests spin
// up several servers in one process.
func MustRegister() {
	registerOnce.Do(register)
}

func register() {
	prometheus.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		HTTPRequests, HTTPDuration,
		QueueDepth, EnqueueTotal,
		PassTotal, SendTotal, SendDuration,
		Online, ProbeTotal,
	)
}
