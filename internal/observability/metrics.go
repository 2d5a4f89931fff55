package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	BridgeConnections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tata_bridge_connections_total",
		Help: "TCP connections accepted from SMS bridges",
	})
	MessagesRecv = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tata_messages_received_total",
		Help: "Inbound SMS bodies by source",
	}, []string{"source"})
	ReportsDecoded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tata_reports_decoded_total",
		Help: "Device reports decoded, by status",
	}, []string{"status"})
	DecodeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tata_decode_errors_total",
		Help: "Machine decode failures by kind",
	}, []string{"kind"})
	ReportsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tata_reports_rejected_total",
		Help: "Inbound messages dropped before decoding",
	}, []string{"reason"})
	CommandsParsed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tata_commands_parsed_total",
		Help: "Operator commands by result",
	}, []string{"result"})
	CommandsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tata_commands_sent_total",
		Help: "Machine encoded commands handed to the transport",
	})
	CommandsThrottled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tata_commands_throttled_total",
		Help: "Commands held back by a limit",
	}, []string{"limit"})
	RedisErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tata_redis_errors_total",
		Help: "Redis read/write failures",
	})
	ForwardErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tata_forward_errors_total",
		Help: "Failures pushing reports downstream",
	}, []string{"sink"})
	DecodeLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tata_decode_latency_seconds",
		Help:    "Machine decode latency per report",
		Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10),
	})
)

func ObserveDecodeLatency(start time.Time) {
	DecodeLatency.Observe(time.Since(start).Seconds())
}

func MetricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func StartMetricsServer(port string) error {
	return http.ListenAndServe(":"+port, MetricsHandler())
}
