package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	DirectionReceived = "received"
	DirectionSent     = "sent"
)

var (
	registerOnce sync.Once

	messages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hitension",
			Subsystem: "frame",
			Name:      "messages_total",
			Help:      "High Tension Messages framed on a session.",
		},
		[]string{"direction"},
	)
	messageBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hitension",
			Subsystem: "frame",
			Name:      "payload_bytes_total",
			Help:      "Payload bytes carried by High Tension Messages.",
		},
		[]string{"direction"},
	)
	messageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hitension",
			Subsystem: "frame",
			Name:      "message_duration_seconds",
			Help:      "Time from first byte request to acknowledgment.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
		},
		[]string{"direction"},
	)
	bufferGrows = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "hitension",
			Subsystem: "frame",
			Name:      "buffer_grows_total",
			Help:      "Receive buffer capacity doublings.",
		},
	)
	textLines = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hitension",
			Subsystem: "text",
			Name:      "lines_total",
			Help:      "Simple Text Messages exchanged on a session.",
		},
		[]string{"direction"},
	)
	commands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hitension",
			Subsystem: "server",
			Name:      "commands_total",
			Help:      "Text commands handled by the server.",
		},
		[]string{"command", "success"},
	)
	activeConns = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "hitension",
			Subsystem: "server",
			Name:      "active_connections",
			Help:      "Currently connected clients.",
		},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hitension",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hitension",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			messages, messageBytes, messageDuration, bufferGrows,
			textLines, commands, activeConns, httpRequests, httpDuration,
		)
	})
}

func RecordMessage(direction string, payloadBytes, grows int, duration time.Duration) {
	RegisterMetrics()
	messages.WithLabelValues(direction).Inc()
	messageBytes.WithLabelValues(direction).Add(float64(payloadBytes))
	messageDuration.WithLabelValues(direction).Observe(duration.Seconds())
	if grows > 0 {
		bufferGrows.Add(float64(grows))
	}
}

func RecordTextLine(direction string) {
	RegisterMetrics()
	textLines.WithLabelValues(direction).Inc()
}

func RecordCommand(command string, success bool) {
	RegisterMetrics()
	commands.WithLabelValues(command, strconv.FormatBool(success)).Inc()
}

func ConnOpened() {
	RegisterMetrics()
	activeConns.Inc()
}

func ConnClosed() {
	RegisterMetrics()
	activeConns.Dec()
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}
