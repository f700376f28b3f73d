package console

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	commandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memdbg_console_commands_total",
			Help: "Total debugger commands by outcome",
		},
		[]string{"status"},
	)

	commandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "memdbg_console_command_duration_seconds",
			Help:    "Time from writing a command to its reply completing",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)

	receivedBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "memdbg_console_received_bytes_total",
		Help: "Total bytes read from debugger output",
	})
)

const (
	statusOK     = "ok"
	statusError  = "error"
	statusPosted = "posted"
)

func recordCommand(status string, start time.Time) {
	commandsTotal.WithLabelValues(status).Inc()
	if !start.IsZero() {
		commandDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	}
}
