// Package perf times gateway event handlers.
package perf

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/physum/physbot/pkg/log"
	"github.com/physum/physbot/pkg/util"
)

const (
	envGatewayPerfThresholdMs     = "PHYSBOT_GATEWAY_PERF_THRESHOLD_MS"
	defaultGatewayPerfThresholdMs = int64(200)
)

var (
	gatewayThresholdOnce sync.Once
	gatewayThreshold     time.Duration

	handlerSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "physbot_gateway_handler_seconds",
			Help:    "Time spent in gateway event handlers, by event.",
			Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"event"},
	)
)

func init() {
	prometheus.MustRegister(handlerSeconds)
}

func gatewayPerfThreshold() time.Duration {
	gatewayThresholdOnce.Do(func() {
		ms := util.EnvInt64(envGatewayPerfThresholdMs, defaultGatewayPerfThresholdMs)
		if ms <= 0 {
			gatewayThreshold = 0
			return
		}
		gatewayThreshold = time.Duration(ms) * time.Millisecond
	})
	return gatewayThreshold
}

// StartGatewayEvent times a handler; call the returned func when it returns.
// Every run is observed in the histogram, slow ones are also logged.
// Set PHYSBOT_GATEWAY_PERF_THRESHOLD_MS to 0 to disable the log.
func StartGatewayEvent(event string, attrs ...slog.Attr) func() {
	name := strings.TrimSpace(event)
	if name == "" {
		name = "unknown"
	}
	start := time.Now()
	return func() {
		duration := time.Since(start)
		handlerSeconds.WithLabelValues(name).Observe(duration.Seconds())

		threshold := gatewayPerfThreshold()
		if threshold <= 0 || duration < threshold {
			return
		}
		args := make([]any, 0, len(attrs)+2)
		args = append(args, slog.String("event", name), slog.Duration("duration", duration))
		for _, attr := range attrs {
			args = append(args, attr)
		}
		log.DiscordLogger().Warn("slow gateway event handler", args...)
	}
}
