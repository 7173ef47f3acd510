// Package metrics turns device events into Prometheus series.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-go-golems/bigredbutton/pkg/bus"
	"github.com/go-go-golems/bigredbutton/pkg/state"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const namespace = "bigredbutton"

var histogramBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30}

// Recorder owns a private registry so several recorders (tests, sim + run)
// never collide on the default one.
type Recorder struct {
	registry *prometheus.Registry

	connection      prometheus.Gauge
	candidate       prometheus.Gauge
	latestBuild     prometheus.Gauge
	polls           *prometheus.CounterVec
	presses         prometheus.Counter
	deploys         *prometheus.CounterVec
	deployDuration  prometheus.Histogram
	abandoned       prometheus.Counter
	ignored         prometheus.Counter
	taskFailures    *prometheus.CounterVec
	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

func New() *Recorder {
	r := &Recorder{registry: prometheus.NewRegistry()}

	r.connection = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "connection_status",
		Help:      "0 = not connected, 1 = connecting, 2 = connected",
	})
	r.candidate = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "candidate_pending",
		Help:      "1 while a deploy candidate is waiting for a press",
	})
	r.latestBuild = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "latest_build_number",
		Help:      "Number of the most recent build seen by the readiness poller",
	})
	r.polls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "readiness",
		Name:      "polls_total",
		Help:      "Readiness poll iterations by outcome",
	}, []string{"outcome"})
	r.presses = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "button",
		Name:      "presses_total",
		Help:      "Debounced button presses",
	})
	r.deploys = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "deploy",
		Name:      "results_total",
		Help:      "Deploy attempts by source and outcome",
	}, []string{"source", "outcome"})
	r.deployDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "deploy",
		Name:      "duration_seconds",
		Help:      "Latency of the deploy call",
		Buckets:   histogramBuckets,
	})
	r.abandoned = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "button",
		Name:      "abandoned_total",
		Help:      "Presses released before a build was ready",
	})
	r.ignored = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "button",
		Name:      "ignored_total",
		Help:      "Presses ignored because a deploy was in progress",
	})
	r.taskFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "task_failures_total",
		Help:      "Supervised task failures",
	}, []string{"task", "panicked"})
	r.requestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Count of processed status server requests",
	}, []string{"method", "route", "status"})
	r.requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Latency distribution of status server handlers",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.connection, r.candidate, r.latestBuild, r.polls, r.presses,
		r.deploys, r.deployDuration, r.abandoned, r.ignored, r.taskFailures,
		r.requestTotal, r.requestDuration,
	)
	return r
}

func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Register consumes device events from b.
func (r *Recorder) Register(b *bus.Bus, name string) {
	b.AddHandler(name, bus.TopicDeviceEvents, func(msg *message.Message) error {
		defer msg.Ack()
		env, err := bus.DecodeEnvelope(msg.Payload)
		if err != nil {
			log.Warn().Err(err).Msg("metrics: undecodable event")
			return nil
		}
		r.Observe(env)
		return nil
	})
}

// Observe updates the series for one event. Unknown types are ignored.
func (r *Recorder) Observe(env bus.Envelope) {
	switch env.Type {
	case bus.TypeConnectionChanged:
		var ev bus.ConnectionChanged
		if env.Decode(&ev) != nil {
			return
		}
		var st state.ConnectionStatus
		if st.UnmarshalText([]byte(ev.Status)) != nil {
			return
		}
		r.connection.Set(float64(st))
	case bus.TypeReadinessPolled:
		var ev bus.ReadinessPolled
		if env.Decode(&ev) != nil {
			return
		}
		switch {
		case !ev.OK:
			outcome := ev.ErrorKind
			if outcome == "" {
				outcome = "error"
			}
			r.polls.WithLabelValues(outcome).Inc()
		case ev.Ready:
			r.polls.WithLabelValues("ready").Inc()
		default:
			r.polls.WithLabelValues("not_ready").Inc()
		}
		if ev.LatestNumber > 0 {
			r.latestBuild.Set(float64(ev.LatestNumber))
		}
	case bus.TypeCandidatePublished:
		r.candidate.Set(1)
	case bus.TypeButtonChanged:
		var ev bus.ButtonChanged
		if env.Decode(&ev) == nil && ev.Pressed {
			r.presses.Inc()
		}
	case bus.TypeDispatchFinished:
		var ev bus.DispatchFinished
		if env.Decode(&ev) != nil {
			return
		}
		outcome := "failed"
		if ev.OK {
			outcome = "ok"
			r.candidate.Set(0)
		}
		r.deploys.WithLabelValues(ev.Source, outcome).Inc()
		r.deployDuration.Observe(ev.Duration.Seconds())
	case bus.TypeDispatchAbandoned:
		r.abandoned.Inc()
	case bus.TypeDispatchIgnored:
		r.ignored.Inc()
	case bus.TypeTaskFailed:
		var ev bus.TaskFailed
		if env.Decode(&ev) != nil {
			return
		}
		r.taskFailures.WithLabelValues(ev.Task, strconv.FormatBool(ev.Panicked)).Inc()
	}
}

func (r *Recorder) ObserveRequest(method, route string, status int, took time.Duration) {
	labels := prometheus.Labels{
		"method": method,
		"route":  route,
		"status": strconv.Itoa(status),
	}
	r.requestTotal.With(labels).Inc()
	r.requestDuration.With(labels).Observe(took.Seconds())
}
