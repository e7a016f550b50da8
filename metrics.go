package msgport

import (
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// metricsSeq disambiguates Metrics instances registered against the
// same prometheus.Registerer (common in tests creating many
// Environments).
var metricsSeq atomic.Int64

// Metrics tracks operational counters for an Environment. The counters
// themselves are lock-free (atomic.Int64) on the hot path; Prometheus
// collectors read them on scrape rather than being incremented
// directly, so Post/drain never pay a registry lookup.
type Metrics struct {
	MessagesSent         atomic.Int64
	MessagesReceived     atomic.Int64
	MessagesDeadLettered atomic.Int64

	PortsOpened      atomic.Int64
	PortsClosed      atomic.Int64
	Disentanglements atomic.Int64

	CallsTotal    atomic.Int64
	CallsTimedOut atomic.Int64

	SchedulesFired      atomic.Int64
	SchedulesCancelled  atomic.Int64
	CloneFailures       atomic.Int64

	portCountFn func() int
}

// newMetrics creates a Metrics instance and registers its collectors
// against reg. A nil reg skips registration, useful in tests that only
// want the atomic counters.
func newMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{}
	if reg == nil {
		return m
	}

	seq := strconv.FormatInt(metricsSeq.Add(1), 10)
	constLabels := prometheus.Labels{"instance": seq}

	// client_golang has no public function-backed Counter, only GaugeFunc;
	// these values are monotonic by construction (plain atomic adders) so
	// a gauge reporting them is equivalent to a counter for scraping.
	collectors := []prometheus.Collector{
		gaugeFunc("msgport_messages_sent_total", "Messages posted successfully.", constLabels, m.MessagesSent.Load),
		gaugeFunc("msgport_messages_received_total", "Messages delivered to a handler.", constLabels, m.MessagesReceived.Load),
		gaugeFunc("msgport_messages_dead_lettered_total", "Messages posted to a port whose sibling was already closed.", constLabels, m.MessagesDeadLettered.Load),
		gaugeFunc("msgport_ports_opened_total", "Ports constructed.", constLabels, m.PortsOpened.Load),
		gaugeFunc("msgport_ports_closed_total", "Ports closed.", constLabels, m.PortsClosed.Load),
		gaugeFunc("msgport_disentanglements_total", "Sibling links severed.", constLabels, m.Disentanglements.Load),
		gaugeFunc("msgport_calls_total", "Request/reply calls issued.", constLabels, m.CallsTotal.Load),
		gaugeFunc("msgport_calls_timed_out_total", "Request/reply calls that timed out waiting for a reply.", constLabels, m.CallsTimedOut.Load),
		gaugeFunc("msgport_schedules_fired_total", "Deferred or cron posts delivered.", constLabels, m.SchedulesFired.Load),
		gaugeFunc("msgport_schedules_cancelled_total", "Deferred or cron posts cancelled before firing.", constLabels, m.SchedulesCancelled.Load),
		gaugeFunc("msgport_clone_failures_total", "Codec Serialize/Deserialize errors.", constLabels, m.CloneFailures.Load),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "msgport_ports_active",
			Help:        "Currently registered ports.",
			ConstLabels: constLabels,
		}, func() float64 {
			if m.portCountFn != nil {
				return float64(m.portCountFn())
			}
			return 0
		}),
	}

	for _, c := range collectors {
		reg.MustRegister(c)
	}

	return m
}

func gaugeFunc(name, help string, labels prometheus.Labels, get func() int64) prometheus.Collector {
	return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name:        name,
		Help:        help,
		ConstLabels: labels,
	}, func() float64 { return float64(get()) })
}

// Snapshot returns all metric values as a map, suitable for JSON
// serialization from the admin server.
func (m *Metrics) Snapshot() map[string]int64 {
	snap := map[string]int64{
		"messages_sent":          m.MessagesSent.Load(),
		"messages_received":      m.MessagesReceived.Load(),
		"messages_dead_lettered": m.MessagesDeadLettered.Load(),
		"ports_opened":           m.PortsOpened.Load(),
		"ports_closed":           m.PortsClosed.Load(),
		"disentanglements":       m.Disentanglements.Load(),
		"calls_total":            m.CallsTotal.Load(),
		"calls_timed_out":        m.CallsTimedOut.Load(),
		"schedules_fired":        m.SchedulesFired.Load(),
		"schedules_cancelled":    m.SchedulesCancelled.Load(),
		"clone_failures":         m.CloneFailures.Load(),
	}
	if m.portCountFn != nil {
		snap["ports_active"] = int64(m.portCountFn())
	}
	return snap
}
