package circulation

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	dErrors "libraflow/pkg/domainerrors"
)

// Metrics tracks circulation outcomes. Engine without metrics records nothing.
type Metrics struct {
	Operations        *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	EventsEmitted     *prometheus.CounterVec
	ScanRows          *prometheus.CounterVec
	Compensations     prometheus.Counter
}

// NewMetrics registers circulation metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "libraflow_circulation_operations_total",
			Help: "Circulation operations by trigger and outcome code",
		}, []string{"trigger", "outcome"}),
		OperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "libraflow_circulation_operation_duration_seconds",
			Help:    "Duration of circulation operations including lock wait",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"trigger"}),
		EventsEmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "libraflow_circulation_events_emitted_total",
			Help: "Notification events raised by committed transitions",
		}, []string{"type"}),
		ScanRows: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "libraflow_circulation_scan_rows_total",
			Help: "Rows moved by periodic scans",
		}, []string{"job"}),
		Compensations: factory.NewCounter(prometheus.CounterOpts{
			Name: "libraflow_circulation_rollbacks_total",
			Help: "Transitions rolled back after a partial write",
		}),
	}
}

func (m *Metrics) observe(trigger string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = string(dErrors.CodeOf(err))
	}
	m.Operations.WithLabelValues(trigger, outcome).Inc()
	m.OperationDuration.WithLabelValues(trigger).Observe(time.Since(start).Seconds())
}

func (m *Metrics) emitted(typ string) {
	if m == nil {
		return
	}
	m.EventsEmitted.WithLabelValues(typ).Inc()
}

func (m *Metrics) scanned(job string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.ScanRows.WithLabelValues(job).Add(float64(n))
}

func (m *Metrics) rolledBack() {
	if m == nil {
		return
	}
	m.Compensations.Inc()
}
