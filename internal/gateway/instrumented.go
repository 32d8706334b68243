package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"patientboard/internal/board"
	"patientboard/internal/model"
)

// Metrics holds the gateway collectors. One set is shared by every Instrumented wrapper
// registered against the same registry.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "patientboard_gateway_requests_total",
			Help: "Gateway calls by operation and result.",
		}, []string{"op", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "patientboard_gateway_request_duration_seconds",
			Help:    "Gateway call latency by operation.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.duration)
	}
	return m
}

func (m *Metrics) observe(op string, start time.Time, err error) {
	result := "ok"
	switch {
	case errors.Is(err, ErrNotFound):
		result = "not_found"
	case errors.Is(err, ErrInvalid):
		result = "invalid"
	case err != nil:
		result = "error"
	}
	m.requests.WithLabelValues(op, result).Inc()
	m.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// Instrumented records every call of the wrapped Gateway.
type Instrumented struct {
	next    Gateway
	metrics *Metrics
}

var _ Gateway = (*Instrumented)(nil)

func Instrument(next Gateway, m *Metrics) *Instrumented {
	return &Instrumented{next: next, metrics: m}
}

func (g *Instrumented) ListPatients(ctx context.Context) (_ []model.Patient, err error) {
	defer func(start time.Time) { g.metrics.observe("list_patients", start, err) }(time.Now())
	return g.next.ListPatients(ctx)
}

func (g *Instrumented) GetPatient(ctx context.Context, id int64) (_ model.Patient, err error) {
	defer func(start time.Time) { g.metrics.observe("get_patient", start, err) }(time.Now())
	return g.next.GetPatient(ctx, id)
}

func (g *Instrumented) Search(ctx context.Context, c board.Criteria) (_ []model.Patient, err error) {
	defer func(start time.Time) { g.metrics.observe("search", start, err) }(time.Now())
	return g.next.Search(ctx, c)
}

func (g *Instrumented) CreatePatient(ctx context.Context, np model.NewPatient) (_ model.Patient, err error) {
	defer func(start time.Time) { g.metrics.observe("create_patient", start, err) }(time.Now())
	return g.next.CreatePatient(ctx, np)
}

func (g *Instrumented) CreateItem(ctx context.Context, column string, it model.Item) (_ model.Item, err error) {
	defer func(start time.Time) { g.metrics.observe("create_item", start, err) }(time.Now())
	return g.next.CreateItem(ctx, column, it)
}

func (g *Instrumented) UpdateItem(ctx context.Context, column string, it model.Item) (_ model.Item, err error) {
	defer func(start time.Time) { g.metrics.observe("update_item", start, err) }(time.Now())
	return g.next.UpdateItem(ctx, column, it)
}

func (g *Instrumented) DeleteItem(ctx context.Context, column string, id int64) (err error) {
	defer func(start time.Time) { g.metrics.observe("delete_item", start, err) }(time.Now())
	return g.next.DeleteItem(ctx, column, id)
}

func (g *Instrumented) UpdateLocation(ctx context.Context, it model.Item) (_ model.Item, err error) {
	defer func(start time.Time) { g.metrics.observe("update_location", start, err) }(time.Now())
	return g.next.UpdateLocation(ctx, it)
}
