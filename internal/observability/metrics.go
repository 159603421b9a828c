package observability

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/wifientist/rtools2-sub002/internal/platform/logger"
)

// Metrics holds the process-wide Brain metrics: job lifecycle counts, phase
// durations, activation-slot occupancy, activity-tracker poll latency, and
// the usual process/backing-store health gauges.
type Metrics struct {
	jobsStarted     *CounterVec // labels: workflow
	jobsTerminal    *CounterVec // labels: workflow, status (COMPLETED|FAILED|CANCELLED)
	jobDuration     *HistogramVec
	phaseDuration   *HistogramVec // labels: workflow, phase_id, per_unit
	phaseOutcome    *CounterVec   // labels: workflow, phase_id, outcome
	unitsInFlight   *GaugeVec     // labels: workflow, phase_id
	activationSlots *GaugeVec     // labels: workflow — in-use activation slots
	activityPoll    *HistogramVec // latency of one bulk poll round trip
	activityTimeout *Counter
	retryAttempts   *CounterVec // labels: phase_id, category

	redisUp   *Gauge
	redisPing *Gauge
	pgStats   *GaugeVec

	mu sync.Mutex
}

func NewMetrics() *Metrics {
	return &Metrics{
		jobsStarted:     NewCounterVec("brain_jobs_started_total", "jobs admitted", []string{"workflow"}),
		jobsTerminal:    NewCounterVec("brain_jobs_terminal_total", "jobs reaching a terminal status", []string{"workflow", "status"}),
		jobDuration:     NewHistogramVec("brain_job_duration_seconds", "job wall time from start to terminal", nil, []float64{1, 5, 15, 30, 60, 300, 900, 3600}),
		phaseDuration:   NewHistogramVec("brain_phase_duration_seconds", "phase execution latency", []string{"workflow", "phase_id", "per_unit"}, nil),
		phaseOutcome:    NewCounterVec("brain_phase_outcome_total", "phase terminal outcomes", []string{"workflow", "phase_id", "outcome"}),
		unitsInFlight:   NewGaugeVec("brain_units_in_flight", "units currently executing a phase", []string{"workflow", "phase_id"}),
		activationSlots: NewGaugeVec("brain_activation_slots_in_use", "activation-slot semaphore tokens held", []string{"workflow"}),
		activityPoll:    NewHistogramVec("brain_activity_poll_seconds", "activity tracker bulk poll latency", nil, nil),
		activityTimeout: NewCounter("brain_activity_timeouts_total", "activities that resolved TIMEOUT"),
		retryAttempts:   NewCounterVec("brain_phase_retry_attempts_total", "phase-internal retry attempts", []string{"phase_id", "category"}),
		redisUp:         NewGauge("brain_redis_up", "1 if the state store Redis connection is healthy"),
		redisPing:       NewGauge("brain_redis_ping_seconds", "last Redis PING round trip"),
		pgStats:         NewGaugeVec("brain_postgres_pool_stat", "metastore connection pool stats", []string{"stat"}),
	}
}

func (m *Metrics) JobStarted(workflow string) {
	if m == nil {
		return
	}
	m.jobsStarted.Inc(workflow)
}

func (m *Metrics) JobTerminal(workflow, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.jobsTerminal.Inc(workflow, status)
	m.jobDuration.Observe(dur.Seconds())
}

func (m *Metrics) PhaseObserved(workflow, phaseID string, perUnit bool, outcome string, dur time.Duration) {
	if m == nil {
		return
	}
	m.phaseDuration.Observe(dur.Seconds(), workflow, phaseID, strconv.FormatBool(perUnit))
	m.phaseOutcome.Inc(workflow, phaseID, outcome)
}

func (m *Metrics) SetUnitsInFlight(workflow, phaseID string, n int) {
	if m == nil {
		return
	}
	m.unitsInFlight.Set(float64(n), workflow, phaseID)
}

func (m *Metrics) SetActivationSlotsInUse(workflow string, n int) {
	if m == nil {
		return
	}
	m.activationSlots.Set(float64(n), workflow)
}

func (m *Metrics) ActivityPollObserved(dur time.Duration) {
	if m == nil {
		return
	}
	m.activityPoll.Observe(dur.Seconds())
}

func (m *Metrics) ActivityTimedOut() {
	if m == nil {
		return
	}
	m.activityTimeout.Inc()
}

func (m *Metrics) RetryAttempted(phaseID string, category string) {
	if m == nil {
		return
	}
	m.retryAttempts.Inc(phaseID, category)
}

// WritePrometheus renders every registered metric in Prometheus text
// exposition format, for a /metrics handler.
func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	writers := []interface{ WritePrometheus(io.Writer) error }{
		m.jobsStarted, m.jobsTerminal, m.jobDuration, m.phaseDuration, m.phaseOutcome,
		m.unitsInFlight, m.activationSlots, m.activityPoll, m.activityTimeout, m.retryAttempts,
		m.redisUp, m.redisPing, m.pgStats,
	}
	for _, wr := range writers {
		if err := wr.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func scrapeInterval() time.Duration {
	return 15 * time.Second
}

// StartPostgresCollector periodically samples the metastore's connection
// pool stats. Grounded on the teacher's identical collector.
func (m *Metrics) StartPostgresCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sqlDB, err := db.DB()
				if err != nil {
					if log != nil {
						log.Warn("metrics: postgres stats unavailable", "error", err)
					}
					continue
				}
				stats := sqlDB.Stats()
				m.pgStats.Set(float64(stats.OpenConnections), "open_connections")
				m.pgStats.Set(float64(stats.InUse), "in_use")
				m.pgStats.Set(float64(stats.Idle), "idle")
				m.pgStats.Set(float64(stats.WaitCount), "wait_count")
				m.pgStats.Set(stats.WaitDuration.Seconds(), "wait_duration_seconds")
				m.pgStats.Set(float64(stats.MaxOpenConnections), "max_open_connections")
			}
		}
	}()
}

// StartRedisCollector periodically pings the state store's Redis connection.
// Grounded on the teacher's identical collector.
func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	interval := scrapeInterval()
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				_ = rdb.Close()
				return
			case <-ticker.C:
				start := time.Now()
				if err := rdb.Ping(ctx).Err(); err != nil {
					m.redisUp.Set(0)
					if log != nil {
						log.Warn("metrics: redis ping failed", "error", err)
					}
					continue
				}
				m.redisUp.Set(1)
				m.redisPing.Set(time.Since(start).Seconds())
			}
		}
	}()
}

// ---- lightweight metric primitives (Prometheus exposition) ----

type CounterVec struct {
	name       string
	help       string
	labelNames []string
	mu         sync.RWMutex
	values     map[string]float64
}

func NewCounterVec(name, help string, labels []string) *CounterVec {
	return &CounterVec{name: name, help: help, labelNames: labels, values: map[string]float64{}}
}

func (c *CounterVec) Inc(values ...string) {
	if c == nil {
		return
	}
	lbl := labelString(c.labelNames, values)
	c.mu.Lock()
	c.values[lbl]++
	c.mu.Unlock()
}

func (c *CounterVec) Add(v float64, values ...string) {
	if c == nil {
		return
	}
	lbl := labelString(c.labelNames, values)
	c.mu.Lock()
	c.values[lbl] += v
	c.mu.Unlock()
}

func (c *CounterVec) WritePrometheus(w io.Writer) error {
	if c == nil {
		return nil
	}
	if _, err := fmt.Fprintf(w, "# HELP %s %s\n", c.name, c.help); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "# TYPE %s counter\n", c.name); err != nil {
		return err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for k, v := range c.values {
		if _, err := fmt.Fprintf(w, "%s%s %f\n", c.name, k, v); err != nil {
			return err
		}
	}
	return nil
}

type Counter struct {
	name string
	help string
	mu   sync.RWMutex
	val  float64
}

func NewCounter(name, help string) *Counter {
	return &Counter{name: name, help: help}
}

func (c *Counter) Inc() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.val++
	c.mu.Unlock()
}

func (c *Counter) Add(v float64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.val += v
	c.mu.Unlock()
}

func (c *Counter) Value() float64 {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.val
}

func (c *Counter) WritePrometheus(w io.Writer) error {
	if c == nil {
		return nil
	}
	if _, err := fmt.Fprintf(w, "# HELP %s %s\n", c.name, c.help); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "# TYPE %s counter\n", c.name); err != nil {
		return err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, err := fmt.Fprintf(w, "%s %f\n", c.name, c.val)
	return err
}

type Gauge struct {
	name string
	help string
	mu   sync.RWMutex
	val  float64
}

func NewGauge(name, help string) *Gauge {
	return &Gauge{name: name, help: help}
}

func (g *Gauge) Set(v float64) {
	if g == nil {
		return
	}
	g.mu.Lock()
	g.val = v
	g.mu.Unlock()
}

func (g *Gauge) Inc() {
	if g == nil {
		return
	}
	g.mu.Lock()
	g.val++
	g.mu.Unlock()
}

func (g *Gauge) Dec() {
	if g == nil {
		return
	}
	g.mu.Lock()
	g.val--
	g.mu.Unlock()
}

func (g *Gauge) WritePrometheus(w io.Writer) error {
	if g == nil {
		return nil
	}
	if _, err := fmt.Fprintf(w, "# HELP %s %s\n", g.name, g.help); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "# TYPE %s gauge\n", g.name); err != nil {
		return err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, err := fmt.Fprintf(w, "%s %f\n", g.name, g.val)
	return err
}

type GaugeVec struct {
	name       string
	help       string
	labelNames []string
	mu         sync.RWMutex
	values     map[string]float64
}

func NewGaugeVec(name, help string, labels []string) *GaugeVec {
	return &GaugeVec{name: name, help: help, labelNames: labels, values: map[string]float64{}}
}

func (g *GaugeVec) Set(v float64, values ...string) {
	if g == nil {
		return
	}
	lbl := labelString(g.labelNames, values)
	g.mu.Lock()
	g.values[lbl] = v
	g.mu.Unlock()
}

func (g *GaugeVec) WritePrometheus(w io.Writer) error {
	if g == nil {
		return nil
	}
	if _, err := fmt.Fprintf(w, "# HELP %s %s\n", g.name, g.help); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "# TYPE %s gauge\n", g.name); err != nil {
		return err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	for k, v := range g.values {
		if _, err := fmt.Fprintf(w, "%s%s %f\n", g.name, k, v); err != nil {
			return err
		}
	}
	return nil
}

type HistogramVec struct {
	name       string
	help       string
	labelNames []string
	buckets    []float64
	mu         sync.RWMutex
	values     map[string]*histogram
}

type histogram struct {
	buckets []float64
	counts  []uint64
	sum     float64
	total   uint64
}

func NewHistogramVec(name, help string, labels []string, buckets []float64) *HistogramVec {
	if len(buckets) == 0 {
		buckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5}
	}
	return &HistogramVec{name: name, help: help, labelNames: labels, buckets: buckets, values: map[string]*histogram{}}
}

func (h *HistogramVec) Observe(v float64, values ...string) {
	if h == nil {
		return
	}
	lbl := labelString(h.labelNames, values)
	h.mu.Lock()
	defer h.mu.Unlock()
	hist, ok := h.values[lbl]
	if !ok {
		hist = &histogram{
			buckets: h.buckets,
			counts:  make([]uint64, len(h.buckets)+1),
		}
		h.values[lbl] = hist
	}
	hist.sum += v
	hist.total++
	for i, b := range hist.buckets {
		if v <= b {
			hist.counts[i]++
		}
	}
	hist.counts[len(hist.counts)-1]++
}

func (h *HistogramVec) WritePrometheus(w io.Writer) error {
	if h == nil {
		return nil
	}
	if _, err := fmt.Fprintf(w, "# HELP %s %s\n", h.name, h.help); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "# TYPE %s histogram\n", h.name); err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for k, v := range h.values {
		for i, b := range v.buckets {
			if _, err := fmt.Fprintf(w, "%s_bucket%s %d\n", h.name, withLe(k, fmt.Sprintf("%g", b)), v.counts[i]); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "%s_bucket%s %d\n", h.name, withLe(k, "+Inf"), v.counts[len(v.counts)-1]); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s_sum%s %f\n", h.name, k, v.sum); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s_count%s %d\n", h.name, k, v.total); err != nil {
			return err
		}
	}
	return nil
}

func labelString(names []string, values []string) string {
	if len(names) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("{")
	for i, name := range names {
		if i > 0 {
			b.WriteString(",")
		}
		val := "unknown"
		if i < len(values) {
			val = values[i]
		}
		b.WriteString(name)
		b.WriteString("=\"")
		b.WriteString(escapeLabel(val))
		b.WriteString("\"")
	}
	b.WriteString("}")
	return b.String()
}

func escapeLabel(v string) string {
	if v == "" {
		return ""
	}
	v = strings.ReplaceAll(v, "\\", "\\\\")
	v = strings.ReplaceAll(v, "\"", "\\\"")
	v = strings.ReplaceAll(v, "\n", "\\n")
	return v
}

func withLe(labels string, le string) string {
	le = escapeLabel(le)
	if labels == "" || labels == "{}" {
		return "{le=\"" + le + "\"}"
	}
	if strings.HasSuffix(labels, "}") {
		return strings.TrimSuffix(labels, "}") + ",le=\"" + le + "\"}"
	}
	return "{le=\"" + le + "\"}"
}
