package observability

import (
	"fmt"
	"sync"
	"time"

	"github.com/boddenberg/iptu-bfa-go/internal/domain"
	"github.com/boddenberg/iptu-bfa-go/internal/port"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Alarm thresholds.
const (
	AlarmErrorRate = 0.02
	AlarmP95       = 2 * time.Second
	AlarmCooldown  = 5 * time.Minute
)

// Alarm is a route that breached a threshold.
type Alarm struct {
	Route   string
	Reasons []string
}

// AlarmJob periodically inspects the route snapshot and logs a warning for
// routes whose error rate or p95 latency is too high. Each route alarms at
// most once per cooldown.
type AlarmJob struct {
	metrics *Metrics
	logger  *zap.Logger
	clock   port.Clock

	mu        sync.Mutex
	lastAlarm map[string]time.Time
}

// NewAlarmJob creates an alarm job over metrics.
func NewAlarmJob(metrics *Metrics, clock port.Clock, logger *zap.Logger) *AlarmJob {
	return &AlarmJob{
		metrics:   metrics,
		logger:    logger,
		clock:     clock,
		lastAlarm: make(map[string]time.Time),
	}
}

// Check evaluates every route once and returns the alarms it raised.
func (j *AlarmJob) Check() []Alarm {
	now := j.clock.Now()

	j.mu.Lock()
	defer j.mu.Unlock()

	var alarms []Alarm
	for _, rm := range j.metrics.RouteSnapshot() {
		reasons := breaches(rm)
		if len(reasons) == 0 {
			continue
		}
		if last, ok := j.lastAlarm[rm.Route]; ok && now.Sub(last) <= AlarmCooldown {
			continue
		}
		j.lastAlarm[rm.Route] = now
		alarms = append(alarms, Alarm{Route: rm.Route, Reasons: reasons})
		j.logger.Warn("route alarm",
			zap.String("route", rm.Route),
			zap.Strings("reasons", reasons),
			zap.Int64("total", rm.Total),
		)
	}
	return alarms
}

func breaches(rm domain.RouteMetrics) []string {
	var reasons []string
	if rm.ErrorRate >= AlarmErrorRate {
		reasons = append(reasons, fmt.Sprintf("erro %.2f%%", rm.ErrorRate*100))
	}
	if rm.P95Ms > float64(AlarmP95.Milliseconds()) {
		reasons = append(reasons, fmt.Sprintf("p95 %.0fms", rm.P95Ms))
	}
	return reasons
}

// Start schedules Check on a cron spec (e.g. "@every 1m") and returns the
// running scheduler; call Stop on it at shutdown.
func (j *AlarmJob) Start(spec string) (*cron.Cron, error) {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() { j.Check() }); err != nil {
		return nil, fmt.Errorf("schedule alarm job: %w", err)
	}
	c.Start()
	return c, nil
}
