package monitoring

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/interview-checkup/internal/config"
)

// Checker collects status on an interval and forwards alerts. An alert type
// that fired on the previous check is not resent until it clears.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	interval  time.Duration

	mu     sync.Mutex
	active map[AlertType]bool
	last   *StatusSnapshot
}

// NewChecker creates a background checker. A non-positive interval means
// five minutes.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	interval := time.Duration(cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Checker{
		collector: collector,
		alerter:   alerter,
		interval:  interval,
		active:    make(map[AlertType]bool),
	}
}

// Run checks once immediately and then on every tick until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting health checker", zap.Duration("interval", c.interval))

	c.Check(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("health checker stopped")
			return
		case <-ticker.C:
			c.Check(ctx)
		}
	}
}

// Check collects one snapshot and sends the alerts that were not already
// active. It returns the alerts it raised.
func (c *Checker) Check(ctx context.Context) []Alert {
	snap := c.collector.Collect(ctx)
	alerts := c.alerter.Evaluate(snap)

	c.mu.Lock()
	c.last = snap
	current := make(map[AlertType]bool, len(alerts))
	var raised []Alert
	for _, a := range alerts {
		current[a.Type] = true
		if !c.active[a.Type] {
			raised = append(raised, a)
		}
	}
	for t := range c.active {
		if !current[t] {
			zap.L().Info("monitoring: alert cleared", zap.String("type", string(t)))
		}
	}
	c.active = current
	c.mu.Unlock()

	if len(raised) == 0 {
		return nil
	}
	sent := c.alerter.SendAlerts(ctx, raised)
	zap.L().Info("monitoring: alerts raised",
		zap.Int("raised", len(raised)),
		zap.Int("active", len(current)),
		zap.Int("sent", sent),
	)
	return raised
}

// Last returns the most recent snapshot, or nil before the first check.
func (c *Checker) Last() *StatusSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}
