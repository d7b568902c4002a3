package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/interview-checkup/internal/config"
	"github.com/sells-group/interview-checkup/internal/resilience"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertStoreUnavailable AlertType = "store_unavailable"
	AlertBreakerOpen      AlertType = "breaker_open"
	AlertCacheFailures    AlertType = "cache_failures"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a StatusSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client

	// Cache failure totals at the previous evaluation.
	lastCompanyFailures int64
	lastCatalogFailures int64
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
// Cache failures are measured since the previous call.
func (a *Alerter) Evaluate(snap *StatusSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	if !snap.StoreOnline {
		alerts = append(alerts, Alert{
			Type:     AlertStoreUnavailable,
			Severity: "high",
			Message:  fmt.Sprintf("Document store unavailable: %s", snap.StoreError),
			Details: map[string]any{
				"error": snap.StoreError,
			},
			Timestamp: now,
		})
	}

	if snap.Breaker == resilience.CircuitOpen.String() {
		alerts = append(alerts, Alert{
			Type:     AlertBreakerOpen,
			Severity: "high",
			Message:  fmt.Sprintf("Store circuit breaker open after %d consecutive failures", snap.BreakerFailures),
			Details: map[string]any{
				"failures": snap.BreakerFailures,
			},
			Timestamp: now,
		})
	}

	companyDelta := snap.CompanyCache.Failures - a.lastCompanyFailures
	catalogDelta := snap.CatalogCache.Failures - a.lastCatalogFailures
	a.lastCompanyFailures = snap.CompanyCache.Failures
	a.lastCatalogFailures = snap.CatalogCache.Failures

	if threshold := int64(a.cfg.CacheFailureThreshold); threshold > 0 && companyDelta+catalogDelta >= threshold {
		alerts = append(alerts, Alert{
			Type:     AlertCacheFailures,
			Severity: "medium",
			Message: fmt.Sprintf(
				"%d cache refresh failure(s) since last check (companies %d, catalog %d)",
				companyDelta+catalogDelta, companyDelta, catalogDelta,
			),
			Details: map[string]any{
				"company_failures": companyDelta,
				"catalog_failures": catalogDelta,
				"threshold":        threshold,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

// sendWebhook posts a single alert to the webhook URL.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
