package monitor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/t77yq/trendloop/internal/model"
	"github.com/t77yq/trendloop/internal/service"
)

// NotificationChannel represents a channel for sending alert notifications
type NotificationChannel interface {
	Send(ctx context.Context, alert *model.Alert) error
}

// DefaultRules are the host thresholds checked by the health check
func DefaultRules() []*model.AlertRule {
	return []*model.AlertRule{
		{Name: "High CPU usage", Type: model.AlertTypeCPU, Threshold: 85, Severity: model.AlertSeverityWarning},
		{Name: "High memory usage", Type: model.AlertTypeMemory, Threshold: 85, Severity: model.AlertSeverityWarning},
		{Name: "High disk usage", Type: model.AlertTypeDisk, Threshold: 90, Severity: model.AlertSeverityCritical},
	}
}

// AlertManager evaluates host status against rules and fans alerts out to
// notification channels
type AlertManager struct {
	logger   *zap.Logger
	events   service.Publisher
	now      func() time.Time
	mu       sync.RWMutex
	rules    []*model.AlertRule
	channels map[string]NotificationChannel
}

// NewAlertManager creates a new alert manager without rules
func NewAlertManager(events service.Publisher, logger *zap.Logger) *AlertManager {
	if events == nil {
		events = service.NopEvents{}
	}
	return &AlertManager{
		logger:   logger.Named("alerts"),
		events:   events,
		now:      time.Now,
		channels: make(map[string]NotificationChannel),
	}
}

// AddChannel registers a notification channel under name
func (m *AlertManager) AddChannel(name string, ch NotificationChannel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[name] = ch
}

// GetRule returns a rule by ID
func (m *AlertManager) GetRule(id string) (*model.AlertRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, r := range m.rules {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, fmt.Errorf("rule not found: %s", id)
}

// Rules returns the registered rules in evaluation order
func (m *AlertManager) Rules() []*model.AlertRule {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*model.AlertRule(nil), m.rules...)
}

// AddRule adds a new alert rule
func (m *AlertManager) AddRule(rule *model.AlertRule) error {
	if rule.Type == "" {
		return errors.New("rule type is required")
	}
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	rule.CreatedAt = m.now()
	rule.UpdatedAt = rule.CreatedAt

	m.mu.Lock()
	m.rules = append(m.rules, rule)
	m.mu.Unlock()
	return nil
}

// UpdateRule updates an existing alert rule
func (m *AlertManager) UpdateRule(rule *model.AlertRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, r := range m.rules {
		if r.ID == rule.ID {
			rule.CreatedAt = r.CreatedAt
			rule.UpdatedAt = m.now()
			m.rules[i] = rule
			return nil
		}
	}
	return fmt.Errorf("rule not found: %s", rule.ID)
}

// DeleteRule deletes an alert rule
func (m *AlertManager) DeleteRule(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, r := range m.rules {
		if r.ID == id {
			m.rules = append(m.rules[:i], m.rules[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("rule not found: %s", id)
}

// Evaluate returns an alert for every non-silenced rule whose observed value
// is strictly above its threshold, and appends each message to status.Alerts
func (m *AlertManager) Evaluate(status *model.HostStatus) []*model.Alert {
	var alerts []*model.Alert
	for _, rule := range m.Rules() {
		if rule.Silenced {
			continue
		}

		value, label, ok := observed(status, rule.Type)
		if !ok || value <= rule.Threshold {
			continue
		}

		alert := &model.Alert{
			ID:       uuid.New().String(),
			RuleID:   rule.ID,
			Type:     rule.Type,
			Severity: rule.Severity,
			Message: fmt.Sprintf("High %s usage: %s%% (threshold: %s%%)",
				label, formatPercent(value), formatPercent(rule.Threshold)),
			Data: map[string]interface{}{
				string(rule.Type): value,
				"threshold":       rule.Threshold,
			},
			CreatedAt: m.now().UTC(),
		}
		status.Alerts = append(status.Alerts, alert.Message)
		alerts = append(alerts, alert)
	}
	return alerts
}

// Notify sends every alert to every channel and publishes it as an event.
// Channel failures are logged and joined into the returned error.
func (m *AlertManager) Notify(ctx context.Context, alerts []*model.Alert) error {
	m.mu.RLock()
	channels := make(map[string]NotificationChannel, len(m.channels))
	for k, v := range m.channels {
		channels[k] = v
	}
	m.mu.RUnlock()

	var errs []error
	for _, alert := range alerts {
		m.logger.Warn("Alert triggered",
			zap.String("id", alert.ID),
			zap.String("type", string(alert.Type)),
			zap.String("severity", string(alert.Severity)),
			zap.String("message", alert.Message))

		for name, ch := range channels {
			if err := ch.Send(ctx, alert); err != nil {
				m.logger.Error("Failed to send alert", zap.String("channel", name), zap.Error(err))
				errs = append(errs, fmt.Errorf("channel %s: %w", name, err))
			}
		}

		if err := m.events.Publish(ctx, service.SubjectAlertRaised, alert); err != nil {
			m.logger.Warn("Failed to publish alert event", zap.Error(err))
		}
	}
	return errors.Join(errs...)
}

func observed(status *model.HostStatus, t model.AlertType) (float64, string, bool) {
	switch t {
	case model.AlertTypeCPU:
		return status.CPUPercent, "CPU", true
	case model.AlertTypeMemory:
		return status.MemoryPercent, "memory", true
	case model.AlertTypeDisk:
		return status.DiskPercent, "disk", true
	}
	return 0, "", false
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
