// Package health aggregates component checks behind the admin HTTP
// endpoints used by probes.
package health

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Status of one component or of the whole service.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult is the outcome of one component check.
type CheckResult struct {
	Component string                 `json:"component"`
	Status    Status                 `json:"status"`
	Message   string                 `json:"message,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Checker is one registered component check. Critical checks gate
// readiness; non-critical ones only degrade the report.
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
	Critical() bool
}

// Report is the full health document served on /health.
type Report struct {
	Status     Status                 `json:"status"`
	Ready      bool                   `json:"ready"`
	Components map[string]CheckResult `json:"components"`
	Timestamp  time.Time              `json:"timestamp"`
}

// Manager runs the registered checks on demand.
type Manager struct {
	mu       sync.RWMutex
	checkers map[string]Checker
	logger   *zap.Logger
}

// NewManager creates an empty health manager.
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		checkers: make(map[string]Checker),
		logger:   logger,
	}
}

// Register adds a checker, replacing any with the same name.
func (m *Manager) Register(c Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers[c.Name()] = c
	m.logger.Debug("Health checker registered", zap.String("component", c.Name()))
}

// Report runs every check and folds the results into one status. Any
// unhealthy critical component makes the service unready.
func (m *Manager) Report(ctx context.Context) Report {
	m.mu.RLock()
	checkers := make([]Checker, 0, len(m.checkers))
	for _, c := range m.checkers {
		checkers = append(checkers, c)
	}
	m.mu.RUnlock()

	report := Report{
		Status:     StatusHealthy,
		Ready:      true,
		Components: make(map[string]CheckResult, len(checkers)),
		Timestamp:  time.Now(),
	}
	for _, c := range checkers {
		res := c.Check(ctx)
		res.Component = c.Name()
		if res.Timestamp.IsZero() {
			res.Timestamp = time.Now()
		}
		report.Components[c.Name()] = res

		switch res.Status {
		case StatusUnhealthy:
			if c.Critical() {
				report.Status = StatusUnhealthy
				report.Ready = false
			} else if report.Status == StatusHealthy {
				report.Status = StatusDegraded
			}
		case StatusDegraded:
			if report.Status == StatusHealthy {
				report.Status = StatusDegraded
			}
		}
	}
	return report
}

// IsReady reports whether every critical component is healthy.
func (m *Manager) IsReady(ctx context.Context) bool {
	return m.Report(ctx).Ready
}
