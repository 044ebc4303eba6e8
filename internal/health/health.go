// Package health runs named dependency checks. The trading engine refuses
// to start when a critical check fails; periodic re-checks feed the status
// snapshot.
package health

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/iskra-lab/iskra-trading/internal/logger"
	"github.com/iskra-lab/iskra-trading/pkg/errors"
)

// Checker probes a single dependency.
type Checker interface {
	// Name identifies the dependency in logs and status output.
	Name() string
	// Critical reports whether a failing check must block engine startup.
	Critical() bool
	// Check probes the dependency, returning an error when it is unhealthy.
	Check(ctx context.Context) error
}

// CheckResult is the outcome of one probe.
type CheckResult struct {
	Name     string
	Healthy  bool
	Critical bool
	Latency  time.Duration
	Err      error
}

// Registry holds the configured checkers.
type Registry struct {
	checkers []Checker
	logger   *logger.Logger
}

func NewRegistry(log *logger.Logger, checkers ...Checker) *Registry {
	return &Registry{checkers: checkers, logger: log}
}

// RunAll probes every dependency and returns the individual results.
func (r *Registry) RunAll(ctx context.Context) []CheckResult {
	results := make([]CheckResult, 0, len(r.checkers))

	for _, c := range r.checkers {
		start := time.Now()
		err := c.Check(ctx)
		latency := time.Since(start)

		if err != nil {
			r.logger.Warn("health check failed",
				zap.String("check", c.Name()),
				zap.Bool("critical", c.Critical()),
				zap.Duration("latency", latency),
				zap.Error(err),
			)
		}

		results = append(results, CheckResult{
			Name:     c.Name(),
			Healthy:  err == nil,
			Critical: c.Critical(),
			Latency:  latency,
			Err:      err,
		})
	}

	return results
}

// CheckCritical probes every dependency and returns an error when any
// critical one is unhealthy.
func (r *Registry) CheckCritical(ctx context.Context) error {
	for _, res := range r.RunAll(ctx) {
		if res.Critical && !res.Healthy {
			return errors.Wrapf(errors.ErrCodeDependencyUnhealthy, res.Err,
				"critical dependency %q is unhealthy", res.Name)
		}
	}

	return nil
}

// MarketDataCheck probes the market-data dependency with a lightweight call.
type MarketDataCheck struct {
	name     string
	critical bool
	probe    func(ctx context.Context) error
}

// NewMarketDataCheck wraps a probe func, usually a GetSecurityInfo call
// against the configured ticker.
func NewMarketDataCheck(probe func(ctx context.Context) error) *MarketDataCheck {
	return &MarketDataCheck{
		name:     "market_data",
		critical: true,
		probe:    probe,
	}
}

func (c *MarketDataCheck) Name() string { return c.name }

func (c *MarketDataCheck) Critical() bool { return c.critical }

func (c *MarketDataCheck) Check(ctx context.Context) error {
	return c.probe(ctx)
}
