package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/straye-as/target-analytics/internal/analytics"
	"github.com/straye-as/target-analytics/internal/domain"
	"go.uber.org/zap"
)

// PacingMonitorJobName is the name of the pacing monitor job
const PacingMonitorJobName = "pacing_monitor"

const pacingLockKey = "target-analytics:lock:pacing-monitor"

// AchievementReporter builds achievement reports.
// Implemented by service.TargetAchievementService.
type AchievementReporter interface {
	GetAchievement(ctx context.Context, req *domain.AchievementRequest) (*domain.AchievementReport, error)
}

// Locker hands out a cluster-wide lock. ok is false when another replica holds it.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

// RedisLocker implements Locker on redislock
type RedisLocker struct {
	client *redislock.Client
}

// NewRedisLocker returns nil when client is nil so the job runs unguarded
func NewRedisLocker(client *redis.Client) *RedisLocker {
	if client == nil {
		return nil
	}
	return &RedisLocker{client: redislock.New(client)}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	lock, err := l.client.Obtain(ctx, key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to obtain lock %s: %w", key, err)
	}
	return lock.Release, true, nil
}

// PacingAlert is a current-month target running behind its required pace
type PacingAlert struct {
	ScopeType      domain.ScopeType
	ScopeName      string
	ProductType    string
	TargetValue    float64
	ActualValue    float64
	PacePercentage float64
	RemainingGap   float64
	NeededDaily    float64
}

// PacingMonitorJob checks the current month's zone targets every run and logs
// the ones that are off track
type PacingMonitorJob struct {
	reporter AchievementReporter
	locker   Locker
	logger   *zap.Logger
	timeout  time.Duration
	loc      *time.Location
	now      func() time.Time
}

// NewPacingMonitorJob creates the job. locker may be nil.
func NewPacingMonitorJob(reporter AchievementReporter, locker Locker, logger *zap.Logger, timeout time.Duration, loc *time.Location) *PacingMonitorJob {
	if loc == nil {
		loc = time.UTC
	}
	return &PacingMonitorJob{
		reporter: reporter,
		locker:   locker,
		logger:   logger,
		timeout:  timeout,
		loc:      loc,
		now:      time.Now,
	}
}

// Run executes the job. This is called by the scheduler according to the
// cron expression.
func (j *PacingMonitorJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	if j.locker != nil {
		release, ok, err := j.locker.TryLock(ctx, pacingLockKey, j.timeout)
		if err != nil {
			j.logger.Error("pacing monitor lock failed", zap.Error(err))
			return
		}
		if !ok {
			j.logger.Info("pacing monitor already running on another instance")
			return
		}
		defer func() {
			if err := release(context.Background()); err != nil {
				j.logger.Warn("failed to release pacing monitor lock", zap.Error(err))
			}
		}()
	}

	start := time.Now()
	alerts, err := j.Check(ctx)
	if err != nil {
		j.logger.Error("pacing monitor failed",
			zap.Error(err),
			zap.Duration("duration", time.Since(start)))
		return
	}

	for _, a := range alerts {
		j.logger.Warn("target off pace",
			zap.String("scope_type", string(a.ScopeType)),
			zap.String("scope", a.ScopeName),
			zap.String("product_type", a.ProductType),
			zap.Float64("target_value", a.TargetValue),
			zap.Float64("actual_value", a.ActualValue),
			zap.Float64("pace_percentage", a.PacePercentage),
			zap.Float64("remaining_gap", a.RemainingGap),
			zap.Float64("needed_daily_rate", a.NeededDaily))
	}
	j.logger.Info("pacing monitor completed",
		zap.Int("off_pace", len(alerts)),
		zap.Duration("duration", time.Since(start)))
}

// Check returns the off-track zone targets of the current month. A month
// without targets yields no alerts.
func (j *PacingMonitorJob) Check(ctx context.Context) ([]PacingAlert, error) {
	period := domain.MonthKey(j.now().In(j.loc))
	report, err := j.reporter.GetAchievement(ctx, &domain.AchievementRequest{
		Period:     period,
		PeriodType: domain.PeriodTypeMonthly,
	})
	if analytics.IsKind(err, analytics.KindNoData) {
		j.logger.Info("no targets for current month", zap.String("period", period))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build achievement report for %s: %w", period, err)
	}

	var alerts []PacingAlert
	for _, rt := range report.ZoneTargets {
		if rt.Pacing == nil || rt.Pacing.OnTrack || rt.TargetValue <= 0 {
			continue
		}
		pt := "ALL"
		if rt.ProductType != nil {
			pt = string(*rt.ProductType)
		}
		alerts = append(alerts, PacingAlert{
			ScopeType:      rt.ScopeType,
			ScopeName:      rt.ScopeName,
			ProductType:    pt,
			TargetValue:    rt.TargetValue,
			ActualValue:    rt.ActualValue,
			PacePercentage: rt.Pacing.PacePercentage,
			RemainingGap:   rt.Pacing.RemainingGap,
			NeededDaily:    rt.Pacing.NeededDailyRateForRemainder,
		})
	}
	return alerts, nil
}
