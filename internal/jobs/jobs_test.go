package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/straye-as/target-analytics/internal/analytics"
	"github.com/straye-as/target-analytics/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeReporter struct {
	report *domain.AchievementReport
	err    error
	reqs   []*domain.AchievementRequest
}

func (f *fakeReporter) GetAchievement(_ context.Context, req *domain.AchievementRequest) (*domain.AchievementReport, error) {
	f.reqs = append(f.reqs, req)
	return f.report, f.err
}

type fakeLocker struct {
	held     bool
	err      error
	released int
}

func (l *fakeLocker) TryLock(context.Context, string, time.Duration) (func(context.Context) error, bool, error) {
	if l.err != nil {
		return nil, false, l.err
	}
	if l.held {
		return nil, false, nil
	}
	return func(context.Context) error {
		l.released++
		return nil
	}, true, nil
}

func zoneRow(name string, target, actual float64, pacing *domain.PacingResult) domain.ReconciledTarget {
	rt := domain.ReconciledTarget{ScopeName: name, ActualValue: actual, Pacing: pacing}
	rt.ScopeType = domain.ScopeTypeZone
	rt.TargetValue = target
	return rt
}

func newTestJob(reporter AchievementReporter, locker Locker, logger *zap.Logger) *PacingMonitorJob {
	job := NewPacingMonitorJob(reporter, locker, logger, time.Minute, time.UTC)
	job.now = func() time.Time { return time.Date(2026, time.March, 15, 7, 0, 0, 0, time.UTC) }
	return job
}

func TestPacingMonitor_Check(t *testing.T) {
	reporter := &fakeReporter{report: &domain.AchievementReport{
		ZoneTargets: []domain.ReconciledTarget{
			zoneRow("North", 1000, 600, &domain.PacingResult{OnTrack: true, PacePercentage: 124}),
			zoneRow("South", 1000, 100, &domain.PacingResult{OnTrack: false, PacePercentage: 20.6, RemainingGap: 900}),
			zoneRow("West", 0, 0, &domain.PacingResult{}),
		},
	}}

	alerts, err := newTestJob(reporter, nil, zap.NewNop()).Check(context.Background())
	require.NoError(t, err)

	require.Len(t, reporter.reqs, 1)
	assert.Equal(t, "2026-03", reporter.reqs[0].Period)
	assert.Equal(t, domain.PeriodTypeMonthly, reporter.reqs[0].PeriodType)

	require.Len(t, alerts, 1)
	assert.Equal(t, "South", alerts[0].ScopeName)
	assert.Equal(t, "ALL", alerts[0].ProductType)
	assert.Equal(t, 900.0, alerts[0].RemainingGap)
}

func TestPacingMonitor_NoTargets(t *testing.T) {
	reporter := &fakeReporter{err: analytics.NoData("no targets")}
	alerts, err := newTestJob(reporter, nil, zap.NewNop()).Check(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, alerts)

	reporter.err = errors.New("db down")
	_, err = newTestJob(reporter, nil, zap.NewNop()).Check(context.Background())
	assert.Error(t, err)
}

func TestPacingMonitor_RunHonoursLock(t *testing.T) {
	report := &domain.AchievementReport{ZoneTargets: []domain.ReconciledTarget{
		zoneRow("South", 1000, 100, &domain.PacingResult{OnTrack: false}),
	}}

	t.Run("lock held elsewhere skips the run", func(t *testing.T) {
		reporter := &fakeReporter{report: report}
		newTestJob(reporter, &fakeLocker{held: true}, zap.NewNop()).Run()
		assert.Empty(t, reporter.reqs)
	})

	t.Run("lock error skips the run", func(t *testing.T) {
		reporter := &fakeReporter{report: report}
		newTestJob(reporter, &fakeLocker{err: errors.New("redis down")}, zap.NewNop()).Run()
		assert.Empty(t, reporter.reqs)
	})

	t.Run("obtained lock is released", func(t *testing.T) {
		core, logs := observer.New(zapcore.InfoLevel)
		reporter := &fakeReporter{report: report}
		locker := &fakeLocker{}

		newTestJob(reporter, locker, zap.New(core)).Run()

		assert.Len(t, reporter.reqs, 1)
		assert.Equal(t, 1, locker.released)
		assert.Equal(t, 1, logs.FilterMessage("target off pace").Len())
	})
}

func TestNewRedisLocker_NilClient(t *testing.T) {
	assert.Nil(t, NewRedisLocker(nil))
}

func TestScheduler(t *testing.T) {
	s := NewScheduler(zap.NewNop(), time.UTC)

	require.NoError(t, s.AddJob(PacingMonitorJobName, "0 7 * * *", func() {}))
	require.NoError(t, s.AddJob("with_seconds", "0 0 7 * * 1-5", func() {}))
	assert.Error(t, s.AddJob(PacingMonitorJobName, "@daily", func() {}), "duplicate name")
	assert.Error(t, s.AddJob("bad", "not a schedule", func() {}))

	assert.Equal(t, []string{PacingMonitorJobName, "with_seconds"}, s.GetJobNames())

	require.NoError(t, s.RemoveJob("with_seconds"))
	assert.Error(t, s.RemoveJob("with_seconds"))
	assert.Equal(t, []string{PacingMonitorJobName}, s.GetJobNames())

	s.Start()
	<-s.Stop().Done()
}

func TestValidateSchedule(t *testing.T) {
	assert.NoError(t, ValidateSchedule("0 7 * * *"))
	assert.NoError(t, ValidateSchedule("@every 1h"))
	assert.Error(t, ValidateSchedule("61 * * * *"))
}
