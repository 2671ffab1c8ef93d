package scheduler

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// a spec that will not fire during a test run
const quietSpec = "0 0 1 1 *"

const (
	testWait = time.Second
	testTick = 5 * time.Millisecond
)

func newTestScheduler() *Scheduler {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return New(log, nil)
}

func noopTask(context.Context) error { return nil }

func TestRegisterRejectsBadSpec(t *testing.T) {
	s := newTestScheduler()

	err := s.Register("bad", "not a cron expression", noopTask)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid schedule")
}

func TestRegisterRejectsDuplicateName(t *testing.T) {
	s := newTestScheduler()
	require.NoError(t, s.Register("sweep", quietSpec, noopTask))

	err := s.Register("sweep", quietSpec, noopTask)

	require.Error(t, err)
}

func TestStartStopIdempotent(t *testing.T) {
	s := newTestScheduler()
	require.NoError(t, s.Register("sweep", quietSpec, noopTask))

	assert.False(t, s.IsRunning())
	s.Start()
	s.Start()
	assert.True(t, s.IsRunning())
	s.Stop()
	s.Stop()
	assert.False(t, s.IsRunning())
}

func TestSetJobEnabled(t *testing.T) {
	s := newTestScheduler()
	require.NoError(t, s.Register("x", quietSpec, noopTask))

	require.NoError(t, s.SetJobEnabled("x", false))

	status, ok := s.JobStatus("x")
	require.True(t, ok)
	assert.False(t, status.Enabled)

	require.NoError(t, s.SetJobEnabled("x", true))
	status, _ = s.JobStatus("x")
	assert.True(t, status.Enabled)

	assert.Error(t, s.SetJobEnabled("missing", true))
}

func TestUpdateJobSchedule(t *testing.T) {
	s := newTestScheduler()
	require.NoError(t, s.Register("x", quietSpec, noopTask))

	require.NoError(t, s.UpdateJobSchedule("x", "*/5 * * * *"))

	status, ok := s.JobStatus("x")
	require.True(t, ok)
	assert.Equal(t, "*/5 * * * *", status.Schedule)

	assert.Error(t, s.UpdateJobSchedule("x", "bogus"))
	assert.Error(t, s.UpdateJobSchedule("missing", quietSpec))
}

func TestUpdateJobScheduleWhileRunning(t *testing.T) {
	s := newTestScheduler()
	require.NoError(t, s.Register("x", quietSpec, noopTask))
	s.Start()
	defer s.Stop()

	require.NoError(t, s.UpdateJobSchedule("x", "30 4 * * *"))

	status, ok := s.JobStatus("x")
	require.True(t, ok)
	assert.Equal(t, "30 4 * * *", status.Schedule)
	require.NotNil(t, status.NextRunAt, "a rescheduled running job has a next firing")
}

func TestJobStatusUnknownName(t *testing.T) {
	s := newTestScheduler()

	_, ok := s.JobStatus("missing")

	assert.False(t, ok)
}

func TestFiringUpdatesCounters(t *testing.T) {
	s := newTestScheduler()
	calls := 0
	require.NoError(t, s.Register("sweep", quietSpec, func(context.Context) error {
		calls++
		return nil
	}))
	s.Start()
	defer s.Stop()

	s.fire("sweep")
	s.fire("sweep")

	assert.Equal(t, 2, calls)
	status, _ := s.JobStatus("sweep")
	assert.Equal(t, int64(2), status.RunCount)
	assert.Equal(t, int64(0), status.ErrorCount)
	require.NotNil(t, status.LastRunAt)
}

func TestFailingTaskIncrementsErrorCountOnly(t *testing.T) {
	s := newTestScheduler()
	require.NoError(t, s.Register("sweep", quietSpec, func(context.Context) error {
		return errors.New("sweep blew up")
	}))
	s.Start()
	defer s.Stop()

	s.fire("sweep")

	assert.True(t, s.IsRunning(), "a failing job never stops the scheduler")
	status, _ := s.JobStatus("sweep")
	assert.Equal(t, int64(1), status.RunCount)
	assert.Equal(t, int64(1), status.ErrorCount)
}

func TestPanickingTaskIsContained(t *testing.T) {
	s := newTestScheduler()
	require.NoError(t, s.Register("sweep", quietSpec, func(context.Context) error {
		panic("boom")
	}))
	s.Start()
	defer s.Stop()

	assert.NotPanics(t, func() { s.fire("sweep") })

	status, _ := s.JobStatus("sweep")
	assert.Equal(t, int64(1), status.ErrorCount)
	assert.True(t, s.IsRunning())
}

func TestOverlappingFiringIsSkipped(t *testing.T) {
	s := newTestScheduler()
	started := make(chan struct{})
	release := make(chan struct{})
	require.NoError(t, s.Register("slow", quietSpec, func(context.Context) error {
		close(started)
		<-release
		return nil
	}))
	s.Start()
	defer s.Stop()

	go s.fire("slow")
	<-started

	// second firing while the first is in flight must be skipped
	s.fire("slow")
	assert.Equal(t, 1, s.Stats().ActiveJobs)

	close(release)
	assert.Eventually(t, func() bool { return s.Stats().ActiveJobs == 0 },
		testWait, testTick)

	status, _ := s.JobStatus("slow")
	assert.Equal(t, int64(1), status.RunCount)
}

func TestDisabledJobDoesNotFire(t *testing.T) {
	s := newTestScheduler()
	calls := 0
	require.NoError(t, s.Register("sweep", quietSpec, func(context.Context) error {
		calls++
		return nil
	}))
	s.Start()
	defer s.Stop()
	require.NoError(t, s.SetJobEnabled("sweep", false))

	s.fire("sweep")

	assert.Equal(t, 0, calls)
}

func TestStats(t *testing.T) {
	s := newTestScheduler()
	require.NoError(t, s.Register("a", quietSpec, noopTask))
	require.NoError(t, s.Register("b", quietSpec, func(context.Context) error {
		return errors.New("nope")
	}))
	require.NoError(t, s.SetJobEnabled("b", false))

	st := s.Stats()
	assert.False(t, st.IsRunning)
	assert.Equal(t, 2, st.TotalJobs)
	assert.Equal(t, 1, st.EnabledJobs)

	s.Start()
	defer s.Stop()
	s.fire("a")
	require.NoError(t, s.SetJobEnabled("b", true))
	s.fire("b")

	st = s.Stats()
	assert.True(t, st.IsRunning)
	assert.Equal(t, 2, st.EnabledJobs)
	assert.Equal(t, int64(2), st.TotalRuns)
	assert.Equal(t, int64(1), st.TotalErrors)
}
