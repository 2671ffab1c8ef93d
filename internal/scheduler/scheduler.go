package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Task is the unit of work a job runs on each firing
type Task func(ctx context.Context) error

// Job is a point-in-time snapshot of one named recurring job
type Job struct {
	Name       string     `json:"name"`
	Schedule   string     `json:"schedule"`
	Enabled    bool       `json:"enabled"`
	LastRunAt  *time.Time `json:"last_run_at,omitempty"`
	NextRunAt  *time.Time `json:"next_run_at,omitempty"`
	RunCount   int64      `json:"run_count"`
	ErrorCount int64      `json:"error_count"`
}

// Stats summarizes the scheduler's runtime state
type Stats struct {
	IsRunning   bool  `json:"is_running"`
	TotalJobs   int   `json:"total_jobs"`
	EnabledJobs int   `json:"enabled_jobs"`
	ActiveJobs  int   `json:"active_jobs"`
	TotalRuns   int64 `json:"total_runs"`
	TotalErrors int64 `json:"total_errors"`
}

type job struct {
	name       string
	spec       string
	enabled    bool
	task       Task
	entryID    cron.EntryID
	lastRun    time.Time
	runCount   int64
	errorCount int64
	inFlight   bool
}

// Scheduler owns named recurring jobs on a single cron timeline.
// A firing whose previous invocation is still in flight is skipped
// rather than queued.
type Scheduler struct {
	mu      sync.Mutex
	log     *logrus.Logger
	loc     *time.Location
	parser  cron.Parser
	c       *cron.Cron
	jobs    map[string]*job
	running bool
	baseCtx context.Context
	cancel  context.CancelFunc
}

// New creates a stopped scheduler in the given location
func New(log *logrus.Logger, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		log:    log,
		loc:    loc,
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		jobs:   map[string]*job{},
	}
}

// Register adds a named job. The job starts enabled; if the scheduler is
// already running it is wired onto the timeline immediately.
func (s *Scheduler) Register(name, spec string, task Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %q already registered", name)
	}
	if _, err := s.parser.Parse(spec); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	j := &job{name: name, spec: spec, enabled: true, task: task}
	s.jobs[name] = j
	if s.running {
		return s.scheduleLocked(j)
	}
	return nil
}

// Start begins firing enabled jobs on their cadences. No-op if already
// running.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.baseCtx, s.cancel = context.WithCancel(context.Background())
	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(s.loc))
	s.running = true
	for _, j := range s.jobs {
		if !j.enabled {
			continue
		}
		if err := s.scheduleLocked(j); err != nil {
			s.log.WithError(err).Errorf("Failed to schedule job %q", j.name)
		}
	}
	s.c.Start()
	s.log.Infof("Scheduler started with %d job(s) in %s", len(s.jobs), s.loc)
}

// Stop cancels the timers and waits for the cron loop to drain. In-flight
// job invocations run to completion. No-op if already stopped.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	c := s.c
	s.c = nil
	for _, j := range s.jobs {
		j.entryID = 0
	}
	// release the lock before draining: an in-flight job needs it to
	// record its outcome
	s.mu.Unlock()

	<-c.Stop().Done()
	s.log.Info("Scheduler stopped")
}

// IsRunning reports whether the scheduler is started
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// SetJobEnabled toggles one job on or off
func (s *Scheduler) SetJobEnabled(name string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	if j.enabled == enabled {
		return nil
	}
	j.enabled = enabled
	if !s.running {
		return nil
	}
	if enabled {
		return s.scheduleLocked(j)
	}
	s.c.Remove(j.entryID)
	j.entryID = 0
	return nil
}

// UpdateJobSchedule replaces a job's cadence, rescheduling it if the
// scheduler is running
func (s *Scheduler) UpdateJobSchedule(name, spec string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	if _, err := s.parser.Parse(spec); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	j.spec = spec
	if s.running && j.enabled {
		s.c.Remove(j.entryID)
		return s.scheduleLocked(j)
	}
	return nil
}

// JobStatus returns a snapshot of one job, or false if the name is unknown
func (s *Scheduler) JobStatus(name string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[name]
	if !ok {
		return Job{}, false
	}
	return s.snapshotLocked(j), true
}

// Jobs returns snapshots of every registered job, ordered by name
func (s *Scheduler) Jobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, s.snapshotLocked(j))
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Name < out[k].Name })
	return out
}

// Stats returns aggregate runtime statistics
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Stats{IsRunning: s.running, TotalJobs: len(s.jobs)}
	for _, j := range s.jobs {
		if j.enabled {
			st.EnabledJobs++
		}
		if j.inFlight {
			st.ActiveJobs++
		}
		st.TotalRuns += j.runCount
		st.TotalErrors += j.errorCount
	}
	return st
}

func (s *Scheduler) scheduleLocked(j *job) error {
	name := j.name
	id, err := s.c.AddFunc(j.spec, func() { s.fire(name) })
	if err != nil {
		return fmt.Errorf("failed to schedule job %q: %w", name, err)
	}
	j.entryID = id
	return nil
}

// fire runs one invocation of the named job. Errors and panics from the
// task increment the job's error counter and never reach the cron loop.
func (s *Scheduler) fire(name string) {
	s.mu.Lock()
	j, ok := s.jobs[name]
	if !ok || !j.enabled || !s.running {
		s.mu.Unlock()
		return
	}
	if j.inFlight {
		s.log.Warnf("Job %q still running, skipping this firing", name)
		s.mu.Unlock()
		return
	}
	j.inFlight = true
	j.lastRun = time.Now().In(s.loc)
	j.runCount++
	task := j.task
	ctx := s.baseCtx
	s.mu.Unlock()

	start := time.Now()
	err := runTask(ctx, task)

	s.mu.Lock()
	defer s.mu.Unlock()
	j.inFlight = false
	if err != nil {
		j.errorCount++
		s.log.WithError(err).Errorf("Job %q failed after %s", name, time.Since(start))
		return
	}
	s.log.Debugf("Job %q completed in %s", name, time.Since(start))
}

func runTask(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return task(ctx)
}

func (s *Scheduler) snapshotLocked(j *job) Job {
	snap := Job{
		Name:       j.name,
		Schedule:   j.spec,
		Enabled:    j.enabled,
		RunCount:   j.runCount,
		ErrorCount: j.errorCount,
	}
	if !j.lastRun.IsZero() {
		last := j.lastRun
		snap.LastRunAt = &last
	}
	if s.running && j.entryID != 0 {
		if next := s.c.Entry(j.entryID).Next; !next.IsZero() {
			snap.NextRunAt = &next
		}
	}
	return snap
}
