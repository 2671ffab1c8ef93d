package system

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ledgerkeep/recurring-service/internal/models"
	"github.com/ledgerkeep/recurring-service/internal/scheduler"
	"github.com/ledgerkeep/recurring-service/internal/service"
)

// RecurringPaymentsJob is the name of the scheduled batch sweep
const RecurringPaymentsJob = "recurring-payments"

// Config controls the lifecycle façade
type Config struct {
	EnableCronJobs  bool   `json:"enable_cron_jobs"`
	CronJobSchedule string `json:"cron_job_schedule"`
	LogLevel        string `json:"log_level"`
}

// Notifier delivers sweep summaries out of band; failures are logged and
// never fail the sweep
type Notifier interface {
	SendSweepSummary(result *models.ProcessingResult) error
}

// Status reports the façade's lifecycle state
type Status struct {
	Initialized bool   `json:"initialized"`
	Config      Config `json:"config"`
}

// System starts and stops the scheduler and the recurring-payment job
// together. Initialize and Shutdown are both idempotent.
type System struct {
	mu          sync.Mutex
	initialized bool
	registered  bool
	cfg         Config
	log         *logrus.Logger
	sched       *scheduler.Scheduler
	processor   *service.Processor
	notifier    Notifier
}

// New creates a system façade; notifier may be nil
func New(cfg Config, sched *scheduler.Scheduler, processor *service.Processor, notifier Notifier, log *logrus.Logger) *System {
	return &System{cfg: cfg, sched: sched, processor: processor, notifier: notifier, log: log}
}

// Initialize registers the recurring-payment job and starts the scheduler.
// Re-invocation while already initialized is a no-op.
func (s *System) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		s.log.Debug("System already initialized")
		return nil
	}
	if s.cfg.EnableCronJobs {
		if !s.registered {
			if err := s.sched.Register(RecurringPaymentsJob, s.cfg.CronJobSchedule, s.runSweep); err != nil {
				return fmt.Errorf("failed to register %s job: %w", RecurringPaymentsJob, err)
			}
			s.registered = true
		}
		s.sched.Start()
	}
	s.initialized = true
	s.log.Infof("System initialized (cron jobs enabled: %t, schedule: %q)",
		s.cfg.EnableCronJobs, s.cfg.CronJobSchedule)
	return nil
}

// IsInitialized reports whether Initialize has completed
func (s *System) IsInitialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

// GetStatus returns the lifecycle state and active configuration
func (s *System) GetStatus() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{Initialized: s.initialized, Config: s.cfg}
}

// Shutdown stops the scheduler and releases its timers; idempotent
func (s *System) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return
	}
	s.sched.Stop()
	s.initialized = false
	s.log.Info("System shut down")
}

// runSweep is the scheduled task body: one system-wide batch sweep
func (s *System) runSweep(ctx context.Context) error {
	result := s.processor.ProcessAllDueRecurringPayments(ctx)
	if s.notifier != nil && len(result.Errors) > 0 {
		if err := s.notifier.SendSweepSummary(result); err != nil {
			s.log.WithError(err).Warn("Failed to send sweep summary")
		}
	}
	if !result.Success {
		return fmt.Errorf("sweep finished with %d error(s)", len(result.Errors))
	}
	return nil
}
