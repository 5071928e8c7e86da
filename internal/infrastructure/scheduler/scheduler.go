package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/liberta/backend/internal/domain/order"
	"github.com/liberta/backend/internal/domain/shared"
)

// ---------------------------------------------------------------------------
// Job Types
// ---------------------------------------------------------------------------

// JobType identifies one of the two scheduled sync jobs
type JobType string

const (
	// JobTypeIngest pulls new orders from the configured storefronts
	JobTypeIngest JobType = "INGEST"
	// JobTypeReconcile refreshes shipping statuses from the carriers
	JobTypeReconcile JobType = "RECONCILE"
)

// IsValid returns true if the job type is known
func (t JobType) IsValid() bool {
	return t == JobTypeIngest || t == JobTypeReconcile
}

// RunStats aggregates the counters of a finished job run
type RunStats struct {
	Created int
	Updated int
	Skipped int
	Errors  int
}

// JobFunc executes one run of a scheduled job
type JobFunc func(ctx context.Context) (RunStats, error)

// ---------------------------------------------------------------------------
// Config
// ---------------------------------------------------------------------------

// Config holds configuration for the sync scheduler
type Config struct {
	// IngestTimes are wall-clock times (HH:MM, 24h) at which ingestion runs
	IngestTimes []string
	// ReconcileTimes are wall-clock times at which reconciliation runs
	ReconcileTimes []string
	// CheckInterval is how often to check whether a scheduled time was reached
	CheckInterval time.Duration
	// JobTimeout is the maximum time one job run may take
	JobTimeout time.Duration
}

// DefaultConfig returns default scheduler configuration
func DefaultConfig() Config {
	return Config{
		IngestTimes:    []string{"06:00", "13:00", "20:00"},
		ReconcileTimes: []string{"07:30", "19:30"},
		CheckInterval:  30 * time.Second,
		JobTimeout:     15 * time.Minute,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.CheckInterval <= 0 || c.JobTimeout <= 0 {
		return ErrInvalidConfig
	}
	for _, at := range append(append([]string{}, c.IngestTimes...), c.ReconcileTimes...) {
		if _, err := time.Parse("15:04", at); err != nil {
			return ErrInvalidConfig
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// SyncScheduler
// ---------------------------------------------------------------------------

// SyncScheduler triggers ingestion and reconciliation runs at configured
// wall-clock times and serializes runs per job type. Manual triggers go
// through the same gate, so an API-triggered run and a scheduled run of the
// same type never overlap.
type SyncScheduler struct {
	config   Config
	runners  map[JobType]JobFunc
	throttle shared.ThrottleFlags
	// throttleKeys are the store ids consulted before an ingest run
	throttleKeys []string
	runs         order.SyncRunRepository
	logger       *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	active    map[JobType]bool
	// lastRun maps "JOBTYPE@HH:MM" to the date it last fired, so each slot
	// fires at most once per day
	lastRun map[string]string
}

// NewSyncScheduler creates a new sync scheduler
func NewSyncScheduler(
	config Config,
	throttle shared.ThrottleFlags,
	throttleKeys []string,
	runs order.SyncRunRepository,
	logger *zap.Logger,
) (*SyncScheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &SyncScheduler{
		config:       config,
		runners:      make(map[JobType]JobFunc),
		throttle:     throttle,
		throttleKeys: throttleKeys,
		runs:         runs,
		logger:       logger,
		active:       make(map[JobType]bool),
		lastRun:      make(map[string]string),
	}, nil
}

// Register binds a runner to a job type. Must be called before Start.
func (s *SyncScheduler) Register(jobType JobType, fn JobFunc) {
	s.runners[jobType] = fn
}

// Start starts the scheduling loop
func (s *SyncScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.runLoop(ctx)

	s.logger.Info("Sync scheduler started",
		zap.Strings("ingest_times", s.config.IngestTimes),
		zap.Strings("reconcile_times", s.config.ReconcileTimes),
		zap.Duration("check_interval", s.config.CheckInterval),
		zap.Duration("job_timeout", s.config.JobTimeout),
	)

	return nil
}

// Stop gracefully stops the scheduler, waiting for in-flight runs
func (s *SyncScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Sync scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Sync scheduler stop timed out")
		return ctx.Err()
	}
}

// Trigger starts a manual run of the given job type and waits for it. It
// returns ErrJobAlreadyRunning when a run of the same type is still
// executing.
func (s *SyncScheduler) Trigger(ctx context.Context, jobType JobType) error {
	s.mu.Lock()
	running := s.isRunning
	s.mu.Unlock()
	if !running {
		return ErrSchedulerNotRunning
	}
	return s.execute(ctx, jobType)
}

// TriggerAsync claims the per-type slot synchronously, then runs the job in
// the background. Callers get ErrJobAlreadyRunning immediately instead of
// blocking for the whole run.
func (s *SyncScheduler) TriggerAsync(ctx context.Context, jobType JobType) error {
	s.mu.Lock()
	running := s.isRunning
	s.mu.Unlock()
	if !running {
		return ErrSchedulerNotRunning
	}
	if _, ok := s.runners[jobType]; !ok {
		return ErrUnknownJobType
	}
	if !s.tryAcquire(jobType) {
		return ErrJobAlreadyRunning
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.release(jobType)
		if err := s.executeAcquired(context.WithoutCancel(ctx), jobType); err != nil {
			s.logger.Error("Manual sync run failed",
				zap.String("job_type", string(jobType)),
				zap.Error(err),
			)
		}
	}()
	return nil
}

// runLoop checks periodically whether a scheduled time was reached
func (s *SyncScheduler) runLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkAndTrigger(ctx, time.Now())
		}
	}
}

// checkAndTrigger fires every schedule slot matching the current wall-clock
// minute that has not fired yet today
func (s *SyncScheduler) checkAndTrigger(ctx context.Context, now time.Time) {
	clock := now.Format("15:04")
	date := now.Format("2006-01-02")

	s.fireDue(ctx, JobTypeIngest, s.config.IngestTimes, clock, date)
	s.fireDue(ctx, JobTypeReconcile, s.config.ReconcileTimes, clock, date)
}

func (s *SyncScheduler) fireDue(ctx context.Context, jobType JobType, times []string, clock, date string) {
	for _, at := range times {
		if at != clock {
			continue
		}

		key := string(jobType) + "@" + at
		s.mu.Lock()
		if s.lastRun[key] == date {
			s.mu.Unlock()
			continue
		}
		s.lastRun[key] = date
		s.mu.Unlock()

		s.logger.Info("Scheduled sync time reached",
			zap.String("job_type", string(jobType)),
			zap.String("at", at),
		)

		s.wg.Add(1)
		go func(jt JobType) {
			defer s.wg.Done()
			if err := s.execute(ctx, jt); err != nil {
				s.logger.Error("Scheduled sync run failed",
					zap.String("job_type", string(jt)),
					zap.Error(err),
				)
			}
		}(jobType)
	}
}

// execute runs one job with per-type serialization and run persistence
func (s *SyncScheduler) execute(ctx context.Context, jobType JobType) error {
	if _, ok := s.runners[jobType]; !ok {
		return ErrUnknownJobType
	}

	if !s.tryAcquire(jobType) {
		return ErrJobAlreadyRunning
	}
	defer s.release(jobType)

	return s.executeAcquired(ctx, jobType)
}

// executeAcquired runs the job body. The caller holds the per-type slot.
func (s *SyncScheduler) executeAcquired(ctx context.Context, jobType JobType) error {
	runner := s.runners[jobType]

	run := &order.SyncRun{
		ID:        uuid.New(),
		JobType:   string(jobType),
		StartedAt: time.Now().UTC(),
		Result:    order.RunResultRunning,
	}

	// A single throttled store skips the whole ingestion run; a partial pass
	// would advance cursors past orders the throttled store never surfaced.
	if jobType == JobTypeIngest && len(s.throttleKeys) > 0 {
		flagged, err := s.throttle.AnyFlagged(ctx, s.throttleKeys)
		if err != nil {
			s.logger.Warn("Throttle flag check failed, proceeding with run", zap.Error(err))
		} else if flagged {
			finished := time.Now().UTC()
			run.FinishedAt = &finished
			run.Result = order.RunResultSkipped
			s.saveRun(ctx, run)
			s.logger.Warn("Ingestion run skipped, a configured store is throttled")
			return nil
		}
	}

	s.saveRun(ctx, run)

	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	stats, err := runner(jobCtx)

	finished := time.Now().UTC()
	run.FinishedAt = &finished
	run.Created = stats.Created
	run.Updated = stats.Updated
	run.Skipped = stats.Skipped
	run.Errors = stats.Errors

	switch {
	case err != nil:
		run.Result = order.RunResultFailed
		run.Error = err.Error()
	case stats.Errors > 0:
		run.Result = order.RunResultPartial
	default:
		run.Result = order.RunResultSuccess
	}

	s.saveRun(ctx, run)

	s.logger.Info("Sync run finished",
		zap.String("job_type", string(jobType)),
		zap.String("result", string(run.Result)),
		zap.Int("created", run.Created),
		zap.Int("updated", run.Updated),
		zap.Int("skipped", run.Skipped),
		zap.Int("errors", run.Errors),
		zap.Duration("duration", finished.Sub(run.StartedAt)),
	)

	return err
}

func (s *SyncScheduler) tryAcquire(jobType JobType) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active[jobType] {
		return false
	}
	s.active[jobType] = true
	return true
}

func (s *SyncScheduler) release(jobType JobType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[jobType] = false
}

func (s *SyncScheduler) saveRun(ctx context.Context, run *order.SyncRun) {
	// Run records are observability data, never a reason to fail the job
	if err := s.runs.Save(context.WithoutCancel(ctx), run); err != nil {
		s.logger.Error("Failed to save sync run",
			zap.String("run_id", run.ID.String()),
			zap.Error(err),
		)
	}
}
