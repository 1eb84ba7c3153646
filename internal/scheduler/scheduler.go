package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	service     *Service
	serviceOnce sync.Once
	serviceErr  error
)

var (
	ErrNotInitialized = errors.New("scheduler not initialized")
	ErrEmptyJobName   = errors.New("job name is required")
	ErrEmptyCronExpr  = errors.New("cron expression is required")
	ErrNilJobRun      = errors.New("job run function is required")
	ErrDuplicateJob   = errors.New("job already registered")
)

// Job is a recurring league maintenance task.
type Job struct {
	Name     string
	Cron     string
	Timeout  time.Duration
	Run      func(ctx context.Context) error
	Fields   map[string]string
	Parallel bool
}

// Service runs league jobs on a gocron scheduler. Every run gets a context
// derived from the service context, which Stop cancels.
type Service struct {
	scheduler gocron.Scheduler
	ctx       context.Context
	cancel    context.CancelFunc

	mu   sync.Mutex
	jobs map[string]gocron.Job

	stopOnce sync.Once
	stopErr  error
}

// Init initializes the scheduler singleton.
func Init() error {
	serviceOnce.Do(func() {
		service, serviceErr = NewService()
		if serviceErr == nil {
			log.Info().Msg("Scheduler initialized")
		}
	})
	return serviceErr
}

// NewService builds a standalone scheduler. Most callers use the singleton.
func NewService() (*Service, error) {
	sched, err := gocron.NewScheduler(
		gocron.WithGlobalJobOptions(
			gocron.WithEventListeners(
				gocron.AfterJobRunsWithPanic(func(jobID uuid.UUID, jobName string, recoverData any) {
					log.Error().
						Str("job_id", jobID.String()).
						Str("job_name", jobName).
						Interface("panic", recoverData).
						Msg("Scheduler job panicked")
				}),
			),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		scheduler: sched,
		ctx:       ctx,
		cancel:    cancel,
		jobs:      make(map[string]gocron.Job),
	}, nil
}

// ServiceInstance returns the initialized scheduler singleton.
func ServiceInstance() (*Service, error) {
	if service == nil && serviceErr == nil {
		return nil, ErrNotInitialized
	}
	return service, serviceErr
}

func Start() error {
	svc, err := ServiceInstance()
	if err != nil {
		return err
	}
	svc.Start()
	return nil
}

func Stop() error {
	svc, err := ServiceInstance()
	if err != nil {
		return err
	}
	return svc.Stop()
}

// Register adds job to the singleton scheduler.
func Register(job Job) error {
	svc, err := ServiceInstance()
	if err != nil {
		return err
	}
	return svc.Register(job)
}

func (s *Service) Start() {
	if s == nil {
		log.Error().Msg("Scheduler start requested before initialization")
		return
	}
	log.Info().Int("jobs", len(s.JobNames())).Msg("Scheduler starting")
	s.scheduler.Start()
}

// Stop cancels in-flight runs and shuts the scheduler down.
func (s *Service) Stop() error {
	if s == nil {
		return ErrNotInitialized
	}
	s.stopOnce.Do(func() {
		log.Info().Msg("Scheduler stopping")
		s.cancel()
		s.stopErr = s.scheduler.Shutdown()
	})
	return s.stopErr
}

// JobNames lists registered job names.
func (s *Service) JobNames() []string {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	return names
}

// Register schedules job on its cron expression. Runs of the same job never
// overlap unless job.Parallel is set; a run that would overlap is rescheduled.
func (s *Service) Register(job Job) error {
	if s == nil {
		return ErrNotInitialized
	}
	if strings.TrimSpace(job.Name) == "" {
		return ErrEmptyJobName
	}
	if strings.TrimSpace(job.Cron) == "" {
		return ErrEmptyCronExpr
	}
	if job.Run == nil {
		return ErrNilJobRun
	}

	logCtx := log.With().Str("job_name", job.Name).Str("cron", job.Cron)
	for k, v := range job.Fields {
		logCtx = logCtx.Str(k, v)
	}
	jobLogger := logCtx.Logger()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, job.Name)
	}

	opts := []gocron.JobOption{gocron.WithName(job.Name)}
	if !job.Parallel {
		opts = append(opts, gocron.WithSingletonMode(gocron.LimitModeReschedule))
	}

	registered, err := s.scheduler.NewJob(
		gocron.CronJob(job.Cron, false),
		gocron.NewTask(func() { s.runOnce(job, jobLogger) }),
		opts...,
	)
	if err != nil {
		jobLogger.Error().Err(err).Msg("Failed to register scheduler job")
		return fmt.Errorf("register job %s: %w", job.Name, err)
	}
	s.jobs[job.Name] = registered
	jobLogger.Info().Msg("Scheduler job registered")
	return nil
}

// RunNow runs a registered job immediately, outside its cron schedule.
func (s *Service) RunNow(name string) error {
	if s == nil {
		return ErrNotInitialized
	}
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("job %q is not registered", name)
	}
	return job.RunNow()
}

func (s *Service) runOnce(job Job, jobLogger zerolog.Logger) {
	runLogger := jobLogger.With().Str("run_id", uuid.NewString()).Logger()
	ctx := runLogger.WithContext(s.ctx)
	if job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}

	start := time.Now()
	runLogger.Debug().Msg("Scheduler job started")
	if err := job.Run(ctx); err != nil {
		runLogger.Error().Err(err).Dur("duration", time.Since(start)).Msg("Scheduler job failed")
		return
	}
	runLogger.Debug().Dur("duration", time.Since(start)).Msg("Scheduler job completed")
}
