// Package scheduler manages the background cron jobs.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
)

// TaskFunc is the function signature for scheduled tasks.
type TaskFunc func(ctx context.Context) error

// TaskConfig describes one scheduled task.
type TaskConfig struct {
	ID          string
	Name        string
	Description string
	Cron        string // standard five-field cron expression
	Func        TaskFunc
	RunOnStart  bool
}

// TaskInfo is the task state exposed over the API.
type TaskInfo struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Cron        string     `json:"cron"`
	LastRun     *time.Time `json:"lastRun,omitempty"`
	LastError   string     `json:"lastError,omitempty"`
	NextRun     *time.Time `json:"nextRun,omitempty"`
	Running     bool       `json:"running"`
}

type taskEntry struct {
	config  TaskConfig
	job     gocron.Job
	lastRun *time.Time
	lastErr error
	running bool
}

// Scheduler wraps gocron and tracks per-task run state.
type Scheduler struct {
	gocron  gocron.Scheduler
	logger  zerolog.Logger
	baseCtx context.Context
	cancel  context.CancelFunc

	mu    sync.RWMutex
	tasks map[string]*taskEntry
}

// New creates a scheduler. Tasks run with a context that is cancelled when
// the scheduler stops.
func New(logger zerolog.Logger) (*Scheduler, error) {
	gs, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		gocron:  gs,
		logger:  logger.With().Str("component", "scheduler").Logger(),
		baseCtx: ctx,
		cancel:  cancel,
		tasks:   make(map[string]*taskEntry),
	}, nil
}

// RegisterTask adds a task to the schedule. IDs must be unique.
func (s *Scheduler) RegisterTask(config TaskConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[config.ID]; exists {
		return fmt.Errorf("task %q already registered", config.ID)
	}

	// gocron rejects empty job names.
	if config.Name == "" {
		config.Name = config.ID
	}

	job, err := s.gocron.NewJob(
		gocron.CronJob(config.Cron, false),
		gocron.NewTask(func() { s.execute(config.ID) }),
		gocron.WithName(config.Name),
		gocron.WithTags(config.ID),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule task %q: %w", config.ID, err)
	}

	s.tasks[config.ID] = &taskEntry{config: config, job: job}

	s.logger.Info().
		Str("id", config.ID).
		Str("cron", config.Cron).
		Bool("runOnStart", config.RunOnStart).
		Msg("task registered")
	return nil
}

func (s *Scheduler) execute(taskID string) {
	s.mu.Lock()
	entry, exists := s.tasks[taskID]
	if !exists || entry.running {
		s.mu.Unlock()
		return
	}
	entry.running = true
	s.mu.Unlock()

	start := time.Now()
	s.logger.Info().Str("id", taskID).Msg("task started")

	err := entry.config.Func(s.baseCtx)

	s.mu.Lock()
	entry.running = false
	entry.lastRun = &start
	entry.lastErr = err
	s.mu.Unlock()

	if err != nil {
		s.logger.Error().Err(err).Str("id", taskID).Dur("duration", time.Since(start)).Msg("task failed")
		return
	}
	s.logger.Info().Str("id", taskID).Dur("duration", time.Since(start)).Msg("task completed")
}

// Start begins the schedule and kicks off RunOnStart tasks.
func (s *Scheduler) Start() {
	s.gocron.Start()

	s.mu.RLock()
	startup := make([]string, 0, len(s.tasks))
	for id, entry := range s.tasks {
		if entry.config.RunOnStart {
			startup = append(startup, id)
		}
	}
	s.mu.RUnlock()

	for _, id := range startup {
		go s.execute(id)
	}
}

// Stop shuts the scheduler down and cancels running task contexts.
func (s *Scheduler) Stop() error {
	s.cancel()
	return s.gocron.Shutdown()
}

// RunNow triggers a task outside its schedule.
func (s *Scheduler) RunNow(taskID string) error {
	s.mu.RLock()
	entry, exists := s.tasks[taskID]
	running := exists && entry.running
	s.mu.RUnlock()

	if !exists {
		return fmt.Errorf("task %q not found", taskID)
	}
	if running {
		return fmt.Errorf("task %q is already running", taskID)
	}

	go s.execute(taskID)
	return nil
}

// ListTasks returns the state of every registered task.
func (s *Scheduler) ListTasks() []TaskInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tasks := make([]TaskInfo, 0, len(s.tasks))
	for _, entry := range s.tasks {
		tasks = append(tasks, s.info(entry))
	}
	return tasks
}

// GetTask returns the state of one task.
func (s *Scheduler) GetTask(taskID string) (*TaskInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, exists := s.tasks[taskID]
	if !exists {
		return nil, fmt.Errorf("task %q not found", taskID)
	}
	info := s.info(entry)
	return &info, nil
}

func (s *Scheduler) info(entry *taskEntry) TaskInfo {
	info := TaskInfo{
		ID:          entry.config.ID,
		Name:        entry.config.Name,
		Description: entry.config.Description,
		Cron:        entry.config.Cron,
		LastRun:     entry.lastRun,
		Running:     entry.running,
	}
	if entry.lastErr != nil {
		info.LastError = entry.lastErr.Error()
	}
	if nextRun, err := entry.job.NextRun(); err == nil {
		info.NextRun = &nextRun
	}
	return info
}
