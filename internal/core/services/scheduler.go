package services

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/custodia-labs/searchapi/internal/core/domain"
	"github.com/custodia-labs/searchapi/internal/core/ports/driven"
	"github.com/custodia-labs/searchapi/internal/core/ports/driving"
	"github.com/custodia-labs/searchapi/internal/logger"
)

var _ driving.Scheduler = (*Scheduler)(nil)

// historyLimit is the number of results kept per task.
const historyLimit = 100

// BatchIndexer indexes one batch of pending items on every index.
type BatchIndexer interface {
	IndexAll(ctx context.Context, limit int) (int, error)
}

// TaskReplayer replays operations queued for unavailable servers.
type TaskReplayer interface {
	ExecuteServerTasks(ctx context.Context) (int, error)
}

// Scheduler runs the built-in tasks on their configured intervals and
// keeps their state in a SchedulerStore.
type Scheduler struct {
	config   domain.SchedulerConfig
	store    driven.SchedulerStore
	indexer  BatchIndexer
	replayer TaskReplayer
	tick     time.Duration
	now      func() time.Time
	log      *logger.Logger

	mu       sync.Mutex
	running  bool
	inflight map[string]bool
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewScheduler creates a scheduler. indexer and replayer are optional;
// their tasks do nothing when nil.
func NewScheduler(
	config domain.SchedulerConfig,
	store driven.SchedulerStore,
	indexer BatchIndexer,
	replayer TaskReplayer,
) *Scheduler {
	return &Scheduler{
		config:   config,
		store:    store,
		indexer:  indexer,
		replayer: replayer,
		tick:     time.Minute,
		now:      time.Now,
		log:      logger.With("scheduler"),
		inflight: make(map[string]bool),
	}
}

// Start runs due tasks every tick until Stop is called or ctx is
// cancelled. A disabled scheduler returns at once.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.log.Debug("disabled")
		return nil
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	stop := s.stopCh
	s.mu.Unlock()

	if err := s.syncTasks(ctx); err != nil {
		s.log.Error("failed to initialise tasks: %v", err)
	}

	s.runDue(ctx)
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		case <-ticker.C:
			s.runDue(ctx)
		}
	}
}

// Stop ends the loop and waits for running tasks.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

// Tasks returns the stored task states.
func (s *Scheduler) Tasks(ctx context.Context) ([]domain.ScheduledTask, error) {
	return s.store.ListTasks(ctx)
}

// History returns recent runs of a task.
func (s *Scheduler) History(ctx context.Context, taskID string, limit int) ([]domain.TaskResult, error) {
	return s.store.History(ctx, taskID, limit)
}

// RunNow runs a built-in task in the calling goroutine. It works whether
// or not the loop is running and ignores the task's enabled flag.
func (s *Scheduler) RunNow(ctx context.Context, taskID string) (domain.TaskResult, error) {
	if !slices.Contains(domain.BuiltinTaskIDs, taskID) {
		return domain.TaskResult{}, fmt.Errorf("task %q: %w", taskID, domain.ErrNotFound)
	}
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return domain.TaskResult{}, err
	}
	if task == nil {
		cfg := s.config.Task(taskID)
		task = &domain.ScheduledTask{ID: taskID, Name: domain.TaskName(taskID), Interval: cfg.Interval, Enabled: cfg.Enabled}
	}
	if !s.acquire(taskID) {
		return domain.TaskResult{}, fmt.Errorf("task %q: %w", taskID, domain.ErrTaskRunning)
	}
	defer s.release(taskID)
	return s.execute(ctx, task), nil
}

// syncTasks brings the stored tasks in line with the configuration.
// Disabled tasks keep their state; unknown tasks are removed.
func (s *Scheduler) syncTasks(ctx context.Context) error {
	stored, err := s.store.ListTasks(ctx)
	if err != nil {
		return err
	}
	for _, task := range stored {
		if !slices.Contains(domain.BuiltinTaskIDs, task.ID) {
			s.log.Debug("removing stale task %s", task.ID)
			if err := s.store.DeleteTask(ctx, task.ID); err != nil {
				return err
			}
		}
	}

	for _, id := range domain.BuiltinTaskIDs {
		cfg := s.config.Task(id)
		task, err := s.store.GetTask(ctx, id)
		if err != nil {
			return err
		}
		switch {
		case task == nil && !cfg.Enabled:
			continue
		case task == nil:
			task = &domain.ScheduledTask{
				ID:       id,
				Name:     domain.TaskName(id),
				Interval: cfg.Interval,
				NextRun:  s.now().Add(cfg.Interval),
			}
		case cfg.Enabled && task.Interval != cfg.Interval:
			task.Interval = cfg.Interval
			task.NextRun = s.now().Add(cfg.Interval)
		}
		task.Enabled = cfg.Enabled
		if err := s.store.SaveTask(ctx, task); err != nil {
			return err
		}
	}
	return nil
}

// runDue starts every due task that is not already in flight.
func (s *Scheduler) runDue(ctx context.Context) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		s.log.Error("failed to list tasks: %v", err)
		return
	}

	now := s.now()
	for i := range tasks {
		task := tasks[i]
		if !task.Due(now) {
			continue
		}
		if !slices.Contains(domain.BuiltinTaskIDs, task.ID) {
			s.log.Warn("unknown task %s", task.ID)
			continue
		}
		if !s.acquire(task.ID) {
			s.log.Debug("%s still running, skipped", task.ID)
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.release(task.ID)
			s.execute(ctx, &task)
		}()
	}
}

func (s *Scheduler) acquire(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight[id] {
		return false
	}
	s.inflight[id] = true
	return true
}

func (s *Scheduler) release(id string) {
	s.mu.Lock()
	delete(s.inflight, id)
	s.mu.Unlock()
}

// execute runs one task and persists its new state and result.
func (s *Scheduler) execute(ctx context.Context, task *domain.ScheduledTask) domain.TaskResult {
	result := domain.TaskResult{TaskID: task.ID, StartedAt: s.now()}

	var err error
	switch task.ID {
	case domain.TaskIDIndexBatch:
		result.Items, err = s.runIndexBatch(ctx)
	case domain.TaskIDServerTasks:
		result.Items, err = s.runServerTasks(ctx)
	}
	result.EndedAt = s.now()
	if err != nil {
		result.Error = err.Error()
		s.log.Warn("%s failed: %v", task.ID, err)
	} else {
		s.log.Debug("%s handled %d items in %s", task.ID, result.Items, result.Duration())
	}

	task.Complete(result)
	if err := s.store.SaveTask(ctx, task); err != nil {
		s.log.Error("failed to save task %s: %v", task.ID, err)
	}
	if err := s.store.RecordResult(ctx, result); err != nil {
		s.log.Error("failed to record result for %s: %v", task.ID, err)
	}
	if err := s.store.PruneHistory(ctx, historyLimit); err != nil {
		s.log.Error("failed to prune history: %v", err)
	}
	return result
}

// runIndexBatch indexes one batch per index, each with its own cron limit.
func (s *Scheduler) runIndexBatch(ctx context.Context) (int, error) {
	if s.indexer == nil {
		return 0, nil
	}
	return s.indexer.IndexAll(ctx, 0)
}

func (s *Scheduler) runServerTasks(ctx context.Context) (int, error) {
	if s.replayer == nil {
		return 0, nil
	}
	return s.replayer.ExecuteServerTasks(ctx)
}
