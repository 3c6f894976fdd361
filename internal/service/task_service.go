package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/web3-forum-api/internal/models"
)

// queueCapacity bounds how many tasks can wait for a worker before
// submissions degrade to synchronous execution.
const queueCapacity = 256

// taskService runs post/comment creation on a worker pool and keeps a
// pollable in-memory record per task. With zero workers configured it
// executes every submission synchronously, which keeps the task API
// usable on single-process deployments.
type taskService struct {
	forum ForumService
	log   zerolog.Logger

	workers   int
	retention time.Duration
	queue     chan *queuedTask

	mu    sync.RWMutex
	tasks map[string]*models.Task

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	runMu   sync.Mutex
	running bool

	now func() time.Time
}

type queuedTask struct {
	id  string
	run func(ctx context.Context) (interface{}, error)
}

func newTaskService(workers int, retention time.Duration, log zerolog.Logger) *taskService {
	if retention <= 0 {
		retention = time.Hour
	}

	s := &taskService{
		log:       log.With().Str("service", "task").Logger(),
		workers:   workers,
		retention: retention,
		tasks:     make(map[string]*models.Task),
		now:       time.Now,
	}
	if workers > 0 {
		s.queue = make(chan *queuedTask, queueCapacity)
	}

	log.Info().Int("workers", workers).Dur("retention", retention).Msg("Initializing task queue")
	return s
}

// SetForumService wires the forum orchestrator the workers delegate to.
// Must be called before any submission.
func (s *taskService) SetForumService(forum ForumService) {
	s.forum = forum
}

// StartProcessor launches the worker pool and the retention sweeper.
// It blocks until the context is cancelled or StopProcessor is called.
func (s *taskService) StartProcessor(ctx context.Context) {
	s.runMu.Lock()
	if s.running || s.workers == 0 {
		s.runMu.Unlock()
		return
	}
	s.running = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.runMu.Unlock()

	s.log.Info().Int("workers", s.workers).Msg("Task processor started")

	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			s.log.Info().Msg("Task processor stopping")
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// StopProcessor stops the workers and waits for in-flight tasks
func (s *taskService) StopProcessor() {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if !s.running {
		return
	}

	s.cancel()
	s.wg.Wait()
	s.running = false
	s.log.Info().Msg("Task processor stopped")
}

func (s *taskService) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case qt := <-s.queue:
			s.execute(s.ctx, qt)
		}
	}
}

func (s *taskService) execute(ctx context.Context, qt *queuedTask) {
	// Panic recovery so a malformed task cannot take the worker down
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Str("task_id", qt.id).Msg("Task panicked - recovered")
			s.finish(qt.id, nil, errInternal("task panicked"))
		}
	}()

	started := s.now()
	s.update(qt.id, func(t *models.Task) {
		t.Status = models.TaskStatusProcessing
		t.StartedAt = &started
	})

	result, err := qt.run(ctx)
	s.finish(qt.id, result, err)
}

func (s *taskService) finish(id string, result interface{}, err error) {
	completed := s.now()
	s.update(id, func(t *models.Task) {
		t.CompletedAt = &completed
		if err != nil {
			t.Status = models.TaskStatusFailed
			svcErr := AsServiceError(err)
			t.Error = svcErr.Message
			t.ErrorKind = string(svcErr.Kind)
			return
		}
		t.Status = models.TaskStatusCompleted
		t.Result = result
	})
}

func (s *taskService) update(id string, fn func(*models.Task)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[id]; ok {
		fn(t)
	}
}

// sweep drops finished tasks older than the retention window
func (s *taskService) sweep() {
	cutoff := s.now().Add(-s.retention)

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.tasks {
		if t.CompletedAt != nil && t.CompletedAt.Before(cutoff) {
			delete(s.tasks, id)
		}
	}
}

// SubmitPost queues a post creation and returns the pollable task.
// The transaction hash is required here even though synchronous creation
// may accept offline submissions: a queued task outlives the HTTP
// request, so replay protection must be resolvable at execution time.
func (s *taskService) SubmitPost(ctx context.Context, req *models.CreatePostRequest) (*models.Task, error) {
	if req.TransactionHash == "" {
		return nil, errInvalidInputMsg("blockchain_transaction_hash is required for queued submissions")
	}
	return s.submit(ctx, models.TaskTypeCreatePost, func(ctx context.Context) (interface{}, error) {
		return s.forum.CreatePost(ctx, req)
	})
}

// SubmitComment queues a comment creation and returns the pollable task
func (s *taskService) SubmitComment(ctx context.Context, req *models.CreateCommentRequest) (*models.Task, error) {
	if req.TransactionHash == "" {
		return nil, errInvalidInputMsg("blockchain_transaction_hash is required for queued submissions")
	}
	return s.submit(ctx, models.TaskTypeCreateComment, func(ctx context.Context) (interface{}, error) {
		return s.forum.CreateComment(ctx, req)
	})
}

func (s *taskService) submit(ctx context.Context, typ models.TaskType, run func(ctx context.Context) (interface{}, error)) (*models.Task, error) {
	task := &models.Task{
		ID:          uuid.NewString(),
		Type:        typ,
		Status:      models.TaskStatusPending,
		SubmittedAt: s.now(),
	}

	s.mu.Lock()
	s.tasks[task.ID] = task
	s.mu.Unlock()

	qt := &queuedTask{id: task.ID, run: run}

	if s.queue != nil {
		select {
		case s.queue <- qt:
			return s.snapshot(task.ID), nil
		default:
			s.log.Warn().Str("task_id", task.ID).Msg("Task queue full, executing synchronously")
		}
	}

	// Zero workers or queue full: run it on the caller's request
	s.execute(ctx, qt)
	return s.snapshot(task.ID), nil
}

// GetTask retrieves one task by ID
func (s *taskService) GetTask(ctx context.Context, id string) (*models.Task, error) {
	task := s.snapshot(id)
	if task == nil {
		return nil, errNotFound("task %s not found", id)
	}
	return task, nil
}

func (s *taskService) snapshot(id string) *models.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil
	}
	cp := *t
	return &cp
}
