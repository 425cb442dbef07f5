package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"feedgarden/app/cfg"
	"feedgarden/app/database"
	"feedgarden/app/feed"
	"feedgarden/app/fetch"
	"feedgarden/app/proxy"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

type Scheduler struct {
	sources       database.SourceRepository
	tags          database.TagRepository
	proxies       database.ProxyRepository
	pool          *proxy.Pool
	fetcher       *fetch.Fetcher
	parser        *feed.Parser
	ingester      *feed.Ingester
	subscriptions string
	interval      time.Duration
	pollBatch     int
	maxFailures   int
	maxBackoff    time.Duration
	workerCount   int
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	taskQueue     chan TaskInterface

	// inFlight holds the sources with a poll task somewhere between
	// enqueue and completion, retries included. A reserved source is
	// never enqueued again, so two polls can't run for the same source.
	mu       sync.Mutex
	inFlight map[int64]struct{}
}

func NewScheduler(sources database.SourceRepository, tags database.TagRepository,
	proxies database.ProxyRepository, pool *proxy.Pool, fetcher *fetch.Fetcher,
	parser *feed.Parser, ingester *feed.Ingester) TaskSchedulerInterface {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := cfg.Get()

	return &Scheduler{
		sources:       sources,
		tags:          tags,
		proxies:       proxies,
		pool:          pool,
		fetcher:       fetcher,
		parser:        parser,
		ingester:      ingester,
		subscriptions: cfg.Subscriptions,
		interval:      time.Duration(cfg.SchedulerInterval) * time.Second,
		pollBatch:     cfg.PollBatch,
		maxFailures:   cfg.MaxFailures,
		maxBackoff:    time.Duration(cfg.MaxBackoff) * time.Second,
		workerCount:   cfg.WorkerCount,
		ctx:           ctx,
		cancel:        cancel,
		taskQueue:     make(chan TaskInterface, 300),
		inFlight:      make(map[int64]struct{}),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.runStartupTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueTasks()
			}
		}
	}()

}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	close(s.taskQueue)
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

// runStartupTasks syncs the subscriptions file and dispatches the first
// poll round. The sync runs inline so sources declared in the file exist
// before due selection happens.
func (s *Scheduler) runStartupTasks() {
	syncTask := NewSyncSourcesTask(s.subscriptions, s.sources, s.tags, s.proxies, s.pool)
	syncTask.Start()
	if err := syncTask.Execute(s.ctx); err != nil {
		slog.Error("Subscription sync failed", "path", s.subscriptions, "error", err)
	}

	s.enqueueTasks()
}

func (s *Scheduler) enqueueTasks() {
	ctx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
	defer cancel()

	due, err := s.sources.GetDueSources(ctx, time.Now().UTC(), s.pollBatch)
	if err != nil {
		slog.Error("Failed to select due sources", "error", err)
		return
	}
	if len(due) == 0 {
		slog.Debug("No sources due for polling")
		return
	}

	slog.Debug("Dispatching due sources", "count", len(due))

	for i := range due {
		src := &due[i]
		if !s.reserve(src.ID) {
			slog.Debug("Source poll already in flight, skipping", "source", src.DisplayName())
			continue
		}

		pollTask := NewPollSourceTask(src.ID, src.DisplayName(), s.sources, s.fetcher, s.parser, s.ingester, s.maxFailures, s.maxBackoff)
		if err := s.EnqueueTask(pollTask); err != nil {
			s.release(src.ID)
			slog.Warn("Failed to enqueue PollSourceTask", "source", src.DisplayName(), "error", err)
		}
	}
}

// reserve marks a source as having a poll in flight. It reports false when
// the source is already reserved.
func (s *Scheduler) reserve(sourceID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.inFlight[sourceID]; busy {
		return false
	}
	s.inFlight[sourceID] = struct{}{}
	return true
}

func (s *Scheduler) release(sourceID int64) {
	if sourceID == 0 {
		return
	}
	s.mu.Lock()
	delete(s.inFlight, sourceID)
	s.mu.Unlock()
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task, ok := <-s.taskQueue:
			if !ok {
				return
			}
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, 5*time.Minute)
	defer cancel()

	err := task.Execute(taskCtx)

	if err == nil {
		s.release(task.GetSourceID())
		return
	}

	slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

	if !task.CanRetry() {
		slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		s.release(task.GetSourceID())
		return
	}

	task.IncrementRetryCount()
	retryDelay := time.Duration(1<<uint(task.GetRetryCount()-1)) * time.Second
	if retryDelay > 30*time.Second {
		retryDelay = 30 * time.Second
	}

	slog.Warn("Task retry scheduled", "type", string(task.GetType()), "source", task.GetSourceName(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

	go func() {
		time.Sleep(retryDelay)
		select {
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
			s.release(task.GetSourceID())
			return
		default:
			if retryErr := s.EnqueueTask(task); retryErr != nil {
				slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
				s.release(task.GetSourceID())
			}
		}
	}()
}
