package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"feedsift/app/feed"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

type SchedulerOpts struct {
	Interval        time.Duration
	WorkerCount     int
	FilterCacheSize int
	FeedErrorLimit  int

	// Upper bound for extracted article content length.
	ExtractedContentMaxLength int
}

// Scheduler runs a worker pool over a task queue and periodically
// enqueues processing work for every enabled feed.
type Scheduler struct {
	feedRepo         FeedStore
	entryRepo        EntryStore
	configCache      *feed.ConfigCache
	fetcher          *Fetcher
	parser           *feed.Parser
	deduplicator     *feed.Deduplicator
	contentExtractor *feed.ContentExtractor
	opts             SchedulerOpts
	ctx              context.Context
	cancel           context.CancelFunc
	wg               sync.WaitGroup
	taskQueue        chan TaskInterface
}

func NewScheduler(configCache *feed.ConfigCache, feedRepo FeedStore, entryRepo EntryStore,
	fetcher *Fetcher, parser *feed.Parser, deduplicator *feed.Deduplicator,
	contentExtractor *feed.ContentExtractor, opts SchedulerOpts) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	if opts.WorkerCount <= 0 {
		opts.WorkerCount = 1
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		feedRepo:         feedRepo,
		entryRepo:        entryRepo,
		configCache:      configCache,
		fetcher:          fetcher,
		parser:           parser,
		deduplicator:     deduplicator,
		contentExtractor: contentExtractor,
		opts:             opts,
		ctx:              ctx,
		cancel:           cancel,
		taskQueue:        make(chan TaskInterface, 300),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.opts.WorkerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.opts.Interval)
		defer ticker.Stop()

		s.enqueueStartupTasks()

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

// EnqueueSync schedules registration of a feed's configuration in the
// database.
func (s *Scheduler) EnqueueSync(feedConfig *feed.Config) error {
	return s.EnqueueTask(NewSyncFeedConfigTask(feedConfig.Name, feedConfig, s.feedRepo))
}

// EnqueueRefilter schedules a re-evaluation of all stored entries for a
// feed against its current rule set.
func (s *Scheduler) EnqueueRefilter(feedConfig *feed.Config) error {
	task := NewRefilterFeedTask(feedConfig.Name, feedConfig, s.buildFilterer(feedConfig), s.entryRepo)
	return s.EnqueueTask(task)
}

// buildFilterer compiles a feed's rule set. Filterers are immutable, so
// each task gets its own instance reflecting the config at enqueue time.
func (s *Scheduler) buildFilterer(feedConfig *feed.Config) *feed.Filterer {
	return feed.NewFilterer(feedConfig.Rules(), s.opts.FilterCacheSize)
}

func (s *Scheduler) newProcessTask(feedConfig *feed.Config) *ProcessFeedTask {
	return NewProcessFeedTask(feedConfig.Name, feedConfig, s.fetcher, s.parser, s.deduplicator,
		s.buildFilterer(feedConfig), s.feedRepo, s.entryRepo, s.opts.FeedErrorLimit)
}

func (s *Scheduler) enqueueStartupTasks() {
	feedConfigs := s.configCache.GetConfigs()
	if len(feedConfigs) == 0 {
		slog.Debug("No feed configurations found")
		return
	}

	slog.Debug("Processing feed configurations", "count", len(feedConfigs))

	for _, feedConfig := range feedConfigs {
		syncTask := NewSyncFeedConfigTask(feedConfig.Name, feedConfig, s.feedRepo)
		if err := s.EnqueueTask(syncTask); err != nil {
			slog.Warn("Failed to enqueue SyncFeedConfigTask", "feed", feedConfig.Name, "error", err)
			continue
		}

		if !feedConfig.Settings.Enabled {
			slog.Debug("Feed disabled, skipping ProcessFeedTask", "feed", feedConfig.Name)
			continue
		}

		if err := s.EnqueueTask(s.newProcessTask(feedConfig)); err != nil {
			slog.Warn("Failed to enqueue ProcessFeedTask", "feed", feedConfig.Name, "error", err)
		}
	}
}

func (s *Scheduler) enqueueTasks() {
	feedConfigs := s.configCache.GetEnabledConfigs()
	if len(feedConfigs) == 0 {
		slog.Debug("No enabled feed configurations found")
		return
	}

	slog.Debug("Checking enabled feeds for due work", "count", len(feedConfigs))

	for _, feedConfig := range feedConfigs {
		dbFeed, err := s.feedRepo.GetFeed(feedConfig.Name)
		if err != nil {
			slog.Warn("Failed to get feed from database, skipping", "feed", feedConfig.Name, "error", err)
			continue
		}
		if dbFeed == nil {
			slog.Warn("Feed not found in database, skipping", "feed", feedConfig.Name)
			continue
		}
		if !dbFeed.Enabled {
			slog.Debug("Feed disabled after repeated errors, skipping", "feed", feedConfig.Name)
			continue
		}

		now := time.Now().UTC()
		if dbFeed.NextFetchAt != nil && dbFeed.NextFetchAt.After(now) {
			slog.Debug("Feed not due for refresh yet", "feed", feedConfig.Name, "next_fetch_at", dbFeed.NextFetchAt)
		} else {
			if err := s.EnqueueTask(s.newProcessTask(feedConfig)); err != nil {
				slog.Warn("Failed to enqueue ProcessFeedTask", "feed", feedConfig.Name, "error", err)
			}
		}

		if feedConfig.Settings.ExtractContent {
			extractTask := NewExtractContentTask(feedConfig.Name, feedConfig, s.fetcher, s.parser,
				s.contentExtractor, s.entryRepo, s.opts.ExtractedContentMaxLength)
			if err := s.EnqueueTask(extractTask); err != nil {
				slog.Warn("Failed to enqueue ExtractContentTask", "feed", feedConfig.Name, "error", err)
			}
		}
	}
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
		return
	}

	slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()),
		"id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

	if !task.CanRetry() {
		slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(),
			"retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		return
	}

	task.IncrementRetryCount()
	retryDelay := time.Duration(1<<uint(task.GetRetryCount()-1)) * time.Second
	if retryDelay > 30*time.Second {
		retryDelay = 30 * time.Second
	}

	slog.Warn("Task retry scheduled", "type", string(task.GetType()), "feed", task.GetFeedName(),
		"retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

	go func() {
		select {
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
		case <-time.After(retryDelay):
			if retryErr := s.EnqueueTask(task); retryErr != nil {
				slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()),
					"id", task.GetID(), "error", retryErr)
			}
		}
	}()
}
