package tasks

// TaskSchedulerInterface defines the interface for task scheduling operations.
// Used by the main application to manage background polling.
// This interface provides task queue management and worker pool control.
// Example usage:
//
//	scheduler := NewScheduler(sources, tags, proxies, pool, fetcher, parser, ingester)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.EnqueueTask(NewPollSourceTask(...))
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}
