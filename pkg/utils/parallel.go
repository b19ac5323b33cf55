package utils

import "sync"

// ParallelExecutor runs tasks with a bounded number of concurrent workers
type ParallelExecutor struct {
	wg        sync.WaitGroup
	semaphore chan struct{}
}

// NewParallelExecutor creates a ParallelExecutor. maxWorkers below 1 is treated as 1.
func NewParallelExecutor(maxWorkers int) *ParallelExecutor {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &ParallelExecutor{
		semaphore: make(chan struct{}, maxWorkers),
	}
}

// Execute schedules task, blocking while all workers are busy.
// With a single worker tasks run one after another in submission order.
func (p *ParallelExecutor) Execute(task func()) {
	p.semaphore <- struct{}{}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() { <-p.semaphore }()
		task()
	}()
}

// Wait blocks until all scheduled tasks are done
func (p *ParallelExecutor) Wait() {
	p.wg.Wait()
}
