package systems

import (
	"errors"
	"fmt"
	"sync"

	"github.com/spaghettifunk/anima2d/engine/core"
)

// JobTask is a unit of CPU work. Run executes on a worker goroutine and
// must not touch the graphics context; OnComplete and OnFailure run on the
// goroutine that calls Update.
type JobTask struct {
	Name       string
	Run        func() (interface{}, error)
	OnComplete func(result interface{})
	OnFailure  func(err error)
}

type jobResult struct {
	task   JobTask
	result interface{}
	err    error
}

// JobSystem runs tasks on a fixed pool of workers and hands their results
// back to the frame goroutine.
type JobSystem struct {
	numWorkers int
	jobQueue   chan JobTask
	wg         sync.WaitGroup

	// held for reading while sending so Shutdown never closes the queue
	// under a sender
	sendMu sync.RWMutex

	mu       sync.Mutex
	closed   bool
	pending  int
	finished []jobResult
}

var (
	ErrNoWorkers           = errors.New("attempting to create worker pool with less than 1 worker")
	ErrNegativeChannelSize = errors.New("attempting to create worker pool with a negative channel size")
	ErrJobSystemClosed     = errors.New("job system already shut down")
)

func NewJobSystem(numWorkers int, channelSize int) (*JobSystem, error) {
	if numWorkers <= 0 {
		return nil, ErrNoWorkers
	}
	if channelSize < 0 {
		return nil, ErrNegativeChannelSize
	}

	js := &JobSystem{
		numWorkers: numWorkers,
		jobQueue:   make(chan JobTask, channelSize),
	}
	js.start()
	return js, nil
}

func (js *JobSystem) start() {
	for i := 0; i < js.numWorkers; i++ {
		js.wg.Add(1)
		go func() {
			defer js.wg.Done()
			for job := range js.jobQueue {
				res := jobResult{task: job}
				res.result, res.err = job.Run()
				if res.err != nil {
					core.LogError("job %s failed: %s", job.Name, res.err)
				}
				js.mu.Lock()
				js.finished = append(js.finished, res)
				js.mu.Unlock()
			}
		}()
	}
}

// Shutdown waits for queued jobs to run. Their callbacks are dropped.
func (js *JobSystem) Shutdown() error {
	js.sendMu.Lock()
	js.mu.Lock()
	if js.closed {
		js.mu.Unlock()
		js.sendMu.Unlock()
		return nil
	}
	js.closed = true
	js.mu.Unlock()
	close(js.jobQueue)
	js.sendMu.Unlock()

	js.wg.Wait()

	js.mu.Lock()
	js.finished = nil
	js.pending = 0
	js.mu.Unlock()
	return nil
}

// Update delivers the results of finished jobs and returns how many were
// delivered. Should happen once an update cycle.
func (js *JobSystem) Update() int {
	js.mu.Lock()
	finished := js.finished
	js.finished = nil
	js.pending -= len(finished)
	js.mu.Unlock()

	for _, res := range finished {
		if res.err != nil {
			if res.task.OnFailure != nil {
				res.task.OnFailure(res.err)
			}
			continue
		}
		if res.task.OnComplete != nil {
			res.task.OnComplete(res.result)
		}
	}
	return len(finished)
}

// Pending returns the number of submitted jobs whose results were not
// delivered yet.
func (js *JobSystem) Pending() int {
	js.mu.Lock()
	defer js.mu.Unlock()
	return js.pending
}

// AddWorkNonBlocking queues the job from a new goroutine and returns
// immediately.
func (js *JobSystem) AddWorkNonBlocking(jt JobTask) {
	go func() {
		if err := js.Submit(jt); err != nil {
			core.LogWarn("job %s dropped: %s", jt.Name, err)
		}
	}()
}

// Submit queues the job, blocking while the queue is full.
func (js *JobSystem) Submit(jt JobTask) error {
	if jt.Run == nil {
		return fmt.Errorf("job %s has nothing to run", jt.Name)
	}
	js.sendMu.RLock()
	defer js.sendMu.RUnlock()

	js.mu.Lock()
	if js.closed {
		js.mu.Unlock()
		return ErrJobSystemClosed
	}
	js.pending++
	js.mu.Unlock()

	js.jobQueue <- jt
	return nil
}
