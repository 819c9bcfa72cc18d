package future

import "sync"

// Scheduler runs continuations outside the call that produced them. Tasks
// must run one at a time in the order they were scheduled.
type Scheduler interface {
	Schedule(task func())
}

// SchedulerFunc adapts a function to Scheduler.
type SchedulerFunc func(task func())

// Schedule implements Scheduler.
func (fn SchedulerFunc) Schedule(task func()) {
	if fn != nil {
		fn(task)
	}
}

// Queue is a cooperative FIFO scheduler: tasks accumulate until Drain is
// called. Schedule is safe for concurrent use.
type Queue struct {
	mu    sync.Mutex
	tasks []func()
}

// NewQueue returns an empty Queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Schedule appends task.
func (q *Queue) Schedule(task func()) {
	if task == nil {
		return
	}
	q.mu.Lock()
	q.tasks = append(q.tasks, task)
	q.mu.Unlock()
}

// Len returns the number of queued tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Drain runs queued tasks, including tasks scheduled while draining, until
// the queue is empty. It returns the number of tasks run.
func (q *Queue) Drain() int {
	ran := 0
	for {
		q.mu.Lock()
		if len(q.tasks) == 0 {
			q.mu.Unlock()
			return ran
		}
		task := q.tasks[0]
		q.tasks[0] = nil
		q.tasks = q.tasks[1:]
		q.mu.Unlock()

		task()
		ran++
	}
}

// Serial runs tasks on a single background goroutine in FIFO order.
type Serial struct {
	mu     sync.Mutex
	cond   *sync.Cond
	tasks  []func()
	closed bool
	done   chan struct{}
}

// NewSerial starts a Serial worker.
func NewSerial() *Serial {
	s := &Serial{done: make(chan struct{})}
	s.cond = sync.NewCond(&s.mu)
	go s.run()
	return s
}

// Schedule appends task. Tasks scheduled after Close are dropped.
func (s *Serial) Schedule(task func()) {
	if task == nil {
		return
	}
	s.mu.Lock()
	if !s.closed {
		s.tasks = append(s.tasks, task)
		s.cond.Signal()
	}
	s.mu.Unlock()
}

// Close stops the worker after the queued tasks have run.
func (s *Serial) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.done
		return
	}
	s.closed = true
	s.cond.Signal()
	s.mu.Unlock()
	<-s.done
}

func (s *Serial) run() {
	defer close(s.done)
	for {
		s.mu.Lock()
		for len(s.tasks) == 0 && !s.closed {
			s.cond.Wait()
		}
		if len(s.tasks) == 0 && s.closed {
			s.mu.Unlock()
			return
		}
		task := s.tasks[0]
		s.tasks[0] = nil
		s.tasks = s.tasks[1:]
		s.mu.Unlock()

		task()
	}
}

var (
	defaultOnce      sync.Once
	defaultScheduler Scheduler
)

// Default returns a process-wide Serial scheduler, used when New receives a
// nil scheduler.
func Default() Scheduler {
	defaultOnce.Do(func() {
		defaultScheduler = NewSerial()
	})
	return defaultScheduler
}
