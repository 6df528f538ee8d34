package ws

import (
	"context"
	"log"
	"sync"
	"time"

	"ridehub/internal/app/ds"
)

// Task is one long-lived background loop. It must return promptly once
// ctx is canceled.
type Task func(ctx context.Context)

// Scheduler owns the hub's periodic tasks. Every task added before
// Start is tracked; Stop cancels the group and blocks until every task
// has returned, so no periodic work survives a controlled shutdown.
type Scheduler struct {
	mu      sync.Mutex
	tasks   []namedTask
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

type namedTask struct {
	name string
	run  Task
}

func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Add registers a task. Panics if the scheduler already started; the
// task set is fixed at startup.
func (s *Scheduler) Add(name string, task Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		panic("scheduler: Add after Start")
	}
	s.tasks = append(s.tasks, namedTask{name: name, run: task})
}

// Start launches every registered task.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	for _, t := range s.tasks {
		t := t
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			log.Printf("WS--> background task %q started", t.name)
			t.run(ctx)
			log.Printf("WS--> background task %q stopped", t.name)
		}()
	}
}

// Stop cancels all tasks and waits for them to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

// HeartbeatTask broadcasts a server ping to every connection at the
// given interval.
func HeartbeatTask(hub *Hub, interval time.Duration) Task {
	return func(ctx context.Context) {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				hub.BroadcastJSON(ds.Heartbeat{ClientType: "server", Msg: "ping"})
			case <-ctx.Done():
				return
			}
		}
	}
}
