package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/emrgen/docgen/internal/job"
)

const DefaultLifecycleSchedule = "@daily"

// LifecycleTask runs the retention sweep on a cron schedule.
type LifecycleTask struct {
	lifecycle *job.Lifecycle
	schedule  string
	timeout   time.Duration

	mu   sync.Mutex
	last job.Stats
	runs int
}

func NewLifecycleTask(lifecycle *job.Lifecycle, schedule string, timeout time.Duration) *LifecycleTask {
	if schedule == "" {
		schedule = DefaultLifecycleSchedule
	}
	if timeout <= 0 {
		timeout = time.Hour
	}

	return &LifecycleTask{
		lifecycle: lifecycle,
		schedule:  schedule,
		timeout:   timeout,
	}
}

func (l *LifecycleTask) Name() string {
	return "lifecycle"
}

func (l *LifecycleTask) Schedule() string {
	return l.schedule
}

func (l *LifecycleTask) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	stats := l.lifecycle.Run(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.last = stats
	l.runs++
}

// Last returns the stats of the latest finished run and how many runs finished.
func (l *LifecycleTask) Last() (job.Stats, int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.last, l.runs
}
