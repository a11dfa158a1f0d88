// Package jobs schedules background work on a cron and keeps each job from
// overlapping with its own previous run.
package jobs

import (
	"fmt"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	cron "github.com/robfig/cron"
	"github.com/sirupsen/logrus"
)

type Job interface {
	Run()
}

type CronJob interface {
	Schedule() string
	Job
}

// Named jobs are logged by name.
type Named interface {
	Name() string
}

type TaskExecutor struct {
	cron            *cron.Cron
	jobs            []Job
	cronJobs        []CronJob
	runningJobs     mapset.Set[Job]
	runningCronJobs mapset.Set[CronJob]
	muJobs          sync.Mutex
	muCronJobs      sync.Mutex
}

func NewTaskExecutor(jobs []Job, cronJobs []CronJob) *TaskExecutor {
	return &TaskExecutor{
		cron:            cron.New(),
		jobs:            jobs,
		cronJobs:        cronJobs,
		runningCronJobs: mapset.NewSet[CronJob](),
		runningJobs:     mapset.NewSet[Job](),
	}
}

// Run registers every job with the cron and starts it. Plain jobs run every second.
func (t *TaskExecutor) Run() error {
	for _, job := range t.cronJobs {
		job := job
		if err := t.cron.AddFunc(job.Schedule(), func() { t.runCron(job) }); err != nil {
			return fmt.Errorf("schedule %s: %w", name(job), err)
		}
		logrus.Infof("scheduled %s at %q", name(job), job.Schedule())
	}

	for _, job := range t.jobs {
		job := job
		if err := t.cron.AddFunc("@every 1s", func() { t.runJob(job) }); err != nil {
			return fmt.Errorf("schedule %s: %w", name(job), err)
		}
	}

	t.cron.Start()
	return nil
}

// runCron runs job unless its previous run is still going. It reports whether job ran.
func (t *TaskExecutor) runCron(job CronJob) bool {
	t.muCronJobs.Lock()
	if t.runningCronJobs.Contains(job) {
		t.muCronJobs.Unlock()
		logrus.Warnf("%s is still running, skipping this run", name(job))
		return false
	}
	t.runningCronJobs.Add(job)
	t.muCronJobs.Unlock()

	defer func() {
		t.muCronJobs.Lock()
		defer t.muCronJobs.Unlock()
		t.runningCronJobs.Remove(job)
	}()

	job.Run()
	return true
}

func (t *TaskExecutor) runJob(job Job) bool {
	t.muJobs.Lock()
	if t.runningJobs.Contains(job) {
		t.muJobs.Unlock()
		return false
	}
	t.runningJobs.Add(job)
	t.muJobs.Unlock()

	defer func() {
		t.muJobs.Lock()
		defer t.muJobs.Unlock()
		t.runningJobs.Remove(job)
	}()

	job.Run()
	return true
}

func (t *TaskExecutor) Stop() {
	logrus.Infof("stopping all tasks")
	t.cron.Stop()
}

func name(job Job) string {
	if n, ok := job.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", job)
}
