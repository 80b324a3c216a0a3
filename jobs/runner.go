// Package jobs runs at most one long job at a time.
//
// The Runner's state lives in a single goroutine.  Submissions, completions and status queries
// reach it over channels; a submission while a job is running is turned down, never queued.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/toothbrush/epi-contentful-sync/notify"
)

// ErrBusy is returned by Submit while another job runs.
var ErrBusy = errors.New("jobs: a job is already running")

// ErrStopped is returned by Submit once the runner shut down.
var ErrStopped = errors.New("jobs: runner stopped")

type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

type State int

const (
	Idle State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "idle"
}

type Status struct {
	State   State
	JobID   string
	JobName string
	Started time.Time
}

type submission struct {
	job   Job
	reply chan submitReply
}

type submitReply struct {
	id  string
	err error
}

type completion struct {
	id  string
	err error
}

type Runner struct {
	Logger   *log.Logger
	Notifier notify.Notifier

	submit  chan submission
	done    chan completion
	status  chan chan Status
	stopped chan struct{}
}

// NewRunner starts the runner's goroutine.  Cancelling ctx cancels the running job and stops the
// runner once that job returned; Stopped is closed then.
func NewRunner(ctx context.Context, logger *log.Logger, notifier notify.Notifier) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	r := &Runner{
		Logger:   logger,
		Notifier: notifier,
		submit:   make(chan submission),
		done:     make(chan completion),
		status:   make(chan chan Status),
		stopped:  make(chan struct{}),
	}
	go r.loop(ctx)
	return r
}

// Submit starts job and returns its ID, or ErrBusy when a job is running.
func (r *Runner) Submit(job Job) (string, error) {
	reply := make(chan submitReply, 1)
	select {
	case r.submit <- submission{job: job, reply: reply}:
	case <-r.stopped:
		return "", ErrStopped
	}
	res := <-reply
	return res.id, res.err
}

func (r *Runner) Status() Status {
	reply := make(chan Status, 1)
	select {
	case r.status <- reply:
		return <-reply
	case <-r.stopped:
		return Status{State: Idle}
	}
}

// Stopped is closed when the runner has shut down.
func (r *Runner) Stopped() <-chan struct{} {
	return r.stopped
}

func (r *Runner) loop(ctx context.Context) {
	defer close(r.stopped)

	current := Status{State: Idle}
	cancel := func() {}

	for {
		select {
		case sub := <-r.submit:
			if current.State == Running {
				sub.reply <- submitReply{err: ErrBusy}
				continue
			}

			id := uuid.NewString()
			var jobCtx context.Context
			jobCtx, cancel = context.WithCancel(ctx)
			current = Status{State: Running, JobID: id, JobName: sub.job.Name, Started: time.Now()}

			go r.execute(jobCtx, id, sub.job)
			sub.reply <- submitReply{id: id}

		case c := <-r.done:
			cancel()
			outcome := notify.JobFinished
			if c.err != nil {
				outcome = notify.JobFailed
			}
			r.Logger.Printf("Job %s (%s) %s after %s", c.id, current.JobName, outcome, time.Since(current.Started).Round(time.Second))
			current = Status{State: Idle}

		case reply := <-r.status:
			reply <- current

		case <-ctx.Done():
			cancel()
			if current.State == Running {
				r.Logger.Printf("Waiting for job %s (%s) to stop", current.JobID, current.JobName)
				<-r.done
			}
			return
		}
	}
}

// execute runs job and reports back to the loop.  Panics become errors.  Events are sent from
// here so a slow notifier never holds up the loop.
func (r *Runner) execute(ctx context.Context, id string, job Job) {
	var err error
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("jobs: job panicked: %v\n%s", p, debug.Stack())
		}
		event := notify.Event{Type: notify.JobFinished, JobID: id, Name: job.Name}
		if err != nil {
			event.Type = notify.JobFailed
			event.Error = err.Error()
		}
		r.notify(event)
		r.done <- completion{id: id, err: err}
	}()
	r.notify(notify.Event{Type: notify.JobStarted, JobID: id, Name: job.Name})
	err = job.Run(ctx)
}

func (r *Runner) notify(event notify.Event) {
	if r.Notifier == nil {
		return
	}
	event.At = time.Now().UTC()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Notifier.Notify(ctx, event); err != nil {
		r.Logger.Printf("Couldn't send %s event for job %s: %v", event.Type, event.JobID, err)
	}
}
