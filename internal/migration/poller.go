package migration

import (
	"context"
	"sync"
	"time"

	"github.com/rflorenc/iot-device-migrator/internal/models"
)

// Snapshot is one poll of every migration the tool knows about. Each
// snapshot replaces the previous one.
type Snapshot struct {
	At      time.Time          `json:"at"`
	Jobs    []models.JobResult `json:"jobs"`
	HubJobs []models.HubJob    `json:"hubJobs"`
	Error   string             `json:"error,omitempty"`
}

// Snapshot lists remote migration jobs and local hub jobs. Failures are
// reported in the snapshot so a poll loop keeps going.
func (o *Orchestrator) Snapshot(ctx context.Context) Snapshot {
	snap := Snapshot{At: o.now(), Jobs: []models.JobResult{}, HubJobs: []models.HubJob{}}
	jobs, err := o.ListMigrationJobs(ctx)
	if err != nil {
		snap.Error = err.Error()
	} else {
		snap.Jobs = jobs
	}
	hubJobs, err := o.store.List(ctx)
	if err != nil && snap.Error == "" {
		snap.Error = err.Error()
	} else if err == nil {
		snap.HubJobs = hubJobs
	}
	return snap
}

// Poller calls fetch on a fixed interval until stopped.
type Poller[T any] struct {
	interval time.Duration
	fetch    func(context.Context) T

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPoller creates a stopped poller.
func NewPoller[T any](interval time.Duration, fetch func(context.Context) T) *Poller[T] {
	return &Poller[T]{interval: interval, fetch: fetch}
}

// Start polls once immediately and then every interval, delivering each
// result on the returned channel. The channel is closed when ctx ends or Stop
// is called. Starting a running poller restarts it.
func (p *Poller[T]) Start(ctx context.Context) <-chan T {
	p.Stop()

	ctx, cancel := context.WithCancel(ctx)
	out := make(chan T)
	done := make(chan struct{})

	p.mu.Lock()
	p.cancel = cancel
	p.done = done
	p.mu.Unlock()

	go func() {
		defer close(done)
		defer close(out)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			v := p.fetch(ctx)
			select {
			case out <- v:
			case <-ctx.Done():
				return
			}
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Stop ends polling and waits for the loop to exit.
func (p *Poller[T]) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
