// Package store persists HubJobs. The whole list is kept as one JSON array
// under a fixed key; every mutation reads, transforms and writes it back.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rflorenc/iot-device-migrator/internal/config"
	"github.com/rflorenc/iot-device-migrator/internal/models"
)

// Key is the storage key of the hub job list.
const Key = "iot-device-migrator.hub-jobs"

var (
	ErrNotFound          = errors.New("hub job not found")
	ErrInvalidTransition = errors.New("invalid hub job status transition")
)

// Store is an ordered list of HubJobs keyed by id.
type Store interface {
	List(ctx context.Context) ([]models.HubJob, error)
	Get(ctx context.Context, id string) (models.HubJob, error)
	// Append stores jobs in order, assigning ids and the pending status, and
	// returns them as stored.
	Append(ctx context.Context, jobs ...models.HubJob) ([]models.HubJob, error)
	// Update applies fn to the job with the given id. A status change must be
	// allowed by HubJobStatus.CanTransition.
	Update(ctx context.Context, id string, fn func(*models.HubJob) error) (models.HubJob, error)
	Close() error
}

// blob reads and writes the raw value stored under Key.
type blob interface {
	read(ctx context.Context) ([]byte, error) // nil when nothing is stored yet
	write(ctx context.Context, data []byte) error
	close() error
}

// New opens the backend selected in cfg.
func New(cfg config.StoreConfig) (Store, error) {
	switch cfg.Backend {
	case config.StoreMemory:
		return NewMemory(), nil
	case config.StoreFile:
		return NewFile(cfg.Dir)
	case config.StoreSQLite:
		return NewSQLite(cfg.Dir)
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}

type jobList struct {
	mu sync.Mutex
	b  blob
}

func (s *jobList) load(ctx context.Context) ([]models.HubJob, error) {
	data, err := s.b.read(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", Key, err)
	}
	jobs := []models.HubJob{}
	if len(data) == 0 {
		return jobs, nil
	}
	if err := json.Unmarshal(data, &jobs); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", Key, err)
	}
	return jobs, nil
}

func (s *jobList) save(ctx context.Context, jobs []models.HubJob) error {
	data, err := json.Marshal(jobs)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", Key, err)
	}
	if err := s.b.write(ctx, data); err != nil {
		return fmt.Errorf("writing %s: %w", Key, err)
	}
	return nil
}

func (s *jobList) List(ctx context.Context) ([]models.HubJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

func (s *jobList) Get(ctx context.Context, id string) (models.HubJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs, err := s.load(ctx)
	if err != nil {
		return models.HubJob{}, err
	}
	for _, j := range jobs {
		if j.ID == id {
			return j, nil
		}
	}
	return models.HubJob{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

func (s *jobList) Append(ctx context.Context, add ...models.HubJob) ([]models.HubJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	added := make([]models.HubJob, 0, len(add))
	for _, j := range add {
		j.ID = models.HubJobID(len(jobs))
		j.Status = models.HubJobPending
		jobs = append(jobs, j)
		added = append(added, j)
	}
	if err := s.save(ctx, jobs); err != nil {
		return nil, err
	}
	return added, nil
}

func (s *jobList) Update(ctx context.Context, id string, fn func(*models.HubJob) error) (models.HubJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs, err := s.load(ctx)
	if err != nil {
		return models.HubJob{}, err
	}
	for i := range jobs {
		if jobs[i].ID != id {
			continue
		}
		job := jobs[i]
		if job.Enrollment != nil {
			e := *job.Enrollment
			job.Enrollment = &e
		}
		if err := fn(&job); err != nil {
			return models.HubJob{}, err
		}
		job.ID = id
		// A running job may only finish.
		changed := job.Status != jobs[i].Status || job.Status == models.HubJobRunning
		if changed && !jobs[i].Status.CanTransition(job.Status) {
			return models.HubJob{}, fmt.Errorf("%w: %s from %s to %s", ErrInvalidTransition, id, jobs[i].Status, job.Status)
		}
		jobs[i] = job
		if err := s.save(ctx, jobs); err != nil {
			return models.HubJob{}, err
		}
		return job, nil
	}
	return models.HubJob{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

func (s *jobList) Close() error {
	return s.b.close()
}
