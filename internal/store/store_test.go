package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rflorenc/iot-device-migrator/internal/config"
	"github.com/rflorenc/iot-device-migrator/internal/models"
)

func backends(t *testing.T) map[string]func() Store {
	return map[string]func() Store{
		"memory": NewMemory,
		"file": func() Store {
			s, err := NewFile(t.TempDir())
			require.NoError(t, err)
			return s
		},
		"sqlite": func() Store {
			s, err := NewSQLite(t.TempDir())
			require.NoError(t, err)
			return s
		},
	}
}

func hubJob(hub string) models.HubJob {
	return models.HubJob{
		HubName: hub,
		HubHost: hub + ".azure-devices.net",
		AppHost: "contoso.azureiotcentral.com",
		Status:  models.HubJobRunning, // overwritten on append
	}
}

func TestStore_AppendAssignsIDs(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open()
			defer s.Close()
			ctx := context.Background()

			jobs, err := s.List(ctx)
			require.NoError(t, err)
			require.Empty(t, jobs)

			added, err := s.Append(ctx, hubJob("hubA"), hubJob("hubB"))
			require.NoError(t, err)
			require.Equal(t, "dps-to-central-0", added[0].ID)
			require.Equal(t, "dps-to-central-1", added[1].ID)
			require.Equal(t, models.HubJobPending, added[0].Status)

			added, err = s.Append(ctx, hubJob("hubC"))
			require.NoError(t, err)
			require.Equal(t, "dps-to-central-2", added[0].ID)

			jobs, err = s.List(ctx)
			require.NoError(t, err)
			require.Len(t, jobs, 3)
			require.Equal(t, []string{"hubA", "hubB", "hubC"}, []string{jobs[0].HubName, jobs[1].HubName, jobs[2].HubName})
		})
	}
}

func TestStore_UpdateTransitions(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open()
			defer s.Close()
			ctx := context.Background()

			added, err := s.Append(ctx, hubJob("hubA"))
			require.NoError(t, err)
			id := added[0].ID

			setStatus := func(st models.HubJobStatus) error {
				_, err := s.Update(ctx, id, func(j *models.HubJob) error {
					j.Status = st
					return nil
				})
				return err
			}

			require.ErrorIs(t, setStatus(models.HubJobCompleted), ErrInvalidTransition)
			require.NoError(t, setStatus(models.HubJobRunning))
			require.ErrorIs(t, setStatus(models.HubJobRunning), ErrInvalidTransition)
			require.ErrorIs(t, setStatus(models.HubJobPending), ErrInvalidTransition)
			require.NoError(t, setStatus(models.HubJobFailed))
			require.ErrorIs(t, setStatus(models.HubJobRunning), ErrInvalidTransition)

			got, err := s.Get(ctx, id)
			require.NoError(t, err)
			require.Equal(t, models.HubJobFailed, got.Status)
		})
	}
}

func TestStore_UpdateNotFound(t *testing.T) {
	s := NewMemory()
	_, err := s.Update(context.Background(), "dps-to-central-9", func(*models.HubJob) error { return nil })
	require.ErrorIs(t, err, ErrNotFound)

	_, err = s.Get(context.Background(), "dps-to-central-9")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStore_UpdateFnErrorLeavesJob(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	added, err := s.Append(ctx, hubJob("hubA"))
	require.NoError(t, err)

	_, err = s.Update(ctx, added[0].ID, func(j *models.HubJob) error {
		j.Enrollment = &models.EnrollmentGroup{PrimaryKey: "p"}
		return os.ErrInvalid
	})
	require.ErrorIs(t, err, os.ErrInvalid)

	got, err := s.Get(ctx, added[0].ID)
	require.NoError(t, err)
	require.Nil(t, got.Enrollment)
}

func TestStore_ConcurrentUpdates(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	var jobs []models.HubJob
	for i := 0; i < 8; i++ {
		jobs = append(jobs, hubJob("hub"))
	}
	added, err := s.Append(ctx, jobs...)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, j := range added {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := s.Update(ctx, id, func(j *models.HubJob) error {
				j.Status = models.HubJobRunning
				return nil
			})
			if err != nil {
				t.Error(err)
			}
		}(j.ID)
	}
	wg.Wait()

	all, err := s.List(ctx)
	require.NoError(t, err)
	for _, j := range all {
		require.Equal(t, models.HubJobRunning, j.Status, j.ID)
	}
}

func TestFileStore_Layout(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFile(dir)
	require.NoError(t, err)
	_, err = s.Append(context.Background(), hubJob("hubA"))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "iot-device-migrator.hub-jobs.json"))
	require.NoError(t, err)
	var stored []map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &stored))
	require.Len(t, stored, 1)
	require.Equal(t, "pending", stored[0]["status"])

	reopened, err := NewFile(dir)
	require.NoError(t, err)
	jobs, err := reopened.List(context.Background())
	require.NoError(t, err)
	require.Len(t, jobs, 1)
}

func TestNew(t *testing.T) {
	s, err := New(config.StoreConfig{Backend: config.StoreMemory})
	require.NoError(t, err)
	require.NotNil(t, s)

	_, err = New(config.StoreConfig{Backend: "etcd"})
	require.Error(t, err)
}
