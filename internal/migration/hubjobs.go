package migration

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rflorenc/iot-device-migrator/internal/logger"
	"github.com/rflorenc/iot-device-migrator/internal/models"
	"github.com/rflorenc/iot-device-migrator/internal/platform"
	"github.com/rflorenc/iot-device-migrator/internal/sas"
)

// HubJobs lists the stored hub jobs in creation order.
func (o *Orchestrator) HubJobs(ctx context.Context) ([]models.HubJob, error) {
	return o.store.List(ctx)
}

// HubJob returns one stored hub job.
func (o *Orchestrator) HubJob(ctx context.Context, id string) (models.HubJob, error) {
	return o.store.Get(ctx, id)
}

// SetEnrollment merges the given target enrollment keys into a pending hub
// job. Either key may be set on its own.
func (o *Orchestrator) SetEnrollment(ctx context.Context, id string, keys models.EnrollmentKeys) (models.HubJob, error) {
	return o.store.Update(ctx, id, func(j *models.HubJob) error {
		if j.Status != models.HubJobPending {
			return models.NewAPIError("Invalid hub job",
				fmt.Sprintf("Hub job %s is %s; enrollment keys can only be changed while it is pending.", j.ID, j.Status))
		}
		if j.Enrollment == nil {
			j.Enrollment = &models.EnrollmentGroup{}
		}
		keys.Merge(j.Enrollment)
		return nil
	})
}

// readyToRun returns an APIError explaining why job cannot be run, or nil.
func readyToRun(job models.HubJob) error {
	if job.Status != models.HubJobPending {
		return models.NewAPIError("Invalid hub job", fmt.Sprintf("Hub job %s is %s and cannot be run again.", job.ID, job.Status))
	}
	if !job.Enrollment.HasKeys() {
		return models.NewAPIError("Enrollment error",
			fmt.Sprintf("Set the primary and secondary enrollment keys of %s before running hub job %s.", job.AppHost, job.ID))
	}
	return nil
}

// ClaimHubJob moves a pending hub job with both keys set to running. The
// check and the write happen under one store update, so only one caller can
// claim a job.
func (o *Orchestrator) ClaimHubJob(ctx context.Context, id string) (models.HubJob, error) {
	return o.store.Update(ctx, id, func(j *models.HubJob) error {
		if err := readyToRun(*j); err != nil {
			return err
		}
		j.Status = models.HubJobRunning
		return nil
	})
}

// RunHubJob claims the job and runs it, see RunClaimedHubJob.
func (o *Orchestrator) RunHubJob(ctx context.Context, id string, log func(string)) (models.HubJob, error) {
	job, err := o.ClaimHubJob(ctx, id)
	if err != nil {
		return job, err
	}
	return o.RunClaimedHubJob(ctx, job, log)
}

// RunClaimedHubJob moves every device of the job's hub to the target
// application: enroll the keys on the application, then call DeviceMove on
// all devices at once. The job ends failed if any device call fails.
func (o *Orchestrator) RunClaimedHubJob(ctx context.Context, job models.HubJob, log func(string)) (models.HubJob, error) {
	id := job.ID
	group, runErr := o.moveHubDevices(ctx, job, log)
	if runErr != nil {
		slog.Error("Hub job failed", "id", id, logger.Err(runErr))
		failed, err := o.setStatus(context.WithoutCancel(ctx), id, models.HubJobFailed, nil)
		if err != nil {
			slog.Error("Failed to record hub job failure", "id", id, logger.Err(err))
		}
		return failed, runErr
	}

	log("All devices of " + job.HubHost + " received " + models.DeviceMoveCommand)
	return o.setStatus(context.WithoutCancel(ctx), id, models.HubJobCompleted, &group)
}

func (o *Orchestrator) setStatus(ctx context.Context, id string, status models.HubJobStatus, enrollment *models.EnrollmentGroup) (models.HubJob, error) {
	return o.store.Update(ctx, id, func(j *models.HubJob) error {
		j.Status = status
		if enrollment != nil {
			j.Enrollment = enrollment
		}
		return nil
	})
}

func (o *Orchestrator) moveHubDevices(ctx context.Context, job models.HubJob, log func(string)) (models.EnrollmentGroup, error) {
	log("Reading " + platform.HubOwnerPolicy + " key of " + job.HubName)
	key, err := o.svc.HubOwnerKey(ctx, job.HubID)
	if err != nil {
		return models.EnrollmentGroup{}, fmt.Errorf("reading %s key: %w", platform.HubOwnerPolicy, err)
	}
	token, err := sas.Generate(job.HubHost, key, platform.HubOwnerPolicy, o.now())
	if err != nil {
		return models.EnrollmentGroup{}, err
	}
	hub := o.svc.Hub(job.HubHost, token)

	devices, err := hub.ListDevices(ctx)
	if err != nil {
		return models.EnrollmentGroup{}, err
	}
	log(fmt.Sprintf("Found %d devices in %s", len(devices), job.HubHost))

	log("Creating enrollment group on " + job.AppHost)
	group, err := o.svc.Central(job.AppHost).CreateOrGetEnrollmentGroup(ctx, *job.Enrollment)
	if err != nil {
		return models.EnrollmentGroup{}, err
	}
	log("Target id scope " + group.IDScope)

	payload := models.DeviceMovePayload{IDScope: group.IDScope, DeviceTemplateID: job.TemplateID}
	err = runConcurrentList(devices, func(d models.Device) error {
		return hub.InvokeDeviceMove(ctx, d.DeviceID, payload)
	})
	return group, err
}
