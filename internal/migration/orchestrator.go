// Package migration sequences the platform calls that move devices between
// IoT Central applications, IoT Hubs and provisioning services.
package migration

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rflorenc/iot-device-migrator/internal/models"
	"github.com/rflorenc/iot-device-migrator/internal/platform"
	"github.com/rflorenc/iot-device-migrator/internal/sas"
	"github.com/rflorenc/iot-device-migrator/internal/store"
)

// autoEnrollGroupPrefix prefixes DPS enrollment groups created on behalf of
// the operator.
const autoEnrollGroupPrefix = "central-migration-"

// Orchestrator runs migrations. It holds no state of its own besides the
// hub job store.
type Orchestrator struct {
	svc   Services
	store store.Store
	now   func() time.Time
}

// NewOrchestrator creates an orchestrator over the given services and store.
func NewOrchestrator(svc Services, st store.Store) *Orchestrator {
	return &Orchestrator{svc: svc, store: st, now: time.Now}
}

// Result is what a submitted migration produced.
type Result struct {
	Mode       models.MigrationMode    `json:"mode"`
	Job        *models.JobResult       `json:"job,omitempty"`
	HubJobs    []models.HubJob         `json:"hubJobs,omitempty"`
	Enrollment *models.EnrollmentGroup `json:"enrollment,omitempty"`
}

// SourceCredentials returns the symmetric key enrollment group of a Central
// application for the operator to copy to the target DPS.
func (o *Orchestrator) SourceCredentials(ctx context.Context, subdomain string) (models.EnrollmentGroup, error) {
	return o.svc.Central(o.svc.CentralHost(subdomain)).SourceCredentials(ctx)
}

// Submit validates fv and runs the branch its descriptors select. log
// receives progress lines for the operation log.
func (o *Orchestrator) Submit(ctx context.Context, fv models.FormValues, log func(string)) (*Result, error) {
	if err := fv.Validate(); err != nil {
		return nil, err
	}

	switch src := fv.Source.Params.(type) {
	case models.CentralSourceParams:
		switch tgt := fv.Target.Params.(type) {
		case models.DPSTargetParams:
			return o.centralToDPS(ctx, fv, src, tgt, log)
		case models.CentralTargetParams:
			return o.centralToCentral(ctx, fv, src, tgt, log)
		}
	case models.DPSSourceParams:
		if tgt, ok := fv.Target.Params.(models.CentralTargetParams); ok {
			return o.hubToCentral(ctx, fv, src, tgt, log)
		}
	}
	return nil, models.NewAPIError("Invalid migration",
		fmt.Sprintf("no migration from %s to %s", fv.Source.Type(), fv.Target.Type()))
}

// centralToDPS submits the DeviceMove job on the source application. The
// target enrollment group is created by the operator unless AutoEnroll is set.
func (o *Orchestrator) centralToDPS(ctx context.Context, fv models.FormValues, src models.CentralSourceParams, tgt models.DPSTargetParams, log func(string)) (*Result, error) {
	central := o.svc.Central(o.svc.CentralHost(fv.Source.ID))

	log("Reading enrollment credentials of " + central.Host())
	creds, err := central.SourceCredentials(ctx)
	if err != nil {
		return nil, err
	}

	if fv.AutoEnroll {
		if err := o.enrollOnDPS(ctx, fv.Target.ID, creds, log); err != nil {
			return nil, err
		}
	}

	payload := models.NewDeviceMoveJob(fv.Name, src.GroupID, src.DeviceTemplateID, src.ComponentName,
		models.DeviceMovePayload{
			IDScope:             tgt.IDScope,
			DPSID:               tgt.DPSID,
			DPSName:             tgt.DPSName,
			CentralAppName:      fv.Source.Name,
			CentralAppSubdomain: fv.Source.ID,
		})
	job, err := o.submitJob(ctx, central, payload, log)
	if err != nil {
		return nil, err
	}
	return &Result{Mode: fv.Mode, Job: &job, Enrollment: &creds}, nil
}

func (o *Orchestrator) enrollOnDPS(ctx context.Context, dpsID string, creds models.EnrollmentGroup, log func(string)) error {
	dps, err := o.svc.GetProvisioningService(ctx, dpsID)
	if err != nil {
		return fmt.Errorf("reading provisioning service: %w", err)
	}
	key, err := o.svc.DPSOwnerKey(ctx, dpsID)
	if err != nil {
		return fmt.Errorf("reading %s key: %w", platform.DPSOwnerPolicy, err)
	}
	token, err := sas.Generate(dps.Host, key, platform.DPSOwnerPolicy, o.now())
	if err != nil {
		return err
	}

	log("Creating enrollment group on " + dps.Host)
	group, err := o.svc.DPS(dps.Host, token).CreateOrGetEnrollmentGroup(ctx,
		autoEnrollGroupPrefix+platform.EnrollmentGroupID(creds.PrimaryKey), creds)
	if err != nil {
		return err
	}
	log("Enrollment group " + group.ID + " ready")
	return nil
}

// centralToCentral copies the source enrollment keys to the target
// application and submits the DeviceMove job pointing at the target scope.
func (o *Orchestrator) centralToCentral(ctx context.Context, fv models.FormValues, src models.CentralSourceParams, tgt models.CentralTargetParams, log func(string)) (*Result, error) {
	source := o.svc.Central(o.svc.CentralHost(fv.Source.ID))
	target := o.svc.Central(o.svc.CentralHost(fv.Target.ID))

	log("Reading enrollment credentials of " + source.Host())
	creds, err := source.SourceCredentials(ctx)
	if err != nil {
		return nil, err
	}

	log("Creating enrollment group on " + target.Host())
	group, err := target.CreateOrGetEnrollmentGroup(ctx, creds)
	if err != nil {
		return nil, err
	}
	log("Target id scope " + group.IDScope)

	payload := models.NewDeviceMoveJob(fv.Name, src.GroupID, src.DeviceTemplateID, src.ComponentName,
		models.DeviceMovePayload{
			IDScope:             group.IDScope,
			CentralAppName:      fv.Target.Name,
			CentralAppSubdomain: fv.Target.ID,
			DeviceTemplateID:    tgt.DeviceTemplateID,
		})
	job, err := o.submitJob(ctx, source, payload, log)
	if err != nil {
		return nil, err
	}
	return &Result{Mode: fv.Mode, Job: &job, Enrollment: &group}, nil
}

func (o *Orchestrator) submitJob(ctx context.Context, central CentralAPI, payload models.JobPayload, log func(string)) (models.JobResult, error) {
	log(fmt.Sprintf("Submitting job %q on %s (%s)", payload.DisplayName, central.Host(), payload.Data[0].Path))
	job, err := central.CreateJob(ctx, payload)
	if err != nil {
		return models.JobResult{}, err
	}
	slog.Info("Submitted migration job", "app", central.Host(), "job", job.ID)
	log("Job " + job.ID + " accepted")
	return job, nil
}

// hubToCentral stores one pending HubJob per selected hub. Nothing is called
// on the platforms until the job is run.
func (o *Orchestrator) hubToCentral(ctx context.Context, fv models.FormValues, src models.DPSSourceParams, tgt models.CentralTargetParams, log func(string)) (*Result, error) {
	appHost := o.svc.CentralHost(fv.Target.ID)

	var jobs []models.HubJob
	for _, hub := range src.SelectedHubs() {
		jobs = append(jobs, models.HubJob{
			Name:       fv.Name,
			HubName:    hub.Name,
			HubHost:    hub.Host,
			HubID:      hub.ID,
			DPSLink:    src.DPSLink,
			DPSID:      fv.Source.ID,
			DPSHost:    src.DPSHost,
			DPSIDScope: src.IDScope,
			AppHost:    appHost,
			TemplateID: tgt.DeviceTemplateID,
		})
	}

	stored, err := o.store.Append(ctx, jobs...)
	if err != nil {
		return nil, err
	}
	for _, j := range stored {
		log(fmt.Sprintf("Stored hub job %s for %s", j.ID, j.HubHost))
	}
	return &Result{Mode: fv.Mode, HubJobs: stored}, nil
}
