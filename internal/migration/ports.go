package migration

import (
	"context"

	"github.com/rflorenc/iot-device-migrator/internal/models"
	"github.com/rflorenc/iot-device-migrator/internal/platform"
)

// CentralAPI is the part of a Central application the orchestrator uses.
type CentralAPI interface {
	Host() string
	SourceCredentials(ctx context.Context) (models.EnrollmentGroup, error)
	CreateOrGetEnrollmentGroup(ctx context.Context, keys models.EnrollmentGroup) (models.EnrollmentGroup, error)
	CreateJob(ctx context.Context, payload models.JobPayload) (models.JobResult, error)
	ListJobs(ctx context.Context) ([]models.JobResult, error)
	JobProgress(ctx context.Context, jobID string) (models.JobProgress, error)
}

// HubAPI is the part of an IoT Hub the orchestrator uses.
type HubAPI interface {
	ListDevices(ctx context.Context) ([]models.Device, error)
	InvokeDeviceMove(ctx context.Context, deviceID string, payload models.DeviceMovePayload) error
}

// DPSAPI is the part of a provisioning service the orchestrator uses.
type DPSAPI interface {
	CreateOrGetEnrollmentGroup(ctx context.Context, id string, keys models.EnrollmentGroup) (models.EnrollmentGroup, error)
}

// Services resolves data plane clients and management lookups.
type Services interface {
	CentralDomain() string
	CentralHost(subdomain string) string
	Central(host string) CentralAPI
	Hub(host, sasToken string) HubAPI
	DPS(host, sasToken string) DPSAPI

	HubOwnerKey(ctx context.Context, hubID string) (string, error)
	DPSOwnerKey(ctx context.Context, dpsID string) (string, error)
	GetProvisioningService(ctx context.Context, id string) (models.ProvisioningService, error)
	ListCentralApps(ctx context.Context) ([]models.CentralApp, error)
}

type azureServices struct {
	*platform.Azure
}

// NewAzureServices adapts the platform clients to Services.
func NewAzureServices(az *platform.Azure) Services {
	return azureServices{Azure: az}
}

func (a azureServices) Central(host string) CentralAPI { return a.Azure.Central(host) }

func (a azureServices) Hub(host, sasToken string) HubAPI { return a.Azure.Hub(host, sasToken) }

func (a azureServices) DPS(host, sasToken string) DPSAPI { return a.Azure.DPS(host, sasToken) }
