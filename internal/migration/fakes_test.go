package migration

import (
	"context"
	"fmt"
	"sync"

	"github.com/rflorenc/iot-device-migrator/internal/models"
)

type fakeCentral struct {
	host      string
	creds     *models.EnrollmentGroup
	scope     string
	groups    []models.EnrollmentGroup
	jobs      []models.JobResult
	progress  map[string]models.JobProgress
	submitted []models.JobPayload
	jobErr    error
}

func (c *fakeCentral) Host() string { return c.host }

func (c *fakeCentral) SourceCredentials(context.Context) (models.EnrollmentGroup, error) {
	if c.creds == nil {
		return models.EnrollmentGroup{}, models.NewAPIError("Enrollment error", "no symmetric key group on "+c.host)
	}
	return *c.creds, nil
}

func (c *fakeCentral) CreateOrGetEnrollmentGroup(_ context.Context, keys models.EnrollmentGroup) (models.EnrollmentGroup, error) {
	for _, g := range c.groups {
		if g.MatchesKey(keys.PrimaryKey, keys.SecondaryKey) {
			return g, nil
		}
	}
	g := models.EnrollmentGroup{
		ID:           fmt.Sprintf("group-%d", len(c.groups)),
		PrimaryKey:   keys.PrimaryKey,
		SecondaryKey: keys.SecondaryKey,
		IDScope:      c.scope,
	}
	c.groups = append(c.groups, g)
	return g, nil
}

func (c *fakeCentral) CreateJob(_ context.Context, payload models.JobPayload) (models.JobResult, error) {
	if c.jobErr != nil {
		return models.JobResult{}, c.jobErr
	}
	c.submitted = append(c.submitted, payload)
	return models.JobResult{
		ID:          fmt.Sprintf("job-%d", len(c.submitted)),
		DisplayName: payload.DisplayName,
		Group:       payload.Group,
		Description: payload.Description,
		Status:      "running",
	}, nil
}

func (c *fakeCentral) ListJobs(context.Context) ([]models.JobResult, error) {
	return append([]models.JobResult(nil), c.jobs...), nil
}

func (c *fakeCentral) JobProgress(_ context.Context, id string) (models.JobProgress, error) {
	p, ok := c.progress[id]
	if !ok {
		return models.JobProgress{}, fmt.Errorf("no progress for %s", id)
	}
	return p, nil
}

type fakeHub struct {
	devices []models.Device
	missing map[string]bool

	mu      sync.Mutex
	invoked map[string]models.DeviceMovePayload
	calls   int
}

func (h *fakeHub) ListDevices(context.Context) ([]models.Device, error) {
	return h.devices, nil
}

func (h *fakeHub) InvokeDeviceMove(_ context.Context, id string, payload models.DeviceMovePayload) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.invoked == nil {
		h.invoked = map[string]models.DeviceMovePayload{}
	}
	h.invoked[id] = payload
	h.calls++
	if h.missing[id] {
		return models.NewAPIError("IoT Hub error", fmt.Sprintf("Device %s not found or not online.", id))
	}
	return nil
}

type fakeDPS struct {
	created map[string]models.EnrollmentGroup
}

func (d *fakeDPS) CreateOrGetEnrollmentGroup(_ context.Context, id string, keys models.EnrollmentGroup) (models.EnrollmentGroup, error) {
	if d.created == nil {
		d.created = map[string]models.EnrollmentGroup{}
	}
	keys.ID = id
	d.created[id] = keys
	return keys, nil
}

type fakeServices struct {
	centrals map[string]*fakeCentral
	hubs     map[string]*fakeHub
	dps      *fakeDPS
	hubKeys  map[string]string
	dpsKey   string
	dpsInfo  models.ProvisioningService
	apps     []models.CentralApp

	tokens []string
}

func newFakeServices() *fakeServices {
	return &fakeServices{
		centrals: map[string]*fakeCentral{},
		hubs:     map[string]*fakeHub{},
		dps:      &fakeDPS{},
		hubKeys:  map[string]string{},
	}
}

func (s *fakeServices) central(subdomain string) *fakeCentral {
	host := s.CentralHost(subdomain)
	c, ok := s.centrals[host]
	if !ok {
		c = &fakeCentral{host: host, progress: map[string]models.JobProgress{}}
		s.centrals[host] = c
	}
	return c
}

func (s *fakeServices) CentralDomain() string { return "azureiotcentral.com" }

func (s *fakeServices) CentralHost(subdomain string) string {
	return subdomain + ".azureiotcentral.com"
}

func (s *fakeServices) Central(host string) CentralAPI {
	c, ok := s.centrals[host]
	if !ok {
		c = &fakeCentral{host: host}
		s.centrals[host] = c
	}
	return c
}

func (s *fakeServices) Hub(host, token string) HubAPI {
	s.tokens = append(s.tokens, token)
	return s.hubs[host]
}

func (s *fakeServices) DPS(host, token string) DPSAPI {
	s.tokens = append(s.tokens, token)
	return s.dps
}

func (s *fakeServices) HubOwnerKey(_ context.Context, hubID string) (string, error) {
	k, ok := s.hubKeys[hubID]
	if !ok {
		return "", fmt.Errorf("no keys for %s", hubID)
	}
	return k, nil
}

func (s *fakeServices) DPSOwnerKey(context.Context, string) (string, error) {
	return s.dpsKey, nil
}

func (s *fakeServices) GetProvisioningService(context.Context, string) (models.ProvisioningService, error) {
	return s.dpsInfo, nil
}

func (s *fakeServices) ListCentralApps(context.Context) ([]models.CentralApp, error) {
	return s.apps, nil
}

// discard is a no-op operation log.
func discard(string) {}
