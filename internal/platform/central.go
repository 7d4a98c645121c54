package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/rflorenc/iot-device-migrator/internal/dtdl"
	"github.com/rflorenc/iot-device-migrator/internal/models"
)

// CentralClient calls the data plane API of one IoT Central application.
type CentralClient struct {
	host   string
	client *Client
}

// NewCentralClient creates a client for the application reachable at
// baseURL (https://<subdomain>.<domain>).
func NewCentralClient(baseURL string, tokens TokenProvider, httpClient *http.Client) *CentralClient {
	u, _ := url.Parse(baseURL)
	host := baseURL
	if u != nil && u.Host != "" {
		host = u.Host
	}
	return &CentralClient{
		host:   host,
		client: NewClient(baseURL+"/api", APIVersionCentral, BearerAuthorizer(tokens, AudienceCentral), httpClient),
	}
}

// Host returns the application host name.
func (c *CentralClient) Host() string { return c.host }

func decodeAll[T any](raw []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(raw))
	for _, r := range raw {
		var v T
		if err := json.Unmarshal(r, &v); err != nil {
			return nil, fmt.Errorf("parsing item: %w", err)
		}
		out = append(out, v)
	}
	return out, nil
}

// ListDeviceGroups lists the device groups of the application.
func (c *CentralClient) ListDeviceGroups(ctx context.Context) ([]models.DeviceGroup, error) {
	raw, err := c.client.GetAll(ctx, "deviceGroups")
	if err != nil {
		return nil, err
	}
	return decodeAll[models.DeviceGroup](raw)
}

// ListDeviceTemplates lists the device templates of the application.
func (c *CentralClient) ListDeviceTemplates(ctx context.Context) ([]models.DeviceTemplate, error) {
	raw, err := c.client.GetAll(ctx, "deviceTemplates")
	if err != nil {
		return nil, err
	}
	return decodeAll[models.DeviceTemplate](raw)
}

// TemplateModel is a device template with its capability model.
type TemplateModel struct {
	models.DeviceTemplate
	CapabilityModel *dtdl.Capability `json:"capabilityModel"`
}

// GetDeviceTemplate reads a device template including its capability model.
func (c *CentralClient) GetDeviceTemplate(ctx context.Context, templateID string) (*TemplateModel, error) {
	var raw struct {
		models.DeviceTemplate
		CapabilityModel json.RawMessage `json:"capabilityModel"`
	}
	if err := c.client.GetJSON(ctx, "deviceTemplates/"+url.PathEscape(templateID), nil, &raw); err != nil {
		return nil, err
	}
	tpl := &TemplateModel{DeviceTemplate: raw.DeviceTemplate}
	if len(raw.CapabilityModel) > 0 && string(raw.CapabilityModel) != "null" {
		capability, err := dtdl.Parse(raw.CapabilityModel)
		if err != nil {
			return nil, fmt.Errorf("device template %s: %w", templateID, err)
		}
		tpl.CapabilityModel = capability
	}
	return tpl, nil
}

// MigrationComponent returns the name of the component of templateID that
// implements the device migration interface.
func (c *CentralClient) MigrationComponent(ctx context.Context, templateID string) (string, error) {
	tpl, err := c.GetDeviceTemplate(ctx, templateID)
	if err != nil {
		return "", err
	}
	comp := dtdl.FindComponent(tpl.CapabilityModel, dtdl.MigrationComponentID)
	if comp == nil || comp.Name == "" {
		return "", models.NewAPIError("Invalid device template",
			fmt.Sprintf("Device template %q has no component implementing %s. Add the DeviceMigration component to the template and publish it.", templateID, dtdl.MigrationComponentID))
	}
	return comp.Name, nil
}

// ListJobs lists all jobs of the application.
func (c *CentralClient) ListJobs(ctx context.Context) ([]models.JobResult, error) {
	raw, err := c.client.GetAll(ctx, "jobs")
	if err != nil {
		return nil, err
	}
	return decodeAll[models.JobResult](raw)
}

// JobProgress counts the per-device results of a job.
func (c *CentralClient) JobProgress(ctx context.Context, jobID string) (models.JobProgress, error) {
	raw, err := c.client.GetAll(ctx, "jobs/"+url.PathEscape(jobID)+"/devices")
	if err != nil {
		return models.JobProgress{}, err
	}
	var p models.JobProgress
	for _, r := range raw {
		p.Total++
		switch gjson.GetBytes(r, "status").String() {
		case "completed":
			p.Completed++
		case "failed":
			p.Failed++
		default:
			p.Pending++
		}
	}
	p.Label = p.StatusLabel()
	return p, nil
}

// CreateJob submits a job under a fresh id.
func (c *CentralClient) CreateJob(ctx context.Context, payload models.JobPayload) (models.JobResult, error) {
	id := uuid.New().String()
	body, _, err := c.client.Put(ctx, "jobs/"+id, payload)
	if err != nil {
		if IsStatus(err, http.StatusUnprocessableEntity) {
			path := ""
			if len(payload.Data) > 0 {
				path = payload.Data[0].Path
			}
			return models.JobResult{}, models.NewAPIError("Job rejected",
				fmt.Sprintf("The application refused the job. Check that the device template has a component exposing the %q command.", path))
		}
		return models.JobResult{}, err
	}
	var job models.JobResult
	if err := json.Unmarshal(body, &job); err != nil {
		return models.JobResult{}, fmt.Errorf("parsing job response: %w", err)
	}
	if job.ID == "" {
		job.ID = id
	}
	return job, nil
}

type symmetricKey struct {
	PrimaryKey   string `json:"primaryKey"`
	SecondaryKey string `json:"secondaryKey"`
}

type attestation struct {
	Type         string        `json:"type"`
	SymmetricKey *symmetricKey `json:"symmetricKey,omitempty"`
}

// centralEnrollmentGroup is the wire form of a Central enrollment group.
type centralEnrollmentGroup struct {
	ID          string      `json:"id,omitempty"`
	DisplayName string      `json:"displayName"`
	Type        string      `json:"type"`
	Enabled     bool        `json:"enabled"`
	IDScope     string      `json:"idScope,omitempty"`
	Attestation attestation `json:"attestation"`
}

func symmetricKeyAttestation(keys models.EnrollmentGroup) attestation {
	return attestation{
		Type:         "symmetricKey",
		SymmetricKey: &symmetricKey{PrimaryKey: keys.PrimaryKey, SecondaryKey: keys.SecondaryKey},
	}
}

func (g centralEnrollmentGroup) model() (models.EnrollmentGroup, bool) {
	if g.Attestation.Type != "symmetricKey" || g.Attestation.SymmetricKey == nil {
		return models.EnrollmentGroup{}, false
	}
	return models.EnrollmentGroup{
		ID:           g.ID,
		PrimaryKey:   g.Attestation.SymmetricKey.PrimaryKey,
		SecondaryKey: g.Attestation.SymmetricKey.SecondaryKey,
		IDScope:      g.IDScope,
	}, true
}

// ListEnrollmentGroups lists the symmetric key enrollment groups.
func (c *CentralClient) ListEnrollmentGroups(ctx context.Context) ([]models.EnrollmentGroup, error) {
	raw, err := c.client.GetAll(ctx, "enrollmentGroups")
	if err != nil {
		return nil, err
	}
	groups, err := decodeAll[centralEnrollmentGroup](raw)
	if err != nil {
		return nil, err
	}
	var out []models.EnrollmentGroup
	for _, g := range groups {
		if m, ok := g.model(); ok {
			out = append(out, m)
		}
	}
	return out, nil
}

// SourceCredentials returns the first symmetric key enrollment group of the
// application together with the application id scope.
func (c *CentralClient) SourceCredentials(ctx context.Context) (models.EnrollmentGroup, error) {
	groups, err := c.ListEnrollmentGroups(ctx)
	if err != nil {
		return models.EnrollmentGroup{}, fmt.Errorf("listing enrollment groups of %s: %w", c.host, err)
	}
	if len(groups) == 0 {
		return models.EnrollmentGroup{}, models.NewAPIError("Enrollment error",
			fmt.Sprintf("Application %s has no enrollment group with symmetric key attestation.", c.host))
	}
	group := groups[0]
	if group.IDScope == "" {
		group.IDScope, err = c.IDScope(ctx)
		if err != nil {
			return models.EnrollmentGroup{}, err
		}
	}
	return group, nil
}

// IDScope discovers the application id scope by creating a disabled device,
// reading its credentials and deleting it again.
func (c *CentralClient) IDScope(ctx context.Context) (string, error) {
	deviceID := "migrator-scope-" + uuid.New().String()
	path := "devices/" + deviceID
	if _, _, err := c.client.Put(ctx, path, map[string]interface{}{
		"displayName": "Device migrator scope probe",
		"enabled":     false,
	}); err != nil {
		return "", fmt.Errorf("creating probe device: %w", err)
	}
	defer c.client.Delete(context.WithoutCancel(ctx), path)

	body, err := c.client.Get(ctx, path+"/credentials", nil)
	if err != nil {
		return "", fmt.Errorf("reading probe device credentials: %w", err)
	}
	scope := gjson.GetBytes(body, "idScope").String()
	if scope == "" {
		return "", fmt.Errorf("application %s returned no idScope", c.host)
	}
	return scope, nil
}

// EnrollmentGroupID derives a stable group id from a primary key, so the
// same key pair always maps to the same group.
func EnrollmentGroupID(primaryKey string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(primaryKey)).String()
}

// CreateOrGetEnrollmentGroup makes sure an enrollment group with the given
// key pair exists and returns it with its id scope. A 409 means the keys are
// already enrolled; the existing group is looked up by key instead.
func (c *CentralClient) CreateOrGetEnrollmentGroup(ctx context.Context, keys models.EnrollmentGroup) (models.EnrollmentGroup, error) {
	id := EnrollmentGroupID(keys.PrimaryKey)
	req := centralEnrollmentGroup{
		DisplayName: "Migrated devices",
		Type:        "iot",
		Enabled:     true,
		Attestation: symmetricKeyAttestation(keys),
	}

	var group models.EnrollmentGroup
	body, _, err := c.client.Put(ctx, "enrollmentGroups/"+id, req)
	switch {
	case err == nil:
		var created centralEnrollmentGroup
		if err := json.Unmarshal(body, &created); err != nil {
			return models.EnrollmentGroup{}, fmt.Errorf("parsing enrollment group: %w", err)
		}
		group = models.EnrollmentGroup{ID: id, PrimaryKey: keys.PrimaryKey, SecondaryKey: keys.SecondaryKey, IDScope: created.IDScope}
	case IsStatus(err, http.StatusConflict):
		existing, lerr := c.ListEnrollmentGroups(ctx)
		if lerr != nil {
			return models.EnrollmentGroup{}, fmt.Errorf("looking up existing enrollment group: %w", lerr)
		}
		found := false
		for _, g := range existing {
			if g.MatchesKey(keys.PrimaryKey, keys.SecondaryKey) {
				group, found = g, true
				break
			}
		}
		if !found {
			return models.EnrollmentGroup{}, models.NewAPIError("Enrollment error",
				fmt.Sprintf("Application %s reported a conflicting enrollment group but none matches the given keys.", c.host))
		}
	default:
		return models.EnrollmentGroup{}, err
	}

	if group.IDScope == "" {
		scope, err := c.IDScope(ctx)
		if err != nil {
			return models.EnrollmentGroup{}, err
		}
		group.IDScope = scope
	}
	return group, nil
}
