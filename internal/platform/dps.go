package platform

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/tidwall/gjson"

	"github.com/rflorenc/iot-device-migrator/internal/models"
)

// DPSClient calls the data plane of one Device Provisioning Service with a
// SAS token.
type DPSClient struct {
	host   string
	client *Client
}

// NewDPSClient creates a client for baseURL (https://<dps host>).
func NewDPSClient(baseURL, host, sasToken string, httpClient *http.Client) *DPSClient {
	return &DPSClient{
		host:   host,
		client: NewClient(baseURL, APIVersionDPSData, StaticAuthorizer(sasToken), httpClient),
	}
}

type dpsEnrollmentGroup struct {
	EnrollmentGroupID  string      `json:"enrollmentGroupId"`
	Attestation        attestation `json:"attestation"`
	ProvisioningStatus string      `json:"provisioningStatus"`
}

// CreateOrGetEnrollmentGroup creates a symmetric key enrollment group. On
// 409 the existing group holding one of the keys is returned instead.
func (c *DPSClient) CreateOrGetEnrollmentGroup(ctx context.Context, id string, keys models.EnrollmentGroup) (models.EnrollmentGroup, error) {
	_, _, err := c.client.Put(ctx, "enrollmentGroups/"+url.PathEscape(id), dpsEnrollmentGroup{
		EnrollmentGroupID:  id,
		Attestation:        symmetricKeyAttestation(keys),
		ProvisioningStatus: "enabled",
	})
	if err == nil {
		return models.EnrollmentGroup{ID: id, PrimaryKey: keys.PrimaryKey, SecondaryKey: keys.SecondaryKey}, nil
	}
	if !IsStatus(err, http.StatusConflict) {
		return models.EnrollmentGroup{}, err
	}

	body, _, err := c.client.Post(ctx, "enrollmentGroups/query", map[string]string{"query": "*"})
	if err != nil {
		return models.EnrollmentGroup{}, fmt.Errorf("looking up existing enrollment group: %w", err)
	}
	for _, g := range gjson.ParseBytes(body).Array() {
		existing := models.EnrollmentGroup{
			ID:           g.Get("enrollmentGroupId").String(),
			PrimaryKey:   g.Get("attestation.symmetricKey.primaryKey").String(),
			SecondaryKey: g.Get("attestation.symmetricKey.secondaryKey").String(),
		}
		if existing.MatchesKey(keys.PrimaryKey, keys.SecondaryKey) {
			return existing, nil
		}
	}
	return models.EnrollmentGroup{}, models.NewAPIError("Enrollment error",
		fmt.Sprintf("DPS %s reported a conflicting enrollment group but none matches the given keys.", c.host))
}
