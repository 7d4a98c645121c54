package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armsubscriptions"

	"github.com/rflorenc/iot-device-migrator/internal/models"
)

const (
	moduleName    = "github.com/rflorenc/iot-device-migrator/internal/platform"
	moduleVersion = "v1.0.0"
)

// Shared access policies whose keys sign data plane requests.
const (
	HubOwnerPolicy = "iothubowner"
	DPSOwnerPolicy = "provisioningserviceowner"
)

// DefaultARMOptions disables retries and resource provider registration.
func DefaultARMOptions() *arm.ClientOptions {
	return &arm.ClientOptions{
		ClientOptions: policy.ClientOptions{
			Retry: policy.RetryOptions{MaxRetries: -1},
		},
		DisableRPRegistration: true,
	}
}

// Management talks to Azure Resource Manager.
type Management struct {
	cred     azcore.TokenCredential
	opts     *arm.ClientOptions
	subs     *armsubscriptions.Client
	pipeline *arm.Client
}

// NewManagement creates ARM clients sharing cred and opts.
func NewManagement(cred azcore.TokenCredential, opts *arm.ClientOptions) (*Management, error) {
	if opts == nil {
		opts = DefaultARMOptions()
	}
	subs, err := armsubscriptions.NewClient(cred, opts)
	if err != nil {
		return nil, fmt.Errorf("creating subscriptions client: %w", err)
	}
	pl, err := arm.NewClient(moduleName, moduleVersion, cred, opts)
	if err != nil {
		return nil, fmt.Errorf("creating arm client: %w", err)
	}
	return &Management{cred: cred, opts: opts, subs: subs, pipeline: pl}, nil
}

// Subscriptions lists every subscription the credential can see.
func (m *Management) Subscriptions(ctx context.Context) ([]models.Subscription, error) {
	var out []models.Subscription
	pager := m.subs.NewListPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing subscriptions: %w", err)
		}
		for _, s := range page.Value {
			if s == nil || s.SubscriptionID == nil {
				continue
			}
			sub := models.Subscription{ID: *s.SubscriptionID}
			if s.DisplayName != nil {
				sub.DisplayName = *s.DisplayName
			}
			if s.State != nil {
				sub.State = string(*s.State)
			}
			out = append(out, sub)
		}
	}
	return out, nil
}

// ResourceRef identifies an ARM resource.
type ResourceRef struct {
	ID             string
	Name           string
	SubscriptionID string
}

// ListResources lists the resources of one type in a subscription.
func (m *Management) ListResources(ctx context.Context, subscriptionID string, rt models.ResourceType) ([]ResourceRef, error) {
	client, err := armresources.NewClient(subscriptionID, m.cred, m.opts)
	if err != nil {
		return nil, fmt.Errorf("creating resources client: %w", err)
	}

	var out []ResourceRef
	pager := client.NewListPager(&armresources.ClientListOptions{
		Filter: to.Ptr(fmt.Sprintf("resourceType eq '%s'", rt.ARMType)),
	})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing %s in %s: %w", rt.Label, subscriptionID, err)
		}
		for _, r := range page.Value {
			if r == nil || r.ID == nil {
				continue
			}
			ref := ResourceRef{ID: *r.ID, SubscriptionID: subscriptionID}
			if r.Name != nil {
				ref.Name = *r.Name
			}
			out = append(out, ref)
		}
	}
	return out, nil
}

// ListAll lists the resources of one type across all subscriptions.
func (m *Management) ListAll(ctx context.Context, rt models.ResourceType) ([]ResourceRef, error) {
	subs, err := m.Subscriptions(ctx)
	if err != nil {
		return nil, err
	}
	var out []ResourceRef
	for _, s := range subs {
		refs, err := m.ListResources(ctx, s.ID, rt)
		if err != nil {
			return nil, err
		}
		out = append(out, refs...)
	}
	return out, nil
}

// GetProperties reads a resource by id and decodes its properties into dest.
func (m *Management) GetProperties(ctx context.Context, id, apiVersion string, dest interface{}) error {
	rid, err := arm.ParseResourceID(id)
	if err != nil {
		return fmt.Errorf("parsing resource id %q: %w", id, err)
	}
	client, err := armresources.NewClient(rid.SubscriptionID, m.cred, m.opts)
	if err != nil {
		return fmt.Errorf("creating resources client: %w", err)
	}
	resp, err := client.GetByID(ctx, id, apiVersion, nil)
	if err != nil {
		return fmt.Errorf("getting %s: %w", id, err)
	}
	data, err := json.Marshal(resp.Properties)
	if err != nil {
		return fmt.Errorf("encoding properties of %s: %w", id, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("decoding properties of %s: %w", id, err)
	}
	return nil
}

// AccessKey is a shared access policy with its keys.
type AccessKey struct {
	KeyName      string `json:"keyName"`
	PrimaryKey   string `json:"primaryKey"`
	SecondaryKey string `json:"secondaryKey"`
	Rights       string `json:"rights"`
}

// ListKeys calls POST <id>/listkeys.
func (m *Management) ListKeys(ctx context.Context, id, apiVersion string) ([]AccessKey, error) {
	req, err := runtime.NewRequest(ctx, http.MethodPost, runtime.JoinPaths(m.pipeline.Endpoint(), id, "listkeys"))
	if err != nil {
		return nil, err
	}
	qp := req.Raw().URL.Query()
	qp.Set("api-version", apiVersion)
	req.Raw().URL.RawQuery = qp.Encode()
	req.Raw().Header["Accept"] = []string{"application/json"}

	resp, err := m.pipeline.Pipeline().Do(req)
	if err != nil {
		return nil, fmt.Errorf("listing keys of %s: %w", id, err)
	}
	if !runtime.HasStatusCode(resp, http.StatusOK) {
		return nil, runtime.NewResponseError(resp)
	}

	var result struct {
		Value []AccessKey `json:"value"`
	}
	if err := runtime.UnmarshalAsJSON(resp, &result); err != nil {
		return nil, fmt.Errorf("parsing keys of %s: %w", id, err)
	}
	return result.Value, nil
}

func (m *Management) policyKey(ctx context.Context, id, apiVersion, policyName string) (string, error) {
	keys, err := m.ListKeys(ctx, id, apiVersion)
	if err != nil {
		return "", err
	}
	for _, k := range keys {
		if k.KeyName == policyName {
			return k.PrimaryKey, nil
		}
	}
	return "", fmt.Errorf("policy %q not found on %s", policyName, id)
}

// HubOwnerKey returns the primary key of the iothubowner policy.
func (m *Management) HubOwnerKey(ctx context.Context, hubID string) (string, error) {
	return m.policyKey(ctx, hubID, APIVersionIoTHubARM, HubOwnerPolicy)
}

// DPSOwnerKey returns the primary key of the provisioningserviceowner policy.
func (m *Management) DPSOwnerKey(ctx context.Context, dpsID string) (string, error) {
	return m.policyKey(ctx, dpsID, APIVersionDPSARM, DPSOwnerPolicy)
}
