package platform

import (
	"context"
	"fmt"
	"strings"

	"github.com/rflorenc/iot-device-migrator/internal/models"
)

// HubHostSuffix is the domain of IoT Hub host names.
const HubHostSuffix = ".azure-devices.net"

// centralAppProperties is the subset of IoT Central app properties we read.
type centralAppProperties struct {
	ApplicationID string `json:"applicationId"`
	DisplayName   string `json:"displayName"`
	Subdomain     string `json:"subdomain"`
}

// dpsProperties is the subset of DPS properties we read.
type dpsProperties struct {
	IDScope                   string `json:"idScope"`
	ServiceOperationsHostName string `json:"serviceOperationsHostName"`
	IoTHubs                   []struct {
		Name string `json:"name"` // the linked hub host
	} `json:"iotHubs"`
}

// ListCentralApps lists IoT Central applications in all subscriptions.
func (m *Management) ListCentralApps(ctx context.Context) ([]models.CentralApp, error) {
	refs, err := m.ListAll(ctx, models.CentralAppType)
	if err != nil {
		return nil, err
	}
	apps := make([]models.CentralApp, 0, len(refs))
	for _, ref := range refs {
		var props centralAppProperties
		if err := m.GetProperties(ctx, ref.ID, APIVersionCentralARM, &props); err != nil {
			return nil, err
		}
		apps = append(apps, models.CentralApp{
			ID:             ref.ID,
			Name:           ref.Name,
			Subdomain:      props.Subdomain,
			ApplicationID:  props.ApplicationID,
			DisplayName:    props.DisplayName,
			SubscriptionID: ref.SubscriptionID,
		})
	}
	return apps, nil
}

// GetProvisioningService reads a single DPS by ARM id.
func (m *Management) GetProvisioningService(ctx context.Context, id string) (models.ProvisioningService, error) {
	var props dpsProperties
	if err := m.GetProperties(ctx, id, APIVersionDPSARM, &props); err != nil {
		return models.ProvisioningService{}, err
	}
	dps := models.ProvisioningService{
		ID:             id,
		Name:           resourceName(id),
		IDScope:        props.IDScope,
		Host:           props.ServiceOperationsHostName,
		LinkedHubHosts: []string{},
	}
	for _, h := range props.IoTHubs {
		dps.LinkedHubHosts = append(dps.LinkedHubHosts, h.Name)
	}
	return dps, nil
}

// ListProvisioningServices lists DPS instances in all subscriptions.
func (m *Management) ListProvisioningServices(ctx context.Context) ([]models.ProvisioningService, error) {
	refs, err := m.ListAll(ctx, models.DPSType)
	if err != nil {
		return nil, err
	}
	out := make([]models.ProvisioningService, 0, len(refs))
	for _, ref := range refs {
		dps, err := m.GetProvisioningService(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		dps.Name = ref.Name
		dps.SubscriptionID = ref.SubscriptionID
		out = append(out, dps)
	}
	return out, nil
}

// ListHubs lists IoT Hubs in all subscriptions.
func (m *Management) ListHubs(ctx context.Context) ([]models.IoTHub, error) {
	refs, err := m.ListAll(ctx, models.IoTHubType)
	if err != nil {
		return nil, err
	}
	hubs := make([]models.IoTHub, 0, len(refs))
	for _, ref := range refs {
		hubs = append(hubs, models.IoTHub{
			ID:             ref.ID,
			Name:           ref.Name,
			Host:           ref.Name + HubHostSuffix,
			SubscriptionID: ref.SubscriptionID,
		})
	}
	return hubs, nil
}

// DescribeDPSSource builds the source descriptor of a DPS: its linked hubs,
// none selected.
func (m *Management) DescribeDPSSource(ctx context.Context, dpsID string) (models.Source, error) {
	dps, err := m.GetProvisioningService(ctx, dpsID)
	if err != nil {
		return models.Source{}, err
	}
	hubs, err := m.ListHubs(ctx)
	if err != nil {
		return models.Source{}, err
	}
	return DPSSource(dps, hubs), nil
}

// DPSSource builds a DPS source descriptor from already fetched resources.
func DPSSource(dps models.ProvisioningService, hubs []models.IoTHub) models.Source {
	linked := FilterLinkedHubs(hubs, dps.LinkedHubHosts)
	params := models.DPSSourceParams{
		DPSHost: dps.Host,
		DPSLink: PortalLink(dps.ID),
		IDScope: dps.IDScope,
		IoTHubs: make([]models.LinkedHub, 0, len(linked)),
	}
	for _, h := range linked {
		params.IoTHubs = append(params.IoTHubs, models.LinkedHub{Name: h.Name, Host: h.Host, ID: h.ID})
	}
	return models.Source{ID: dps.ID, Name: dps.Name, Params: params}
}

// HubNameFromHost strips the IoT Hub domain from a host name.
func HubNameFromHost(host string) string {
	name, _, _ := strings.Cut(host, HubHostSuffix)
	return name
}

// FilterLinkedHubs keeps the hubs whose name matches one of the linked hosts.
func FilterLinkedHubs(hubs []models.IoTHub, linkedHosts []string) []models.IoTHub {
	names := make(map[string]bool, len(linkedHosts))
	for _, h := range linkedHosts {
		names[HubNameFromHost(h)] = true
	}
	var out []models.IoTHub
	for _, h := range hubs {
		if names[h.Name] {
			out = append(out, h)
		}
	}
	return out
}

// PortalLink returns the Azure portal page of a resource.
func PortalLink(resourceID string) string {
	return fmt.Sprintf("https://portal.azure.com/#resource%s", resourceID)
}

func resourceName(id string) string {
	id = strings.TrimSuffix(id, "/")
	if i := strings.LastIndex(id, "/"); i >= 0 {
		return id[i+1:]
	}
	return id
}
