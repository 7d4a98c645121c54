package models

// ResourceType describes an ARM resource type the migrator enumerates.
type ResourceType struct {
	Name    string `json:"name"`     // "central-apps", "dps", "hubs"
	Label   string `json:"label"`    // Human-readable: "IoT Central applications"
	ARMType string `json:"arm_type"` // "Microsoft.IoTCentral/iotApps"
}

// Resource types used by discovery.
var (
	CentralAppType = ResourceType{Name: "central-apps", Label: "IoT Central applications", ARMType: "Microsoft.IoTCentral/iotApps"}
	DPSType        = ResourceType{Name: "dps", Label: "Device Provisioning Services", ARMType: "Microsoft.Devices/provisioningServices"}
	IoTHubType     = ResourceType{Name: "hubs", Label: "IoT Hubs", ARMType: "Microsoft.Devices/IotHubs"}
)

// Subscription is an Azure subscription the caller can see.
type Subscription struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	State       string `json:"state,omitempty"`
}

// CentralApp is an IoT Central application.
type CentralApp struct {
	ID             string `json:"id"` // ARM resource id
	Name           string `json:"name"`
	Subdomain      string `json:"subdomain"`
	ApplicationID  string `json:"applicationId,omitempty"`
	DisplayName    string `json:"displayName,omitempty"`
	SubscriptionID string `json:"subscriptionId,omitempty"`
}

// ProvisioningService is a DPS instance.
type ProvisioningService struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	IDScope        string   `json:"idScope"`
	Host           string   `json:"host"`
	LinkedHubHosts []string `json:"linkedHubHosts"`
	SubscriptionID string   `json:"subscriptionId,omitempty"`
}

// IoTHub is an IoT Hub instance.
type IoTHub struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Host           string `json:"host"`
	SubscriptionID string `json:"subscriptionId,omitempty"`
}

// DeviceGroup is a Central device group.
type DeviceGroup struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// DeviceTemplate is a Central device template.
type DeviceTemplate struct {
	ID          string   `json:"@id"`
	Types       []string `json:"@type,omitempty"`
	DisplayName string   `json:"displayName"`
}

// Device is a device registered in an IoT Hub.
type Device struct {
	DeviceID        string `json:"deviceId"`
	Status          string `json:"status,omitempty"`
	ConnectionState string `json:"connectionState,omitempty"`
}
