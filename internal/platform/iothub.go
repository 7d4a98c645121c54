package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rflorenc/iot-device-migrator/internal/models"
)

// MethodTimeoutSeconds bounds how long the hub waits for a device to answer
// a direct method.
const MethodTimeoutSeconds = 30

// HubClient calls the data plane of one IoT Hub with a SAS token.
type HubClient struct {
	host   string
	client *Client
}

// NewHubClient creates a client for baseURL (https://<hub host>).
func NewHubClient(baseURL, host, sasToken string, httpClient *http.Client) *HubClient {
	return &HubClient{
		host:   host,
		client: NewClient(baseURL, APIVersionIoTHubData, StaticAuthorizer(sasToken), httpClient),
	}
}

// ListDevices returns every device registered in the hub, following the
// x-ms-continuation header.
func (c *HubClient) ListDevices(ctx context.Context) ([]models.Device, error) {
	var all []models.Device
	continuation := ""
	for {
		header := http.Header{}
		if continuation != "" {
			header.Set("x-ms-continuation", continuation)
		}
		resp, err := c.client.Do(ctx, http.MethodPost, "devices/query", nil,
			map[string]string{"query": "SELECT * FROM devices"}, header)
		if err != nil {
			return nil, fmt.Errorf("listing devices of %s: %w", c.host, err)
		}
		var page []models.Device
		if err := json.Unmarshal(resp.Body, &page); err != nil {
			return nil, fmt.Errorf("parsing devices of %s: %w", c.host, err)
		}
		all = append(all, page...)

		continuation = resp.Header.Get("x-ms-continuation")
		if continuation == "" {
			return all, nil
		}
	}
}

type methodRequest struct {
	MethodName               string      `json:"methodName"`
	ResponseTimeoutInSeconds int         `json:"responseTimeoutInSeconds"`
	Payload                  interface{} `json:"payload"`
}

// InvokeDeviceMove calls the DeviceMove direct method on a device. The
// device's own response status is not inspected.
func (c *HubClient) InvokeDeviceMove(ctx context.Context, deviceID string, payload models.DeviceMovePayload) error {
	_, _, err := c.client.Post(ctx, "twins/"+url.PathEscape(deviceID)+"/methods", methodRequest{
		MethodName:               models.DeviceMoveCommand,
		ResponseTimeoutInSeconds: MethodTimeoutSeconds,
		Payload:                  payload,
	})
	if IsStatus(err, http.StatusNotFound) {
		return models.NewAPIError("IoT Hub error", fmt.Sprintf("Device %s not found or not online.", deviceID))
	}
	return err
}
