package platform

import (
	"fmt"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
)

// API versions of the REST surfaces we call.
const (
	APIVersionCentral    = "2022-07-31"
	APIVersionCentralARM = "2021-06-01"
	APIVersionResources  = "2021-04-01"
	APIVersionIoTHubARM  = "2018-04-01"
	APIVersionIoTHubData = "2020-05-31-preview"
	APIVersionDPSARM     = "2022-02-05"
	APIVersionDPSData    = "2021-10-01"
)

// DefaultCentralDomain is the public cloud domain of IoT Central apps.
const DefaultCentralDomain = "azureiotcentral.com"

// Options configures NewAzure.
type Options struct {
	CentralDomain string
	HTTPClient    *http.Client
	ARMOptions    *arm.ClientOptions

	// BaseURL maps a data plane host to its base URL. Defaults to https.
	BaseURL func(host string) string
}

// Azure holds the ARM client and builds data plane clients per host.
type Azure struct {
	*Management

	tokens        TokenProvider
	centralDomain string
	httpClient    *http.Client
	baseURL       func(host string) string
}

// NewAzure creates the platform entry point from a credential.
func NewAzure(cred azcore.TokenCredential, opts Options) (*Azure, error) {
	mgmt, err := NewManagement(cred, opts.ARMOptions)
	if err != nil {
		return nil, err
	}
	if opts.CentralDomain == "" {
		opts.CentralDomain = DefaultCentralDomain
	}
	if opts.BaseURL == nil {
		opts.BaseURL = func(host string) string { return "https://" + host }
	}
	return &Azure{
		Management:    mgmt,
		tokens:        NewTokenProvider(cred),
		centralDomain: opts.CentralDomain,
		httpClient:    opts.HTTPClient,
		baseURL:       opts.BaseURL,
	}, nil
}

// CentralDomain returns the domain Central applications live under.
func (a *Azure) CentralDomain() string { return a.centralDomain }

// CentralHost returns the host of the application with the given subdomain.
func (a *Azure) CentralHost(subdomain string) string {
	return fmt.Sprintf("%s.%s", subdomain, a.centralDomain)
}

// Central returns a client for the application at host.
func (a *Azure) Central(host string) *CentralClient {
	return NewCentralClient(a.baseURL(host), a.tokens, a.httpClient)
}

// Hub returns a client for the IoT Hub at host.
func (a *Azure) Hub(host, sasToken string) *HubClient {
	return NewHubClient(a.baseURL(host), host, sasToken, a.httpClient)
}

// DPS returns a client for the provisioning service at host.
func (a *Azure) DPS(host, sasToken string) *DPSClient {
	return NewDPSClient(a.baseURL(host), host, sasToken, a.httpClient)
}
