package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rflorenc/iot-device-migrator/internal/models"
	"github.com/rflorenc/iot-device-migrator/internal/platform"
)

// Discovery supplies the resources the migration wizard picks from.
type Discovery interface {
	Subscriptions(ctx context.Context) ([]models.Subscription, error)
	ListCentralApps(ctx context.Context) ([]models.CentralApp, error)
	ListProvisioningServices(ctx context.Context) ([]models.ProvisioningService, error)
	ListHubs(ctx context.Context) ([]models.IoTHub, error)
	DescribeDPSSource(ctx context.Context, dpsID string) (models.Source, error)
	CentralApp(subdomain string) CentralCatalog
}

// CentralCatalog lists what a Central application offers as a source.
type CentralCatalog interface {
	ListDeviceGroups(ctx context.Context) ([]models.DeviceGroup, error)
	ListDeviceTemplates(ctx context.Context) ([]models.DeviceTemplate, error)
	MigrationComponent(ctx context.Context, templateID string) (string, error)
}

type azureDiscovery struct {
	*platform.Azure
}

// NewAzureDiscovery serves Discovery from the Azure platform clients.
func NewAzureDiscovery(az *platform.Azure) Discovery {
	return azureDiscovery{Azure: az}
}

func (d azureDiscovery) CentralApp(subdomain string) CentralCatalog {
	return d.Central(d.CentralHost(subdomain))
}

func (s *Server) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := s.Discovery.Subscriptions(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(subs))
}

func (s *Server) ListCentralApps(w http.ResponseWriter, r *http.Request) {
	apps, err := s.Discovery.ListCentralApps(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(apps))
}

func (s *Server) ListDeviceGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.Discovery.CentralApp(chi.URLParam(r, "subdomain")).ListDeviceGroups(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(groups))
}

func (s *Server) ListDeviceTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := s.Discovery.CentralApp(chi.URLParam(r, "subdomain")).ListDeviceTemplates(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(templates))
}

// GetMigrationComponent resolves the component of ?template= that carries
// the DeviceMove command. Template ids contain ';' and must be query escaped.
func (s *Server) GetMigrationComponent(w http.ResponseWriter, r *http.Request) {
	templateID := r.URL.Query().Get("template")
	if templateID == "" {
		writeError(w, http.StatusBadRequest, "template is required")
		return
	}
	name, err := s.Discovery.CentralApp(chi.URLParam(r, "subdomain")).MigrationComponent(r.Context(), templateID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"template": templateID, "componentName": name})
}

func (s *Server) ListProvisioningServices(w http.ResponseWriter, r *http.Request) {
	services, err := s.Discovery.ListProvisioningServices(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(services))
}

// DescribeDPSSource returns the source descriptor of the DPS ?id=, with its
// linked hubs unselected.
func (s *Server) DescribeDPSSource(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	src, err := s.Discovery.DescribeDPSSource(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, src)
}

func (s *Server) ListHubs(w http.ResponseWriter, r *http.Request) {
	hubs, err := s.Discovery.ListHubs(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(hubs))
}
