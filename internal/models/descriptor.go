package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// MigrationMode selects which orchestration branch runs.
type MigrationMode string

const (
	ModeCentralToCentral MigrationMode = "CentralToCentral"
	ModeCentralToHub     MigrationMode = "CentralToHub"
	ModeHubToCentral     MigrationMode = "HubToCentral"
)

// ServiceType is the discriminant of a service descriptor.
type ServiceType string

const (
	ServiceCentral ServiceType = "Central"
	ServiceDPS     ServiceType = "DPS"
)

// SourceParams is the variant payload of a Source. Only the types in this
// package implement it.
type SourceParams interface {
	sourceType() ServiceType
	missing() []string
}

// TargetParams is the variant payload of a Target. Only the types in this
// package implement it.
type TargetParams interface {
	targetType() ServiceType
	missing() []string
}

// CentralSourceParams identifies the device group to migrate and the DTDL
// component that declares the DeviceMove command.
type CentralSourceParams struct {
	GroupID          string `json:"groupId"`
	DeviceTemplateID string `json:"deviceTemplateId"`
	ComponentName    string `json:"componentName"`
}

func (CentralSourceParams) sourceType() ServiceType { return ServiceCentral }

func (p CentralSourceParams) missing() []string {
	return missingFields(map[string]string{
		"groupId":          p.GroupID,
		"deviceTemplateId": p.DeviceTemplateID,
		"componentName":    p.ComponentName,
	})
}

// CentralTargetParams is the optional data for a Central application target.
type CentralTargetParams struct {
	IDScope          string `json:"idScope,omitempty"`
	DeviceTemplateID string `json:"deviceTemplateId,omitempty"`
}

func (CentralTargetParams) targetType() ServiceType { return ServiceCentral }

func (CentralTargetParams) missing() []string { return nil }

// LinkedHub is an IoT Hub linked to a DPS instance.
type LinkedHub struct {
	Name     string `json:"name"`
	Host     string `json:"host"`
	ID       string `json:"id"`
	Selected bool   `json:"selected"`
}

// DPSSourceParams describes a DPS and the hubs linked to it. Each hub is
// selected for migration independently.
type DPSSourceParams struct {
	DPSHost string      `json:"dpsHost"`
	DPSLink string      `json:"dpsLink"`
	IDScope string      `json:"idScope"`
	IoTHubs []LinkedHub `json:"iothubs"`
}

func (DPSSourceParams) sourceType() ServiceType { return ServiceDPS }

func (p DPSSourceParams) missing() []string {
	m := missingFields(map[string]string{
		"dpsHost": p.DPSHost,
		"dpsLink": p.DPSLink,
		"idScope": p.IDScope,
	})
	selected := 0
	for i, h := range p.IoTHubs {
		for _, f := range missingFields(map[string]string{"name": h.Name, "host": h.Host, "id": h.ID}) {
			m = append(m, fmt.Sprintf("iothubs[%d].%s", i, f))
		}
		if h.Selected {
			selected++
		}
	}
	if selected == 0 {
		m = append(m, "iothubs (none selected)")
	}
	return m
}

// SelectedHubs returns the hubs marked for migration, in order.
func (p DPSSourceParams) SelectedHubs() []LinkedHub {
	var hubs []LinkedHub
	for _, h := range p.IoTHubs {
		if h.Selected {
			hubs = append(hubs, h)
		}
	}
	return hubs
}

// DPSTargetParams identifies the DPS devices are moved to.
type DPSTargetParams struct {
	IDScope string `json:"idScope"`
	DPSName string `json:"dpsName"`
	DPSID   string `json:"dpsId"`
}

func (DPSTargetParams) targetType() ServiceType { return ServiceDPS }

func (p DPSTargetParams) missing() []string {
	return missingFields(map[string]string{
		"idScope": p.IDScope,
		"dpsName": p.DPSName,
		"dpsId":   p.DPSID,
	})
}

// Source is the migration source: a Central application or a DPS.
// ID is the Central subdomain or the DPS ARM resource id.
type Source struct {
	ID     string
	Name   string
	Params SourceParams
}

// Type returns the discriminant derived from Params.
func (s Source) Type() ServiceType {
	if s.Params == nil {
		return ""
	}
	return s.Params.sourceType()
}

// Target is the migration target: a Central application or a DPS.
type Target struct {
	ID     string
	Name   string
	Params TargetParams
}

// Type returns the discriminant derived from Params.
func (t Target) Type() ServiceType {
	if t.Params == nil {
		return ""
	}
	return t.Params.targetType()
}

type descriptorJSON struct {
	Type   ServiceType     `json:"type"`
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Params json.RawMessage `json:"params,omitempty"`
}

func (s Source) MarshalJSON() ([]byte, error) {
	params, err := json.Marshal(s.Params)
	if err != nil {
		return nil, err
	}
	return json.Marshal(descriptorJSON{Type: s.Type(), ID: s.ID, Name: s.Name, Params: params})
}

func (s *Source) UnmarshalJSON(data []byte) error {
	var raw descriptorJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.ID, s.Name = raw.ID, raw.Name
	switch raw.Type {
	case ServiceCentral:
		var p CentralSourceParams
		if err := unmarshalParams(raw.Params, &p); err != nil {
			return err
		}
		s.Params = p
	case ServiceDPS:
		var p DPSSourceParams
		if err := unmarshalParams(raw.Params, &p); err != nil {
			return err
		}
		s.Params = p
	default:
		return fmt.Errorf("unknown source type %q", raw.Type)
	}
	return nil
}

func (t Target) MarshalJSON() ([]byte, error) {
	params, err := json.Marshal(t.Params)
	if err != nil {
		return nil, err
	}
	return json.Marshal(descriptorJSON{Type: t.Type(), ID: t.ID, Name: t.Name, Params: params})
}

func (t *Target) UnmarshalJSON(data []byte) error {
	var raw descriptorJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	t.ID, t.Name = raw.ID, raw.Name
	switch raw.Type {
	case ServiceCentral:
		var p CentralTargetParams
		if err := unmarshalParams(raw.Params, &p); err != nil {
			return err
		}
		t.Params = p
	case ServiceDPS:
		var p DPSTargetParams
		if err := unmarshalParams(raw.Params, &p); err != nil {
			return err
		}
		t.Params = p
	default:
		return fmt.Errorf("unknown target type %q", raw.Type)
	}
	return nil
}

func unmarshalParams(data json.RawMessage, dest interface{}) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("parsing params: %w", err)
	}
	return nil
}

// FormValues is the complete migration request.
type FormValues struct {
	Name   string        `json:"name"`
	Mode   MigrationMode `json:"mode"`
	Source Source        `json:"source"`
	Target Target        `json:"target"`

	// AutoEnroll creates the target DPS enrollment group instead of waiting
	// for the operator to copy the keys. CentralToHub only.
	AutoEnroll bool `json:"autoEnroll,omitempty"`
}

// Validate checks that the mode matches the descriptor variants and that
// every required parameter is populated.
func (f FormValues) Validate() error {
	var problems []string
	if strings.TrimSpace(f.Name) == "" {
		problems = append(problems, "name")
	}

	wantSource, wantTarget, ok := f.Mode.Services()
	if !ok {
		return NewAPIError("Invalid migration", fmt.Sprintf("unknown migration mode %q", f.Mode))
	}
	if f.Source.Type() != wantSource {
		return NewAPIError("Invalid migration",
			fmt.Sprintf("mode %s needs a %s source, got %q", f.Mode, wantSource, f.Source.Type()))
	}
	if f.Target.Type() != wantTarget {
		return NewAPIError("Invalid migration",
			fmt.Sprintf("mode %s needs a %s target, got %q", f.Mode, wantTarget, f.Target.Type()))
	}

	if f.Source.ID == "" {
		problems = append(problems, "source.id")
	}
	for _, m := range f.Source.Params.missing() {
		problems = append(problems, "source.params."+m)
	}
	if f.Target.ID == "" {
		problems = append(problems, "target.id")
	}
	for _, m := range f.Target.Params.missing() {
		problems = append(problems, "target.params."+m)
	}

	if len(problems) > 0 {
		return NewAPIError("Invalid migration", "missing required fields: "+strings.Join(problems, ", "))
	}
	return nil
}

// Services returns the source and target service types a mode accepts.
func (m MigrationMode) Services() (source ServiceType, target ServiceType, ok bool) {
	switch m {
	case ModeCentralToCentral:
		return ServiceCentral, ServiceCentral, true
	case ModeCentralToHub:
		return ServiceCentral, ServiceDPS, true
	case ModeHubToCentral:
		return ServiceDPS, ServiceCentral, true
	}
	return "", "", false
}

// missingFields returns the names of empty values, sorted for stable messages.
func missingFields(fields map[string]string) []string {
	var names []string
	for name, v := range fields {
		if strings.TrimSpace(v) == "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
