// Package dtdl searches DTDL capability models for components.
package dtdl

import (
	"encoding/json"
	"fmt"
	"slices"
)

// MigrationComponentID is the interface that declares the DeviceMove command.
const MigrationComponentID = "dtmi:azureiot:DeviceMigration;1"

// Types is a DTDL @type, which is either a string or an array of strings.
type Types []string

func (t *Types) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*t = Types{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("parsing @type: %w", err)
	}
	*t = many
	return nil
}

func (t Types) MarshalJSON() ([]byte, error) {
	if len(t) == 1 {
		return json.Marshal(t[0])
	}
	return json.Marshal([]string(t))
}

// Schema is a capability schema. Inline schemas carry an @id, references
// are a bare dtmi string.
type Schema struct {
	ID  string
	Raw json.RawMessage
}

func (s *Schema) UnmarshalJSON(data []byte) error {
	s.Raw = append(json.RawMessage(nil), data...)
	var ref string
	if err := json.Unmarshal(data, &ref); err == nil {
		s.ID = ref
		return nil
	}
	var obj struct {
		ID string `json:"@id"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		s.ID = obj.ID
	}
	return nil
}

func (s Schema) MarshalJSON() ([]byte, error) {
	if len(s.Raw) > 0 {
		return s.Raw, nil
	}
	return json.Marshal(s.ID)
}

// Capability is a node of a capability model tree.
type Capability struct {
	ID       string        `json:"@id,omitempty"`
	Type     Types         `json:"@type"`
	Name     string        `json:"name,omitempty"`
	Schema   *Schema       `json:"schema,omitempty"`
	Contents []*Capability `json:"contents,omitempty"`
}

// IsComponent reports whether the node is typed Component.
func (c *Capability) IsComponent() bool {
	return slices.Contains(c.Type, "Component")
}

func (c *Capability) matches(id string) bool {
	if !c.IsComponent() {
		return false
	}
	if c.ID == id {
		return true
	}
	return c.Schema != nil && c.Schema.ID != "" && c.Schema.ID == id
}

// FindComponent returns the first Component node, depth first, whose @id or
// schema @id equals id. A node is checked before its contents. It returns nil
// when nothing matches.
func FindComponent(root *Capability, id string) *Capability {
	if root == nil {
		return nil
	}
	if root.matches(id) {
		return root
	}
	for _, child := range root.Contents {
		if found := FindComponent(child, id); found != nil {
			return found
		}
	}
	return nil
}

// Parse decodes a capability model.
func Parse(data []byte) (*Capability, error) {
	var root Capability
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parsing capability model: %w", err)
	}
	return &root, nil
}
