// Package project holds the in-memory form of a game project and the zip
// container it is stored in.
package project

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotAnObject is returned when serialized content is valid JSON but not an object.
var ErrNotAnObject = errors.New("project content is not a JSON object")

// Project is a decoded project file. Only a couple of well-known fields are
// interpreted here; everything else is carried through untouched.
type Project map[string]any

// Parse decodes serialized project JSON.
func Parse(data []byte) (Project, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse project JSON: %w", err)
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, ErrNotAnObject
	}
	return Project(obj), nil
}

// Serialize encodes the project as JSON.
func (p Project) Serialize() ([]byte, error) {
	data, err := json.Marshal(map[string]any(p))
	if err != nil {
		return nil, fmt.Errorf("failed to serialize project: %w", err)
	}
	return data, nil
}

// Name returns properties.name, or "" when unset.
func (p Project) Name() string {
	props, ok := p["properties"].(map[string]any)
	if !ok {
		return ""
	}
	name, _ := props["name"].(string)
	return name
}

// SetName sets properties.name, creating the properties object if needed.
func (p Project) SetName(name string) {
	props, ok := p["properties"].(map[string]any)
	if !ok {
		props = make(map[string]any)
		p["properties"] = props
	}
	props["name"] = name
}

// Description returns properties.description.
func (p Project) Description() string {
	props, ok := p["properties"].(map[string]any)
	if !ok {
		return ""
	}
	desc, _ := props["description"].(string)
	return desc
}

// SetDescription sets properties.description.
func (p Project) SetDescription(description string) {
	props, ok := p["properties"].(map[string]any)
	if !ok {
		props = make(map[string]any)
		p["properties"] = props
	}
	props["description"] = description
}
