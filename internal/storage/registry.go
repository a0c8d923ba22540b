package storage

import (
	"fmt"
	"log/slog"
)

// Registry holds the storage providers offered to users, in display order.
type Registry struct {
	providers []Provider
	byName    map[string]int
}

// NewRegistry creates a registry from descriptors. Duplicate internal names
// are rejected.
func NewRegistry(providers ...Provider) (*Registry, error) {
	r := &Registry{byName: make(map[string]int)}
	for _, p := range providers {
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register appends a provider.
func (r *Registry) Register(p Provider) error {
	if p.InternalName == "" {
		return fmt.Errorf("storage provider %q has no internal name", p.Name)
	}
	if p.CreateOperations == nil {
		return fmt.Errorf("storage provider %s has no operations factory", p.InternalName)
	}
	if _, exists := r.byName[p.InternalName]; exists {
		return fmt.Errorf("storage provider %s registered twice", p.InternalName)
	}

	r.byName[p.InternalName] = len(r.providers)
	r.providers = append(r.providers, p)
	slog.Debug("Registered storage provider", "internal_name", p.InternalName, "disabled", p.Disabled)
	return nil
}

// Get returns the provider with the given internal name.
func (r *Registry) Get(internalName string) (Provider, error) {
	idx, ok := r.byName[internalName]
	if !ok {
		return Provider{}, fmt.Errorf("%w: %s", ErrUnknownProvider, internalName)
	}
	return r.providers[idx], nil
}

// IsValid checks if a provider name is registered.
func (r *Registry) IsValid(internalName string) bool {
	_, ok := r.byName[internalName]
	return ok
}

// List returns all providers in registration order.
func (r *Registry) List() []Provider {
	out := make([]Provider, len(r.providers))
	copy(out, r.providers)
	return out
}

// OpenDialogProviders returns the providers a user can open projects from.
func (r *Registry) OpenDialogProviders() []Provider {
	var out []Provider
	for _, p := range r.providers {
		if p.Disabled || p.HiddenInOpenDialog {
			continue
		}
		out = append(out, p)
	}
	return out
}

// FileMetadataFromAppArguments asks each provider in turn to recognize the
// launch arguments. The first match wins.
func (r *Registry) FileMetadataFromAppArguments(args map[string]string) (Provider, *FileMetadata, bool) {
	for _, p := range r.providers {
		if p.FileMetadataFromAppArguments == nil || p.Disabled {
			continue
		}
		if fm := p.FileMetadataFromAppArguments(args); fm != nil {
			return p, fm, true
		}
	}
	return Provider{}, nil, false
}

// Operations builds the operations of a provider for the given dependencies.
func (r *Registry) Operations(internalName string, deps Dependencies) (Operations, error) {
	p, err := r.Get(internalName)
	if err != nil {
		return nil, err
	}
	if p.Disabled {
		return nil, fmt.Errorf("%w: %s is disabled", ErrUnimplemented, internalName)
	}
	return p.CreateOperations(deps), nil
}
