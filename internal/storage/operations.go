package storage

import (
	"context"
	"time"

	"projectstore/internal/project"
)

// Capability names an operation a provider may support.
type Capability string

const (
	CapabilityOpen                 Capability = "open"
	CapabilitySave                 Capability = "save"
	CapabilitySaveAs               Capability = "save-as"
	CapabilityChooseSaveAsLocation Capability = "choose-save-as-location"
	CapabilityOpenWithPicker       Capability = "open-with-picker"
	CapabilityAutoSave             Capability = "autosave"
	CapabilityChangeProperty       Capability = "change-property"
	CapabilityList                 Capability = "list"
)

// AllCapabilities lists every capability in display order.
var AllCapabilities = []Capability{
	CapabilityOpen,
	CapabilitySave,
	CapabilitySaveAs,
	CapabilityChooseSaveAsLocation,
	CapabilityOpenWithPicker,
	CapabilityAutoSave,
	CapabilityChangeProperty,
	CapabilityList,
}

// Operations is the uniform contract every backend implements. Methods for
// capabilities a backend does not support return ErrUnsupported.
type Operations interface {
	Supports(c Capability) bool
	Open(ctx context.Context, fileMetadata FileMetadata, onProgress ProgressFunc) (*OpenResult, error)
	SaveProject(ctx context.Context, p project.Project, fileMetadata FileMetadata) (*SaveResult, error)
	SaveProjectAs(ctx context.Context, p project.Project, location *SaveAsLocation, opts SaveAsOptions) (*SaveResult, error)
	ChooseSaveProjectAsLocation(ctx context.Context, p project.Project, fileMetadata *FileMetadata) (*SaveAsLocation, error)
}

// AutoSaveOperations is implemented by backends with a local autosave cache.
type AutoSaveOperations interface {
	AutoSave(ctx context.Context, p project.Project, fileMetadata FileMetadata) error
	// GetAutoSaveCreationDate returns nil when there is no autosave worth
	// offering for recovery.
	GetAutoSaveCreationDate(ctx context.Context, fileMetadata FileMetadata, compareLastModified bool) (*time.Time, error)
	GetAutoSave(fileMetadata FileMetadata) FileMetadata
	BurstAutoSaveCache(ctx context.Context) error
}

// PropertyChanger is implemented by backends that store metadata separately
// from project content. It reports success instead of failing.
type PropertyChanger interface {
	ChangeProjectProperty(ctx context.Context, p project.Project, fileMetadata FileMetadata, props ProjectProperties) bool
}

// PickerOpener is implemented by backends that let the user pick a file.
type PickerOpener interface {
	OpenWithPicker(ctx context.Context) (*FileMetadata, error)
}

// Lister is implemented by backends that can enumerate the user's projects.
type Lister interface {
	ListProjects(ctx context.Context) ([]ProjectSummary, error)
}

// AsAutoSave returns the autosave extension when supported.
func AsAutoSave(ops Operations) (AutoSaveOperations, bool) {
	if !ops.Supports(CapabilityAutoSave) {
		return nil, false
	}
	a, ok := ops.(AutoSaveOperations)
	return a, ok
}

// AsPropertyChanger returns the property extension when supported.
func AsPropertyChanger(ops Operations) (PropertyChanger, bool) {
	if !ops.Supports(CapabilityChangeProperty) {
		return nil, false
	}
	p, ok := ops.(PropertyChanger)
	return p, ok
}

// AsPickerOpener returns the picker extension when supported.
func AsPickerOpener(ops Operations) (PickerOpener, bool) {
	if !ops.Supports(CapabilityOpenWithPicker) {
		return nil, false
	}
	p, ok := ops.(PickerOpener)
	return p, ok
}

// AsLister returns the listing extension when supported.
func AsLister(ops Operations) (Lister, bool) {
	if !ops.Supports(CapabilityList) {
		return nil, false
	}
	l, ok := ops.(Lister)
	return l, ok
}

// CapabilitySet is a small helper for Supports implementations.
type CapabilitySet map[Capability]bool

// NewCapabilitySet builds a set from a list.
func NewCapabilitySet(caps ...Capability) CapabilitySet {
	s := make(CapabilitySet, len(caps))
	for _, c := range caps {
		s[c] = true
	}
	return s
}

func (s CapabilitySet) Supports(c Capability) bool {
	return s[c]
}

// List returns the supported capabilities in display order.
func (s CapabilitySet) List() []Capability {
	var out []Capability
	for _, c := range AllCapabilities {
		if s[c] {
			out = append(out, c)
		}
	}
	return out
}

// Unsupported can be embedded to get ErrUnsupported for every base operation.
type Unsupported struct{}

func (Unsupported) Open(ctx context.Context, fileMetadata FileMetadata, onProgress ProgressFunc) (*OpenResult, error) {
	return nil, ErrUnsupported
}

func (Unsupported) SaveProject(ctx context.Context, p project.Project, fileMetadata FileMetadata) (*SaveResult, error) {
	return nil, ErrUnsupported
}

func (Unsupported) SaveProjectAs(ctx context.Context, p project.Project, location *SaveAsLocation, opts SaveAsOptions) (*SaveResult, error) {
	return nil, ErrUnsupported
}

func (Unsupported) ChooseSaveProjectAsLocation(ctx context.Context, p project.Project, fileMetadata *FileMetadata) (*SaveAsLocation, error) {
	return nil, ErrUnsupported
}
