package mock

import (
	"context"
	"sync"
	"time"

	"projectstore/internal/project"
	"projectstore/internal/storage"
)

// MockOperations is a test implementation of storage.Operations (and its
// optional extensions) that allows complete control over return values.
type MockOperations struct {
	mu sync.Mutex

	Capabilities storage.CapabilitySet

	// Open mock configuration
	OpenFunc   func(ctx context.Context, fm storage.FileMetadata, onProgress storage.ProgressFunc) (*storage.OpenResult, error)
	OpenResult *storage.OpenResult
	OpenError  error

	// SaveProject mock configuration
	SaveProjectResult *storage.SaveResult
	SaveProjectError  error

	// SaveProjectAs mock configuration
	SaveProjectAsFunc   func(ctx context.Context, p project.Project, location *storage.SaveAsLocation, opts storage.SaveAsOptions) (*storage.SaveResult, error)
	SaveProjectAsResult *storage.SaveResult
	SaveProjectAsError  error

	// ChooseSaveProjectAsLocation mock configuration
	ChooseLocationResult *storage.SaveAsLocation
	ChooseLocationError  error

	// Extensions
	AutoSaveError        error
	AutoSaveCreationDate *time.Time
	AutoSaveDateError    error
	BurstError           error
	ChangePropertyResult bool
	OpenWithPickerResult *storage.FileMetadata
	OpenWithPickerError  error
	ListResult           []storage.ProjectSummary
	ListError            error

	// Call tracking for verification
	OpenCalls           []storage.FileMetadata
	SaveProjectCalls    []SaveProjectCall
	SaveProjectAsCalls  []SaveProjectAsCall
	ChooseLocationCalls int
	AutoSaveCalls       []storage.FileMetadata
	AutoSaveDateCalls   []AutoSaveDateCall
	BurstCalls          int
	ChangePropertyCalls []storage.ProjectProperties
	OpenWithPickerCalls int
	ListCalls           int
}

// Call tracking structs
type SaveProjectCall struct {
	Project      project.Project
	FileMetadata storage.FileMetadata
}

type SaveProjectAsCall struct {
	Project  project.Project
	Location *storage.SaveAsLocation
}

type AutoSaveDateCall struct {
	FileMetadata        storage.FileMetadata
	CompareLastModified bool
}

// NewMockOperations creates a mock supporting the given capabilities.
func NewMockOperations(caps ...storage.Capability) *MockOperations {
	return &MockOperations{Capabilities: storage.NewCapabilitySet(caps...)}
}

func (m *MockOperations) Supports(c storage.Capability) bool {
	return m.Capabilities.Supports(c)
}

func (m *MockOperations) Open(ctx context.Context, fm storage.FileMetadata, onProgress storage.ProgressFunc) (*storage.OpenResult, error) {
	m.mu.Lock()
	m.OpenCalls = append(m.OpenCalls, fm)
	m.mu.Unlock()
	if m.OpenFunc != nil {
		return m.OpenFunc(ctx, fm, onProgress)
	}
	return m.OpenResult, m.OpenError
}

func (m *MockOperations) SaveProject(ctx context.Context, p project.Project, fm storage.FileMetadata) (*storage.SaveResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveProjectCalls = append(m.SaveProjectCalls, SaveProjectCall{Project: p, FileMetadata: fm})
	return m.SaveProjectResult, m.SaveProjectError
}

func (m *MockOperations) SaveProjectAs(ctx context.Context, p project.Project, location *storage.SaveAsLocation, opts storage.SaveAsOptions) (*storage.SaveResult, error) {
	m.mu.Lock()
	m.SaveProjectAsCalls = append(m.SaveProjectAsCalls, SaveProjectAsCall{Project: p, Location: location})
	m.mu.Unlock()
	if m.SaveProjectAsFunc != nil {
		return m.SaveProjectAsFunc(ctx, p, location, opts)
	}
	return m.SaveProjectAsResult, m.SaveProjectAsError
}

func (m *MockOperations) ChooseSaveProjectAsLocation(ctx context.Context, p project.Project, fm *storage.FileMetadata) (*storage.SaveAsLocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ChooseLocationCalls++
	return m.ChooseLocationResult, m.ChooseLocationError
}

func (m *MockOperations) AutoSave(ctx context.Context, p project.Project, fm storage.FileMetadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AutoSaveCalls = append(m.AutoSaveCalls, fm)
	return m.AutoSaveError
}

func (m *MockOperations) GetAutoSaveCreationDate(ctx context.Context, fm storage.FileMetadata, compareLastModified bool) (*time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AutoSaveDateCalls = append(m.AutoSaveDateCalls, AutoSaveDateCall{FileMetadata: fm, CompareLastModified: compareLastModified})
	return m.AutoSaveCreationDate, m.AutoSaveDateError
}

func (m *MockOperations) GetAutoSave(fm storage.FileMetadata) storage.FileMetadata {
	return storage.FileMetadata{FileIdentifier: "cache-autosave:" + fm.FileIdentifier}
}

func (m *MockOperations) BurstAutoSaveCache(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BurstCalls++
	return m.BurstError
}

func (m *MockOperations) ChangeProjectProperty(ctx context.Context, p project.Project, fm storage.FileMetadata, props storage.ProjectProperties) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ChangePropertyCalls = append(m.ChangePropertyCalls, props)
	return m.ChangePropertyResult
}

func (m *MockOperations) OpenWithPicker(ctx context.Context) (*storage.FileMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.OpenWithPickerCalls++
	return m.OpenWithPickerResult, m.OpenWithPickerError
}

func (m *MockOperations) ListProjects(ctx context.Context) ([]storage.ProjectSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ListCalls++
	return m.ListResult, m.ListError
}

// CallCount returns the number of calls made to each method for verification.
func (m *MockOperations) CallCount() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]int{
		"Open":                        len(m.OpenCalls),
		"SaveProject":                 len(m.SaveProjectCalls),
		"SaveProjectAs":               len(m.SaveProjectAsCalls),
		"ChooseSaveProjectAsLocation": m.ChooseLocationCalls,
		"AutoSave":                    len(m.AutoSaveCalls),
		"GetAutoSaveCreationDate":     len(m.AutoSaveDateCalls),
		"BurstAutoSaveCache":          m.BurstCalls,
		"ChangeProjectProperty":       len(m.ChangePropertyCalls),
		"OpenWithPicker":              m.OpenWithPickerCalls,
	}
}
