package endpoints

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"projectstore/internal/auth"
	"projectstore/internal/config"
	"projectstore/internal/download"
	"projectstore/internal/modal"
	"projectstore/internal/project"
	"projectstore/internal/recent"
	"projectstore/internal/storage"

	"github.com/gin-gonic/gin"
)

// RecentStore defines the interface for recent project bookkeeping
type RecentStore interface {
	Add(ctx context.Context, e recent.Entry) error
	List(ctx context.Context, profileID string) ([]recent.Entry, error)
	Remove(ctx context.Context, profileID, providerName, fileIdentifier string) error
}

// DownloadStore serves files offered by the download provider
type DownloadStore interface {
	Open(id string) (io.ReadCloser, *download.Offer, error)
}

// Handlers serves the storage API. Recent and Downloads may be nil.
type Handlers struct {
	Registry  *storage.Registry
	Recent    RecentStore
	Downloads DownloadStore
}

// Answers carries the modal answers a client collected before retrying a
// request that failed with 428. Save-as pickers take a FileChoice object;
// every other kind takes a string. null means the user cancelled.
type Answers map[modal.Kind]json.RawMessage

// ProviderInfo describes a registered provider.
type ProviderInfo struct {
	InternalName       string               `json:"internalName"`
	Name               string               `json:"name"`
	Disabled           bool                 `json:"disabled"`
	HiddenInOpenDialog bool                 `json:"hiddenInOpenDialog"`
	Capabilities       []storage.Capability `json:"capabilities"`
}

type ProgressStep struct {
	Progress float64 `json:"progress"`
	Message  string  `json:"message"`
}

type OpenRequest struct {
	FileMetadata storage.FileMetadata `json:"fileMetadata"`
	Answers      Answers              `json:"answers,omitempty"`
}

type OpenResponse struct {
	Content  project.Project `json:"content"`
	Progress []ProgressStep  `json:"progress"`
}

type SaveRequest struct {
	Project      project.Project      `json:"project"`
	FileMetadata storage.FileMetadata `json:"fileMetadata"`
	Answers      Answers              `json:"answers,omitempty"`
}

type SaveAsRequest struct {
	Project  project.Project         `json:"project"`
	Location *storage.SaveAsLocation `json:"location"`
	Answers  Answers                 `json:"answers,omitempty"`
}

// SaveResponse adds the links the user was offered while saving.
type SaveResponse struct {
	storage.SaveResult
	Downloads []string `json:"downloads,omitempty"`
}

type ChooseLocationRequest struct {
	Project      project.Project       `json:"project"`
	FileMetadata *storage.FileMetadata `json:"fileMetadata,omitempty"`
	Answers      Answers               `json:"answers,omitempty"`
}

type PropertiesRequest struct {
	Project      project.Project           `json:"project"`
	FileMetadata storage.FileMetadata      `json:"fileMetadata"`
	Properties   storage.ProjectProperties `json:"properties"`
}

type PropertiesResponse struct {
	Changed bool            `json:"changed"`
	Project project.Project `json:"project"`
}

type PickerRequest struct {
	Answers Answers `json:"answers,omitempty"`
}

type AutoSaveDateRequest struct {
	FileMetadata        storage.FileMetadata `json:"fileMetadata"`
	CompareLastModified bool                 `json:"compareLastModified"`
}

type AutoSaveDateResponse struct {
	CreationDate *time.Time `json:"creationDate"`
}

type AppArgumentsRequest struct {
	Arguments map[string]string `json:"arguments"`
}

type AppArgumentsResponse struct {
	StorageProviderName string                `json:"storageProviderName"`
	FileMetadata        *storage.FileMetadata `json:"fileMetadata"`
}

// requestHost answers modals from the request body and keeps the download
// links presented along the way.
type requestHost struct {
	answers modal.Answers

	mu        sync.Mutex
	downloads []string
}

func newRequestHost(raw Answers) (*requestHost, error) {
	answers := make(modal.Answers, len(raw))
	for kind, value := range raw {
		if len(value) == 0 || string(value) == "null" {
			answers[kind] = nil
			continue
		}
		if kind == modal.KindDriveSaveAs {
			var choice modal.FileChoice
			if err := json.Unmarshal(value, &choice); err != nil {
				return nil, fmt.Errorf("invalid answer for %s: %w", kind, err)
			}
			answers[kind] = choice
			continue
		}
		var text string
		if err := json.Unmarshal(value, &text); err != nil {
			return nil, fmt.Errorf("invalid answer for %s: %w", kind, err)
		}
		answers[kind] = text
	}
	return &requestHost{answers: answers}, nil
}

func (h *requestHost) Present(ctx context.Context, req modal.Request) (any, error) {
	if req.Kind == modal.KindDownloadReady {
		h.mu.Lock()
		h.downloads = append(h.downloads, req.URL)
		h.mu.Unlock()
		return nil, nil
	}
	return h.answers.Present(ctx, req)
}

func (h *requestHost) Downloads() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.downloads...)
}

// operations binds the provider named in the path to the request's user.
func (h *Handlers) operations(c *gin.Context, answers Answers) (storage.Operations, *requestHost, bool) {
	host, err := newRequestHost(answers)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return nil, nil, false
	}

	ops, err := h.Registry.Operations(c.Param("provider"), storage.Dependencies{
		User:  GetUser(c),
		Modal: host,
	})
	if err != nil {
		respondError(c, err)
		return nil, nil, false
	}
	return ops, host, true
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		slog.Warn("Invalid request body", "path", c.Request.URL.Path, "error", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "Request body is too large"})
			return false
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body: " + err.Error()})
		return false
	}
	return true
}

// HandleHealth reports liveness
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "projectstore",
	})
}

// HandleListProviders returns every registered provider in display order
func (h *Handlers) HandleListProviders(c *gin.Context) {
	providers := h.Registry.List()
	out := make([]ProviderInfo, 0, len(providers))
	for _, p := range providers {
		info := ProviderInfo{
			InternalName:       p.InternalName,
			Name:               p.Name,
			Disabled:           p.Disabled,
			HiddenInOpenDialog: p.HiddenInOpenDialog,
			Capabilities:       []storage.Capability{},
		}
		if !p.Disabled {
			ops := p.CreateOperations(storage.Dependencies{User: auth.Anonymous()})
			for _, capability := range storage.AllCapabilities {
				if ops.Supports(capability) {
					info.Capabilities = append(info.Capabilities, capability)
				}
			}
		}
		out = append(out, info)
	}
	c.JSON(http.StatusOK, gin.H{"providers": out})
}

// HandleOpen loads a project and reports the progress steps it went through
func (h *Handlers) HandleOpen(c *gin.Context) {
	var req OpenRequest
	if !bindJSON(c, &req) {
		return
	}
	ops, _, ok := h.operations(c, req.Answers)
	if !ok {
		return
	}

	var mu sync.Mutex
	progress := []ProgressStep{}
	onProgress := func(p float64, message string) {
		mu.Lock()
		defer mu.Unlock()
		progress = append(progress, ProgressStep{Progress: p, Message: message})
	}

	result, err := ops.Open(c.Request.Context(), req.FileMetadata, onProgress)
	if err != nil {
		respondOpenError(c, err)
		return
	}

	if !strings.HasPrefix(req.FileMetadata.FileIdentifier, config.AutoSavePrefix) {
		h.remember(c, req.FileMetadata, result.Content.Name())
	}

	mu.Lock()
	defer mu.Unlock()
	c.JSON(http.StatusOK, OpenResponse{Content: result.Content, Progress: progress})
}

// HandleSave writes a project back to where it was opened from
func (h *Handlers) HandleSave(c *gin.Context) {
	var req SaveRequest
	if !bindJSON(c, &req) {
		return
	}
	ops, host, ok := h.operations(c, req.Answers)
	if !ok {
		return
	}

	result, err := ops.SaveProject(c.Request.Context(), req.Project, req.FileMetadata)
	if err != nil {
		respondError(c, err)
		return
	}
	if !result.WasSaved {
		slog.Warn("Project was not saved", "provider", c.Param("provider"), "file_identifier", req.FileMetadata.FileIdentifier)
	}
	c.JSON(http.StatusOK, SaveResponse{SaveResult: *result, Downloads: host.Downloads()})
}

// HandleSaveAs writes a project to a new location
func (h *Handlers) HandleSaveAs(c *gin.Context) {
	var req SaveAsRequest
	if !bindJSON(c, &req) {
		return
	}
	ops, host, ok := h.operations(c, req.Answers)
	if !ok {
		return
	}

	result, err := ops.SaveProjectAs(c.Request.Context(), req.Project, req.Location, storage.SaveAsOptions{})
	if err != nil {
		respondError(c, err)
		return
	}
	if result.WasSaved && result.FileMetadata != nil {
		h.remember(c, *result.FileMetadata, req.Project.Name())
	}
	c.JSON(http.StatusOK, SaveResponse{SaveResult: *result, Downloads: host.Downloads()})
}

// HandleChooseSaveAsLocation asks the user where a project should be saved
func (h *Handlers) HandleChooseSaveAsLocation(c *gin.Context) {
	var req ChooseLocationRequest
	if !bindJSON(c, &req) {
		return
	}
	ops, _, ok := h.operations(c, req.Answers)
	if !ok {
		return
	}

	location, err := ops.ChooseSaveProjectAsLocation(c.Request.Context(), req.Project, req.FileMetadata)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"location": location})
}

// HandleChangeProperties updates project metadata without a full save
func (h *Handlers) HandleChangeProperties(c *gin.Context) {
	var req PropertiesRequest
	if !bindJSON(c, &req) {
		return
	}
	ops, _, ok := h.operations(c, nil)
	if !ok {
		return
	}
	changer, ok := storage.AsPropertyChanger(ops)
	if !ok {
		respondError(c, storage.ErrUnsupported)
		return
	}
	if req.Project == nil {
		req.Project = project.Project{}
	}

	changed := changer.ChangeProjectProperty(c.Request.Context(), req.Project, req.FileMetadata, req.Properties)
	c.JSON(http.StatusOK, PropertiesResponse{Changed: changed, Project: req.Project})
}

// HandleOpenWithPicker lets the user pick a file from the provider
func (h *Handlers) HandleOpenWithPicker(c *gin.Context) {
	var req PickerRequest
	if !bindJSON(c, &req) {
		return
	}
	ops, _, ok := h.operations(c, req.Answers)
	if !ok {
		return
	}
	picker, ok := storage.AsPickerOpener(ops)
	if !ok {
		respondError(c, storage.ErrUnsupported)
		return
	}

	fm, err := picker.OpenWithPicker(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"fileMetadata": fm})
}

// HandleListProjects lists the user's projects in the provider
func (h *Handlers) HandleListProjects(c *gin.Context) {
	ops, _, ok := h.operations(c, nil)
	if !ok {
		return
	}
	lister, ok := storage.AsLister(ops)
	if !ok {
		respondError(c, storage.ErrUnsupported)
		return
	}

	projects, err := lister.ListProjects(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if projects == nil {
		projects = []storage.ProjectSummary{}
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

func (h *Handlers) autoSaveOperations(c *gin.Context) (storage.AutoSaveOperations, bool) {
	ops, _, ok := h.operations(c, nil)
	if !ok {
		return nil, false
	}
	autoSave, ok := storage.AsAutoSave(ops)
	if !ok {
		respondError(c, storage.ErrUnsupported)
		return nil, false
	}
	return autoSave, true
}

// HandleAutoSave stores a snapshot of an unsaved project
func (h *Handlers) HandleAutoSave(c *gin.Context) {
	var req SaveRequest
	if !bindJSON(c, &req) {
		return
	}
	autoSave, ok := h.autoSaveOperations(c)
	if !ok {
		return
	}

	if err := autoSave.AutoSave(c.Request.Context(), req.Project, req.FileMetadata); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleAutoSaveCreationDate tells whether an autosave is worth offering
func (h *Handlers) HandleAutoSaveCreationDate(c *gin.Context) {
	var req AutoSaveDateRequest
	if !bindJSON(c, &req) {
		return
	}
	autoSave, ok := h.autoSaveOperations(c)
	if !ok {
		return
	}

	date, err := autoSave.GetAutoSaveCreationDate(c.Request.Context(), req.FileMetadata, req.CompareLastModified)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, AutoSaveDateResponse{CreationDate: date})
}

// HandleAutoSaveMetadata returns the file metadata that opens the autosave
func (h *Handlers) HandleAutoSaveMetadata(c *gin.Context) {
	var req OpenRequest
	if !bindJSON(c, &req) {
		return
	}
	autoSave, ok := h.autoSaveOperations(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"fileMetadata": autoSave.GetAutoSave(req.FileMetadata)})
}

// HandleBurstAutoSaveCache drops every cached autosave
func (h *Handlers) HandleBurstAutoSaveCache(c *gin.Context) {
	autoSave, ok := h.autoSaveOperations(c)
	if !ok {
		return
	}
	if err := autoSave.BurstAutoSaveCache(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleAppArguments finds the project a launch URL points at
func (h *Handlers) HandleAppArguments(c *gin.Context) {
	var req AppArgumentsRequest
	if !bindJSON(c, &req) {
		return
	}

	p, fm, ok := h.Registry.FileMetadataFromAppArguments(req.Arguments)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no storage provider recognizes these arguments"})
		return
	}
	c.JSON(http.StatusOK, AppArgumentsResponse{StorageProviderName: p.InternalName, FileMetadata: fm})
}

// HandleListRecent returns the user's recently used projects
func (h *Handlers) HandleListRecent(c *gin.Context) {
	userID, err := GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Unauthorized"})
		return
	}
	if h.Recent == nil {
		c.JSON(http.StatusOK, gin.H{"projects": []recent.Entry{}})
		return
	}

	entries, err := h.Recent.List(c.Request.Context(), userID)
	if err != nil {
		slog.Error("Failed to list recent projects", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to list recent projects"})
		return
	}
	if entries == nil {
		entries = []recent.Entry{}
	}
	c.JSON(http.StatusOK, gin.H{"projects": entries})
}

// HandleRemoveRecent forgets one recent project
func (h *Handlers) HandleRemoveRecent(c *gin.Context) {
	userID, err := GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Unauthorized"})
		return
	}
	if h.Recent != nil {
		if err := h.Recent.Remove(c.Request.Context(), userID, c.Param("provider"), c.Param("fileId")); err != nil {
			slog.Error("Failed to remove recent project", "user_id", userID, "error", err)
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to remove recent project"})
			return
		}
	}
	c.Status(http.StatusNoContent)
}

// HandleDownload serves a file offered by the download provider
func (h *Handlers) HandleDownload(c *gin.Context) {
	if h.Downloads == nil {
		respondError(c, download.ErrNotFound)
		return
	}

	rc, offer, err := h.Downloads.Open(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	defer rc.Close()

	c.DataFromReader(http.StatusOK, -1, "application/json", rc, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", offer.Filename),
	})
}

// remember records a recent project; failures only get logged.
func (h *Handlers) remember(c *gin.Context, fm storage.FileMetadata, name string) {
	if h.Recent == nil {
		return
	}
	userID, err := GetUserID(c)
	if err != nil {
		return
	}
	err = h.Recent.Add(c.Request.Context(), recent.Entry{
		ProfileID:    userID,
		ProviderName: c.Param("provider"),
		FileMetadata: fm,
		Name:         name,
	})
	if err != nil {
		slog.Warn("Failed to record recent project", "user_id", userID, "error", err)
	}
}
