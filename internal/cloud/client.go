// Package cloud stores projects on the first-party cloud project service:
// metadata over its REST API, content as zipped versions in a bucket.
package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"projectstore/internal/auth"
	"projectstore/internal/config"
	"projectstore/internal/storage"

	"golang.org/x/time/rate"
)

// CloudProject is the service's record of a project.
type CloudProject struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	CurrentVersion string    `json:"currentVersion,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	LastModifiedAt time.Time `json:"lastModifiedAt"`
}

// Credentials are temporary bucket credentials scoped to one project.
type Credentials struct {
	AccessKeyID     string    `json:"accessKeyId"`
	SecretAccessKey string    `json:"secretAccessKey"`
	SessionToken    string    `json:"sessionToken"`
	Bucket          string    `json:"bucket"`
	Region          string    `json:"region,omitempty"`
	Endpoint        string    `json:"endpoint,omitempty"`
	Expiration      time.Time `json:"expiration"`
}

// CreateCloudProjectRequest is the body of a project creation.
type CreateCloudProjectRequest struct {
	Name string `json:"name"`
}

// UpdateCloudProjectRequest is the body of a metadata update. Nil fields are left unchanged.
type UpdateCloudProjectRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

type presignedURLResponse struct {
	SignedURL string `json:"signedUrl"`
}

type commitVersionRequest struct {
	PreviousVersion string `json:"previousVersion,omitempty"`
}

type commitVersionResponse struct {
	ID string `json:"id"`
}

// APIError is a non-2xx answer from the cloud service.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("cloud API returned status %d: %s", e.StatusCode, e.Body)
}

// API is the part of the cloud service the storage operations rely on.
type API interface {
	GetCloudProject(ctx context.Context, user auth.User, id string) (*CloudProject, error)
	ListCloudProjects(ctx context.Context, user auth.User) ([]CloudProject, error)
	CreateCloudProject(ctx context.Context, user auth.User, req CreateCloudProjectRequest) (*CloudProject, error)
	UpdateCloudProject(ctx context.Context, user auth.User, id string, req UpdateCloudProjectRequest) (*CloudProject, error)
	GetCredentialsForCloudProject(ctx context.Context, user auth.User, id string) (*Credentials, error)
	GetPresignedUploadURL(ctx context.Context, user auth.User, id string) (string, error)
	// CommitVersion records the uploaded zip as a new version. An empty id
	// means the service did not accept the version.
	CommitVersion(ctx context.Context, user auth.User, id, previousVersion string) (string, error)
}

// Client talks to the cloud project REST API. Calls are rate limited per process.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a client from the environment configuration.
func NewClient() *Client {
	return NewClientWithHTTP(config.CloudAPIBaseURL, &http.Client{Timeout: config.CloudAPITimeout},
		rate.NewLimiter(rate.Limit(config.CloudAPIRatePerSecond), config.CloudAPIBurst))
}

// NewClientWithHTTP creates a client with explicit collaborators (for testing).
// A nil limiter disables throttling.
func NewClientWithHTTP(baseURL string, httpClient *http.Client, limiter *rate.Limiter) *Client {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 0)
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		limiter:    limiter,
	}
}

func (c *Client) GetCloudProject(ctx context.Context, user auth.User, id string) (*CloudProject, error) {
	var project CloudProject
	if err := c.do(ctx, user, http.MethodGet, "/cloud-project/"+url.PathEscape(id), nil, &project); err != nil {
		return nil, fmt.Errorf("failed to get cloud project %s: %w", id, err)
	}
	return &project, nil
}

func (c *Client) ListCloudProjects(ctx context.Context, user auth.User) ([]CloudProject, error) {
	profile := user.Profile()
	if profile == nil {
		return nil, storage.ErrNotAuthenticated
	}

	var projects []CloudProject
	path := "/cloud-project?userId=" + url.QueryEscape(profile.ID)
	if err := c.do(ctx, user, http.MethodGet, path, nil, &projects); err != nil {
		return nil, fmt.Errorf("failed to list cloud projects: %w", err)
	}
	return projects, nil
}

func (c *Client) CreateCloudProject(ctx context.Context, user auth.User, req CreateCloudProjectRequest) (*CloudProject, error) {
	var project CloudProject
	if err := c.do(ctx, user, http.MethodPost, "/cloud-project", req, &project); err != nil {
		return nil, fmt.Errorf("failed to create cloud project: %w", err)
	}
	slog.Info("Created cloud project", "id", project.ID, "name", project.Name)
	return &project, nil
}

func (c *Client) UpdateCloudProject(ctx context.Context, user auth.User, id string, req UpdateCloudProjectRequest) (*CloudProject, error) {
	var project CloudProject
	if err := c.do(ctx, user, http.MethodPatch, "/cloud-project/"+url.PathEscape(id), req, &project); err != nil {
		return nil, fmt.Errorf("failed to update cloud project %s: %w", id, err)
	}
	return &project, nil
}

func (c *Client) GetCredentialsForCloudProject(ctx context.Context, user auth.User, id string) (*Credentials, error) {
	var creds Credentials
	path := "/cloud-project/" + url.PathEscape(id) + "/action/get-credentials"
	if err := c.do(ctx, user, http.MethodPost, path, nil, &creds); err != nil {
		return nil, fmt.Errorf("failed to get credentials for cloud project %s: %w", id, err)
	}
	return &creds, nil
}

func (c *Client) GetPresignedUploadURL(ctx context.Context, user auth.User, id string) (string, error) {
	var resp presignedURLResponse
	path := "/cloud-project/" + url.PathEscape(id) + "/action/create-presigned-url"
	if err := c.do(ctx, user, http.MethodPost, path, nil, &resp); err != nil {
		return "", fmt.Errorf("failed to get upload URL for cloud project %s: %w", id, err)
	}
	if resp.SignedURL == "" {
		return "", fmt.Errorf("cloud API returned an empty upload URL for project %s", id)
	}
	return resp.SignedURL, nil
}

func (c *Client) CommitVersion(ctx context.Context, user auth.User, id, previousVersion string) (string, error) {
	var resp commitVersionResponse
	path := "/cloud-project/" + url.PathEscape(id) + "/version"
	if err := c.do(ctx, user, http.MethodPost, path, commitVersionRequest{PreviousVersion: previousVersion}, &resp); err != nil {
		return "", fmt.Errorf("failed to commit version of cloud project %s: %w", id, err)
	}
	return resp.ID, nil
}

func (c *Client) do(ctx context.Context, user auth.User, method, path string, body, out any) error {
	if user == nil || !user.Authenticated() {
		return storage.ErrNotAuthenticated
	}
	authorization, err := user.AuthorizationHeader(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", storage.ErrNotAuthenticated, err)
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", authorization)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if resp.StatusCode == http.StatusUnauthorized {
			return fmt.Errorf("%w: %w", storage.ErrNotAuthenticated, &APIError{StatusCode: resp.StatusCode, Body: string(b)})
		}
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
