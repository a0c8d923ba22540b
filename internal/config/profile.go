package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Profile holds the settings projectctl reads from its YAML file.
type Profile struct {
	CloudAPIBaseURL string `yaml:"cloud_api_base_url"`
	ProfileID       string `yaml:"profile_id"`
	Email           string `yaml:"email"`

	Auth0 struct {
		Domain       string `yaml:"domain"`
		ClientID     string `yaml:"client_id"`
		RefreshToken string `yaml:"refresh_token"`
	} `yaml:"auth0"`

	Google struct {
		ClientSecretsFile string `yaml:"client_secrets_file"`
	} `yaml:"google"`

	AutoSaveBoltPath string `yaml:"autosave_bolt_path"`
	RecentDBPath     string `yaml:"recent_db_path"`
	DownloadDir      string `yaml:"download_dir"`
}

// DefaultProfilePath returns ~/.projectctl.yaml.
func DefaultProfilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".projectctl.yaml"
	}
	return filepath.Join(home, ".projectctl.yaml")
}

// LoadProfile reads a profile and applies it on top of the environment
// defaults. A missing file yields an empty profile.
func LoadProfile(path string) (*Profile, error) {
	p := &Profile{}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			p.applyDefaults()
			return p, nil
		}
		return nil, fmt.Errorf("failed to read profile %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("invalid profile %s: %w", path, err)
	}
	p.applyDefaults()
	return p, nil
}

func (p *Profile) applyDefaults() {
	if p.CloudAPIBaseURL == "" {
		p.CloudAPIBaseURL = CloudAPIBaseURL
	}
	if p.Google.ClientSecretsFile == "" {
		p.Google.ClientSecretsFile = GoogleClientSecretsFile
	}
	if p.AutoSaveBoltPath == "" {
		p.AutoSaveBoltPath = AutoSaveBoltPath
	}
	if p.RecentDBPath == "" {
		p.RecentDBPath = RecentProjectsDBPath
	}
	if p.DownloadDir == "" {
		p.DownloadDir = "."
	}
}
