package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Provider  ProviderConfig  `yaml:"provider"`
	AniList   AniListConfig   `yaml:"anilist"`
	Feeds     FeedsConfig     `yaml:"feeds"`
	Torrent   TorrentConfig   `yaml:"torrent"`
	Downloads DownloadsConfig `yaml:"downloads"`
	Notify    NotifyConfig    `yaml:"notify"`
}

type ServerConfig struct {
	HTTPPort    int `yaml:"http_port"`
	MetricsPort int `yaml:"metrics_port"`
}

type ProviderConfig struct {
	// Base URL of the scraped catalog site.
	URL string `yaml:"url"`
}

type AniListConfig struct {
	Token    string `yaml:"token"`
	Username string `yaml:"username"`
}

type FeedsConfig struct {
	URLs []string `yaml:"urls"`
	// Poll interval in seconds.
	PollInterval int `yaml:"poll_interval"`
	// Automatically start torrents for matched feed items.
	AutoDownload bool `yaml:"auto_download"`
}

type TorrentConfig struct {
	MetadataFolder string `yaml:"metadata_folder"`
	AddTimeout     int    `yaml:"add_timeout"` // seconds
	// Interval between transfer state checks, in seconds.
	StatePollInterval int `yaml:"state_poll_interval"`
}

type DownloadsConfig struct {
	// Root directory; each show gets a subdirectory named after its title.
	Directory string `yaml:"directory"`
}

type NotifyConfig struct {
	// Optional webhook posted on download completion. Empty means log only.
	WebhookURL string `yaml:"webhook_url"`
}

// DefaultConfig returns configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:    4455,
			MetricsPort: 9290,
		},
		Provider: ProviderConfig{
			URL: "https://anime4up.cam",
		},
		Feeds: FeedsConfig{
			URLs:         []string{"https://subsplease.org/rss/?r=1080"},
			PollInterval: 300,
			AutoDownload: true,
		},
		Torrent: TorrentConfig{
			MetadataFolder:    "./data/torrents",
			AddTimeout:        60,
			StatePollInterval: 5,
		},
		Downloads: DownloadsConfig{
			Directory: "./downloads",
		},
	}
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Use defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// EnsureDirectories creates required directories
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Torrent.MetadataFolder,
		c.Downloads.Directory,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	return nil
}

// SaveDirectory returns the download directory for a show title.
func (c *Config) SaveDirectory(title string) string {
	return filepath.Join(c.Downloads.Directory, title)
}
