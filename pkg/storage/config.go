package storage

import (
	"fmt"
	"net/url"
	"os"
	"strings"
)

// Backend names accepted by Config.Backend.
const (
	BackendAzure  = "azure"
	BackendMemory = "memory"
)

// Config holds blob storage parameters. The Azure backend authenticates with
// ConnectionString when set; otherwise it uses AccountURL with the default
// Azure credential chain (environment, workload identity, managed identity,
// Azure CLI).
type Config struct {
	Backend          string `toml:"backend"`
	ContainerName    string `toml:"container_name"`
	ConnectionString string `toml:"connection_string"`
	AccountURL       string `toml:"account_url"`
	ExportPrefix     string `toml:"export_prefix"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Backend          string
	ContainerName    string
	ConnectionString string
	AccountURL       string
	ExportPrefix     string
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.Backend != "" {
		c.Backend = overlay.Backend
	}
	if overlay.ContainerName != "" {
		c.ContainerName = overlay.ContainerName
	}
	if overlay.ConnectionString != "" {
		c.ConnectionString = overlay.ConnectionString
	}
	if overlay.AccountURL != "" {
		c.AccountURL = overlay.AccountURL
	}
	if overlay.ExportPrefix != "" {
		c.ExportPrefix = overlay.ExportPrefix
	}
}

func (c *Config) loadDefaults() {
	if c.Backend == "" {
		c.Backend = BackendAzure
	}
	if c.ContainerName == "" {
		c.ContainerName = "lectern"
	}
	if c.ExportPrefix == "" {
		c.ExportPrefix = "course-sets"
	}
}

func (c *Config) loadEnv(env *Env) {
	set := func(name string, dst *string) {
		if name == "" {
			return
		}
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	set(env.Backend, &c.Backend)
	set(env.ContainerName, &c.ContainerName)
	set(env.ConnectionString, &c.ConnectionString)
	set(env.AccountURL, &c.AccountURL)
	set(env.ExportPrefix, &c.ExportPrefix)
}

func (c *Config) validate() error {
	c.ExportPrefix = strings.Trim(c.ExportPrefix, "/")

	switch c.Backend {
	case BackendMemory:
		return nil
	case BackendAzure:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}

	if c.ContainerName == "" {
		return fmt.Errorf("container_name required")
	}
	if c.ConnectionString != "" {
		return nil
	}
	if c.AccountURL == "" {
		return fmt.Errorf("connection_string or account_url required")
	}
	if u, err := url.Parse(c.AccountURL); err != nil || u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("account_url must be an https URL")
	}
	return nil
}
