package config

import (
	"errors"
	"io/fs"
	"os"

	"github.com/engram-dev/engram/pkg/domain/model"
	"github.com/engram-dev/engram/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v3"
)

// Tenants holds CLI flags for the tenant registry
type Tenants struct {
	path string
}

// TenantEntry represents one declared tenant in the TOML file
type TenantEntry struct {
	ID          string `toml:"id"`
	Name        string `toml:"name"`
	Description string `toml:"description"`
}

// Validate checks if the TenantEntry is valid
func (t *TenantEntry) Validate() error {
	if t.ID == "" {
		return goerr.Wrap(ErrMissingTenantID, "tenant entry without ID")
	}
	if err := types.TenantID(t.ID).Validate(); err != nil {
		return goerr.Wrap(err, "invalid tenant ID", goerr.V(TenantIDKey, t.ID))
	}
	return nil
}

type tenantsFile struct {
	Tenants []TenantEntry `toml:"tenant"`
}

// Flags returns CLI flags for tenant registry configuration
func (t *Tenants) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "tenants-config",
			Usage:       "Path to tenants TOML file. When set, dispatch rejects undeclared tenants",
			Sources:     cli.EnvVars("ENGRAM_TENANTS_CONFIG"),
			Destination: &t.path,
		},
	}
}

// Path returns the configured tenants file path
func (t *Tenants) Path() string {
	return t.path
}

// Configure loads the tenant registry from the configured file. With
// no file configured it returns an empty registry, meaning any
// well-formed tenant ID is accepted.
func (t *Tenants) Configure() (*model.TenantRegistry, error) {
	registry := model.NewTenantRegistry()
	if t.path == "" {
		return registry, nil
	}

	data, err := os.ReadFile(t.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, goerr.Wrap(ErrConfigNotFound, "tenants file not found",
				goerr.V(ConfigPathKey, t.path))
		}
		return nil, goerr.Wrap(err, "failed to read tenants file",
			goerr.V(ConfigPathKey, t.path))
	}

	var file tenantsFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, goerr.Wrap(ErrInvalidConfig, "failed to parse tenants file",
			goerr.V(ConfigPathKey, t.path),
			goerr.V("parse_error", err.Error()))
	}

	seen := make(map[string]bool)
	for i, entry := range file.Tenants {
		if err := entry.Validate(); err != nil {
			return nil, goerr.Wrap(err, "invalid tenant entry",
				goerr.V(TenantIndexKey, i))
		}
		if seen[entry.ID] {
			return nil, goerr.Wrap(ErrDuplicateTenantID, "tenant declared twice",
				goerr.V(TenantIDKey, entry.ID))
		}
		seen[entry.ID] = true

		registry.Register(&model.Tenant{
			ID:          types.TenantID(entry.ID),
			Name:        entry.Name,
			Description: entry.Description,
		})
	}

	return registry, nil
}
