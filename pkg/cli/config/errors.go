package config

import "github.com/m-mizutani/goerr/v2"

// Sentinel errors for configuration validation
var (
	ErrConfigNotFound    = goerr.New("configuration file not found")
	ErrInvalidConfig     = goerr.New("invalid configuration")
	ErrDuplicateTenantID = goerr.New("duplicate tenant ID")
	ErrMissingTenantID   = goerr.New("tenant ID is required")
)

// Context keys for error values
const (
	ConfigPathKey  = "config_path"
	TenantIDKey    = "tenant_id"
	TenantIndexKey = "tenant_index"
)
