// Package server exposes the ingestion pipeline over HTTP.
package server

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the HTTP service, read from
// SETTLER_-prefixed environment variables.
type Config struct {
	Addr           string        `envconfig:"ADDR" default:":8080"`
	ReadTimeout    time.Duration `envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout   time.Duration `envconfig:"WRITE_TIMEOUT" default:"30s"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"60s"`

	// MaxBodyBytes caps the settlement file size accepted in a request
	// body. Positional files are wide but short; 32 MiB is generous.
	MaxBodyBytes int64 `envconfig:"MAX_BODY_BYTES" default:"33554432"`

	// FetchTimeout bounds pulls when a request points at a source URL
	// instead of carrying the file inline.
	FetchTimeout time.Duration `envconfig:"FETCH_TIMEOUT" default:"30s"`

	PGDSN string `envconfig:"PG_DSN" default:""`

	TenantID     string `envconfig:"TENANT_ID" default:"default"`
	MerchantCode string `envconfig:"MERCHANT_CODE" default:""`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("settler", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
