package config

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
	"k8s.io/utils/env"

	"github.com/eo-datahub/stac-gateway/internal/constant"
	"github.com/eo-datahub/stac-gateway/internal/sas"
)

// FileEnv names the environment variable holding an optional YAML config file path.
const FileEnv = "STAC_GATEWAY_CONFIG"

// Config holds application configuration
type Config struct {
	// Name of the gateway instance, used in logs
	Name string `yaml:"name"`

	// Server configuration
	Address   string    `yaml:"address"`
	DebugMode bool      `yaml:"debug"`
	TLS       TLSConfig `yaml:"tls"`

	// UpstreamURL is the STAC API whose responses are rewritten
	UpstreamURL string `yaml:"upstreamURL"`

	IssuerMode IssuerMode `yaml:"issuerMode"`

	// Local signing configuration
	ConnectionString string        `yaml:"connectionString"`
	Container        string        `yaml:"container"`
	LocalValidity    time.Duration `yaml:"localValidity"`

	// Remote delegation configuration
	SigningEndpoint   string        `yaml:"signingEndpoint"`
	ExpiryField       string        `yaml:"expiryField"`
	CatalogURL        string        `yaml:"catalogURL"`
	RemoteScope       RemoteScope   `yaml:"remoteScope"`
	StorageHostSuffix string        `yaml:"storageHostSuffix"`
	SigningTimeout    time.Duration `yaml:"signingTimeout"`
	SigningRateLimit  float64       `yaml:"signingRateLimit"`

	// Token cache configuration
	RefreshMargin time.Duration `yaml:"refreshMargin"`
	NegativeTTL   time.Duration `yaml:"negativeTTL"`
	SweepInterval time.Duration `yaml:"sweepInterval"`
}

// Default returns the configuration used when nothing else is provided.
func Default() *Config {
	return &Config{
		Name:              constant.DefaultInstanceName,
		Address:           constant.DefaultAddress,
		TLS:               defaultTLSConfig(),
		IssuerMode:        LocalSigning,
		Container:         constant.DefaultContainer,
		LocalValidity:     constant.DefaultLocalValidity,
		SigningEndpoint:   constant.DefaultSigningEndpoint,
		ExpiryField:       constant.DefaultExpiryField,
		RemoteScope:       CollectionScope,
		StorageHostSuffix: constant.DefaultStorageSuffix,
		SigningTimeout:    constant.DefaultSigningTimeout,
		RefreshMargin:     constant.DefaultRefreshMargin,
		NegativeTTL:       constant.DefaultNegativeTTL,
		SweepInterval:     constant.DefaultSweepInterval,
	}
}

// Load builds the configuration from defaults, the optional YAML file, and environment
// variables, then binds command-line flags on top. Call flag.Parse and Validate afterwards.
func Load() (*Config, error) {
	c := Default()

	if path := env.GetString(FileEnv, ""); path != "" {
		if err := c.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := c.loadEnv(); err != nil {
		return nil, err
	}

	c.bindFlags(flag.CommandLine)

	return c, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnv() error {
	c.Name = env.GetString("INSTANCE_NAME", c.Name)
	c.Address = env.GetString("ADDRESS", c.Address)
	debug, err := env.GetBool("DEBUG_MODE", c.DebugMode)
	if err != nil {
		return fmt.Errorf("invalid DEBUG_MODE: %w", err)
	}
	c.DebugMode = debug

	c.UpstreamURL = env.GetString("UPSTREAM_URL", c.UpstreamURL)
	if v := env.GetString("ISSUER_MODE", ""); v != "" {
		if err := c.IssuerMode.Set(v); err != nil {
			return err
		}
	}

	c.ConnectionString = env.GetString("AZURE_STORAGE_CONNECTION_STRING", c.ConnectionString)
	c.Container = env.GetString("AZURE_STORAGE_BLOB_NAME_FOR_STAC_ITEMS", c.Container)

	c.SigningEndpoint = env.GetString("SIGNING_ENDPOINT", c.SigningEndpoint)
	c.ExpiryField = env.GetString("SIGNING_EXPIRY_FIELD", c.ExpiryField)
	c.CatalogURL = env.GetString("COLLECTION_CATALOG_URL", c.CatalogURL)
	c.StorageHostSuffix = env.GetString("STORAGE_HOST_SUFFIX", c.StorageHostSuffix)
	if v := env.GetString("REMOTE_SCOPE", ""); v != "" {
		if err := c.RemoteScope.Set(v); err != nil {
			return err
		}
	}
	if v := env.GetString("SIGNING_RATE_LIMIT", ""); v != "" {
		limit, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid SIGNING_RATE_LIMIT %q: %w", v, err)
		}
		c.SigningRateLimit = limit
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"LOCAL_SAS_VALIDITY", &c.LocalValidity},
		{"SIGNING_TIMEOUT", &c.SigningTimeout},
		{"TOKEN_REFRESH_MARGIN", &c.RefreshMargin},
		{"TOKEN_NEGATIVE_TTL", &c.NegativeTTL},
		{"TOKEN_SWEEP_INTERVAL", &c.SweepInterval},
	}
	for _, d := range durations {
		v := env.GetString(d.key, "")
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", d.key, v, err)
		}
		*d.dst = parsed
	}

	return c.TLS.loadEnv()
}

// bindFlags binds selected config options to the given flagset.
func (c *Config) bindFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Name, "name", c.Name, "Name of the gateway instance")
	fs.StringVar(&c.Address, "address", c.Address, "Address to listen on")
	fs.BoolVar(&c.DebugMode, "debug", c.DebugMode, "Enable debug logging and diagnostics endpoints")
	fs.StringVar(&c.UpstreamURL, "upstream-url", c.UpstreamURL, "URL of the upstream STAC API")
	fs.Var(&c.IssuerMode, "issuer-mode", "Token issuance mode: local or remote")

	fs.StringVar(&c.Container, "container", c.Container, "Blob container holding STAC assets (local mode)")
	fs.DurationVar(&c.LocalValidity, "local-sas-validity", c.LocalValidity, "Validity of locally signed SAS tokens")

	fs.StringVar(&c.SigningEndpoint, "signing-endpoint", c.SigningEndpoint, "Base URL of the remote signing service")
	fs.StringVar(&c.ExpiryField, "signing-expiry-field", c.ExpiryField, "Expiry field in signing service responses")
	fs.StringVar(&c.CatalogURL, "collection-catalog-url", c.CatalogURL, "STAC catalog used to check collections before signing (optional)")
	fs.Var(&c.RemoteScope, "remote-scope", "Remote token scope: collection or container")
	fs.StringVar(&c.StorageHostSuffix, "storage-host-suffix", c.StorageHostSuffix, "Host suffix identifying blob storage asset URLs")
	fs.DurationVar(&c.SigningTimeout, "signing-timeout", c.SigningTimeout, "Timeout for signing service calls")
	fs.Float64Var(&c.SigningRateLimit, "signing-rate-limit", c.SigningRateLimit, "Max signing service requests per second (0 = unlimited)")

	fs.DurationVar(&c.RefreshMargin, "token-refresh-margin", c.RefreshMargin, "Refresh cached tokens this long before they expire")
	fs.DurationVar(&c.NegativeTTL, "token-negative-ttl", c.NegativeTTL, "How long a failed issuance is remembered (0 disables)")
	fs.DurationVar(&c.SweepInterval, "token-sweep-interval", c.SweepInterval, "Interval for dropping expired cache entries")

	c.TLS.bindFlags(fs)
}

// Validate checks the configuration after flags are parsed.
func (c *Config) Validate() error {
	upstream, err := url.Parse(strings.TrimSpace(c.UpstreamURL))
	if err != nil || upstream.Host == "" || (upstream.Scheme != "http" && upstream.Scheme != "https") {
		return fmt.Errorf("--upstream-url must be an absolute http(s) URL, got %q", c.UpstreamURL)
	}

	switch c.IssuerMode {
	case LocalSigning:
		if strings.TrimSpace(c.ConnectionString) == "" {
			return errors.New("AZURE_STORAGE_CONNECTION_STRING is required in local issuer mode")
		}
		if _, err := sas.ParseConnectionString(c.ConnectionString); err != nil {
			return err
		}
		if c.Container == "" {
			return errors.New("--container cannot be empty in local issuer mode")
		}
		if c.LocalValidity <= c.RefreshMargin {
			return fmt.Errorf("--local-sas-validity (%s) must exceed --token-refresh-margin (%s)", c.LocalValidity, c.RefreshMargin)
		}
	case RemoteDelegation:
		if _, err := url.ParseRequestURI(c.SigningEndpoint); err != nil {
			return fmt.Errorf("invalid --signing-endpoint %q: %w", c.SigningEndpoint, err)
		}
		if c.CatalogURL != "" {
			if _, err := url.ParseRequestURI(c.CatalogURL); err != nil {
				return fmt.Errorf("invalid --collection-catalog-url %q: %w", c.CatalogURL, err)
			}
		}
		if c.SigningRateLimit < 0 {
			return errors.New("--signing-rate-limit cannot be negative")
		}
	default:
		return fmt.Errorf("unknown issuer mode %q", c.IssuerMode)
	}

	if c.RefreshMargin < 0 || c.NegativeTTL < 0 {
		return errors.New("token cache durations cannot be negative")
	}

	return c.TLS.validate()
}
