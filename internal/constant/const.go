package constant

import "time"

const (
	DefaultInstanceName = "stac-gateway"
	DefaultAddress      = ":8080"

	// Local signing.
	DefaultContainer     = "stac-items"
	DefaultLocalValidity = time.Hour

	// Remote delegation.
	DefaultSigningEndpoint = "https://planetarycomputer.microsoft.com/api/sas/v1/token"
	DefaultExpiryField     = "msft:expiry"
	DefaultStorageSuffix   = "blob.core.windows.net"
	DefaultSigningTimeout  = 10 * time.Second

	// Token cache.
	DefaultRefreshMargin = 20 * time.Minute
	DefaultNegativeTTL   = 5 * time.Minute
	DefaultSweepInterval = 10 * time.Minute

	// ExpiryLayout is the second-precision UTC layout used by the signing service.
	ExpiryLayout = "2006-01-02T15:04:05Z"

	// Header configuration constants.
	HeaderForwarded      = "Forwarded"
	HeaderForwardedProto = "X-Forwarded-Proto"
	HeaderForwardedPort  = "X-Forwarded-Port"
)
