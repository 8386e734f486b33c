package fixtures

import (
	"testing"
	"time"

	"github.com/eo-datahub/stac-gateway/internal/logger"
	"github.com/eo-datahub/stac-gateway/internal/sas"
	"github.com/eo-datahub/stac-gateway/internal/stac"
	"github.com/eo-datahub/stac-gateway/internal/tokencache"
)

// Expiry returns a token expiry comfortably outside the default refresh margin.
func Expiry() time.Time {
	return time.Now().UTC().Add(time.Hour).Truncate(time.Second)
}

// NewRemoteRewriter wires a collection-scoped rewriter to signer with a real clock.
func NewRemoteRewriter(_ *testing.T, signer *SigningServer) *stac.Rewriter {
	issuer := sas.NewRemoteIssuer(signer.URL)
	strategy := stac.NewCollectionStrategy(issuer, "blob.core.windows.net")
	cache := tokencache.New(logger.Nop(), 20*time.Minute, time.Minute)
	return stac.NewRewriter(logger.Nop(), strategy, cache)
}
