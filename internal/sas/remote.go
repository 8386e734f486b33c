package sas

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/eo-datahub/stac-gateway/internal/constant"
)

const maxResponseBytes = 1 << 20

// RemoteIssuer obtains tokens from a signing service answering
// GET {endpoint}/{scope} with {"token": "...", "<expiry field>": "YYYY-MM-DDTHH:MM:SSZ"}.
type RemoteIssuer struct {
	endpoint    string
	expiryField string
	catalogURL  string
	client      *http.Client
	limiter     *rate.Limiter
}

var _ Issuer = (*RemoteIssuer)(nil)

type RemoteOption func(*RemoteIssuer)

// WithHTTPClient replaces the default client (10s timeout).
func WithHTTPClient(client *http.Client) RemoteOption {
	return func(i *RemoteIssuer) {
		i.client = client
	}
}

// WithExpiryField sets the gjson path of the expiry timestamp in the service response.
func WithExpiryField(field string) RemoteOption {
	return func(i *RemoteIssuer) {
		if field != "" {
			i.expiryField = field
		}
	}
}

// WithCollectionCheck makes the issuer confirm that {catalogURL}/collections/{scope}
// exists before asking for a token. Only meaningful for collection scopes.
func WithCollectionCheck(catalogURL string) RemoteOption {
	return func(i *RemoteIssuer) {
		i.catalogURL = strings.TrimRight(catalogURL, "/")
	}
}

// WithRateLimit caps outgoing calls to perSecond requests per second. Zero disables it.
func WithRateLimit(perSecond float64) RemoteOption {
	return func(i *RemoteIssuer) {
		if perSecond > 0 {
			i.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

func NewRemoteIssuer(endpoint string, opts ...RemoteOption) *RemoteIssuer {
	i := &RemoteIssuer{
		endpoint:    strings.TrimRight(endpoint, "/"),
		expiryField: constant.DefaultExpiryField,
		client:      &http.Client{Timeout: constant.DefaultSigningTimeout},
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Issue requests a token for scope. Scopes containing '/' (account/container) are
// sent as multiple path segments.
func (i *RemoteIssuer) Issue(ctx context.Context, scope string) (*Token, error) {
	scope = strings.Trim(scope, "/")
	if scope == "" {
		return nil, unavailable("empty scope")
	}

	if i.catalogURL != "" {
		if err := i.checkCollection(ctx, scope); err != nil {
			return nil, err
		}
	}

	body, err := i.get(ctx, i.endpoint+"/"+escapeSegments(scope))
	if err != nil {
		return nil, err
	}

	value := gjson.GetBytes(body, "token")
	if value.Type != gjson.String || value.String() == "" {
		return nil, unavailable("signing response for %s has no token", scope)
	}

	rawExpiry := gjson.GetBytes(body, i.expiryField)
	if rawExpiry.Type != gjson.String {
		return nil, unavailable("signing response for %s has no %s", scope, i.expiryField)
	}
	expiry, err := time.Parse(constant.ExpiryLayout, rawExpiry.String())
	if err != nil {
		return nil, unavailableErr(fmt.Sprintf("signing response for %s has malformed expiry", scope), err)
	}

	return &Token{
		Value:     value.String(),
		ExpiresAt: expiry.UTC(),
	}, nil
}

func (i *RemoteIssuer) checkCollection(ctx context.Context, collection string) error {
	if _, err := i.get(ctx, i.catalogURL+"/collections/"+url.PathEscape(collection)); err != nil {
		return fmt.Errorf("collection %s not found in catalog: %w", collection, err)
	}
	return nil
}

func (i *RemoteIssuer) get(ctx context.Context, target string) ([]byte, error) {
	if i.limiter != nil {
		if err := i.limiter.Wait(ctx); err != nil {
			return nil, unavailableErr("waiting for signing rate limit", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, unavailableErr("building request for "+target, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := i.client.Do(req)
	if err != nil {
		return nil, unavailableErr("calling "+target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil, unavailable("%s returned HTTP %d", target, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, unavailableErr("reading response from "+target, err)
	}
	return body, nil
}

func escapeSegments(scope string) string {
	segments := strings.Split(scope, "/")
	for n, s := range segments {
		segments[n] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}
