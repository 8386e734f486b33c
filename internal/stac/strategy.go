package stac

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/eo-datahub/stac-gateway/internal/sas"
)

var (
	// ErrStructuralMismatch wraps every per-item or per-asset lookup failure.
	ErrStructuralMismatch = errors.New("structural mismatch")
	// ErrAlreadySigned marks hrefs that already carry a query string.
	ErrAlreadySigned = fmt.Errorf("%w: href already has a query string", ErrStructuralMismatch)
)

func mismatch(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrStructuralMismatch, fmt.Sprintf(format, args...))
}

// Strategy decides which assets are signed, how they are keyed in the token
// cache, and how a token is attached to an href.
type Strategy interface {
	// Name identifies the strategy in logs.
	Name() string
	// ItemScope resolves a scope shared by all assets of item. An empty scope
	// means assets are keyed individually by AssetScope.
	ItemScope(item gjson.Result) (string, error)
	// AssetScope returns the cache key for href.
	AssetScope(itemScope, href string) (string, error)
	// Issue obtains a token for a key returned by AssetScope.
	Issue(ctx context.Context, scope string) (*sas.Token, error)
	// Apply returns the href to emit.
	Apply(href, scope, token string) string
}

// LocalStrategy re-signs every asset stored in the issuer's account with a
// per-blob SAS and replaces the href with the full signed URL.
type LocalStrategy struct {
	issuer *sas.LocalIssuer
}

var _ Strategy = (*LocalStrategy)(nil)

func NewLocalStrategy(issuer *sas.LocalIssuer) *LocalStrategy {
	return &LocalStrategy{issuer: issuer}
}

func (s *LocalStrategy) Name() string { return "local" }

func (s *LocalStrategy) ItemScope(gjson.Result) (string, error) {
	return "", nil
}

// AssetScope keys by account/container/blob. Only hrefs naming the account are eligible.
func (s *LocalStrategy) AssetScope(_, href string) (string, error) {
	if !strings.Contains(href, s.issuer.AccountName()) {
		return "", mismatch("href %q does not reference account %s", href, s.issuer.AccountName())
	}

	blob := href
	if strings.HasPrefix(href, "http") {
		u, err := url.Parse(href)
		if err != nil {
			return "", mismatch("unparsable href %q", href)
		}
		blob = path.Base(u.Path)
	}
	if blob == "" || blob == "/" || blob == "." {
		return "", mismatch("href %q has no blob name", href)
	}

	return s.issuer.AccountName() + "/" + s.issuer.Container() + "/" + blob, nil
}

func (s *LocalStrategy) Issue(ctx context.Context, scope string) (*sas.Token, error) {
	return s.issuer.Issue(ctx, s.blob(scope))
}

func (s *LocalStrategy) Apply(_, scope, token string) string {
	return s.issuer.SignedURL(s.blob(scope), &sas.Token{Value: token})
}

func (s *LocalStrategy) blob(scope string) string {
	return strings.TrimPrefix(scope, s.issuer.AccountName()+"/"+s.issuer.Container()+"/")
}

// CollectionStrategy shares one remote token per collection, resolved from the
// item's rel=collection link, and appends it to unsigned storage hrefs.
type CollectionStrategy struct {
	issuer     sas.Issuer
	hostSuffix string
}

var _ Strategy = (*CollectionStrategy)(nil)

// NewCollectionStrategy signs hrefs whose host ends with hostSuffix. An empty
// suffix accepts any http(s) href.
func NewCollectionStrategy(issuer sas.Issuer, hostSuffix string) *CollectionStrategy {
	return &CollectionStrategy{issuer: issuer, hostSuffix: hostSuffix}
}

func (s *CollectionStrategy) Name() string { return "collection" }

func (s *CollectionStrategy) ItemScope(item gjson.Result) (string, error) {
	return CollectionID(item)
}

func (s *CollectionStrategy) AssetScope(itemScope, href string) (string, error) {
	if _, err := storageURL(href, s.hostSuffix); err != nil {
		return "", err
	}
	return itemScope, nil
}

func (s *CollectionStrategy) Issue(ctx context.Context, scope string) (*sas.Token, error) {
	return s.issuer.Issue(ctx, scope)
}

func (s *CollectionStrategy) Apply(href, _, token string) string {
	return href + "?" + token
}

// ContainerStrategy shares one remote token per storage account and container.
type ContainerStrategy struct {
	issuer     sas.Issuer
	hostSuffix string
}

var _ Strategy = (*ContainerStrategy)(nil)

func NewContainerStrategy(issuer sas.Issuer, hostSuffix string) *ContainerStrategy {
	return &ContainerStrategy{issuer: issuer, hostSuffix: hostSuffix}
}

func (s *ContainerStrategy) Name() string { return "container" }

func (s *ContainerStrategy) ItemScope(gjson.Result) (string, error) {
	return "", nil
}

// AssetScope keys by "{account}/{container}" taken from the href host and first path segment.
func (s *ContainerStrategy) AssetScope(_, href string) (string, error) {
	u, err := storageURL(href, s.hostSuffix)
	if err != nil {
		return "", err
	}
	account, _, _ := strings.Cut(u.Hostname(), ".")
	container, _, _ := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
	if account == "" || container == "" {
		return "", mismatch("href %q has no account or container", href)
	}
	return account + "/" + container, nil
}

func (s *ContainerStrategy) Issue(ctx context.Context, scope string) (*sas.Token, error) {
	return s.issuer.Issue(ctx, scope)
}

func (s *ContainerStrategy) Apply(href, _, token string) string {
	return href + "?" + token
}

// CollectionID returns the last path segment of the first rel=collection link of item.
func CollectionID(item gjson.Result) (string, error) {
	links := item.Get("links")
	if !links.IsArray() {
		return "", mismatch("item has no links")
	}

	var href string
	links.ForEach(func(_, link gjson.Result) bool {
		if link.Get("rel").String() == "collection" && link.Get("href").Type == gjson.String {
			href = link.Get("href").String()
			return false
		}
		return true
	})
	if href == "" {
		return "", mismatch("item has no collection link")
	}

	if u, err := url.Parse(href); err == nil {
		href = u.Path
	}
	id := path.Base(strings.TrimRight(href, "/"))
	if id == "" || id == "." || id == "/" {
		return "", mismatch("collection link %q has no id", href)
	}
	return id, nil
}

// storageURL checks href is an unsigned http(s) URL on a host ending with suffix.
func storageURL(href, suffix string) (*url.URL, error) {
	if strings.Contains(href, "?") {
		return nil, ErrAlreadySigned
	}
	u, err := url.Parse(href)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, mismatch("href %q is not an absolute http(s) URL", href)
	}
	if suffix != "" {
		host := u.Hostname()
		if host != suffix && !strings.HasSuffix(host, "."+suffix) {
			return nil, mismatch("href host %s does not match *.%s", host, suffix)
		}
	}
	return u, nil
}
