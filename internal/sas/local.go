package sas

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	azsas "github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"
	"k8s.io/utils/clock"
)

// LocalIssuer signs read-only blob SAS tokens with the account key. It never
// performs network calls.
type LocalIssuer struct {
	account    ConnectionString
	container  string
	validity   time.Duration
	credential *azblob.SharedKeyCredential
	clock      clock.PassiveClock
}

var _ Issuer = (*LocalIssuer)(nil)

type LocalOption func(*LocalIssuer)

// WithLocalClock overrides the clock used to compute expiry.
func WithLocalClock(c clock.PassiveClock) LocalOption {
	return func(i *LocalIssuer) {
		i.clock = c
	}
}

// NewLocalIssuer parses the connection string and prepares the shared key credential.
func NewLocalIssuer(connectionString, container string, validity time.Duration, opts ...LocalOption) (*LocalIssuer, error) {
	account, err := ParseConnectionString(connectionString)
	if err != nil {
		return nil, fmt.Errorf("invalid storage connection string: %w", err)
	}
	if container == "" {
		return nil, fmt.Errorf("container name cannot be empty")
	}
	if validity <= 0 {
		return nil, fmt.Errorf("token validity must be positive, got %s", validity)
	}

	credential, err := azblob.NewSharedKeyCredential(account.AccountName, account.AccountKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create shared key credential for account %s: %w", account.AccountName, err)
	}

	i := &LocalIssuer{
		account:    account,
		container:  container,
		validity:   validity,
		credential: credential,
		clock:      clock.RealClock{},
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// AccountName is the storage account the issuer signs for.
func (i *LocalIssuer) AccountName() string {
	return i.account.AccountName
}

// Container is the single container the issuer signs for.
func (i *LocalIssuer) Container() string {
	return i.container
}

// BlobURL returns the unsigned URL of blob inside the configured container.
func (i *LocalIssuer) BlobURL(blob string) string {
	u := url.URL{
		Scheme: i.account.Protocol,
		Host:   i.account.BlobHost(),
		Path:   "/" + i.container + "/" + blob,
	}
	return u.String()
}

// SignedURL returns BlobURL(blob) with the token appended as its query string.
func (i *LocalIssuer) SignedURL(blob string, token *Token) string {
	return i.BlobURL(blob) + "?" + token.Value
}

// Issue signs a read SAS for blob, valid for the configured window from now.
func (i *LocalIssuer) Issue(_ context.Context, blob string) (*Token, error) {
	blob = strings.TrimPrefix(blob, "/")
	if blob == "" {
		return nil, unavailable("empty blob name")
	}

	expiry := i.clock.Now().UTC().Add(i.validity).Truncate(time.Second)
	values := azsas.BlobSignatureValues{
		ExpiryTime:    expiry,
		Permissions:   (&azsas.BlobPermissions{Read: true}).String(),
		ContainerName: i.container,
		BlobName:      blob,
	}

	params, err := values.SignWithSharedKey(i.credential)
	if err != nil {
		return nil, unavailableErr(fmt.Sprintf("signing blob %s/%s", i.container, blob), err)
	}

	return &Token{
		Value:     params.Encode(),
		ExpiresAt: expiry,
	}, nil
}
