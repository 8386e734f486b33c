package tokencache

import (
	"context"
	"time"

	"github.com/eo-datahub/stac-gateway/internal/sas"
)

// Record is an issued token answering for one scope key. Records are never
// mutated after they are stored; a refresh stores a new one.
type Record struct {
	ScopeKey  string
	Token     string
	ExpiresAt time.Time
}

// IssueFunc obtains a fresh token for scopeKey.
type IssueFunc func(ctx context.Context, scopeKey string) (*sas.Token, error)

// EntryInfo describes a cache entry without exposing the token value.
type EntryInfo struct {
	ScopeKey         string    `json:"scopeKey"`
	ExpiresAt        time.Time `json:"expiresAt,omitzero"`
	Unavailable      bool      `json:"unavailable"`
	UnavailableUntil time.Time `json:"unavailableUntil,omitzero"`
}

// entry is either a record or the unavailable sentinel.
type entry struct {
	record           *Record
	unavailableUntil time.Time
}

type lookupState int

const (
	stateMiss lookupState = iota
	stateFresh
	stateUnavailable
)
