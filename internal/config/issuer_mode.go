package config

import (
	"fmt"
	"strings"
)

var (
	// LocalSigning signs blob URLs in-process with the storage account key.
	LocalSigning IssuerMode = "local"
	// RemoteDelegation asks an external signing service for tokens.
	RemoteDelegation IssuerMode = "remote"
)

var (
	// CollectionScope keys remote tokens by the item's collection id.
	CollectionScope RemoteScope = "collection"
	// ContainerScope keys remote tokens by storage account and container.
	ContainerScope RemoteScope = "container"
)

// IssuerMode selects the token issuance strategy.
type IssuerMode string

func (m *IssuerMode) Set(s string) error {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(LocalSigning):
		*m = LocalSigning
	case string(RemoteDelegation):
		*m = RemoteDelegation
	default:
		return fmt.Errorf("unknown issuer mode %q (valid: %s, %s)", s, LocalSigning, RemoteDelegation)
	}
	return nil
}

func (m *IssuerMode) String() string {
	switch *m {
	case LocalSigning:
		return string(LocalSigning)
	case RemoteDelegation:
		return string(RemoteDelegation)
	default:
		return "unknown"
	}
}

// UnmarshalText lets the YAML decoder reuse Set validation.
func (m *IssuerMode) UnmarshalText(b []byte) error {
	return m.Set(string(b))
}

// RemoteScope selects how remote tokens are keyed.
type RemoteScope string

func (s *RemoteScope) Set(v string) error {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case string(CollectionScope):
		*s = CollectionScope
	case string(ContainerScope):
		*s = ContainerScope
	default:
		return fmt.Errorf("unknown remote scope %q (valid: %s, %s)", v, CollectionScope, ContainerScope)
	}
	return nil
}

func (s *RemoteScope) String() string {
	switch *s {
	case CollectionScope:
		return string(CollectionScope)
	case ContainerScope:
		return string(ContainerScope)
	default:
		return "unknown"
	}
}

func (s *RemoteScope) UnmarshalText(b []byte) error {
	return s.Set(string(b))
}
