package sas

import (
	"errors"
	"fmt"
	"strings"
)

// ConnectionString holds the storage account fields the local issuer needs.
type ConnectionString struct {
	AccountName    string
	AccountKey     string
	EndpointSuffix string
	Protocol       string
}

// ParseConnectionString parses a `;`-delimited list of key=value pairs.
// Values may themselves contain '=' (base64 padding in AccountKey).
func ParseConnectionString(s string) (ConnectionString, error) {
	fields := make(map[string]string)
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return ConnectionString{}, fmt.Errorf("malformed connection string segment %q", key)
		}
		fields[key] = value
	}

	cs := ConnectionString{
		AccountName:    fields["AccountName"],
		AccountKey:     fields["AccountKey"],
		EndpointSuffix: fields["EndpointSuffix"],
		Protocol:       fields["DefaultEndpointsProtocol"],
	}
	if cs.AccountName == "" {
		return ConnectionString{}, errors.New("connection string has no AccountName")
	}
	if cs.AccountKey == "" {
		return ConnectionString{}, errors.New("connection string has no AccountKey")
	}
	if cs.EndpointSuffix == "" {
		return ConnectionString{}, errors.New("connection string has no EndpointSuffix")
	}
	if cs.Protocol == "" {
		cs.Protocol = "https"
	}
	return cs, nil
}

// BlobHost returns the blob service host, e.g. acct.blob.core.windows.net.
func (c ConnectionString) BlobHost() string {
	return c.AccountName + ".blob." + c.EndpointSuffix
}
