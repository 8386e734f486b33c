package sas_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eo-datahub/stac-gateway/internal/sas"
)

func TestParseConnectionString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected sas.ConnectionString
		wantErr  string
	}{
		{
			name:  "full connection string",
			input: "DefaultEndpointsProtocol=https;AccountName=acct;AccountKey=a2V5;EndpointSuffix=core.windows.net",
			expected: sas.ConnectionString{
				AccountName:    "acct",
				AccountKey:     "a2V5",
				EndpointSuffix: "core.windows.net",
				Protocol:       "https",
			},
		},
		{
			name:  "padding in account key is kept",
			input: "AccountName=acct;AccountKey=a2V5cw==;EndpointSuffix=core.windows.net",
			expected: sas.ConnectionString{
				AccountName:    "acct",
				AccountKey:     "a2V5cw==",
				EndpointSuffix: "core.windows.net",
				Protocol:       "https",
			},
		},
		{
			name:  "trailing separator and http protocol",
			input: "DefaultEndpointsProtocol=http;AccountName=dev;AccountKey=a2V5;EndpointSuffix=local;",
			expected: sas.ConnectionString{
				AccountName:    "dev",
				AccountKey:     "a2V5",
				EndpointSuffix: "local",
				Protocol:       "http",
			},
		},
		{
			name:    "missing account name",
			input:   "AccountKey=a2V5;EndpointSuffix=core.windows.net",
			wantErr: "AccountName",
		},
		{
			name:    "missing account key",
			input:   "AccountName=acct;EndpointSuffix=core.windows.net",
			wantErr: "AccountKey",
		},
		{
			name:    "missing endpoint suffix",
			input:   "AccountName=acct;AccountKey=a2V5",
			wantErr: "EndpointSuffix",
		},
		{
			name:    "segment without separator",
			input:   "AccountName=acct;garbage;AccountKey=a2V5;EndpointSuffix=x",
			wantErr: "malformed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs, err := sas.ParseConnectionString(tt.input)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, cs)
		})
	}
}

func TestConnectionStringBlobHost(t *testing.T) {
	cs := sas.ConnectionString{AccountName: "acct", EndpointSuffix: "core.windows.net"}
	assert.Equal(t, "acct.blob.core.windows.net", cs.BlobHost())
}
