package fixtures

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"testing"
)

const (
	TestAccount    = "eodatahub"
	TestContainer  = "stac-items"
	TestCollection = "sentinel-2-l2a"
	TestSuffix     = "core.windows.net"
	TestCatalogURL = "https://stac.example.com"
)

// TestAccountKey is a syntactically valid shared key; the account does not exist.
var TestAccountKey = base64.StdEncoding.EncodeToString([]byte("stac-gateway-test-account-key"))

// TestConnectionString returns a connection string for TestAccount.
func TestConnectionString() string {
	return fmt.Sprintf("DefaultEndpointsProtocol=https;AccountName=%s;AccountKey=%s;EndpointSuffix=%s",
		TestAccount, TestAccountKey, TestSuffix)
}

// BlobURL returns the unsigned URL of blob in the test account and container.
func BlobURL(blob string) string {
	return fmt.Sprintf("https://%s.blob.%s/%s/%s", TestAccount, TestSuffix, TestContainer, blob)
}

// Item is a STAC Item under construction.
type Item map[string]any

// NewItem builds an Item in collection with the given asset name to href mapping.
// An empty collection leaves the item without a collection link.
func NewItem(id, collection string, assets map[string]string) Item {
	links := []any{
		map[string]any{"rel": "self", "href": TestCatalogURL + "/collections/" + collection + "/items/" + id},
	}
	if collection != "" {
		links = append(links, map[string]any{"rel": "collection", "href": TestCatalogURL + "/collections/" + collection})
	}

	assetObjs := make(map[string]any, len(assets))
	for name, href := range assets {
		assetObjs[name] = map[string]any{
			"href":  href,
			"type":  "image/tiff; application=geotiff; profile=cloud-optimized",
			"roles": []string{"data"},
		}
	}

	return Item{
		"type":         "Feature",
		"stac_version": "1.0.0",
		"id":           id,
		"collection":   collection,
		"geometry":     map[string]any{"type": "Point", "coordinates": []float64{4.89, 52.37}},
		"bbox":         []float64{4.89, 52.37, 4.89, 52.37},
		"properties":   map[string]any{"datetime": "2024-06-01T10:30:00Z"},
		"links":        links,
		"assets":       assetObjs,
	}
}

// JSON marshals the item, failing the test on error.
func (i Item) JSON(t *testing.T) []byte {
	t.Helper()
	return mustMarshal(t, i)
}

// FeatureCollection marshals items as a STAC ItemCollection.
func FeatureCollection(t *testing.T, items ...Item) []byte {
	t.Helper()
	features := make([]any, 0, len(items))
	for _, item := range items {
		features = append(features, item)
	}
	return mustMarshal(t, map[string]any{
		"type":     "FeatureCollection",
		"features": features,
		"links":    []any{},
		"context":  map[string]any{"returned": len(items)},
	})
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal fixture: %v", err)
	}
	return data
}
