package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	contractx "github.com/tanpawarit/parcel-scout/agent/contract"
	rpcx "github.com/tanpawarit/parcel-scout/pkg/rpc"
)

const (
	OpFetchSingleListingByURL = "fetchSingleListingByUrl"
	OpFetchNewListings        = "fetchNewListings"
)

// Clock is replaced in tests.
type Clock func() time.Time

// listingCatalog is the mock market. RetrievedAt is stamped on every read.
var listingCatalog = []contractx.PropertyListing{
	{
		ID:    "a1b2c3d4-e5f6-7890-1234-567890abcdef",
		Title: "Großes Agrarlandstück bei Düsseldorf",
		Address: contractx.Address{
			Street:     "Musterweg 10",
			City:       "Düsseldorf",
			PostalCode: "40210",
			State:      "Nordrhein-Westfalen",
		},
		PlotArea:       6200,
		Price:          744000,
		PricePerSqm:    120,
		PlotType:       contractx.PlotAgricultural,
		URL:            "https://www.immobilienscout24.de/expose/a1b2c3d4",
		GeoCoordinates: &contractx.GeoCoordinates{Latitude: 51.2277, Longitude: 6.7735},
	},
	{
		ID:    "5f0c9a1e-3b7d-4c2a-9e8f-1d2c3b4a5e6f",
		Title: "Wiesengrundstück am Niederrhein",
		Address: contractx.Address{
			Street:     "Auenweg 3",
			City:       "Wesel",
			PostalCode: "46483",
			State:      "Nordrhein-Westfalen",
		},
		PlotArea:       12500,
		Price:          937500,
		PricePerSqm:    75,
		PlotType:       contractx.PlotAgricultural,
		URL:            "https://www.immobilienscout24.de/expose/5f0c9a1e",
		GeoCoordinates: &contractx.GeoCoordinates{Latitude: 51.6581, Longitude: 6.6176},
	},
	{
		ID:    "9b8a7c6d-5e4f-4a3b-8c2d-1e0f9a8b7c6d",
		Title: "Gewerbebrache in Duisburg-Ruhrort",
		Address: contractx.Address{
			Street:     "Hafenstraße 21",
			City:       "Duisburg",
			PostalCode: "47119",
			State:      "Nordrhein-Westfalen",
		},
		PlotArea:       8000,
		Price:          1440000,
		PricePerSqm:    180,
		PlotType:       contractx.PlotCommercial,
		URL:            "https://www.immobilienscout24.de/expose/9b8a7c6d",
		GeoCoordinates: &contractx.GeoCoordinates{Latitude: 51.4556, Longitude: 6.7343},
	},
	{
		ID:    "2c4e6a8b-0d1f-4e3a-b5c7-d9e1f3a5b7c9",
		Title: "Ackerfläche im Havelland",
		Address: contractx.Address{
			Street:     "Feldmark 7",
			City:       "Nauen",
			PostalCode: "14641",
			State:      "Brandenburg",
		},
		PlotArea:       20000,
		Price:          700000,
		PricePerSqm:    35,
		PlotType:       contractx.PlotAgricultural,
		URL:            "https://www.immobilienscout24.de/expose/2c4e6a8b",
		GeoCoordinates: &contractx.GeoCoordinates{Latitude: 52.6047, Longitude: 12.8779},
	},
}

func listingOperations(now Clock) []rpcx.Operation {
	return []rpcx.Operation{
		{
			Name:   OpFetchSingleListingByURL,
			Params: []rpcx.Param{{Name: "url", Kind: rpcx.ParamString, Required: true}},
			Handler: func(ctx context.Context, params rpcx.Params) (any, error) {
				return fetchListingByURL(params.String("url"), now())
			},
		},
		{
			Name: OpFetchNewListings,
			Params: []rpcx.Param{
				{Name: "region", Kind: rpcx.ParamString, Required: true},
				{Name: "minSizeSqm", Kind: rpcx.ParamNumber},
				{Name: "maxPricePerSqm", Kind: rpcx.ParamNumber},
				{Name: "plotTypes", Kind: rpcx.ParamString},
			},
			Handler: func(ctx context.Context, params rpcx.Params) (any, error) {
				return fetchNewListings(params, now()), nil
			},
		},
	}
}

// fetchListingByURL returns the catalog entry for a known URL. Unknown URLs
// get the first catalog entry re-keyed with an id derived from the URL, so
// repeated scrapes of one URL agree with each other.
func fetchListingByURL(url string, now time.Time) (contractx.PropertyListing, error) {
	url = strings.TrimSpace(url)

	var out contractx.PropertyListing
	found := false
	for _, l := range listingCatalog {
		if l.URL == url {
			out = cloneListing(l)
			found = true
			break
		}
	}
	if !found {
		out = cloneListing(listingCatalog[0])
		out.ID = uuid.NewSHA1(uuid.NameSpaceURL, []byte(url)).String()
		out.URL = url
	}
	out.RetrievedAt = now.UTC()

	if err := contractx.Validate(out); err != nil {
		return contractx.PropertyListing{}, fmt.Errorf("failed to fetch or validate listing: %w", err)
	}
	return out, nil
}

func fetchNewListings(params rpcx.Params, now time.Time) []contractx.PropertyListing {
	region := strings.TrimSpace(params.String("region"))

	plotTypes := map[string]bool{}
	for _, t := range strings.Split(params.String("plotTypes"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			plotTypes[strings.ToLower(t)] = true
		}
	}

	out := []contractx.PropertyListing{}
	for _, l := range listingCatalog {
		if !strings.EqualFold(l.Address.State, region) && !strings.EqualFold(l.Address.City, region) {
			continue
		}
		if params.Has("minSizeSqm") && l.PlotArea < params.Number("minSizeSqm") {
			continue
		}
		if params.Has("maxPricePerSqm") && l.PricePerSqm > params.Number("maxPricePerSqm") {
			continue
		}
		if len(plotTypes) > 0 && !plotTypes[string(l.PlotType)] {
			continue
		}
		item := cloneListing(l)
		item.RetrievedAt = now.UTC()
		out = append(out, item)
	}
	return out
}

func cloneListing(l contractx.PropertyListing) contractx.PropertyListing {
	out := l
	if l.GeoCoordinates != nil {
		geo := *l.GeoCoordinates
		out.GeoCoordinates = &geo
	}
	return out
}

// DecodeListings reads the payload of fetchNewListings.
func DecodeListings(data json.RawMessage) ([]contractx.PropertyListing, error) {
	var out []contractx.PropertyListing
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: decode listings: %v", contractx.ErrSchemaViolation, err)
	}
	for i := range out {
		if err := contractx.Validate(out[i]); err != nil {
			return nil, fmt.Errorf("listing %d: %w", i, err)
		}
	}
	return out, nil
}

// DecodeListing reads the payload of fetchSingleListingByUrl.
func DecodeListing(data json.RawMessage) (contractx.PropertyListing, error) {
	var out contractx.PropertyListing
	if err := json.Unmarshal(data, &out); err != nil {
		return contractx.PropertyListing{}, fmt.Errorf("%w: decode listing: %v", contractx.ErrSchemaViolation, err)
	}
	if err := contractx.Validate(out); err != nil {
		return contractx.PropertyListing{}, err
	}
	return out, nil
}
