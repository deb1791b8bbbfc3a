package datasource

import (
	"context"

	rpcx "github.com/tanpawarit/parcel-scout/pkg/rpc"
)

const (
	OpGetLandMonitoringData = "getLandMonitoringData"
	OpGetRegulatoryData     = "getRegulatoryData"
	OpSearch                = "search"
)

type LandMonitoringData struct {
	Latitude              float64 `json:"latitude"`
	Longitude             float64 `json:"longitude"`
	LandCover             string  `json:"landCover"`
	SoilSealing           string  `json:"soilSealing"`
	BiodiversityPotential string  `json:"biodiversityPotential"`
	ClimateResilience     string  `json:"climateResilience"`
}

type RegulatoryData struct {
	Latitude              float64  `json:"latitude"`
	Longitude             float64  `json:"longitude"`
	ZoningCompliance      string   `json:"zoningCompliance"`
	ProtectedAreaStatus   string   `json:"protectedAreaStatus"`
	PotentialRestrictions []string `json:"potentialRestrictions"`
}

type SearchResult struct {
	Position int    `json:"position"`
	Title    string `json:"title"`
	Snippet  string `json:"snippet"`
}

type SearchResponse struct {
	OrganicResults []SearchResult `json:"organic_results"`
}

var coordinateParams = []rpcx.Param{
	{Name: "latitude", Kind: rpcx.ParamNumber, Required: true},
	{Name: "longitude", Kind: rpcx.ParamNumber, Required: true},
}

func environmentOperations() []rpcx.Operation {
	return []rpcx.Operation{{
		Name:   OpGetLandMonitoringData,
		Params: coordinateParams,
		Handler: func(ctx context.Context, params rpcx.Params) (any, error) {
			return LandMonitoringData{
				Latitude:              params.Number("latitude"),
				Longitude:             params.Number("longitude"),
				LandCover:             "Predominantly agricultural land with patches of broad-leaved forest.",
				SoilSealing:           "Low (2-5% impervious surfaces).",
				BiodiversityPotential: "Moderate due to proximity to mixed woodland.",
				ClimateResilience:     "Good, area shows low risk of soil erosion.",
			}, nil
		},
	}}
}

func regulatoryOperations() []rpcx.Operation {
	return []rpcx.Operation{{
		Name:   OpGetRegulatoryData,
		Params: coordinateParams,
		Handler: func(ctx context.Context, params rpcx.Params) (any, error) {
			return RegulatoryData{
				Latitude:            params.Number("latitude"),
				Longitude:           params.Number("longitude"),
				ZoningCompliance:    "Designated as agricultural land (Flächennutzungsplan: Landwirtschaft).",
				ProtectedAreaStatus: "Outside of major protected zones (Natura 2000, etc.).",
				PotentialRestrictions: []string{
					"Standard agricultural land use regulations apply.",
					"Proximity to a small, locally protected stream may require a buffer zone.",
				},
			}, nil
		},
	}}
}

func searchOperations() []rpcx.Operation {
	return []rpcx.Operation{{
		Name:   OpSearch,
		Params: []rpcx.Param{{Name: "query", Kind: rpcx.ParamString, Required: true}},
		Handler: func(ctx context.Context, params rpcx.Params) (any, error) {
			query := params.String("query")
			return SearchResponse{OrganicResults: []SearchResult{
				{
					Position: 1,
					Title:    "Results for " + query,
					Snippet:  "This is a mocked search result snippet providing context about the query.",
				},
			}}, nil
		},
	}}
}
