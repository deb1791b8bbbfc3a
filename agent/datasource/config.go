package datasource

import (
	"fmt"
	"strings"
	"time"

	toolx "github.com/tanpawarit/parcel-scout/agent/tool"
	rpcx "github.com/tanpawarit/parcel-scout/pkg/rpc"
)

type Service string

const (
	ServiceListing     Service = "listing"
	ServiceSearch      Service = "search"
	ServiceEnvironment Service = "environment"
	ServiceRegulatory  Service = "regulatory"
)

func Services() []Service {
	return []Service{ServiceListing, ServiceSearch, ServiceEnvironment, ServiceRegulatory}
}

// HostDocker switches service URLs to the compose service names.
const HostDocker = "docker"

type Config struct {
	Host            string        `envconfig:"HOST" default:"localhost"`
	ListingPort     int           `envconfig:"LISTING_PORT" split_words:"true" default:"3001"`
	SearchPort      int           `envconfig:"SEARCH_PORT" split_words:"true" default:"3002"`
	EnvironmentPort int           `envconfig:"ENVIRONMENT_PORT" split_words:"true" default:"3003"`
	RegulatoryPort  int           `envconfig:"REGULATORY_PORT" split_words:"true" default:"3004"`
	Timeout         time.Duration `envconfig:"TIMEOUT" default:"15s"`
	// SearchRatePerSecond throttles the search service. Zero means unlimited.
	SearchRatePerSecond float64 `envconfig:"SEARCH_RATE_PER_SECOND" split_words:"true" default:"0"`
}

func (c Config) Port(s Service) (int, error) {
	switch s {
	case ServiceListing:
		return c.ListingPort, nil
	case ServiceSearch:
		return c.SearchPort, nil
	case ServiceEnvironment:
		return c.EnvironmentPort, nil
	case ServiceRegulatory:
		return c.RegulatoryPort, nil
	default:
		return 0, fmt.Errorf("unknown data service %q", s)
	}
}

// URL is http://localhost:<port>, or http://<service>-server:<port> when Host is "docker".
// Any other host is used as given.
func (c Config) URL(s Service) (string, error) {
	port, err := c.Port(s)
	if err != nil {
		return "", err
	}

	host := strings.TrimSpace(c.Host)
	switch host {
	case "":
		host = "localhost"
	case HostDocker:
		host = string(s) + "-server"
	}
	return fmt.Sprintf("http://%s:%d", host, port), nil
}

func (c Config) Client(s Service) (*rpcx.Client, error) {
	url, err := c.URL(s)
	if err != nil {
		return nil, err
	}
	cfg := rpcx.ClientConfig{
		Service: string(s),
		BaseURL: url,
		Timeout: c.Timeout,
	}
	if s == ServiceSearch {
		cfg.RatePerSecond = c.SearchRatePerSecond
	}
	return rpcx.NewClient(cfg), nil
}

// Clients builds one RPC client per data service.
func (c Config) Clients() (toolx.DataClients, error) {
	var out toolx.DataClients
	for _, s := range Services() {
		client, err := c.Client(s)
		if err != nil {
			return toolx.DataClients{}, err
		}
		switch s {
		case ServiceListing:
			out.Listing = client
		case ServiceSearch:
			out.Search = client
		case ServiceEnvironment:
			out.Environment = client
		case ServiceRegulatory:
			out.Regulatory = client
		}
	}
	return out, nil
}

// SearchFilters select which new listings the scout evaluates.
type SearchFilters struct {
	Region         string   `envconfig:"REGION" default:"Nordrhein-Westfalen"`
	MinSizeSqm     float64  `envconfig:"MIN_SIZE_SQM" split_words:"true" default:"5000"`
	MaxPricePerSqm float64  `envconfig:"MAX_PRICE_PER_SQM" split_words:"true" default:"150"`
	PlotTypes      []string `envconfig:"PLOT_TYPES" split_words:"true" default:"agricultural"`
}

func (f SearchFilters) Params() map[string]any {
	params := map[string]any{"region": f.Region}
	if f.MinSizeSqm > 0 {
		params["minSizeSqm"] = f.MinSizeSqm
	}
	if f.MaxPricePerSqm > 0 {
		params["maxPricePerSqm"] = f.MaxPricePerSqm
	}
	if len(f.PlotTypes) > 0 {
		params["plotTypes"] = strings.Join(f.PlotTypes, ",")
	}
	return params
}
