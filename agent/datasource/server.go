package datasource

import (
	"fmt"
	"time"

	rpcx "github.com/tanpawarit/parcel-scout/pkg/rpc"
)

// NewServer builds the mock RPC server of one data service.
func NewServer(s Service, now Clock) (*rpcx.Server, error) {
	if now == nil {
		now = time.Now
	}

	switch s {
	case ServiceListing:
		return rpcx.NewServer(string(s), listingOperations(now)...), nil
	case ServiceSearch:
		return rpcx.NewServer(string(s), searchOperations()...), nil
	case ServiceEnvironment:
		return rpcx.NewServer(string(s), environmentOperations()...), nil
	case ServiceRegulatory:
		return rpcx.NewServer(string(s), regulatoryOperations()...), nil
	default:
		return nil, fmt.Errorf("unknown data service %q", s)
	}
}
