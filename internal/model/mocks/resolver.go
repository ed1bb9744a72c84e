package mocks

import (
	"context"

	"github.com/ooni/mknet/internal/model"
)

// Resolver is a mockable SimpleResolver.
type Resolver struct {
	MockLookupHost func(ctx context.Context, domain string) ([]string, error)
}

var _ model.SimpleResolver = &Resolver{}

// LookupHost calls MockLookupHost.
func (r *Resolver) LookupHost(ctx context.Context, domain string) ([]string, error) {
	return r.MockLookupHost(ctx, domain)
}
