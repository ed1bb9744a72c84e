package mocks

import (
	"context"
	"net"

	"github.com/ooni/mknet/internal/model"
)

// Dialer is a mockable SimpleDialer.
type Dialer struct {
	MockDialContext func(ctx context.Context, network, address string) (net.Conn, error)
}

var _ model.SimpleDialer = &Dialer{}

// DialContext calls MockDialContext.
func (d *Dialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	return d.MockDialContext(ctx, network, address)
}
