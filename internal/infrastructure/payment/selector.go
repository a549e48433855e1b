package payment

import (
	"fmt"

	"github.com/komono/backend/internal/domain/payment"
	"github.com/komono/backend/internal/domain/shared"
)

// Registry resolves gateway adapters by payment method or provider
// name. Registration order decides which adapter wins when two claim
// the same method.
type Registry struct {
	gateways []payment.Gateway
}

// NewRegistry creates a registry over the given adapters
func NewRegistry(gateways ...payment.Gateway) *Registry {
	return &Registry{gateways: gateways}
}

// Register adds an adapter to the registry
func (r *Registry) Register(gw payment.Gateway) {
	r.gateways = append(r.gateways, gw)
}

// ForMethod resolves the adapter handling the payment method
func (r *Registry) ForMethod(method payment.Method) (payment.Gateway, error) {
	for _, gw := range r.gateways {
		if gw.Supports(method) {
			return gw, nil
		}
	}
	return nil, fmt.Errorf("%w: no gateway supports method %s", shared.ErrNotFound, method)
}

// ForName resolves the adapter by provider name
func (r *Registry) ForName(name string) (payment.Gateway, error) {
	for _, gw := range r.gateways {
		if gw.Name() == name {
			return gw, nil
		}
	}
	return nil, fmt.Errorf("%w: no gateway named %s", shared.ErrNotFound, name)
}

var _ payment.GatewaySelector = (*Registry)(nil)
