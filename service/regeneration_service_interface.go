package service

import (
	"context"

	"armario-estampados/models"
)

// RegenerationServiceInterface defines the server-side HD regeneration operations
type RegenerationServiceInterface interface {
	// Regenerate rebuilds the production and mockup files of an order from persisted state.
	// Previous files of the order are replaced, never accumulated.
	Regenerate(ctx context.Context, req models.RegenerationRequest, trigger string) (*models.RegenerationResult, error)
	// RegenerateOrder regenerates from the latest persisted line item of the order
	RegenerateOrder(ctx context.Context, orderID string, trigger string) (*models.RegenerationResult, error)
	// GetFiles returns the current generated files of an order
	GetFiles(ctx context.Context, orderID string) (*models.RegenerationResult, error)
}

// Regenerator is the narrow capability checkout falls back to when client capture fails
type Regenerator interface {
	Regenerate(ctx context.Context, req models.RegenerationRequest) (*models.RegenerationResult, error)
}

// RegeneratorFunc adapts a function to Regenerator
type RegeneratorFunc func(ctx context.Context, req models.RegenerationRequest) (*models.RegenerationResult, error)

// Regenerate calls f
func (f RegeneratorFunc) Regenerate(ctx context.Context, req models.RegenerationRequest) (*models.RegenerationResult, error) {
	return f(ctx, req)
}
