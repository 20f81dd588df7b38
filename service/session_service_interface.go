package service

import (
	"context"

	"armario-estampados/models"
)

// SessionServiceInterface defines the contract for customization sessions
type SessionServiceInterface interface {
	Create(ctx context.Context, req CreateSessionRequest) (*Session, error)
	Get(id string) (*Session, error)
	Delete(id string) error
	Sweep() int
	CleanBackground(ctx context.Context, id string, side models.Side, tolerance int) (string, error)
	AddToCart(ctx context.Context, id string, req AddToCartRequest) (*AddToCartResult, error)
}
