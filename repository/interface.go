package repository

import (
	"context"

	"armario-estampados/models"
)

// CustomizationRepositoryInterface defines the contract the order layer exposes to this service
type CustomizationRepositoryInterface interface {
	SaveLineItem(ctx context.Context, item *models.LineItemCustomization) (int64, error)
	GetLineItemsByOrder(ctx context.Context, orderID string) ([]models.LineItemCustomization, error)
	ReplaceGeneratedFiles(ctx context.Context, orderID string, files []models.GeneratedFile) ([]models.GeneratedFile, error)
	ListGeneratedFiles(ctx context.Context, orderID string) ([]models.GeneratedFile, error)
	FlagForRegeneration(ctx context.Context, orderID string) error
	ListOrdersPendingRegeneration(ctx context.Context, limit int) ([]string, error)
}
