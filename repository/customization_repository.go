package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"armario-estampados/db"
	"armario-estampados/models"
)

// ErrOrderNotFound is returned when an order has no customized line items
var ErrOrderNotFound = errors.New("order not found")

// CustomizationRepository persists customized line items and regenerated production files
// Implements CustomizationRepositoryInterface
type CustomizationRepository struct {
	conn *sql.DB
}

// NewCustomizationRepository creates a new CustomizationRepository. A nil conn uses db.DB.
func NewCustomizationRepository(conn *sql.DB) *CustomizationRepository {
	return &CustomizationRepository{conn: conn}
}

// Ensure CustomizationRepository implements CustomizationRepositoryInterface
var _ CustomizationRepositoryInterface = (*CustomizationRepository)(nil)

func (r *CustomizationRepository) sqlDB() *sql.DB {
	if r.conn != nil {
		return r.conn
	}
	return db.DB
}

// SaveLineItem stores the serialized customization together with the capture URLs
func (r *CustomizationRepository) SaveLineItem(ctx context.Context, item *models.LineItemCustomization) (int64, error) {
	if item.OrderID == "" {
		return 0, fmt.Errorf("order id is required")
	}
	if len(item.Customization) == 0 {
		return 0, fmt.Errorf("customization is required")
	}
	captures, err := json.Marshal(item.Captures)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal captures: %w", err)
	}
	source := item.CaptureSource
	if source == "" {
		source = "client"
	}

	query := `
		INSERT INTO line_item_customizations (
			order_id, product_id, print_size, unit_price, customization, captures, capture_source
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	var id int64
	err = r.sqlDB().QueryRowContext(ctx, query,
		item.OrderID,
		item.ProductID,
		string(item.PrintSize),
		item.UnitPrice,
		[]byte(item.Customization),
		captures,
		source,
	).Scan(&id)
	if err != nil {
		log.Error().Err(err).Str("order_id", item.OrderID).Msg("❌ Failed to insert line item customization")
		return 0, fmt.Errorf("failed to insert line item customization: %w", err)
	}

	item.ID = id
	log.Info().Int64("id", id).Str("order_id", item.OrderID).Msg("💾 Line item customization saved")
	return id, nil
}

// GetLineItemsByOrder returns every customized line item of an order, oldest first
func (r *CustomizationRepository) GetLineItemsByOrder(ctx context.Context, orderID string) ([]models.LineItemCustomization, error) {
	query := `
		SELECT id, order_id, product_id, print_size, unit_price, customization, captures, capture_source, created_at
		FROM line_item_customizations
		WHERE order_id = $1
		ORDER BY id
	`
	rows, err := r.sqlDB().QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query line items: %w", err)
	}
	defer rows.Close()

	var items []models.LineItemCustomization
	for rows.Next() {
		var (
			item      models.LineItemCustomization
			printSize string
			custom    []byte
			captures  []byte
			createdAt time.Time
		)
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &printSize, &item.UnitPrice,
			&custom, &captures, &item.CaptureSource, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan line item: %w", err)
		}
		item.PrintSize = models.PrintSize(printSize)
		item.Customization = json.RawMessage(custom)
		if len(captures) > 0 {
			if err := json.Unmarshal(captures, &item.Captures); err != nil {
				return nil, fmt.Errorf("failed to decode captures of line item %d: %w", item.ID, err)
			}
		}
		item.CreatedAt = createdAt.Format(time.RFC3339)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate line items: %w", err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	return items, nil
}

// ReplaceGeneratedFiles swaps the order's generated files for files in one transaction and
// returns the rows it replaced. Running it twice for an order never accumulates files.
func (r *CustomizationRepository) ReplaceGeneratedFiles(ctx context.Context, orderID string, files []models.GeneratedFile) ([]models.GeneratedFile, error) {
	log.Info().Str("order_id", orderID).Int("files", len(files)).Msg("📦 Replacing generated files")

	tx, err := r.sqlDB().BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT order_id, side, mockup_url, hd_url, created_at FROM generated_files WHERE order_id = $1 ORDER BY side FOR UPDATE`,
		orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock generated files: %w", err)
	}
	previous, err := scanGeneratedFiles(rows)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM generated_files WHERE order_id = $1`, orderID); err != nil {
		return nil, fmt.Errorf("failed to delete generated files: %w", err)
	}

	insert := `INSERT INTO generated_files (order_id, side, mockup_url, hd_url) VALUES ($1, $2, $3, $4)`
	for _, f := range files {
		if _, err := tx.ExecContext(ctx, insert, orderID, string(f.Side), f.MockupURL, f.HDURL); err != nil {
			return nil, fmt.Errorf("failed to insert generated file for %s: %w", f.Side, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE line_item_customizations SET needs_regeneration = FALSE WHERE order_id = $1`, orderID); err != nil {
		return nil, fmt.Errorf("failed to clear regeneration flag: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	log.Info().Str("order_id", orderID).Int("replaced", len(previous)).Msg("✅ Generated files replaced")
	return previous, nil
}

// ListGeneratedFiles returns the current generated files of an order
func (r *CustomizationRepository) ListGeneratedFiles(ctx context.Context, orderID string) ([]models.GeneratedFile, error) {
	rows, err := r.sqlDB().QueryContext(ctx,
		`SELECT order_id, side, mockup_url, hd_url, created_at FROM generated_files WHERE order_id = $1 ORDER BY side`,
		orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query generated files: %w", err)
	}
	return scanGeneratedFiles(rows)
}

func scanGeneratedFiles(rows *sql.Rows) ([]models.GeneratedFile, error) {
	defer rows.Close()
	var files []models.GeneratedFile
	for rows.Next() {
		var (
			f         models.GeneratedFile
			side      string
			createdAt time.Time
		)
		if err := rows.Scan(&f.OrderID, &side, &f.MockupURL, &f.HDURL, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan generated file: %w", err)
		}
		f.Side = models.Side(side)
		f.CreatedAt = createdAt.Format(time.RFC3339)
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate generated files: %w", err)
	}
	return files, nil
}

// FlagForRegeneration marks an order for the reprocessing job
func (r *CustomizationRepository) FlagForRegeneration(ctx context.Context, orderID string) error {
	res, err := r.sqlDB().ExecContext(ctx,
		`UPDATE line_item_customizations SET needs_regeneration = TRUE WHERE order_id = $1`, orderID)
	if err != nil {
		return fmt.Errorf("failed to flag order for regeneration: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	return nil
}

// ListOrdersPendingRegeneration returns up to limit flagged order ids
func (r *CustomizationRepository) ListOrdersPendingRegeneration(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.sqlDB().QueryContext(ctx, `
		SELECT order_id
		FROM line_item_customizations
		WHERE needs_regeneration
		GROUP BY order_id
		ORDER BY MIN(id)
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending orders: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan order id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
