// internal/adapters/db/batch_store.go
package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ammerola/shelfstock-be/internal/core/domain"
	"github.com/ammerola/shelfstock-be/internal/core/ports"
)

const (
	pgUniqueViolation = "23505"

	batchColumns = "id, product_id, batch_number, quantity, expiry_date, unit_price, received_at, version"
	fefoOrder    = "expiry_date ASC NULLS LAST, received_at ASC, id ASC"
)

// batchStore implements ports.BatchStore on postgres. Each deduction is a
// compare-and-swap on the batch version inside one transaction.
type batchStore struct {
	db     *Database
	logger *slog.Logger
}

// NewBatchStore creates a new postgres batch store
func NewBatchStore(db *Database, logger *slog.Logger) ports.BatchStore {
	return &batchStore{
		db:     db,
		logger: logger.With(slog.String("repository", "batches")),
	}
}

// CreateProduct inserts a product and its initial batches
func (r *batchStore) CreateProduct(ctx context.Context, product *domain.Product) error {
	for i := range product.Batches {
		if product.Batches[i].ID == uuid.Nil {
			product.Batches[i].ID = uuid.New()
		}
		if product.Batches[i].Version == 0 {
			product.Batches[i].Version = 1
		}
		if product.Batches[i].ReceivedAt.IsZero() {
			product.Batches[i].ReceivedAt = product.CreatedAt
		}
		product.Batches[i].ProductID = product.ID
	}
	domain.SortFEFO(product.Batches)
	product.RecomputeTotal()

	err := r.db.Transaction(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO products (
				id, name, barcode, category, perishable, unit_price,
				total_quantity, created_at, updated_at
			) VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7, $8, $9)`,
			product.ID, product.Name, product.Barcode, product.Category, product.Perishable,
			product.UnitPrice, product.TotalQuantity, product.CreatedAt, product.UpdatedAt,
		)
		if err != nil {
			return translateWriteError(err, "product")
		}

		if len(product.Batches) == 0 {
			return nil
		}

		batch := &pgx.Batch{}
		for _, b := range product.Batches {
			batch.Queue(`
				INSERT INTO stock_batches (`+batchColumns+`)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				b.ID, b.ProductID, b.BatchNumber, b.Quantity, b.ExpiryDate, b.UnitPrice, b.ReceivedAt, b.Version,
			)
		}

		br := tx.SendBatch(ctx, batch)
		defer br.Close()

		for i := range product.Batches {
			if _, err := br.Exec(); err != nil {
				return fmt.Errorf("failed to insert batch %d: %w", i, translateWriteError(err, "batch"))
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.logger.DebugContext(ctx, "product created",
		slog.String("product_id", product.ID.String()),
		slog.Int("batches", len(product.Batches)))

	return nil
}

// GetProduct returns a product with its batches in FEFO order
func (r *batchStore) GetProduct(ctx context.Context, productID uuid.UUID) (*domain.Product, error) {
	var (
		p                 domain.Product
		barcode, category *string
	)
	err := r.db.QueryRow(ctx, `
		SELECT id, name, barcode, category, perishable, unit_price,
		       total_quantity, created_at, updated_at
		FROM products
		WHERE id = $1`, productID,
	).Scan(&p.ID, &p.Name, &barcode, &category, &p.Perishable, &p.UnitPrice,
		&p.TotalQuantity, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("product", productID)
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	if barcode != nil {
		p.Barcode = *barcode
	}
	if category != nil {
		p.Category = *category
	}

	p.Batches, err = r.queryBatches(ctx, r.db.pool, productID)
	if err != nil {
		return nil, err
	}

	return &p, nil
}

// GetBatchesForProduct returns the batches of a product in FEFO order
func (r *batchStore) GetBatchesForProduct(ctx context.Context, productID uuid.UUID) ([]domain.Batch, error) {
	batches, err := r.queryBatches(ctx, r.db.pool, productID)
	if err != nil {
		return nil, err
	}
	if len(batches) > 0 {
		return batches, nil
	}

	// An empty result is either a product without batches or no product.
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, productID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check product: %w", err)
	}
	if !exists {
		return nil, domain.NewNotFoundError("product", productID)
	}
	return batches, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *batchStore) queryBatches(ctx context.Context, q querier, productID uuid.UUID) ([]domain.Batch, error) {
	rows, err := q.Query(ctx, `
		SELECT `+batchColumns+`
		FROM stock_batches
		WHERE product_id = $1
		ORDER BY `+fefoOrder, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to query batches: %w", err)
	}

	batches, err := pgx.CollectRows(rows, scanBatch)
	if err != nil {
		return nil, fmt.Errorf("failed to scan batches: %w", err)
	}
	if batches == nil {
		batches = []domain.Batch{}
	}
	return batches, nil
}

func scanBatch(row pgx.CollectableRow) (domain.Batch, error) {
	var b domain.Batch
	err := row.Scan(&b.ID, &b.ProductID, &b.BatchNumber, &b.Quantity, &b.ExpiryDate,
		&b.UnitPrice, &b.ReceivedAt, &b.Version)
	return b, err
}

// ApplyDeduction decrements every batch of the plan or none of them
func (r *batchStore) ApplyDeduction(ctx context.Context, productID uuid.UUID, deltas []domain.BatchDelta) error {
	merged, err := mergeDeltas(deltas)
	if err != nil {
		return err
	}

	return r.db.Transaction(ctx, func(tx pgx.Tx) error {
		if err := lockProduct(ctx, tx, productID); err != nil {
			return err
		}

		for _, d := range merged {
			tag, err := tx.Exec(ctx, `
				UPDATE stock_batches
				SET quantity = quantity - $1, version = version + 1
				WHERE id = $2 AND product_id = $3
				  AND ($4::bigint = 0 OR version = $4)
				  AND quantity >= $1`,
				d.Quantity, d.BatchID, productID, d.ExpectedVersion)
			if err != nil {
				return fmt.Errorf("failed to deduct batch %s: %w", d.BatchID, err)
			}
			if tag.RowsAffected() == 1 {
				continue
			}
			return classifyRejectedDeduction(ctx, tx, productID, d)
		}

		return refreshTotal(ctx, tx, productID)
	})
}

// RestoreDeduction re-adds quantities taken by an earlier deduction
func (r *batchStore) RestoreDeduction(ctx context.Context, productID uuid.UUID, deltas []domain.BatchDelta) error {
	merged, err := mergeDeltas(deltas)
	if err != nil {
		return err
	}

	return r.db.Transaction(ctx, func(tx pgx.Tx) error {
		if err := lockProduct(ctx, tx, productID); err != nil {
			return err
		}

		for _, d := range merged {
			tag, err := tx.Exec(ctx, `
				UPDATE stock_batches
				SET quantity = quantity + $1, version = version + 1
				WHERE id = $2 AND product_id = $3`,
				d.Quantity, d.BatchID, productID)
			if err != nil {
				return fmt.Errorf("failed to restore batch %s: %w", d.BatchID, err)
			}
			if tag.RowsAffected() == 0 {
				return domain.NewNotFoundError("batch", d.BatchID)
			}
		}

		return refreshTotal(ctx, tx, productID)
	})
}

// AddBatch appends a restocked batch
func (r *batchStore) AddBatch(ctx context.Context, productID uuid.UUID, nb domain.NewBatch) (*domain.Batch, error) {
	if err := nb.Validate(); err != nil {
		return nil, err
	}
	b := nb.Build(productID)

	err := r.db.Transaction(ctx, func(tx pgx.Tx) error {
		if err := lockProduct(ctx, tx, productID); err != nil {
			return err
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO stock_batches (`+batchColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			b.ID, b.ProductID, b.BatchNumber, b.Quantity, b.ExpiryDate, b.UnitPrice, b.ReceivedAt, b.Version)
		if err != nil {
			return translateWriteError(err, "batch")
		}

		return refreshTotal(ctx, tx, productID)
	})
	if err != nil {
		return nil, err
	}

	r.logger.DebugContext(ctx, "batch added",
		slog.String("product_id", productID.String()),
		slog.String("batch_id", b.ID.String()))

	return &b, nil
}

// ListExpiringBatches lists stocked batches expiring before the cut-off
func (r *batchStore) ListExpiringBatches(ctx context.Context, before time.Time) ([]domain.ExpiringBatch, error) {
	query, args, err := squirrel.
		Select("b.id", "b.product_id", "b.batch_number", "b.quantity", "b.expiry_date",
			"b.unit_price", "b.received_at", "b.version", "p.name").
		From("stock_batches b").
		Join("products p ON p.id = b.product_id").
		Where(squirrel.Gt{"b.quantity": 0}).
		Where(squirrel.NotEq{"b.expiry_date": nil}).
		Where(squirrel.Lt{"b.expiry_date": before}).
		OrderBy("b.expiry_date ASC", "b.received_at ASC", "b.id ASC").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query expiring batches: %w", err)
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.ExpiringBatch, error) {
		var e domain.ExpiringBatch
		err := row.Scan(&e.ID, &e.ProductID, &e.BatchNumber, &e.Quantity, &e.ExpiryDate,
			&e.UnitPrice, &e.ReceivedAt, &e.Version, &e.ProductName)
		return e, err
	})
}

// lockProduct takes the product row lock so totals and batch rows of one
// product are written by one transaction at a time.
func lockProduct(ctx context.Context, tx pgx.Tx, productID uuid.UUID) error {
	var id uuid.UUID
	err := tx.QueryRow(ctx, `SELECT id FROM products WHERE id = $1 FOR UPDATE`, productID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.NewNotFoundError("product", productID)
		}
		return fmt.Errorf("failed to lock product: %w", err)
	}
	return nil
}

func refreshTotal(ctx context.Context, tx pgx.Tx, productID uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		UPDATE products
		SET total_quantity = (
			SELECT COALESCE(SUM(quantity), 0) FROM stock_batches WHERE product_id = $1
		), updated_at = now()
		WHERE id = $1`, productID)
	if err != nil {
		return fmt.Errorf("failed to refresh product total: %w", err)
	}
	return nil
}

// classifyRejectedDeduction explains why a guarded update matched no row.
func classifyRejectedDeduction(ctx context.Context, tx pgx.Tx, productID uuid.UUID, d domain.BatchDelta) error {
	var quantity int
	var version int64
	err := tx.QueryRow(ctx, `
		SELECT quantity, version FROM stock_batches
		WHERE id = $1 AND product_id = $2`, d.BatchID, productID,
	).Scan(&quantity, &version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.NewNotFoundError("batch", d.BatchID)
		}
		return fmt.Errorf("failed to inspect batch %s: %w", d.BatchID, err)
	}

	if d.ExpectedVersion != 0 && version != d.ExpectedVersion {
		return &domain.ConflictError{
			ProductID: productID,
			Err:       fmt.Errorf("batch %s at version %d, planned from %d", d.BatchID, version, d.ExpectedVersion),
		}
	}
	return &domain.InsufficientStockError{
		ProductID: productID,
		BatchID:   d.BatchID,
		Requested: d.Quantity,
		Available: quantity,
	}
}

// mergeDeltas folds repeated batches into one delta and orders them by batch
// ID so concurrent transactions lock rows in the same order.
func mergeDeltas(deltas []domain.BatchDelta) ([]domain.BatchDelta, error) {
	byID := make(map[uuid.UUID]int, len(deltas))
	merged := make([]domain.BatchDelta, 0, len(deltas))
	for _, d := range deltas {
		if d.Quantity <= 0 {
			return nil, domain.NewValidationError("quantity", "delta quantity must be positive")
		}
		if i, ok := byID[d.BatchID]; ok {
			merged[i].Quantity += d.Quantity
			continue
		}
		byID[d.BatchID] = len(merged)
		merged = append(merged, d)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].BatchID.String() < merged[j].BatchID.String()
	})
	return merged, nil
}

func translateWriteError(err error, entity string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return domain.NewValidationError(entity, fmt.Sprintf("%s already exists (%s)", entity, pgErr.ConstraintName))
	}
	return fmt.Errorf("failed to write %s: %w", entity, err)
}
