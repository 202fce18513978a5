// internal/adapters/db/sale_repository.go
package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ammerola/shelfstock-be/internal/core/domain"
	"github.com/ammerola/shelfstock-be/internal/core/ports"
)

// saleRepository implements ports.SaleRepository
type saleRepository struct {
	db     *Database
	logger *slog.Logger
}

// NewSaleRepository creates a new sale repository
func NewSaleRepository(db *Database, logger *slog.Logger) ports.SaleRepository {
	return &saleRepository{
		db:     db,
		logger: logger.With(slog.String("repository", "sales")),
	}
}

// Save writes the sale header, its lines and every batch allocation in one
// transaction.
func (r *saleRepository) Save(ctx context.Context, sale *domain.SaleRecord) error {
	if !sale.Status.IsTerminal() {
		return domain.NewValidationError("status", "only settled sales are recorded")
	}
	return r.db.Transaction(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO sales (id, status, payment_method, total_quantity, total_amount, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			sale.ID, string(sale.Status), sale.PaymentMethod, sale.TotalQuantity, sale.TotalAmount, sale.CreatedAt)
		if err != nil {
			return translateWriteError(err, "sale")
		}

		batch := &pgx.Batch{}
		queued := 0
		for lineNo, line := range sale.Lines {
			batch.Queue(`
				INSERT INTO sale_lines (sale_id, line_no, product_id, requested_quantity, total_amount)
				VALUES ($1, $2, $3, $4, $5)`,
				sale.ID, lineNo, line.ProductID, line.RequestedQuantity, line.TotalAmount)
			queued++

			for seq, a := range line.Allocations {
				batch.Queue(`
					INSERT INTO sale_allocations (
						sale_id, line_no, seq, batch_id, batch_number, expiry_date,
						quantity, unit_price, batch_price, amount
					) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
					sale.ID, lineNo, seq, a.BatchID, a.BatchNumber, a.ExpiryDate,
					a.Quantity, a.UnitPrice, a.BatchPrice, a.Amount)
				queued++
			}
		}

		br := tx.SendBatch(ctx, batch)
		defer br.Close()

		for i := 0; i < queued; i++ {
			if _, err := br.Exec(); err != nil {
				return fmt.Errorf("failed to write sale row %d: %w", i, err)
			}
		}

		r.logger.DebugContext(ctx, "sale saved",
			slog.String("sale_id", sale.ID.String()),
			slog.Int("rows", queued+1))
		return nil
	})
}

// FindByID loads one sale with its allocations
func (r *saleRepository) FindByID(ctx context.Context, saleID uuid.UUID) (*domain.SaleRecord, error) {
	var sale domain.SaleRecord
	var status string
	err := r.db.QueryRow(ctx, `
		SELECT id, status, payment_method, total_quantity, total_amount, created_at
		FROM sales WHERE id = $1`, saleID,
	).Scan(&sale.ID, &status, &sale.PaymentMethod, &sale.TotalQuantity, &sale.TotalAmount, &sale.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("sale", saleID)
		}
		return nil, fmt.Errorf("failed to get sale: %w", err)
	}
	sale.Status = domain.SaleStatus(status)

	sales := []domain.SaleRecord{sale}
	if err := r.loadLines(ctx, sales); err != nil {
		return nil, err
	}
	return &sales[0], nil
}

// List returns a filtered page of sales, newest first
func (r *saleRepository) List(ctx context.Context, filter domain.SaleFilter) (*domain.SaleList, error) {
	filter.Normalize()

	where := squirrel.And{}
	if filter.PaymentMethod != "" {
		where = append(where, squirrel.Eq{"s.payment_method": filter.PaymentMethod})
	}
	if filter.From != nil {
		where = append(where, squirrel.GtOrEq{"s.created_at": *filter.From})
	}
	if filter.To != nil {
		where = append(where, squirrel.Lt{"s.created_at": *filter.To})
	}
	if filter.ProductID != nil {
		where = append(where, squirrel.Expr(
			"EXISTS (SELECT 1 FROM sale_lines l WHERE l.sale_id = s.id AND l.product_id = ?)", *filter.ProductID))
	}

	countQuery, countArgs, err := squirrel.Select("COUNT(*)").
		From("sales s").
		Where(where).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build count query: %w", err)
	}

	var total int64
	if err := r.db.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count sales: %w", err)
	}

	query, args, err := squirrel.
		Select("s.id", "s.status", "s.payment_method", "s.total_quantity", "s.total_amount", "s.created_at").
		From("sales s").
		Where(where).
		OrderBy("s.created_at DESC", "s.id ASC").
		Limit(uint64(filter.PageSize)).
		Offset(uint64(filter.Offset())).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list query: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sales: %w", err)
	}
	sales, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.SaleRecord, error) {
		var s domain.SaleRecord
		var status string
		err := row.Scan(&s.ID, &status, &s.PaymentMethod, &s.TotalQuantity, &s.TotalAmount, &s.CreatedAt)
		s.Status = domain.SaleStatus(status)
		return s, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan sales: %w", err)
	}

	if err := r.loadLines(ctx, sales); err != nil {
		return nil, err
	}
	if sales == nil {
		sales = []domain.SaleRecord{}
	}

	return &domain.SaleList{
		Sales:      sales,
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalCount: total,
	}, nil
}

// loadLines fills lines and allocations for the given sales in two queries.
func (r *saleRepository) loadLines(ctx context.Context, sales []domain.SaleRecord) error {
	if len(sales) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(sales))
	pos := make(map[uuid.UUID]int, len(sales))
	for i, s := range sales {
		ids[i] = s.ID
		pos[s.ID] = i
		sales[i].Lines = []domain.AllocationLine{}
	}

	lineRows, err := r.db.Query(ctx, `
		SELECT sale_id, product_id, requested_quantity, total_amount
		FROM sale_lines
		WHERE sale_id = ANY($1)
		ORDER BY sale_id, line_no`, ids)
	if err != nil {
		return fmt.Errorf("failed to query sale lines: %w", err)
	}
	type lineRow struct {
		saleID uuid.UUID
		line   domain.AllocationLine
	}
	lines, err := pgx.CollectRows(lineRows, func(row pgx.CollectableRow) (lineRow, error) {
		var lr lineRow
		err := row.Scan(&lr.saleID, &lr.line.ProductID, &lr.line.RequestedQuantity, &lr.line.TotalAmount)
		lr.line.Allocations = []domain.BatchAllocation{}
		return lr, err
	})
	if err != nil {
		return fmt.Errorf("failed to scan sale lines: %w", err)
	}
	for _, lr := range lines {
		i := pos[lr.saleID]
		sales[i].Lines = append(sales[i].Lines, lr.line)
	}

	allocRows, err := r.db.Query(ctx, `
		SELECT sale_id, line_no, batch_id, batch_number, expiry_date,
		       quantity, unit_price, batch_price, amount
		FROM sale_allocations
		WHERE sale_id = ANY($1)
		ORDER BY sale_id, line_no, seq`, ids)
	if err != nil {
		return fmt.Errorf("failed to query sale allocations: %w", err)
	}
	defer allocRows.Close()

	for allocRows.Next() {
		var saleID uuid.UUID
		var lineNo int
		var a domain.BatchAllocation
		if err := allocRows.Scan(&saleID, &lineNo, &a.BatchID, &a.BatchNumber, &a.ExpiryDate,
			&a.Quantity, &a.UnitPrice, &a.BatchPrice, &a.Amount); err != nil {
			return fmt.Errorf("failed to scan sale allocation: %w", err)
		}
		i, ok := pos[saleID]
		if !ok || lineNo < 0 || lineNo >= len(sales[i].Lines) {
			continue
		}
		sales[i].Lines[lineNo].Allocations = append(sales[i].Lines[lineNo].Allocations, a)
	}

	return allocRows.Err()
}
