// Package store implements the persistence collaborators of the import
// pipeline on PostgreSQL via pgx. The natural-key uniqueness invariant
// lives here, in an expression unique index, regardless of any
// application-level checks.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/haulstack/fuellens-api/internal/models"
	"github.com/haulstack/fuellens-api/internal/services"
)

// Connect builds a pgx pool from a connection string.
func Connect(ctx context.Context, databaseURL string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// Transactions is the Postgres-backed TransactionStore.
type Transactions struct {
	pool *pgxpool.Pool
}

// NewTransactions creates a transaction store over an existing pool.
func NewTransactions(pool *pgxpool.Pool) *Transactions {
	return &Transactions{pool: pool}
}

const insertTransaction = `
	INSERT INTO fuel_transactions (
		card_number, tran_date, tran_time, invoice, unit, driver_name,
		odometer, location_name, city, state_prov, fees, item, unit_price,
		disc_ppu, disc_cost, qty, disc_amt, disc_type, amt, db, currency,
		employee_id
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
	        $15, $16, $17, $18, $19, $20, $21, $22)
	ON CONFLICT (
		(lower(btrim(invoice))), (lower(btrim(tran_date))),
		(lower(btrim(location_name))), (round(amt::numeric, 2))
	) DO NOTHING
	RETURNING id
`

// Add inserts a transaction and returns its assigned id. A natural-key
// collision is reported as a Duplicate outcome, not an error; the pipeline
// never needs to recognize constraint violations by message text.
func (s *Transactions) Add(ctx context.Context, t *models.FuelTransaction) (int64, services.InsertOutcome, error) {
	var id int64
	err := s.pool.QueryRow(ctx, insertTransaction,
		t.CardNumber, t.TranDate, t.TranTime, t.Invoice, t.Unit,
		t.DriverName, t.Odometer, t.LocationName, t.City, t.StateProv,
		t.Fees, t.Item, t.UnitPrice, t.DiscPPU, t.DiscCost, t.Quantity,
		t.DiscAmount, t.DiscType, t.Amount, t.DB, t.Currency,
		nullableID(t.EmployeeID),
	).Scan(&id)
	if err == pgx.ErrNoRows {
		return 0, services.Duplicate, nil
	}
	if err != nil {
		return 0, 0, fmt.Errorf("failed to insert transaction: %w", err)
	}
	return id, services.Inserted, nil
}

const existsTransaction = `
	SELECT EXISTS (
		SELECT 1 FROM fuel_transactions
		WHERE lower(btrim(invoice)) = $1
		  AND lower(btrim(tran_date)) = $2
		  AND lower(btrim(location_name)) = $3
		  AND round(amt::numeric, 2) = round($4::numeric, 2)
	)
`

// Exists reports whether a stored transaction already carries the given
// natural key. The key arrives pre-normalized (trimmed, case-folded,
// amount rounded); the stored side is normalized in the query.
func (s *Transactions) Exists(ctx context.Context, key models.NaturalKey) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, existsTransaction,
		key.Invoice, key.Date, key.Location, key.Amount,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check for duplicate: %w", err)
	}
	return exists, nil
}

const listTransactions = `
	SELECT id, card_number, tran_date, tran_time, invoice, unit,
	       driver_name, odometer, location_name, city, state_prov, fees,
	       item, unit_price, disc_ppu, disc_cost, qty, disc_amt, disc_type,
	       amt, db, currency, COALESCE(employee_id, 0), created_at
	FROM fuel_transactions
	ORDER BY id DESC
	LIMIT $1 OFFSET $2
`

// List returns a page of stored transactions, newest first, plus the
// total stored count.
func (s *Transactions) List(ctx context.Context, limit, offset int) ([]models.FuelTransaction, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM fuel_transactions`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	rows, err := s.pool.Query(ctx, listTransactions, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var out []models.FuelTransaction
	for rows.Next() {
		var t models.FuelTransaction
		if err := rows.Scan(
			&t.ID, &t.CardNumber, &t.TranDate, &t.TranTime, &t.Invoice,
			&t.Unit, &t.DriverName, &t.Odometer, &t.LocationName, &t.City,
			&t.StateProv, &t.Fees, &t.Item, &t.UnitPrice, &t.DiscPPU,
			&t.DiscCost, &t.Quantity, &t.DiscAmount, &t.DiscType, &t.Amount,
			&t.DB, &t.Currency, &t.EmployeeID, &t.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, total, rows.Err()
}

// nullableID maps the "unassigned" zero value to NULL so the employee
// foreign key stays clean.
func nullableID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

// Employees is the Postgres-backed read-only employee directory.
type Employees struct {
	pool *pgxpool.Pool
}

// NewEmployees creates an employee directory over an existing pool.
func NewEmployees(pool *pgxpool.Pool) *Employees {
	return &Employees{pool: pool}
}

// ListAll returns a snapshot of the full directory in id order.
func (e *Employees) ListAll(ctx context.Context) ([]models.Employee, error) {
	rows, err := e.pool.Query(ctx, `SELECT id, name, unit FROM employees ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	defer rows.Close()

	var out []models.Employee
	for rows.Next() {
		var emp models.Employee
		if err := rows.Scan(&emp.ID, &emp.Name, &emp.Unit); err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		out = append(out, emp)
	}
	return out, rows.Err()
}
