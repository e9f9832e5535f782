package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"salesdesk/backend/internal/domain"
	"salesdesk/backend/internal/reconcile"
	"salesdesk/backend/internal/store"
)

const firstOrderNumber int64 = 1001

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS sales (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL,
		customer_code TEXT,
		customer_name TEXT NOT NULL,
		company_name TEXT,
		customer_contact TEXT,
		sale_date DATE NOT NULL,
		employee_name TEXT NOT NULL,
		sale_type TEXT NOT NULL,
		subtotal_cents BIGINT NOT NULL DEFAULT 0,
		courier_cost_cents BIGINT NOT NULL DEFAULT 0,
		gst_cents BIGINT NOT NULL DEFAULT 0,
		total_cents BIGINT NOT NULL DEFAULT 0,
		amount_received_cents BIGINT NOT NULL DEFAULT 0,
		balance_cents BIGINT NOT NULL DEFAULT 0,
		account_received TEXT,
		payment_reference TEXT,
		remarks TEXT,
		synthetic BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sales_order_id ON sales (order_id)`,
	`CREATE INDEX IF NOT EXISTS idx_sales_sale_date ON sales (sale_date)`,
	`CREATE TABLE IF NOT EXISTS sale_items (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL,
		product_name TEXT NOT NULL,
		quantity INT NOT NULL,
		unit_price_cents BIGINT NOT NULL,
		total_price_cents BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sale_items_order_id ON sale_items (order_id)`,
	`CREATE TABLE IF NOT EXISTS payment_history (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL,
		payment_date DATE NOT NULL,
		amount_cents BIGINT NOT NULL,
		account_received TEXT,
		payment_reference TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_payment_history_order_id ON payment_history (order_id)`,
	`CREATE TABLE IF NOT EXISTS inventory (
		serial_no TEXT PRIMARY KEY,
		model_name TEXT NOT NULL,
		in_date DATE,
		dispatch_date DATE,
		sale_date DATE,
		customer_name TEXT,
		order_id TEXT,
		warranty BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS dispatch_records (
		id TEXT PRIMARY KEY,
		serial_no TEXT NOT NULL UNIQUE,
		order_id TEXT,
		customer_name TEXT,
		courier TEXT,
		tracking_no TEXT,
		qc_status TEXT,
		dispatch_date DATE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS leads (
		id TEXT PRIMARY KEY,
		customer_code BIGINT NOT NULL,
		customer_name TEXT NOT NULL,
		mobile_number TEXT NOT NULL,
		alternate_mobile TEXT,
		location TEXT,
		company_name TEXT,
		gst_number TEXT,
		email TEXT,
		complete_address TEXT,
		status TEXT NOT NULL DEFAULT 'New',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS incentives (
		employee_name TEXT NOT NULL,
		month INT NOT NULL,
		year INT NOT NULL,
		sales_excl_tax_cents BIGINT NOT NULL,
		target_cents BIGINT NOT NULL,
		achievement_pct DOUBLE PRECISION NOT NULL,
		exceeding_cents BIGINT NOT NULL,
		incentive_cents BIGINT NOT NULL,
		status TEXT NOT NULL,
		computed_at TIMESTAMPTZ NOT NULL,
		UNIQUE (employee_name, month, year)
	)`,
	`CREATE TABLE IF NOT EXISTS employee_targets (
		employee_name TEXT PRIMARY KEY,
		target_cents BIGINT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		username TEXT PRIMARY KEY,
		password TEXT NOT NULL,
		role TEXT NOT NULL,
		employee_name TEXT,
		active BOOLEAN NOT NULL DEFAULT true,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// Migrate applies the schema. Statements are idempotent so it runs on every
// startup.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// CreateSale retries the serializable transaction a few times: two creates
// racing for the same MAX+1 order id abort the loser with SQLSTATE 40001,
// which is safe to rerun. Exhausted retries surface as a conflict.
func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	var created *domain.Sale
	var err error
	for attempt := 0; attempt < serializeRetries; attempt++ {
		created, err = s.createSaleTx(ctx, sale)
		if !isSerializationFailure(err) {
			return created, err
		}
	}
	return nil, store.ErrConflict
}

func (s *Store) createSaleTx(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if sale.ID == "" {
		sale.ID = uuid.NewString()
	}
	if sale.OrderID == "" {
		orderID, err := nextOrderID(ctx, tx, sale.Synthetic)
		if err != nil {
			return nil, err
		}
		sale.OrderID = orderID
	}

	var received int64
	for _, event := range sale.Payments {
		received += event.AmountCents
	}
	sale.AmountReceivedCents = received
	sale.BalanceCents = sale.TotalCents - received
	if sale.BalanceCents < 0 {
		return nil, store.ErrValidation
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sales (
			id, order_id, customer_code, customer_name, company_name, customer_contact,
			sale_date, employee_name, sale_type, subtotal_cents, courier_cost_cents,
			gst_cents, total_cents, amount_received_cents, balance_cents,
			account_received, payment_reference, remarks, synthetic, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$20)
	`, sale.ID, sale.OrderID, nullIfEmpty(sale.CustomerCode), sale.CustomerName,
		nullIfEmpty(sale.CompanyName), nullIfEmpty(sale.CustomerContact),
		sale.SaleDate, sale.EmployeeName, sale.SaleType, sale.SubtotalCents,
		sale.CourierCostCents, sale.GSTCents, sale.TotalCents,
		sale.AmountReceivedCents, sale.BalanceCents, nullIfEmpty(sale.AccountReceived),
		nullIfEmpty(sale.PaymentReference), nullIfEmpty(sale.Remarks), sale.Synthetic, sale.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	for i := range sale.Items {
		if sale.Items[i].ID == "" {
			sale.Items[i].ID = uuid.NewString()
		}
		sale.Items[i].OrderID = sale.OrderID
		_, err = tx.ExecContext(ctx, `
			INSERT INTO sale_items (id, order_id, product_name, quantity, unit_price_cents, total_price_cents)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, sale.Items[i].ID, sale.OrderID, sale.Items[i].ProductName, sale.Items[i].Quantity,
			sale.Items[i].UnitPriceCents, sale.Items[i].TotalPriceCents)
		if err != nil {
			return nil, err
		}
	}

	for i := range sale.Payments {
		if sale.Payments[i].ID == "" {
			sale.Payments[i].ID = uuid.NewString()
		}
		sale.Payments[i].OrderID = sale.OrderID
		_, err = tx.ExecContext(ctx, `
			INSERT INTO payment_history (id, order_id, payment_date, amount_cents, account_received, payment_reference, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, sale.Payments[i].ID, sale.OrderID, sale.Payments[i].PaymentDate, sale.Payments[i].AmountCents,
			nullIfEmpty(sale.Payments[i].Account), nullIfEmpty(sale.Payments[i].Reference), sale.Payments[i].CreatedAt)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	created := sale
	return &created, nil
}

// nextOrderID assigns the next numeric order id within the running
// transaction. Organic ids count up from 1001 and ignore the synthetic range
// reserved for reconciliation, which counts up from its own floor.
func nextOrderID(ctx context.Context, tx *sql.Tx, synthetic bool) (string, error) {
	cond := "n < $1"
	if synthetic {
		cond = "n >= $1"
	}

	var highest sql.NullInt64
	err := tx.QueryRowContext(ctx, `
		SELECT MAX(n) FROM (
			SELECT order_id::bigint AS n FROM sales WHERE order_id ~ '^[0-9]+$'
		) AS numeric_ids
		WHERE `+cond, reconcile.SyntheticOrderFloor).Scan(&highest)
	if err != nil {
		return "", err
	}
	if synthetic {
		return strconv.FormatInt(reconcile.NextSyntheticOrderID(highest.Int64), 10), nil
	}
	if !highest.Valid || highest.Int64 < firstOrderNumber-1 {
		highest.Int64 = firstOrderNumber - 1
	}
	return strconv.FormatInt(highest.Int64+1, 10), nil
}

const saleColumns = `
	id, order_id, COALESCE(customer_code,''), customer_name, COALESCE(company_name,''),
	COALESCE(customer_contact,''), sale_date, employee_name, sale_type, subtotal_cents,
	courier_cost_cents, gst_cents, total_cents, amount_received_cents, balance_cents,
	COALESCE(account_received,''), COALESCE(payment_reference,''), COALESCE(remarks,''),
	synthetic, created_at, updated_at
`

func scanSale(scanner interface{ Scan(...any) error }) (*domain.Sale, error) {
	var sale domain.Sale
	err := scanner.Scan(&sale.ID, &sale.OrderID, &sale.CustomerCode, &sale.CustomerName,
		&sale.CompanyName, &sale.CustomerContact, &sale.SaleDate, &sale.EmployeeName,
		&sale.SaleType, &sale.SubtotalCents, &sale.CourierCostCents, &sale.GSTCents,
		&sale.TotalCents, &sale.AmountReceivedCents, &sale.BalanceCents,
		&sale.AccountReceived, &sale.PaymentReference, &sale.Remarks,
		&sale.Synthetic, &sale.CreatedAt, &sale.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

func (s *Store) GetSaleByOrderID(ctx context.Context, orderID string) (*domain.Sale, error) {
	sale, err := scanSale(s.db.QueryRowContext(ctx, `
		SELECT `+saleColumns+`
		FROM sales
		WHERE order_id = $1
		ORDER BY created_at ASC
		LIMIT 1
	`, orderID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	if sale.Items, err = s.saleItems(ctx, orderID); err != nil {
		return nil, err
	}
	if sale.Payments, err = s.salePayments(ctx, orderID); err != nil {
		return nil, err
	}
	return sale, nil
}

func (s *Store) saleItems(ctx context.Context, orderID string) ([]domain.SaleItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, order_id, product_name, quantity, unit_price_cents, total_price_cents
		FROM sale_items
		WHERE order_id = $1
		ORDER BY product_name
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.SaleItem, 0, 8)
	for rows.Next() {
		var item domain.SaleItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductName, &item.Quantity,
			&item.UnitPriceCents, &item.TotalPriceCents); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *Store) salePayments(ctx context.Context, orderID string) ([]domain.PaymentEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, order_id, payment_date, amount_cents, COALESCE(account_received,''), COALESCE(payment_reference,''), created_at
		FROM payment_history
		WHERE order_id = $1
		ORDER BY created_at ASC
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]domain.PaymentEvent, 0, 4)
	for rows.Next() {
		var event domain.PaymentEvent
		if err := rows.Scan(&event.ID, &event.OrderID, &event.PaymentDate, &event.AmountCents,
			&event.Account, &event.Reference, &event.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func (s *Store) ListSales(ctx context.Context, limit int) ([]domain.Sale, error) {
	if limit < 1 {
		limit = 200
	}
	return s.querySales(ctx, `
		SELECT `+saleColumns+`
		FROM sales
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
}

func (s *Store) ListSalesByWindow(ctx context.Context, from time.Time, to time.Time) ([]domain.Sale, error) {
	return s.querySales(ctx, `
		SELECT `+saleColumns+`
		FROM sales
		WHERE sale_date >= $1 AND sale_date <= $2
		ORDER BY sale_date ASC
	`, from, to)
}

func (s *Store) ListSalesWithBalance(ctx context.Context) ([]domain.Sale, error) {
	return s.querySales(ctx, `
		SELECT `+saleColumns+`
		FROM sales
		WHERE balance_cents > 0
		ORDER BY balance_cents DESC
	`)
}

func (s *Store) querySales(ctx context.Context, query string, args ...any) ([]domain.Sale, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 64)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, *sale)
	}
	return sales, rows.Err()
}

func (s *Store) UpdateSale(ctx context.Context, updated domain.Sale) (*domain.Sale, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	sale, err := scanSale(tx.QueryRowContext(ctx, `
		SELECT `+saleColumns+`
		FROM sales
		WHERE order_id = $1
		ORDER BY created_at ASC
		LIMIT 1
		FOR UPDATE
	`, updated.OrderID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	var received int64
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount_cents), 0) FROM payment_history WHERE order_id = $1
	`, updated.OrderID).Scan(&received)
	if err != nil {
		return nil, err
	}
	balance := updated.TotalCents - received
	if balance < 0 {
		return nil, store.ErrValidation
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE sales
		SET customer_code = $2, customer_name = $3, company_name = $4, customer_contact = $5,
			sale_date = $6, employee_name = $7, sale_type = $8, subtotal_cents = $9,
			courier_cost_cents = $10, gst_cents = $11, total_cents = $12,
			amount_received_cents = $13, balance_cents = $14, remarks = $15, updated_at = $16
		WHERE id = $1
	`, sale.ID, nullIfEmpty(updated.CustomerCode), updated.CustomerName,
		nullIfEmpty(updated.CompanyName), nullIfEmpty(updated.CustomerContact),
		updated.SaleDate, updated.EmployeeName, updated.SaleType, updated.SubtotalCents,
		updated.CourierCostCents, updated.GSTCents, updated.TotalCents,
		received, balance, nullIfEmpty(updated.Remarks), updated.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM sale_items WHERE order_id = $1`, updated.OrderID); err != nil {
		return nil, err
	}
	for i := range updated.Items {
		if updated.Items[i].ID == "" {
			updated.Items[i].ID = uuid.NewString()
		}
		updated.Items[i].OrderID = updated.OrderID
		_, err = tx.ExecContext(ctx, `
			INSERT INTO sale_items (id, order_id, product_name, quantity, unit_price_cents, total_price_cents)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, updated.Items[i].ID, updated.OrderID, updated.Items[i].ProductName,
			updated.Items[i].Quantity, updated.Items[i].UnitPriceCents, updated.Items[i].TotalPriceCents)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetSaleByOrderID(ctx, updated.OrderID)
}

func (s *Store) ApplyPayment(ctx context.Context, orderID string, event domain.PaymentEvent) (*domain.Sale, error) {
	if event.AmountCents <= 0 {
		return nil, store.ErrValidation
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var saleID string
	var totalCents, receivedCents, balanceCents int64
	err = tx.QueryRowContext(ctx, `
		SELECT id, total_cents, amount_received_cents, balance_cents
		FROM sales
		WHERE order_id = $1
		ORDER BY created_at ASC
		LIMIT 1
		FOR UPDATE
	`, orderID).Scan(&saleID, &totalCents, &receivedCents, &balanceCents)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	// Re-check under the row lock. The service already validated against its
	// own read; failing only here means a concurrent payment won the race.
	if event.AmountCents > balanceCents {
		return nil, store.ErrConflict
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO payment_history (id, order_id, payment_date, amount_cents, account_received, payment_reference, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, event.ID, orderID, event.PaymentDate, event.AmountCents,
		nullIfEmpty(event.Account), nullIfEmpty(event.Reference), event.CreatedAt)
	if err != nil {
		return nil, err
	}

	newReceived := receivedCents + event.AmountCents
	_, err = tx.ExecContext(ctx, `
		UPDATE sales
		SET amount_received_cents = $2, balance_cents = $3, updated_at = $4
		WHERE id = $1
	`, saleID, newReceived, totalCents-newReceived, event.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetSaleByOrderID(ctx, orderID)
}

func (s *Store) MergeDuplicateSales(ctx context.Context) (int, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
		SELECT order_id FROM sales GROUP BY order_id HAVING COUNT(*) > 1
	`)
	if err != nil {
		return 0, err
	}
	duplicated := make([]string, 0, 8)
	for rows.Next() {
		var orderID string
		if err := rows.Scan(&orderID); err != nil {
			_ = rows.Close()
			return 0, err
		}
		duplicated = append(duplicated, orderID)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return 0, err
	}
	_ = rows.Close()

	merged := 0
	for _, orderID := range duplicated {
		var survivorID string
		err := tx.QueryRowContext(ctx, `
			SELECT id FROM sales WHERE order_id = $1 ORDER BY created_at ASC LIMIT 1 FOR UPDATE
		`, orderID).Scan(&survivorID)
		if err != nil {
			return 0, err
		}

		// Items and payments are keyed by order_id, so they already follow
		// the surviving row. Only the duplicate headers go.
		res, err := tx.ExecContext(ctx, `
			DELETE FROM sales WHERE order_id = $1 AND id <> $2
		`, orderID, survivorID)
		if err != nil {
			return 0, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		merged += int(affected)

		_, err = tx.ExecContext(ctx, `
			UPDATE sales
			SET amount_received_cents = paid.total,
				balance_cents = total_cents - paid.total,
				updated_at = now()
			FROM (
				SELECT COALESCE(SUM(amount_cents), 0) AS total
				FROM payment_history
				WHERE order_id = $1
			) AS paid
			WHERE id = $2
		`, orderID, survivorID)
		if err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return merged, nil
}

func (s *Store) ListSaleItemsByWindow(ctx context.Context, from time.Time, to time.Time) ([]domain.SaleItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, order_id, product_name, quantity, unit_price_cents, total_price_cents
		FROM sale_items
		WHERE order_id IN (
			SELECT DISTINCT order_id FROM sales WHERE sale_date >= $1 AND sale_date <= $2
		)
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.SaleItem, 0, 64)
	for rows.Next() {
		var item domain.SaleItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductName, &item.Quantity,
			&item.UnitPriceCents, &item.TotalPriceCents); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *Store) UpsertInventoryItem(ctx context.Context, item domain.InventoryItem) (*domain.UpsertOutcome, error) {
	if item.SerialNo == "" {
		return nil, store.ErrValidation
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO inventory (serial_no, model_name, in_date, dispatch_date, sale_date, customer_name, order_id, warranty, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (serial_no) DO NOTHING
	`, item.SerialNo, item.ModelName, nullDate(item.InDate), nullDate(item.DispatchDate),
		nullDate(item.SaleDate), nullIfEmpty(item.CustomerName), nullIfEmpty(item.OrderID),
		item.Warranty, item.CreatedAt)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		var existingOrder string
		err := s.db.QueryRowContext(ctx, `
			SELECT COALESCE(order_id,'') FROM inventory WHERE serial_no = $1
		`, item.SerialNo).Scan(&existingOrder)
		if err != nil {
			return nil, err
		}
		return &domain.UpsertOutcome{Inserted: false, OrderID: existingOrder}, nil
	}
	return &domain.UpsertOutcome{Inserted: true, OrderID: item.OrderID}, nil
}

func (s *Store) ListInventory(ctx context.Context, limit int) ([]domain.InventoryItem, error) {
	if limit < 1 {
		limit = 500
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT serial_no, model_name, in_date, dispatch_date, sale_date,
			COALESCE(customer_name,''), COALESCE(order_id,''), warranty, created_at
		FROM inventory
		ORDER BY serial_no
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanInventoryRows(rows)
}

func (s *Store) ListUnlinkedInventory(ctx context.Context) ([]domain.InventoryItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT serial_no, model_name, in_date, dispatch_date, sale_date,
			COALESCE(customer_name,''), COALESCE(order_id,''), warranty, created_at
		FROM inventory
		WHERE order_id IS NULL OR order_id = ''
		ORDER BY serial_no
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanInventoryRows(rows)
}

func scanInventoryRows(rows *sql.Rows) ([]domain.InventoryItem, error) {
	items := make([]domain.InventoryItem, 0, 64)
	for rows.Next() {
		var item domain.InventoryItem
		var inDate, dispatchDate, saleDate sql.NullTime
		if err := rows.Scan(&item.SerialNo, &item.ModelName, &inDate, &dispatchDate, &saleDate,
			&item.CustomerName, &item.OrderID, &item.Warranty, &item.CreatedAt); err != nil {
			return nil, err
		}
		item.InDate = timePtr(inDate)
		item.DispatchDate = timePtr(dispatchDate)
		item.SaleDate = timePtr(saleDate)
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *Store) LinkInventoryToOrder(ctx context.Context, serialNos []string, orderID string) (int, error) {
	if orderID == "" {
		return 0, store.ErrValidation
	}
	if len(serialNos) == 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE inventory
		SET order_id = $1
		WHERE serial_no = ANY($2) AND (order_id IS NULL OR order_id = '')
	`, orderID, serialNos)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func (s *Store) UpsertDispatchRecord(ctx context.Context, record domain.DispatchRecord) (*domain.UpsertOutcome, error) {
	if record.SerialNo == "" {
		return nil, store.ErrValidation
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO dispatch_records (id, serial_no, order_id, customer_name, courier, tracking_no, qc_status, dispatch_date, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (serial_no) DO NOTHING
	`, record.ID, record.SerialNo, nullIfEmpty(record.OrderID), nullIfEmpty(record.CustomerName),
		nullIfEmpty(record.Courier), nullIfEmpty(record.TrackingNo), nullIfEmpty(record.QCStatus),
		nullDate(record.DispatchDate), record.CreatedAt)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		var existingOrder string
		err := s.db.QueryRowContext(ctx, `
			SELECT COALESCE(order_id,'') FROM dispatch_records WHERE serial_no = $1
		`, record.SerialNo).Scan(&existingOrder)
		if err != nil {
			return nil, err
		}
		return &domain.UpsertOutcome{Inserted: false, OrderID: existingOrder}, nil
	}

	if record.DispatchDate != nil {
		_, err = s.db.ExecContext(ctx, `
			UPDATE inventory SET dispatch_date = $2 WHERE serial_no = $1 AND dispatch_date IS NULL
		`, record.SerialNo, nullDate(record.DispatchDate))
		if err != nil {
			return nil, err
		}
	}
	return &domain.UpsertOutcome{Inserted: true, OrderID: record.OrderID}, nil
}

func (s *Store) FindOrderByCustomerAndDate(ctx context.Context, customerName string, saleDate time.Time) (string, error) {
	var orderID string
	err := s.db.QueryRowContext(ctx, `
		SELECT order_id
		FROM sales
		WHERE regexp_replace(lower(trim(customer_name)), '\s+', ' ', 'g') = $1
			AND sale_date = $2
		ORDER BY created_at ASC
		LIMIT 1
	`, normalizeName(customerName), saleDate).Scan(&orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", store.ErrNotFound
		}
		return "", err
	}
	return orderID, nil
}

// CreateLead assigns customer_code as MAX+1 under serializable isolation and
// retries on SQLSTATE 40001 the same way CreateSale does.
func (s *Store) CreateLead(ctx context.Context, lead domain.Lead) (*domain.Lead, error) {
	var created *domain.Lead
	var err error
	for attempt := 0; attempt < serializeRetries; attempt++ {
		created, err = s.createLeadTx(ctx, lead)
		if !isSerializationFailure(err) {
			return created, err
		}
	}
	return nil, store.ErrConflict
}

func (s *Store) createLeadTx(ctx context.Context, lead domain.Lead) (*domain.Lead, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if lead.ID == "" {
		lead.ID = uuid.NewString()
	}
	if lead.Status == "" {
		lead.Status = domain.LeadStatusNew
	}

	var highest sql.NullInt64
	if err := tx.QueryRowContext(ctx, `SELECT MAX(customer_code) FROM leads`).Scan(&highest); err != nil {
		return nil, err
	}
	if !highest.Valid || highest.Int64 < firstOrderNumber-1 {
		highest = sql.NullInt64{Int64: firstOrderNumber - 1, Valid: true}
	}
	lead.CustomerCode = highest.Int64 + 1

	_, err = tx.ExecContext(ctx, `
		INSERT INTO leads (id, customer_code, customer_name, mobile_number, alternate_mobile,
			location, company_name, gst_number, email, complete_address, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$12)
	`, lead.ID, lead.CustomerCode, lead.CustomerName, lead.MobileNumber,
		nullIfEmpty(lead.AlternateMobile), nullIfEmpty(lead.Location), nullIfEmpty(lead.CompanyName),
		nullIfEmpty(lead.GSTNumber), nullIfEmpty(lead.Email), nullIfEmpty(lead.CompleteAddress),
		lead.Status, lead.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	created := lead
	return &created, nil
}

const leadColumns = `
	id, customer_code, customer_name, mobile_number, COALESCE(alternate_mobile,''),
	COALESCE(location,''), COALESCE(company_name,''), COALESCE(gst_number,''),
	COALESCE(email,''), COALESCE(complete_address,''), status, created_at, updated_at
`

func scanLead(scanner interface{ Scan(...any) error }) (*domain.Lead, error) {
	var lead domain.Lead
	err := scanner.Scan(&lead.ID, &lead.CustomerCode, &lead.CustomerName, &lead.MobileNumber,
		&lead.AlternateMobile, &lead.Location, &lead.CompanyName, &lead.GSTNumber,
		&lead.Email, &lead.CompleteAddress, &lead.Status, &lead.CreatedAt, &lead.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &lead, nil
}

func (s *Store) GetLeadByID(ctx context.Context, id string) (*domain.Lead, error) {
	lead, err := scanLead(s.db.QueryRowContext(ctx, `
		SELECT `+leadColumns+` FROM leads WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return lead, nil
}

func (s *Store) ListLeads(ctx context.Context, limit int) ([]domain.Lead, error) {
	if limit < 1 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+leadColumns+` FROM leads ORDER BY customer_code DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leads := make([]domain.Lead, 0, limit)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, *lead)
	}
	return leads, rows.Err()
}

func (s *Store) UpdateLead(ctx context.Context, lead domain.Lead) (*domain.Lead, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE leads
		SET customer_name = $2, mobile_number = $3, alternate_mobile = $4, location = $5,
			company_name = $6, gst_number = $7, email = $8, complete_address = $9,
			status = $10, updated_at = $11
		WHERE id = $1
	`, lead.ID, lead.CustomerName, lead.MobileNumber, nullIfEmpty(lead.AlternateMobile),
		nullIfEmpty(lead.Location), nullIfEmpty(lead.CompanyName), nullIfEmpty(lead.GSTNumber),
		nullIfEmpty(lead.Email), nullIfEmpty(lead.CompleteAddress), lead.Status, lead.UpdatedAt)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetLeadByID(ctx, lead.ID)
}

func (s *Store) DeleteLead(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM leads WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) UpsertIncentiveSnapshot(ctx context.Context, snapshot domain.IncentiveSnapshot) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO incentives (employee_name, month, year, sales_excl_tax_cents, target_cents,
			achievement_pct, exceeding_cents, incentive_cents, status, computed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (employee_name, month, year) DO UPDATE SET
			sales_excl_tax_cents = EXCLUDED.sales_excl_tax_cents,
			target_cents = EXCLUDED.target_cents,
			achievement_pct = EXCLUDED.achievement_pct,
			exceeding_cents = EXCLUDED.exceeding_cents,
			incentive_cents = EXCLUDED.incentive_cents,
			status = EXCLUDED.status,
			computed_at = EXCLUDED.computed_at
	`, snapshot.EmployeeName, snapshot.Month, snapshot.Year, snapshot.SalesExclTaxCents,
		snapshot.TargetCents, snapshot.AchievementPercent, snapshot.ExceedingCents,
		snapshot.IncentiveEarnedCents, snapshot.Status, snapshot.ComputedAt)
	return err
}

func (s *Store) ListIncentiveSnapshots(ctx context.Context, month int, year int) ([]domain.IncentiveSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT employee_name, month, year, sales_excl_tax_cents, target_cents,
			achievement_pct, exceeding_cents, incentive_cents, status, computed_at
		FROM incentives
		WHERE month = $1 AND year = $2
		ORDER BY employee_name
	`, month, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snapshots := make([]domain.IncentiveSnapshot, 0, 16)
	for rows.Next() {
		var snap domain.IncentiveSnapshot
		if err := rows.Scan(&snap.EmployeeName, &snap.Month, &snap.Year, &snap.SalesExclTaxCents,
			&snap.TargetCents, &snap.AchievementPercent, &snap.ExceedingCents,
			&snap.IncentiveEarnedCents, &snap.Status, &snap.ComputedAt); err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, rows.Err()
}

func (s *Store) SetEmployeeTarget(ctx context.Context, employeeName string, targetCents int64) error {
	if employeeName == "" || targetCents <= 0 {
		return store.ErrValidation
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO employee_targets (employee_name, target_cents, updated_at)
		VALUES ($1,$2,now())
		ON CONFLICT (employee_name) DO UPDATE SET target_cents = EXCLUDED.target_cents, updated_at = now()
	`, employeeName, targetCents)
	return err
}

func (s *Store) GetEmployeeTargets(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT employee_name, target_cents FROM employee_targets`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	targets := make(map[string]int64)
	for rows.Next() {
		var name string
		var target int64
		if err := rows.Scan(&name, &target); err != nil {
			return nil, err
		}
		targets[name] = target
	}
	return targets, rows.Err()
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.Username == "" || user.Password == "" {
		return store.ErrValidation
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, employee_name, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, user.Username, user.Password, user.Role, nullIfEmpty(user.EmployeeName), user.Active, user.CreatedAt)
	if err != nil && isUniqueViolation(err) {
		return store.ErrConflict
	}
	return err
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, COALESCE(employee_name,''), active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 8)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role,
			&user.EmployeeName, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password = $2 WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// serializeRetries bounds reruns of serializable transactions aborted with
// SQLSTATE 40001.
const serializeRetries = 3

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// isSerializationFailure reports a serializable-isolation abort
// (SQLSTATE 40001), which postgres documents as safe to retry.
func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullDate(val *time.Time) any {
	if val == nil {
		return nil
	}
	return *val
}

func timePtr(val sql.NullTime) *time.Time {
	if !val.Valid {
		return nil
	}
	t := val.Time.UTC()
	return &t
}

func normalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}
