package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"salesdesk/backend/internal/domain"
	"salesdesk/backend/internal/reconcile"
	"salesdesk/backend/internal/store"
)

const firstOrderNumber int64 = 1001

// Store is the single-file deployment backend. Dates are stored as TEXT in
// ISO form; the single connection serializes writers, which is what the
// pure-Go driver requires anyway.
type Store struct {
	db *sqlx.DB
}

func New(ctx context.Context, path string) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS sales (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL,
		customer_code TEXT NOT NULL DEFAULT '',
		customer_name TEXT NOT NULL,
		company_name TEXT NOT NULL DEFAULT '',
		customer_contact TEXT NOT NULL DEFAULT '',
		sale_date TEXT NOT NULL,
		employee_name TEXT NOT NULL,
		sale_type TEXT NOT NULL,
		subtotal_cents INTEGER NOT NULL DEFAULT 0,
		courier_cost_cents INTEGER NOT NULL DEFAULT 0,
		gst_cents INTEGER NOT NULL DEFAULT 0,
		total_cents INTEGER NOT NULL DEFAULT 0,
		amount_received_cents INTEGER NOT NULL DEFAULT 0,
		balance_cents INTEGER NOT NULL DEFAULT 0,
		account_received TEXT NOT NULL DEFAULT '',
		payment_reference TEXT NOT NULL DEFAULT '',
		remarks TEXT NOT NULL DEFAULT '',
		synthetic INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sales_order_id ON sales (order_id)`,
	`CREATE TABLE IF NOT EXISTS sale_items (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL,
		product_name TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		unit_price_cents INTEGER NOT NULL,
		total_price_cents INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sale_items_order_id ON sale_items (order_id)`,
	`CREATE TABLE IF NOT EXISTS payment_history (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL,
		payment_date TEXT NOT NULL,
		amount_cents INTEGER NOT NULL,
		account_received TEXT NOT NULL DEFAULT '',
		payment_reference TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_payment_history_order_id ON payment_history (order_id)`,
	`CREATE TABLE IF NOT EXISTS inventory (
		serial_no TEXT PRIMARY KEY,
		model_name TEXT NOT NULL,
		in_date TEXT,
		dispatch_date TEXT,
		sale_date TEXT,
		customer_name TEXT NOT NULL DEFAULT '',
		order_id TEXT NOT NULL DEFAULT '',
		warranty INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS dispatch_records (
		id TEXT PRIMARY KEY,
		serial_no TEXT NOT NULL UNIQUE,
		order_id TEXT NOT NULL DEFAULT '',
		customer_name TEXT NOT NULL DEFAULT '',
		courier TEXT NOT NULL DEFAULT '',
		tracking_no TEXT NOT NULL DEFAULT '',
		qc_status TEXT NOT NULL DEFAULT '',
		dispatch_date TEXT,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS leads (
		id TEXT PRIMARY KEY,
		customer_code INTEGER NOT NULL,
		customer_name TEXT NOT NULL,
		mobile_number TEXT NOT NULL,
		alternate_mobile TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		company_name TEXT NOT NULL DEFAULT '',
		gst_number TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		complete_address TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'New',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS incentives (
		employee_name TEXT NOT NULL,
		month INTEGER NOT NULL,
		year INTEGER NOT NULL,
		sales_excl_tax_cents INTEGER NOT NULL,
		target_cents INTEGER NOT NULL,
		achievement_pct REAL NOT NULL,
		exceeding_cents INTEGER NOT NULL,
		incentive_cents INTEGER NOT NULL,
		status TEXT NOT NULL,
		computed_at TEXT NOT NULL,
		UNIQUE (employee_name, month, year)
	)`,
	`CREATE TABLE IF NOT EXISTS employee_targets (
		employee_name TEXT PRIMARY KEY,
		target_cents INTEGER NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		username TEXT PRIMARY KEY,
		password TEXT NOT NULL,
		role TEXT NOT NULL,
		employee_name TEXT NOT NULL DEFAULT '',
		active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL
	)`,
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
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
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
	`, sale.ID, sale.OrderID, sale.CustomerCode, sale.CustomerName, sale.CompanyName,
		sale.CustomerContact, fmtDate(sale.SaleDate), sale.EmployeeName, sale.SaleType,
		sale.SubtotalCents, sale.CourierCostCents, sale.GSTCents, sale.TotalCents,
		sale.AmountReceivedCents, sale.BalanceCents, sale.AccountReceived,
		sale.PaymentReference, sale.Remarks, boolInt(sale.Synthetic),
		fmtTime(sale.CreatedAt), fmtTime(sale.CreatedAt))
	if err != nil {
		return nil, err
	}

	for i := range sale.Items {
		if sale.Items[i].ID == "" {
			sale.Items[i].ID = uuid.NewString()
		}
		sale.Items[i].OrderID = sale.OrderID
		_, err = tx.ExecContext(ctx, `
			INSERT INTO sale_items (id, order_id, product_name, quantity, unit_price_cents, total_price_cents)
			VALUES (?,?,?,?,?,?)
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
			VALUES (?,?,?,?,?,?,?)
		`, sale.Payments[i].ID, sale.OrderID, fmtDate(sale.Payments[i].PaymentDate),
			sale.Payments[i].AmountCents, sale.Payments[i].Account, sale.Payments[i].Reference,
			fmtTime(sale.Payments[i].CreatedAt))
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

func nextOrderID(ctx context.Context, tx *sqlx.Tx, synthetic bool) (string, error) {
	cond := `CAST(order_id AS INTEGER) < ?`
	if synthetic {
		cond = `CAST(order_id AS INTEGER) >= ?`
	}

	var highest sql.NullInt64
	err := tx.QueryRowContext(ctx, `
		SELECT MAX(CAST(order_id AS INTEGER))
		FROM sales
		WHERE CAST(order_id AS INTEGER) > 0 AND `+cond, reconcile.SyntheticOrderFloor).Scan(&highest)
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
	id, order_id, customer_code, customer_name, company_name, customer_contact,
	sale_date, employee_name, sale_type, subtotal_cents, courier_cost_cents,
	gst_cents, total_cents, amount_received_cents, balance_cents,
	account_received, payment_reference, remarks, synthetic, created_at, updated_at
`

func scanSale(scanner interface{ Scan(...any) error }) (*domain.Sale, error) {
	var sale domain.Sale
	var saleDate, createdAt, updatedAt string
	var synthetic int
	err := scanner.Scan(&sale.ID, &sale.OrderID, &sale.CustomerCode, &sale.CustomerName,
		&sale.CompanyName, &sale.CustomerContact, &saleDate, &sale.EmployeeName,
		&sale.SaleType, &sale.SubtotalCents, &sale.CourierCostCents, &sale.GSTCents,
		&sale.TotalCents, &sale.AmountReceivedCents, &sale.BalanceCents,
		&sale.AccountReceived, &sale.PaymentReference, &sale.Remarks,
		&synthetic, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	sale.SaleDate = parseDate(saleDate)
	sale.CreatedAt = parseTime(createdAt)
	sale.UpdatedAt = parseTime(updatedAt)
	sale.Synthetic = synthetic != 0
	return &sale, nil
}

func (s *Store) GetSaleByOrderID(ctx context.Context, orderID string) (*domain.Sale, error) {
	sale, err := scanSale(s.db.QueryRowContext(ctx, `
		SELECT `+saleColumns+` FROM sales WHERE order_id = ? ORDER BY created_at ASC LIMIT 1
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
		FROM sale_items WHERE order_id = ? ORDER BY product_name
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
		SELECT id, order_id, payment_date, amount_cents, account_received, payment_reference, created_at
		FROM payment_history WHERE order_id = ? ORDER BY created_at ASC
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]domain.PaymentEvent, 0, 4)
	for rows.Next() {
		var event domain.PaymentEvent
		var paymentDate, createdAt string
		if err := rows.Scan(&event.ID, &event.OrderID, &paymentDate, &event.AmountCents,
			&event.Account, &event.Reference, &createdAt); err != nil {
			return nil, err
		}
		event.PaymentDate = parseDate(paymentDate)
		event.CreatedAt = parseTime(createdAt)
		events = append(events, event)
	}
	return events, rows.Err()
}

func (s *Store) ListSales(ctx context.Context, limit int) ([]domain.Sale, error) {
	if limit < 1 {
		limit = 200
	}
	return s.querySales(ctx, `
		SELECT `+saleColumns+` FROM sales ORDER BY created_at DESC LIMIT ?
	`, limit)
}

func (s *Store) ListSalesByWindow(ctx context.Context, from time.Time, to time.Time) ([]domain.Sale, error) {
	return s.querySales(ctx, `
		SELECT `+saleColumns+` FROM sales WHERE sale_date >= ? AND sale_date <= ? ORDER BY sale_date ASC
	`, fmtDate(from), fmtDate(to))
}

func (s *Store) ListSalesWithBalance(ctx context.Context) ([]domain.Sale, error) {
	return s.querySales(ctx, `
		SELECT `+saleColumns+` FROM sales WHERE balance_cents > 0 ORDER BY balance_cents DESC
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
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var saleID string
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM sales WHERE order_id = ? ORDER BY created_at ASC LIMIT 1
	`, updated.OrderID).Scan(&saleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	var received int64
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount_cents), 0) FROM payment_history WHERE order_id = ?
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
		SET customer_code = ?, customer_name = ?, company_name = ?, customer_contact = ?,
			sale_date = ?, employee_name = ?, sale_type = ?, subtotal_cents = ?,
			courier_cost_cents = ?, gst_cents = ?, total_cents = ?,
			amount_received_cents = ?, balance_cents = ?, remarks = ?, updated_at = ?
		WHERE id = ?
	`, updated.CustomerCode, updated.CustomerName, updated.CompanyName, updated.CustomerContact,
		fmtDate(updated.SaleDate), updated.EmployeeName, updated.SaleType, updated.SubtotalCents,
		updated.CourierCostCents, updated.GSTCents, updated.TotalCents,
		received, balance, updated.Remarks, fmtTime(updated.UpdatedAt), saleID)
	if err != nil {
		return nil, err
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM sale_items WHERE order_id = ?`, updated.OrderID); err != nil {
		return nil, err
	}
	for i := range updated.Items {
		if updated.Items[i].ID == "" {
			updated.Items[i].ID = uuid.NewString()
		}
		updated.Items[i].OrderID = updated.OrderID
		_, err = tx.ExecContext(ctx, `
			INSERT INTO sale_items (id, order_id, product_name, quantity, unit_price_cents, total_price_cents)
			VALUES (?,?,?,?,?,?)
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

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var saleID string
	var totalCents, receivedCents, balanceCents int64
	err = tx.QueryRowContext(ctx, `
		SELECT id, total_cents, amount_received_cents, balance_cents
		FROM sales WHERE order_id = ? ORDER BY created_at ASC LIMIT 1
	`, orderID).Scan(&saleID, &totalCents, &receivedCents, &balanceCents)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	// The single write connection serializes transactions, so this re-check
	// is as strong as the row lock the postgres store takes.
	if event.AmountCents > balanceCents {
		return nil, store.ErrConflict
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO payment_history (id, order_id, payment_date, amount_cents, account_received, payment_reference, created_at)
		VALUES (?,?,?,?,?,?,?)
	`, event.ID, orderID, fmtDate(event.PaymentDate), event.AmountCents,
		event.Account, event.Reference, fmtTime(event.CreatedAt))
	if err != nil {
		return nil, err
	}

	newReceived := receivedCents + event.AmountCents
	_, err = tx.ExecContext(ctx, `
		UPDATE sales SET amount_received_cents = ?, balance_cents = ?, updated_at = ? WHERE id = ?
	`, newReceived, totalCents-newReceived, fmtTime(event.CreatedAt), saleID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetSaleByOrderID(ctx, orderID)
}

func (s *Store) MergeDuplicateSales(ctx context.Context) (int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var duplicated []string
	if err := tx.SelectContext(ctx, &duplicated, `
		SELECT order_id FROM sales GROUP BY order_id HAVING COUNT(*) > 1
	`); err != nil {
		return 0, err
	}

	merged := 0
	for _, orderID := range duplicated {
		var survivorID string
		err := tx.QueryRowContext(ctx, `
			SELECT id FROM sales WHERE order_id = ? ORDER BY created_at ASC LIMIT 1
		`, orderID).Scan(&survivorID)
		if err != nil {
			return 0, err
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM sales WHERE order_id = ? AND id <> ?`, orderID, survivorID)
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
			SET amount_received_cents = (SELECT COALESCE(SUM(amount_cents), 0) FROM payment_history WHERE order_id = ?),
				balance_cents = total_cents - (SELECT COALESCE(SUM(amount_cents), 0) FROM payment_history WHERE order_id = ?)
			WHERE id = ?
		`, orderID, orderID, survivorID)
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
		WHERE order_id IN (SELECT DISTINCT order_id FROM sales WHERE sale_date >= ? AND sale_date <= ?)
	`, fmtDate(from), fmtDate(to))
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
		VALUES (?,?,?,?,?,?,?,?,?)
		ON CONFLICT (serial_no) DO NOTHING
	`, item.SerialNo, item.ModelName, fmtDatePtr(item.InDate), fmtDatePtr(item.DispatchDate),
		fmtDatePtr(item.SaleDate), item.CustomerName, item.OrderID, boolInt(item.Warranty),
		fmtTime(item.CreatedAt))
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		var existingOrder string
		err := s.db.QueryRowContext(ctx, `SELECT order_id FROM inventory WHERE serial_no = ?`, item.SerialNo).Scan(&existingOrder)
		if err != nil {
			return nil, err
		}
		return &domain.UpsertOutcome{Inserted: false, OrderID: existingOrder}, nil
	}
	return &domain.UpsertOutcome{Inserted: true, OrderID: item.OrderID}, nil
}

const inventoryColumns = `serial_no, model_name, in_date, dispatch_date, sale_date, customer_name, order_id, warranty, created_at`

func (s *Store) ListInventory(ctx context.Context, limit int) ([]domain.InventoryItem, error) {
	if limit < 1 {
		limit = 500
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+inventoryColumns+` FROM inventory ORDER BY serial_no LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanInventoryRows(rows)
}

func (s *Store) ListUnlinkedInventory(ctx context.Context) ([]domain.InventoryItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+inventoryColumns+` FROM inventory WHERE order_id = '' ORDER BY serial_no
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
		var inDate, dispatchDate, saleDate sql.NullString
		var warranty int
		var createdAt string
		if err := rows.Scan(&item.SerialNo, &item.ModelName, &inDate, &dispatchDate, &saleDate,
			&item.CustomerName, &item.OrderID, &warranty, &createdAt); err != nil {
			return nil, err
		}
		item.InDate = parseDatePtr(inDate)
		item.DispatchDate = parseDatePtr(dispatchDate)
		item.SaleDate = parseDatePtr(saleDate)
		item.Warranty = warranty != 0
		item.CreatedAt = parseTime(createdAt)
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

	query, args, err := sqlx.In(`
		UPDATE inventory SET order_id = ? WHERE serial_no IN (?) AND order_id = ''
	`, orderID, serialNos)
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
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
		VALUES (?,?,?,?,?,?,?,?,?)
		ON CONFLICT (serial_no) DO NOTHING
	`, record.ID, record.SerialNo, record.OrderID, record.CustomerName, record.Courier,
		record.TrackingNo, record.QCStatus, fmtDatePtr(record.DispatchDate), fmtTime(record.CreatedAt))
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		var existingOrder string
		err := s.db.QueryRowContext(ctx, `SELECT order_id FROM dispatch_records WHERE serial_no = ?`, record.SerialNo).Scan(&existingOrder)
		if err != nil {
			return nil, err
		}
		return &domain.UpsertOutcome{Inserted: false, OrderID: existingOrder}, nil
	}

	if record.DispatchDate != nil {
		_, err = s.db.ExecContext(ctx, `
			UPDATE inventory SET dispatch_date = ? WHERE serial_no = ? AND dispatch_date IS NULL
		`, fmtDatePtr(record.DispatchDate), record.SerialNo)
		if err != nil {
			return nil, err
		}
	}
	return &domain.UpsertOutcome{Inserted: true, OrderID: record.OrderID}, nil
}

func (s *Store) FindOrderByCustomerAndDate(ctx context.Context, customerName string, saleDate time.Time) (string, error) {
	key := normalizeName(customerName)
	if key == "" {
		return "", store.ErrNotFound
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT order_id, customer_name FROM sales WHERE sale_date = ? ORDER BY created_at ASC
	`, fmtDate(saleDate))
	if err != nil {
		return "", err
	}
	defer rows.Close()

	for rows.Next() {
		var orderID, name string
		if err := rows.Scan(&orderID, &name); err != nil {
			return "", err
		}
		if normalizeName(name) == key {
			return orderID, nil
		}
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	return "", store.ErrNotFound
}

func (s *Store) CreateLead(ctx context.Context, lead domain.Lead) (*domain.Lead, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
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
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)
	`, lead.ID, lead.CustomerCode, lead.CustomerName, lead.MobileNumber, lead.AlternateMobile,
		lead.Location, lead.CompanyName, lead.GSTNumber, lead.Email, lead.CompleteAddress,
		lead.Status, fmtTime(lead.CreatedAt), fmtTime(lead.CreatedAt))
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
	id, customer_code, customer_name, mobile_number, alternate_mobile,
	location, company_name, gst_number, email, complete_address, status, created_at, updated_at
`

func scanLead(scanner interface{ Scan(...any) error }) (*domain.Lead, error) {
	var lead domain.Lead
	var createdAt, updatedAt string
	err := scanner.Scan(&lead.ID, &lead.CustomerCode, &lead.CustomerName, &lead.MobileNumber,
		&lead.AlternateMobile, &lead.Location, &lead.CompanyName, &lead.GSTNumber,
		&lead.Email, &lead.CompleteAddress, &lead.Status, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	lead.CreatedAt = parseTime(createdAt)
	lead.UpdatedAt = parseTime(updatedAt)
	return &lead, nil
}

func (s *Store) GetLeadByID(ctx context.Context, id string) (*domain.Lead, error) {
	lead, err := scanLead(s.db.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = ?`, id))
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
		SELECT `+leadColumns+` FROM leads ORDER BY customer_code DESC LIMIT ?
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
		SET customer_name = ?, mobile_number = ?, alternate_mobile = ?, location = ?,
			company_name = ?, gst_number = ?, email = ?, complete_address = ?,
			status = ?, updated_at = ?
		WHERE id = ?
	`, lead.CustomerName, lead.MobileNumber, lead.AlternateMobile, lead.Location,
		lead.CompanyName, lead.GSTNumber, lead.Email, lead.CompleteAddress,
		lead.Status, fmtTime(lead.UpdatedAt), lead.ID)
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
	res, err := s.db.ExecContext(ctx, `DELETE FROM leads WHERE id = ?`, id)
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
		VALUES (?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT (employee_name, month, year) DO UPDATE SET
			sales_excl_tax_cents = excluded.sales_excl_tax_cents,
			target_cents = excluded.target_cents,
			achievement_pct = excluded.achievement_pct,
			exceeding_cents = excluded.exceeding_cents,
			incentive_cents = excluded.incentive_cents,
			status = excluded.status,
			computed_at = excluded.computed_at
	`, snapshot.EmployeeName, snapshot.Month, snapshot.Year, snapshot.SalesExclTaxCents,
		snapshot.TargetCents, snapshot.AchievementPercent, snapshot.ExceedingCents,
		snapshot.IncentiveEarnedCents, snapshot.Status, fmtTime(snapshot.ComputedAt))
	return err
}

func (s *Store) ListIncentiveSnapshots(ctx context.Context, month int, year int) ([]domain.IncentiveSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT employee_name, month, year, sales_excl_tax_cents, target_cents,
			achievement_pct, exceeding_cents, incentive_cents, status, computed_at
		FROM incentives WHERE month = ? AND year = ? ORDER BY employee_name
	`, month, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snapshots := make([]domain.IncentiveSnapshot, 0, 16)
	for rows.Next() {
		var snap domain.IncentiveSnapshot
		var computedAt string
		if err := rows.Scan(&snap.EmployeeName, &snap.Month, &snap.Year, &snap.SalesExclTaxCents,
			&snap.TargetCents, &snap.AchievementPercent, &snap.ExceedingCents,
			&snap.IncentiveEarnedCents, &snap.Status, &computedAt); err != nil {
			return nil, err
		}
		snap.ComputedAt = parseTime(computedAt)
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
		VALUES (?,?,?)
		ON CONFLICT (employee_name) DO UPDATE SET target_cents = excluded.target_cents, updated_at = excluded.updated_at
	`, employeeName, targetCents, fmtTime(time.Now().UTC()))
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
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, employee_name, active, created_at)
		VALUES (?,?,?,?,?,?)
		ON CONFLICT (username) DO NOTHING
	`, user.Username, user.Password, user.Role, user.EmployeeName, boolInt(user.Active), fmtTime(user.CreatedAt))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrConflict
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, employee_name, active, created_at FROM users ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 8)
	for rows.Next() {
		var user domain.UserAccount
		var active int
		var createdAt string
		if err := rows.Scan(&user.Username, &user.Password, &user.Role,
			&user.EmployeeName, &active, &createdAt); err != nil {
			return nil, err
		}
		user.Active = active != 0
		user.CreatedAt = parseTime(createdAt)
		users = append(users, user)
	}
	return users, rows.Err()
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET password = ? WHERE username = ?`, password, username)
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

func fmtDate(t time.Time) string {
	return t.UTC().Format(domain.DateLayout)
}

func fmtDatePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return fmtDate(*t)
}

func parseDate(val string) time.Time {
	t, _ := time.Parse(domain.DateLayout, val)
	return t
}

func parseDatePtr(val sql.NullString) *time.Time {
	if !val.Valid || val.String == "" {
		return nil
	}
	t := parseDate(val.String)
	return &t
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(val string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, val)
	return t
}

func boolInt(val bool) int {
	if val {
		return 1
	}
	return 0
}

func normalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}
