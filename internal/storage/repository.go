package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gastos/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository persists obligations, payments and transactions. It
// implements the ledger and registry store ports.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// --- obligations ---

func (r *SQLiteRepository) CreateObligation(ctx context.Context, ob core.Obligation) (int64, error) {
	var endDate any
	if !ob.EndDate.IsZero() {
		endDate = ob.EndDate.String()
	}
	var staffID any
	if ob.StaffID != 0 {
		staffID = ob.StaffID
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO obligations (name, category, amount_cents, frequency, start_date, end_date,
			payment_method, payment_account, staff_id, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ob.Name, string(ob.Category), ob.Amount.Cents, string(ob.Frequency),
		ob.StartDate.String(), endDate, ob.PaymentMethod, ob.PaymentAccount, staffID, ob.Active)
	if err != nil {
		return 0, fmt.Errorf("insert obligation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("obligation id: %w", err)
	}

	slog.InfoContext(ctx, "Obligation saved",
		"id", id,
		"name", ob.Name,
		"category", string(ob.Category),
		"frequency", string(ob.Frequency),
		"amount_cents", ob.Amount.Cents)

	return id, nil
}

func (r *SQLiteRepository) Obligation(ctx context.Context, id int64) (core.Obligation, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, category, amount_cents, frequency, start_date, end_date,
			payment_method, payment_account, staff_id, active
		FROM obligations WHERE id = ?`, id)
	return scanObligation(row)
}

func (r *SQLiteRepository) ListObligations(ctx context.Context, activeOnly bool) ([]core.Obligation, error) {
	query := `
		SELECT id, name, category, amount_cents, frequency, start_date, end_date,
			payment_method, payment_account, staff_id, active
		FROM obligations`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list obligations: %w", err)
	}
	defer rows.Close()

	var out []core.Obligation
	for rows.Next() {
		ob, err := scanObligation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ob)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) SetObligationActive(ctx context.Context, id int64, active bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE obligations SET active = ? WHERE id = ?`, active, id)
	if err != nil {
		return fmt.Errorf("update obligation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanObligation(row rowScanner) (core.Obligation, error) {
	var (
		ob       core.Obligation
		category string
		freq     string
		start    string
		end      sql.NullString
		staff    sql.NullInt64
	)
	err := row.Scan(&ob.ID, &ob.Name, &category, &ob.Amount.Cents, &freq, &start, &end,
		&ob.PaymentMethod, &ob.PaymentAccount, &staff, &ob.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Obligation{}, core.ErrNotFound
	}
	if err != nil {
		return core.Obligation{}, fmt.Errorf("scan obligation: %w", err)
	}
	ob.Category = core.Category(category)
	ob.Frequency = core.Frequency(freq)
	if ob.StartDate, err = core.ParseDate(start); err != nil {
		return core.Obligation{}, fmt.Errorf("obligation %d start date: %w", ob.ID, err)
	}
	if end.Valid && end.String != "" {
		if ob.EndDate, err = core.ParseDate(end.String); err != nil {
			return core.Obligation{}, fmt.Errorf("obligation %d end date: %w", ob.ID, err)
		}
	}
	if staff.Valid {
		ob.StaffID = staff.Int64
	}
	return ob, nil
}

// --- payments ---

func (r *SQLiteRepository) InsertPayment(ctx context.Context, p core.Payment) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO payments (obligation_id, period_start, period_end, amount_cents,
			payment_date, payment_method, notes, receipt_url, receipt_mime)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ObligationID, p.PeriodStart.String(), p.PeriodEnd.String(), p.Amount.Cents,
		p.PaymentDate.String(), p.PaymentMethod, p.Notes, p.Receipt.URL, p.Receipt.MIMEType)
	if err != nil {
		return 0, fmt.Errorf("insert payment: %w", err)
	}
	return res.LastInsertId()
}

func (r *SQLiteRepository) Payment(ctx context.Context, id int64) (core.Payment, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, obligation_id, period_start, period_end, amount_cents,
			payment_date, payment_method, notes, receipt_url, receipt_mime
		FROM payments WHERE id = ?`, id)
	return scanPayment(row)
}

func (r *SQLiteRepository) PaymentsForObligation(ctx context.Context, obligationID int64) ([]core.Payment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, obligation_id, period_start, period_end, amount_cents,
			payment_date, payment_method, notes, receipt_url, receipt_mime
		FROM payments WHERE obligation_id = ? ORDER BY payment_date, id`, obligationID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var out []core.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) DeletePayment(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM payments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete payment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func scanPayment(row rowScanner) (core.Payment, error) {
	var (
		p                             core.Payment
		periodStart, periodEnd, payed string
	)
	err := row.Scan(&p.ID, &p.ObligationID, &periodStart, &periodEnd, &p.Amount.Cents,
		&payed, &p.PaymentMethod, &p.Notes, &p.Receipt.URL, &p.Receipt.MIMEType)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Payment{}, core.ErrNotFound
	}
	if err != nil {
		return core.Payment{}, fmt.Errorf("scan payment: %w", err)
	}
	if p.PeriodStart, err = core.ParseDate(periodStart); err != nil {
		return core.Payment{}, fmt.Errorf("payment %d period start: %w", p.ID, err)
	}
	if p.PeriodEnd, err = core.ParseDate(periodEnd); err != nil {
		return core.Payment{}, fmt.Errorf("payment %d period end: %w", p.ID, err)
	}
	if p.PaymentDate, err = core.ParseDate(payed); err != nil {
		return core.Payment{}, fmt.Errorf("payment %d payment date: %w", p.ID, err)
	}
	return p, nil
}

// --- invoice settlements ---

func (r *SQLiteRepository) InvoiceSettled(ctx context.Context, obligationID int64, start, end core.Date) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM invoice_settlements
		WHERE obligation_id = ? AND period_start = ? AND period_end = ?`,
		obligationID, start.String(), end.String()).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check invoice settlement: %w", err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) InsertInvoiceSettlement(ctx context.Context, obligationID int64, start, end core.Date, transactionID int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO invoice_settlements (obligation_id, period_start, period_end, transaction_id)
		VALUES (?, ?, ?, ?)`,
		obligationID, start.String(), end.String(), transactionID)
	if err != nil {
		return fmt.Errorf("insert invoice settlement: %w", err)
	}
	return nil
}

// --- transactions ---

func (r *SQLiteRepository) InsertTransaction(ctx context.Context, tx core.Transaction) (int64, error) {
	var obligationID any
	if tx.ObligationID != 0 {
		obligationID = tx.ObligationID
	}
	var paymentID any
	if tx.PaymentID != 0 {
		paymentID = tx.PaymentID
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (type, category, amount_cents, tx_date, payment_method,
			property_address, description, vendor, obligation_id, payment_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(tx.Type), tx.Category, tx.Amount.Cents, tx.Date.String(), tx.PaymentMethod,
		tx.PropertyAddress, tx.Description, tx.Vendor, obligationID, paymentID)
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}
	return res.LastInsertId()
}

// DeleteTransactionsForPayment removes the ledger-derived expense
// entries of a deleted payment.
func (r *SQLiteRepository) DeleteTransactionsForPayment(ctx context.Context, paymentID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE payment_id = ?`, paymentID)
	if err != nil {
		return fmt.Errorf("delete payment transactions: %w", err)
	}
	return nil
}

// ListTransactions returns transactions inside the date range. Zero
// bounds are open.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, from, to core.Date) ([]core.Transaction, error) {
	query := `
		SELECT id, type, category, amount_cents, tx_date, payment_method,
			property_address, description, vendor, obligation_id, payment_id
		FROM transactions WHERE 1=1`
	var args []any
	if !from.IsZero() {
		query += ` AND tx_date >= ?`
		args = append(args, from.String())
	}
	if !to.IsZero() {
		query += ` AND tx_date <= ?`
		args = append(args, to.String())
	}
	query += ` ORDER BY tx_date, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var (
			tx     core.Transaction
			txType string
			date   string
			obID   sql.NullInt64
			payID  sql.NullInt64
		)
		err := rows.Scan(&tx.ID, &txType, &tx.Category, &tx.Amount.Cents, &date, &tx.PaymentMethod,
			&tx.PropertyAddress, &tx.Description, &tx.Vendor, &obID, &payID)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		tx.Type = core.TransactionType(txType)
		if tx.Date, err = core.ParseDate(date); err != nil {
			return nil, fmt.Errorf("transaction %d date: %w", tx.ID, err)
		}
		if obID.Valid {
			tx.ObligationID = obID.Int64
		}
		if payID.Valid {
			tx.PaymentID = payID.Int64
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

// --- export bookkeeping (worker) ---

type PendingExport struct {
	PaymentID    int64
	ObligationID int64
}

// PendingExports lists payments not yet exported to the bookkeeping
// sheet, oldest first. Backup path for lost broker messages.
func (r *SQLiteRepository) PendingExports(ctx context.Context, limit int) ([]PendingExport, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, obligation_id FROM payments
		WHERE exported = 0 AND export_error = 0
		ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending exports: %w", err)
	}
	defer rows.Close()

	var out []PendingExport
	for rows.Next() {
		var pe PendingExport
		if err := rows.Scan(&pe.PaymentID, &pe.ObligationID); err != nil {
			return nil, fmt.Errorf("scan pending export: %w", err)
		}
		out = append(out, pe)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) MarkExported(ctx context.Context, paymentID int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE payments SET exported = 1, export_error = 0 WHERE id = ?`, paymentID)
	if err != nil {
		return fmt.Errorf("mark exported: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) MarkExportError(ctx context.Context, paymentID int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE payments SET export_error = 1 WHERE id = ?`, paymentID)
	if err != nil {
		return fmt.Errorf("mark export error: %w", err)
	}
	return nil
}
