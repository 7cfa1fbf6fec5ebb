package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"kakeibo/internal/core"
)

// Dialect describes the SQL flavour of a database/sql driver.
type Dialect struct {
	Name   string
	Driver string
	// numbered placeholders ($1, $2) instead of ?
	numbered bool
}

var (
	SQLite   = Dialect{Name: "sqlite", Driver: "sqlite"}
	Postgres = Dialect{Name: "postgres", Driver: "postgres", numbered: true}
)

// Rebind rewrites ? placeholders for dialects that number them. Queries in
// this package never contain a literal question mark.
func (d Dialect) Rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SQLiteDSN turns a database path into a DSN with foreign keys enforced and
// timestamps written in a sortable format.
func SQLiteDSN(path string) string {
	return path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"
}

// SQLStore implements Store on database/sql.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLStore wraps an open database. The schema must already be migrated.
func NewSQLStore(db *sql.DB, d Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: d}
}

// OpenSQLite creates the database directory if needed, applies migrations
// and returns a ready store.
func OpenSQLite(ctx context.Context, path string) (*SQLStore, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}
	return open(ctx, SQLite, SQLiteDSN(path))
}

// OpenPostgres connects with lib/pq and applies migrations.
func OpenPostgres(ctx context.Context, dsn string) (*SQLStore, error) {
	return open(ctx, Postgres, dsn)
}

func open(ctx context.Context, d Dialect, dsn string) (*SQLStore, error) {
	db, err := sql.Open(d.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", d.Name, err)
	}
	if d.Name == SQLite.Name {
		// one writer at a time avoids SQLITE_BUSY under concurrent requests
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(d, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return NewSQLStore(db, d), nil
}

func (s *SQLStore) Dialect() Dialect { return s.dialect }

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLStore) exec(ctx context.Context, q string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.dialect.Rebind(q), args...)
}

func (s *SQLStore) query(ctx context.Context, q string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.dialect.Rebind(q), args...)
}

func (s *SQLStore) queryRow(ctx context.Context, q string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.dialect.Rebind(q), args...)
}

// affected maps a zero row count to ErrNotFound.
func affected(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func utc(t time.Time) time.Time { return t.UTC() }

// Transactions

const selectTransaction = `
SELECT t.id, t.user_id, t.type, t.amount, t.transaction_date, t.description,
       t.created_at, t.updated_at, c.id, c.name, c.color
FROM transactions t
LEFT JOIN categories c ON c.id = t.category_id AND c.user_id = t.user_id`

func categoryParam(tx core.Transaction) any {
	if tx.HasCategory() {
		return tx.Category.ID
	}
	return nil
}

func (s *SQLStore) CreateTransaction(ctx context.Context, tx core.Transaction) error {
	_, err := s.exec(ctx, `
INSERT INTO transactions (id, user_id, type, amount, transaction_date, category_id, description, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.UserID, string(tx.Kind), tx.Amount, tx.OccurredOn, categoryParam(tx),
		tx.Description, utc(tx.CreatedAt), utc(tx.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (s *SQLStore) UpdateTransaction(ctx context.Context, tx core.Transaction) error {
	err := affected(s.exec(ctx, `
UPDATE transactions
SET type = ?, amount = ?, transaction_date = ?, category_id = ?, description = ?, updated_at = ?
WHERE id = ? AND user_id = ?`,
		string(tx.Kind), tx.Amount, tx.OccurredOn, categoryParam(tx), tx.Description,
		utc(tx.UpdatedAt), tx.ID, tx.UserID))
	if err != nil {
		return fmt.Errorf("update transaction %s: %w", tx.ID, err)
	}
	return nil
}

func (s *SQLStore) DeleteTransaction(ctx context.Context, userID string, id uuid.UUID) error {
	err := affected(s.exec(ctx, `DELETE FROM transactions WHERE id = ? AND user_id = ?`, id, userID))
	if err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		tx                 core.Transaction
		kind               string
		catID, name, color sql.NullString
	)
	err := row.Scan(&tx.ID, &tx.UserID, &kind, &tx.Amount, &tx.OccurredOn, &tx.Description,
		&tx.CreatedAt, &tx.UpdatedAt, &catID, &name, &color)
	if err != nil {
		return core.Transaction{}, err
	}
	tx.Kind = core.Kind(kind)
	tx.CreatedAt, tx.UpdatedAt = utc(tx.CreatedAt), utc(tx.UpdatedAt)
	if catID.Valid {
		id, err := uuid.Parse(catID.String)
		if err != nil {
			return core.Transaction{}, fmt.Errorf("parse category id: %w", err)
		}
		tx.Category = &core.CategoryRef{ID: id, Name: name.String, Color: color.String}
	}
	return tx, nil
}

func (s *SQLStore) GetTransaction(ctx context.Context, userID string, id uuid.UUID) (core.Transaction, error) {
	tx, err := scanTransaction(s.queryRow(ctx, selectTransaction+` WHERE t.id = ? AND t.user_id = ?`, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %s: %w", id, err)
	}
	return tx, nil
}

func (s *SQLStore) ListTransactions(ctx context.Context, userID string, f TransactionFilter) ([]core.Transaction, error) {
	var b strings.Builder
	b.WriteString(selectTransaction)
	b.WriteString(` WHERE t.user_id = ?`)
	args := []any{userID}
	if !f.From.IsZero() {
		b.WriteString(` AND t.transaction_date >= ?`)
		args = append(args, f.From)
	}
	if !f.To.IsZero() {
		b.WriteString(` AND t.transaction_date < ?`)
		args = append(args, f.To)
	}
	if f.Kind != "" {
		b.WriteString(` AND t.type = ?`)
		args = append(args, string(f.Kind))
	}
	b.WriteString(` ORDER BY t.transaction_date DESC, t.created_at DESC`)
	if f.Limit > 0 {
		b.WriteString(` LIMIT ?`)
		args = append(args, f.Limit)
	}

	rows, err := s.query(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (s *SQLStore) ActiveMonths(ctx context.Context, since core.Date) ([]UserMonth, error) {
	rows, err := s.query(ctx, `
SELECT DISTINCT user_id, transaction_date FROM transactions
WHERE transaction_date >= ?
ORDER BY user_id, transaction_date`, since)
	if err != nil {
		return nil, fmt.Errorf("list active months: %w", err)
	}
	defer rows.Close()

	var (
		users []string
		dates []core.Date
	)
	for rows.Next() {
		var (
			u string
			d core.Date
		)
		if err := rows.Scan(&u, &d); err != nil {
			return nil, fmt.Errorf("scan active month: %w", err)
		}
		users = append(users, u)
		dates = append(dates, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return MonthsOf(users, dates), nil
}

// Categories

const selectCategory = `SELECT id, user_id, name, color, icon, type, created_at, updated_at FROM categories`

func scanCategory(row rowScanner) (core.Category, error) {
	var (
		c    core.Category
		kind string
	)
	if err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Color, &c.Icon, &kind, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return core.Category{}, err
	}
	c.Kind = core.CategoryKind(kind)
	c.CreatedAt, c.UpdatedAt = utc(c.CreatedAt), utc(c.UpdatedAt)
	return c, nil
}

func (s *SQLStore) CreateCategory(ctx context.Context, c core.Category) error {
	_, err := s.exec(ctx, `
INSERT INTO categories (id, user_id, name, color, icon, type, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Name, c.Color, c.Icon, string(c.Kind), utc(c.CreatedAt), utc(c.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

func (s *SQLStore) UpdateCategory(ctx context.Context, c core.Category) error {
	err := affected(s.exec(ctx, `
UPDATE categories SET name = ?, color = ?, icon = ?, type = ?, updated_at = ?
WHERE id = ? AND user_id = ?`,
		c.Name, c.Color, c.Icon, string(c.Kind), utc(c.UpdatedAt), c.ID, c.UserID))
	if err != nil {
		return fmt.Errorf("update category %s: %w", c.ID, err)
	}
	return nil
}

// DeleteCategory detaches and cascades explicitly so the behaviour does not
// depend on foreign key enforcement being enabled.
func (s *SQLStore) DeleteCategory(ctx context.Context, userID string, id uuid.UUID) error {
	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer dbtx.Rollback()

	stmts := []string{
		`UPDATE transactions SET category_id = NULL WHERE category_id = ? AND user_id = ?`,
		`DELETE FROM budgets WHERE category_id = ? AND user_id = ?`,
	}
	for _, q := range stmts {
		if _, err := dbtx.ExecContext(ctx, s.dialect.Rebind(q), id, userID); err != nil {
			return fmt.Errorf("delete category %s: %w", id, err)
		}
	}
	res, err := dbtx.ExecContext(ctx, s.dialect.Rebind(`DELETE FROM categories WHERE id = ? AND user_id = ?`), id, userID)
	if err := affected(res, err); err != nil {
		return fmt.Errorf("delete category %s: %w", id, err)
	}
	return dbtx.Commit()
}

func (s *SQLStore) GetCategory(ctx context.Context, userID string, id uuid.UUID) (core.Category, error) {
	c, err := scanCategory(s.queryRow(ctx, selectCategory+` WHERE id = ? AND user_id = ?`, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, fmt.Errorf("category %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category %s: %w", id, err)
	}
	return c, nil
}

func (s *SQLStore) ListCategories(ctx context.Context, userID string, kind *core.CategoryKind) ([]core.Category, error) {
	q := selectCategory + ` WHERE user_id = ?`
	args := []any{userID}
	if kind != nil {
		q += ` AND type = ?`
		args = append(args, string(*kind))
	}
	q += ` ORDER BY type, name`

	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Budgets

func scanBudget(row rowScanner) (core.Budget, error) {
	var b core.Budget
	if err := row.Scan(&b.ID, &b.UserID, &b.CategoryID, &b.Amount, &b.Year, &b.Month, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return core.Budget{}, err
	}
	b.CreatedAt, b.UpdatedAt = utc(b.CreatedAt), utc(b.UpdatedAt)
	return b, nil
}

func (s *SQLStore) UpsertBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	stored, err := scanBudget(s.queryRow(ctx, `
INSERT INTO budgets (id, user_id, category_id, amount, year, month, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (user_id, category_id, year, month)
DO UPDATE SET amount = excluded.amount, updated_at = excluded.updated_at
RETURNING id, user_id, category_id, amount, year, month, created_at, updated_at`,
		b.ID, b.UserID, b.CategoryID, b.Amount, b.Year, b.Month, utc(b.CreatedAt), utc(b.UpdatedAt)))
	if err != nil {
		return core.Budget{}, fmt.Errorf("upsert budget: %w", err)
	}
	return stored, nil
}

func (s *SQLStore) DeleteBudget(ctx context.Context, userID string, id uuid.UUID) error {
	err := affected(s.exec(ctx, `DELETE FROM budgets WHERE id = ? AND user_id = ?`, id, userID))
	if err != nil {
		return fmt.Errorf("delete budget %s: %w", id, err)
	}
	return nil
}

func (s *SQLStore) ListBudgets(ctx context.Context, userID string, year, month int) ([]core.Budget, error) {
	rows, err := s.query(ctx, `
SELECT b.id, b.user_id, b.category_id, b.amount, b.year, b.month, b.created_at, b.updated_at
FROM budgets b
JOIN categories c ON c.id = b.category_id
WHERE b.user_id = ? AND b.year = ? AND b.month = ?
ORDER BY c.name`, userID, year, month)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Snapshots

func (s *SQLStore) SaveSnapshot(ctx context.Context, snap core.MonthSnapshot) error {
	_, err := s.exec(ctx, `
INSERT INTO month_snapshots (user_id, year, month, income, expense, balance, tx_count, computed_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (user_id, year, month)
DO UPDATE SET income = excluded.income, expense = excluded.expense, balance = excluded.balance,
              tx_count = excluded.tx_count, computed_at = excluded.computed_at`,
		snap.UserID, snap.Year, snap.Month, snap.Summary.Income, snap.Summary.Expense,
		snap.Summary.Balance, snap.Summary.Count, utc(snap.ComputedAt))
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (s *SQLStore) GetSnapshot(ctx context.Context, userID string, year, month int) (core.MonthSnapshot, error) {
	var snap core.MonthSnapshot
	err := s.queryRow(ctx, `
SELECT user_id, year, month, income, expense, balance, tx_count, computed_at
FROM month_snapshots WHERE user_id = ? AND year = ? AND month = ?`, userID, year, month).
		Scan(&snap.UserID, &snap.Year, &snap.Month, &snap.Summary.Income, &snap.Summary.Expense,
			&snap.Summary.Balance, &snap.Summary.Count, &snap.ComputedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.MonthSnapshot{}, fmt.Errorf("snapshot %s %04d-%02d: %w", userID, year, month, ErrNotFound)
	}
	if err != nil {
		return core.MonthSnapshot{}, fmt.Errorf("get snapshot: %w", err)
	}
	snap.ComputedAt = utc(snap.ComputedAt)
	return snap, nil
}
