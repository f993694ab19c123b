package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"prorata/internal/core"
	applog "prorata/internal/log"

	_ "modernc.org/sqlite"
)

// timeLayout stores naive wall-clock values; text order equals time order.
const timeLayout = "2006-01-02 15:04:05"

const expenseColumns = `
	SELECT e.id, e.issued, e.end_date, e.repeat_interval, e.price, e.in_base, e.note,
	       c.id, c.name, c.identifier, c.symbol,
	       k.id, k.name, k.slug
	FROM expenses e
	JOIN currencies c ON c.id = e.currency_id
	JOIN categories k ON k.id = e.category_id`

const (
	querySimple = expenseColumns + `
	WHERE e.end_date IS NULL AND e.repeat_interval IS NULL
	  AND e.issued >= ? AND e.issued < ?
	ORDER BY e.issued, e.id`

	queryBounded = expenseColumns + `
	WHERE e.end_date IS NOT NULL AND e.repeat_interval IS NULL
	  AND e.issued < ? AND e.end_date >= ?
	ORDER BY e.issued, e.id`

	queryRepeating = expenseColumns + `
	WHERE e.repeat_interval IS NOT NULL
	ORDER BY e.issued, e.id`
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
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

// AddExpense implements ports.ExpenseWriter
func (r *SQLiteRepository) AddExpense(ctx context.Context, e core.Expense) (int64, error) {
	var end sql.NullString
	if e.HasEnd() {
		end = sql.NullString{String: e.End.Format(timeLayout), Valid: true}
	}
	var repeat sql.NullInt64
	if e.Repeats() {
		repeat = sql.NullInt64{Int64: int64(e.RepeatMonths), Valid: true}
	}
	var note sql.NullString
	if e.Note != "" {
		note = sql.NullString{String: e.Note, Valid: true}
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO expenses (issued, end_date, repeat_interval, price, in_base, note, currency_id, category_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Issued.Format(timeLayout), end, repeat, e.Price.Cents, e.InBase.Cents, note, e.Currency.ID, e.Category.ID)
	if err != nil {
		return 0, fmt.Errorf("create expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved to SQLite",
		applog.FieldComponent, applog.ComponentStorage,
		applog.FieldExpenseID, id,
		applog.FieldKind, e.Kind().String(),
		applog.FieldAmountCents, e.InBase.Cents,
		applog.FieldCategoryID, e.Category.ID)

	return id, nil
}

// DeleteExpense implements ports.ExpenseWriter
func (r *SQLiteRepository) DeleteExpense(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.ErrExpenseNotFound
	}
	slog.InfoContext(ctx, "Expense deleted from SQLite", "id", id)
	return nil
}

// GetExpense retrieves a single expense by ID
func (r *SQLiteRepository) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, expenseColumns+` WHERE e.id = ?`, id)
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense by id: %w", err)
	}
	expenses, err := scanExpenses(rows)
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense by id: %w", err)
	}
	if len(expenses) == 0 {
		return core.Expense{}, core.ErrExpenseNotFound
	}
	return expenses[0], nil
}

// ListExpenses implements ports.ExpenseReader
func (r *SQLiteRepository) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, expenseColumns+` ORDER BY e.issued, e.id`)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	expenses, err := scanExpenses(rows)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return expenses, nil
}

// MonthPartition implements ports.MonthQuerier. The three class queries run in
// one read transaction so they see the same snapshot.
func (r *SQLiteRepository) MonthPartition(ctx context.Context, m core.Month) (core.Partition, error) {
	var p core.Partition

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return p, fmt.Errorf("begin partition query: %w", err)
	}
	defer tx.Rollback()

	start := m.Start().Format(timeLayout)
	next := m.Next().Start().Format(timeLayout)

	queries := []struct {
		name  string
		query string
		args  []any
		into  *[]core.Expense
	}{
		{"simple", querySimple, []any{start, next}, &p.Simple},
		{"bounded", queryBounded, []any{next, start}, &p.Bounded},
		{"repeating", queryRepeating, nil, &p.Repeating},
	}
	for _, q := range queries {
		rows, err := tx.QueryContext(ctx, q.query, q.args...)
		if err != nil {
			return core.Partition{}, fmt.Errorf("query %s expenses: %w", q.name, err)
		}
		expenses, err := scanExpenses(rows)
		if err != nil {
			return core.Partition{}, fmt.Errorf("scan %s expenses: %w", q.name, err)
		}
		*q.into = expenses
	}

	slog.DebugContext(ctx, "Loaded month partition",
		applog.FieldComponent, applog.ComponentStorage,
		applog.FieldYear, m.Year,
		applog.FieldMonth, int(m.Month),
		"simple", len(p.Simple),
		"bounded", len(p.Bounded),
		"repeating", len(p.Repeating))

	return p, tx.Commit()
}

// Categories implements ports.CategoryStore
func (r *SQLiteRepository) Categories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, slug FROM categories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("get categories: %w", err)
	}
	defer rows.Close()

	var categories []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// AddCategory implements ports.CategoryStore
func (r *SQLiteRepository) AddCategory(ctx context.Context, c core.Category) (core.Category, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO categories (name, slug) VALUES (?, ?)`, c.Name, c.Slug)
	if err != nil {
		if isUniqueViolation(err) {
			return core.Category{}, fmt.Errorf("%w: %s", core.ErrDuplicateCategory, c.Name)
		}
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	if c.ID, err = res.LastInsertId(); err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	slog.InfoContext(ctx, "Category created", "id", c.ID, "name", c.Name)
	return c, nil
}

// RenameCategory implements ports.CategoryStore
func (r *SQLiteRepository) RenameCategory(ctx context.Context, id int64, name, slug string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE categories SET name = ?, slug = ? WHERE id = ?`, name, slug, id)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", core.ErrDuplicateCategory, name)
		}
		return fmt.Errorf("rename category: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.ErrUnknownCategory
	}
	slog.InfoContext(ctx, "Category renamed", "id", id, "name", name)
	return nil
}

// DeleteCategory implements ports.CategoryStore. Categories that are still
// referenced by expenses are kept.
func (r *SQLiteRepository) DeleteCategory(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete category: %w", err)
	}
	defer tx.Rollback()

	var inUse int64
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM expenses WHERE category_id = ?`, id).Scan(&inUse); err != nil {
		return fmt.Errorf("count category expenses: %w", err)
	}
	if inUse > 0 {
		return fmt.Errorf("%w (%d)", core.ErrCategoryInUse, inUse)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.ErrUnknownCategory
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete category: %w", err)
	}
	slog.InfoContext(ctx, "Category deleted", "id", id)
	return nil
}

// Currencies implements ports.CurrencyReader
func (r *SQLiteRepository) Currencies(ctx context.Context) ([]core.Currency, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, identifier, symbol FROM currencies ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("get currencies: %w", err)
	}
	defer rows.Close()

	var currencies []core.Currency
	for rows.Next() {
		var c core.Currency
		if err := rows.Scan(&c.ID, &c.Name, &c.Identifier, &c.Symbol); err != nil {
			return nil, fmt.Errorf("scan currency: %w", err)
		}
		currencies = append(currencies, c)
	}
	return currencies, rows.Err()
}

// CurrencyByIdentifier implements ports.CurrencyReader
func (r *SQLiteRepository) CurrencyByIdentifier(ctx context.Context, identifier string) (core.Currency, error) {
	var c core.Currency
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, identifier, symbol FROM currencies WHERE identifier = ?`,
		strings.ToUpper(strings.TrimSpace(identifier))).
		Scan(&c.ID, &c.Name, &c.Identifier, &c.Symbol)
	if errors.Is(err, sql.ErrNoRows) {
		return c, fmt.Errorf("%w: %s", core.ErrUnknownCurrency, identifier)
	}
	if err != nil {
		return c, fmt.Errorf("get currency: %w", err)
	}
	return c, nil
}

func scanExpenses(rows *sql.Rows) ([]core.Expense, error) {
	defer rows.Close()

	var expenses []core.Expense
	for rows.Next() {
		var (
			e      core.Expense
			issued string
			end    sql.NullString
			repeat sql.NullInt64
			note   sql.NullString
		)
		err := rows.Scan(&e.ID, &issued, &end, &repeat, &e.Price.Cents, &e.InBase.Cents, &note,
			&e.Currency.ID, &e.Currency.Name, &e.Currency.Identifier, &e.Currency.Symbol,
			&e.Category.ID, &e.Category.Name, &e.Category.Slug)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		if e.Issued, err = time.Parse(timeLayout, issued); err != nil {
			return nil, fmt.Errorf("parse issued of expense %d: %w", e.ID, err)
		}
		if end.Valid {
			if e.End, err = time.Parse(timeLayout, end.String); err != nil {
				return nil, fmt.Errorf("parse end of expense %d: %w", e.ID, err)
			}
		}
		e.RepeatMonths = int(repeat.Int64)
		e.Note = note.String
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
