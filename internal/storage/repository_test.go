package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"prorata/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "nested", "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedRefs(t *testing.T, repo *SQLiteRepository) (core.Currency, core.Category) {
	t.Helper()
	ctx := context.Background()
	eur, err := repo.CurrencyByIdentifier(ctx, "eur")
	if err != nil {
		t.Fatalf("CurrencyByIdentifier() error = %v", err)
	}
	cats, err := repo.Categories(ctx)
	if err != nil || len(cats) != 1 {
		t.Fatalf("Categories() = %v, %v", cats, err)
	}
	return eur, cats[0]
}

func TestConnectionPragmas(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	tests := []struct {
		pragma string
		want   string
	}{
		{"journal_mode", "wal"},
		{"foreign_keys", "1"},
		{"busy_timeout", "5000"},
	}
	for _, tt := range tests {
		t.Run(tt.pragma, func(t *testing.T) {
			var got string
			if err := repo.db.QueryRowContext(ctx, "PRAGMA "+tt.pragma).Scan(&got); err != nil {
				t.Fatalf("PRAGMA %s error = %v", tt.pragma, err)
			}
			if got != tt.want {
				t.Errorf("PRAGMA %s = %q, want %q", tt.pragma, got, tt.want)
			}
		})
	}
}

func TestSeedData(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	currencies, err := repo.Currencies(ctx)
	if err != nil {
		t.Fatalf("Currencies() error = %v", err)
	}
	want := []string{"EUR", "USD", "CHF", "GBP"}
	if len(currencies) != len(want) {
		t.Fatalf("Currencies() = %v", currencies)
	}
	for i, c := range currencies {
		if c.Identifier != want[i] {
			t.Errorf("currency %d = %s, want %s", i, c.Identifier, want[i])
		}
	}

	_, cat := seedRefs(t, repo)
	if cat.Name != "Miscellaneous" || cat.Slug != "miscellaneous" {
		t.Errorf("default category = %+v", cat)
	}

	if _, err := repo.CurrencyByIdentifier(ctx, "XYZ"); !errors.Is(err, core.ErrUnknownCurrency) {
		t.Errorf("expected ErrUnknownCurrency, got %v", err)
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twice.db")
	for i := 0; i < 2; i++ {
		repo, err := NewSQLiteRepository(path)
		if err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
		cats, err := repo.Categories(context.Background())
		repo.Close()
		if err != nil || len(cats) != 1 {
			t.Fatalf("open %d: categories = %v, %v", i, cats, err)
		}
	}
}

func TestExpenseRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	eur, cat := seedRefs(t, repo)

	in := core.Expense{
		Issued:       time.Date(2023, 1, 20, 14, 5, 9, 0, time.UTC),
		End:          time.Date(2023, 2, 9, 0, 0, 0, 0, time.UTC),
		RepeatMonths: 3,
		Price:        core.Money{Cents: 3100},
		InBase:       core.Money{Cents: 3100},
		Note:         "insurance",
		Currency:     eur,
		Category:     cat,
	}
	id, err := repo.AddExpense(ctx, in)
	if err != nil {
		t.Fatalf("AddExpense() error = %v", err)
	}

	got, err := repo.GetExpense(ctx, id)
	if err != nil {
		t.Fatalf("GetExpense() error = %v", err)
	}
	if !got.Issued.Equal(in.Issued) || !got.End.Equal(in.End) {
		t.Errorf("dates = %v..%v, want %v..%v", got.Issued, got.End, in.Issued, in.End)
	}
	if got.RepeatMonths != 3 || got.InBase.Cents != 3100 || got.Note != "insurance" {
		t.Errorf("unexpected expense %+v", got)
	}
	if got.Currency.Symbol != "€" || got.Category.Name != "Miscellaneous" {
		t.Errorf("unexpected joins %+v %+v", got.Currency, got.Category)
	}

	if err := repo.DeleteExpense(ctx, id); err != nil {
		t.Fatalf("DeleteExpense() error = %v", err)
	}
	if _, err := repo.GetExpense(ctx, id); !errors.Is(err, core.ErrExpenseNotFound) {
		t.Fatalf("expected ErrExpenseNotFound, got %v", err)
	}
	if err := repo.DeleteExpense(ctx, id); !errors.Is(err, core.ErrExpenseNotFound) {
		t.Fatalf("expected ErrExpenseNotFound on second delete, got %v", err)
	}
}

func TestMonthPartition(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	eur, cat := seedRefs(t, repo)

	add := func(note string, issued, end time.Time, repeat int) {
		t.Helper()
		_, err := repo.AddExpense(ctx, core.Expense{
			Issued: issued, End: end, RepeatMonths: repeat,
			Price: core.Money{Cents: 100}, InBase: core.Money{Cents: 100},
			Note: note, Currency: eur, Category: cat,
		})
		if err != nil {
			t.Fatalf("AddExpense(%s) error = %v", note, err)
		}
	}
	d := func(y int, m time.Month, day, h int) time.Time { return time.Date(y, m, day, h, 0, 0, 0, time.UTC) }

	add("simple-in", d(2023, 2, 28, 22), time.Time{}, 0)
	add("simple-first", d(2023, 2, 1, 0), time.Time{}, 0)
	add("simple-out", d(2023, 3, 1, 0), time.Time{}, 0)
	add("bounded-in", d(2023, 1, 20, 0), d(2023, 2, 9, 0), 0)
	add("bounded-touching", d(2023, 1, 2, 0), d(2023, 2, 1, 0), 0)
	add("bounded-out", d(2022, 12, 1, 0), d(2023, 1, 31, 23), 0)
	add("repeating-future", d(2024, 1, 1, 0), time.Time{}, 1)
	add("repeating-bounded", d(2022, 1, 1, 0), d(2022, 2, 1, 0), 6)

	p, err := repo.MonthPartition(ctx, core.Month{Year: 2023, Month: time.February})
	if err != nil {
		t.Fatalf("MonthPartition() error = %v", err)
	}

	notes := func(es []core.Expense) []string {
		var out []string
		for _, e := range es {
			out = append(out, e.Note)
		}
		return out
	}
	check := func(name string, got []core.Expense, want ...string) {
		t.Helper()
		g := notes(got)
		if len(g) != len(want) {
			t.Fatalf("%s = %v, want %v", name, g, want)
		}
		for i := range want {
			if g[i] != want[i] {
				t.Fatalf("%s = %v, want %v", name, g, want)
			}
		}
	}
	check("simple", p.Simple, "simple-first", "simple-in")
	check("bounded", p.Bounded, "bounded-touching", "bounded-in")
	check("repeating", p.Repeating, "repeating-bounded", "repeating-future")
}

func TestCategoryLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	eur, _ := seedRefs(t, repo)

	food, err := repo.AddCategory(ctx, core.Category{Name: "Food", Slug: "food"})
	if err != nil || food.ID == 0 {
		t.Fatalf("AddCategory() = %+v, %v", food, err)
	}
	if _, err := repo.AddCategory(ctx, core.Category{Name: "food", Slug: "food"}); !errors.Is(err, core.ErrDuplicateCategory) {
		t.Fatalf("expected ErrDuplicateCategory, got %v", err)
	}
	if err := repo.RenameCategory(ctx, food.ID, "Groceries", "groceries"); err != nil {
		t.Fatalf("RenameCategory() error = %v", err)
	}
	if err := repo.RenameCategory(ctx, 999, "Nope", "nope"); !errors.Is(err, core.ErrUnknownCategory) {
		t.Fatalf("expected ErrUnknownCategory, got %v", err)
	}

	id, err := repo.AddExpense(ctx, core.Expense{
		Issued: time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC),
		Price:  core.Money{Cents: 1}, InBase: core.Money{Cents: 1},
		Currency: eur, Category: food,
	})
	if err != nil {
		t.Fatalf("AddExpense() error = %v", err)
	}
	if err := repo.DeleteCategory(ctx, food.ID); !errors.Is(err, core.ErrCategoryInUse) {
		t.Fatalf("expected ErrCategoryInUse, got %v", err)
	}
	if err := repo.DeleteExpense(ctx, id); err != nil {
		t.Fatalf("DeleteExpense() error = %v", err)
	}
	if err := repo.DeleteCategory(ctx, food.ID); err != nil {
		t.Fatalf("DeleteCategory() error = %v", err)
	}
	if err := repo.DeleteCategory(ctx, food.ID); !errors.Is(err, core.ErrUnknownCategory) {
		t.Fatalf("expected ErrUnknownCategory, got %v", err)
	}

	cats, _ := repo.Categories(ctx)
	if len(cats) != 1 {
		t.Fatalf("Categories() = %v", cats)
	}
}
