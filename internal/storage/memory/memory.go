package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/gosimple/slug"

	"prorata/internal/core"
)

var defaultCurrencies = []core.Currency{
	{ID: 1, Name: "Euro", Identifier: "EUR", Symbol: "€"},
	{ID: 2, Name: "Dollar", Identifier: "USD", Symbol: "$"},
	{ID: 3, Name: "Franc", Identifier: "CHF", Symbol: "Fr"},
	{ID: 4, Name: "Pound", Identifier: "GBP", Symbol: "£"},
}

// Store keeps records in process memory. Partitions are filtered in memory
// with the same predicates the SQLite store pushes into its queries.
type Store struct {
	mu         sync.Mutex
	currencies []core.Currency
	cats       []core.Category
	items      []core.Expense
	nextCat    int64
	nextItem   int64
}

func New(categories []string) *Store {
	s := &Store{currencies: append([]core.Currency(nil), defaultCurrencies...)}
	for _, name := range dedupe(categories) {
		s.nextCat++
		s.cats = append(s.cats, core.Category{ID: s.nextCat, Name: name, Slug: slug.Make(name)})
	}
	return s
}

// NewFromFiles seeds categories from base/seed_categories.txt, one per line.
func NewFromFiles(base string) *Store {
	cats := readLines(filepath.Join(base, "seed_categories.txt"))
	if len(cats) == 0 {
		cats = []string{"Miscellaneous"}
	}
	return New(cats)
}

func (s *Store) Close() error { return nil }

func (s *Store) AddExpense(_ context.Context, e core.Expense) (int64, error) {
	if err := e.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.category(e.Category.ID); !ok {
		return 0, core.ErrUnknownCategory
	}
	s.nextItem++
	e.ID = s.nextItem
	s.items = append(s.items, e)
	return e.ID, nil
}

func (s *Store) DeleteExpense(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.items {
		if e.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return nil
		}
	}
	return core.ErrExpenseNotFound
}

func (s *Store) GetExpense(_ context.Context, id int64) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.items {
		if e.ID == id {
			return s.resolve(e), nil
		}
	}
	return core.Expense{}, core.ErrExpenseNotFound
}

func (s *Store) ListExpenses(_ context.Context) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Expense, len(s.items))
	for i, e := range s.items {
		out[i] = s.resolve(e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Issued.Before(out[j].Issued) })
	return out, nil
}

func (s *Store) MonthPartition(ctx context.Context, m core.Month) (core.Partition, error) {
	all, err := s.ListExpenses(ctx)
	if err != nil {
		return core.Partition{}, err
	}
	return core.PartitionExpenses(all, m), nil
}

func (s *Store) Categories(_ context.Context) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Category(nil), s.cats...), nil
}

func (s *Store) AddCategory(_ context.Context, c core.Category) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.cats {
		if existing.Slug == c.Slug {
			return core.Category{}, fmt.Errorf("%w: %s", core.ErrDuplicateCategory, c.Name)
		}
	}
	s.nextCat++
	c.ID = s.nextCat
	s.cats = append(s.cats, c)
	return c, nil
}

func (s *Store) RenameCategory(_ context.Context, id int64, name, newSlug string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := -1
	for i, c := range s.cats {
		if c.ID == id {
			idx = i
		} else if c.Slug == newSlug {
			return fmt.Errorf("%w: %s", core.ErrDuplicateCategory, name)
		}
	}
	if idx < 0 {
		return core.ErrUnknownCategory
	}
	s.cats[idx].Name, s.cats[idx].Slug = name, newSlug
	return nil
}

func (s *Store) DeleteCategory(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var inUse int
	for _, e := range s.items {
		if e.Category.ID == id {
			inUse++
		}
	}
	if inUse > 0 {
		return fmt.Errorf("%w (%d)", core.ErrCategoryInUse, inUse)
	}
	for i, c := range s.cats {
		if c.ID == id {
			s.cats = append(s.cats[:i], s.cats[i+1:]...)
			return nil
		}
	}
	return core.ErrUnknownCategory
}

func (s *Store) Currencies(_ context.Context) ([]core.Currency, error) {
	return append([]core.Currency(nil), s.currencies...), nil
}

func (s *Store) CurrencyByIdentifier(_ context.Context, identifier string) (core.Currency, error) {
	id := strings.ToUpper(strings.TrimSpace(identifier))
	for _, c := range s.currencies {
		if c.Identifier == id {
			return c, nil
		}
	}
	return core.Currency{}, fmt.Errorf("%w: %s", core.ErrUnknownCurrency, identifier)
}

// resolve refreshes the category snapshot so renames show up. Caller holds mu.
func (s *Store) resolve(e core.Expense) core.Expense {
	if c, ok := s.category(e.Category.ID); ok {
		e.Category = c
	}
	return e
}

func (s *Store) category(id int64) (core.Category, bool) {
	for _, c := range s.cats {
		if c.ID == id {
			return c, true
		}
	}
	return core.Category{}, false
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return dedupe(out)
}

// dedupe drops blank names and names whose slug is already taken, keeping
// the first spelling.
func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		key := slug.Make(v)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}
