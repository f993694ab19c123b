package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/gosimple/slug"

	"prorata/internal/core"
	applog "prorata/internal/log"
	"prorata/internal/ports"
)

// DefaultCategory receives expenses tracked without a category.
const DefaultCategory = "Miscellaneous"

// maxSuggestionDistance bounds the edit distance of "did you mean" hints.
const maxSuggestionDistance = 3

// CategoryService manages categories. Categories are matched by slug, so
// "Eating out", "eating-out" and "EATING OUT" name the same category.
type CategoryService struct {
	store ports.CategoryStore
}

func NewCategoryService(store ports.CategoryStore) *CategoryService {
	return &CategoryService{store: store}
}

func (s *CategoryService) List(ctx context.Context) ([]core.Category, error) {
	return s.store.Categories(ctx)
}

func (s *CategoryService) Add(ctx context.Context, name string) (core.Category, error) {
	c := core.Category{Name: strings.TrimSpace(name)}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	c.Slug = slug.Make(c.Name)

	created, err := s.store.AddCategory(ctx, c)
	if err != nil {
		return core.Category{}, err
	}
	slog.InfoContext(ctx, "Added category",
		applog.FieldComponent, applog.ComponentExpense,
		applog.FieldOperation, applog.OpCreate,
		applog.FieldCategoryID, created.ID,
		applog.FieldCategory, created.Name)
	return created, nil
}

func (s *CategoryService) Rename(ctx context.Context, ref, newName string) (core.Category, error) {
	c, err := s.Resolve(ctx, ref)
	if err != nil {
		return core.Category{}, err
	}
	renamed := core.Category{ID: c.ID, Name: strings.TrimSpace(newName)}
	if err := renamed.Validate(); err != nil {
		return core.Category{}, err
	}
	renamed.Slug = slug.Make(renamed.Name)

	if err := s.store.RenameCategory(ctx, c.ID, renamed.Name, renamed.Slug); err != nil {
		return core.Category{}, err
	}
	slog.InfoContext(ctx, "Renamed category",
		applog.FieldComponent, applog.ComponentExpense,
		applog.FieldOperation, applog.OpUpdate,
		applog.FieldCategoryID, c.ID,
		"from", c.Name,
		"to", renamed.Name)
	return renamed, nil
}

// Delete removes a category. Categories still referenced by expenses are kept
// and core.ErrCategoryInUse is returned.
func (s *CategoryService) Delete(ctx context.Context, ref string) error {
	c, err := s.Resolve(ctx, ref)
	if err != nil {
		return err
	}
	if err := s.store.DeleteCategory(ctx, c.ID); err != nil {
		return fmt.Errorf("delete category %q: %w", c.Name, err)
	}
	slog.InfoContext(ctx, "Deleted category",
		applog.FieldComponent, applog.ComponentExpense,
		applog.FieldOperation, applog.OpDelete,
		applog.FieldCategoryID, c.ID,
		applog.FieldCategory, c.Name)
	return nil
}

// Resolve finds a category by numeric ID, name or slug. An empty ref resolves
// to DefaultCategory. Misses carry the closest existing name when one is near.
func (s *CategoryService) Resolve(ctx context.Context, ref string) (core.Category, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		ref = DefaultCategory
	}

	cats, err := s.store.Categories(ctx)
	if err != nil {
		return core.Category{}, fmt.Errorf("list categories: %w", err)
	}

	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		for _, c := range cats {
			if c.ID == id {
				return c, nil
			}
		}
	}

	want := slug.Make(ref)
	for _, c := range cats {
		if c.Slug == want {
			return c, nil
		}
	}

	if hint, ok := suggest(want, cats); ok {
		return core.Category{}, fmt.Errorf("%w: %q (did you mean %q?)", core.ErrUnknownCategory, ref, hint)
	}
	return core.Category{}, fmt.Errorf("%w: %q", core.ErrUnknownCategory, ref)
}

func suggest(want string, cats []core.Category) (string, bool) {
	best, bestDist := "", maxSuggestionDistance+1
	for _, c := range cats {
		if d := levenshtein.ComputeDistance(want, c.Slug); d < bestDist {
			best, bestDist = c.Name, d
		}
	}
	return best, best != ""
}
