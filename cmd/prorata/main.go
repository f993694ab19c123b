package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kingpin"
	"golang.org/x/text/language"

	"prorata/internal/backend"
	"prorata/internal/cli"
	"prorata/internal/core"
	applog "prorata/internal/log"
	"prorata/internal/report"
	"prorata/internal/services"
)

var (
	app = kingpin.New("prorata", "Track expenses and see what each month really costs.")

	cmdTrack      = app.Command("track", "Track a new expense")
	trackPrice    = cmdTrack.Arg("price", "Amount, e.g. 12.50").Required().String()
	trackCategory = cmdTrack.Flag("category", "Category name").Short('c').String()
	trackCurrency = cmdTrack.Flag("currency", "ISO currency code (default: base currency)").Short('C').String()
	trackDate     = cmdTrack.Flag("date", "Issue date, YYYY-MM-DD [HH:MM] (default: now)").Short('d').String()
	trackEnd      = cmdTrack.Flag("until", "Last day the expense covers, YYYY-MM-DD").Short('u').String()
	trackEvery    = cmdTrack.Flag("every", "Repeat every N months").Short('e').Int()
	trackNote     = cmdTrack.Flag("note", "Short note").Short('n').String()

	cmdHistory      = app.Command("history", "List tracked expenses, newest first")
	historyMonth    = cmdHistory.Flag("month", "Only expenses issued in YYYY-MM").String()
	historyCategory = cmdHistory.Flag("category", "Only this category").Short('c').String()
	historyLimit    = cmdHistory.Flag("limit", "Maximum number of expenses").Short('l').Int()

	cmdStats   = app.Command("stats", "Show per-category totals of a month")
	statsMonth = cmdStats.Arg("month", "Month as YYYY-MM (default: current month)").String()
	statsXLSX  = cmdStats.Flag("xlsx", "Also write the report to this file").String()

	cmdYear   = app.Command("year", "Show the totals of every month of a year")
	yearValue = cmdYear.Arg("year", "Year (default: current year)").Int()
	yearXLSX  = cmdYear.Flag("xlsx", "Also write the report to this file").String()

	cmdDelete = app.Command("delete", "Delete an expense")
	deleteID  = cmdDelete.Arg("id", "Expense ID as shown by history").Required().Int64()

	cmdCategories      = app.Command("categories", "Manage categories")
	cmdCategoriesList  = cmdCategories.Command("list", "List categories").Default()
	cmdCategoriesAdd   = cmdCategories.Command("add", "Add a category")
	categoriesAddName  = cmdCategoriesAdd.Arg("name", "Category name").Required().String()
	cmdCategoriesMove  = cmdCategories.Command("rename", "Rename a category")
	categoriesMoveFrom = cmdCategoriesMove.Arg("category", "Current name").Required().String()
	categoriesMoveTo   = cmdCategoriesMove.Arg("name", "New name").Required().String()
	cmdCategoriesDel   = cmdCategories.Command("delete", "Delete an unused category")
	categoriesDelName  = cmdCategoriesDel.Arg("category", "Category name").Required().String()

	cmdCurrencies = app.Command("currencies", "List known currencies")
)

func main() {
	cmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	cli.LoadEnvFile()
	logger := cli.SetupLogger(slog.LevelInfo, applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)
	logger.SetLevel(cfg.Level())

	ctx := context.Background()
	res := cli.InitBackend(ctx, logger, cfg)
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Warn("Cleanup failed", applog.FieldError, err)
		}
	}()

	symbol := cfg.BaseCurrency
	if c, err := res.Store.CurrencyByIdentifier(ctx, cfg.BaseCurrency); err == nil && c.Symbol != "" {
		symbol = c.Symbol
	}
	r := report.NewRenderer(languageFromEnv(), symbol)

	if err := run(ctx, cmd, res, r); err != nil {
		logger.Error("Command failed", "command", cmd, applog.FieldError, err)
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd string, res *backend.BackendResult, r *report.Renderer) error {
	switch cmd {
	case cmdTrack.FullCommand():
		return track(ctx, res.Expenses, r)

	case cmdHistory.FullCommand():
		f := services.HistoryFilter{Category: *historyCategory, Limit: *historyLimit}
		if *historyMonth != "" {
			m, err := core.ParseMonth(*historyMonth)
			if err != nil {
				return err
			}
			f.Month = &m
		}
		expenses, err := res.Expenses.History(ctx, f)
		if err != nil {
			return err
		}
		return r.History(os.Stdout, expenses)

	case cmdStats.FullCommand():
		m := core.MonthOf(time.Now())
		if *statsMonth != "" {
			var err error
			if m, err = core.ParseMonth(*statsMonth); err != nil {
				return err
			}
		}
		o, err := res.Stats.Month(ctx, m)
		if err != nil {
			return err
		}
		if err := r.Month(os.Stdout, o); err != nil {
			return err
		}
		if *statsXLSX != "" {
			return writeXLSX(*statsXLSX, func() ([]byte, error) { return report.MonthXLSX(o) })
		}
		return nil

	case cmdYear.FullCommand():
		year := *yearValue
		if year == 0 {
			year = time.Now().Year()
		}
		months, err := res.Stats.Year(ctx, year)
		if err != nil {
			return err
		}
		if err := r.Year(os.Stdout, months); err != nil {
			return err
		}
		if *yearXLSX != "" {
			return writeXLSX(*yearXLSX, func() ([]byte, error) { return report.YearXLSX(months) })
		}
		return nil

	case cmdDelete.FullCommand():
		if err := res.Expenses.Delete(ctx, *deleteID); err != nil {
			return err
		}
		fmt.Printf("Deleted expense %d\n", *deleteID)
		return nil

	case cmdCategoriesList.FullCommand():
		cats, err := res.Categories.List(ctx)
		if err != nil {
			return err
		}
		for _, c := range cats {
			fmt.Println(c.Name)
		}
		return nil

	case cmdCategoriesAdd.FullCommand():
		c, err := res.Categories.Add(ctx, *categoriesAddName)
		if err != nil {
			return err
		}
		fmt.Printf("Added %s\n", c.Name)
		return nil

	case cmdCategoriesMove.FullCommand():
		c, err := res.Categories.Rename(ctx, *categoriesMoveFrom, *categoriesMoveTo)
		if err != nil {
			return err
		}
		fmt.Printf("Renamed to %s\n", c.Name)
		return nil

	case cmdCategoriesDel.FullCommand():
		if err := res.Categories.Delete(ctx, *categoriesDelName); err != nil {
			if errors.Is(err, core.ErrCategoryInUse) {
				return fmt.Errorf("%w; delete or move its expenses first", err)
			}
			return err
		}
		fmt.Printf("Deleted %s\n", *categoriesDelName)
		return nil

	case cmdCurrencies.FullCommand():
		currencies, err := res.Store.Currencies(ctx)
		if err != nil {
			return err
		}
		for _, c := range currencies {
			fmt.Printf("%s  %-3s %s\n", c.Identifier, c.Symbol, c.Name)
		}
		return nil
	}

	return fmt.Errorf("unknown command %q", cmd)
}

func track(ctx context.Context, expenses *services.ExpenseService, r *report.Renderer) error {
	price, err := core.ParseDecimalToCents(*trackPrice)
	if err != nil {
		return err
	}

	req := services.TrackRequest{
		Price:        price,
		Currency:     *trackCurrency,
		Category:     *trackCategory,
		RepeatMonths: *trackEvery,
		Note:         *trackNote,
	}
	if *trackDate != "" {
		if req.Issued, err = parseTime(*trackDate); err != nil {
			return err
		}
	}
	if *trackEnd != "" {
		if req.End, err = parseTime(*trackEnd); err != nil {
			return err
		}
	}

	e, err := expenses.Track(ctx, req)
	if err != nil {
		return err
	}
	fmt.Printf("That was an expense of %s (#%d)\n", r.Amount(e.InBase.Cents), e.ID)
	return nil
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, strings.TrimSpace(s), time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q: use YYYY-MM-DD or YYYY-MM-DD HH:MM", s)
}

func writeXLSX(path string, build func() ([]byte, error)) error {
	data, err := build()
	if err != nil {
		return fmt.Errorf("build spreadsheet: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	slog.Debug("Spreadsheet written",
		applog.FieldComponent, applog.ComponentReport,
		applog.FieldOperation, applog.OpExport,
		"path", path,
		"bytes", len(data))
	fmt.Printf("Wrote %s\n", path)
	return nil
}

// languageFromEnv maps LANG (e.g. de_CH.UTF-8) to a language tag for number
// formatting, defaulting to English.
func languageFromEnv() language.Tag {
	lang := os.Getenv("LANG")
	if i := strings.IndexAny(lang, ".@"); i >= 0 {
		lang = lang[:i]
	}
	if tag, err := language.Parse(strings.ReplaceAll(lang, "_", "-")); err == nil && lang != "" && lang != "C" && lang != "POSIX" {
		return tag
	}
	return language.English
}
