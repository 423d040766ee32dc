package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/shopspring/decimal"

	"smartexpense/internal/core"
	"smartexpense/internal/services"
)

// FilterFlags narrows the expenses a command works on.
type FilterFlags struct {
	Category string `help:"Only expenses whose category contains this text." short:"c"`
	From     string `help:"Earliest date, inclusive (yyyy-mm-dd)."`
	To       string `help:"Latest date, inclusive (yyyy-mm-dd)."`
	Search   string `help:"Text matched against every column." short:"s"`
}

func (f FilterFlags) query() (services.Query, error) {
	q := services.Query{Category: f.Category, Text: f.Search}
	if f.From != "" {
		d, err := core.ParseDate(f.From)
		if err != nil {
			return q, fmt.Errorf("--from: %w", err)
		}
		q.From = &d
	}
	if f.To != "" {
		d, err := core.ParseDate(f.To)
		if err != nil {
			return q, fmt.Errorf("--to: %w", err)
		}
		q.To = &d
	}
	return q, nil
}

type AddCmd struct {
	Amount   string `arg:"" help:"Amount with '.' or ',' as decimal separator. Refunds are negative and follow --, as in: add -- -3 refund."`
	Category string `arg:"" help:"Category."`
	Note     string `arg:"" optional:"" help:"Free-text note."`
	Date     string `help:"Date (yyyy-mm-dd), today when omitted." short:"d"`
}

func (cmd *AddCmd) Run(kctx *kong.Context, s *Session) error {
	ctx := context.Background()

	f, err := core.ParseFields(cmd.Category, cmd.Amount, cmd.Date, cmd.Note, s.Now())
	if err != nil {
		return err
	}

	m, err := s.Manager(ctx)
	if err != nil {
		return err
	}

	id, err := m.Add(ctx, f)
	if err != nil {
		return err
	}

	printSuccess(kctx.Stdout, fmt.Sprintf("Added expense %s", id))
	return nil
}

type ListCmd struct {
	FilterFlags `embed:""`
	Limit       int `help:"Show only the last N matches." short:"n"`
}

func (cmd *ListCmd) Run(kctx *kong.Context, s *Session) error {
	q, err := cmd.query()
	if err != nil {
		return err
	}

	m, err := s.Manager(context.Background())
	if err != nil {
		return err
	}

	items := m.Find(q)
	if cmd.Limit > 0 && len(items) > cmd.Limit {
		items = items[len(items)-cmd.Limit:]
	}
	if len(items) == 0 {
		printInfof(kctx.Stdout, "No expenses found")
		return nil
	}

	rows := make([][]string, 0, len(items))
	for _, e := range items {
		rows = append(rows, []string{e.ID, e.Date.String(), core.FormatAmount(e.Amount), e.Category, e.Note})
	}
	renderTable(kctx.Stdout, []string{"ID", "DATE", "AMOUNT", "CATEGORY", "NOTE"}, rows, 2)
	printInfof(kctx.Stdout, "%d expense(s), total %s", len(items), core.FormatAmount(sum(items)))
	return nil
}

type ShowCmd struct {
	ID string `arg:"" help:"Expense id."`
}

func (cmd *ShowCmd) Run(kctx *kong.Context, s *Session) error {
	m, err := s.Manager(context.Background())
	if err != nil {
		return err
	}

	e, ok := m.Get(cmd.ID)
	if !ok {
		return notFound(kctx.Stderr, cmd.ID)
	}

	printField(kctx.Stdout, "ID", e.ID)
	printField(kctx.Stdout, "Date", e.Date.String())
	printField(kctx.Stdout, "Amount", core.FormatAmount(e.Amount))
	printField(kctx.Stdout, "Category", e.Category)
	printField(kctx.Stdout, "Note", e.Note)
	return nil
}

type EditCmd struct {
	ID        string `arg:"" help:"Expense id."`
	Amount    string `help:"New amount, negative for refunds (--amount -3)." short:"a"`
	Category  string `help:"New category." short:"c"`
	Date      string `help:"New date (yyyy-mm-dd)." short:"d"`
	Note      string `help:"New note." short:"n"`
	ClearNote bool   `help:"Remove the note."`
}

func (cmd *EditCmd) Run(kctx *kong.Context, s *Session) error {
	if cmd.Amount == "" && cmd.Category == "" && cmd.Date == "" && cmd.Note == "" && !cmd.ClearNote {
		return errors.New("nothing to change: pass --amount, --category, --date, --note or --clear-note")
	}

	ctx := context.Background()
	m, err := s.Manager(ctx)
	if err != nil {
		return err
	}

	cur, ok := m.Get(cmd.ID)
	if !ok {
		return notFound(kctx.Stderr, cmd.ID)
	}

	f, err := cmd.apply(cur.Fields())
	if err != nil {
		return err
	}

	found, err := m.Update(ctx, cmd.ID, f)
	if err != nil {
		return err
	}
	if !found {
		return notFound(kctx.Stderr, cmd.ID)
	}

	printSuccess(kctx.Stdout, fmt.Sprintf("Updated expense %s", cmd.ID))
	return nil
}

// apply validates only the flags that were given; other fields keep their
// stored values, an empty category included.
func (cmd *EditCmd) apply(f core.Fields) (core.Fields, error) {
	var err error
	if cmd.Category != "" {
		if f.Category = strings.TrimSpace(cmd.Category); f.Category == "" {
			return f, core.ErrEmptyCategory
		}
	}
	if cmd.Amount != "" {
		if f.Amount, err = core.ParseAmount(cmd.Amount); err != nil {
			return f, err
		}
	}
	if cmd.Date != "" {
		if f.Date, err = core.ParseDate(cmd.Date); err != nil {
			return f, err
		}
	}
	if cmd.Note != "" {
		f.Note = strings.TrimSpace(cmd.Note)
	}
	if cmd.ClearNote {
		f.Note = ""
	}
	return f, nil
}

type RmCmd struct {
	ID  string `arg:"" help:"Expense id."`
	Yes bool   `help:"Remove without asking for confirmation." short:"y"`
}

func (cmd *RmCmd) Run(kctx *kong.Context, s *Session) error {
	ctx := context.Background()
	m, err := s.Manager(ctx)
	if err != nil {
		return err
	}

	e, ok := m.Get(cmd.ID)
	if !ok {
		return notFound(kctx.Stderr, cmd.ID)
	}

	if !cmd.Yes {
		question := fmt.Sprintf("Remove %s %s %s?", e.Date, core.FormatAmount(e.Amount), e.Category)
		confirmed, err := s.Confirm(question)
		if err != nil {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		if !confirmed {
			printError(kctx.Stderr, "not removed, pass --yes to skip confirmation")
			return NewCommandError(1)
		}
	}

	removed, err := m.Remove(ctx, cmd.ID)
	if err != nil {
		return err
	}
	if !removed {
		return notFound(kctx.Stderr, cmd.ID)
	}

	printSuccess(kctx.Stdout, fmt.Sprintf("Removed expense %s", cmd.ID))
	return nil
}

type TotalCmd struct {
	FilterFlags `embed:""`
}

func (cmd *TotalCmd) Run(kctx *kong.Context, s *Session) error {
	q, err := cmd.query()
	if err != nil {
		return err
	}

	m, err := s.Manager(context.Background())
	if err != nil {
		return err
	}

	total := m.Total()
	if q != (services.Query{}) {
		total = sum(m.Find(q))
	}
	_, _ = fmt.Fprintln(kctx.Stdout, core.FormatAmount(total))
	return nil
}

type SummaryCmd struct{}

func (cmd *SummaryCmd) Run(kctx *kong.Context, s *Session) error {
	m, err := s.Manager(context.Background())
	if err != nil {
		return err
	}

	months := m.MonthlySummary()
	if len(months) == 0 {
		printInfof(kctx.Stdout, "No expenses found")
		return nil
	}

	rows := make([][]string, 0, len(months))
	for _, mt := range months {
		rows = append(rows, []string{mt.Month, core.FormatAmount(mt.Total)})
	}
	renderTable(kctx.Stdout, []string{"MONTH", "TOTAL"}, rows, 1)
	printInfof(kctx.Stdout, "Total %s", core.FormatAmount(m.Total()))
	return nil
}

type CategoriesCmd struct{}

func (cmd *CategoriesCmd) Run(kctx *kong.Context, s *Session) error {
	m, err := s.Manager(context.Background())
	if err != nil {
		return err
	}
	for _, c := range m.Categories() {
		_, _ = fmt.Fprintln(kctx.Stdout, c)
	}
	return nil
}

func notFound(w io.Writer, id string) error {
	printError(w, fmt.Sprintf("expense %s not found", id))
	return NewCommandError(1)
}

func pick(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

func sum(items []core.Expense) decimal.Decimal {
	total := decimal.Zero
	for _, e := range items {
		total = total.Add(e.Amount)
	}
	return total
}
