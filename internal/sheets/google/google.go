package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"smartexpense/internal/codec"
	"smartexpense/internal/core"
	"smartexpense/internal/log"
)

// DefaultSheetName is the tab written when none is configured.
const DefaultSheetName = "Expenses"

// Config selects the spreadsheet and how to authenticate against it.
type Config struct {
	SpreadsheetID      string
	SheetName          string
	ServiceAccountFile string
	ServiceAccountJSON string

	// Used when no service account is configured
	OAuthClientJSON string
	OAuthClientFile string
	OAuthTokenFile  string
}

// Exporter mirrors the expense collection into one tab of a spreadsheet.
// Every export rewrites the tab: header row first, then one row per expense.
type Exporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *log.Logger
}

// New creates an Exporter authenticated with Service Account credentials,
// falling back to a saved OAuth user token.
func New(ctx context.Context, cfg Config, logger *log.Logger) (*Exporter, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentSheets)

	var opts []goption.ClientOption
	if !cfg.hasServiceAccount() && cfg.hasOAuthClient() {
		logger.DebugContext(ctx, "Using OAuth user token", "path", cfg.OAuthTokenFile)
		client, err := oauthHTTPClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, goption.WithHTTPClient(client))
	} else {
		creds, err := credentialsJSON(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		opts = append(opts,
			goption.WithCredentialsJSON(creds),
			goption.WithScopes(gsheet.SpreadsheetsScope))
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return NewWithService(svc, spreadsheetID, cfg.SheetName, logger), nil
}

// NewWithService wraps an already configured Sheets service.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetName string, logger *log.Logger) *Exporter {
	if strings.TrimSpace(sheetName) == "" {
		sheetName = DefaultSheetName
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Exporter{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		logger:        logger.WithComponent(log.ComponentSheets),
	}
}

// credentialsJSON resolves inline JSON, then a file, then GOOGLE_APPLICATION_CREDENTIALS.
func credentialsJSON(ctx context.Context, cfg Config, logger *log.Logger) ([]byte, error) {
	inline := strings.TrimSpace(cfg.ServiceAccountJSON)
	file := strings.TrimSpace(cfg.ServiceAccountFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inline != "":
		logger.DebugContext(ctx, "Using inline JSON credentials", "json_length", len(inline))
		return []byte(inline), nil
	case file != "":
		logger.DebugContext(ctx, "Reading credentials from file", "path", file)
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// Name identifies the export target.
func (x *Exporter) Name() string {
	return fmt.Sprintf("sheets:%s/%s", x.spreadsheetID, x.sheetName)
}

// Export implements services.Exporter.
func (x *Exporter) Export(ctx context.Context, expenses []core.Expense) error {
	if x.svc == nil {
		return errors.New("sheets service not initialized")
	}

	rng := x.sheetRange()
	if _, err := x.svc.Spreadsheets.Values.Clear(x.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", rng, err)
	}

	vr := &gsheet.ValueRange{Values: rows(expenses)}
	if _, err := x.svc.Spreadsheets.Values.Update(x.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}

	x.logger.InfoContext(ctx, "Sheet exported", log.FieldTarget, x.Name(), log.FieldCount, len(expenses))
	return nil
}

// ReadAll reads the tab back. Rows that do not form a valid expense are
// counted in skipped, like malformed lines in the flat file.
func (x *Exporter) ReadAll(ctx context.Context) ([]core.Expense, int, error) {
	if x.svc == nil {
		return nil, 0, errors.New("sheets service not initialized")
	}
	rng := x.sheetRange()
	resp, err := x.svc.Spreadsheets.Values.Get(x.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, 0, fmt.Errorf("read %s: %w", rng, err)
	}
	expenses, skipped := parseRows(resp.Values)
	return expenses, skipped, nil
}

func (x *Exporter) sheetRange() string {
	return fmt.Sprintf("%s!A:E", x.sheetName)
}

func rows(expenses []core.Expense) [][]any {
	out := make([][]any, 0, len(expenses)+1)
	header := strings.Split(codec.Header, codec.Delimiter)
	hrow := make([]any, len(header))
	for i, h := range header {
		hrow[i] = h
	}
	out = append(out, hrow)
	for _, e := range expenses {
		out = append(out, []any{e.ID, e.Date.String(), e.Amount.InexactFloat64(), e.Category, e.Note})
	}
	return out
}

func parseRows(values [][]any) ([]core.Expense, int) {
	out := make([]core.Expense, 0, len(values))
	skipped := 0
	for i, row := range values {
		cols := toStrings(row)
		if i == 0 && codec.IsHeader(strings.Join(cols, codec.Delimiter)) {
			continue
		}
		if len(cols) < 4 {
			skipped++
			continue
		}
		date, err := core.ParseDate(cols[1])
		if err != nil {
			skipped++
			continue
		}
		amount, err := decimal.NewFromString(cols[2])
		if err != nil {
			skipped++
			continue
		}
		e := core.Expense{ID: cols[0], Date: date, Amount: amount, Category: cols[3]}
		if len(cols) > 4 {
			e.Note = cols[4]
		}
		if e.Validate() != nil {
			skipped++
			continue
		}
		out = append(out, e)
	}
	return out, skipped
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}
