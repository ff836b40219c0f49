package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"finmate/internal/core"
	"finmate/internal/log"
	ports "finmate/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Client exports period summaries to a spreadsheet, one sheet per year.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	// base name without year (e.g. "Summary"); the period's year is prefixed.
	sheetBase string
	logger    *log.Logger
	now       func() time.Time
}

// Ensure interface conformance
var _ ports.SummaryExporter = (*Client)(nil)

// Options configures New.
type Options struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON []byte
	Logger          *log.Logger
}

// New creates a Sheets client using service account credentials.
func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if len(opts.CredentialsJSON) == 0 {
		return nil, errors.New("missing service account credentials")
	}
	base := strings.TrimSpace(opts.SheetName)
	if base == "" {
		base = "Summary"
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.FromContext(ctx)
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(opts.CredentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: opts.SpreadsheetID,
		sheetBase:     base,
		logger:        logger.WithComponent(log.ComponentSheets),
		now:           time.Now,
	}, nil
}

// LoadCredentials returns inline JSON credentials if set, otherwise the
// contents of file, falling back to GOOGLE_APPLICATION_CREDENTIALS.
func LoadCredentials(inlineJSON, file string) ([]byte, error) {
	if s := strings.TrimSpace(inlineJSON); s != "" {
		return []byte(s), nil
	}
	file = strings.TrimSpace(file)
	if file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if file == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return data, nil
}

// ExportPeriod writes the summary row for ownerID and s.Period, replacing an
// earlier export of the same pair. The returned reference is the A1 range.
func (c *Client) ExportPeriod(ctx context.Context, ownerID, currency string, s core.PeriodSummary) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if ownerID == "" {
		return "", core.ErrEmptyOwner
	}
	if _, err := core.ParsePeriodKey(s.Period.String()); err != nil {
		return "", err
	}
	sheet := yearPrefixedName(c.sheetBase, s.Period.FirstDay().Year())

	rng := fmt.Sprintf("%s!A:B", sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", rng, err)
	}

	if len(resp.Values) == 0 {
		if err := c.update(ctx, fmt.Sprintf("%s!A1:H1", sheet), ports.Header); err != nil {
			return "", err
		}
		resp.Values = [][]any{ports.Header}
	}

	row := findRow(resp.Values, ownerID, s.Period.String())
	if row == 0 {
		row = len(resp.Values) + 1
	}

	ref := fmt.Sprintf("%s!A%d:H%d", sheet, row, row)
	if err := c.update(ctx, ref, ports.Row(ownerID, currency, s, c.now())); err != nil {
		return "", err
	}

	c.logger.InfoContext(ctx, "Exported period summary",
		log.FieldOwnerID, ownerID,
		log.FieldPeriod, s.Period,
		log.FieldSheetsRef, ref)
	return ref, nil
}

func (c *Client) update(ctx context.Context, rng string, row []any) error {
	vr := &gsheet.ValueRange{Values: [][]any{row}}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", rng, err)
	}
	return nil
}
