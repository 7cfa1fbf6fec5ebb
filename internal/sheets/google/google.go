package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"kakeibo/internal/core"
	"kakeibo/internal/log"
	ports "kakeibo/internal/sheets"
)

// valuesAPI is the slice of the Sheets values API the exporter needs.
type valuesAPI interface {
	Get(ctx context.Context, spreadsheetID, rng string) ([][]any, error)
	Update(ctx context.Context, spreadsheetID, rng string, values [][]any) error
}

type serviceValues struct {
	svc *gsheet.Service
}

func (s serviceValues) Get(ctx context.Context, spreadsheetID, rng string) ([][]any, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (s serviceValues) Update(ctx context.Context, spreadsheetID, rng string, values [][]any) error {
	_, err := s.svc.Spreadsheets.Values.Update(spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	return err
}

// Options configure the exporter. Credentials come from JSON, a file, or
// GOOGLE_APPLICATION_CREDENTIALS, in that order.
type Options struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

// Exporter upserts one row per user month in a yearly snapshot sheet such as
// "2024 Snapshots".
type Exporter struct {
	values        valuesAPI
	spreadsheetID string
	sheetBase     string
	logger        *log.Logger

	// serializes read-modify-write of the sheet within this process
	mu sync.Mutex
}

var _ ports.SnapshotExporter = (*Exporter)(nil)

func New(ctx context.Context, opts Options, logger *log.Logger) (*Exporter, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentSheets)

	svc, err := newSheetsService(ctx, opts, logger)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newExporter(serviceValues{svc: svc}, opts, logger), nil
}

func newExporter(values valuesAPI, opts Options, logger *log.Logger) *Exporter {
	base := strings.TrimSpace(opts.SheetName)
	if base == "" {
		base = "Snapshots"
	}
	return &Exporter{
		values:        values,
		spreadsheetID: opts.SpreadsheetID,
		sheetBase:     base,
		logger:        logger,
	}
}

// newSheetsService initializes a Sheets service with service account credentials.
func newSheetsService(ctx context.Context, opts Options, logger *log.Logger) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(opts.CredentialsJSON)
	serviceAccountFile := strings.TrimSpace(opts.CredentialsFile)
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		logger.DebugContext(ctx, "Using inline service account credentials")
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		logger.DebugContext(ctx, "Reading service account credentials", "path", serviceAccountFile)
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// ExportSnapshot writes s over its existing row, or below the last row when
// the month has not been exported yet. An empty sheet gets the header first.
func (e *Exporter) ExportSnapshot(ctx context.Context, s core.MonthSnapshot) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	sheet := yearPrefixedName(e.sheetBase, s.Year)
	rows, err := e.values.Get(ctx, e.spreadsheetID, fmt.Sprintf("%s!A:H", sheet))
	if err != nil {
		return fmt.Errorf("read %s: %w", sheet, err)
	}

	if len(rows) == 0 {
		if err := e.values.Update(ctx, e.spreadsheetID, fmt.Sprintf("%s!A1:H1", sheet), [][]any{ports.Header}); err != nil {
			return fmt.Errorf("write header in %s: %w", sheet, err)
		}
		rows = [][]any{ports.Header}
	}

	target := len(rows) + 1
	for i, row := range rows {
		if ports.Matches(row, s.UserID, s.Year, s.Month) {
			target = i + 1
			break
		}
	}

	rng := fmt.Sprintf("%s!A%d:H%d", sheet, target, target)
	if err := e.values.Update(ctx, e.spreadsheetID, rng, [][]any{ports.Row(s)}); err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}

	e.logger.InfoContext(ctx, "Snapshot exported",
		log.FieldUserID, s.UserID,
		log.FieldYear, s.Year,
		log.FieldMonth, s.Month,
		"range", rng)
	return nil
}

// ReadSnapshots returns every parsable snapshot row of a year. Rows that do
// not parse, the header included, are skipped.
func (e *Exporter) ReadSnapshots(ctx context.Context, year int) ([]core.MonthSnapshot, error) {
	sheet := yearPrefixedName(e.sheetBase, year)
	rows, err := e.values.Get(ctx, e.spreadsheetID, fmt.Sprintf("%s!A:H", sheet))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", sheet, err)
	}
	var out []core.MonthSnapshot
	for _, row := range rows {
		if s, err := ports.ParseRow(row); err == nil {
			out = append(out, s)
		}
	}
	return out, nil
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
