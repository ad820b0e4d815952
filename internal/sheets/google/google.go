// Package google mirrors records into a Google Sheets worksheet, one row
// per record with the id in column A.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"registros/internal/core"
	"registros/internal/export"
	ports "registros/internal/sheets"
)

var (
	_ ports.Mirror   = (*Client)(nil)
	_ ports.IDLister = (*Client)(nil)
)

const defaultRowIndexTTL = 5 * time.Minute

type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsFile string
	CredentialsJSON string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string

	// rowIndex maps record id to 1-based sheet row. It is reloaded after
	// rowIndexTTL or whenever a delete shifts rows.
	mu          sync.Mutex
	rowIndex    map[int64]int
	nextRow     int
	indexExpiry time.Time
	rowIndexTTL time.Duration
	sheetID     *int64
}

// New builds a client from service account credentials.
func New(ctx context.Context, cfg Config, opts ...goption.ClientOption) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if cfg.SheetName == "" {
		cfg.SheetName = "Registros"
	}

	if len(opts) == 0 {
		creds, err := loadCredentials(cfg)
		if err != nil {
			return nil, err
		}
		opts = []goption.ClientOption{
			goption.WithCredentialsJSON(creds),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets mirror ready", "sheet", cfg.SheetName)
	return &Client{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		sheet:         cfg.SheetName,
		rowIndexTTL:   defaultRowIndexTTL,
	}, nil
}

func loadCredentials(cfg Config) ([]byte, error) {
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		return []byte(cfg.CredentialsJSON), nil
	case cfg.CredentialsFile != "":
		b, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_CREDENTIALS_JSON or GOOGLE_CREDENTIALS_FILE)")
	}
}

// loadIndex reads column A. Caller holds c.mu.
func (c *Client) loadIndex(ctx context.Context) error {
	if c.rowIndex != nil && time.Now().Before(c.indexExpiry) {
		return nil
	}

	rng := fmt.Sprintf("%s!A:A", c.sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read %s: %w", rng, err)
	}

	index := make(map[int64]int, len(resp.Values))
	for i, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimSpace(fmt.Sprint(row[0])), 10, 64)
		if err != nil {
			continue // header or hand-typed row
		}
		index[id] = i + 1
	}

	c.rowIndex = index
	c.nextRow = len(resp.Values) + 1
	if c.nextRow == 1 {
		if err := c.writeHeader(ctx); err != nil {
			return err
		}
		c.nextRow = 2
	}
	c.indexExpiry = time.Now().Add(c.rowIndexTTL)
	return nil
}

func (c *Client) writeHeader(ctx context.Context) error {
	rng := fmt.Sprintf("%s!A1:H1", c.sheet)
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{
		Values: [][]any{toCells(export.Header)},
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	return nil
}

func (c *Client) invalidateIndex() {
	c.rowIndex = nil
	c.indexExpiry = time.Time{}
}

func toCells(row []string) []any {
	out := make([]any, len(row))
	for i, v := range row {
		out[i] = v
	}
	return out
}

func (c *Client) UpsertRecord(ctx context.Context, r core.Record) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.loadIndex(ctx); err != nil {
		return err
	}

	row, exists := c.rowIndex[r.ID]
	if !exists {
		row = c.nextRow
	}
	rng := fmt.Sprintf("%s!A%d:H%d", c.sheet, row, row)
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{
		Values: [][]any{toCells(export.SafeRow(r))},
	}).ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		c.invalidateIndex()
		return fmt.Errorf("update %s: %w", rng, err)
	}

	if !exists {
		c.rowIndex[r.ID] = row
		c.nextRow++
	}
	slog.DebugContext(ctx, "Mirrored registro", "id", r.ID, "row", row)
	return nil
}

func (c *Client) DeleteRecord(ctx context.Context, id int64) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.loadIndex(ctx); err != nil {
		return err
	}
	row, ok := c.rowIndex[id]
	if !ok {
		return nil
	}

	sheetID, err := c.lookupSheetID(ctx)
	if err != nil {
		return err
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(row - 1),
					EndIndex:   int64(row),
				},
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		c.invalidateIndex()
		return fmt.Errorf("delete row %d: %w", row, err)
	}

	// Rows below shifted up.
	c.invalidateIndex()
	slog.DebugContext(ctx, "Removed mirrored registro", "id", id, "row", row)
	return nil
}

func (c *Client) lookupSheetID(ctx context.Context) (int64, error) {
	if c.sheetID != nil {
		return *c.sheetID, nil
	}
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read spreadsheet: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == c.sheet {
			id := s.Properties.SheetId
			c.sheetID = &id
			return id, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found", c.sheet)
}

func (c *Client) RecordIDs(ctx context.Context) ([]int64, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.invalidateIndex()
	if err := c.loadIndex(ctx); err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(c.rowIndex))
	for id := range c.rowIndex {
		ids = append(ids, id)
	}
	return ids, nil
}
