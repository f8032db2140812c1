// Package sheets stores the tables as tabs of a Google spreadsheet.
//
// The Sheets API has no conditional writes. Guarded updates and deletes
// re-read the target row right before writing, which narrows the race
// window to one round trip but does not close it.
package sheets

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/cp25sy5-modjot/ledger-service/internal/ports"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

var updatedRowRe = regexp.MustCompile(`![A-Z]+(\d+)`)

// NewService authenticates with a service account key.
func NewService(ctx context.Context, credentialsJSON []byte) (*sheets.Service, error) {
	srv, err := sheets.NewService(ctx,
		option.WithCredentialsJSON(credentialsJSON),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets client: %w", err)
	}
	return srv, nil
}

type Table struct {
	srv           *sheets.Service
	spreadsheetID string
	title         string

	mu      sync.Mutex
	sheetID *int64
}

func New(srv *sheets.Service, spreadsheetID, title string) *Table {
	return &Table{srv: srv, spreadsheetID: spreadsheetID, title: title}
}

func (t *Table) Name() string { return t.title }

// a1 quotes the tab title and appends an optional range.
func (t *Table) a1(rng string) string {
	q := "'" + strings.ReplaceAll(t.title, "'", "''") + "'"
	if rng == "" {
		return q
	}
	return q + "!" + rng
}

func (t *Table) get(ctx context.Context, rng string) ([][]string, error) {
	vr, err := t.srv.Spreadsheets.Values.Get(t.spreadsheetID, t.a1(rng)).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("sheets get %s: %w", t.a1(rng), err)
	}
	return toStrings(vr.Values), nil
}

func (t *Table) Header(ctx context.Context) ([]string, error) {
	rows, err := t.get(ctx, "1:1")
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (t *Table) ReadAll(ctx context.Context) ([][]string, error) {
	return t.get(ctx, "")
}

func (t *Table) Append(ctx context.Context, row []string) (int, error) {
	resp, err := t.srv.Spreadsheets.Values.Append(t.spreadsheetID, t.a1("A1"), valueRange(row)).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return 0, fmt.Errorf("sheets append %s: %w", t.title, err)
	}
	if resp.Updates == nil {
		return 0, fmt.Errorf("sheets append %s: no update range in response", t.title)
	}

	m := updatedRowRe.FindStringSubmatch(resp.Updates.UpdatedRange)
	if m == nil {
		return 0, fmt.Errorf("sheets append %s: unexpected range %q", t.title, resp.Updates.UpdatedRange)
	}
	n, _ := strconv.Atoi(m[1])
	return n - 1, nil
}

func (t *Table) Update(ctx context.Context, pos int, expect, row []string) error {
	rng, err := t.guard(ctx, pos, expect)
	if err != nil {
		return err
	}

	_, err = t.srv.Spreadsheets.Values.Update(t.spreadsheetID, t.a1(rng), valueRange(row)).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("sheets update %s: %w", t.a1(rng), err)
	}
	return nil
}

func (t *Table) Delete(ctx context.Context, pos int, expect []string) error {
	if _, err := t.guard(ctx, pos, expect); err != nil {
		return err
	}
	id, err := t.tabID(ctx)
	if err != nil {
		return err
	}

	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			DeleteDimension: &sheets.DeleteDimensionRequest{
				Range: &sheets.DimensionRange{
					SheetId:    id,
					Dimension:  "ROWS",
					StartIndex: int64(pos),
					EndIndex:   int64(pos + 1),
				},
			},
		}},
	}
	if _, err := t.srv.Spreadsheets.BatchUpdate(t.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("sheets delete %s row %d: %w", t.title, pos+1, err)
	}
	return nil
}

// guard reads the row at pos and fails with ports.ErrRowChanged when it does
// not hold expect. It returns the A1 range of the row.
func (t *Table) guard(ctx context.Context, pos int, expect []string) (string, error) {
	if pos <= 0 {
		return "", fmt.Errorf("%s: position %d is not a data row", t.title, pos)
	}
	rng := fmt.Sprintf("A%d:%d", pos+1, pos+1)

	rows, err := t.get(ctx, rng)
	if err != nil {
		return "", err
	}
	var current []string
	if len(rows) > 0 {
		current = rows[0]
	}
	if len(current) == 0 || !ports.SameRow(current, expect) {
		return "", ports.ErrRowChanged
	}
	return rng, nil
}

// tabID looks up the numeric id of the tab, which row deletion needs.
func (t *Table) tabID(ctx context.Context) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sheetID != nil {
		return *t.sheetID, nil
	}

	ss, err := t.srv.Spreadsheets.Get(t.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("sheets metadata: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == t.title {
			id := s.Properties.SheetId
			t.sheetID = &id
			return id, nil
		}
	}
	return 0, fmt.Errorf("spreadsheet has no tab %q", t.title)
}

func valueRange(row []string) *sheets.ValueRange {
	values := make([]interface{}, len(row))
	for i, c := range row {
		values[i] = c
	}
	return &sheets.ValueRange{MajorDimension: "ROWS", Values: [][]interface{}{values}}
}

func toStrings(values [][]interface{}) [][]string {
	out := make([][]string, len(values))
	for i, row := range values {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = fmt.Sprint(v)
		}
		out[i] = cells
	}
	return out
}
