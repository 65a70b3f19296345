package sheets

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"github.com/codeclass-ai/schoolbot/internal/booking"
	"github.com/codeclass-ai/schoolbot/internal/retry"
	"github.com/codeclass-ai/schoolbot/pkg/logging"
)

// Column layout of the audit sheet. Status lives in column G, the note in
// column J.
var headerRow = []interface{}{
	"Дата создания",
	"Дата и время занятия",
	"Имя",
	"Telegram username",
	"Telegram ID",
	"Телефон",
	"Статус",
	"ID события",
	"Ссылка на событие",
	"Примечание",
}

const (
	statusColumn = 6
	noteColumn   = 9
	rowWidth     = 10
)

// Ledger appends booking audit rows to a Google Sheet and rewrites the
// status column when bookings change.
type Ledger struct {
	svc           *gsheets.Service
	spreadsheetID string
	sheetName     string
	retry         retry.Policy
	logger        *logging.Logger

	headerMu   sync.Mutex
	headerDone bool

	now func() time.Time
}

func NewLedger(ctx context.Context, credentialsFile, spreadsheetID, sheetName string, logger *logging.Logger) (*Ledger, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if sheetName == "" {
		sheetName = "Лист1"
	}
	svc, err := gsheets.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(gsheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("sheets: build service: %w", err)
	}
	return &Ledger{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		retry:         retry.Default,
		logger:        logger,
		now:           time.Now,
	}, nil
}

// AppendBooking writes one audit row.
func (l *Ledger) AppendBooking(ctx context.Context, rec booking.LedgerRecord) error {
	if err := l.ensureHeaders(ctx); err != nil {
		return err
	}

	row := []interface{}{
		l.now().Format("02.01.2006 15:04:05"),
		lessonLabel(rec.Start, rec.End),
		rec.ParentName,
		username(rec.Username),
		strconv.FormatInt(rec.TelegramID, 10),
		rec.Phone,
		rec.Status,
		rec.EventRef,
		rec.EventLink,
		"",
	}

	err := l.retry.Do(ctx, func(ctx context.Context) error {
		_, callErr := l.svc.Spreadsheets.Values.Append(
			l.spreadsheetID,
			l.sheetName+"!A:J",
			&gsheets.ValueRange{Values: [][]interface{}{row}},
		).ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
		return callErr
	})
	if err != nil {
		return fmt.Errorf("sheets: append booking row: %w", err)
	}
	l.logger.Info("booking row appended", "event_ref", rec.EventRef, "status", rec.Status)
	return nil
}

// UpdateStatus finds the row with the given event reference and rewrites its
// status and note columns in place.
func (l *Ledger) UpdateStatus(ctx context.Context, eventRef, status string) error {
	var result *gsheets.ValueRange
	err := l.retry.Do(ctx, func(ctx context.Context) error {
		var callErr error
		result, callErr = l.svc.Spreadsheets.Values.Get(l.spreadsheetID, l.sheetName+"!A:J").
			Context(ctx).Do()
		return callErr
	})
	if err != nil {
		return fmt.Errorf("sheets: read ledger: %w", err)
	}

	rowIndex, row := findRowByEventRef(result.Values, eventRef)
	if rowIndex == 0 {
		return fmt.Errorf("sheets: booking %s not found in ledger", eventRef)
	}

	for len(row) < rowWidth {
		row = append(row, "")
	}
	row[statusColumn] = status
	row[noteColumn] = fmt.Sprintf("%s %s", status, l.now().Format("02.01.2006 15:04"))

	rangeRef := fmt.Sprintf("%s!A%d:J%d", l.sheetName, rowIndex, rowIndex)
	err = l.retry.Do(ctx, func(ctx context.Context) error {
		_, callErr := l.svc.Spreadsheets.Values.Update(
			l.spreadsheetID,
			rangeRef,
			&gsheets.ValueRange{Values: [][]interface{}{row}},
		).ValueInputOption("RAW").Context(ctx).Do()
		return callErr
	})
	if err != nil {
		return fmt.Errorf("sheets: update booking status: %w", err)
	}
	l.logger.Info("booking status updated", "event_ref", eventRef, "status", status)
	return nil
}

// ensureHeaders writes the header row on first use of an empty sheet.
// Failures are retried on the next append.
func (l *Ledger) ensureHeaders(ctx context.Context) error {
	l.headerMu.Lock()
	defer l.headerMu.Unlock()
	if l.headerDone {
		return nil
	}

	var result *gsheets.ValueRange
	err := l.retry.Do(ctx, func(ctx context.Context) error {
		var callErr error
		result, callErr = l.svc.Spreadsheets.Values.Get(l.spreadsheetID, l.sheetName+"!A1:J1").
			Context(ctx).Do()
		return callErr
	})
	if err != nil {
		return fmt.Errorf("sheets: read headers: %w", err)
	}
	if len(result.Values) > 0 {
		l.headerDone = true
		return nil
	}

	err = l.retry.Do(ctx, func(ctx context.Context) error {
		_, callErr := l.svc.Spreadsheets.Values.Update(
			l.spreadsheetID,
			l.sheetName+"!A1:J1",
			&gsheets.ValueRange{Values: [][]interface{}{headerRow}},
		).ValueInputOption("RAW").Context(ctx).Do()
		return callErr
	})
	if err != nil {
		return fmt.Errorf("sheets: write headers: %w", err)
	}
	l.logger.Info("ledger headers created", "sheet", l.sheetName)
	l.headerDone = true
	return nil
}

// findRowByEventRef returns the 1-based sheet row holding the reference, or
// zero. The first row is the header.
func findRowByEventRef(values [][]interface{}, eventRef string) (int, []interface{}) {
	for i, row := range values {
		if i == 0 {
			continue
		}
		if len(row) > 7 && fmt.Sprint(row[7]) == eventRef {
			return i + 1, row
		}
	}
	return 0, nil
}

func lessonLabel(start, end time.Time) string {
	return fmt.Sprintf("%s %s - %s",
		start.Format("02.01.2006"), start.Format("15:04"), end.Format("15:04"))
}

func username(u string) string {
	if u == "" {
		return ""
	}
	return "@" + u
}
