// Package rowsource abstracts the external accounts-receivable database the
// generator pulls installment rows from. The query text is user-supplied and
// treated as opaque; this package only sanitizes it enough to wrap it in the
// generator's own date-window predicate and ordering.
package rowsource

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	domainErrors "github.com/rafaelcosta/dunning/internal/domain/errors"
	"github.com/google/uuid"
)

// Row is a single result row keyed by source-defined column name. Column
// casing is driver-dependent; consumers must resolve names case-insensitively.
type Row map[string]any

// Source executes a query against the accounts-receivable database.
type Source interface {
	Query(ctx context.Context, sqlText string, args ...any) ([]Row, error)
}

// SavedQuery is an operator-saved base query. The newest one replaces the
// built-in default as the generator's row selection.
type SavedQuery struct {
	ID        uuid.UUID
	Name      string
	QueryText string
	CreatedAt time.Time
}

// QueryStore persists saved queries.
type QueryStore interface {
	Save(ctx context.Context, q *SavedQuery) error
	List(ctx context.Context) ([]*SavedQuery, error)
	Latest(ctx context.Context) (*SavedQuery, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

var (
	trailingSemicolons = regexp.MustCompile(`;+\s*$`)
	trailingOrderBy    = regexp.MustCompile(`(?i)ORDER\s+BY\s+[\w.,\s]+$`)
)

// CleanQuery strips trailing statement terminators and a trailing ORDER BY
// clause so the query can be embedded as a CTE under our own filtering.
func CleanQuery(sqlText string) (string, error) {
	q := strings.TrimSpace(sqlText)
	if q == "" {
		return "", domainErrors.ErrEmptyQuery
	}
	q = trailingSemicolons.ReplaceAllString(q, "")
	q = trailingOrderBy.ReplaceAllString(q, "")
	return strings.TrimSpace(q), nil
}

// Window is an inclusive due-date range.
type Window struct {
	From time.Time
	To   time.Time
}

// ReminderWindow selects installments due between today and daysAhead from now.
func ReminderWindow(now time.Time, daysAhead int) Window {
	today := truncateToDay(now)
	return Window{From: today, To: today.AddDate(0, 0, daysAhead)}
}

// OverdueWindow selects installments overdue by at least threshold days but no
// more than maxRecovery days. The lower bound caps how far back generation
// reaches.
func OverdueWindow(now time.Time, threshold, maxRecovery int) Window {
	today := truncateToDay(now)
	return Window{
		From: today.AddDate(0, 0, -maxRecovery),
		To:   today.AddDate(0, 0, -threshold),
	}
}

// WrapWithWindow embeds the cleaned base query as a CTE and applies the
// due-date window on dueDateColumn with bound parameters $1/$2. descending
// controls the result ordering (overdue batches list newest debt first).
func WrapWithWindow(baseQuery, dueDateColumn string, descending bool) (string, error) {
	clean, err := CleanQuery(baseQuery)
	if err != nil {
		return "", err
	}
	col := sanitizeIdentifier(dueDateColumn)
	dir := "ASC"
	if descending {
		dir = "DESC"
	}
	return fmt.Sprintf(
		"WITH base_data AS (\n%s\n) SELECT * FROM base_data WHERE %s::date >= $1 AND %s::date <= $2 ORDER BY %s::date %s",
		clean, col, col, col, dir,
	), nil
}

var identifierChars = regexp.MustCompile(`[^A-Za-z0-9_]`)

// sanitizeIdentifier strips anything that is not a bare column character. The
// column name comes from the field-mapping table, not from end users, but it
// is still interpolated into SQL text.
func sanitizeIdentifier(s string) string {
	out := identifierChars.ReplaceAllString(s, "")
	if out == "" {
		return "vencimento"
	}
	return out
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.Local().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
