package message

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// FormatBRL renders cents in Brazilian convention: thousands separated by
// dots, comma before the two decimal places. 123456 becomes "1.234,56".
func FormatBRL(cents int64) string {
	neg := cents < 0
	if neg {
		cents = -cents
	}
	whole := cents / 100
	frac := cents % 100

	digits := strconv.FormatInt(whole, 10)
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(d)
	}
	out := fmt.Sprintf("%s,%02d", b.String(), frac)
	if neg {
		return "-" + out
	}
	return out
}

// CentsFromAny converts a source value to cents. Accepts integers, floats and
// strings in either "1234.56" or "1.234,56" form. Unparseable values yield 0.
func CentsFromAny(v any) int64 {
	switch x := v.(type) {
	case nil:
		return 0
	case int64:
		return x * 100
	case int:
		return int64(x) * 100
	case int32:
		return int64(x) * 100
	case float64:
		return int64(math.Round(x * 100))
	case float32:
		return int64(math.Round(float64(x) * 100))
	case string:
		return centsFromString(x)
	case []byte:
		return centsFromString(string(x))
	default:
		return centsFromString(fmt.Sprint(v))
	}
}

func centsFromString(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	s = strings.TrimPrefix(s, "R$")
	s = strings.TrimSpace(s)
	if strings.Contains(s, ",") {
		// pt-BR form: dots are thousands separators.
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int64(math.Round(f * 100))
}

// FormatDateBR renders t as DD/MM/YYYY.
func FormatDateBR(t time.Time) string {
	return t.Format("02/01/2006")
}

// ParseDueDate accepts the date spellings source rows carry: DD/MM/YYYY,
// ISO date, and ISO timestamps with or without zone.
func ParseDueDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	layouts := []string{
		"02/01/2006",
		"2006-01-02",
		"2006-01-02T15:04:05Z07:00",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
	}
	var lastErr error
	for _, layout := range layouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, fmt.Errorf("parse due date %q: %w", s, lastErr)
}

// ReformatDateValue normalizes a source date value to DD/MM/YYYY, keeping the
// original text when it cannot be parsed.
func ReformatDateValue(v any) string {
	switch x := v.(type) {
	case time.Time:
		return FormatDateBR(x)
	case *time.Time:
		if x == nil {
			return ""
		}
		return FormatDateBR(*x)
	}
	s := ValueString(v)
	if s == "" {
		return ""
	}
	t, err := ParseDueDate(s)
	if err != nil {
		return s
	}
	return FormatDateBR(t)
}

// ValueString renders a source value for template substitution. Floats use a
// plain decimal form instead of exponent notation.
func ValueString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return FormatDateBR(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	default:
		return fmt.Sprint(v)
	}
}
