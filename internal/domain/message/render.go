package message

import (
	"regexp"
	"sort"
	"strings"
	"time"

	apperrors "github.com/rafaelcosta/dunning/internal/domain/errors"
	"github.com/rafaelcosta/dunning/internal/rowsource"
)

// Computed token names. These are derived per item, not read from the source
// row, so they bypass the mapping table.
const (
	TokenTotalToday = "@valortotalhoje"
	TokenInterest   = "@juroscalculado"
	TokenPenalty    = "@multacalculada"
)

var (
	tokenPattern  = regexp.MustCompile(`@[a-z][a-z0-9]*`)
	isoDatePrefix = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)
)

// currencyVariables marks the variable-name fragments whose numeric values
// render in currency form. Formatting keys on the variable and the value's
// type, not on the source column, so operator-defined mappings format the
// same as the built-in ones.
var currencyVariables = []string{"valor", "juros", "multa"}

// Renderer substitutes @-prefixed variables in a template using the
// configured field mappings. With Strict set, tokens that survive
// substitution fail the render; otherwise they pass through literally so an
// operator can spot the typo in the preview.
type Renderer struct {
	mappings []FieldMapping
	Strict   bool
}

func NewRenderer(mappings []FieldMapping) *Renderer {
	if len(mappings) == 0 {
		mappings = DefaultMappings()
	}
	return &Renderer{mappings: mappings}
}

// Render produces the message body for one source row. computed carries the
// derived tokens (totals, interest, penalty) already formatted for display.
func (r *Renderer) Render(template string, row rowsource.Row, computed map[string]string) (string, error) {
	values := make(map[string]string, len(r.mappings)+len(computed))
	for _, m := range r.mappings {
		values[m.Variable] = r.displayValue(m.Variable, m.SourceColumn, row)
	}
	for token, v := range computed {
		values[token] = v
	}

	// Longer variables first, so @valorfinalparcela is never clobbered by a
	// shorter mapping sharing its prefix.
	vars := make([]string, 0, len(values))
	for v := range values {
		vars = append(vars, v)
	}
	sort.Slice(vars, func(i, j int) bool {
		if len(vars[i]) != len(vars[j]) {
			return len(vars[i]) > len(vars[j])
		}
		return vars[i] < vars[j]
	})

	out := template
	for _, v := range vars {
		out = strings.ReplaceAll(out, v, values[v])
	}

	if r.Strict {
		if leftover := tokenPattern.FindString(out); leftover != "" {
			return "", &apperrors.DomainError{
				Code:    "UNRESOLVED_VARIABLE",
				Message: "template variable has no mapping: " + leftover,
				Err:     apperrors.ErrMappingNotFound,
			}
		}
	}
	return out, nil
}

func (r *Renderer) displayValue(variable, column string, row rowsource.Row) string {
	v, ok := Resolve(row, column)
	if !ok {
		return ""
	}
	if isNumeric(v) && isCurrencyVariable(variable) {
		return FormatBRL(CentsFromAny(v))
	}
	switch v.(type) {
	case time.Time, *time.Time:
		return ReformatDateValue(v)
	}
	if s, isString := v.(string); isString && isoDatePrefix.MatchString(s) {
		return ReformatDateValue(s)
	}
	return ValueString(v)
}

func isCurrencyVariable(variable string) bool {
	lower := strings.ToLower(variable)
	for _, frag := range currencyVariables {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}

func isNumeric(v any) bool {
	switch v.(type) {
	case int, int32, int64, float32, float64:
		return true
	}
	return false
}
