package message

import (
	"strings"

	"github.com/rafaelcosta/dunning/internal/rowsource"
)

// FieldMapping links a template variable to a source column name.
// Unique on Variable.
type FieldMapping struct {
	Variable     string
	SourceColumn string
}

// DefaultMappings returns the mapping set installed on first run.
func DefaultMappings() []FieldMapping {
	return []FieldMapping{
		{Variable: "@codigocliente", SourceColumn: "codigocliente"},
		{Variable: "@nomecliente", SourceColumn: "nomecliente"},
		{Variable: "@cpfcliente", SourceColumn: "cpfcliente"},
		{Variable: "@fone1", SourceColumn: "fone1"},
		{Variable: "@fone2", SourceColumn: "fone2"},
		{Variable: "@descricaoparcela", SourceColumn: "descricaoparcela"},
		{Variable: "@emissaoparcela", SourceColumn: "emissao"},
		{Variable: "@vencimentoparcela", SourceColumn: "vencimento"},
		{Variable: "@valorbrutoparcela", SourceColumn: "valorbrutoparcela"},
		{Variable: "@desconto", SourceColumn: "desconto"},
		{Variable: "@juros", SourceColumn: "juros"},
		{Variable: "@multa", SourceColumn: "multa"},
		{Variable: "@valorfinalparcela", SourceColumn: "valorfinalparcela"},
		{Variable: "@valortotaldevido", SourceColumn: "valortotaldevido"},
		{Variable: "@totalvencido", SourceColumn: "totalvencido"},
	}
}

// columnAliases maps a canonical lowercase column name to the spellings seen
// across source connections. Different drivers and hand-written queries expose
// the same field under different names.
var columnAliases = map[string][]string{
	"emissao":    {"dataemissao", "emissaoparcela", "dt_emissao"},
	"vencimento": {"datavencimento", "vencimentoparcela", "dt_vencimento"},
	"fone1":      {"telefone1", "fone", "celular"},
	"fone2":      {"telefone2"},
}

// Resolve looks up column in row: exact match first, then a case-insensitive
// scan, then the known aliases for that column. The boolean is false when
// nothing matches; callers render missing values as empty strings rather than
// failing, because upstream column casing is not under our control.
func Resolve(row rowsource.Row, column string) (any, bool) {
	if v, ok := row[column]; ok {
		return v, true
	}
	lower := strings.ToLower(column)
	for k, v := range row {
		if strings.ToLower(k) == lower {
			return v, true
		}
	}
	for _, alias := range columnAliases[lower] {
		if v, ok := row[alias]; ok {
			return v, true
		}
		for k, v := range row {
			if strings.ToLower(k) == alias {
				return v, true
			}
		}
	}
	return nil, false
}

// ResolveString resolves column and coerces the value to its string form.
func ResolveString(row rowsource.Row, column string) string {
	v, ok := Resolve(row, column)
	if !ok {
		return ""
	}
	return ValueString(v)
}

// ResolveFirst returns the first non-empty resolution among columns.
func ResolveFirst(row rowsource.Row, columns ...string) string {
	for _, c := range columns {
		if s := ResolveString(row, c); s != "" {
			return s
		}
	}
	return ""
}
