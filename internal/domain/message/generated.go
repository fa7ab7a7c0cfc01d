package message

import (
	"strings"

	apperrors "github.com/rafaelcosta/dunning/internal/domain/errors"
	"github.com/rafaelcosta/dunning/internal/rowsource"
)

// GeneratedItem is a candidate queue entry produced from one source row.
// Values are in cents; DueDate keeps the DD/MM/YYYY display form.
type GeneratedItem struct {
	Type          MessageType
	ClientCode    string
	ClientName    string
	CPF           string
	Phone1        string
	Phone2        string
	InstallmentID string
	Description   string
	DueDate       string
	EmissionDate  string
	BaseValue     int64
	Interest      int64
	Penalty       int64
	TotalValue    int64
	DaysOverdue   int
	Body          string
}

// BuildIdentity derives the stable installment identity for a row:
// saleSequence-installmentNumber-clientCode, each part falling back to "0"
// when the column is absent. The triple survives regeneration, so the same
// installment always maps to the same identity.
func BuildIdentity(row rowsource.Row) string {
	seq := ResolveFirst(row, "sequenciavenda", "seqvenda", "numerovenda")
	no := ResolveFirst(row, "numeroparcela", "parcela", "nroparcela")
	code := ResolveFirst(row, "codigocliente", "codcliente")
	if seq == "" {
		seq = "0"
	}
	if no == "" {
		no = "0"
	}
	if code == "" {
		code = "0"
	}
	return seq + "-" + no + "-" + code
}

// Validate reports whether the item carries the minimum a queue entry needs.
func (g *GeneratedItem) Validate() error {
	if strings.TrimSpace(g.ClientCode) == "" {
		return &apperrors.ValidationError{Field: "client_code", Message: "client code is required"}
	}
	if strings.TrimSpace(g.ClientName) == "" {
		return &apperrors.ValidationError{Field: "client_name", Message: "client name is required"}
	}
	if strings.TrimSpace(g.DueDate) == "" {
		return &apperrors.ValidationError{Field: "due_date", Message: "due date is required"}
	}
	if !g.Type.Valid() {
		return apperrors.ErrInvalidMessageType
	}
	return nil
}

// BestPhone picks the first phone that normalizes to a sendable number.
func (g *GeneratedItem) BestPhone() string {
	for _, p := range []string{g.Phone1, g.Phone2} {
		if n := NormalizePhone(p); len(n) >= 10 {
			return n
		}
	}
	return ""
}
