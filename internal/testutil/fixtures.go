package testutil

import (
	"fmt"
	"time"

	"github.com/rafaelcosta/dunning/internal/domain/message"
	"github.com/rafaelcosta/dunning/internal/domain/queue"
	"github.com/rafaelcosta/dunning/internal/rowsource"
)

// NewTestRow builds a source row for one installment, with the column names
// the default mappings expect.
func NewTestRow(clientCode, clientName string, dueDate time.Time, valueCents int64) rowsource.Row {
	return rowsource.Row{
		"sequenciavenda":    "1042",
		"numeroparcela":     "1",
		"codigocliente":     clientCode,
		"nomecliente":       clientName,
		"cpfcliente":        "123.456.789-00",
		"fone1":             "(11) 98765-4321",
		"fone2":             "",
		"descricaoparcela":  "Parcela 1/3",
		"emissao":           dueDate.AddDate(0, -1, 0).Format("2006-01-02"),
		"vencimento":        dueDate.Format("2006-01-02"),
		"valorbrutoparcela": float64(valueCents) / 100,
		"valorfinalparcela": float64(valueCents) / 100,
	}
}

// NewTestItem builds a pending queue item.
func NewTestItem(t message.MessageType, clientCode, installmentID string) *queue.Item {
	item, err := queue.NewItem(&message.GeneratedItem{
		Type:          t,
		ClientCode:    clientCode,
		ClientName:    fmt.Sprintf("Cliente %s", clientCode),
		Phone1:        "(11) 98765-4321",
		InstallmentID: installmentID,
		DueDate:       "05/01/2024",
		BaseValue:     100000,
		TotalValue:    100000,
		Body:          "Olá, sua parcela vence em 05/01/2024.",
	})
	if err != nil {
		panic(err)
	}
	return item
}

// NewTestConfig returns a configuration with automation on and both types
// enabled.
func NewTestConfig() *message.Config {
	cfg := message.DefaultConfig()
	cfg.AutoSendEnabled = true
	cfg.SendTime = "00:00"
	cfg.InterestRatePct = 3
	cfg.PenaltyRatePct = 2
	cfg.SendDelay = 0
	return cfg
}
