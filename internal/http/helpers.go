package http

import (
	"strings"

	"smartexpense/internal/core"
)

// expenseDTO is the JSON form of an expense. Amounts travel as strings so no
// precision is lost to floating point.
type expenseDTO struct {
	ID       string `json:"id"`
	Date     string `json:"date"`
	Amount   string `json:"amount"`
	Category string `json:"category"`
	Note     string `json:"note"`
}

func toDTO(e core.Expense) expenseDTO {
	return expenseDTO{
		ID:       e.ID,
		Date:     e.Date.String(),
		Amount:   core.FormatAmount(e.Amount),
		Category: e.Category,
		Note:     e.Note,
	}
}

func toDTOs(expenses []core.Expense) []expenseDTO {
	out := make([]expenseDTO, len(expenses))
	for i, e := range expenses {
		out[i] = toDTO(e)
	}
	return out
}

type monthTotalDTO struct {
	Month string `json:"month"`
	Total string `json:"total"`
}

func toMonthDTOs(totals []core.MonthTotal) []monthTotalDTO {
	out := make([]monthTotalDTO, len(totals))
	for i, mt := range totals {
		out[i] = monthTotalDTO{Month: mt.Month, Total: core.FormatAmount(mt.Total)}
	}
	return out
}

// sanitizeInput removes control characters except tab, newline and carriage return.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}
