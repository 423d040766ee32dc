package core

import "github.com/shopspring/decimal"

// MonthTotal is the summed amount for one "YYYY-MM" month.
type MonthTotal struct {
	Month string
	Total decimal.Decimal
}
