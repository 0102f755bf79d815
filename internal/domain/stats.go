package domain

import "github.com/shopspring/decimal"

// Aggregation results served by the stats API. Year 0 means "all years
// combined" throughout, per the year-0 convention.

// StateTotal is grant volume for one state.
type StateTotal struct {
	State       string          `json:"state"`
	Year        int             `json:"year"`
	GrantsCount int             `json:"grants_count"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// DirectorateTotal is grant volume for one NSF directorate.
type DirectorateTotal struct {
	Directorate string          `json:"directorate"`
	Year        int             `json:"year"`
	GrantsCount int             `json:"grants_count"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// YearTotal is nationwide grant volume for one year.
type YearTotal struct {
	Year        int             `json:"year"`
	GrantsCount int             `json:"grants_count"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// CancellationStat compares a directorate's active awards against grants
// cancelled during the 2017-2021 window. Rate divides the cancellation count
// by the base count, treating a zero base as one so directorates that appear
// only in the cancelled dataset still report a finite rate.
type CancellationStat struct {
	Directorate string          `json:"directorate"`
	BaseCount   int             `json:"base_count"`
	CancelCount int             `json:"cancel_count"`
	LostAmount  decimal.Decimal `json:"lost_amount"`
	Rate        float64         `json:"rate"`
}

// PerCapitaStat is funding efficiency for one state: total award dollars
// divided by population. For year 0 the population is the mean across the
// years present in the population table.
type PerCapitaStat struct {
	State       string          `json:"state"`
	Year        int             `json:"year"`
	GrantsCount int             `json:"grants_count"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Population  int64           `json:"population"`
	PerCapita   decimal.Decimal `json:"per_capita"`
}
