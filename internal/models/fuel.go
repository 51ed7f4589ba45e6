package models

import (
	"math"
	"strings"
	"time"
)

// FuelTransaction represents one fuel-card charge event as exported by a
// fuel-card provider and stored after import.
type FuelTransaction struct {
	ID           int64   `json:"id"`
	CardNumber   string  `json:"card_number"`
	TranDate     string  `json:"tran_date"` // calendar date, kept as text
	TranTime     string  `json:"tran_time"`
	Invoice      string  `json:"invoice"`
	Unit         string  `json:"unit"`
	DriverName   string  `json:"driver_name"` // free text, not a foreign key
	Odometer     float64 `json:"odometer"`
	LocationName string  `json:"location_name"`
	City         string  `json:"city"`
	StateProv    string  `json:"state_prov"`
	Fees         float64 `json:"fees"`
	Item         string  `json:"item"`
	UnitPrice    float64 `json:"unit_price"`
	DiscPPU      float64 `json:"disc_ppu"`
	DiscCost     float64 `json:"disc_cost"`
	Quantity     float64 `json:"qty"`
	DiscAmount   float64 `json:"disc_amt"`
	DiscType     string  `json:"disc_type"`
	Amount       float64 `json:"amt"`
	DB           string  `json:"db"` // provider-specific debit/credit flag
	Currency     string  `json:"currency"`
	EmployeeID   int64   `json:"employee_id,omitempty"` // 0 when unresolved

	CreatedAt time.Time `json:"created_at,omitzero"`
}

// NaturalKey is the sole identity used for de-duplication. Providers do not
// supply a cross-file transaction id, so (invoice, date, location, amount)
// is the best available natural key.
type NaturalKey struct {
	Invoice  string
	Date     string
	Location string
	Amount   float64
}

// Key returns the transaction's normalized natural key: invoice, date and
// location trimmed and case-folded, amount rounded to 2 decimal places.
func (t *FuelTransaction) Key() NaturalKey {
	return NaturalKey{
		Invoice:  normalize(t.Invoice),
		Date:     normalize(t.TranDate),
		Location: normalize(t.LocationName),
		Amount:   RoundCents(t.Amount),
	}
}

// RoundCents rounds an amount to 2 decimal places.
func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Candidate is a parsed, not-yet-persisted fuel transaction together with
// the 1-based data-row number it came from in the source file.
type Candidate struct {
	Row int             `json:"row"`
	Txn FuelTransaction `json:"txn"`
}

// Employee is one entry of the read-only employee directory used to
// correlate a transaction's driver/unit text to an internal employee id.
type Employee struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Unit string `json:"unit"`
}

// RowError records a per-row import failure.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// ImportResult is the terminal tally of one import run. It is never
// persisted; it exists only to be shown to the caller.
type ImportResult struct {
	Total     int        `json:"total"`
	Imported  int        `json:"imported"`
	Skipped   int        `json:"skipped"`
	Errors    int        `json:"errors"`
	ErrorList []RowError `json:"error_list,omitempty"`
}
