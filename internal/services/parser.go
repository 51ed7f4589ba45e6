package services

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/haulstack/fuellens-api/internal/fieldmap"
	"github.com/haulstack/fuellens-api/internal/models"
	"github.com/haulstack/fuellens-api/internal/tabular"
)

// MinDelimitedFields is the minimum column count a delimited-text row must
// have to be considered well formed. Rows narrower than the full field
// list are provider export artifacts (page footers, truncated lines) and
// are dropped silently.
var MinDelimitedFields = len(fieldmap.Fields)

// RecordParser turns tabular rows into typed fuel-transaction candidates.
// It is a pure transform: no store access, no side effects beyond logging.
type RecordParser struct {
	log zerolog.Logger
}

// NewRecordParser creates a parser that logs dropped rows and zeroed
// numeric cells at debug level.
func NewRecordParser(log zerolog.Logger) *RecordParser {
	return &RecordParser{log: log}
}

// Parse consumes every data row of r and returns the candidates that
// survived the structural checks. Column indices are resolved once against
// the header row via the field map. Row numbers are 1-based over data rows.
//
// Structural skips are not errors: a delimited row with fewer than
// MinDelimitedFields cells, or a workbook row whose invoice cell is blank,
// is simply omitted. A read failure aborts parsing entirely.
func (p *RecordParser) Parse(r tabular.Reader, fm *fieldmap.Map) ([]models.Candidate, error) {
	cols := fm.Resolve(r.Headers())

	var candidates []models.Candidate
	rowNum := 0
	for {
		row, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading row %d: %w", rowNum+1, err)
		}
		rowNum++

		if r.Kind() == tabular.KindDelimited && row.Len() < MinDelimitedFields {
			p.log.Debug().Int("row", rowNum).Int("fields", row.Len()).
				Msg("dropping malformed row")
			continue
		}

		txn := p.parseRow(row, cols)

		// Workbook exports pad the sheet with blank rows; a row without an
		// invoice is one of them. Delimited rows are guarded by the width
		// check instead.
		if r.Kind() == tabular.KindWorkbook && txn.Invoice == "" {
			continue
		}

		candidates = append(candidates, models.Candidate{Row: rowNum, Txn: txn})
	}
	return candidates, nil
}

func (p *RecordParser) parseRow(row tabular.Row, cols map[fieldmap.Field]int) models.FuelTransaction {
	text := func(f fieldmap.Field) string {
		i, ok := cols[f]
		if !ok {
			return ""
		}
		return strings.TrimSpace(row.Cell(i))
	}
	number := func(f fieldmap.Field) float64 {
		return p.parseNumber(text(f), f)
	}

	return models.FuelTransaction{
		CardNumber:   text(fieldmap.FieldCardNumber),
		TranDate:     text(fieldmap.FieldTranDate),
		TranTime:     text(fieldmap.FieldTranTime),
		Invoice:      text(fieldmap.FieldInvoice),
		Unit:         text(fieldmap.FieldUnit),
		DriverName:   text(fieldmap.FieldDriverName),
		Odometer:     number(fieldmap.FieldOdometer),
		LocationName: text(fieldmap.FieldLocationName),
		City:         text(fieldmap.FieldCity),
		StateProv:    text(fieldmap.FieldStateProv),
		Fees:         number(fieldmap.FieldFees),
		Item:         text(fieldmap.FieldItem),
		UnitPrice:    number(fieldmap.FieldUnitPrice),
		DiscPPU:      number(fieldmap.FieldDiscPPU),
		DiscCost:     number(fieldmap.FieldDiscCost),
		Quantity:     number(fieldmap.FieldQuantity),
		DiscAmount:   number(fieldmap.FieldDiscAmount),
		DiscType:     text(fieldmap.FieldDiscType),
		Amount:       number(fieldmap.FieldAmount),
		DB:           text(fieldmap.FieldDB),
		Currency:     text(fieldmap.FieldCurrency),
	}
}

// parseNumber coerces numeric text, tolerating currency symbols and
// thousands separators. Malformed text yields 0 rather than an error; a
// debug event keeps a trail for data-quality audits.
func (p *RecordParser) parseNumber(s string, f fieldmap.Field) float64 {
	cleaned := strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	if cleaned == "" || cleaned == "-" {
		return 0
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		p.log.Debug().Str("field", string(f)).Str("value", s).
			Msg("unparseable numeric cell, defaulting to 0")
		return 0
	}
	return v
}
