// Package fieldmap holds the user-editable mapping between the logical
// fields of a fuel transaction and the literal column headers a fuel-card
// provider's export is expected to carry. Providers rename columns between
// export versions, so the mapping is configurable and persisted; a missing
// or corrupt persisted form silently falls back to the built-in defaults.
package fieldmap

import (
	"encoding/json"
	"os"
	"strings"
	"sync"
)

// Field is a logical fuel-transaction field name.
type Field string

const (
	FieldCardNumber   Field = "Card Number"
	FieldTranDate     Field = "Transaction Date"
	FieldTranTime     Field = "Transaction Time"
	FieldInvoice      Field = "Invoice"
	FieldUnit         Field = "Unit"
	FieldDriverName   Field = "Driver Name"
	FieldOdometer     Field = "Odometer"
	FieldLocationName Field = "Location Name"
	FieldCity         Field = "City"
	FieldStateProv    Field = "State/Province"
	FieldFees         Field = "Fees"
	FieldItem         Field = "Item"
	FieldUnitPrice    Field = "Unit Price"
	FieldDiscPPU      Field = "Discount PPU"
	FieldDiscCost     Field = "Discount Cost"
	FieldQuantity     Field = "Quantity"
	FieldDiscAmount   Field = "Discount Amount"
	FieldDiscType     Field = "Discount Type"
	FieldAmount       Field = "Amount"
	FieldDB           Field = "DB"
	FieldCurrency     Field = "Currency"
)

// Fields lists every logical field in provider column order. Its length is
// also the minimum column count a delimited row must have to be parseable.
var Fields = []Field{
	FieldCardNumber, FieldTranDate, FieldTranTime, FieldInvoice, FieldUnit,
	FieldDriverName, FieldOdometer, FieldLocationName, FieldCity,
	FieldStateProv, FieldFees, FieldItem, FieldUnitPrice, FieldDiscPPU,
	FieldDiscCost, FieldQuantity, FieldDiscAmount, FieldDiscType,
	FieldAmount, FieldDB, FieldCurrency,
}

var defaultHeaders = map[Field]string{
	FieldCardNumber:   "card #",
	FieldTranDate:     "tran date",
	FieldTranTime:     "tran time",
	FieldInvoice:      "invoice",
	FieldUnit:         "unit",
	FieldDriverName:   "driver name",
	FieldOdometer:     "odometer",
	FieldLocationName: "location name",
	FieldCity:         "city",
	FieldStateProv:    "state/ prov",
	FieldFees:         "fees",
	FieldItem:         "item",
	FieldUnitPrice:    "unit price",
	FieldDiscPPU:      "disc ppu",
	FieldDiscCost:     "disc cost",
	FieldQuantity:     "qty",
	FieldDiscAmount:   "disc amt",
	FieldDiscType:     "disc type",
	FieldAmount:       "amt",
	FieldDB:           "db",
	FieldCurrency:     "currency",
}

// IsKnown reports whether f is one of the logical fields this system maps.
func IsKnown(f Field) bool {
	_, ok := defaultHeaders[f]
	return ok
}

// Map associates each logical field with the header text expected in an
// import file. Header matching is case-insensitive and trimmed. Safe for
// concurrent use; an import run should work from a Snapshot so mid-run
// edits do not shift column resolution.
type Map struct {
	mu      sync.RWMutex
	headers map[Field]string
}

// Default returns a Map pre-populated with the built-in header defaults.
func Default() *Map {
	m := &Map{headers: make(map[Field]string, len(defaultHeaders))}
	for f, h := range defaultHeaders {
		m.headers[f] = h
	}
	return m
}

// Get returns the expected header for a field, or "" for an unknown field.
func (m *Map) Get(f Field) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.headers[f]
}

// Set changes the expected header for a field. Unknown fields are ignored.
func (m *Map) Set(f Field, header string) {
	if !IsKnown(f) {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.headers[f] = header
}

// Reset restores the built-in defaults for every field.
func (m *Map) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for f, h := range defaultHeaders {
		m.headers[f] = h
	}
}

// Headers returns a copy of the current field→header association.
func (m *Map) Headers() map[Field]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[Field]string, len(m.headers))
	for f, h := range m.headers {
		out[f] = h
	}
	return out
}

// Snapshot returns an independent copy of the map for use by a single
// import run.
func (m *Map) Snapshot() *Map {
	return &Map{headers: m.Headers()}
}

// Resolve scans a header row for each configured field and returns the
// column index of every field that was found. Matching is case-insensitive
// and ignores surrounding whitespace. Fields whose header does not appear
// are simply absent from the result.
func (m *Map) Resolve(headers []string) map[Field]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	indexed := make(map[string]int, len(headers))
	for i, h := range headers {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, seen := indexed[key]; !seen {
			indexed[key] = i
		}
	}

	resolved := make(map[Field]int, len(m.headers))
	for f, expected := range m.headers {
		if i, ok := indexed[strings.ToLower(strings.TrimSpace(expected))]; ok {
			resolved[f] = i
		}
	}
	return resolved
}

// LoadFile reads a persisted mapping from a JSON file. A missing, unreadable
// or corrupt file yields the defaults; configuration problems are never
// surfaced as import errors.
func LoadFile(path string) *Map {
	m := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return m
	}
	var stored map[string]string
	if err := json.Unmarshal(data, &stored); err != nil {
		return m
	}
	for name, header := range stored {
		m.Set(Field(name), header)
	}
	return m
}

// SaveFile persists the mapping as a JSON object of field name → header.
func (m *Map) SaveFile(path string) error {
	m.mu.RLock()
	stored := make(map[string]string, len(m.headers))
	for f, h := range m.headers {
		stored[string(f)] = h
	}
	m.mu.RUnlock()

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
