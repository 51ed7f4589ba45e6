package services

import (
	"strings"

	"github.com/haulstack/fuellens-api/internal/models"
)

type employeeKey struct {
	name string
	unit string
}

// EmployeeIndex correlates a transaction's driver name and unit text to an
// internal employee id. The directory is indexed once per import run so a
// large batch does not rescan it per row.
type EmployeeIndex struct {
	byKey map[employeeKey]int64
}

// NewEmployeeIndex builds an index over a directory snapshot. Directory
// order is preserved: when two entries share (name, unit), the first wins.
func NewEmployeeIndex(directory []models.Employee) *EmployeeIndex {
	ix := &EmployeeIndex{byKey: make(map[employeeKey]int64, len(directory))}
	for _, e := range directory {
		k := employeeKey{name: fold(e.Name), unit: fold(e.Unit)}
		if _, taken := ix.byKey[k]; !taken {
			ix.byKey[k] = e.ID
		}
	}
	return ix
}

// Correlate returns the employee id matching both the driver name and the
// unit identifier, compared case-insensitively. Partial matches are not
// accepted; 0 means unassigned.
func (ix *EmployeeIndex) Correlate(driverName, unit string) int64 {
	return ix.byKey[employeeKey{name: fold(driverName), unit: fold(unit)}]
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
